// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/jeranaias/clientdesk/internal/ui/styles"
)

// HandleClients handles the "clients" command.
//
//	clientdesk clients create --name "Acme Ltd"
func HandleClients(ctx context.Context, env *Env, args Args, s Streams) error {
	switch sub := args.Subcommand(); sub {
	case "create", "new":
		return handleClientsCreate(ctx, env, args, s)
	case "":
		return &UsageError{Message: "clients requires a subcommand", Example: `clientdesk clients create --name "Acme Ltd"`}
	default:
		return &UsageError{Message: fmt.Sprintf("unknown clients subcommand %q", sub)}
	}
}

func handleClientsCreate(ctx context.Context, env *Env, args Args, s Streams) error {
	name := strings.TrimSpace(args.Parser.Flag("name"))
	if name == "" {
		name = strings.TrimSpace(strings.Join(args.Parser.PositionalFrom(1), " "))
	}
	if name == "" {
		return &UsageError{Message: "a client name is required", Example: `clientdesk clients create --name "Acme Ltd"`}
	}

	c, err := env.API.CreateClient(ctx, name)
	if err != nil {
		return NewCommandError("clients", "create", "client was not created", err)
	}

	if args.JSON {
		return NewJSONResponse("clients create", c).Write(s.Out)
	}
	fmt.Fprintln(s.Out, styles.RenderSuccess(fmt.Sprintf("Created %s as %s", c.Name, c.Code)))
	return nil
}

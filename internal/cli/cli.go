// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/charmbracelet/glamour"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdLogin
	CmdLogout
	CmdStatus
	CmdClients
	CmdVersion
	CmdHelp
	CmdUnknown
)

// String returns the command's name as typed.
func (c Command) String() string {
	switch c {
	case CmdTUI:
		return "tui"
	case CmdLogin:
		return "login"
	case CmdLogout:
		return "logout"
	case CmdStatus:
		return "status"
	case CmdClients:
		return "clients"
	case CmdVersion:
		return "version"
	case CmdHelp:
		return "help"
	default:
		return "unknown"
	}
}

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	JSON       bool
	Verbose    bool
	ConfigPath string

	// Name is the command word as typed, kept for error messages.
	Name string

	// Parser holds the command's own arguments.
	Parser *ArgParser
}

// Subcommand returns the command's first positional argument.
func (a Args) Subcommand() string {
	if a.Parser == nil {
		return ""
	}
	return a.Parser.Subcommand()
}

// Parse maps argv (without the program name) to a command.
func Parse(argv []string) (Command, Args) {
	remaining, args := parseGlobalFlags(argv)
	args.Parser = NewArgParser(nil)

	if len(remaining) == 0 {
		return CmdTUI, args
	}

	args.Name = strings.ToLower(remaining[0])
	args.Parser = NewArgParser(remaining[1:])

	switch args.Name {
	case "tui":
		return CmdTUI, args
	case "login", "signin":
		return CmdLogin, args
	case "logout", "signout":
		return CmdLogout, args
	case "status", "s":
		return CmdStatus, args
	case "clients", "client":
		return CmdClients, args
	case "version", "--version", "-V":
		return CmdVersion, args
	case "help", "--help", "-h":
		return CmdHelp, args
	default:
		return CmdUnknown, args
	}
}

// parseGlobalFlags extracts global flags from args and returns the rest.
func parseGlobalFlags(argv []string) ([]string, Args) {
	var remaining []string
	var args Args

	for i := 0; i < len(argv); i++ {
		arg := argv[i]
		switch {
		case arg == "--json":
			args.JSON = true
		case arg == "-v" || arg == "--verbose":
			args.Verbose = true
		case arg == "--config":
			if i+1 < len(argv) {
				i++
				args.ConfigPath = argv[i]
			}
		case strings.HasPrefix(arg, "--config="):
			args.ConfigPath = strings.TrimPrefix(arg, "--config=")
		default:
			remaining = append(remaining, arg)
		}
	}
	return remaining, args
}

// =============================================================================
// HELP AND VERSION
// =============================================================================

const usageMarkdown = `# clientdesk

Terminal client for the clientdesk back office.

## Usage

| Command | Description |
|---|---|
| ` + "`clientdesk`" + ` | Start the TUI (default) |
| ` + "`clientdesk login [--email E]`" + ` | Sign in and remember the credential |
| ` + "`clientdesk logout`" + ` | Revoke and forget the credential |
| ` + "`clientdesk status`" + ` | Show configuration and session state |
| ` + "`clientdesk clients create --name N`" + ` | Create a client record |
| ` + "`clientdesk version`" + ` | Show version information |

## Global flags

- ` + "`--json`" + ` machine-readable output
- ` + "`--config PATH`" + ` use a config file other than ` + "`~/.clientdesk/config.toml`" + `
- ` + "`-v, --verbose`" + ` log debug output to stderr

## Session

Signed-in TUI sessions end after a period of inactivity. A countdown is shown
first; press **enter** to stay signed in or **l** to sign out at once.

Set ` + "`CLIENTDESK_HOME`" + ` to relocate configuration, logs, and the stored credential.
`

// PrintUsage writes the help text, rendered as markdown on a terminal.
func PrintUsage(w io.Writer, tty bool) {
	fmt.Fprint(w, renderUsage(tty))
}

func renderUsage(tty bool) string {
	if !tty {
		return usageMarkdown
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(GetTerminalWidth()),
	)
	if err != nil {
		return usageMarkdown
	}
	out, err := r.Render(usageMarkdown)
	if err != nil {
		return usageMarkdown
	}
	return out
}

// VersionData is the --json payload of the version command.
type VersionData struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

// HandleVersion writes version information.
func HandleVersion(w io.Writer, args Args) error {
	if args.JSON {
		return NewJSONResponse("version", VersionData{
			Version:   Version,
			GitCommit: GitCommit,
			BuildDate: BuildDate,
			GoVersion: runtime.Version(),
		}).Write(w)
	}
	fmt.Fprintf(w, "clientdesk version %s\n", Version)
	fmt.Fprintf(w, "  Git commit: %s\n", GitCommit)
	fmt.Fprintf(w, "  Build date: %s\n", BuildDate)
	return nil
}

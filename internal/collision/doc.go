// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package collision creates records whose identifier is generated on the
// client, regenerating it when the backend reports a uniqueness violation.
//
// # Usage
//
//	sub := collision.New(pipeline, collision.ReferenceCodeGenerator("CL", 8))
//	resp, code, err := sub.Create(ctx, "/clients", func(id string) any {
//	    return map[string]string{"code": id, "name": name}
//	})
package collision

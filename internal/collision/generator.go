// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package collision

import (
	"strings"

	"github.com/google/uuid"
)

// Generator produces a fresh candidate identifier on every call.
type Generator func() string

// UUIDGenerator returns random version 4 UUIDs.
func UUIDGenerator() Generator {
	return func() string {
		return uuid.NewString()
	}
}

// ReferenceCodeGenerator returns human-friendly codes such as "CL-7F3A9C21":
// prefix, a dash, and n upper-case hex digits taken from a random UUID.
// n is clamped to 1..32. An empty prefix yields the bare digits.
func ReferenceCodeGenerator(prefix string, n int) Generator {
	if n < 1 {
		n = 1
	}
	if n > 32 {
		n = 32
	}
	return func() string {
		id := uuid.New()
		digits := strings.ToUpper(strings.ReplaceAll(id.String(), "-", ""))[:n]
		if prefix == "" {
			return digits
		}
		return prefix + "-" + digits
	}
}

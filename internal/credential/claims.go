// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package credential

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"
)

// claims is the registered JWT claim the client inspects.
// Signatures are never verified client-side.
type claims struct {
	ExpiresAt int64 `json:"exp,omitempty"`
}

// ParseExpiry decodes the exp claim of a JWT-shaped token. It reports false
// for opaque tokens and for JWTs without an exp claim.
func ParseExpiry(token string) (time.Time, bool) {
	c, ok := decodeClaims(token)
	if !ok || c.ExpiresAt <= 0 {
		return time.Time{}, false
	}
	return time.Unix(c.ExpiresAt, 0), true
}

// Expired reports whether token carries an exp claim at or before now.
// Opaque tokens are never considered expired.
func Expired(token string, now time.Time) bool {
	exp, ok := ParseExpiry(token)
	return ok && !now.Before(exp)
}

func decodeClaims(token string) (claims, bool) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return claims{}, false
	}

	payload, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return claims{}, false
	}

	var c claims
	if err := json.Unmarshal(payload, &c); err != nil {
		return claims{}, false
	}
	return c, true
}

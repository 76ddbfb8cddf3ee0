// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// MaxResponseSize is the maximum accepted response body size.
const MaxResponseSize = 10 * 1024 * 1024

// Response is a successful (2xx) backend response. The body has already been
// read and the connection released; decoding happens only on request.
type Response struct {
	Status int
	Header http.Header
	body   []byte
}

// Bytes returns the raw body.
func (r *Response) Bytes() []byte {
	return r.body
}

// Decode unmarshals the JSON body into v. An empty body leaves v untouched.
func (r *Response) Decode(v any) error {
	if len(r.body) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.body, v); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// readBody reads at most MaxResponseSize bytes and closes the body.
func readBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > MaxResponseSize {
		return nil, fmt.Errorf("%w of %d bytes", ErrResponseTooLarge, MaxResponseSize)
	}
	return body, nil
}

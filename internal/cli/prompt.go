// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"
)

// ErrAborted is returned when the user cancels a prompt.
var ErrAborted = errors.New("cancelled")

// Prompter reads answers from the user.
type Prompter interface {
	Prompt(prompt string) (string, error)
	PasswordPrompt(prompt string) (string, error)
	Close() error
}

// Streams are the standard streams a command uses.
type Streams struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer

	// Interactive selects line editing and masked password entry.
	Interactive bool
}

// StdStreams returns the process streams.
func StdStreams() Streams {
	return Streams{In: os.Stdin, Out: os.Stdout, Err: os.Stderr, Interactive: IsTTY()}
}

// NewPrompter returns a liner prompter on a terminal and a plain line reader
// otherwise, so answers can be piped in.
func (s Streams) NewPrompter() Prompter {
	if s.Interactive {
		line := liner.NewLiner()
		line.SetCtrlCAborts(true)
		return &linerPrompter{line: line}
	}
	return &readerPrompter{scanner: bufio.NewScanner(s.In), out: s.Err}
}

type linerPrompter struct {
	line *liner.State
}

func (p *linerPrompter) Prompt(prompt string) (string, error) {
	answer, err := p.line.Prompt(prompt)
	if errors.Is(err, liner.ErrPromptAborted) {
		return "", ErrAborted
	}
	return answer, err
}

func (p *linerPrompter) PasswordPrompt(prompt string) (string, error) {
	answer, err := p.line.PasswordPrompt(prompt)
	if errors.Is(err, liner.ErrPromptAborted) {
		return "", ErrAborted
	}
	return answer, err
}

func (p *linerPrompter) Close() error {
	return p.line.Close()
}

// readerPrompter reads one answer per line.
type readerPrompter struct {
	scanner *bufio.Scanner
	out     io.Writer
}

func (p *readerPrompter) Prompt(prompt string) (string, error) {
	io.WriteString(p.out, prompt)
	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.ErrUnexpectedEOF
	}
	return strings.TrimRight(p.scanner.Text(), "\r"), nil
}

func (p *readerPrompter) PasswordPrompt(prompt string) (string, error) {
	return p.Prompt(prompt)
}

func (p *readerPrompter) Close() error {
	return nil
}

// Package prompt reads credentials interactively from the controlling terminal.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

var (
	// ErrNotInteractive indicates stdin is not a terminal, so no prompt can be shown.
	ErrNotInteractive = errors.New("stdin is not a terminal")

	// ErrEmptyToken indicates the user entered nothing at the prompt.
	ErrEmptyToken = errors.New("no token entered")
)

const tokenPrompt = "GitHub token: "

// TerminalPrompter asks for a GitHub token without echoing it.
type TerminalPrompter struct {
	fd           int
	out          io.Writer
	isTerminal   func(fd int) bool
	readPassword func(fd int) ([]byte, error)
}

// NewTerminalPrompter creates a prompter reading from stdin and writing the prompt to stderr.
func NewTerminalPrompter() *TerminalPrompter {
	return &TerminalPrompter{
		fd:           int(os.Stdin.Fd()),
		out:          os.Stderr,
		isTerminal:   term.IsTerminal,
		readPassword: term.ReadPassword,
	}
}

// PromptToken reads a token from the terminal with echo disabled.
func (p *TerminalPrompter) PromptToken(ctx context.Context) (string, error) {
	if !p.isTerminal(p.fd) {
		return "", ErrNotInteractive
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	fmt.Fprint(p.out, tokenPrompt)
	b, err := p.readPassword(p.fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", fmt.Errorf("failed to read token: %w", err)
	}

	token := strings.TrimSpace(string(b))
	if token == "" {
		return "", ErrEmptyToken
	}
	return token, nil
}

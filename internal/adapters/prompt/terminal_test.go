package prompt

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPrompter(tty bool, input string, readErr error) (*TerminalPrompter, *bytes.Buffer) {
	var out bytes.Buffer
	return &TerminalPrompter{
		fd:         3,
		out:        &out,
		isTerminal: func(int) bool { return tty },
		readPassword: func(int) ([]byte, error) {
			return []byte(input), readErr
		},
	}, &out
}

func TestTerminalPrompter_PromptToken(t *testing.T) {
	tests := []struct {
		name      string
		tty       bool
		input     string
		readErr   error
		want      string
		wantErr   error
		wantShown bool
	}{
		{name: "reads token", tty: true, input: "ghp_secret", want: "ghp_secret", wantShown: true},
		{name: "trims whitespace", tty: true, input: "  ghp_secret\r\n", want: "ghp_secret", wantShown: true},
		{name: "not a terminal", tty: false, input: "ghp_secret", wantErr: ErrNotInteractive},
		{name: "empty input", tty: true, input: "   ", wantErr: ErrEmptyToken, wantShown: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, out := newTestPrompter(tt.tty, tt.input, tt.readErr)

			got, err := p.PromptToken(context.Background())

			assert.Equal(t, tt.wantShown, bytes.Contains(out.Bytes(), []byte(tokenPrompt)))
			assert.NotContains(t, out.String(), "ghp_secret", "token must never be echoed")
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTerminalPrompter_PromptToken_ReadError(t *testing.T) {
	boom := errors.New("inappropriate ioctl for device")
	p, _ := newTestPrompter(true, "", boom)

	_, err := p.PromptToken(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestTerminalPrompter_PromptToken_Cancelled(t *testing.T) {
	p, out := newTestPrompter(true, "ghp_secret", nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.PromptToken(ctx)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, out.String())
}

func TestNewTerminalPrompter(t *testing.T) {
	p := NewTerminalPrompter()
	assert.NotNil(t, p.isTerminal)
	assert.NotNil(t, p.readPassword)
}

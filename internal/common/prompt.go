package common

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ternarybob/brokerd/internal/interfaces"
)

// ConsolePrompter reads credentials interactively from a terminal.
type ConsolePrompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewConsolePrompter creates a prompter on stdin/stdout.
func NewConsolePrompter() *ConsolePrompter {
	return &ConsolePrompter{
		in:  bufio.NewReader(os.Stdin),
		out: os.Stdout,
	}
}

// PromptRefreshToken synchronously asks the operator for an initial refresh token.
func (p *ConsolePrompter) PromptRefreshToken(provider string) (string, error) {
	fmt.Fprintf(p.out, "Please provide your %s refresh token: ", provider)

	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read token from console: %w", err)
	}

	return strings.TrimSpace(line), nil
}

// Ensure interface compliance
var _ interfaces.TokenPrompter = (*ConsolePrompter)(nil)

package keystore

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/lukskeep/lukskeep/pkg/errors"
)

// Prompter asks the user for secrets and confirmations. Tests substitute a
// canned implementation.
type Prompter interface {
	// ReadSecret reads a line with terminal echo disabled.
	ReadSecret(prompt string) (string, error)
	// Confirm asks a yes/no question, defaulting to no.
	Confirm(prompt string) (bool, error)
}

// TerminalPrompter reads from the controlling terminal.
type TerminalPrompter struct{}

func (TerminalPrompter) ReadSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", errors.Wrap(err, "failed to read passphrase")
	}
	return string(pw), nil
}

func (TerminalPrompter) Confirm(prompt string) (bool, error) {
	fmt.Fprint(os.Stderr, prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false, errors.Wrap(err, "failed to read answer")
	}
	return strings.EqualFold(strings.TrimSpace(line), "y"), nil
}

package console

import (
	"os"

	"golang.org/x/term"
)

// TerminalSecret returns a password reader that disables echo on f, or nil
// when f is not a terminal so prompts fall back to plain line input.
func TerminalSecret(f *os.File) func() (string, error) {
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return nil
	}
	return func() (string, error) {
		b, err := term.ReadPassword(fd)
		return string(b), err
	}
}

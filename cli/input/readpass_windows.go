//go:build windows

package input

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

// readSecurePassword prompts on stderr and reads the passphrase from the
// console without echo.
func readSecurePassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	pass, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read passphrase: %w", err)
	}
	return string(pass), nil
}

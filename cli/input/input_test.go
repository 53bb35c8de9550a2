package input

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/term"
)

func setTerminal(t *testing.T, in string) {
	Terminal = term.NewTerminal(ReadWriter{
		Reader: strings.NewReader(in),
		Writer: io.Discard,
	}, "")
	t.Cleanup(func() { Terminal = nil })
}

func TestReadLine(t *testing.T) {
	setTerminal(t, "hello\r")
	s, err := ReadLine(io.Discard, "> ")
	require.NoError(t, err)
	require.Equal(t, "hello", s)
}

func TestReadPassword(t *testing.T) {
	setTerminal(t, "secret\r")
	s, err := ReadPassword("Password > ")
	require.NoError(t, err)
	require.Equal(t, "secret", s)
}

func TestConfirm(t *testing.T) {
	for in, expected := range map[string]bool{
		"y\r":    true,
		"YES\r":  true,
		"n\r":    false,
		"\r":     false,
		"sure\r": false,
	} {
		setTerminal(t, in)
		ok, err := Confirm(new(bytes.Buffer), "Sign?")
		require.NoError(t, err, in)
		require.Equal(t, expected, ok, in)
	}
}

package command

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedCommand is returned for any command that cannot be parsed.
var ErrMalformedCommand = errors.New("malformed command")

// SyntaxError describes why a command was rejected.
type SyntaxError struct {
	Tokens     []string
	Reason     string
	Suggestion string // closest known word to the first unknown token, if any
}

func (e *SyntaxError) Error() string {
	msg := fmt.Sprintf("%s: %s", ErrMalformedCommand, e.Reason)
	if len(e.Tokens) > 0 {
		msg += fmt.Sprintf(" [%s]", strings.Join(e.Tokens, " "))
	}
	if e.Suggestion != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", e.Suggestion)
	}
	return msg
}

func (e *SyntaxError) Unwrap() error {
	return ErrMalformedCommand
}

func malformed(tokens []string, reason string) *SyntaxError {
	return &SyntaxError{Tokens: tokens, Reason: reason}
}

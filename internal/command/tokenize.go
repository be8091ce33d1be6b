package command

import "strings"

// Tokenize lowercases raw and splits it on single spaces.
// There is no quoting; consecutive spaces yield empty tokens, which never
// match any zone or command part.
func Tokenize(raw string) ([]string, error) {
	if raw == "" {
		return nil, malformed(nil, "empty command")
	}
	return strings.Split(strings.ToLower(raw), " "), nil
}

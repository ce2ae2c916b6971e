// Package ident validates externally supplied identifiers before they are
// interpolated into container runtime command lines or label filters.
package ident

import (
	"errors"
	"fmt"
)

// ErrInvalidIdentifier reports a value that failed sanitization. Values
// carrying this error must never reach a subprocess argument list.
var ErrInvalidIdentifier = errors.New("invalid identifier")

// Sanitize returns value unchanged when it is non-empty and consists only
// of ASCII letters, digits, '.', '_' and '-'. Everything else fails with
// ErrInvalidIdentifier carrying the offending value.
func Sanitize(value string) (string, error) {
	if value == "" {
		return "", fmt.Errorf("%w: empty value", ErrInvalidIdentifier)
	}
	for _, r := range value {
		if !identRune(r) {
			return "", fmt.Errorf("%w: %q contains unsupported characters", ErrInvalidIdentifier, value)
		}
	}
	return value, nil
}

func identRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= 'A' && r <= 'Z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '.' || r == '_' || r == '-':
		return true
	}
	return false
}

// Package envflag interprets boolean environment toggles.
package envflag

import (
	"os"
	"strings"
)

// IsTruthy reports whether value spells an enabled toggle: "1", "t",
// "true", "yes" or "on", case-insensitively, ignoring surrounding
// whitespace.
func IsTruthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "t", "true", "yes", "on":
		return true
	}
	return false
}

// Enabled reports whether the named environment variable is truthy.
func Enabled(name string) bool {
	return IsTruthy(os.Getenv(name))
}

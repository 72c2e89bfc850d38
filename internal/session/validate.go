package session

import (
	"fmt"
	"regexp"
)

// Session names become directory names under BaseDir, so the character set
// stays deliberately narrow.
const maxNameLength = 64

var namePattern = regexp.MustCompile(`^[a-z0-9_-]+$`)

// ValidateName reports whether name is usable as a session name.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("session name is empty")
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("session name %q is longer than %d characters", name, maxNameLength)
	}
	if !namePattern.MatchString(name) {
		return fmt.Errorf("session name %q: only lowercase letters, digits, '-' and '_' are allowed", name)
	}
	return nil
}

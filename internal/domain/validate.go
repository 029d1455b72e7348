package domain

import (
	"fmt"
	"strings"
)

// IsBlank reports whether an identifier is empty or whitespace only.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// ValidateSeed checks the arguments of StateStore.Initialize.
func ValidateSeed(seedOptions []string, hostUsername string) error {
	if IsBlank(hostUsername) {
		return fmt.Errorf("%w: host username is required", ErrInvalidInput)
	}
	if len(seedOptions) == 0 {
		return fmt.Errorf("%w: at least one poll option is required", ErrInvalidInput)
	}
	seen := make(map[string]struct{}, len(seedOptions))
	for _, option := range seedOptions {
		if IsBlank(option) {
			return fmt.Errorf("%w: poll option must not be blank", ErrInvalidInput)
		}
		if _, dup := seen[option]; dup {
			return fmt.Errorf("%w: duplicate poll option %q", ErrInvalidInput, option)
		}
		seen[option] = struct{}{}
	}
	return nil
}

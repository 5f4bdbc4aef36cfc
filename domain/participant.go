// Package domain contains core concepts of the chat relay.
// This file defines participant names and the rules that make them canonical.
// No runtime, network, or UI logic should be added here.
package domain

import (
	"chat-relay/errors"
	"regexp"
	"strings"
)

// ClientName is a canonical participant name, used as the unique registry key.
type ClientName string

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_-]*$`)

// ValidateName turns a raw input line into a canonical ClientName.
// Only the part before the first space is kept and it is truncated to maxLen characters.
// The registry is not consulted: uniqueness is the caller's concern.
func ValidateName(raw string, maxLen int) (ClientName, error) {
	if raw == "" {
		return "", errors.ErrEmptyName
	}

	candidate, _, _ := strings.Cut(raw, " ")
	if runes := []rune(candidate); len(runes) > maxLen {
		candidate = string(runes[:maxLen])
	}
	if candidate == "" {
		return "", errors.ErrEmptyName
	}

	if !namePattern.MatchString(candidate) {
		return "", errors.ErrInvalidNameSyntax
	}
	return ClientName(candidate), nil
}

func (n ClientName) String() string {
	return string(n)
}

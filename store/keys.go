package store

import (
	"fmt"
	"regexp"
	"strings"
)

// PrivatePrefix marks keys that never become configuration entries; they are
// filtered when a scope's bindings are harvested.
const PrivatePrefix = "_"

var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][_a-zA-Z0-9]*$`)

// KeyRules controls which keys are accepted as path segments.
type KeyRules struct {
	// EnforceCompatible rejects keys containing the path separator or
	// starting with "$", which break document-store storage backends.
	EnforceCompatible bool
	// EnforceNoEquals rejects keys containing "=", reserved for the
	// command-line update syntax.
	EnforceNoEquals bool
	// EnforceIdentifier rejects keys that are not valid identifiers.
	EnforceIdentifier bool
	// Strict makes violations errors; otherwise callers should only warn.
	Strict bool
}

// DefaultKeyRules mirrors the default storage-compatibility posture:
// separator/equals enforcement on, identifier enforcement off, strict.
func DefaultKeyRules() KeyRules {
	return KeyRules{
		EnforceCompatible: true,
		EnforceNoEquals:   true,
		Strict:            true,
	}
}

// InvalidKeyError reports a key that violates the active rules.
type InvalidKeyError struct {
	Key    string
	Reason string
}

func (e *InvalidKeyError) Error() string {
	return fmt.Sprintf("store: invalid key %q: %s", e.Key, e.Reason)
}

// ValidateKey checks a single path segment against the rules. It returns the
// violation regardless of Strict; the caller decides whether to fail or warn.
func ValidateKey(key string, rules KeyRules) error {
	if key == "" {
		return &InvalidKeyError{Key: key, Reason: "must not be empty"}
	}
	if rules.EnforceCompatible {
		if strings.Contains(key, Separator) {
			return &InvalidKeyError{Key: key, Reason: "must not contain " + Separator}
		}
		if strings.HasPrefix(key, "$") {
			return &InvalidKeyError{Key: key, Reason: "must not start with $"}
		}
	}
	if rules.EnforceNoEquals && strings.Contains(key, "=") {
		return &InvalidKeyError{Key: key, Reason: "must not contain ="}
	}
	if rules.EnforceIdentifier && !identifierPattern.MatchString(key) {
		return &InvalidKeyError{Key: key, Reason: "must be a valid identifier"}
	}
	return nil
}

// IsPrivate reports whether a key carries the private marker.
func IsPrivate(key string) bool {
	return strings.HasPrefix(key, PrivatePrefix)
}

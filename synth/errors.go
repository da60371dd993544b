package synth

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidSecurityIdentifier is matched by every *SecurityError.
var ErrInvalidSecurityIdentifier = errors.New("synth: invalid security identifier")

// ErrNoStore is returned by New when no DocumentStore is given.
var ErrNoStore = errors.New("synth: document store must not be nil")

// SecurityError reports a security identifier outside the allowed set.
type SecurityError struct {
	Identifier string
}

func (e *SecurityError) Error() string {
	return fmt.Sprintf("synth: %q is not a valid security identifier, allowed: %s",
		e.Identifier, strings.Join(AllowedSecurity(), ", "))
}

// Is reports whether target is ErrInvalidSecurityIdentifier.
func (e *SecurityError) Is(target error) bool {
	return target == ErrInvalidSecurityIdentifier
}

// server/domain/errors.go
package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidID matches any *InvalidIDError.
	ErrInvalidID = errors.New("invalid memory id")
	// ErrConnection marks failures to reach the store.
	ErrConnection = errors.New("store unreachable")
)

// ValidationError lists required fields that were missing or empty.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required fields: %s", strings.Join(e.Missing, ", "))
}

// InvalidIDError is returned when an identifier cannot be parsed into the
// store's native id type.
type InvalidIDError struct {
	ID  string
	Err error
}

func (e *InvalidIDError) Error() string {
	return fmt.Sprintf("invalid memory id %q", e.ID)
}

func (e *InvalidIDError) Is(target error) bool { return target == ErrInvalidID }

func (e *InvalidIDError) Unwrap() error { return e.Err }

// RequireFields checks fields in the given order and returns a
// *ValidationError naming every empty one, or nil.
func RequireFields(values map[string]string, order ...string) error {
	var missing []string
	for _, name := range order {
		if values[name] == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &ValidationError{Missing: missing}
}

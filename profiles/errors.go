package profiles

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// ErrUnknownNetwork is returned when a profile request failed without a
// more specific error.
var ErrUnknownNetwork = errors.New("unknown network error")

// ThrottledError is returned when a recipient was fetched within the
// throttle window. No request was made.
type ThrottledError struct {
	LastTimeInterval time.Duration
}

func (e ThrottledError) Error() string {
	return fmt.Sprintf("profile fetch throttled, last fetch %s ago", e.LastTimeInterval)
}

// ValidationErrorKind tells which part of a profile response was malformed.
type ValidationErrorKind int

const (
	Invalid ValidationErrorKind = iota
	InvalidIdentityKey
	InvalidProfileName
)

func (k ValidationErrorKind) String() string {
	switch k {
	case InvalidIdentityKey:
		return "invalid identity key"
	case InvalidProfileName:
		return "invalid profile name"
	default:
		return "invalid"
	}
}

// ValidationError is returned for a profile response that does not have the
// expected shape. Retrying the same data does not help.
type ValidationError struct {
	Kind        ValidationErrorKind
	Description string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Description)
}

// IsThrottled reports whether err is a ThrottledError.
func IsThrottled(err error) bool {
	var t ThrottledError
	return errors.As(err, &t)
}

// AsValidationError returns the ValidationError in err's chain, if any.
func AsValidationError(err error) (ValidationError, bool) {
	var v ValidationError
	ok := errors.As(err, &v)
	return v, ok
}

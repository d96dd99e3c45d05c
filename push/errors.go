package push

import (
	"fmt"

	"github.com/pkg/errors"
)

// PushNotSupportedError is a terminal condition: this device or
// configuration will never deliver push tokens.
type PushNotSupportedError struct {
	Description string
}

func (e PushNotSupportedError) Error() string {
	return fmt.Sprintf("push not supported: %s", e.Description)
}

// AssertionError signals a broken invariant in the platform glue, such as an
// empty token delivery.
type AssertionError struct {
	Description string
}

func (e AssertionError) Error() string {
	return fmt.Sprintf("push assertion failed: %s", e.Description)
}

// IsPushNotSupported reports whether err, or any error it wraps, is a
// PushNotSupportedError.
func IsPushNotSupported(err error) bool {
	var target PushNotSupportedError
	return errors.As(err, &target)
}

package errors

import (
	"errors"
	"fmt"
)

// Common error types shared across the connection manager
var (
	// Configuration errors
	ErrInvalidConfig     = errors.New("invalid configuration")
	ErrMissingStartURL   = errors.New("start url is required")
	ErrMissingRegion     = errors.New("region is required")
	ErrInvalidPassphrase = errors.New("invalid cache passphrase")

	// Storage errors
	ErrNotFound      = errors.New("not found")
	ErrCorruptRecord = errors.New("corrupt record")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

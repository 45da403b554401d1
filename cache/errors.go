package cache

import (
	goerrors "errors"

	"github.com/agilira/go-errors"
)

// Error codes reported by cache operations.
const (
	ErrCodeInvalidCapacity errors.ErrorCode = "RACACHE_INVALID_CAPACITY"
	ErrCodeInvalidOptions  errors.ErrorCode = "RACACHE_INVALID_OPTIONS"
	ErrCodeClosed          errors.ErrorCode = "RACACHE_CLOSED"
	ErrCodeCanceled        errors.ErrorCode = "RACACHE_CANCELED"
	ErrCodeSessionClosed   errors.ErrorCode = "RACACHE_SESSION_CLOSED"
	ErrCodeLoaderFailed    errors.ErrorCode = "RACACHE_LOADER_FAILED"
)

const (
	msgInvalidCapacity = "invalid capacity: must be greater than 0"
	msgInvalidOptions  = "invalid options"
	msgClosed          = "cache is closed"
	msgCanceled        = "waiting for the key lock was canceled"
	msgSessionClosed   = "change session is already closed"
	msgLoaderFailed    = "loader function failed"
)

// NewErrInvalidCapacity reports a non-positive Options.Capacity.
func NewErrInvalidCapacity(capacity int) error {
	return errors.NewWithContext(ErrCodeInvalidCapacity, msgInvalidCapacity, map[string]interface{}{
		"provided_capacity": capacity,
		"minimum_required":  1,
	})
}

// NewErrInvalidOptions reports an inconsistent Options combination.
func NewErrInvalidOptions(reason string) error {
	return errors.NewWithField(ErrCodeInvalidOptions, msgInvalidOptions, "reason", reason)
}

// NewErrClosed is returned by operations on a disposed cache.
func NewErrClosed(operation string) error {
	return errors.NewWithField(ErrCodeClosed, msgClosed, "operation", operation)
}

// NewErrCanceled wraps the context error that interrupted BeginChange.
func NewErrCanceled(cause error) error {
	return errors.Wrap(cause, ErrCodeCanceled, msgCanceled).AsRetryable()
}

// NewErrSessionClosed is returned by ChangeSession methods after Close.
func NewErrSessionClosed() error {
	return errors.NewWithField(ErrCodeSessionClosed, msgSessionClosed, "operation", "set_value")
}

// NewErrLoaderFailed wraps an error returned by a ReadOrLoad loader.
func NewErrLoaderFailed(cause error) error {
	return errors.Wrap(cause, ErrCodeLoaderFailed, msgLoaderFailed).AsRetryable()
}

// IsClosed reports whether err was caused by a disposed cache.
func IsClosed(err error) bool { return errors.HasCode(err, ErrCodeClosed) }

// IsCanceled reports whether err is a canceled BeginChange acquisition.
func IsCanceled(err error) bool { return errors.HasCode(err, ErrCodeCanceled) }

// IsSessionClosed reports whether err came from a closed ChangeSession.
func IsSessionClosed(err error) bool { return errors.HasCode(err, ErrCodeSessionClosed) }

// IsLoaderError reports whether err wraps a loader failure.
func IsLoaderError(err error) bool { return errors.HasCode(err, ErrCodeLoaderFailed) }

// IsConfigError reports whether err was produced while validating Options.
func IsConfigError(err error) bool {
	var coder errors.ErrorCoder
	if !goerrors.As(err, &coder) {
		return false
	}
	code := coder.ErrorCode()
	return code == ErrCodeInvalidCapacity || code == ErrCodeInvalidOptions
}

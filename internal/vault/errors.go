package vault

import (
	"context"
	"io/fs"
	"time"

	"github.com/tphakala/vaultd/internal/errors"
	"github.com/tphakala/vaultd/internal/securefs"
)

// Reason tags why a vault operation failed. The HTTP layer maps it to a
// status code; the vault itself knows nothing about HTTP.
type Reason string

const (
	ReasonInvalidRequest   Reason = "invalid_request"
	ReasonNotFound         Reason = "not_found"
	ReasonPermissionDenied Reason = "permission_denied"
	ReasonUnknown          Reason = "unknown"
)

// Failure messages returned to callers. The underlying cause is logged,
// never exposed.
const (
	MsgReadFailed       = "Failed to read file"
	MsgWriteFailed      = "Failed to write file"
	MsgMoveFailed       = "Failed to move file"
	MsgDeleteFailed     = "Failed to delete file"
	MsgContentRequired  = "Either content or templatePath is required"
	MsgFilePathRequired = "filePath is required"
	MsgMovePathRequired = "sourcePath and destinationPath are required"
)

// Error is the failure outcome of a vault operation.
type Error struct {
	Reason  Reason
	Message string // safe to show to callers
	Err     error  // underlying cause, for logs only
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ReasonOf extracts the failure reason from err. A nil error has no reason;
// errors that did not come from the vault are ReasonUnknown.
func ReasonOf(err error) Reason {
	if err == nil {
		return ""
	}
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Reason
	}
	return ReasonUnknown
}

// classify maps a filesystem error to a failure reason.
func classify(err error) Reason {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return ReasonNotFound
	case errors.Is(err, fs.ErrPermission):
		return ReasonPermissionDenied
	default:
		return ReasonUnknown
	}
}

// categoryFor picks the enhanced-error category for a reason.
func categoryFor(reason Reason, err error) errors.ErrorCategory {
	switch {
	case reason == ReasonInvalidRequest:
		return errors.CategoryValidation
	case reason == ReasonNotFound:
		return errors.CategoryNotFound
	case reason == ReasonPermissionDenied:
		return errors.CategoryPermission
	case errors.Is(err, securefs.ErrPathTraversal), errors.Is(err, securefs.ErrInvalidPath):
		return errors.CategoryPathSecurity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return errors.CategoryCancellation
	default:
		return errors.CategoryFileIO
	}
}

func invalidRequest(message string) *Error {
	return &Error{
		Reason:  ReasonInvalidRequest,
		Message: message,
		Err: errors.Newf("%s", message).
			Component("vault").
			Category(errors.CategoryValidation).
			Build(),
	}
}

// failure builds the errors of one operation so each carries the target's
// shape and the time spent before it failed.
type failure struct {
	operation string
	message   string
	target    string
	start     time.Time
}

// wrap classifies a filesystem error and hides it behind the operation's
// generic message.
func (f failure) wrap(err error) *Error {
	reason := classify(err)
	category := categoryFor(reason, err)

	b := errors.New(err).
		Component("vault").
		Category(category).
		FileContext(f.target).
		Timing(f.operation, time.Since(f.start))
	if reason == ReasonUnknown && category != errors.CategoryCancellation {
		b = b.Priority(errors.PriorityHigh)
	}

	return &Error{
		Reason:  reason,
		Message: f.message,
		Err:     b.Build(),
	}
}

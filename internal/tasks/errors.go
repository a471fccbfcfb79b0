package tasks

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is the parent of every pre-upload rejection.
	ErrValidation      = errors.New("validation failed")
	ErrFileTooLarge    = fmt.Errorf("%w: file too large", ErrValidation)
	ErrUnsupportedType = fmt.Errorf("%w: unsupported file type", ErrValidation)

	ErrTransport         = errors.New("transport error")
	ErrRegistration      = errors.New("registration failed")
	ErrProcessingFailed  = errors.New("processing failed")
	ErrProcessingTimeout = errors.New("processing timeout")
	ErrCancelled         = errors.New("upload cancelled")

	ErrInvalidTransition = errors.New("invalid state transition")
	ErrAlreadyPolling    = errors.New("upload is already being polled")
	ErrNotTerminal       = errors.New("upload has not finished")
	ErrUnknownUpload     = errors.New("unknown upload")
	ErrDuplicateKey      = errors.New("duplicate tracking key")
	ErrClosed            = errors.New("coordinator closed")
)

// kindError pairs a user-facing message with a sentinel kind and an optional cause.
type kindError struct {
	kind  error
	msg   string
	cause error
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() []error {
	if e.cause == nil {
		return []error{e.kind}
	}
	return []error{e.kind, e.cause}
}

func newKindError(kind error, msg string, cause error) error {
	return &kindError{kind: kind, msg: msg, cause: cause}
}

func transportError(cause error) error {
	return newKindError(ErrTransport, fmt.Sprintf("Upload failed: %v", cause), cause)
}

func registrationError(cause error) error {
	return newKindError(ErrRegistration, fmt.Sprintf("Registration failed: %v", cause), cause)
}

func statusError(cause error) error {
	return newKindError(ErrTransport, fmt.Sprintf("Status check failed: %v", cause), cause)
}

func processingFailedError() error {
	return newKindError(ErrProcessingFailed, "File processing failed", nil)
}

func processingTimeoutError() error {
	return newKindError(ErrProcessingTimeout, "Processing timeout", nil)
}

func cancelledError() error {
	return newKindError(ErrCancelled, "Upload cancelled", nil)
}

// UploadError is reported to callers for every failed file, including rejected ones.
//
// Key is empty for files rejected before tracking.
type UploadError struct {
	Key      string
	Filename string
	Err      error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("%s: %v", e.Filename, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// Detail is the message without the filename.
func (e *UploadError) Detail() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

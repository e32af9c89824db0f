package services

import "errors"

var (
	// ErrInvalidParticipant is a fail-fast refusal of the conversation
	// key resolver; empty ids would produce a degenerate key.
	ErrInvalidParticipant = errors.New("invalid participant")
	ErrInvalidInput       = errors.New("invalid input")
	ErrForbidden          = errors.New("forbidden")
	ErrUserNotFound       = errors.New("user not found")
	// ErrStoreUnavailable wraps transient backend failures. The caller
	// keeps the user's drafted input and offers a retry.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrAttachmentUploadFailed aborts a send before any message
	// document exists.
	ErrAttachmentUploadFailed = errors.New("attachment upload failed")
)

package chat

import "errors"

var (
	// ErrPermissionDenied signals a store or device access that the current
	// user is not allowed to perform. Not retryable.
	ErrPermissionDenied = errors.New("chat: permission denied")
	// ErrStoreUnavailable signals a transient connectivity failure. Safe to
	// retry; no partial writes are left visible.
	ErrStoreUnavailable = errors.New("chat: store unavailable")
	// ErrUploadFailed aborts a media send before any message write.
	ErrUploadFailed = errors.New("chat: attachment upload failed")
	// ErrSubscriptionFailed marks a live query that could not be established.
	ErrSubscriptionFailed = errors.New("chat: subscription failed")
	// ErrAlreadyRecording is returned when a recording is started while one
	// is in progress. Caller-logic error, not a user-facing failure.
	ErrAlreadyRecording = errors.New("chat: recording already in progress")
	// ErrNotRecording is returned when a clip is requested and none exists.
	ErrNotRecording = errors.New("chat: no recording in progress")
	// ErrNotSignedIn is a hard precondition failure for send/delete operations.
	ErrNotSignedIn = errors.New("chat: no signed-in user")
	// ErrSessionClosed rejects operations on a closed session.
	ErrSessionClosed = errors.New("chat: session closed")
)

package compose

import (
	"fmt"
)

// NotConnectedError means no credential exists for the user. The user must
// re-authenticate; retrying the send cannot help.
type NotConnectedError struct {
	UserID string
}

func (e *NotConnectedError) Error() string {
	return fmt.Sprintf("user %s has no connected mail account", e.UserID)
}

// TransportError means the provider rejected the send or the network failed.
// The message was not delivered; retrying the specific operation is safe.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("message transport failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// LogWriteError means the provider accepted the message but the local message
// row could not be written. The email was delivered; callers must surface
// this distinctly and must NOT re-send.
type LogWriteError struct {
	ProviderID string
	Err        error
}

func (e *LogWriteError) Error() string {
	return fmt.Sprintf("message %s was sent but could not be logged locally: %v", e.ProviderID, e.Err)
}

func (e *LogWriteError) Unwrap() error { return e.Err }

package upstream

import (
	"errors"
	"fmt"
)

// TransportError means the collaborator was unreachable or answered with a
// non-2xx status and no structured body. Local state is never mutated on a
// transport error; retry is a manual user action.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("upstream: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RemoteRejection means the collaborator answered but refused the operation,
// either with success:false or a structured message. The message is surfaced
// verbatim when available.
type RemoteRejection struct {
	Op      string
	Message string
}

func (e *RemoteRejection) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("upstream: %s rejected", e.Op)
	}
	return fmt.Sprintf("upstream: %s rejected: %s", e.Op, e.Message)
}

// IsTransport reports whether err is a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsRejection reports whether err is a RemoteRejection.
func IsRejection(err error) bool {
	var rr *RemoteRejection
	return errors.As(err, &rr)
}

// RejectionMessage returns the server-provided reason, or "" when err is not
// a rejection or carries no message.
func RejectionMessage(err error) string {
	var rr *RemoteRejection
	if errors.As(err, &rr) {
		return rr.Message
	}
	return ""
}

// File: internal/services/orchestrator/errors.go
package orchestrator

import (
	"fmt"

	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/domain"
)

// SessionError is returned for input a session rejects. It unwraps to
// domain.ErrInvalidArgument or domain.ErrSessionClosed.
type SessionError struct {
	SessionID string
	Operation string
	Message   string
	Kind      error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("session %s: %s: %s", e.SessionID, e.Operation, e.Message)
}

func (e *SessionError) Unwrap() error {
	return e.Kind
}

func newInvalidInput(id, op, msg string) *SessionError {
	return &SessionError{SessionID: id, Operation: op, Message: msg, Kind: domain.ErrInvalidArgument}
}

func newClosedError(id, op string) *SessionError {
	return &SessionError{SessionID: id, Operation: op, Message: "session is no longer accepting input", Kind: domain.ErrSessionClosed}
}

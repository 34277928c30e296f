// File: internal/services/pinecone/errors.go
package pinecone

import "fmt"

// PineconeError describes a failed index operation.
type PineconeError struct {
	Type    string
	Message string
	Err     error
}

func (e *PineconeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("pinecone %s error: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("pinecone %s error: %s", e.Type, e.Message)
}

func (e *PineconeError) Unwrap() error {
	return e.Err
}

func NewConnectionError(message string, err error) *PineconeError {
	return &PineconeError{Type: "connection", Message: message, Err: err}
}

func NewOperationError(message string, err error) *PineconeError {
	return &PineconeError{Type: "operation", Message: message, Err: err}
}

func NewConfigError(message string) *PineconeError {
	return &PineconeError{Type: "config", Message: message}
}

func NewTimeoutError(message string, err error) *PineconeError {
	return &PineconeError{Type: "timeout", Message: message, Err: err}
}

func NewRetryError(message string, err error) *PineconeError {
	return &PineconeError{Type: "retry", Message: message, Err: err}
}

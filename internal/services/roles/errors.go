// File: internal/services/roles/errors.go
package roles

import (
	"fmt"

	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/domain"
)

// GenerationError reports a failed or empty generation for one role and task.
type GenerationError struct {
	Role    domain.Role
	Task    domain.Task
	Message string
	Cause   error
}

func (e *GenerationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("generate %s %s: %s: %v", e.Role, e.Task, e.Message, e.Cause)
	}
	return fmt.Sprintf("generate %s %s: %s", e.Role, e.Task, e.Message)
}

func (e *GenerationError) Unwrap() error {
	return e.Cause
}

func (e *GenerationError) Is(target error) bool {
	return target == domain.ErrGeneration
}

func newGenerationError(req domain.ReplyRequest, msg string, cause error) *GenerationError {
	return &GenerationError{Role: req.Role, Task: req.Task, Message: msg, Cause: cause}
}

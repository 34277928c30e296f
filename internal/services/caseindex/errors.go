// File: internal/services/caseindex/errors.go
package caseindex

import (
	"errors"
	"fmt"

	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/domain"
)

type ErrorType string

const (
	ErrTypeInvalidArgument ErrorType = "INVALID_ARGUMENT"
	ErrTypeBuild           ErrorType = "INDEX_BUILD"
	ErrTypeQuery           ErrorType = "INDEX_QUERY"
)

// IndexError reports a failed build or query. errors.Is matches it against
// the corresponding domain error kind.
type IndexError struct {
	Type      ErrorType
	Operation string
	Message   string
	Cause     error
}

func (e *IndexError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("case index %s error in %s: %s: %v", e.Type, e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("case index %s error in %s: %s", e.Type, e.Operation, e.Message)
}

func (e *IndexError) Unwrap() error {
	return e.Cause
}

func (e *IndexError) Is(target error) bool {
	switch e.Type {
	case ErrTypeInvalidArgument:
		return errors.Is(domain.ErrInvalidArgument, target)
	case ErrTypeBuild:
		return errors.Is(domain.ErrIndexBuild, target)
	case ErrTypeQuery:
		return errors.Is(domain.ErrIndexQuery, target)
	}
	return false
}

func NewInvalidArgumentError(operation, msg string) *IndexError {
	return &IndexError{Type: ErrTypeInvalidArgument, Operation: operation, Message: msg}
}

func NewBuildError(msg string, cause error) *IndexError {
	return &IndexError{Type: ErrTypeBuild, Operation: "build", Message: msg, Cause: cause}
}

func NewQueryError(msg string, cause error) *IndexError {
	return &IndexError{Type: ErrTypeQuery, Operation: "query", Message: msg, Cause: cause}
}

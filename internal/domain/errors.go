// File: internal/domain/errors.go
package domain

import "errors"

// Error kinds shared across services. Package-level typed errors report
// these through errors.Is so callers only need to know the kind.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrIndexBuild      = errors.New("index build error")
	ErrIndexQuery      = errors.New("index query error")
	ErrGeneration      = errors.New("generation error")
	ErrSessionClosed   = errors.New("session closed")
	ErrSessionNotFound = errors.New("session not found")
)

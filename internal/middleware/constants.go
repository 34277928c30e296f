// File: internal/middleware/constants.go
package middleware

import "context"

// Context keys for middleware communication
type contextKey string

const (
	ClinicianIDKey contextKey = "clinician_id"
	RequestIDKey   contextKey = "request_id"
)

// ClinicianID returns the authenticated clinician stored by the JWT middleware.
func ClinicianID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ClinicianIDKey).(string)
	return id, ok && id != ""
}

// WithClinicianID stores id as the authenticated clinician.
func WithClinicianID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ClinicianIDKey, id)
}

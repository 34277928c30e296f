// File: internal/services/pinecone/interface.go
package pinecone

import (
	"context"

	"github.com/pinecone-io/go-pinecone/v4/pinecone"
)

// IndexConnection is the subset of *pinecone.IndexConnection the service uses.
type IndexConnection interface {
	UpsertVectors(ctx context.Context, in []*pinecone.Vector) (uint32, error)
	QueryByVectorValues(ctx context.Context, in *pinecone.QueryByVectorValuesRequest) (*pinecone.QueryVectorsResponse, error)
	Close() error
}

// Logger interface for index operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}

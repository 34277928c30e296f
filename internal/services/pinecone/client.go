// File: internal/services/pinecone/client.go
package pinecone

import (
	"github.com/pinecone-io/go-pinecone/v4/pinecone"
)

// Connect opens a data-plane connection to the configured index host and
// namespace.
func Connect(config *Config, logger Logger) (*pinecone.IndexConnection, error) {
	if err := config.Validate(); err != nil {
		return nil, NewConfigError(err.Error())
	}

	pc, err := pinecone.NewClient(pinecone.NewClientParams{
		ApiKey: config.APIKey,
	})
	if err != nil {
		return nil, NewConnectionError("failed to create client", err)
	}

	idx, err := pc.Index(pinecone.NewIndexConnParams{
		Host:      config.IndexHost,
		Namespace: config.Namespace,
	})
	if err != nil {
		return nil, NewConnectionError("failed to connect to index", err)
	}

	logger.Info("pinecone index connection established",
		"host", config.IndexHost,
		"namespace", config.Namespace)
	return idx, nil
}

// File: internal/services/pinecone/repository.go
package pinecone

import (
	"context"

	"github.com/pinecone-io/go-pinecone/v4/pinecone"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	metaCaseID  = "case_id"
	metaIllness = "suspected_illness"
)

// CaseVector is one case embedding to store in the index.
type CaseVector struct {
	CaseID           string
	Values           []float32
	SuspectedIllness string
}

// VectorMatch is a scored hit returned by a similarity query.
type VectorMatch struct {
	ID     string
	CaseID string
	Score  float32
}

// VectorService stores and queries case embeddings.
type VectorService struct {
	conn   IndexConnection
	retry  *RetryService
	config *Config
	logger Logger
}

func NewVectorService(conn IndexConnection, retry *RetryService, config *Config, logger Logger) *VectorService {
	return &VectorService{
		conn:   conn,
		retry:  retry,
		config: config,
		logger: logger,
	}
}

// UpsertCases writes vectors in batches and returns how many were stored.
func (v *VectorService) UpsertCases(ctx context.Context, cases []CaseVector) (int, error) {
	total := 0
	for start := 0; start < len(cases); start += v.config.BatchSize {
		end := start + v.config.BatchSize
		if end > len(cases) {
			end = len(cases)
		}

		batch, err := toVectors(cases[start:end])
		if err != nil {
			return total, NewOperationError("failed to build vector metadata", err)
		}

		var stored uint32
		err = v.retry.Do(ctx, "upsert", func(ctx context.Context) error {
			n, err := v.conn.UpsertVectors(ctx, batch)
			stored = n
			return err
		})
		if err != nil {
			v.logger.Error("upsert batch failed", "batch_start", start, "batch_size", len(batch), "error", err)
			return total, err
		}
		total += int(stored)
		v.logger.Debug("upserted batch", "batch_start", start, "stored", stored)
	}
	v.logger.Info("upserted case vectors", "count", total)
	return total, nil
}

// QuerySimilar returns the topK nearest vectors with their case ids.
func (v *VectorService) QuerySimilar(ctx context.Context, embedding []float32, topK int) ([]VectorMatch, error) {
	var matches []VectorMatch
	err := v.retry.Do(ctx, "query", func(ctx context.Context) error {
		res, err := v.conn.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
			Vector:          embedding,
			TopK:            uint32(topK),
			IncludeMetadata: true,
		})
		if err != nil {
			return NewOperationError("query failed", err)
		}
		matches = fromScoredVectors(res.Matches)
		return nil
	})
	if err != nil {
		return nil, err
	}
	v.logger.Debug("similarity search completed", "top_k", topK, "results_count", len(matches))
	return matches, nil
}

// Close releases the index connection.
func (v *VectorService) Close() error {
	return v.conn.Close()
}

func toVectors(cases []CaseVector) ([]*pinecone.Vector, error) {
	out := make([]*pinecone.Vector, 0, len(cases))
	for _, c := range cases {
		meta, err := structpb.NewStruct(map[string]interface{}{
			metaCaseID:  c.CaseID,
			metaIllness: c.SuspectedIllness,
		})
		if err != nil {
			return nil, err
		}
		values := c.Values
		out = append(out, &pinecone.Vector{
			Id:       c.CaseID,
			Values:   &values,
			Metadata: meta,
		})
	}
	return out, nil
}

func fromScoredVectors(scored []*pinecone.ScoredVector) []VectorMatch {
	out := make([]VectorMatch, 0, len(scored))
	for _, s := range scored {
		if s == nil || s.Vector == nil {
			continue
		}
		caseID := s.Vector.Id
		if s.Vector.Metadata != nil {
			if f, ok := s.Vector.Metadata.GetFields()[metaCaseID]; ok && f.GetStringValue() != "" {
				caseID = f.GetStringValue()
			}
		}
		out = append(out, VectorMatch{ID: s.Vector.Id, CaseID: caseID, Score: s.Score})
	}
	return out
}

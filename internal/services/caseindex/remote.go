// File: internal/services/caseindex/remote.go
package caseindex

import (
	"context"
	"fmt"
	"strings"

	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/domain"
	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/services/pinecone"
)

// VectorQuerier is the remote nearest-neighbour search RemoteIndex relies on.
type VectorQuerier interface {
	QuerySimilar(ctx context.Context, embedding []float32, topK int) ([]pinecone.VectorMatch, error)
}

// RemoteIndex answers queries from a hosted vector index (cosine metric) and
// resolves hits against locally loaded case records.
type RemoteIndex struct {
	embedder Embedder
	vectors  VectorQuerier
	records  map[string]*domain.CaseRecord
	logger   Logger
}

func NewRemoteIndex(embedder Embedder, vectors VectorQuerier, records []domain.CaseRecord, logger Logger) *RemoteIndex {
	byID := make(map[string]*domain.CaseRecord, len(records))
	for i := range records {
		rec := records[i]
		byID[rec.CaseID] = &rec
	}
	return &RemoteIndex{
		embedder: embedder,
		vectors:  vectors,
		records:  byID,
		logger:   logger,
	}
}

func (r *RemoteIndex) Len() int { return len(r.records) }

func (r *RemoteIndex) Query(ctx context.Context, text string, k int) ([]Match, error) {
	if k <= 0 {
		return nil, NewInvalidArgumentError("query", fmt.Sprintf("k must be positive, got %d", k))
	}
	if len(r.records) == 0 {
		return []Match{}, nil
	}
	if strings.TrimSpace(text) == "" {
		return nil, NewInvalidArgumentError("query", "query text is empty")
	}

	v, err := r.embedder.CreateEmbedding(ctx, text)
	if err != nil {
		return nil, NewQueryError("failed to embed query", err)
	}
	hits, err := r.vectors.QuerySimilar(ctx, v, k)
	if err != nil {
		return nil, NewQueryError("remote search failed", err)
	}

	matches := make([]Match, 0, len(hits))
	for _, h := range hits {
		rec, ok := r.records[h.CaseID]
		if !ok {
			r.logger.Warn("remote match has no local case record", "case_id", h.CaseID, "vector_id", h.ID)
			continue
		}
		matches = append(matches, Match{Case: rec, Similarity: clampUnit(float64(h.Score))})
	}
	SortMatches(matches)
	if k < len(matches) {
		matches = matches[:k]
	}
	return matches, nil
}

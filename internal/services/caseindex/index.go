// File: internal/services/caseindex/index.go
package caseindex

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/domain"
)

// Embedder turns text into a vector.
type Embedder interface {
	CreateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// Querier answers k-nearest-case queries. Implemented by the in-memory Index
// and by RemoteIndex.
type Querier interface {
	Query(ctx context.Context, text string, k int) ([]Match, error)
}

// Logger is the logging contract this package needs.
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}

// Match pairs a case with its similarity to the query, in [0,1].
type Match struct {
	Case       *domain.CaseRecord
	Similarity float64
}

type Config struct {
	// Number of records embedded in parallel during Build.
	BuildConcurrency int
}

func DefaultConfig() *Config {
	return &Config{BuildConcurrency: 4}
}

func (c *Config) Validate() error {
	if c.BuildConcurrency < 1 {
		return fmt.Errorf("build concurrency must be at least 1")
	}
	return nil
}

// Index is an immutable in-memory cosine index over case records. It is safe
// for concurrent use once built.
type Index struct {
	records  []*domain.CaseRecord
	vectors  [][]float32
	byID     map[string]int
	dim      int
	embedder Embedder
	logger   Logger
}

// Stats summarises the index contents.
type Stats struct {
	TotalCases     int            `json:"total_cases"`
	Dimensions     int            `json:"dimensions"`
	TotalQuestions int            `json:"total_questions"`
	Illnesses      map[string]int `json:"illnesses"`
}

// Build embeds every record that lacks a precomputed vector and assembles the
// index. Records with neither text nor a vector are skipped.
func Build(ctx context.Context, embedder Embedder, records []domain.CaseRecord, config *Config, logger Logger) (*Index, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, NewBuildError("invalid configuration", err)
	}

	owned := make([]*domain.CaseRecord, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for i := range records {
		rec := records[i]
		rec.CaseID = strings.TrimSpace(rec.CaseID)
		if rec.CaseID == "" {
			return nil, NewBuildError(fmt.Sprintf("record %d has no case_id", i), nil)
		}
		if _, dup := seen[rec.CaseID]; dup {
			return nil, NewBuildError(fmt.Sprintf("duplicate case_id %q", rec.CaseID), nil)
		}
		seen[rec.CaseID] = struct{}{}

		if len(rec.Embedding) == 0 && strings.TrimSpace(rec.DiscourseText()) == "" {
			logger.Warn("skipping case without text or embedding", "case_id", rec.CaseID)
			continue
		}
		owned = append(owned, &rec)
	}

	if err := embedMissing(ctx, embedder, owned, config.BuildConcurrency); err != nil {
		return nil, err
	}

	idx := &Index{
		records:  owned,
		vectors:  make([][]float32, len(owned)),
		byID:     make(map[string]int, len(owned)),
		embedder: embedder,
		logger:   logger,
	}
	for i, rec := range owned {
		if idx.dim == 0 {
			idx.dim = len(rec.Embedding)
		}
		if len(rec.Embedding) != idx.dim {
			return nil, NewBuildError(fmt.Sprintf("dimension mismatch for case %q: got %d, want %d",
				rec.CaseID, len(rec.Embedding), idx.dim), nil)
		}
		unit, ok := normalize(rec.Embedding)
		if !ok {
			return nil, NewBuildError(fmt.Sprintf("zero vector for case %q", rec.CaseID), nil)
		}
		idx.vectors[i] = unit
		idx.byID[rec.CaseID] = i
	}

	logger.Info("case index built", "cases", len(owned), "dimensions", idx.dim)
	return idx, nil
}

func embedMissing(ctx context.Context, embedder Embedder, records []*domain.CaseRecord, limit int) error {
	var pending []*domain.CaseRecord
	for _, rec := range records {
		if len(rec.Embedding) == 0 {
			pending = append(pending, rec)
		}
	}
	if len(pending) == 0 {
		return nil
	}
	if embedder == nil {
		return NewBuildError(fmt.Sprintf("%d cases have no embedding and no embedder is configured", len(pending)), nil)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, rec := range pending {
		g.Go(func() error {
			v, err := embedder.CreateEmbedding(gctx, rec.DiscourseText())
			if err != nil {
				return NewBuildError(fmt.Sprintf("failed to embed case %q", rec.CaseID), err)
			}
			rec.Embedding = v
			return nil
		})
	}
	return g.Wait()
}

// Query embeds text and returns the k most similar cases.
func (i *Index) Query(ctx context.Context, text string, k int) ([]Match, error) {
	if k <= 0 {
		return nil, NewInvalidArgumentError("query", fmt.Sprintf("k must be positive, got %d", k))
	}
	if len(i.records) == 0 {
		return []Match{}, nil
	}
	if strings.TrimSpace(text) == "" {
		return nil, NewInvalidArgumentError("query", "query text is empty")
	}
	if i.embedder == nil {
		return nil, NewQueryError("no embedder configured", nil)
	}

	v, err := i.embedder.CreateEmbedding(ctx, text)
	if err != nil {
		return nil, NewQueryError("failed to embed query", err)
	}
	return i.QueryVector(v, k)
}

// QueryVector ranks cases against an already computed embedding.
func (i *Index) QueryVector(vector []float32, k int) ([]Match, error) {
	if k <= 0 {
		return nil, NewInvalidArgumentError("query", fmt.Sprintf("k must be positive, got %d", k))
	}
	if len(i.records) == 0 {
		return []Match{}, nil
	}
	if len(vector) != i.dim {
		return nil, NewQueryError(fmt.Sprintf("query dimension %d does not match index dimension %d", len(vector), i.dim), nil)
	}
	q, ok := normalize(vector)
	if !ok {
		return nil, NewQueryError("query vector is zero", nil)
	}

	matches := make([]Match, len(i.records))
	for n, rec := range i.records {
		matches[n] = Match{Case: rec, Similarity: clampUnit(dot(q, i.vectors[n]))}
	}
	SortMatches(matches)
	if k < len(matches) {
		matches = matches[:k]
	}
	return matches, nil
}

// SortMatches orders by similarity descending, then by case id ascending.
func SortMatches(matches []Match) {
	sort.SliceStable(matches, func(a, b int) bool {
		if matches[a].Similarity != matches[b].Similarity {
			return matches[a].Similarity > matches[b].Similarity
		}
		return matches[a].Case.CaseID < matches[b].Case.CaseID
	})
}

// Get returns the record with the given id.
func (i *Index) Get(caseID string) (*domain.CaseRecord, bool) {
	n, ok := i.byID[caseID]
	if !ok {
		return nil, false
	}
	return i.records[n], true
}

func (i *Index) Len() int        { return len(i.records) }
func (i *Index) Dimensions() int { return i.dim }

// Records returns the indexed records in build order.
func (i *Index) Records() []*domain.CaseRecord {
	out := make([]*domain.CaseRecord, len(i.records))
	copy(out, i.records)
	return out
}

func (i *Index) Stats() Stats {
	s := Stats{TotalCases: len(i.records), Dimensions: i.dim, Illnesses: map[string]int{}}
	for _, rec := range i.records {
		s.TotalQuestions += len(rec.RecommendedQuestions)
		if ill := strings.TrimSpace(rec.SuspectedIllness); ill != "" {
			s.Illnesses[ill]++
		}
	}
	return s
}

func normalize(v []float32) ([]float32, bool) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return nil, false
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(v))
	for n, x := range v {
		out[n] = float32(float64(x) / norm)
	}
	return out, true
}

func dot(a, b []float32) float64 {
	var s float64
	for n := range a {
		s += float64(a[n]) * float64(b[n])
	}
	return s
}

func clampUnit(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

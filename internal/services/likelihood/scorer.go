// File: internal/services/likelihood/scorer.go
package likelihood

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/domain"
	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/services/caseindex"
)

// Logger is the logging contract this package needs.
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}

const (
	noteNoEvidence   = "no clinician or patient utterances to analyze"
	noteNoMatches    = "no similar cases found; likelihood is zero-confidence"
	noteIndexFailure = "case index unavailable; likelihood is zero-confidence"
)

// Scorer turns a conversation into similarity-weighted disease percentages.
type Scorer struct {
	index  caseindex.Querier
	vocab  Vocabulary
	config *Config
	logger Logger
}

func NewScorer(index caseindex.Querier, vocab Vocabulary, config *Config, logger Logger) (*Scorer, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid likelihood configuration: %w", err)
	}
	if vocab == nil {
		vocab = NewLexiconVocabulary(nil)
	}
	return &Scorer{index: index, vocab: vocab, config: config, logger: logger}, nil
}

// Score computes a report for a conversation snapshot. The same snapshot
// scored against the same index always yields an identical report.
//
// When the index query fails the zero-confidence report is returned together
// with the error, so callers can show it without caching it.
func (s *Scorer) Score(ctx context.Context, conv *domain.ConversationState) (*domain.LikelihoodReport, error) {
	if conv == nil {
		return nil, fmt.Errorf("%w: conversation is nil", domain.ErrInvalidArgument)
	}

	evidence := evidenceText(conv.Utterances)
	report := &domain.LikelihoodReport{
		SessionID:   conv.ID,
		Symptoms:    s.vocab.Extract(evidence),
		TopDiseases: []domain.DiseaseScore{},
		AnalyzedAt:  conv.UpdatedAt,
	}
	if evidence == "" {
		report.Note = noteNoEvidence
		return report, nil
	}

	matches, err := s.index.Query(ctx, evidence, s.config.TopK)
	if err != nil {
		s.logger.Warn("likelihood query failed", "session_id", conv.ID, "error", err)
		report.Note = noteIndexFailure
		return report, err
	}

	s.aggregate(report, matches)
	s.logger.Debug("likelihood scored",
		"session_id", conv.ID,
		"matches", len(matches),
		"diseases", len(report.TopDiseases),
		"cancer_pct", report.CancerLikelihoodPct)
	return report, nil
}

func (s *Scorer) aggregate(report *domain.LikelihoodReport, matches []caseindex.Match) {
	var total, cancer float64
	weights := make(map[string]float64)
	for _, m := range matches {
		sim := math.Max(m.Similarity, 0)
		total += sim
		report.Matches = append(report.Matches, domain.CaseMatch{
			CaseID:           m.Case.CaseID,
			Similarity:       sim,
			SuspectedIllness: m.Case.SuspectedIllness,
		})
		if name := strings.TrimSpace(m.Case.SuspectedIllness); name != "" {
			weights[name] += sim
		}
		if s.isCancerCase(m.Case) {
			cancer += sim
		}
	}
	if total <= 0 {
		report.Note = noteNoMatches
		return
	}

	names := make([]string, 0, len(weights))
	for name := range weights {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if weights[names[i]] != weights[names[j]] {
			return weights[names[i]] > weights[names[j]]
		}
		return names[i] < names[j]
	})
	if s.config.MaxDiseases > 0 && len(names) > s.config.MaxDiseases {
		names = names[:s.config.MaxDiseases]
	}
	for _, name := range names {
		report.TopDiseases = append(report.TopDiseases, domain.DiseaseScore{
			Name: name,
			Pct:  percent(weights[name], total),
		})
	}
	report.CancerLikelihoodPct = percent(cancer, total)
}

func (s *Scorer) isCancerCase(c *domain.CaseRecord) bool {
	if strings.Contains(strings.ToLower(c.SuspectedIllness), strings.ToLower(s.config.CancerTerm)) {
		return true
	}
	return s.config.CancerRedFlag != "" && c.HasRedFlag(s.config.CancerRedFlag)
}

// percent floors to one decimal so that shares of one total never sum past 100.
func percent(part, total float64) float64 {
	p := math.Floor(100*part/total*10+1e-9) / 10
	return math.Min(math.Max(p, 0), 100)
}

func evidenceText(utterances []domain.Utterance) string {
	parts := make([]string, 0, len(utterances))
	for _, u := range utterances {
		if u.Role != domain.RolePatient && u.Role != domain.RoleClinician {
			continue
		}
		if t := strings.TrimSpace(u.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// File: internal/services/recommender/engine.go
package recommender

import (
	"context"
	"fmt"
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

// Request describes one recommendation query.
type Request struct {
	Context       []domain.Utterance
	Asked         domain.QuestionSet
	Language      domain.Language
	FirstTurnHint bool
}

// Engine picks the next question to ask from the questions of similar cases.
// It holds no per-session state.
type Engine struct {
	index  caseindex.Querier
	config *Config
	logger Logger
}

func NewEngine(index caseindex.Querier, config *Config, logger Logger) (*Engine, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid recommender configuration: %w", err)
	}
	return &Engine{index: index, config: config, logger: logger}, nil
}

// sizer is implemented by indexes that know how many cases they hold.
type sizer interface {
	Len() int
}

type candidate struct {
	id         string
	caseID     string
	question   domain.BilingualText
	similarity float64
	caseRank   int
	position   int
}

// Recommend returns the best unasked question, or nil when the index has no
// matches or every candidate question has already been asked.
func (e *Engine) Recommend(ctx context.Context, req Request) (*domain.Recommendation, error) {
	if sized, ok := e.index.(sizer); ok && sized.Len() == 0 {
		e.logger.Debug("case index is empty")
		return nil, nil
	}
	firstTurn := req.FirstTurnHint || spokenCount(req.Context) <= e.config.MinContextUtterances
	query := e.buildQuery(req.Context, firstTurn)
	if query == "" {
		return nil, fmt.Errorf("%w: recommendation needs at least one utterance with text", domain.ErrInvalidArgument)
	}

	matches, err := e.index.Query(ctx, query, e.config.CandidateCases)
	if err != nil {
		e.logger.Warn("case index query failed", "error", err)
		return nil, err
	}
	if len(matches) == 0 {
		e.logger.Debug("no similar cases found")
		return nil, nil
	}

	candidates := rank(matches, req.Asked)
	if len(candidates) == 0 {
		e.logger.Info("all candidate questions already asked", "cases", len(matches))
		return nil, nil
	}

	best := candidates[0]
	text, isSwahili := best.question.Text(req.Language)
	rec := &domain.Recommendation{
		ID:         best.id,
		CaseID:     best.caseID,
		Question:   best.question,
		Text:       text,
		IsSwahili:  isSwahili,
		Similarity: best.similarity,
	}
	e.logger.Debug("recommendation selected",
		"question_id", rec.ID,
		"similarity", rec.Similarity,
		"first_turn", firstTurn,
		"candidates", len(candidates))
	return rec, nil
}

// rank flattens the questions of the matched cases, drops asked and repeated
// ones and orders the rest by case similarity, then list position.
func rank(matches []caseindex.Match, asked domain.QuestionSet) []candidate {
	seen := make(domain.QuestionSet)
	var out []candidate
	for caseRank, m := range matches {
		for pos, q := range m.Case.RecommendedQuestions {
			if q.Question.IsZero() {
				continue
			}
			id := domain.QuestionID(m.Case.CaseID, pos)
			if asked.Contains(id, q.Question) || seen.Contains("", q.Question) {
				continue
			}
			seen.Add(domain.QuestionKeys("", q.Question)...)
			out = append(out, candidate{
				id:         id,
				caseID:     m.Case.CaseID,
				question:   q.Question,
				similarity: m.Similarity,
				caseRank:   caseRank,
				position:   pos,
			})
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].similarity != out[b].similarity {
			return out[a].similarity > out[b].similarity
		}
		if out[a].caseRank != out[b].caseRank {
			return out[a].caseRank < out[b].caseRank
		}
		return out[a].position < out[b].position
	})
	return out
}

// buildQuery uses the opening statement on a first turn and the most recent
// patient utterances otherwise.
func (e *Engine) buildQuery(utterances []domain.Utterance, firstTurn bool) string {
	if firstTurn {
		for _, u := range utterances {
			if u.Role == domain.RolePatient && strings.TrimSpace(u.Text) != "" {
				return strings.TrimSpace(u.Text)
			}
		}
		for _, u := range utterances {
			if isSpoken(u) {
				return strings.TrimSpace(u.Text)
			}
		}
		return ""
	}

	if q := recentText(utterances, e.config.ContextWindow, func(u domain.Utterance) bool {
		return u.Role == domain.RolePatient
	}); q != "" {
		return q
	}
	return recentText(utterances, e.config.ContextWindow, isSpoken)
}

func recentText(utterances []domain.Utterance, window int, keep func(domain.Utterance) bool) string {
	var picked []string
	for i := len(utterances) - 1; i >= 0 && len(picked) < window; i-- {
		u := utterances[i]
		if keep(u) && strings.TrimSpace(u.Text) != "" {
			picked = append(picked, strings.TrimSpace(u.Text))
		}
	}
	for l, r := 0, len(picked)-1; l < r; l, r = l+1, r-1 {
		picked[l], picked[r] = picked[r], picked[l]
	}
	return strings.Join(picked, " ")
}

func isSpoken(u domain.Utterance) bool {
	return (u.Role == domain.RolePatient || u.Role == domain.RoleClinician) && strings.TrimSpace(u.Text) != ""
}

func spokenCount(utterances []domain.Utterance) int {
	n := 0
	for _, u := range utterances {
		if isSpoken(u) {
			n++
		}
	}
	return n
}

// File: internal/domain/recommendation.go
package domain

// Recommendation is a candidate next question drawn from a similar case.
// It is never persisted on its own.
type Recommendation struct {
	ID         string        `json:"id"`
	CaseID     string        `json:"case_id"`
	Question   BilingualText `json:"question"`
	Text       string        `json:"text"`
	IsSwahili  bool          `json:"is_swahili"`
	Similarity float64       `json:"similarity"`
}

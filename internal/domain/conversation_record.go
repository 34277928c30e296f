// File: internal/domain/conversation_record.go
package domain

import "time"

// Conversation is the persisted header of a session. Messages are stored
// separately and keyed by ConversationID.
type Conversation struct {
	ID          string            `gorm:"primaryKey;size:36"`
	OwnerID     string            `gorm:"size:64;index"`
	Mode        string            `gorm:"size:16;not null"`
	Language    string            `gorm:"size:16;not null"`
	Status      string            `gorm:"size:16;not null"`
	Policy      string            `gorm:"size:16"`
	AutoRespond bool
	AskedKeys   []string          `gorm:"serializer:json"`
	Pending     []PendingQuestion `gorm:"serializer:json"`
	// Timestamps mirror the conversation state rather than the row.
	CreatedAt time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt time.Time `gorm:"autoUpdateTime:false"`
}

// LikelihoodSnapshot is the last computed likelihood report of a conversation.
type LikelihoodSnapshot struct {
	ConversationID      string         `gorm:"primaryKey;size:36"`
	Symptoms            map[string]int `gorm:"serializer:json"`
	TopDiseases         []DiseaseScore `gorm:"serializer:json"`
	CancerLikelihoodPct float64
	Matches             []CaseMatch `gorm:"serializer:json"`
	Note                string
	AnalyzedAt          time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Report converts the snapshot back into a report.
func (s *LikelihoodSnapshot) Report() *LikelihoodReport {
	return &LikelihoodReport{
		SessionID:           s.ConversationID,
		Symptoms:            s.Symptoms,
		TopDiseases:         s.TopDiseases,
		CancerLikelihoodPct: s.CancerLikelihoodPct,
		Matches:             s.Matches,
		Note:                s.Note,
		AnalyzedAt:          s.AnalyzedAt,
	}
}

// NewLikelihoodSnapshot captures a report for persistence.
func NewLikelihoodSnapshot(r *LikelihoodReport) *LikelihoodSnapshot {
	return &LikelihoodSnapshot{
		ConversationID:      r.SessionID,
		Symptoms:            r.Symptoms,
		TopDiseases:         r.TopDiseases,
		CancerLikelihoodPct: r.CancerLikelihoodPct,
		Matches:             r.Matches,
		Note:                r.Note,
		AnalyzedAt:          r.AnalyzedAt,
	}
}

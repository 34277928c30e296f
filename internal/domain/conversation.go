// File: internal/domain/conversation.go
package domain

import (
	"fmt"
	"strings"
	"time"
)

// Role identifies who authored an utterance.
type Role string

const (
	RoleClinician Role = "clinician"
	RolePatient   Role = "patient"
	RoleListener  Role = "listener"
	RoleSystem    Role = "system"
)

// Mode is the interaction mode of a session.
type Mode string

const (
	ModeTurnBased Mode = "turn_based"
	ModeSimulated Mode = "simulated"
	ModeLive      Mode = "live"
)

// Language selects how questions and generated replies are rendered.
type Language string

const (
	LanguageEnglish   Language = "english"
	LanguageSwahili   Language = "swahili"
	LanguageBilingual Language = "bilingual"
)

// SessionStatus is the lifecycle state of a conversation.
type SessionStatus string

const (
	StatusIdle       SessionStatus = "idle"
	StatusActive     SessionStatus = "active"
	StatusFinalizing SessionStatus = "finalizing"
	StatusClosed     SessionStatus = "closed"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleClinician, RolePatient, RoleListener, RoleSystem:
		return r, nil
	}
	return "", fmt.Errorf("%w: unknown role %q", ErrInvalidArgument, s)
}

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeTurnBased, ModeSimulated, ModeLive:
		return m, nil
	case "":
		return ModeTurnBased, nil
	}
	return "", fmt.Errorf("%w: unknown mode %q", ErrInvalidArgument, s)
}

func ParseLanguage(s string) (Language, error) {
	switch l := Language(strings.ToLower(strings.TrimSpace(s))); l {
	case LanguageEnglish, LanguageSwahili, LanguageBilingual:
		return l, nil
	case "":
		return LanguageBilingual, nil
	}
	return "", fmt.Errorf("%w: unknown language %q", ErrInvalidArgument, s)
}

// Utterance is one line of the conversation. Immutable once appended.
type Utterance struct {
	Role      Role           `json:"role"`
	Text      string         `json:"text"`
	Variants  *BilingualText `json:"variants,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// QuestionSet tracks question identities. A question is recorded under its
// ID and under the normalized text of each language variant, so either
// identity is enough to recognise it later.
type QuestionSet map[string]struct{}

// QuestionKeys returns every identity under which a question is tracked.
func QuestionKeys(id string, q BilingualText) []string {
	keys := make([]string, 0, 3)
	if id != "" {
		keys = append(keys, id)
	}
	if n := NormalizeText(q.English); n != "" {
		keys = append(keys, "text:"+n)
	}
	if n := NormalizeText(q.Swahili); n != "" {
		keys = append(keys, "text:"+n)
	}
	return keys
}

func (s QuestionSet) Add(keys ...string) {
	for _, k := range keys {
		s[k] = struct{}{}
	}
}

func (s QuestionSet) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// Contains reports whether any identity of the question is in the set.
func (s QuestionSet) Contains(id string, q BilingualText) bool {
	for _, k := range QuestionKeys(id, q) {
		if s.Has(k) {
			return true
		}
	}
	return false
}

// Union returns a new set holding the keys of s and every other set.
func (s QuestionSet) Union(others ...QuestionSet) QuestionSet {
	out := make(QuestionSet, len(s))
	for k := range s {
		out[k] = struct{}{}
	}
	for _, o := range others {
		for k := range o {
			out[k] = struct{}{}
		}
	}
	return out
}

// PendingQuestion is a recommendation surfaced to nobody yet (live, unasked policy).
type PendingQuestion struct {
	Recommendation Recommendation `json:"recommendation"`
	AddedAt        time.Time      `json:"added_at"`
}

// ConversationState is the mutable per-session record. It is owned by exactly
// one session and must only be mutated from that session's worker.
type ConversationState struct {
	ID         string            `json:"id"`
	Mode       Mode              `json:"mode"`
	Language   Language          `json:"language"`
	Status     SessionStatus     `json:"status"`
	Utterances []Utterance       `json:"utterances"`
	Asked      QuestionSet       `json:"-"`
	Pending    []PendingQuestion `json:"pending,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
	// Start options kept so an evicted session can resume.
	AutoRespond bool   `json:"auto_respond,omitempty"`
	Policy      string `json:"policy,omitempty"`
}

// NewConversationState creates an idle conversation.
func NewConversationState(id string, mode Mode, lang Language, now time.Time) *ConversationState {
	return &ConversationState{
		ID:        id,
		Mode:      mode,
		Language:  lang,
		Status:    StatusIdle,
		Asked:     make(QuestionSet),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Append adds an utterance and bumps UpdatedAt to its timestamp.
func (c *ConversationState) Append(u Utterance) {
	c.Utterances = append(c.Utterances, u)
	if u.Timestamp.After(c.UpdatedAt) {
		c.UpdatedAt = u.Timestamp
	}
}

// MarkAsked records every identity of the recommendation as asked and drops
// it from the pending list.
func (c *ConversationState) MarkAsked(r Recommendation) {
	if c.Asked == nil {
		c.Asked = make(QuestionSet)
	}
	c.Asked.Add(QuestionKeys(r.ID, r.Question)...)

	kept := c.Pending[:0]
	for _, p := range c.Pending {
		if p.Recommendation.ID != r.ID {
			kept = append(kept, p)
		}
	}
	c.Pending = kept
}

// PendingSet returns the identities of all pending questions.
func (c *ConversationState) PendingSet() QuestionSet {
	set := make(QuestionSet, len(c.Pending)*2)
	for _, p := range c.Pending {
		set.Add(QuestionKeys(p.Recommendation.ID, p.Recommendation.Question)...)
	}
	return set
}

// LastSpeaker returns the role of the most recent clinician or patient utterance.
func (c *ConversationState) LastSpeaker() (Role, bool) {
	for i := len(c.Utterances) - 1; i >= 0; i-- {
		switch r := c.Utterances[i].Role; r {
		case RoleClinician, RolePatient:
			return r, true
		}
	}
	return "", false
}

// Turns counts clinician and patient utterances.
func (c *ConversationState) Turns() int {
	n := 0
	for _, u := range c.Utterances {
		if u.Role == RoleClinician || u.Role == RolePatient {
			n++
		}
	}
	return n
}

// Transcript renders clinician, patient and listener lines as "Role: text".
func (c *ConversationState) Transcript() string {
	return RenderTranscript(c.Utterances)
}

// RenderTranscript renders utterances one per line, skipping system lines.
func RenderTranscript(utterances []Utterance) string {
	var b strings.Builder
	for _, u := range utterances {
		if u.Role == RoleSystem || strings.TrimSpace(u.Text) == "" {
			continue
		}
		b.WriteString(roleLabel(u.Role))
		b.WriteString(": ")
		b.WriteString(strings.TrimSpace(u.Text))
		b.WriteString("\n")
	}
	return b.String()
}

// Clone returns a deep copy safe to read from another goroutine.
func (c *ConversationState) Clone() *ConversationState {
	out := *c
	out.Utterances = make([]Utterance, len(c.Utterances))
	copy(out.Utterances, c.Utterances)
	for i, u := range out.Utterances {
		if u.Variants != nil {
			v := *u.Variants
			out.Utterances[i].Variants = &v
		}
	}
	out.Asked = c.Asked.Union()
	out.Pending = make([]PendingQuestion, len(c.Pending))
	copy(out.Pending, c.Pending)
	return &out
}

func roleLabel(r Role) string {
	switch r {
	case RoleClinician:
		return "Clinician"
	case RolePatient:
		return "Patient"
	case RoleListener:
		return "Listener"
	default:
		return string(r)
	}
}

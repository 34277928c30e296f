// File: internal/domain/case.go
package domain

import (
	"fmt"
	"sort"
	"strings"
)

// BilingualText holds the English and Swahili renderings of the same text.
type BilingualText struct {
	English string `json:"english"`
	Swahili string `json:"swahili"`
}

// IsZero reports whether both variants are blank.
func (b BilingualText) IsZero() bool {
	return strings.TrimSpace(b.English) == "" && strings.TrimSpace(b.Swahili) == ""
}

// Text resolves the variant for a language. The second return value is true
// when the result is Swahili because no English text exists.
func (b BilingualText) Text(lang Language) (string, bool) {
	en := strings.TrimSpace(b.English)
	sw := strings.TrimSpace(b.Swahili)

	switch lang {
	case LanguageSwahili:
		if sw != "" {
			return sw, false
		}
		return en, false
	case LanguageBilingual:
		switch {
		case en != "" && sw != "":
			return en + "\n\n" + sw, false
		case en != "":
			return en, false
		default:
			return sw, sw != ""
		}
	default:
		if en != "" {
			return en, false
		}
		return sw, sw != ""
	}
}

// CaseQuestion is one recommended question of a case together with the
// answer the patient gave in the recorded vignette.
type CaseQuestion struct {
	Question BilingualText `json:"question"`
	Response BilingualText `json:"response"`
}

// CaseRecord is a historical clinical vignette used as retrieval ground truth.
// Records are immutable once an index has been built from them.
type CaseRecord struct {
	CaseID               string            `json:"case_id"`
	PatientBackground    BilingualText     `json:"patient_background"`
	ChiefComplaint       BilingualText     `json:"chief_complaint_history"`
	MedicalHistory       BilingualText     `json:"medical_social_history"`
	OpeningStatement     BilingualText     `json:"opening_statement"`
	SuspectedIllness     string            `json:"suspected_illness"`
	RedFlags             map[string]string `json:"red_flags,omitempty"`
	RecommendedQuestions []CaseQuestion    `json:"recommended_questions"`
	Embedding            []float32         `json:"embedding,omitempty"`
}

// QuestionID builds the stable identity of the i-th recommended question of a case.
func QuestionID(caseID string, index int) string {
	return fmt.Sprintf("%s#%d", caseID, index)
}

// DiscourseText concatenates the fields that describe how the case presents
// in conversation. This is the text that gets embedded.
func (c *CaseRecord) DiscourseText() string {
	var parts []string
	add := func(label string, b BilingualText) {
		if s := strings.TrimSpace(b.English); s != "" {
			parts = append(parts, label+": "+s)
		}
		if s := strings.TrimSpace(b.Swahili); s != "" {
			parts = append(parts, label+" (Swahili): "+s)
		}
	}
	add("Patient Background", c.PatientBackground)
	add("Chief Complaint", c.ChiefComplaint)
	add("Medical History", c.MedicalHistory)
	add("Opening Statement", c.OpeningStatement)

	for _, q := range c.RecommendedQuestions {
		if s := strings.TrimSpace(q.Question.English); s != "" {
			parts = append(parts, "Q: "+s)
		}
		if s := strings.TrimSpace(q.Response.English); s != "" {
			parts = append(parts, "A: "+s)
		}
	}

	if len(c.RedFlags) > 0 {
		keys := make([]string, 0, len(c.RedFlags))
		for k := range c.RedFlags {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		flags := make([]string, 0, len(keys))
		for _, k := range keys {
			flags = append(flags, k+": "+c.RedFlags[k])
		}
		parts = append(parts, "Red Flags: "+strings.Join(flags, ", "))
	}
	return strings.Join(parts, " | ")
}

// HasRedFlag reports whether a flag with the given name is present with a
// non-empty value. Names compare case-insensitively.
func (c *CaseRecord) HasRedFlag(name string) bool {
	want := strings.ToLower(strings.TrimSpace(name))
	for k, v := range c.RedFlags {
		if strings.ToLower(strings.TrimSpace(k)) == want && strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}

package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "how long have you had the pain", NormalizeText("  How long, have you had the PAIN?\n"))
	assert.Equal(t, "", NormalizeText("?!"))
	assert.Equal(t, "una maumivu ya kichwa", NormalizeText("Una maumivu ya kichwa?"))
}

func TestMatchesQuestion(t *testing.T) {
	q := "How long have you had the headache?"

	assert.True(t, MatchesQuestion("Okay. How long have you had the headache?", q))
	assert.True(t, MatchesQuestion("and the headache, how long have you had it", q))
	assert.False(t, MatchesQuestion("Do you smoke?", q))
	assert.False(t, MatchesQuestion("", q))
	assert.False(t, MatchesQuestion("anything", ""))
}

func TestBilingualTextResolution(t *testing.T) {
	both := BilingualText{English: "Any fever?", Swahili: "Una homa?"}
	swOnly := BilingualText{Swahili: "Una homa?"}

	text, sw := both.Text(LanguageEnglish)
	assert.Equal(t, "Any fever?", text)
	assert.False(t, sw)

	text, sw = swOnly.Text(LanguageEnglish)
	assert.Equal(t, "Una homa?", text)
	assert.True(t, sw)

	text, _ = both.Text(LanguageSwahili)
	assert.Equal(t, "Una homa?", text)

	text, _ = both.Text(LanguageBilingual)
	assert.Equal(t, "Any fever?\n\nUna homa?", text)
}

func TestParseHelpersRejectUnknownValues(t *testing.T) {
	_, err := ParseMode("radio")
	assert.True(t, errors.Is(err, ErrInvalidArgument))
	_, err = ParseLanguage("french")
	assert.True(t, errors.Is(err, ErrInvalidArgument))
	_, err = ParseRole("nurse")
	assert.True(t, errors.Is(err, ErrInvalidArgument))

	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeTurnBased, m)
	l, err := ParseLanguage("SWAHILI")
	require.NoError(t, err)
	assert.Equal(t, LanguageSwahili, l)
}

func TestConversationStateMarkAskedAndPending(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewConversationState("s1", ModeLive, LanguageEnglish, now)

	rec := Recommendation{ID: "c1#0", CaseID: "c1", Question: BilingualText{English: "Any fever?", Swahili: "Una homa?"}}
	c.Pending = append(c.Pending, PendingQuestion{Recommendation: rec, AddedAt: now})
	assert.True(t, c.PendingSet().Contains("c1#0", rec.Question))

	c.MarkAsked(rec)
	assert.Empty(t, c.Pending)
	assert.True(t, c.Asked.Has("c1#0"))
	assert.True(t, c.Asked.Contains("other#3", BilingualText{English: "any fever"}))
}

func TestConversationStateCloneIsIndependent(t *testing.T) {
	now := time.Now()
	c := NewConversationState("s1", ModeTurnBased, LanguageEnglish, now)
	c.Append(Utterance{Role: RolePatient, Text: "I have a cough", Timestamp: now.Add(time.Second)})
	c.Asked.Add("c1#0")

	snap := c.Clone()
	c.Append(Utterance{Role: RoleClinician, Text: "Since when?", Timestamp: now.Add(2 * time.Second)})
	c.Asked.Add("c1#1")

	assert.Len(t, snap.Utterances, 1)
	assert.False(t, snap.Asked.Has("c1#1"))
	assert.Equal(t, now.Add(time.Second), snap.UpdatedAt)

	role, ok := c.LastSpeaker()
	require.True(t, ok)
	assert.Equal(t, RoleClinician, role)
	assert.Equal(t, 2, c.Turns())
	assert.Equal(t, "Patient: I have a cough\nClinician: Since when?\n", c.Transcript())
}

func TestCaseRecordDiscourseTextAndRedFlags(t *testing.T) {
	rec := CaseRecord{
		CaseID:           "c1",
		ChiefComplaint:   BilingualText{English: "Bleeding after intercourse"},
		OpeningStatement: BilingualText{English: "I bleed sometimes", Swahili: "Ninatokwa damu"},
		RedFlags:         map[string]string{"Possible cancer-related bleeding": "post-coital bleeding", "Weight loss": ""},
	}
	text := rec.DiscourseText()
	assert.Contains(t, text, "Chief Complaint: Bleeding after intercourse")
	assert.Contains(t, text, "Opening Statement (Swahili): Ninatokwa damu")
	assert.Contains(t, text, "Red Flags: ")

	assert.True(t, rec.HasRedFlag("possible cancer-related bleeding"))
	assert.False(t, rec.HasRedFlag("Weight loss"))
	assert.Equal(t, "c1#2", QuestionID("c1", 2))
}

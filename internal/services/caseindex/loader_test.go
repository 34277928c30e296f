package caseindex

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/domain"
)

const sampleCases = `[
  {
    "case_id": "CC-001",
    "patient_background": {"english": "45 year old woman", "swahili": "Mwanamke wa miaka 45"},
    "chief_complaint_history": "Bleeding after intercourse for 3 months",
    "opening_statement": {"english": "I have been bleeding", "swahili": "Nimekuwa nikitokwa damu"},
    "Suspected_illness": {"Cervical cancer": true, "Cervicitis": "", "": true},
    "red_flags": {"Possible cancer-related bleeding": true, "Weight loss": false, "Duration": 3},
    "recommended_questions": [
      {"question": {"english": "When did the bleeding start?", "swahili": "Damu ilianza lini?"},
       "response": {"english": "Three months ago", "swahili": "Miezi mitatu iliyopita"}}
    ]
  },
  {
    "patient_background": "Child with cough",
    "suspected_illness": "Pneumonia",
    "embedding": [0.5, 0.5]
  }
]`

func TestDecodeRecordsHandlesMixedShapes(t *testing.T) {
	records, err := DecodeRecords(strings.NewReader(sampleCases))
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, "CC-001", first.CaseID)
	assert.Equal(t, "Mwanamke wa miaka 45", first.PatientBackground.Swahili)
	assert.Equal(t, "Bleeding after intercourse for 3 months", first.ChiefComplaint.English)
	assert.Equal(t, "Cervical cancer", first.SuspectedIllness)
	assert.Equal(t, map[string]string{"Possible cancer-related bleeding": "true", "Duration": "3"}, first.RedFlags)
	assert.True(t, first.HasRedFlag("Possible cancer-related bleeding"))
	require.Len(t, first.RecommendedQuestions, 1)
	assert.Equal(t, "Damu ilianza lini?", first.RecommendedQuestions[0].Question.Swahili)

	second := records[1]
	assert.Equal(t, "case_2", second.CaseID)
	assert.Equal(t, "Pneumonia", second.SuspectedIllness)
	assert.Equal(t, []float32{0.5, 0.5}, second.Embedding)
}

func TestSaveRecordsRoundTripsThroughLoader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cases.json")
	in := []domain.CaseRecord{{
		CaseID:           "x",
		SuspectedIllness: "Possible Brain Tumor",
		RedFlags:         map[string]string{"Headache": "morning"},
		Embedding:        []float32{1, 2},
	}}
	require.NoError(t, SaveRecords(path, in))

	out, err := LoadRecords(path)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, in[0].SuspectedIllness, out[0].SuspectedIllness)
	assert.Equal(t, in[0].RedFlags, out[0].RedFlags)
	assert.Equal(t, in[0].Embedding, out[0].Embedding)
}

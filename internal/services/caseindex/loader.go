// File: internal/services/caseindex/loader.go
package caseindex

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/domain"
)

// flexText accepts either a plain string or an {"english","swahili"} object.
type flexText domain.BilingualText

func (f *flexText) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		f.English = s
		return nil
	}
	var b domain.BilingualText
	if err := json.Unmarshal(data, &b); err != nil {
		return err
	}
	*f = flexText(b)
	return nil
}

type rawQuestion struct {
	Question flexText `json:"question"`
	Response flexText `json:"response"`
}

type rawCase struct {
	CaseID               json.RawMessage        `json:"case_id"`
	PatientBackground    flexText               `json:"patient_background"`
	ChiefComplaint       flexText               `json:"chief_complaint_history"`
	MedicalHistory       flexText               `json:"medical_social_history"`
	OpeningStatement     flexText               `json:"opening_statement"`
	SuspectedIllness     json.RawMessage        `json:"Suspected_illness"`
	SuspectedIllnessAlt  json.RawMessage        `json:"suspected_illness"`
	RedFlags             map[string]interface{} `json:"red_flags"`
	RecommendedQuestions []rawQuestion          `json:"recommended_questions"`
	Embedding            []float32              `json:"embedding"`
}

// LoadRecords reads a JSON array of cases from path.
func LoadRecords(path string) ([]domain.CaseRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open case file: %w", err)
	}
	defer f.Close()
	return DecodeRecords(f)
}

// DecodeRecords parses the case file format. Cases without a case_id get
// "case_<n>" with n counted from 1.
func DecodeRecords(r io.Reader) ([]domain.CaseRecord, error) {
	var raws []rawCase
	if err := json.NewDecoder(r).Decode(&raws); err != nil {
		return nil, fmt.Errorf("decode case file: %w", err)
	}

	out := make([]domain.CaseRecord, 0, len(raws))
	for i, raw := range raws {
		id := scalarString(raw.CaseID)
		if id == "" {
			id = fmt.Sprintf("case_%d", i+1)
		}

		illness := illnessName(raw.SuspectedIllness)
		if illness == "" {
			illness = illnessName(raw.SuspectedIllnessAlt)
		}

		rec := domain.CaseRecord{
			CaseID:            id,
			PatientBackground: domain.BilingualText(raw.PatientBackground),
			ChiefComplaint:    domain.BilingualText(raw.ChiefComplaint),
			MedicalHistory:    domain.BilingualText(raw.MedicalHistory),
			OpeningStatement:  domain.BilingualText(raw.OpeningStatement),
			SuspectedIllness:  illness,
			RedFlags:          flattenFlags(raw.RedFlags),
			Embedding:         raw.Embedding,
		}
		for _, q := range raw.RecommendedQuestions {
			rec.RecommendedQuestions = append(rec.RecommendedQuestions, domain.CaseQuestion{
				Question: domain.BilingualText(q.Question),
				Response: domain.BilingualText(q.Response),
			})
		}
		out = append(out, rec)
	}
	return out, nil
}

// SaveRecords writes records, embeddings included, in the format DecodeRecords reads.
func SaveRecords(path string, records []domain.CaseRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode case file: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write case file: %w", err)
	}
	return nil
}

func scalarString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// illnessName accepts a string or an object keyed by illness name. Object
// keys with an empty value are ignored; several names are joined with " / ".
func illnessName(raw json.RawMessage) string {
	if s := scalarString(raw); s != "" {
		return s
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil || len(m) == 0 {
		return ""
	}
	names := make([]string, 0, len(m))
	for k, v := range m {
		k = strings.TrimSpace(k)
		if k == "" || flagValue(v) == "" {
			continue
		}
		names = append(names, k)
	}
	sort.Strings(names)
	return strings.Join(names, " / ")
}

func flattenFlags(flags map[string]interface{}) map[string]string {
	if len(flags) == 0 {
		return nil
	}
	out := make(map[string]string, len(flags))
	for k, v := range flags {
		if s := flagValue(v); s != "" {
			out[k] = s
		}
	}
	return out
}

func flagValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case bool:
		if t {
			return "true"
		}
		return ""
	case float64:
		if t == 0 {
			return ""
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case []interface{}:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := flagValue(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

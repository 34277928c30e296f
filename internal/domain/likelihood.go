// File: internal/domain/likelihood.go
package domain

import "time"

// DiseaseScore is one ranked entry of a likelihood report.
type DiseaseScore struct {
	Name string  `json:"disease"`
	Pct  float64 `json:"pct"`
}

// CaseMatch records a retrieved case that contributed to a report.
type CaseMatch struct {
	CaseID           string  `json:"case_id"`
	Similarity       float64 `json:"similarity"`
	SuspectedIllness string  `json:"suspected_illness"`
}

// LikelihoodReport is an approximate decision-support signal derived from
// similar historical cases. It is not a diagnosis.
type LikelihoodReport struct {
	SessionID           string         `json:"session_id"`
	Symptoms            map[string]int `json:"symptoms"`
	TopDiseases         []DiseaseScore `json:"top_diseases"`
	CancerLikelihoodPct float64        `json:"cancer_likelihood_pct"`
	Matches             []CaseMatch    `json:"matches,omitempty"`
	Note                string         `json:"note,omitempty"`
	AnalyzedAt          time.Time      `json:"analyzed_at"`
}

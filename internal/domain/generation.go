// File: internal/domain/generation.go
package domain

import "context"

// Task selects what a role generator is asked to produce.
type Task string

const (
	TaskReply   Task = "reply"
	TaskSummary Task = "summary"
	TaskPlan    Task = "plan"
	// TaskFollowUp answers a clinician question about a stopped session.
	TaskFollowUp Task = "follow_up"
)

// ReplyRequest carries everything a role generator needs for one utterance.
type ReplyRequest struct {
	Role       Role
	Task       Task
	Transcript []Utterance
	Language   Language
	// Guidance is an optional instruction, e.g. the recommended question the
	// clinician should ask next.
	Guidance string
	// Notes is extra session context such as the stop summary and plan.
	Notes string
	// Question is the clinician question a TaskFollowUp request answers.
	Question string
}

// ReplyGenerator phrases clinician, patient and listener utterances.
// Implementations wrap an LLM and may fail with ErrGeneration.
type ReplyGenerator interface {
	GenerateReply(ctx context.Context, req ReplyRequest) (string, error)
}

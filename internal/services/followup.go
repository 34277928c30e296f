// File: internal/services/followup.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/domain"
)

// maxFollowUps bounds the follow-up exchange kept per session, counted in
// utterances.
const maxFollowUps = 16

// FollowUp answers a clinician question about a live session. Once the
// session is stopped the answer draws on the listener summary, the final plan
// and the ranked unasked questions as well as the transcript.
func (s *SessionService) FollowUp(ctx context.Context, id, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", fmt.Errorf("%w: follow-up message is empty", domain.ErrInvalidArgument)
	}

	var state *domain.ConversationState
	var notes string
	entry, err := s.get(ctx, id)
	switch {
	case err == nil:
		state = entry.session.Snapshot()
		notes = entry.followUpNotes()
	case errors.Is(err, domain.ErrSessionNotFound):
		// Evicted after stop: only the stored transcript is left.
		if state, err = s.deps.Conversations.Load(ctx, id); err != nil {
			return "", err
		}
	default:
		return "", err
	}
	if state.Mode != domain.ModeLive {
		return "", fmt.Errorf("%w: session %s is not a live session", domain.ErrInvalidArgument, id)
	}

	answer, err := s.deps.Generator.GenerateReply(ctx, domain.ReplyRequest{
		Role:       domain.RoleListener,
		Task:       domain.TaskFollowUp,
		Transcript: state.Utterances,
		Language:   state.Language,
		Notes:      notes,
		Question:   message,
	})
	if err != nil {
		s.logger.Error("follow-up answer failed", "session_id", id, "error", err)
		return "", err
	}
	if entry != nil {
		entry.recordFollowUp(message, answer, s.deps.Clock())
	}
	s.logger.Info("follow-up answered", "session_id", id, "with_bundle", notes != "")
	return answer, nil
}

func (e *sessionEntry) recordFollowUp(question, answer string, now time.Time) {
	e.followMu.Lock()
	defer e.followMu.Unlock()
	e.followUps = append(e.followUps,
		domain.Utterance{Role: domain.RoleClinician, Text: question, Timestamp: now},
		domain.Utterance{Role: domain.RoleListener, Text: answer, Timestamp: now})
	if n := len(e.followUps); n > maxFollowUps {
		e.followUps = append([]domain.Utterance(nil), e.followUps[n-maxFollowUps:]...)
	}
}

func (e *sessionEntry) followUpNotes() string {
	e.followMu.Lock()
	defer e.followMu.Unlock()

	var b strings.Builder
	if e.bundle != nil {
		if e.bundle.Summary != "" {
			fmt.Fprintf(&b, "Listener summary:\n%s\n\n", e.bundle.Summary)
		}
		if e.bundle.Plan != "" {
			fmt.Fprintf(&b, "Final plan:\n%s\n\n", e.bundle.Plan)
		}
		if len(e.bundle.Unasked) > 0 {
			b.WriteString("Unasked questions (ranked):\n")
			for i, p := range e.bundle.Unasked {
				fmt.Fprintf(&b, "%d. %s (score=%.3f)\n", i+1, p.Recommendation.Text, p.Recommendation.Similarity)
			}
			b.WriteString("\n")
		}
	}
	if len(e.followUps) > 0 {
		b.WriteString("Follow-up chat so far:\n")
		b.WriteString(domain.RenderTranscript(e.followUps))
	}
	return strings.TrimSpace(b.String())
}

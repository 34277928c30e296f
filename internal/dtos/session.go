// File: internal/dtos/session.go
package dtos

import (
	"time"

	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/domain"
	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/services/live"
)

// StartSessionRequest is the body of POST /api/sessions.
type StartSessionRequest struct {
	Mode        string `json:"mode"`
	Language    string `json:"language"`
	Policy      string `json:"policy,omitempty"`
	AutoRespond bool   `json:"auto_respond,omitempty"`
}

type StartSessionResponse struct {
	SessionID string `json:"session_id"`
}

// UtteranceRequest is the body of POST /api/sessions/{id}/utterances.
type UtteranceRequest struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

type AskedRequest struct {
	Text string `json:"text"`
}

type AskedResponse struct {
	Matched int `json:"matched"`
}

// FollowUpRequest is the body of POST /api/sessions/{id}/live/followup.
type FollowUpRequest struct {
	Message string `json:"message"`
}

type FollowUpResponse struct {
	Answer     string `json:"answer"`
	AnswerHTML string `json:"answer_html,omitempty"`
}

// SessionSummaryDTO is one row of the session list. Transcripts are not
// included.
type SessionSummaryDTO struct {
	SessionID string    `json:"session_id"`
	Mode      string    `json:"mode"`
	Language  string    `json:"language"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type SessionListResponse struct {
	Sessions []SessionSummaryDTO `json:"sessions"`
	Total    int64               `json:"total"`
	Limit    int                 `json:"limit"`
	Offset   int                 `json:"offset"`
}

func ToSessionSummaryDTO(c domain.Conversation) SessionSummaryDTO {
	return SessionSummaryDTO{
		SessionID: c.ID,
		Mode:      string(c.Mode),
		Language:  string(c.Language),
		Status:    string(c.Status),
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// Live websocket message types.
const (
	LiveMessagePartial = "partial"
	LiveMessageFinal   = "final"
	LiveMessageAsked   = "asked"
	LiveMessageStop    = "stop"

	LiveMessageEvent   = "event"
	LiveMessageAck     = "ack"
	LiveMessageStopped = "stopped"
	LiveMessageError   = "error"
)

// LiveClientMessage is sent by the browser over the live websocket.
type LiveClientMessage struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	Role string `json:"role,omitempty"`
}

// LiveServerMessage is sent to the browser over the live websocket.
type LiveServerMessage struct {
	Type    string           `json:"type"`
	Event   *live.Event      `json:"event,omitempty"`
	Bundle  *live.StopBundle `json:"bundle,omitempty"`
	Matched *int             `json:"matched,omitempty"`
	Error   string           `json:"error,omitempty"`
}

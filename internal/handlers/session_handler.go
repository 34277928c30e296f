// File: internal/handlers/session_handler.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/domain"
	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/dtos"
	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/middleware"
	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/services"
	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/services/live"
	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/services/orchestrator"
)

// SessionAPI is the session service surface exposed over HTTP.
type SessionAPI interface {
	StartSession(ctx context.Context, opts services.StartOptions) (string, error)
	StreamUtterance(ctx context.Context, id string, role domain.Role, text string) (*orchestrator.Turn, error)
	StreamFinalize(ctx context.Context, id string) (*orchestrator.Turn, error)
	MarkAsked(ctx context.Context, id, text string) (int, error)
	StopLive(ctx context.Context, id string) (*live.StopBundle, error)
	FollowUp(ctx context.Context, id, message string) (string, error)
	Unasked(ctx context.Context, id string) ([]domain.PendingQuestion, error)
	ScoreLikelihood(ctx context.Context, id string, force bool) (*domain.LikelihoodReport, error)
	IngestTranscript(ctx context.Context, id string, ev live.TranscriptEvent) error
	LiveEvents(id string) (<-chan live.Event, error)
	Snapshot(ctx context.Context, id string) (*domain.ConversationState, error)
	ListSessions(ctx context.Context, ownerID string, limit, offset int) ([]domain.Conversation, int64, error)
	DeleteSession(ctx context.Context, id string) error
	Owner(ctx context.Context, id string) (string, error)
}

type SessionHandler struct {
	sessions SessionAPI
	logger   Logger
}

func NewSessionHandler(sessions SessionAPI, logger Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, logger: logger}
}

// streamEvent is an orchestrator event as sent over SSE. Finalize summaries
// and plans carry a rendered HTML copy.
type streamEvent struct {
	orchestrator.Event
	HTML string `json:"html,omitempty"`
}

// CreateSession handles POST /api/sessions.
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	clinicianID, ok := middleware.ClinicianID(r.Context())
	if !ok {
		writeError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	var req dtos.StartSessionRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, "Bad Request", http.StatusBadRequest)
		return
	}

	id, err := h.sessions.StartSession(r.Context(), services.StartOptions{
		Mode:        domain.Mode(req.Mode),
		Language:    domain.Language(req.Language),
		Policy:      live.Policy(req.Policy),
		AutoRespond: req.AutoRespond,
		OwnerID:     clinicianID,
	})
	if err != nil {
		writeServiceError(w, h.logger, "start_session", err)
		return
	}
	writeJSON(w, http.StatusCreated, dtos.StartSessionResponse{SessionID: id})
}

// ListSessions handles GET /api/sessions?limit=&offset=.
func (h *SessionHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	clinicianID, ok := middleware.ClinicianID(r.Context())
	if !ok {
		writeError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	limit, offset := 20, 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, "Invalid offset", http.StatusBadRequest)
			return
		}
		offset = n
	}

	conversations, total, err := h.sessions.ListSessions(r.Context(), clinicianID, limit, offset)
	if err != nil {
		writeServiceError(w, h.logger, "list_sessions", err)
		return
	}
	resp := dtos.SessionListResponse{
		Sessions: make([]dtos.SessionSummaryDTO, 0, len(conversations)),
		Total:    total,
		Limit:    limit,
		Offset:   offset,
	}
	for _, c := range conversations {
		resp.Sessions = append(resp.Sessions, dtos.ToSessionSummaryDTO(c))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetSession handles GET /api/sessions/{id}.
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r)
	if !ok {
		return
	}
	snap, err := h.sessions.Snapshot(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, "get_session", err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// DeleteSession handles DELETE /api/sessions/{id}.
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r)
	if !ok {
		return
	}
	if err := h.sessions.DeleteSession(r.Context(), id); err != nil {
		writeServiceError(w, h.logger, "delete_session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SubmitUtterance handles POST /api/sessions/{id}/utterances and streams the
// turn's events as SSE.
func (h *SessionHandler) SubmitUtterance(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r)
	if !ok {
		return
	}
	var req dtos.UtteranceRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, "Bad Request", http.StatusBadRequest)
		return
	}
	role, err := domain.ParseRole(req.Role)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	turn, err := h.sessions.StreamUtterance(r.Context(), id, role, req.Text)
	if err != nil {
		writeServiceError(w, h.logger, "submit_utterance", err)
		return
	}
	h.streamTurn(w, r, id, turn, false)
}

// Finalize handles POST /api/sessions/{id}/finalize and streams the summary
// and plan as SSE.
func (h *SessionHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r)
	if !ok {
		return
	}
	turn, err := h.sessions.StreamFinalize(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, "finalize", err)
		return
	}
	h.streamTurn(w, r, id, turn, true)
}

// MarkAsked handles POST /api/sessions/{id}/asked.
func (h *SessionHandler) MarkAsked(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r)
	if !ok {
		return
	}
	var req dtos.AskedRequest
	if err := decodeBody(w, r, &req); err != nil || req.Text == "" {
		writeError(w, "Bad Request", http.StatusBadRequest)
		return
	}
	n, err := h.sessions.MarkAsked(r.Context(), id, req.Text)
	if err != nil {
		writeServiceError(w, h.logger, "mark_asked", err)
		return
	}
	writeJSON(w, http.StatusOK, dtos.AskedResponse{Matched: n})
}

// StopLive handles POST /api/sessions/{id}/live/stop.
func (h *SessionHandler) StopLive(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r)
	if !ok {
		return
	}
	bundle, err := h.sessions.StopLive(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, "stop_live", err)
		return
	}
	writeJSON(w, http.StatusOK, bundle)
}

// FollowUp handles POST /api/sessions/{id}/live/followup.
func (h *SessionHandler) FollowUp(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r)
	if !ok {
		return
	}
	var req dtos.FollowUpRequest
	if err := decodeBody(w, r, &req); err != nil || strings.TrimSpace(req.Message) == "" {
		writeError(w, "Bad Request", http.StatusBadRequest)
		return
	}
	answer, err := h.sessions.FollowUp(r.Context(), id, req.Message)
	if err != nil {
		writeServiceError(w, h.logger, "follow_up", err)
		return
	}
	writeJSON(w, http.StatusOK, dtos.FollowUpResponse{Answer: answer, AnswerHTML: renderMarkdown(answer)})
}

// Unasked handles GET /api/sessions/{id}/unasked.
func (h *SessionHandler) Unasked(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r)
	if !ok {
		return
	}
	pending, err := h.sessions.Unasked(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, "unasked", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"unasked_questions": pending})
}

// Likelihood handles GET /api/sessions/{id}/likelihood?force=true.
func (h *SessionHandler) Likelihood(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r)
	if !ok {
		return
	}
	force := false
	if v := r.URL.Query().Get("force"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, "Invalid force flag", http.StatusBadRequest)
			return
		}
		force = b
	}
	report, err := h.sessions.ScoreLikelihood(r.Context(), id, force)
	if err != nil {
		writeServiceError(w, h.logger, "score_likelihood", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// authorize resolves the session id and checks that the caller owns it.
// Sessions of other clinicians are reported as missing.
func (h *SessionHandler) authorize(w http.ResponseWriter, r *http.Request) (string, bool) {
	clinicianID, ok := middleware.ClinicianID(r.Context())
	if !ok {
		writeError(w, "Unauthorized", http.StatusUnauthorized)
		return "", false
	}
	id := mux.Vars(r)["id"]
	owner, err := h.sessions.Owner(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, "authorize", err)
		return "", false
	}
	if owner != clinicianID {
		h.logger.Warn("session access denied", "session_id", id, "clinician_id", clinicianID)
		writeError(w, domain.ErrSessionNotFound.Error(), http.StatusNotFound)
		return "", false
	}
	return id, true
}

func (h *SessionHandler) streamTurn(w http.ResponseWriter, r *http.Request, id string, turn *orchestrator.Turn, renderHTML bool) {
	flusher, ok := startSSE(w)
	if !ok {
		// Without streaming, fall back to one JSON array.
		events, err := turn.Wait(r.Context())
		if err != nil {
			writeServiceError(w, h.logger, "stream_turn", err)
			return
		}
		writeJSON(w, http.StatusOK, events)
		return
	}

	for {
		select {
		case <-r.Context().Done():
			h.logger.Debug("client disconnected from turn stream", "session_id", id)
			return
		case ev, open := <-turn.Events():
			if !open {
				return
			}
			out := streamEvent{Event: ev}
			if renderHTML && ev.Type == orchestrator.EventMessage {
				out.HTML = renderMarkdown(ev.Text)
			}
			if err := sendEvent(w, string(ev.Type), out); err != nil {
				h.logger.Warn("turn stream write failed", "session_id", id, "error", err)
				return
			}
			flusher.Flush()
		}
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after JSON body")
	}
	return nil
}

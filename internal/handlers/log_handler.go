// File: internal/handlers/log_handler.go
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/middleware"
)

// FrontendLogPayload is a log line reported by the browser client, typically
// from the live capture page.
type FrontendLogPayload struct {
	Level     string `json:"level"`
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
	Context   any    `json:"context,omitempty"`
}

type LogHandler struct {
	logger Logger
}

func NewLogHandler(logger Logger) *LogHandler {
	return &LogHandler{logger: logger}
}

// LogFrontendEvent forwards a client log line to the server logger.
func (h *LogHandler) LogFrontendEvent(w http.ResponseWriter, r *http.Request) {
	var payload FrontendLogPayload
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&payload); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	clinicianID, _ := middleware.ClinicianID(r.Context())
	kv := []interface{}{
		"message", payload.Message,
		"session_id", payload.SessionID,
		"clinician_id", clinicianID,
		"context", payload.Context,
	}
	switch strings.ToLower(payload.Level) {
	case "error":
		h.logger.Error("client log", kv...)
	case "warn", "warning":
		h.logger.Warn("client log", kv...)
	case "debug":
		h.logger.Debug("client log", kv...)
	default:
		h.logger.Info("client log", kv...)
	}
	w.WriteHeader(http.StatusNoContent)
}

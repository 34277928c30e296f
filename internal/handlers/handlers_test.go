package handlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/auth"
	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/domain"
	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/dtos"
	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/logging"
	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/ratelimit"
	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/repository"
	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/repository/conversation"
	likelihoodrepo "github.com/victorniga-aphrc/early-cancer-diagnosis/internal/repository/likelihood"
	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/services"
	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/services/live"
	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/services/recommender"
)

var jwtSecret = []byte("handler-secret")

type stubRecommender struct{}

func (stubRecommender) Recommend(ctx context.Context, req recommender.Request) (*domain.Recommendation, error) {
	q := domain.Recommendation{
		ID:         "c1#0",
		CaseID:     "c1",
		Question:   domain.BilingualText{English: "How long have you had the cough?"},
		Text:       "How long have you had the cough?",
		Similarity: 0.8,
	}
	if req.Asked.Contains(q.ID, q.Question) {
		return nil, nil
	}
	return &q, nil
}

type stubGenerator struct{}

func (stubGenerator) GenerateReply(ctx context.Context, req domain.ReplyRequest) (string, error) {
	if req.Task == domain.TaskPlan {
		return "- order a chest x-ray", nil
	}
	return "**" + string(req.Task) + "**", nil
}

type stubScorer struct{}

func (stubScorer) Score(ctx context.Context, conv *domain.ConversationState) (*domain.LikelihoodReport, error) {
	return &domain.LikelihoodReport{
		SessionID:   conv.ID,
		Symptoms:    map[string]int{},
		TopDiseases: []domain.DiseaseScore{{Name: "Tuberculosis", Pct: 100}},
		AnalyzedAt:  conv.UpdatedAt,
	}, nil
}

func newServer(t *testing.T, limiter *ratelimit.MemoryRateLimiter) *httptest.Server {
	t.Helper()
	db, err := repository.Open("sqlite", "file::memory:")
	require.NoError(t, err)
	require.NoError(t, repository.Migrate(db))

	svc, err := services.NewSessionService(services.SessionDependencies{
		Recommender:   stubRecommender{},
		Generator:     stubGenerator{},
		Scorer:        stubScorer{},
		Conversations: conversation.NewConversationRepository(db, logging.NewNop()),
		Snapshots:     likelihoodrepo.NewSnapshotRepository(db),
		Logger:        logging.NewNop(),
	}, nil, nil, nil)
	require.NoError(t, err)

	cfg := RouterConfig{
		Sessions:    svc,
		Logger:      logging.NewNop(),
		JWTSecret:   jwtSecret,
		CheckOrigin: func(*http.Request) bool { return true },
	}
	if limiter != nil {
		cfg.Limiter = limiter
	}
	srv := httptest.NewServer(NewRouter(cfg))
	t.Cleanup(func() {
		srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = svc.Shutdown(ctx)
		sqlDB, _ := db.DB()
		_ = sqlDB.Close()
	})
	return srv
}

func token(t *testing.T, clinician string) string {
	t.Helper()
	tok, err := auth.GenerateJWT(clinician, jwtSecret, time.Hour)
	require.NoError(t, err)
	return tok
}

func call(t *testing.T, srv *httptest.Server, method, path, clinician string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	if clinician != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, clinician))
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func startSession(t *testing.T, srv *httptest.Server, clinician string, req dtos.StartSessionRequest) string {
	t.Helper()
	resp := call(t, srv, http.MethodPost, "/api/sessions", clinician, req)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var out dtos.StartSessionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotEmpty(t, out.SessionID)
	return out.SessionID
}

type sseEvent struct {
	Type string
	Data map[string]interface{}
}

func readSSE(t *testing.T, resp *http.Response) []sseEvent {
	t.Helper()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	var events []sseEvent
	var current sseEvent
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			current.Type = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &current.Data))
		case line == "":
			if current.Type != "" {
				events = append(events, current)
			}
			current = sseEvent{}
		}
	}
	return events
}

func types(events []sseEvent) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.Type)
	}
	return out
}

func TestHealthIsPublic(t *testing.T) {
	srv := newServer(t, nil)
	resp := call(t, srv, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPIRequiresToken(t *testing.T) {
	srv := newServer(t, nil)
	resp := call(t, srv, http.MethodPost, "/api/sessions", "", dtos.StartSessionRequest{})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestUtteranceStreamsTurnEvents(t *testing.T) {
	srv := newServer(t, nil)
	id := startSession(t, srv, "clin-1", dtos.StartSessionRequest{Mode: "turn_based", Language: "english"})

	resp := call(t, srv, http.MethodPost, "/api/sessions/"+id+"/utterances", "clin-1",
		dtos.UtteranceRequest{Role: "patient", Text: "I have a cough"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	events := readSSE(t, resp)
	assert.Equal(t, []string{"recommendation", "turn_complete"}, types(events))
	assert.Equal(t, "How long have you had the cough?", events[0].Data["text"])

	bad := call(t, srv, http.MethodPost, "/api/sessions/"+id+"/utterances", "clin-1",
		dtos.UtteranceRequest{Role: "doctor", Text: "hello"})
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)

	outOfTurn := call(t, srv, http.MethodPost, "/api/sessions/"+id+"/utterances", "clin-1",
		dtos.UtteranceRequest{Role: "patient", Text: "again"})
	assert.Equal(t, http.StatusBadRequest, outOfTurn.StatusCode)
}

func TestSessionsOfOtherCliniciansAreHidden(t *testing.T) {
	srv := newServer(t, nil)
	id := startSession(t, srv, "clin-1", dtos.StartSessionRequest{})

	resp := call(t, srv, http.MethodGet, "/api/sessions/"+id+"/likelihood", "clin-2", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = call(t, srv, http.MethodGet, "/api/sessions/unknown/likelihood", "clin-1", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFinalizeStreamsRenderedSummaryAndPlan(t *testing.T) {
	srv := newServer(t, nil)
	id := startSession(t, srv, "clin-1", dtos.StartSessionRequest{})
	readSSE(t, call(t, srv, http.MethodPost, "/api/sessions/"+id+"/utterances", "clin-1",
		dtos.UtteranceRequest{Role: "patient", Text: "I have a cough"}))

	resp := call(t, srv, http.MethodPost, "/api/sessions/"+id+"/finalize", "clin-1", nil)
	events := readSSE(t, resp)
	require.Equal(t, []string{"message", "message", "turn_complete"}, types(events))
	assert.Equal(t, "listener", events[0].Data["role"])
	assert.Contains(t, events[0].Data["html"], "<strong>summary</strong>")
	assert.Contains(t, events[1].Data["text"], "FINAL PLAN")
	assert.Contains(t, events[1].Data["html"], "<li>order a chest x-ray</li>")

	again := call(t, srv, http.MethodPost, "/api/sessions/"+id+"/utterances", "clin-1",
		dtos.UtteranceRequest{Role: "clinician", Text: "one more"})
	assert.Equal(t, http.StatusConflict, again.StatusCode)
}

func TestLikelihoodAndListing(t *testing.T) {
	srv := newServer(t, nil)
	id := startSession(t, srv, "clin-1", dtos.StartSessionRequest{})

	resp := call(t, srv, http.MethodGet, "/api/sessions/"+id+"/likelihood?force=true", "clin-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var report domain.LikelihoodReport
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	assert.Equal(t, id, report.SessionID)

	bad := call(t, srv, http.MethodGet, "/api/sessions/"+id+"/likelihood?force=maybe", "clin-1", nil)
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)

	list := call(t, srv, http.MethodGet, "/api/sessions?limit=5", "clin-1", nil)
	require.Equal(t, http.StatusOK, list.StatusCode)
	var page dtos.SessionListResponse
	require.NoError(t, json.NewDecoder(list.Body).Decode(&page))
	assert.EqualValues(t, 1, page.Total)
	require.Len(t, page.Sessions, 1)
	assert.Equal(t, id, page.Sessions[0].SessionID)

	del := call(t, srv, http.MethodDelete, "/api/sessions/"+id, "clin-1", nil)
	assert.Equal(t, http.StatusNoContent, del.StatusCode)
	gone := call(t, srv, http.MethodGet, "/api/sessions/"+id, "clin-1", nil)
	assert.Equal(t, http.StatusNotFound, gone.StatusCode)
}

func TestLiveOnlyRoutesRejectTurnBasedSessions(t *testing.T) {
	srv := newServer(t, nil)
	id := startSession(t, srv, "clin-1", dtos.StartSessionRequest{})
	resp := call(t, srv, http.MethodPost, "/api/sessions/"+id+"/live/stop", "clin-1", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLiveFollowUpAfterStop(t *testing.T) {
	srv := newServer(t, nil)
	id := startSession(t, srv, "clin-1", dtos.StartSessionRequest{Mode: "live", Policy: "unasked"})

	resp := call(t, srv, http.MethodPost, "/api/sessions/"+id+"/live/stop", "clin-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var bundle live.StopBundle
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&bundle))
	assert.Equal(t, "- order a chest x-ray", bundle.Plan)
	assert.Contains(t, bundle.PlanHTML, "<li>order a chest x-ray</li>")

	resp = call(t, srv, http.MethodPost, "/api/sessions/"+id+"/live/followup", "clin-1", dtos.FollowUpRequest{Message: "What should I check next?"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out dtos.FollowUpResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "**follow_up**", out.Answer)
	assert.Contains(t, out.AnswerHTML, "<strong>follow_up</strong>")

	resp = call(t, srv, http.MethodPost, "/api/sessions/"+id+"/live/followup", "clin-1", dtos.FollowUpRequest{Message: "  "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = call(t, srv, http.MethodPost, "/api/sessions/"+id+"/live/followup", "clin-2", dtos.FollowUpRequest{Message: "hi"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	turnBased := startSession(t, srv, "clin-1", dtos.StartSessionRequest{})
	resp = call(t, srv, http.MethodPost, "/api/sessions/"+turnBased+"/live/followup", "clin-1", dtos.FollowUpRequest{Message: "hi"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLiveWebsocketRoundTrip(t *testing.T) {
	srv := newServer(t, nil)
	id := startSession(t, srv, "clin-1", dtos.StartSessionRequest{Mode: "live", Policy: "unasked"})

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/sessions/" + id + "/live?access_token=" + token(t, "clin-1")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	require.NoError(t, conn.WriteJSON(dtos.LiveClientMessage{Type: "final", Text: "I have had a cough and fever for two weeks"}))
	var msg dtos.LiveServerMessage
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, dtos.LiveMessageEvent, msg.Type)
	assert.Equal(t, live.EventCommitted, msg.Event.Type)

	require.NoError(t, conn.WriteJSON(dtos.LiveClientMessage{Type: "bogus"}))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, dtos.LiveMessageError, msg.Type)

	require.NoError(t, conn.WriteJSON(dtos.LiveClientMessage{Type: "stop"}))
	for {
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type == dtos.LiveMessageStopped {
			break
		}
	}
	require.NotNil(t, msg.Bundle)
	assert.Equal(t, 1, msg.Bundle.Utterances)
	require.Len(t, msg.Bundle.Unasked, 1)
	assert.Equal(t, "c1#0", msg.Bundle.Unasked[0].Recommendation.ID)
}

func TestGenerationRoutesAreRateLimited(t *testing.T) {
	limiter, err := ratelimit.NewMemoryRateLimiter(&ratelimit.Config{
		Window:        time.Hour,
		MaxRequests:   1,
		CleanupPeriod: time.Hour,
		BanDuration:   time.Minute,
	})
	require.NoError(t, err)
	defer limiter.Close()
	srv := newServer(t, limiter)

	startSession(t, srv, "clin-1", dtos.StartSessionRequest{})
	resp := call(t, srv, http.MethodPost, "/api/sessions", "clin-1", dtos.StartSessionRequest{})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	other := call(t, srv, http.MethodPost, "/api/sessions", "clin-2", dtos.StartSessionRequest{})
	assert.Equal(t, http.StatusCreated, other.StatusCode)
	list := call(t, srv, http.MethodGet, "/api/sessions", "clin-1", nil)
	assert.Equal(t, http.StatusOK, list.StatusCode)
}

func TestClientLogAccepted(t *testing.T) {
	srv := newServer(t, nil)
	resp := call(t, srv, http.MethodPost, "/api/log", "clin-1", FrontendLogPayload{Level: "error", Message: "mic denied"})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

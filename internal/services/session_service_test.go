package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/domain"
	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/logging"
	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/repository"
	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/repository/conversation"
	likelihoodrepo "github.com/victorniga-aphrc/early-cancer-diagnosis/internal/repository/likelihood"
	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/services/likelihood"
	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/services/live"
	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/services/orchestrator"
	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/services/recommender"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type stubRecommender struct {
	questions []domain.Recommendation
}

func (s *stubRecommender) Recommend(ctx context.Context, req recommender.Request) (*domain.Recommendation, error) {
	for _, q := range s.questions {
		if !req.Asked.Contains(q.ID, q.Question) {
			out := q
			return &out, nil
		}
	}
	return nil, nil
}

type stubGenerator struct{}

func (stubGenerator) GenerateReply(ctx context.Context, req domain.ReplyRequest) (string, error) {
	return string(req.Role) + " " + string(req.Task), nil
}

type recordingGenerator struct {
	mu       sync.Mutex
	requests []domain.ReplyRequest
}

func (g *recordingGenerator) GenerateReply(ctx context.Context, req domain.ReplyRequest) (string, error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	g.mu.Unlock()
	return stubGenerator{}.GenerateReply(ctx, req)
}

func (g *recordingGenerator) last(task domain.Task) domain.ReplyRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := len(g.requests) - 1; i >= 0; i-- {
		if g.requests[i].Task == task {
			return g.requests[i]
		}
	}
	return domain.ReplyRequest{}
}

// gatedRecommender holds every call until gate is closed.
type gatedRecommender struct {
	next    orchestrator.Recommender
	entered chan struct{}
	gate    chan struct{}
}

func (g *gatedRecommender) Recommend(ctx context.Context, req recommender.Request) (*domain.Recommendation, error) {
	select {
	case g.entered <- struct{}{}:
	default:
	}
	<-g.gate
	return g.next.Recommend(ctx, req)
}

type countingScorer struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (c *countingScorer) Score(ctx context.Context, conv *domain.ConversationState) (*domain.LikelihoodReport, error) {
	c.mu.Lock()
	c.calls++
	err := c.err
	c.mu.Unlock()
	report := &domain.LikelihoodReport{
		SessionID:   conv.ID,
		Symptoms:    map[string]int{"cough": 1},
		TopDiseases: []domain.DiseaseScore{{Name: "Tuberculosis", Pct: 100}},
		AnalyzedAt:  conv.UpdatedAt,
	}
	if err != nil {
		report.TopDiseases = []domain.DiseaseScore{}
		report.Note = "index unavailable"
		return report, err
	}
	return report, nil
}

func (c *countingScorer) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	svc    *SessionService
	scorer *countingScorer
	convs  conversation.ConversationRepository
	snaps  likelihoodrepo.SnapshotRepository
	clock  *manualClock
}

func defaultRecommender() *stubRecommender {
	return &stubRecommender{questions: []domain.Recommendation{
		{ID: "c1#0", CaseID: "c1", Question: domain.BilingualText{English: "How long have you had the cough?"}, Text: "How long have you had the cough?", Similarity: 0.82},
		{ID: "c1#1", CaseID: "c1", Question: domain.BilingualText{English: "Any weight loss?"}, Text: "Any weight loss?", Similarity: 0.74},
	}}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, defaultRecommender(), stubGenerator{})
}

func newFixtureWith(t *testing.T, rec orchestrator.Recommender, gen domain.ReplyGenerator) *fixture {
	t.Helper()
	db, err := repository.Open("sqlite", "file::memory:")
	require.NoError(t, err)
	require.NoError(t, repository.Migrate(db))
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		_ = sqlDB.Close()
	})

	f := &fixture{
		scorer: &countingScorer{},
		convs:  conversation.NewConversationRepository(db, logging.NewNop()),
		snaps:  likelihoodrepo.NewSnapshotRepository(db),
		clock:  &manualClock{now: time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)},
	}
	svc, err := NewSessionService(SessionDependencies{
		Recommender:   rec,
		Generator:     gen,
		Scorer:        f.scorer,
		Cache:         likelihood.NewMemoryCache(),
		Conversations: f.convs,
		Snapshots:     f.snaps,
		Logger:        logging.NewNop(),
		Clock:         f.clock.Now,
	}, DefaultConfig(), nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = svc.Shutdown(ctx)
	})
	f.svc = svc
	return f
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestSubmitUtterancePersistsEachTurn(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx(t)

	id, err := f.svc.StartSession(ctx, StartOptions{Mode: domain.ModeTurnBased, Language: domain.LanguageEnglish, OwnerID: "clin-1"})
	require.NoError(t, err)

	events, err := f.svc.SubmitUtterance(ctx, id, domain.RolePatient, "I have had a cough for weeks")
	require.NoError(t, err)
	var recs []string
	for _, e := range events {
		if e.Type == orchestrator.EventRecommendation {
			recs = append(recs, e.Recommendation.ID)
		}
	}
	assert.Equal(t, []string{"c1#0"}, recs)

	stored, err := f.convs.Load(ctx, id)
	require.NoError(t, err)
	require.Len(t, stored.Utterances, 1)
	assert.Equal(t, "I have had a cough for weeks", stored.Utterances[0].Text)

	owner, err := f.svc.Owner(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "clin-1", owner)
}

func TestStartSessionRejectsUnknownOptions(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx(t)

	_, err := f.svc.StartSession(ctx, StartOptions{Mode: "video"})
	assert.True(t, errors.Is(err, domain.ErrInvalidArgument))
	_, err = f.svc.StartSession(ctx, StartOptions{Language: "french"})
	assert.True(t, errors.Is(err, domain.ErrInvalidArgument))
	_, err = f.svc.StartSession(ctx, StartOptions{Mode: domain.ModeLive, Policy: "eager"})
	assert.True(t, errors.Is(err, domain.ErrInvalidArgument))
}

func TestUnknownSessionIsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx(t)

	_, err := f.svc.SubmitUtterance(ctx, "missing", domain.RolePatient, "hello")
	assert.True(t, errors.Is(err, domain.ErrSessionNotFound))
	_, err = f.svc.ScoreLikelihood(ctx, "missing", false)
	assert.True(t, errors.Is(err, domain.ErrSessionNotFound))
	_, err = f.svc.MarkAsked(ctx, "missing", "anything")
	assert.True(t, errors.Is(err, domain.ErrSessionNotFound))
}

func TestScoreLikelihoodReusesReportUntilConversationChanges(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx(t)

	id, err := f.svc.StartSession(ctx, StartOptions{})
	require.NoError(t, err)
	_, err = f.svc.SubmitUtterance(ctx, id, domain.RolePatient, "I cough at night")
	require.NoError(t, err)

	first, err := f.svc.ScoreLikelihood(ctx, id, false)
	require.NoError(t, err)
	second, err := f.svc.ScoreLikelihood(ctx, id, false)
	require.NoError(t, err)
	assert.Equal(t, 1, f.scorer.count())
	assert.Equal(t, first, second)

	_, err = f.svc.ScoreLikelihood(ctx, id, true)
	require.NoError(t, err)
	assert.Equal(t, 2, f.scorer.count())

	_, err = f.svc.SubmitUtterance(ctx, id, domain.RoleClinician, "How long have you had the cough?")
	require.NoError(t, err)
	third, err := f.svc.ScoreLikelihood(ctx, id, false)
	require.NoError(t, err)
	assert.Equal(t, 3, f.scorer.count())
	assert.True(t, third.AnalyzedAt.After(first.AnalyzedAt))

	stored, err := f.snaps.Find(ctx, id)
	require.NoError(t, err)
	assert.True(t, stored.AnalyzedAt.Equal(third.AnalyzedAt))
}

func TestScoreLikelihoodUsesStoredSnapshotAfterEviction(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx(t)

	id, err := f.svc.StartSession(ctx, StartOptions{})
	require.NoError(t, err)
	_, err = f.svc.SubmitUtterance(ctx, id, domain.RolePatient, "I cough at night")
	require.NoError(t, err)
	_, err = f.svc.Finalize(ctx, id)
	require.NoError(t, err)

	_, err = f.svc.ScoreLikelihood(ctx, id, false)
	require.NoError(t, err)
	assert.Equal(t, 1, f.scorer.count())

	assert.Equal(t, 1, f.svc.Sweep(ctx))
	_, err = f.svc.SubmitUtterance(ctx, id, domain.RolePatient, "still here?")
	assert.True(t, errors.Is(err, domain.ErrSessionNotFound))

	report, err := f.svc.ScoreLikelihood(ctx, id, false)
	require.NoError(t, err)
	assert.Equal(t, 1, f.scorer.count())
	assert.Equal(t, id, report.SessionID)

	snap, err := f.svc.Snapshot(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusClosed, snap.Status)
}

func TestDegradedReportIsNotCached(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx(t)
	f.scorer.err = domain.ErrIndexQuery

	id, err := f.svc.StartSession(ctx, StartOptions{})
	require.NoError(t, err)
	_, err = f.svc.SubmitUtterance(ctx, id, domain.RolePatient, "I cough at night")
	require.NoError(t, err)

	report, err := f.svc.ScoreLikelihood(ctx, id, false)
	require.NoError(t, err)
	assert.Equal(t, "index unavailable", report.Note)
	_, err = f.svc.ScoreLikelihood(ctx, id, false)
	require.NoError(t, err)
	assert.Equal(t, 2, f.scorer.count())

	_, err = f.snaps.Find(ctx, id)
	assert.True(t, errors.Is(err, likelihoodrepo.ErrSnapshotNotFound))
}

func TestMarkAskedCountsMatches(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx(t)

	id, err := f.svc.StartSession(ctx, StartOptions{})
	require.NoError(t, err)
	_, err = f.svc.SubmitUtterance(ctx, id, domain.RolePatient, "I cough at night")
	require.NoError(t, err)

	n, err := f.svc.MarkAsked(ctx, id, "how long have you had the cough")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = f.svc.MarkAsked(ctx, id, "do you smoke")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	snap, err := f.svc.Snapshot(ctx, id)
	require.NoError(t, err)
	assert.True(t, snap.Asked.Has("c1#0"))
}

func TestLiveSessionStreamsEventsAndStops(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx(t)

	id, err := f.svc.StartSession(ctx, StartOptions{Mode: domain.ModeLive, Policy: live.PolicyUnasked})
	require.NoError(t, err)
	events, err := f.svc.LiveEvents(id)
	require.NoError(t, err)

	require.NoError(t, f.svc.IngestTranscript(ctx, id, live.TranscriptEvent{Kind: live.KindFinal, Text: "I have had a cough and fever for two weeks"}))

	select {
	case ev := <-events:
		assert.Equal(t, live.EventCommitted, ev.Type)
		assert.Equal(t, domain.RolePatient, ev.Role)
	case <-ctx.Done():
		t.Fatal("no live event received")
	}

	bundle, err := f.svc.StopLive(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, bundle.Utterances)
	require.Len(t, bundle.Unasked, 1)
	assert.Equal(t, "c1#0", bundle.Unasked[0].Recommendation.ID)
	assert.Equal(t, "listener summary", bundle.Summary)
	assert.Equal(t, "listener plan", bundle.Plan)

	err = f.svc.IngestTranscript(ctx, id, live.TranscriptEvent{Kind: live.KindFinal, Text: "I also have chest pain at night"})
	assert.True(t, errors.Is(err, domain.ErrSessionClosed))
	snap, err := f.svc.Snapshot(ctx, id)
	require.NoError(t, err)
	assert.Len(t, snap.Utterances, 1)

	stored, err := f.convs.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusClosed, stored.Status)
}

func TestLiveOperationsRejectOtherModes(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx(t)

	id, err := f.svc.StartSession(ctx, StartOptions{Mode: domain.ModeTurnBased})
	require.NoError(t, err)
	_, err = f.svc.StopLive(ctx, id)
	assert.True(t, errors.Is(err, domain.ErrInvalidArgument))
	err = f.svc.IngestTranscript(ctx, id, live.TranscriptEvent{Kind: live.KindFinal, Text: "hello"})
	assert.True(t, errors.Is(err, domain.ErrInvalidArgument))
}

func TestSweepEvictsIdleSessions(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx(t)

	idle, err := f.svc.StartSession(ctx, StartOptions{})
	require.NoError(t, err)
	f.clock.Advance(3 * time.Hour)
	busy, err := f.svc.StartSession(ctx, StartOptions{Mode: domain.ModeLive})
	require.NoError(t, err)

	assert.Equal(t, 1, f.svc.Sweep(ctx))
	_, ok := f.svc.lookup(idle)
	assert.False(t, ok)
	stored, err := f.convs.Load(ctx, idle)
	require.NoError(t, err)
	assert.Equal(t, idle, stored.ID)
	assert.Equal(t, domain.StatusIdle, stored.Status)

	_, err = f.svc.LiveEvents(busy)
	require.NoError(t, err)
}

func TestEvictedSessionResumesOnNextSubmit(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx(t)

	id, err := f.svc.StartSession(ctx, StartOptions{OwnerID: "clin-1", AutoRespond: true})
	require.NoError(t, err)
	_, err = f.svc.SubmitUtterance(ctx, id, domain.RolePatient, "I have had a cough for weeks")
	require.NoError(t, err)

	f.clock.Advance(3 * time.Hour)
	require.Equal(t, 1, f.svc.Sweep(ctx))
	stored, err := f.convs.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, stored.Status)
	assert.True(t, stored.AutoRespond)

	events, err := f.svc.SubmitUtterance(ctx, id, domain.RolePatient, "and I lost weight")
	require.NoError(t, err)
	var replies []string
	for _, e := range events {
		if e.Type == orchestrator.EventMessage {
			replies = append(replies, e.Text)
		}
	}
	assert.Equal(t, []string{"clinician reply"}, replies)

	snap, err := f.svc.Snapshot(ctx, id)
	require.NoError(t, err)
	require.Len(t, snap.Utterances, 4)
	assert.Equal(t, "I have had a cough for weeks", snap.Utterances[0].Text)
	assert.Equal(t, "and I lost weight", snap.Utterances[2].Text)
	owner, err := f.svc.Owner(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "clin-1", owner)
}

func TestEvictedLiveSessionResumesWithItsPolicy(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx(t)

	id, err := f.svc.StartSession(ctx, StartOptions{Mode: domain.ModeLive, Policy: live.PolicyUnasked})
	require.NoError(t, err)
	events, err := f.svc.LiveEvents(id)
	require.NoError(t, err)
	require.NoError(t, f.svc.IngestTranscript(ctx, id, live.TranscriptEvent{Kind: live.KindFinal, Text: "I have had a cough and fever for two weeks"}))
	ev := <-events
	require.Equal(t, live.EventCommitted, ev.Type)

	f.clock.Advance(3 * time.Hour)
	require.Equal(t, 1, f.svc.Sweep(ctx))
	for range events {
	}

	require.NoError(t, f.svc.IngestTranscript(ctx, id, live.TranscriptEvent{Kind: live.KindFinal, Text: "I also feel tired every day"}))
	resumed, err := f.svc.LiveEvents(id)
	require.NoError(t, err)
	select {
	case ev := <-resumed:
		assert.Equal(t, live.EventCommitted, ev.Type)
	case <-ctx.Done():
		t.Fatal("no live event after resume")
	}

	bundle, err := f.svc.StopLive(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, live.PolicyUnasked, bundle.Policy)
	assert.Equal(t, 2, bundle.Utterances)
	require.NotEmpty(t, bundle.Unasked)
	assert.Equal(t, "c1#0", bundle.Unasked[0].Recommendation.ID)
}

func TestFinalizedSessionIsNotResumed(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx(t)

	id, err := f.svc.StartSession(ctx, StartOptions{})
	require.NoError(t, err)
	_, err = f.svc.SubmitUtterance(ctx, id, domain.RolePatient, "I cough at night")
	require.NoError(t, err)
	_, err = f.svc.Finalize(ctx, id)
	require.NoError(t, err)
	require.Equal(t, 1, f.svc.Sweep(ctx))

	_, err = f.svc.StreamFinalize(ctx, id)
	assert.True(t, errors.Is(err, domain.ErrSessionNotFound))
	_, ok := f.svc.lookup(id)
	assert.False(t, ok)
}

// startDrainingLive starts a live session whose first recommendation blocks
// until gate is closed, queues more finals behind it and begins StopLive.
func startDrainingLive(t *testing.T) (*fixture, string, *gatedRecommender, <-chan *live.StopBundle) {
	t.Helper()
	gated := &gatedRecommender{next: defaultRecommender(), entered: make(chan struct{}, 1), gate: make(chan struct{})}
	f := newFixtureWith(t, gated, stubGenerator{})
	ctx := testCtx(t)

	id, err := f.svc.StartSession(ctx, StartOptions{Mode: domain.ModeLive})
	require.NoError(t, err)
	require.NoError(t, f.svc.IngestTranscript(ctx, id, live.TranscriptEvent{Kind: live.KindFinal, Text: "I have had a cough for weeks"}))
	<-gated.entered
	for _, text := range []string{"it is worse at night", "I have chest pain", "I feel tired every day", "I lost weight this month"} {
		require.NoError(t, f.svc.IngestTranscript(ctx, id, live.TranscriptEvent{Kind: live.KindFinal, Text: text}))
	}

	entry, ok := f.svc.lookup(id)
	require.True(t, ok)
	stopped := make(chan *live.StopBundle, 1)
	go func() {
		bundle, err := f.svc.StopLive(context.Background(), id)
		assert.NoError(t, err)
		stopped <- bundle
	}()
	require.Eventually(t, entry.live.Stopped, time.Second, time.Millisecond)
	return f, id, gated, stopped
}

func TestDeleteDuringStopLiveDrainDoesNotResurrect(t *testing.T) {
	f, id, gated, stopped := startDrainingLive(t)
	ctx := testCtx(t)
	events, err := f.svc.LiveEvents(id)
	require.NoError(t, err)

	deleted := make(chan error, 1)
	go func() { deleted <- f.svc.DeleteSession(context.Background(), id) }()
	select {
	case err := <-deleted:
		t.Fatalf("delete finished while the stop was draining: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(gated.gate)
	require.NoError(t, <-deleted)
	bundle := <-stopped
	require.NotNil(t, bundle)
	assert.Equal(t, 5, bundle.Utterances)
	for range events {
	}

	_, err = f.convs.Load(ctx, id)
	assert.True(t, errors.Is(err, domain.ErrSessionNotFound))
	_, err = f.svc.Snapshot(ctx, id)
	assert.True(t, errors.Is(err, domain.ErrSessionNotFound))
}

func TestShutdownDuringStopLiveDrainKeepsTranscript(t *testing.T) {
	f, id, gated, stopped := startDrainingLive(t)
	ctx := testCtx(t)

	shutdown := make(chan error, 1)
	go func() { shutdown <- f.svc.Shutdown(context.Background()) }()
	select {
	case err := <-shutdown:
		t.Fatalf("shutdown finished while the stop was draining: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(gated.gate)
	require.NoError(t, <-shutdown)
	bundle := <-stopped
	require.NotNil(t, bundle)
	assert.Equal(t, 5, bundle.Utterances)

	stored, err := f.convs.Load(ctx, id)
	require.NoError(t, err)
	assert.Len(t, stored.Utterances, 5)
	assert.Equal(t, domain.StatusClosed, stored.Status)
	_, err = f.svc.SubmitUtterance(ctx, id, domain.RolePatient, "hello again")
	assert.True(t, errors.Is(err, domain.ErrSessionNotFound))
}

func TestFollowUpUsesStopContext(t *testing.T) {
	gen := &recordingGenerator{}
	f := newFixtureWith(t, defaultRecommender(), gen)
	ctx := testCtx(t)

	id, err := f.svc.StartSession(ctx, StartOptions{Mode: domain.ModeLive, Policy: live.PolicyUnasked})
	require.NoError(t, err)
	events, err := f.svc.LiveEvents(id)
	require.NoError(t, err)
	require.NoError(t, f.svc.IngestTranscript(ctx, id, live.TranscriptEvent{Kind: live.KindFinal, Text: "I have had a cough and fever for two weeks"}))
	<-events
	_, err = f.svc.StopLive(ctx, id)
	require.NoError(t, err)

	answer, err := f.svc.FollowUp(ctx, id, "What should I check next?")
	require.NoError(t, err)
	assert.Equal(t, "listener follow_up", answer)
	req := gen.last(domain.TaskFollowUp)
	assert.Equal(t, domain.RoleListener, req.Role)
	assert.Equal(t, "What should I check next?", req.Question)
	assert.Len(t, req.Transcript, 1)
	assert.Contains(t, req.Notes, "Listener summary:\nlistener summary")
	assert.Contains(t, req.Notes, "Final plan:\nlistener plan")
	assert.Contains(t, req.Notes, "1. How long have you had the cough? (score=0.820)")

	_, err = f.svc.FollowUp(ctx, id, "Is TB likely?")
	require.NoError(t, err)
	assert.Contains(t, gen.last(domain.TaskFollowUp).Notes, "Follow-up chat so far:\nClinician: What should I check next?\nListener: listener follow_up")

	assert.Equal(t, 0, f.svc.Sweep(ctx), "stopped live sessions stay for follow-up questions")
	f.clock.Advance(3 * time.Hour)
	assert.Equal(t, 1, f.svc.Sweep(ctx))
	answer, err = f.svc.FollowUp(ctx, id, "Anything else?")
	require.NoError(t, err)
	assert.Equal(t, "listener follow_up", answer)
	assert.Empty(t, gen.last(domain.TaskFollowUp).Notes)
}

func TestFollowUpRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx(t)

	liveID, err := f.svc.StartSession(ctx, StartOptions{Mode: domain.ModeLive})
	require.NoError(t, err)
	_, err = f.svc.FollowUp(ctx, liveID, "   ")
	assert.True(t, errors.Is(err, domain.ErrInvalidArgument))

	turnBased, err := f.svc.StartSession(ctx, StartOptions{})
	require.NoError(t, err)
	_, err = f.svc.FollowUp(ctx, turnBased, "What next?")
	assert.True(t, errors.Is(err, domain.ErrInvalidArgument))

	_, err = f.svc.FollowUp(ctx, "missing", "What next?")
	assert.True(t, errors.Is(err, domain.ErrSessionNotFound))
}

func TestJanitorStartsAndShutsDown(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx(t)

	require.NoError(t, f.svc.StartJanitor())
	require.NoError(t, f.svc.StartJanitor())
	id, err := f.svc.StartSession(ctx, StartOptions{Mode: domain.ModeLive})
	require.NoError(t, err)
	events, err := f.svc.LiveEvents(id)
	require.NoError(t, err)

	require.NoError(t, f.svc.Shutdown(ctx))
	_, open := <-events
	assert.False(t, open)
	_, err = f.svc.Owner(ctx, id)
	require.NoError(t, err)
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.JanitorSpec = "every now and then"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.IdleTTL = 0
	assert.Error(t, cfg.Validate())
}

func TestListAndDeleteSessions(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx(t)

	first, err := f.svc.StartSession(ctx, StartOptions{OwnerID: "clin-1"})
	require.NoError(t, err)
	_, err = f.svc.StartSession(ctx, StartOptions{OwnerID: "clin-1"})
	require.NoError(t, err)
	_, err = f.svc.StartSession(ctx, StartOptions{OwnerID: "clin-2"})
	require.NoError(t, err)

	page, total, err := f.svc.ListSessions(ctx, "clin-1", 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, page, 2)

	_, err = f.svc.SubmitUtterance(ctx, first, domain.RolePatient, "I cough at night")
	require.NoError(t, err)
	_, err = f.svc.ScoreLikelihood(ctx, first, false)
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteSession(ctx, first))
	_, err = f.svc.Snapshot(ctx, first)
	assert.True(t, errors.Is(err, domain.ErrSessionNotFound))
	_, err = f.snaps.Find(ctx, first)
	assert.True(t, errors.Is(err, likelihoodrepo.ErrSnapshotNotFound))
	assert.True(t, errors.Is(f.svc.DeleteSession(ctx, first), domain.ErrSessionNotFound))
}

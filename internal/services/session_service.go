// File: internal/services/session_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/domain"
	likelihoodrepo "github.com/victorniga-aphrc/early-cancer-diagnosis/internal/repository/likelihood"
	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/services/likelihood"
	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/services/live"
	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/services/orchestrator"
)

// Logger defines common logging interface for all services
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}

// Scorer computes likelihood reports.
type Scorer interface {
	Score(ctx context.Context, conv *domain.ConversationState) (*domain.LikelihoodReport, error)
}

// ConversationStore persists conversations.
type ConversationStore interface {
	Save(ctx context.Context, ownerID string, state *domain.ConversationState) error
	Load(ctx context.Context, id string) (*domain.ConversationState, error)
	OwnerOf(ctx context.Context, id string) (string, error)
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]domain.Conversation, int64, error)
	Delete(ctx context.Context, id string) error
}

// SnapshotStore persists likelihood reports.
type SnapshotStore interface {
	Save(ctx context.Context, report *domain.LikelihoodReport) error
	Find(ctx context.Context, conversationID string) (*domain.LikelihoodReport, error)
	Delete(ctx context.Context, conversationID string) error
}

// SessionDependencies are the collaborators of the session service.
type SessionDependencies struct {
	Recommender   orchestrator.Recommender
	Generator     domain.ReplyGenerator
	Scorer        Scorer
	Cache         likelihood.ReportCache
	Conversations ConversationStore
	Snapshots     SnapshotStore
	Logger        Logger
	Clock         func() time.Time
}

// StartOptions configures a new session.
type StartOptions struct {
	Mode        domain.Mode
	Language    domain.Language
	Policy      live.Policy
	AutoRespond bool
	OwnerID     string
}

type sessionEntry struct {
	session     *orchestrator.Session
	live        *live.Manager
	ownerID     string
	policy      live.Policy
	autoRespond bool
	lastActive  atomic.Int64

	// streamMu guards sends on events against its close.
	streamMu     sync.Mutex
	events       chan live.Event
	streamClosed bool

	// persistMu orders saves against teardown. A retired entry is never
	// saved again.
	persistMu sync.Mutex
	retired   bool

	// Post-stop context of a live session.
	followMu  sync.Mutex
	bundle    *live.StopBundle
	followUps []domain.Utterance
}

func (e *sessionEntry) touch(now time.Time) {
	e.lastActive.Store(now.UnixNano())
}

func (e *sessionEntry) closeStream() {
	e.streamMu.Lock()
	defer e.streamMu.Unlock()
	if e.events != nil && !e.streamClosed {
		e.streamClosed = true
		close(e.events)
	}
}

func (e *sessionEntry) stopBundle() *live.StopBundle {
	e.followMu.Lock()
	defer e.followMu.Unlock()
	return e.bundle
}

// SessionService is the entry point for every session operation. It owns
// the in-memory sessions and persists them after each turn.
type SessionService struct {
	deps         SessionDependencies
	config       *Config
	orchConfig   *orchestrator.Config
	liveConfig   *live.Config
	logger       Logger
	newSessionID func() string

	mu       sync.RWMutex
	sessions map[string]*sessionEntry
	// closing holds sessions being torn down; closed once teardown is done.
	closing map[string]chan struct{}
	// restoreMu serializes restores against the start of a teardown.
	restoreMu sync.Mutex

	cron *cron.Cron
}

func NewSessionService(deps SessionDependencies, config *Config, orchConfig *orchestrator.Config, liveConfig *live.Config) (*SessionService, error) {
	if deps.Recommender == nil || deps.Generator == nil || deps.Scorer == nil {
		return nil, fmt.Errorf("recommender, generator and scorer are required")
	}
	if deps.Conversations == nil || deps.Snapshots == nil || deps.Logger == nil {
		return nil, fmt.Errorf("conversation store, snapshot store and logger are required")
	}
	if deps.Cache == nil {
		deps.Cache = likelihood.NewMemoryCache()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session service configuration: %w", err)
	}
	if liveConfig == nil {
		liveConfig = live.DefaultConfig()
	}
	return &SessionService{
		deps:         deps,
		config:       config,
		orchConfig:   orchConfig,
		liveConfig:   liveConfig,
		logger:       deps.Logger,
		newSessionID: uuid.NewString,
		sessions:     make(map[string]*sessionEntry),
		closing:      make(map[string]chan struct{}),
	}, nil
}

// StartSession creates a session and returns its id.
func (s *SessionService) StartSession(ctx context.Context, opts StartOptions) (string, error) {
	mode, err := domain.ParseMode(string(opts.Mode))
	if err != nil {
		return "", err
	}
	lang, err := domain.ParseLanguage(string(opts.Language))
	if err != nil {
		return "", err
	}
	policy, err := live.ParsePolicy(string(opts.Policy))
	if err != nil {
		return "", err
	}

	if mode != domain.ModeLive {
		policy = ""
	}

	id := s.newSessionID()
	entry, err := s.newEntry(id, opts.OwnerID, orchestrator.Options{
		Mode:        mode,
		Language:    lang,
		AutoRespond: opts.AutoRespond,
	}, policy)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.sessions[id] = entry
	s.mu.Unlock()

	s.persistEntry(entry, entry.session.Snapshot())
	s.logger.Info("session started", "session_id", id, "mode", mode, "language", lang, "policy", policy, "owner_id", opts.OwnerID)
	return id, nil
}

// newEntry builds the orchestrator session and, in live mode, its manager.
func (s *SessionService) newEntry(id, ownerID string, opts orchestrator.Options, policy live.Policy) (*sessionEntry, error) {
	entry := &sessionEntry{ownerID: ownerID, policy: policy, autoRespond: opts.AutoRespond}
	opts.OnTurnComplete = func(st *domain.ConversationState) { s.persistEntry(entry, st) }
	session, err := orchestrator.NewSession(id, opts, orchestrator.Dependencies{
		Recommender: s.deps.Recommender,
		Generator:   s.deps.Generator,
		Logger:      s.logger,
		Clock:       s.deps.Clock,
	}, s.orchConfig)
	if err != nil {
		return nil, err
	}
	entry.session = session

	if opts.Mode == domain.ModeLive {
		cfg := *s.liveConfig
		if policy != "" {
			cfg.Policy = policy
		}
		entry.policy = cfg.Policy
		entry.events = make(chan live.Event, s.config.LiveEventBuffer)
		mgr, err := live.NewManager(session, s.deps.Recommender, s.deps.Generator, &cfg, s.logger,
			live.WithClock(s.deps.Clock),
			live.WithEventHandler(func(ev live.Event) { s.publish(id, entry, ev) }))
		if err != nil {
			session.Close()
			return nil, err
		}
		entry.live = mgr
	}
	entry.touch(s.deps.Clock())
	return entry, nil
}

// StreamUtterance submits an utterance and returns its event stream.
func (s *SessionService) StreamUtterance(ctx context.Context, id string, role domain.Role, text string) (*orchestrator.Turn, error) {
	entry, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return entry.session.Submit(ctx, role, text)
}

// SubmitUtterance submits an utterance and waits for all of its events.
func (s *SessionService) SubmitUtterance(ctx context.Context, id string, role domain.Role, text string) ([]orchestrator.Event, error) {
	turn, err := s.StreamUtterance(ctx, id, role, text)
	if err != nil {
		return nil, err
	}
	return turn.Wait(ctx)
}

// StreamFinalize starts finalization and returns its event stream.
func (s *SessionService) StreamFinalize(ctx context.Context, id string) (*orchestrator.Turn, error) {
	entry, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return entry.session.Finalize(ctx)
}

// Finalize produces the summary and plan and closes the session.
func (s *SessionService) Finalize(ctx context.Context, id string) ([]orchestrator.Event, error) {
	turn, err := s.StreamFinalize(ctx, id)
	if err != nil {
		return nil, err
	}
	return turn.Wait(ctx)
}

// IngestTranscript feeds a speech-to-text event to a live session.
func (s *SessionService) IngestTranscript(ctx context.Context, id string, ev live.TranscriptEvent) error {
	entry, err := s.getLive(ctx, id)
	if err != nil {
		return err
	}
	return entry.live.Ingest(ctx, ev)
}

// LiveEvents returns the event stream of a live session. There is one stream
// per session.
func (s *SessionService) LiveEvents(id string) (<-chan live.Event, error) {
	entry, err := s.getLive(context.Background(), id)
	if err != nil {
		return nil, err
	}
	return entry.events, nil
}

// StopLive stops a live session and returns its stop bundle. The bundle is
// kept for follow-up questions.
func (s *SessionService) StopLive(ctx context.Context, id string) (*live.StopBundle, error) {
	entry, err := s.getLive(ctx, id)
	if err != nil {
		return nil, err
	}
	bundle, err := entry.live.Stop(ctx)
	if err != nil {
		return nil, err
	}
	entry.followMu.Lock()
	entry.bundle = bundle
	entry.followMu.Unlock()
	s.persistEntry(entry, entry.session.Snapshot())
	return bundle, nil
}

// MarkAsked records that the clinician asked a question matching text and
// returns how many tracked questions it matched.
func (s *SessionService) MarkAsked(ctx context.Context, id, text string) (int, error) {
	entry, err := s.get(ctx, id)
	if err != nil {
		return 0, err
	}
	var matched bool
	if entry.live != nil {
		matched, err = entry.live.MarkAsked(ctx, text)
	} else {
		matched, err = entry.session.MarkAsked(ctx, text)
	}
	if err != nil || !matched {
		return 0, err
	}
	s.persistEntry(entry, entry.session.Snapshot())
	return 1, nil
}

// Unasked returns the ranked pending questions of a live session.
func (s *SessionService) Unasked(ctx context.Context, id string) ([]domain.PendingQuestion, error) {
	entry, err := s.getLive(ctx, id)
	if err != nil {
		return nil, err
	}
	return entry.live.Unasked(), nil
}

// Snapshot returns the conversation, from memory or from the store.
func (s *SessionService) Snapshot(ctx context.Context, id string) (*domain.ConversationState, error) {
	if entry, ok := s.lookup(id); ok {
		return entry.session.Snapshot(), nil
	}
	return s.deps.Conversations.Load(ctx, id)
}

// Owner returns the id of the clinician who started the session.
func (s *SessionService) Owner(ctx context.Context, id string) (string, error) {
	s.mu.RLock()
	entry, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		return entry.ownerID, nil
	}
	return s.deps.Conversations.OwnerOf(ctx, id)
}

// ListSessions returns one page of a clinician's stored conversations, newest
// first, and the total count.
func (s *SessionService) ListSessions(ctx context.Context, ownerID string, limit, offset int) ([]domain.Conversation, int64, error) {
	return s.deps.Conversations.ListByOwner(ctx, ownerID, limit, offset)
}

// DeleteSession closes the session if it is live in memory and removes the
// conversation and its likelihood report.
func (s *SessionService) DeleteSession(ctx context.Context, id string) error {
	entry, ok, done, err := s.beginTeardown(ctx, id)
	if err != nil {
		return err
	}
	defer done()
	if ok {
		s.retire(entry, nil)
		s.shutdownEntry(ctx, id, entry)
	}

	if err := s.deps.Conversations.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.deps.Snapshots.Delete(ctx, id); err != nil {
		s.logger.Error("likelihood snapshot delete failed", "session_id", id, "error", err)
	}
	if err := s.deps.Cache.Delete(ctx, id); err != nil {
		s.logger.Warn("likelihood cache delete failed", "session_id", id, "error", err)
	}
	s.logger.Info("session deleted", "session_id", id)
	return nil
}

// ScoreLikelihood returns the likelihood report of a session. Without force
// a cached or stored report is reused while the conversation is unchanged.
func (s *SessionService) ScoreLikelihood(ctx context.Context, id string, force bool) (*domain.LikelihoodReport, error) {
	snap, err := s.Snapshot(ctx, id)
	if err != nil {
		return nil, err
	}

	if !force {
		if report := s.cachedReport(ctx, snap); report != nil {
			return report, nil
		}
	}

	report, err := s.deps.Scorer.Score(ctx, snap)
	if err != nil {
		if report != nil {
			s.logger.Warn("likelihood degraded", "session_id", id, "error", err)
			return report, nil
		}
		return nil, err
	}

	if err := s.deps.Cache.Put(ctx, id, &likelihood.CacheEntry{Report: report, CachedAt: s.deps.Clock()}); err != nil {
		s.logger.Warn("likelihood cache write failed", "session_id", id, "error", err)
	}
	if err := s.deps.Snapshots.Save(ctx, report); err != nil {
		s.logger.Error("likelihood snapshot save failed", "session_id", id, "error", err)
	}
	s.logger.Info("likelihood scored", "session_id", id, "forced", force, "cancer_pct", report.CancerLikelihoodPct)
	return report, nil
}

func (s *SessionService) cachedReport(ctx context.Context, snap *domain.ConversationState) *domain.LikelihoodReport {
	entry, err := s.deps.Cache.Get(ctx, snap.ID)
	if err != nil {
		s.logger.Warn("likelihood cache read failed", "session_id", snap.ID, "error", err)
	}
	if entry.Fresh(snap.UpdatedAt) {
		return entry.Report
	}

	stored, err := s.deps.Snapshots.Find(ctx, snap.ID)
	if err != nil {
		if !errors.Is(err, likelihoodrepo.ErrSnapshotNotFound) {
			s.logger.Warn("likelihood snapshot read failed", "session_id", snap.ID, "error", err)
		}
		return nil
	}
	if !stored.AnalyzedAt.Equal(snap.UpdatedAt) {
		return nil
	}
	if err := s.deps.Cache.Put(ctx, snap.ID, &likelihood.CacheEntry{Report: stored, CachedAt: s.deps.Clock()}); err != nil {
		s.logger.Warn("likelihood cache write failed", "session_id", snap.ID, "error", err)
	}
	return stored
}

func (s *SessionService) lookup(id string) (*sessionEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.sessions[id]
	return entry, ok
}

// get returns the in-memory session, restoring it from the store when it was
// evicted before it was finalized.
func (s *SessionService) get(ctx context.Context, id string) (*sessionEntry, error) {
	entry, ok := s.lookup(id)
	if !ok {
		var err error
		if entry, err = s.restore(ctx, id); err != nil {
			return nil, err
		}
	}
	entry.touch(s.deps.Clock())
	return entry, nil
}

func (s *SessionService) restore(ctx context.Context, id string) (*sessionEntry, error) {
	for {
		s.restoreMu.Lock()
		s.mu.RLock()
		entry, ok := s.sessions[id]
		wait := s.closing[id]
		s.mu.RUnlock()
		if ok {
			s.restoreMu.Unlock()
			return entry, nil
		}
		if wait == nil {
			break
		}
		s.restoreMu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	defer s.restoreMu.Unlock()

	stored, err := s.deps.Conversations.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if stored.Status != domain.StatusIdle && stored.Status != domain.StatusActive {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	owner, err := s.deps.Conversations.OwnerOf(ctx, id)
	if err != nil {
		return nil, err
	}
	entry, err := s.newEntry(id, owner, orchestrator.Options{
		Mode:        stored.Mode,
		Language:    stored.Language,
		AutoRespond: stored.AutoRespond,
		Initial:     stored,
	}, live.Policy(stored.Policy))
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.sessions[id] = entry
	s.mu.Unlock()
	s.logger.Info("session restored", "session_id", id, "mode", stored.Mode, "utterances", len(stored.Utterances))
	return entry, nil
}

// beginTeardown removes a session from memory and blocks restores of it until
// the returned func is called. It first waits for any teardown of the same
// session already in progress.
func (s *SessionService) beginTeardown(ctx context.Context, id string) (*sessionEntry, bool, func(), error) {
	for {
		s.restoreMu.Lock()
		s.mu.Lock()
		if wait, busy := s.closing[id]; busy {
			s.mu.Unlock()
			s.restoreMu.Unlock()
			select {
			case <-wait:
				continue
			case <-ctx.Done():
				return nil, false, nil, ctx.Err()
			}
		}
		entry, ok := s.sessions[id]
		delete(s.sessions, id)
		ch := make(chan struct{})
		s.closing[id] = ch
		s.mu.Unlock()
		s.restoreMu.Unlock()
		return entry, ok, func() {
			s.mu.Lock()
			delete(s.closing, id)
			s.mu.Unlock()
			close(ch)
		}, nil
	}
}

func (s *SessionService) getLive(ctx context.Context, id string) (*sessionEntry, error) {
	entry, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry.live == nil {
		return nil, fmt.Errorf("%w: session %s is not a live session", domain.ErrInvalidArgument, id)
	}
	return entry, nil
}

func (s *SessionService) publish(id string, entry *sessionEntry, ev live.Event) {
	entry.streamMu.Lock()
	defer entry.streamMu.Unlock()
	if entry.streamClosed {
		s.logger.Debug("live event after stream close", "session_id", id, "type", ev.Type)
		return
	}
	select {
	case entry.events <- ev:
	default:
		s.logger.Warn("live event dropped, no reader", "session_id", id, "type", ev.Type)
	}
}

// persistEntry saves st unless the entry has been retired.
func (s *SessionService) persistEntry(entry *sessionEntry, st *domain.ConversationState) {
	entry.persistMu.Lock()
	defer entry.persistMu.Unlock()
	if entry.retired {
		s.logger.Debug("skipping persist of retired session", "session_id", st.ID)
		return
	}
	s.save(entry, st)
}

// retire saves final, when given, and blocks every later save of the entry.
func (s *SessionService) retire(entry *sessionEntry, final *domain.ConversationState) {
	entry.persistMu.Lock()
	defer entry.persistMu.Unlock()
	if final != nil && !entry.retired {
		s.save(entry, final)
	}
	entry.retired = true
}

func (s *SessionService) save(entry *sessionEntry, st *domain.ConversationState) {
	st.AutoRespond = entry.autoRespond
	st.Policy = string(entry.policy)
	s.persist(entry.ownerID, st)
}

func (s *SessionService) persist(ownerID string, st *domain.ConversationState) {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.PersistTimeout)
	defer cancel()
	if err := s.deps.Conversations.Save(ctx, ownerID, st); err != nil {
		s.logger.Error("conversation persist failed", "session_id", st.ID, "error", err)
	}
}

// File: internal/services/live/manager.go
package live

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/yuin/goldmark"

	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/domain"
	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/services/orchestrator"
	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/services/recommender"
)

// Logger is the logging contract this package needs.
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}

// Conversation is the orchestrator session a manager feeds.
type Conversation interface {
	ID() string
	Submit(ctx context.Context, role domain.Role, text string) (*orchestrator.Turn, error)
	Snapshot() *domain.ConversationState
	Track(ctx context.Context, rec domain.Recommendation, pending bool) error
	MarkAsked(ctx context.Context, text string) (bool, error)
	Close()
}

type TranscriptKind string

const (
	KindPartial TranscriptKind = "partial"
	KindFinal   TranscriptKind = "final"
)

// TranscriptEvent is one speech-to-text result. Role defaults to patient.
type TranscriptEvent struct {
	Kind TranscriptKind `json:"type"`
	Text string         `json:"text"`
	Role domain.Role    `json:"role,omitempty"`
	At   time.Time      `json:"at,omitempty"`
}

type EventType string

const (
	EventPartial        EventType = "partial"
	EventCommitted      EventType = "committed"
	EventRecommendation EventType = "recommendation"
	EventSystem         EventType = "system"
)

// Event is pushed to the manager's handler as transcripts are processed.
type Event struct {
	Type           EventType              `json:"type"`
	Role           domain.Role            `json:"role,omitempty"`
	Text           string                 `json:"text,omitempty"`
	Recommendation *domain.Recommendation `json:"recommendation,omitempty"`
	At             time.Time              `json:"at"`
}

// StopBundle is the end-of-session report.
type StopBundle struct {
	SessionID   string                   `json:"session_id"`
	Policy      Policy                   `json:"policy"`
	Summary     string                   `json:"summary,omitempty"`
	SummaryHTML string                   `json:"summary_html,omitempty"`
	Plan        string                   `json:"plan,omitempty"`
	PlanHTML    string                   `json:"plan_html,omitempty"`
	Unasked     []domain.PendingQuestion `json:"unasked_questions"`
	Utterances  int                      `json:"utterances"`
	StoppedAt   time.Time                `json:"stopped_at"`
}

type Option func(*Manager)

// WithClock replaces time.Now for debounce and throttling.
func WithClock(clock func() time.Time) Option {
	return func(m *Manager) { m.clock = clock }
}

// WithTimer replaces time.After for deferred recommendations.
func WithTimer(after func(time.Duration) <-chan time.Time) Option {
	return func(m *Manager) { m.after = after }
}

// WithEventHandler receives events from the worker goroutine, in order.
func WithEventHandler(fn func(Event)) Option {
	return func(m *Manager) { m.onEvent = fn }
}

// Manager turns a transcription stream into committed utterances and
// recommendations. Transcript events are processed one at a time in arrival
// order.
type Manager struct {
	conv      Conversation
	rec       orchestrator.Recommender
	generator domain.ReplyGenerator
	config    *Config
	logger    Logger
	clock     func() time.Time
	after     func(time.Duration) <-chan time.Time
	onEvent   func(Event)

	mu      sync.RWMutex
	stopped bool
	in      chan TranscriptEvent
	done    chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc

	// Worker-owned.
	lastFinal   string
	lastFinalAt time.Time
	lastRecAt   time.Time
	// deferred fires when a throttled recommendation may be surfaced.
	deferred <-chan time.Time
}

func NewManager(conv Conversation, rec orchestrator.Recommender, generator domain.ReplyGenerator, config *Config, logger Logger, opts ...Option) (*Manager, error) {
	if conv == nil || rec == nil || generator == nil || logger == nil {
		return nil, fmt.Errorf("conversation, recommender, generator and logger are required")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid live configuration: %w", err)
	}
	m := &Manager{
		conv:      conv,
		rec:       rec,
		generator: generator,
		config:    config,
		logger:    logger,
		clock:     time.Now,
		after:     time.After,
		in:        make(chan TranscriptEvent, config.QueueSize),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.ctx, m.cancel = context.WithCancel(context.Background())
	go m.run()
	return m, nil
}

func (m *Manager) Policy() Policy { return m.config.Policy }

// Done is closed once every received transcript event has been processed.
func (m *Manager) Done() <-chan struct{} { return m.done }

// Stopped reports whether Stop has been called.
func (m *Manager) Stopped() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stopped
}

// Ingest queues a transcript event. It blocks only while the queue is full.
func (m *Manager) Ingest(ctx context.Context, ev TranscriptEvent) error {
	if ev.Kind != KindPartial && ev.Kind != KindFinal {
		return fmt.Errorf("%w: unknown transcript kind %q", domain.ErrInvalidArgument, ev.Kind)
	}
	if ev.Role == "" {
		ev.Role = domain.RolePatient
	}
	if ev.Role != domain.RolePatient && ev.Role != domain.RoleClinician {
		return fmt.Errorf("%w: transcript role %q", domain.ErrInvalidArgument, ev.Role)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.stopped {
		return fmt.Errorf("%w: live session %s is stopped", domain.ErrSessionClosed, m.conv.ID())
	}
	select {
	case m.in <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// MarkAsked records that the clinician asked a question matching text.
func (m *Manager) MarkAsked(ctx context.Context, text string) (bool, error) {
	return m.conv.MarkAsked(ctx, text)
}

// Unasked returns the pending questions ranked for the stop bundle.
func (m *Manager) Unasked() []domain.PendingQuestion {
	return rankPending(m.conv.Snapshot().Pending, m.config.MaxUnasked)
}

// Stop closes ingestion, processes every event already received and closes
// the conversation. Under PolicyUnasked the bundle carries a summary, a final
// plan and the ranked unasked questions. A second call waits for the first
// one's drain and then fails with ErrSessionClosed.
func (m *Manager) Stop(ctx context.Context) (*StopBundle, error) {
	return m.stop(ctx, true)
}

// Close stops the manager like Stop without asking the listener for the
// summary and plan.
func (m *Manager) Close(ctx context.Context) error {
	_, err := m.stop(ctx, false)
	return err
}

func (m *Manager) stop(ctx context.Context, report bool) (*StopBundle, error) {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		select {
		case <-m.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: live session %s is already stopped", domain.ErrSessionClosed, m.conv.ID())
	}
	m.stopped = true
	close(m.in)
	m.mu.Unlock()

	select {
	case <-m.done:
	case <-ctx.Done():
		m.cancel()
		<-m.done
	}
	defer m.cancel()

	snap := m.conv.Snapshot()
	bundle := &StopBundle{
		SessionID:  m.conv.ID(),
		Policy:     m.config.Policy,
		Unasked:    []domain.PendingQuestion{},
		Utterances: len(snap.Utterances),
		StoppedAt:  m.clock(),
	}
	if report && m.config.Policy == PolicyUnasked {
		bundle.Summary = m.listen(ctx, snap, domain.TaskSummary)
		bundle.SummaryHTML = renderMarkdown(bundle.Summary)
		bundle.Plan = m.listen(ctx, snap, domain.TaskPlan)
		bundle.PlanHTML = renderMarkdown(bundle.Plan)
		bundle.Unasked = rankPending(snap.Pending, m.config.MaxUnasked)
	}
	m.conv.Close()
	m.logger.Info("live session stopped",
		"session_id", bundle.SessionID,
		"policy", bundle.Policy,
		"utterances", bundle.Utterances,
		"unasked", len(bundle.Unasked))
	return bundle, nil
}

func (m *Manager) run() {
	defer close(m.done)
	for {
		select {
		case ev, ok := <-m.in:
			if !ok {
				if m.deferred != nil {
					m.logger.Debug("deferred recommendation dropped on stop", "session_id", m.conv.ID())
				}
				return
			}
			switch ev.Kind {
			case KindPartial:
				if text := strings.TrimSpace(ev.Text); text != "" {
					m.emit(Event{Type: EventPartial, Role: ev.Role, Text: text, At: m.at(ev)})
				}
			case KindFinal:
				m.commit(ev)
			}
		case <-m.deferred:
			m.deferred = nil
			m.recommend(m.ctx, m.clock())
		}
	}
}

func (m *Manager) commit(ev TranscriptEvent) {
	ctx := m.ctx
	text := strings.TrimSpace(ev.Text)
	if text == "" {
		return
	}
	at := m.at(ev)
	if text == m.lastFinal && at.Sub(m.lastFinalAt) < m.config.DebounceWindow {
		m.logger.Debug("duplicate final discarded", "session_id", m.conv.ID())
		return
	}
	if m.config.FilterIncoherent {
		snap := m.conv.Snapshot()
		answering := ev.Role == domain.RolePatient && followsQuestion(snap.Utterances)
		if !IsCoherentReply(text, snap.Transcript(), answering) {
			m.logger.Debug("incoherent final discarded", "session_id", m.conv.ID(), "text", text)
			return
		}
	}

	turn, err := m.conv.Submit(ctx, ev.Role, text)
	if err != nil {
		m.logger.Warn("final could not be committed", "session_id", m.conv.ID(), "error", err)
		m.emit(Event{Type: EventSystem, Role: domain.RoleSystem, Text: fmt.Sprintf("Transcript not saved: %v", err), At: at})
		return
	}
	if _, err := turn.Wait(ctx); err != nil {
		return
	}
	m.lastFinal, m.lastFinalAt = text, at
	m.emit(Event{Type: EventCommitted, Role: ev.Role, Text: text, At: at})

	if ev.Role == domain.RoleClinician {
		if _, err := m.conv.MarkAsked(ctx, text); err != nil {
			m.logger.Warn("mark asked failed", "session_id", m.conv.ID(), "error", err)
		}
		return
	}
	m.recommend(ctx, at)
}

// recommend surfaces or tracks the next question. Under PolicyNormal a
// request inside the throttle window is deferred until the window closes.
func (m *Manager) recommend(ctx context.Context, at time.Time) {
	if m.config.Policy == PolicyNormal && !m.lastRecAt.IsZero() {
		if wait := m.lastRecAt.Add(m.config.MinRecommendInterval).Sub(at); wait > 0 {
			if m.deferred == nil {
				m.deferred = m.after(wait)
			}
			m.logger.Debug("recommendation deferred", "session_id", m.conv.ID(), "wait", wait)
			return
		}
	}
	m.deferred = nil

	snap := m.conv.Snapshot()
	rec, err := m.rec.Recommend(ctx, recommender.Request{
		Context:  snap.Utterances,
		Asked:    snap.Asked.Union(snap.PendingSet()),
		Language: snap.Language,
	})
	if err != nil {
		m.logger.Warn("live recommendation failed", "session_id", m.conv.ID(), "error", err)
		if m.config.Policy == PolicyNormal {
			m.emit(Event{Type: EventSystem, Role: domain.RoleSystem, Text: fmt.Sprintf("Recommendation unavailable: %v", err), At: at})
		}
		return
	}
	if rec == nil {
		return
	}

	pending := m.config.Policy == PolicyUnasked
	if err := m.conv.Track(ctx, *rec, pending); err != nil {
		m.logger.Warn("recommendation not tracked", "session_id", m.conv.ID(), "error", err)
		return
	}
	if !pending {
		m.lastRecAt = at
		m.emit(Event{Type: EventRecommendation, Text: rec.Text, Recommendation: rec, At: at})
	}
}

// listen asks the listener for the summary or the final plan. Failures are
// reported in the returned text.
func (m *Manager) listen(ctx context.Context, snap *domain.ConversationState, task domain.Task) string {
	out, err := m.generator.GenerateReply(ctx, domain.ReplyRequest{
		Role:       domain.RoleListener,
		Task:       task,
		Transcript: snap.Utterances,
		Language:   snap.Language,
	})
	if err != nil {
		m.logger.Error("live listener output failed", "session_id", snap.ID, "task", task, "error", err)
		if task == domain.TaskPlan {
			return fmt.Sprintf("Final plan unavailable: %v", err)
		}
		return fmt.Sprintf("Summary unavailable: %v", err)
	}
	return out
}

func (m *Manager) at(ev TranscriptEvent) time.Time {
	if !ev.At.IsZero() {
		return ev.At
	}
	return m.clock()
}

func (m *Manager) emit(e Event) {
	if m.onEvent != nil {
		m.onEvent(e)
	}
}

// rankPending orders pending questions by similarity, keeping insertion order
// for ties, and returns at most max of them.
func rankPending(pending []domain.PendingQuestion, max int) []domain.PendingQuestion {
	out := make([]domain.PendingQuestion, len(pending))
	copy(out, pending)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Recommendation.Similarity > out[j].Recommendation.Similarity
	})
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out
}

func renderMarkdown(md string) string {
	if strings.TrimSpace(md) == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return ""
	}
	return buf.String()
}

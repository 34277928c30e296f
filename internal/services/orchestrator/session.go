// File: internal/services/orchestrator/session.go
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/domain"
	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/services/recommender"
)

// Recommender picks the next question for a conversation.
type Recommender interface {
	Recommend(ctx context.Context, req recommender.Request) (*domain.Recommendation, error)
}

// Logger is the logging contract this package needs.
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}

const (
	finalPlanHeader     = "**FINAL PLAN:**\n\n"
	noRecommendationMsg = "No further recommendations: every suggested question has been asked."
)

// Options configures one session.
type Options struct {
	Mode     domain.Mode
	Language domain.Language
	// AutoRespond generates the counterpart reply in turn_based mode.
	AutoRespond bool
	// Initial restores a previously persisted conversation.
	Initial *domain.ConversationState
	// OnTurnComplete receives a snapshot after every processed turn.
	OnTurnComplete func(*domain.ConversationState)
}

// Dependencies are the collaborators a session calls.
type Dependencies struct {
	Recommender Recommender
	Generator   domain.ReplyGenerator
	Logger      Logger
	Clock       func() time.Time
}

type job func(ctx context.Context)

// Session drives one conversation. Input is accepted from any goroutine and
// processed by a single worker in arrival order.
type Session struct {
	id     string
	opts   Options
	deps   Dependencies
	config *Config

	mu        sync.Mutex
	cond      *sync.Cond
	queue     []job
	status    domain.SessionStatus
	closing   bool
	lastQueue domain.Role
	humanRole domain.Role
	seeded    bool

	stateMu sync.RWMutex
	state   *domain.ConversationState

	// Worker-owned.
	lastRec *domain.Recommendation
	seq     int

	finalizing atomic.Bool
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

func NewSession(id string, opts Options, deps Dependencies, config *Config) (*Session, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: session id is required", domain.ErrInvalidArgument)
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid orchestrator configuration: %w", err)
	}
	if deps.Recommender == nil || deps.Generator == nil || deps.Logger == nil {
		return nil, fmt.Errorf("recommender, generator and logger are required")
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if opts.Mode == "" {
		opts.Mode = domain.ModeTurnBased
	}
	if opts.Language == "" {
		opts.Language = domain.LanguageBilingual
	}

	s := &Session{id: id, opts: opts, deps: deps, config: config, done: make(chan struct{})}
	s.cond = sync.NewCond(&s.mu)
	if opts.Initial != nil {
		s.state = opts.Initial.Clone()
		s.state.ID = id
		s.state.Mode = opts.Mode
		s.state.Language = opts.Language
		s.status = s.state.Status
		if last, ok := s.state.LastSpeaker(); ok {
			s.lastQueue = last
			s.seeded = true
		}
	} else {
		s.state = domain.NewConversationState(id, opts.Mode, opts.Language, deps.Clock())
		s.status = domain.StatusIdle
	}
	if s.status == domain.StatusClosed || s.status == domain.StatusFinalizing {
		return nil, newClosedError(id, "restore")
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	go s.run()
	return s, nil
}

func (s *Session) ID() string { return s.id }

func (s *Session) Mode() domain.Mode { return s.opts.Mode }

func (s *Session) Language() domain.Language { return s.opts.Language }

func (s *Session) Status() domain.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Snapshot returns a deep copy of the conversation.
func (s *Session) Snapshot() *domain.ConversationState {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state.Clone()
}

// Done is closed once the worker has exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Submit queues an utterance from a human actor.
func (s *Session) Submit(ctx context.Context, role domain.Role, text string) (*Turn, error) {
	text = strings.TrimSpace(text)
	if role != domain.RoleClinician && role != domain.RolePatient {
		return nil, newInvalidInput(s.id, "submit", fmt.Sprintf("role %q cannot submit utterances", role))
	}
	if text == "" {
		return nil, newInvalidInput(s.id, "submit", "text is empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.acceptingLocked("submit"); err != nil {
		return nil, err
	}

	var run func(ctx context.Context, t *Turn)
	capacity := s.config.EventBuffer
	switch s.opts.Mode {
	case domain.ModeTurnBased:
		if err := s.checkTurnLocked(role); err != nil {
			return nil, err
		}
		run = func(ctx context.Context, t *Turn) { s.turnBased(ctx, t, role, text) }
	case domain.ModeSimulated:
		if s.seeded {
			return nil, newInvalidInput(s.id, "submit", "simulated session already has a scenario")
		}
		if role != domain.RolePatient {
			return nil, newInvalidInput(s.id, "submit", "a simulated scenario must be seeded by the patient")
		}
		s.seeded = true
		capacity = 3*s.config.SimulatedTurns + s.config.EventBuffer
		run = func(ctx context.Context, t *Turn) { s.simulate(ctx, t, text) }
	case domain.ModeLive:
		run = func(ctx context.Context, t *Turn) { s.appendOnly(t, role, text) }
	default:
		return nil, newInvalidInput(s.id, "submit", fmt.Sprintf("unknown mode %q", s.opts.Mode))
	}

	s.lastQueue = role
	s.setStatusLocked(domain.StatusActive)
	turn := newTurn(capacity)
	s.enqueueLocked(func(ctx context.Context) {
		defer s.complete(turn)
		run(ctx, turn)
	})
	return turn, nil
}

// Finalize closes the session to input and queues the summary and plan.
func (s *Session) Finalize(ctx context.Context) (*Turn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.acceptingLocked("finalize"); err != nil {
		return nil, err
	}
	s.setStatusLocked(domain.StatusFinalizing)
	s.finalizing.Store(true)

	turn := newTurn(s.config.EventBuffer)
	s.enqueueLocked(func(ctx context.Context) {
		defer s.complete(turn)
		s.finalize(ctx, turn)
	})
	return turn, nil
}

// Track records a recommendation produced outside the session. With pending
// set it is kept as an unasked question; otherwise it becomes the question a
// later clinician utterance is matched against.
func (s *Session) Track(ctx context.Context, rec domain.Recommendation, pending bool) error {
	return s.do(ctx, "track", func(_ context.Context) {
		r := rec
		s.lastRec = &r
		if !pending {
			return
		}
		s.mutate(func(st *domain.ConversationState) {
			for _, p := range st.Pending {
				if p.Recommendation.ID == rec.ID {
					return
				}
			}
			st.Pending = append(st.Pending, domain.PendingQuestion{Recommendation: rec, AddedAt: s.deps.Clock()})
		})
	})
}

// MarkAsked marks the last recommendation, or any pending question, as asked
// when text matches it. It reports whether anything matched.
func (s *Session) MarkAsked(ctx context.Context, text string) (bool, error) {
	if strings.TrimSpace(text) == "" {
		return false, newInvalidInput(s.id, "mark asked", "text is empty")
	}
	matched := make(chan bool, 1)
	if err := s.do(ctx, "mark asked", func(_ context.Context) {
		matched <- s.markAskedByText(text)
	}); err != nil {
		return false, err
	}
	return <-matched, nil
}

// Close stops the worker and marks the session closed. Queued turns still
// complete with a system event.
func (s *Session) Close() {
	s.mu.Lock()
	s.closing = true
	if s.status != domain.StatusClosed {
		s.setStatusLocked(domain.StatusClosed)
	}
	s.cond.Broadcast()
	s.mu.Unlock()
	s.cancel()
	<-s.done
}

// do runs fn on the worker and waits for it.
func (s *Session) do(ctx context.Context, op string, fn func(ctx context.Context)) error {
	finished := make(chan struct{})
	s.mu.Lock()
	if s.closing || s.status == domain.StatusClosed {
		s.mu.Unlock()
		return newClosedError(s.id, op)
	}
	s.enqueueLocked(func(ctx context.Context) {
		defer close(finished)
		fn(ctx)
	})
	s.mu.Unlock()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) acceptingLocked(op string) error {
	if s.closing || s.status == domain.StatusFinalizing || s.status == domain.StatusClosed {
		return newClosedError(s.id, op)
	}
	return nil
}

// checkTurnLocked enforces clinician/patient alternation. With auto-respond
// the human always plays the side they opened with.
func (s *Session) checkTurnLocked(role domain.Role) error {
	if s.opts.AutoRespond {
		if s.humanRole == "" {
			s.humanRole = role
		}
		if role != s.humanRole {
			return newInvalidInput(s.id, "submit", fmt.Sprintf("%s replies are generated in this session", role))
		}
		return nil
	}
	if s.lastQueue == role {
		return newInvalidInput(s.id, "submit", fmt.Sprintf("out of turn: waiting for %s", counterpart(role)))
	}
	return nil
}

func (s *Session) enqueueLocked(j job) {
	s.queue = append(s.queue, j)
	s.cond.Signal()
}

func (s *Session) setStatusLocked(status domain.SessionStatus) {
	s.status = status
	s.stateMu.Lock()
	s.state.Status = status
	s.stateMu.Unlock()
}

func (s *Session) run() {
	defer close(s.done)
	for {
		j, ok := s.next()
		if !ok {
			return
		}
		j(s.ctx)
	}
}

func (s *Session) next() (job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.queue) == 0 {
		if s.closing || s.status == domain.StatusClosed {
			return nil, false
		}
		s.cond.Wait()
	}
	j := s.queue[0]
	s.queue[0] = nil
	s.queue = s.queue[1:]
	return j, true
}

func (s *Session) mutate(fn func(*domain.ConversationState)) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	fn(s.state)
}

// transcript copies the utterances; only the worker calls it.
func (s *Session) transcript() []domain.Utterance {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	out := make([]domain.Utterance, len(s.state.Utterances))
	copy(out, s.state.Utterances)
	return out
}

func (s *Session) emit(t *Turn, e Event) {
	s.seq++
	e.Seq = s.seq
	e.Timestamp = s.deps.Clock()
	select {
	case t.events <- e:
	default:
		s.deps.Logger.Warn("turn buffer full, event dropped", "session_id", s.id, "type", e.Type)
	}
}

func (s *Session) complete(t *Turn) {
	if hook := s.opts.OnTurnComplete; hook != nil {
		hook(s.Snapshot())
	}
	s.emit(t, Event{Type: EventTurnComplete})
	close(t.events)
}

func (s *Session) systemEvent(t *Turn, format string, args ...interface{}) {
	s.emit(t, Event{Type: EventSystem, Role: domain.RoleSystem, Text: fmt.Sprintf(format, args...)})
}

// say appends an utterance and emits it as a message.
func (s *Session) say(t *Turn, role domain.Role, text string) {
	s.mutate(func(st *domain.ConversationState) {
		st.Append(domain.Utterance{Role: role, Text: text, Timestamp: s.deps.Clock()})
	})
	s.emit(t, Event{Type: EventMessage, Role: role, Text: text})
}

func (s *Session) record(role domain.Role, text string) {
	s.mutate(func(st *domain.ConversationState) {
		st.Append(domain.Utterance{Role: role, Text: text, Timestamp: s.deps.Clock()})
	})
}

func (s *Session) appendOnly(_ *Turn, role domain.Role, text string) {
	s.record(role, text)
}

func (s *Session) turnBased(ctx context.Context, t *Turn, role domain.Role, text string) {
	if ctx.Err() != nil {
		s.systemEvent(t, "Session closed before the turn was processed.")
		return
	}
	s.record(role, text)

	var rec *domain.Recommendation
	switch role {
	case domain.RoleClinician:
		s.markAskedByText(text)
	case domain.RolePatient:
		rec = s.recommend(ctx, t, false)
	}

	if !s.opts.AutoRespond {
		return
	}
	reply := counterpart(role)
	guidance := ""
	if reply == domain.RoleClinician && rec != nil {
		guidance = rec.Text
	}
	s.respond(ctx, t, reply, guidance, role, text)
	if reply == domain.RoleClinician && rec != nil {
		s.markAsked(*rec)
	}
}

func (s *Session) simulate(ctx context.Context, t *Turn, scenario string) {
	s.record(domain.RolePatient, scenario)
	for i := 0; i < s.config.SimulatedTurns; i++ {
		if ctx.Err() != nil || s.finalizing.Load() {
			s.deps.Logger.Info("simulation stopped early", "session_id", s.id, "turn", i)
			return
		}
		rec := s.recommend(ctx, t, i == 0)
		guidance := ""
		if rec != nil {
			guidance = rec.Text
		}
		if !s.respond(ctx, t, domain.RoleClinician, guidance, domain.RolePatient, scenario) {
			return
		}
		if rec != nil {
			s.markAsked(*rec)
		}
		if ctx.Err() != nil || s.finalizing.Load() {
			return
		}
		if !s.respond(ctx, t, domain.RolePatient, "", domain.RolePatient, scenario) {
			return
		}
	}
}

func (s *Session) finalize(ctx context.Context, t *Turn) {
	defer func() {
		s.mu.Lock()
		s.setStatusLocked(domain.StatusClosed)
		s.mu.Unlock()
		s.deps.Logger.Info("session finalized", "session_id", s.id)
	}()

	summary, err := s.deps.Generator.GenerateReply(ctx, domain.ReplyRequest{
		Role:       domain.RoleListener,
		Task:       domain.TaskSummary,
		Transcript: s.transcript(),
		Language:   s.opts.Language,
	})
	if err != nil {
		s.deps.Logger.Error("listener summary failed", "session_id", s.id, "error", err)
		s.systemEvent(t, "Summary unavailable: %v", err)
	} else {
		s.say(t, domain.RoleListener, summary)
	}

	plan, err := s.deps.Generator.GenerateReply(ctx, domain.ReplyRequest{
		Role:       domain.RoleClinician,
		Task:       domain.TaskPlan,
		Transcript: s.transcript(),
		Language:   s.opts.Language,
	})
	if err != nil {
		s.deps.Logger.Error("final plan failed", "session_id", s.id, "error", err)
		s.systemEvent(t, "Final plan unavailable: %v", err)
		return
	}
	s.say(t, domain.RoleClinician, finalPlanHeader+plan)
}

// recommend queries the engine and emits the outcome. Failures become system
// events and yield nil.
func (s *Session) recommend(ctx context.Context, t *Turn, firstTurn bool) *domain.Recommendation {
	snap := s.Snapshot()
	rec, err := s.deps.Recommender.Recommend(ctx, recommender.Request{
		Context:       snap.Utterances,
		Asked:         snap.Asked.Union(snap.PendingSet()),
		Language:      s.opts.Language,
		FirstTurnHint: firstTurn,
	})
	if err != nil {
		s.deps.Logger.Warn("recommendation failed", "session_id", s.id, "error", err)
		s.systemEvent(t, "Recommendation unavailable: %v", err)
		return nil
	}
	if rec == nil {
		s.systemEvent(t, noRecommendationMsg)
		return nil
	}
	s.lastRec = rec
	s.emit(t, Event{Type: EventRecommendation, Text: rec.Text, Recommendation: rec})
	return rec
}

// respond generates one utterance for role. It returns false when generation
// failed.
func (s *Session) respond(ctx context.Context, t *Turn, role domain.Role, guidance string, triggerRole domain.Role, triggerText string) bool {
	text, err := s.deps.Generator.GenerateReply(ctx, domain.ReplyRequest{
		Role:       role,
		Task:       domain.TaskReply,
		Transcript: s.transcript(),
		Language:   s.opts.Language,
		Guidance:   guidance,
	})
	if err != nil {
		s.deps.Logger.Error("reply generation failed", "session_id", s.id, "role", role, "error", err)
		s.systemEvent(t, "The %s reply could not be generated: %v", role, err)
		return false
	}
	text = strings.TrimSpace(text)
	if role == triggerRole && text == triggerText {
		s.deps.Logger.Debug("suppressed echo of trigger", "session_id", s.id, "role", role)
		return true
	}
	s.say(t, role, text)
	return true
}

func (s *Session) markAsked(rec domain.Recommendation) {
	s.mutate(func(st *domain.ConversationState) { st.MarkAsked(rec) })
	if s.lastRec != nil && s.lastRec.ID == rec.ID {
		s.lastRec = nil
	}
}

func (s *Session) markAskedByText(text string) bool {
	if s.lastRec != nil && domain.MatchesAnyVariant(text, s.lastRec.Question) {
		s.markAsked(*s.lastRec)
		return true
	}
	snap := s.Snapshot()
	for _, p := range snap.Pending {
		if domain.MatchesAnyVariant(text, p.Recommendation.Question) {
			s.markAsked(p.Recommendation)
			return true
		}
	}
	return false
}

func counterpart(role domain.Role) domain.Role {
	if role == domain.RolePatient {
		return domain.RoleClinician
	}
	return domain.RolePatient
}

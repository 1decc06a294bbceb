package session

import (
	"context"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/live-quiz/internal/quiz"
	"github.com/gokatarajesh/live-quiz/internal/session/scoring"
	ws "github.com/gokatarajesh/live-quiz/pkg/http/ws"
)

// codeAlphabet leaves out characters that are easy to misread (0/O, 1/I).
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const maxCodeAttempts = 20

// RegistryOptions configures the session registry.
type RegistryOptions struct {
	CodeLength    int           // default: 6
	MaxIdle       time.Duration // default: 24h
	RecordTimeout time.Duration // default: 5s
	Session       Options
	Scoring       scoring.ScoringConfig
	Clock         clockwork.Clock
	Reserver      CodeReserver
	Tokens        HostTokens
	Recorders     []Recorder
	Metrics       Metrics
	CodeGenerator func(length int) string
}

// Registry owns every live session of this process, keyed by code,
// and the mapping from connections to the session they belong to.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session // nil value: code claimed, session not built yet
	conns    map[string]string

	notifier Notifier
	logger   zerolog.Logger
	opts     RegistryOptions
	engine   *scoring.Engine
	wg       sync.WaitGroup
	closed   bool
}

// NewRegistry creates an empty registry that delivers through notifier.
func NewRegistry(notifier Notifier, logger zerolog.Logger, opts RegistryOptions) *Registry {
	if opts.CodeLength < 4 {
		opts.CodeLength = 6
	}
	if opts.MaxIdle <= 0 {
		opts.MaxIdle = 24 * time.Hour
	}
	if opts.RecordTimeout <= 0 {
		opts.RecordTimeout = 5 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Metrics == nil {
		opts.Metrics = noopMetrics{}
	}
	if opts.CodeGenerator == nil {
		opts.CodeGenerator = randomCode
	}
	if opts.Scoring.BaseScore == 0 {
		opts.Scoring = scoring.DefaultScoringConfig()
	}
	opts.Session = opts.Session.withDefaults()

	return &Registry{
		sessions: make(map[string]*Session),
		conns:    make(map[string]string),
		notifier: notifier,
		logger:   logger.With().Str("component", "session_registry").Logger(),
		opts:     opts,
		engine:   scoring.NewEngine(opts.Scoring),
	}
}

func randomCode(length int) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = codeAlphabet[rand.IntN(len(codeAlphabet))]
	}
	return string(b)
}

// NormalizeCode upper-cases and trims a user-typed code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Create starts a new session hosted by connID.
func (r *Registry) Create(ctx context.Context, connID string, q quiz.Quiz) (*Session, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return nil, ErrShuttingDown
	}

	r.Disconnect(connID)

	code, err := r.allocate(ctx)
	if err != nil {
		return nil, err
	}

	var token string
	if r.opts.Tokens != nil && r.opts.Tokens.Enabled() {
		token, err = r.opts.Tokens.Issue(code)
		if err != nil {
			r.abandon(code)
			return nil, err
		}
	}

	s := newSession(code, q, connID, r.opts.Session, sessionDeps{
		clock:   r.opts.Clock,
		engine:  r.engine,
		out:     r,
		metrics: r.opts.Metrics,
		tokens:  r.opts.Tokens,
		logger:  r.logger,
	})

	r.mu.Lock()
	r.sessions[code] = s
	r.conns[connID] = code
	r.mu.Unlock()

	r.opts.Metrics.SessionCreated()
	r.logger.Info().
		Str("code", code).
		Str("quiz", q.Title).
		Int("questions", len(q.Questions)).
		Msg("session created")

	err = s.apply(func(now time.Time) ([]event, error) {
		return []event{unicast(connID, ws.TypeGameCreated, ws.GameCreatedPayload{
			Code:          code,
			QuizTitle:     s.quiz.Title,
			QuestionCount: len(s.quiz.Questions),
			HostToken:     token,
		})}, nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// allocate claims a code locally, then cluster-wide through the reserver.
// A reserver outage is logged and ignored so games can still be created.
func (r *Registry) allocate(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code := r.opts.CodeGenerator(r.opts.CodeLength)

		r.mu.Lock()
		if _, taken := r.sessions[code]; taken {
			r.mu.Unlock()
			continue
		}
		r.sessions[code] = nil
		r.mu.Unlock()

		if r.opts.Reserver == nil {
			return code, nil
		}
		ok, err := r.opts.Reserver.Reserve(ctx, code)
		if err != nil {
			r.logger.Warn().Err(err).Str("code", code).Msg("code reservation unavailable, using local check only")
			return code, nil
		}
		if ok {
			return code, nil
		}
		r.mu.Lock()
		delete(r.sessions, code)
		r.mu.Unlock()
	}
	return "", ErrCodeExhausted
}

func (r *Registry) abandon(code string) {
	r.mu.Lock()
	if r.sessions[code] == nil {
		delete(r.sessions, code)
	}
	r.mu.Unlock()
	if r.opts.Reserver != nil {
		if err := r.opts.Reserver.Release(context.Background(), code); err != nil {
			r.logger.Warn().Err(err).Str("code", code).Msg("failed to release code")
		}
	}
}

// Get returns the live session for code.
func (r *Registry) Get(code string) (*Session, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, ErrInvalidCode
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[code]
	if !ok || s == nil {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Count is the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, s := range r.sessions {
		if s != nil {
			n++
		}
	}
	return n
}

// SessionFor returns the session a connection is bound to.
func (r *Registry) SessionFor(connID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	code, ok := r.conns[connID]
	if !ok {
		return nil, false
	}
	s := r.sessions[code]
	return s, s != nil
}

// bind associates connID with s if s is still registered. A connection
// moving to a different session is detached from the old one first.
func (r *Registry) bind(connID string, s *Session) {
	r.mu.Lock()
	if r.sessions[s.code] != s {
		r.mu.Unlock()
		return
	}
	prevCode, hadPrev := r.conns[connID]
	prev := r.sessions[prevCode]
	r.conns[connID] = s.code
	r.mu.Unlock()

	if hadPrev && prev != nil && prev != s {
		prev.Disconnect(connID)
	}
}

func (r *Registry) unbind(connID string) {
	r.mu.Lock()
	delete(r.conns, connID)
	r.mu.Unlock()
}

// Join admits a participant into the session with code.
func (r *Registry) Join(code, connID, name string) (*Session, error) {
	s, err := r.Get(code)
	if err != nil {
		return nil, err
	}
	if _, err := s.Join(connID, name); err != nil {
		return nil, err
	}
	r.bind(connID, s)
	return s, nil
}

// ReconnectHost rebinds a returning host.
func (r *Registry) ReconnectHost(code, connID, token string) (*Session, error) {
	s, err := r.Get(code)
	if err != nil {
		return nil, err
	}
	if err := s.ReconnectHost(connID, token); err != nil {
		return nil, err
	}
	r.bind(connID, s)
	return s, nil
}

// ReconnectPlayer rebinds a returning participant by name.
func (r *Registry) ReconnectPlayer(code, connID, name string) (*Session, error) {
	s, err := r.Get(code)
	if err != nil {
		return nil, err
	}
	if _, err := s.ReconnectPlayer(connID, name); err != nil {
		return nil, err
	}
	r.bind(connID, s)
	return s, nil
}

// Leave removes the participant and forgets the connection binding.
func (r *Registry) Leave(code, connID string) error {
	s, err := r.Get(code)
	if err != nil {
		return err
	}
	if err := s.Leave(connID); err != nil {
		return err
	}
	r.unbind(connID)
	return nil
}

// Disconnect is called when a transport closes.
func (r *Registry) Disconnect(connID string) {
	r.mu.Lock()
	code, ok := r.conns[connID]
	delete(r.conns, connID)
	s := r.sessions[code]
	r.mu.Unlock()

	if ok && s != nil {
		s.Disconnect(connID)
	}
}

// deliver fans events out to their recipients and tears the session down
// once it has ended. Called with the session lock held.
func (r *Registry) deliver(s *Session, events []event) {
	for _, ev := range events {
		ids := s.recipients(ev)
		if len(ids) == 0 {
			continue
		}
		msg, err := ws.NewMessage(ev.msgType, ev.payload)
		if err != nil {
			r.logger.Error().Err(err).Str("code", s.code).Str("type", ev.msgType).Msg("failed to encode event")
			continue
		}
		for _, id := range ids {
			if err := r.notifier.Send(id, msg); err != nil {
				r.logger.Debug().Err(err).Str("conn_id", id).Str("type", ev.msgType).Msg("event not delivered")
			}
		}
		r.opts.Metrics.EventDelivered(len(ids))
	}

	if s.phase == PhaseEnded && !s.destroyed {
		r.destroy(s)
	}
}

// destroy unregisters s and hands its record to the recorders in the background.
// Called with the session lock held.
func (r *Registry) destroy(s *Session) {
	s.destroyed = true
	s.phaseTimer.Cancel()
	s.graceTimer.Cancel()
	rec := s.record()

	r.mu.Lock()
	if r.sessions[s.code] == s {
		delete(r.sessions, s.code)
	}
	for id, code := range r.conns {
		if code == s.code {
			delete(r.conns, id)
		}
	}
	r.wg.Add(1)
	r.mu.Unlock()

	r.opts.Metrics.SessionEnded(s.cause.label)

	go func() {
		defer r.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), r.opts.RecordTimeout)
		defer cancel()

		if r.opts.Reserver != nil {
			if err := r.opts.Reserver.Release(ctx, rec.Code); err != nil {
				r.logger.Warn().Err(err).Str("code", rec.Code).Msg("failed to release code")
			}
		}
		for _, rc := range r.opts.Recorders {
			if err := rc.RecordSession(ctx, rec); err != nil {
				r.logger.Error().Err(err).Str("code", rec.Code).Msg("failed to record session")
			}
		}
	}()
}

func (r *Registry) live() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// SweepIdle ends sessions with no activity for longer than MaxIdle.
func (r *Registry) SweepIdle(now time.Time) int {
	swept := 0
	for _, s := range r.live() {
		if now.Sub(s.idleSince()) < r.opts.MaxIdle {
			continue
		}
		s.forceEnd(causeExpired)
		swept++
	}
	if swept > 0 {
		r.logger.Info().Int("sessions", swept).Msg("idle sessions expired")
	}
	return swept
}

// Shutdown ends every live session and waits for their records to be written.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	for _, s := range r.live() {
		s.forceEnd(causeShutdown)
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

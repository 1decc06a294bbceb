package session

import (
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/live-quiz/internal/history"
	"github.com/gokatarajesh/live-quiz/internal/quiz"
	"github.com/gokatarajesh/live-quiz/internal/session/scheduler"
	"github.com/gokatarajesh/live-quiz/internal/session/scoring"
	ws "github.com/gokatarajesh/live-quiz/pkg/http/ws"
)

// outlet receives the events of a transition while the session lock is still held,
// so deliveries for one session are never reordered.
type outlet interface {
	deliver(s *Session, events []event)
}

// Session is one live quiz run. Every exported method is a transition that
// is serialized on the session mutex, including timer callbacks.
type Session struct {
	mu sync.Mutex

	code    string
	quiz    quiz.Quiz
	opts    Options
	clock   clockwork.Clock
	engine  *scoring.Engine
	out     outlet
	metrics Metrics
	tokens  HostTokens
	logger  zerolog.Logger

	phase         Phase
	questionIndex int
	round         *scoring.Round
	last          *resultsView
	teams         TeamConfig
	inactivity    InactivityConfig
	autoplay      AutoplayConfig

	hostConn     string
	hostDeadline time.Time

	roster     *Roster
	phaseTimer *scheduler.Scheduler
	graceTimer *scheduler.Scheduler
	seq        uint64

	createdAt    time.Time
	startedAt    time.Time
	endedAt      time.Time
	lastActivity time.Time
	cause        endCause
	destroyed    bool
}

// resultsView keeps what was shown in the last results phase, for replay after reconnects.
type resultsView struct {
	show     ws.ShowResultsPayload
	personal map[string]ws.YourResultPayload
}

type sessionDeps struct {
	clock   clockwork.Clock
	engine  *scoring.Engine
	out     outlet
	metrics Metrics
	tokens  HostTokens
	logger  zerolog.Logger
}

func newSession(code string, q quiz.Quiz, hostConn string, opts Options, deps sessionDeps) *Session {
	now := deps.clock.Now()
	s := &Session{
		code:          code,
		quiz:          q.Clone(),
		opts:          opts,
		clock:         deps.clock,
		engine:        deps.engine,
		out:           deps.out,
		metrics:       deps.metrics,
		tokens:        deps.tokens,
		logger:        deps.logger.With().Str("code", code).Logger(),
		phase:         PhaseLobby,
		questionIndex: -1,
		round:         scoring.NewRound(),
		teams:         TeamConfig{TopN: opts.DefaultTopN},
		inactivity:    InactivityConfig{Threshold: opts.DefaultInactivityThreshold},
		autoplay:      AutoplayConfig{Delay: opts.AutoplayDelay},
		hostConn:      hostConn,
		roster:        NewRoster(opts.MaxParticipants, opts.MaxNameLength),
		phaseTimer:    scheduler.New(deps.clock),
		graceTimer:    scheduler.New(deps.clock),
		createdAt:     now,
		lastActivity:  now,
	}
	return s
}

// Code returns the session code.
func (s *Session) Code() string {
	return s.code
}

// Phase returns the current phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// QuestionIndex returns the zero-based index of the current question, -1 before the first.
func (s *Session) QuestionIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.questionIndex
}

// Participant returns a copy of the named participant.
func (s *Session) Participant(name string) (Participant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.roster.Get(name)
	if !ok {
		return Participant{}, false
	}
	cp := *p
	cp.Answers = append([]history.ResponseRecord(nil), p.Answers...)
	return cp, true
}

// ParticipantCount is the current roster size.
func (s *Session) ParticipantCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roster.Len()
}

// apply runs a transition under the session lock and delivers its events.
func (s *Session) apply(fn func(now time.Time) ([]event, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return ErrSessionNotFound
	}

	now := s.clock.Now()
	events, err := fn(now)
	if err != nil {
		return err
	}
	s.lastActivity = now
	s.emit(events)
	return nil
}

func (s *Session) emit(events []event) {
	if len(events) == 0 && s.phase != PhaseEnded {
		return
	}
	s.out.deliver(s, events)
}

// schedulePhase arms the phase timer; step runs under the lock if still current.
func (s *Session) schedulePhase(d time.Duration, step func(now time.Time) []event) {
	s.phaseTimer.Schedule(d, func(gen uint64) {
		s.onTimer(s.phaseTimer, gen, step)
	})
}

func (s *Session) onTimer(t *scheduler.Scheduler, gen uint64, step func(now time.Time) []event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed || !t.Current(gen) {
		s.logger.Debug().Uint64("generation", gen).Msg("stale timer ignored")
		return
	}
	now := s.clock.Now()
	s.lastActivity = now
	s.emit(step(now))
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

func (s *Session) enterPhase(p Phase) {
	s.phase = p
	s.metrics.PhaseEntered(string(p))
	s.logger.Debug().Str("phase", string(p)).Int("question", s.questionIndex).Msg("phase entered")
}

// recipients resolves an event's audience to connection IDs.
func (s *Session) recipients(ev event) []string {
	switch ev.audience {
	case toConn:
		if ev.connID == "" {
			return nil
		}
		return []string{ev.connID}
	case toHost:
		if s.hostConn == "" {
			return nil
		}
		return []string{s.hostConn}
	case toParticipants:
		return s.roster.ConnIDs()
	default:
		ids := s.roster.ConnIDs()
		if s.hostConn != "" {
			ids = append([]string{s.hostConn}, ids...)
		}
		return ids
	}
}

func (s *Session) requireHost(connID string) error {
	if connID == "" || connID != s.hostConn {
		return ErrNotHost
	}
	return nil
}

func (s *Session) participantFor(connID string) (*Participant, error) {
	p, ok := s.roster.ByConn(connID)
	if !ok {
		return nil, ErrNotParticipant
	}
	return p, nil
}

func (s *Session) question() quiz.Question {
	return s.quiz.Questions[s.questionIndex]
}

func (s *Session) isLastQuestion() bool {
	return s.questionIndex >= len(s.quiz.Questions)-1
}

func (s *Session) timeLimit() time.Duration {
	return time.Duration(s.question().TimeLimit) * time.Second
}

// readingTime resolves question override, then quiz default, then server default.
func (s *Session) readingTime(q quiz.Question) time.Duration {
	switch {
	case q.ReadingTime != nil:
		return time.Duration(*q.ReadingTime) * time.Second
	case s.quiz.ReadingTime != nil:
		return time.Duration(*s.quiz.ReadingTime) * time.Second
	default:
		return s.opts.DefaultReadingTime
	}
}

func (s *Session) playersPayload(name string) ws.PlayersPayload {
	return ws.PlayersPayload{Name: name, Players: s.roster.Players()}
}

func (s *Session) participantState(p *Participant) Phase {
	if s.phase == PhaseLobby && s.teams.Enabled && p.Team == "" {
		return PhaseTeamSelect
	}
	return s.phase
}

// record builds the durable summary. Caller holds the lock.
func (s *Session) record() history.SessionRecord {
	ranked := s.roster.Ranked()
	players := make([]history.PlayerRecord, len(ranked))
	for i, p := range ranked {
		players[i] = history.PlayerRecord{
			Name:      p.Name,
			Team:      p.Team,
			Score:     p.Score,
			Rank:      i + 1,
			Responses: append([]history.ResponseRecord(nil), p.Answers...),
		}
	}
	return history.SessionRecord{
		Code:          s.code,
		QuizTitle:     s.quiz.Title,
		QuestionCount: len(s.quiz.Questions),
		TeamMode:      s.teams.Enabled,
		CreatedAt:     s.createdAt,
		StartedAt:     s.startedAt,
		EndedAt:       s.endedAt,
		EndReason:     s.cause.label,
		Players:       players,
	}
}

func seconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*10) / 10
}

func wholeSeconds(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}

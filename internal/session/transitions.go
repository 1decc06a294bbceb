package session

import (
	"strings"
	"time"

	"github.com/gokatarajesh/live-quiz/internal/history"
	"github.com/gokatarajesh/live-quiz/internal/leaderboard"
	"github.com/gokatarajesh/live-quiz/internal/quiz"
	"github.com/gokatarajesh/live-quiz/internal/session/scoring"
	ws "github.com/gokatarajesh/live-quiz/pkg/http/ws"
)

const (
	maxTeams            = 10
	minAutoplaySeconds  = 3
	maxAutoplaySeconds  = 120
	maxInactivityRounds = 50
)

// Join adds a participant bound to connID. Only allowed in the lobby.
func (s *Session) Join(connID, name string) (Participant, error) {
	var joined Participant
	err := s.apply(func(now time.Time) ([]event, error) {
		if s.phase != PhaseLobby {
			return nil, phaseError("join", s.phase)
		}
		if connID == s.hostConn {
			return nil, ErrHostCannotJoin
		}
		if _, ok := s.roster.ByConn(connID); ok {
			return nil, ErrAlreadyJoined
		}

		p, err := s.roster.Add(name, connID, now)
		if err != nil {
			return nil, err
		}
		joined = *p
		s.logger.Info().Str("participant", p.Name).Int("roster", s.roster.Len()).Msg("participant joined")

		return []event{
			unicast(connID, ws.TypeJoinedGame, ws.JoinedGamePayload{
				Code:      s.code,
				Name:      p.Name,
				QuizTitle: s.quiz.Title,
				TeamMode:  s.teams.Enabled,
				Teams:     s.teams.Teams,
			}),
			broadcast(ws.TypePlayerJoined, s.playersPayload(p.Name)),
		}, nil
	})
	return joined, err
}

// Leave removes the participant bound to connID for good.
func (s *Session) Leave(connID string) error {
	return s.apply(func(now time.Time) ([]event, error) {
		p, err := s.participantFor(connID)
		if err != nil {
			return nil, err
		}
		s.roster.Remove(p.Name)
		s.round.Forget(NameKey(p.Name))
		s.logger.Info().Str("participant", p.Name).Str("phase", string(s.phase)).Msg("participant left")

		events := []event{broadcast(ws.TypePlayerLeft, s.playersPayload(p.Name))}
		if s.phase == PhaseAnswering {
			events = append(events, s.answerUpdate())
			if s.allAnswered() {
				events = append(events, s.finishQuestion(now)...)
			}
		}
		return events, nil
	})
}

// SelectTeam puts the participant on one of the configured teams.
func (s *Session) SelectTeam(connID, team string) error {
	return s.apply(func(now time.Time) ([]event, error) {
		p, err := s.participantFor(connID)
		if err != nil {
			return nil, err
		}
		if s.phase != PhaseLobby {
			return nil, phaseError("pick a team", s.phase)
		}
		if !s.teams.Enabled {
			return nil, ErrTeamModeOff
		}
		if !s.hasTeam(team) {
			return nil, ErrInvalidTeam
		}

		p.Team = strings.TrimSpace(team)
		p.LastActivity = now
		return []event{broadcast(ws.TypePlayerUpdated, s.playersPayload(p.Name))}, nil
	})
}

func (s *Session) hasTeam(team string) bool {
	team = strings.TrimSpace(team)
	for _, t := range s.teams.Teams {
		if t == team {
			return true
		}
	}
	return false
}

// ConfigureTeams switches team mode and sets the team list. Lobby only.
func (s *Session) ConfigureTeams(connID string, cfg TeamConfig) error {
	return s.apply(func(now time.Time) ([]event, error) {
		if err := s.requireHost(connID); err != nil {
			return nil, err
		}
		if s.phase != PhaseLobby {
			return nil, phaseError("configure teams", s.phase)
		}

		next := TeamConfig{Enabled: cfg.Enabled, TopN: cfg.TopN}
		if next.TopN <= 0 {
			next.TopN = s.opts.DefaultTopN
		}
		if cfg.Enabled {
			teams, err := normalizeTeams(cfg.Teams)
			if err != nil {
				return nil, err
			}
			next.Teams = teams
		}
		s.teams = next

		events := []event{broadcast(ws.TypeTeamConfigUpdated, ws.TeamConfigPayload{
			TeamMode:    next.Enabled,
			Teams:       next.Teams,
			TopNPlayers: next.TopN,
		})}
		if s.roster.ClearTeamsNotIn(next.Teams) {
			events = append(events, broadcast(ws.TypePlayerUpdated, s.playersPayload("")))
		}
		return events, nil
	})
}

// normalizeTeams trims names and drops case-insensitive duplicates, keeping first spelling.
func normalizeTeams(in []string) ([]string, error) {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, t := range in {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		key := strings.ToLower(t)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	switch {
	case len(out) < 2:
		return nil, ErrTooFewTeams
	case len(out) > maxTeams:
		return nil, ErrTooManyTeams
	}
	return out, nil
}

// ConfigureAutoRemove sets inactivity pruning. A zero threshold means the default.
func (s *Session) ConfigureAutoRemove(connID string, cfg InactivityConfig) error {
	return s.apply(func(now time.Time) ([]event, error) {
		if err := s.requireHost(connID); err != nil {
			return nil, err
		}
		if cfg.Threshold == 0 {
			cfg.Threshold = s.opts.DefaultInactivityThreshold
		}
		if cfg.Threshold < 1 || cfg.Threshold > maxInactivityRounds {
			return nil, ErrInvalidThreshold
		}
		s.inactivity = cfg

		return []event{hostOnly(ws.TypeAutoRemoveConfigUpdated, ws.AutoRemoveConfigPayload{
			AutoRemoveInactive:  cfg.Enabled,
			InactivityThreshold: cfg.Threshold,
		})}, nil
	})
}

// ConfigureAutoplay toggles automatic advancing after results.
func (s *Session) ConfigureAutoplay(connID string, cfg AutoplayConfig) error {
	return s.apply(func(now time.Time) ([]event, error) {
		if err := s.requireHost(connID); err != nil {
			return nil, err
		}
		if cfg.Delay == 0 {
			cfg.Delay = s.opts.AutoplayDelay
		}
		if err := validateAutoplayDelay(cfg.Delay); err != nil {
			return nil, err
		}
		s.autoplay = cfg

		events := []event{hostOnly(ws.TypeAutoplayConfigUpdated, ws.AutoplayConfigPayload{
			Enabled: cfg.Enabled,
			Seconds: wholeSeconds(cfg.Delay),
		})}
		if s.phase == PhaseResults {
			switch {
			case !cfg.Enabled && s.phaseTimer.Pending():
				s.phaseTimer.Cancel()
			case cfg.Enabled && !s.phaseTimer.Pending():
				events = append(events, s.startAutoplay(cfg.Delay))
			}
		}
		return events, nil
	})
}

func validateAutoplayDelay(d time.Duration) error {
	if d < minAutoplaySeconds*time.Second || d > maxAutoplaySeconds*time.Second {
		return ErrInvalidDelay
	}
	return nil
}

// AutoplayStarted arms the autoplay countdown for the current results phase.
// A countdown that is already running is left alone.
func (s *Session) AutoplayStarted(connID string, delay time.Duration) error {
	return s.apply(func(now time.Time) ([]event, error) {
		if err := s.requireHost(connID); err != nil {
			return nil, err
		}
		if s.phase != PhaseResults {
			return nil, phaseError("start autoplay", s.phase)
		}
		if s.phaseTimer.Pending() {
			return nil, nil
		}
		if delay == 0 {
			delay = s.autoplay.Delay
		}
		if err := validateAutoplayDelay(delay); err != nil {
			return nil, err
		}
		return []event{s.startAutoplay(delay)}, nil
	})
}

// Start moves the lobby into the countdown.
func (s *Session) Start(connID string) error {
	return s.apply(func(now time.Time) ([]event, error) {
		if err := s.requireHost(connID); err != nil {
			return nil, err
		}
		if s.phase != PhaseLobby {
			return nil, phaseError("start", s.phase)
		}
		if s.roster.Len() == 0 {
			return nil, ErrEmptyRoster
		}

		s.startedAt = now
		s.enterPhase(PhaseStarting)
		s.schedulePhase(s.opts.Countdown, s.beginQuestion)
		s.logger.Info().Int("roster", s.roster.Len()).Int("questions", len(s.quiz.Questions)).Msg("game started")

		return []event{broadcast(ws.TypeGameStarting, ws.GameStartingPayload{
			Seconds: wholeSeconds(s.opts.Countdown),
		})}, nil
	})
}

func (s *Session) beginQuestion(now time.Time) []event {
	if s.questionIndex+1 >= len(s.quiz.Questions) {
		return s.end(now, causeCompleted)
	}

	s.questionIndex++
	s.round = scoring.NewRound()
	s.last = nil

	q := s.question()
	reading := s.readingTime(q)
	if reading <= 0 {
		return s.beginAnswering(now)
	}

	s.enterPhase(PhaseReading)
	s.schedulePhase(reading, s.beginAnswering)
	return []event{broadcast(ws.TypeShowQuestionReading, s.readingPayload(q, reading))}
}

func (s *Session) readingPayload(q quiz.Question, reading time.Duration) ws.QuestionReadingPayload {
	return ws.QuestionReadingPayload{
		QuestionNum:    s.questionIndex + 1,
		TotalQuestions: len(s.quiz.Questions),
		Question:       q.Question,
		ReadingTime:    wholeSeconds(reading),
		TimeRemaining:  seconds(s.phaseTimer.Remaining()),
	}
}

func (s *Session) beginAnswering(now time.Time) []event {
	s.enterPhase(PhaseAnswering)
	s.schedulePhase(s.timeLimit(), s.finishQuestion)

	host, players := s.answersPayloads()
	return []event{
		hostOnly(ws.TypeShowAnswers, host),
		participants(ws.TypeShowAnswers, players),
		s.answerUpdate(),
	}
}

// answersPayloads builds the host view, which carries the correct index, and the participant view.
func (s *Session) answersPayloads() (ws.ShowAnswersPayload, ws.ShowAnswersPayload) {
	q := s.question()
	players := ws.ShowAnswersPayload{
		QuestionNum:    s.questionIndex + 1,
		TotalQuestions: len(s.quiz.Questions),
		Question:       q.Question,
		Answers:        append([]string(nil), q.Answers...),
		TimeLimit:      q.TimeLimit,
		TimeRemaining:  seconds(s.phaseTimer.Remaining()),
	}
	host := players
	correct := q.Correct
	host.CorrectIndex = &correct
	return host, players
}

func (s *Session) answerUpdate() event {
	return hostOnly(ws.TypeAnswerUpdate, ws.AnswerUpdatePayload{
		Answered: s.round.Count(),
		Total:    s.roster.Len(),
	})
}

// allAnswered reports whether every connected participant has submitted.
func (s *Session) allAnswered() bool {
	connected := 0
	for _, p := range s.roster.Members() {
		if !p.Connected() {
			continue
		}
		connected++
		if s.round.Get(NameKey(p.Name)) == nil {
			return false
		}
	}
	return connected > 0
}

// SubmitAnswer records the participant's first answer for the current question.
func (s *Session) SubmitAnswer(connID string, answerIndex int) error {
	return s.apply(func(now time.Time) ([]event, error) {
		p, err := s.participantFor(connID)
		if err != nil {
			return nil, err
		}
		if s.phase != PhaseAnswering {
			return nil, phaseError("answer", s.phase)
		}
		if answerIndex < 0 || answerIndex >= quiz.AnswerCount {
			return nil, ErrInvalidAnswer
		}
		if !s.round.Submit(NameKey(p.Name), answerIndex, s.phaseTimer.ElapsedFraction()) {
			return nil, ErrAlreadyAnswered
		}
		p.LastActivity = now

		events := []event{
			unicast(connID, ws.TypeAnswerReceived, ws.AnswerReceivedPayload{AnswerIndex: answerIndex}),
			s.answerUpdate(),
		}
		if s.allAnswered() {
			s.logger.Debug().Int("question", s.questionIndex).Msg("all participants answered")
			events = append(events, s.finishQuestion(now)...)
		}
		return events, nil
	})
}

// TimeUp ends the answering window early. Without force it is only honoured
// once the server-side timer is within tolerance of expiring.
func (s *Session) TimeUp(connID string, force bool) error {
	return s.apply(func(now time.Time) ([]event, error) {
		if err := s.requireHost(connID); err != nil {
			return nil, err
		}
		if s.phase != PhaseAnswering {
			return nil, phaseError("end the question", s.phase)
		}
		if !force && s.phaseTimer.Remaining() > s.opts.TimeUpTolerance {
			return nil, ErrTimeNotUp
		}
		return s.finishQuestion(now), nil
	})
}

func (s *Session) finishQuestion(now time.Time) []event {
	s.phaseTimer.Cancel()
	s.enterPhase(PhaseResults)

	q := s.question()
	limit := s.timeLimit()
	outcomes := make(map[string]scoring.ScoreResult, s.roster.Len())

	score := func(p *Participant) {
		key := NameKey(p.Name)
		sub := s.round.Get(key)
		res := s.engine.Evaluate(sub, q.Correct, p.Streak)
		outcomes[key] = res

		p.Score += res.Delta
		p.Streak = res.NewStreak
		if res.Delta > 0 {
			s.seq++
			p.reached = s.seq
		}

		rec := history.ResponseRecord{
			QuestionIndex: s.questionIndex,
			Correct:       res.Correct,
			ScoreDelta:    res.Delta,
		}
		if sub != nil {
			idx := sub.ChosenIndex
			rec.AnswerIndex = &idx
			rec.Elapsed = time.Duration(sub.ElapsedFraction * float64(limit))
			p.Missed = 0
			s.metrics.AnswerScored(res.Correct)
		} else {
			p.Missed++
		}
		p.Answers = append(p.Answers, rec)
	}

	// Submission order decides who reached a score first.
	for _, key := range s.round.Order() {
		if p, ok := s.roster.Get(key); ok {
			score(p)
		}
	}
	for _, p := range s.roster.Members() {
		if _, done := outcomes[NameKey(p.Name)]; !done {
			score(p)
		}
	}

	ranked := s.roster.Ranked()
	view := &resultsView{
		show: ws.ShowResultsPayload{
			QuestionNum:    s.questionIndex + 1,
			TotalQuestions: len(s.quiz.Questions),
			CorrectIndex:   q.Correct,
			CorrectAnswer:  q.Answers[q.Correct],
			AnswerCounts:   s.round.AnswerCounts(quiz.AnswerCount),
			Results:        make([]ws.QuestionResult, 0, len(ranked)),
			IsLastQuestion: s.isLastQuestion(),
		},
		personal: make(map[string]ws.YourResultPayload, len(ranked)),
	}

	events := make([]event, 0, len(ranked)+4)
	for i, p := range ranked {
		key := NameKey(p.Name)
		res := outcomes[key]
		answered := s.round.Get(key) != nil
		view.show.Results = append(view.show.Results, ws.QuestionResult{
			Rank:        i + 1,
			Name:        p.Name,
			Team:        p.Team,
			Answered:    answered,
			Correct:     res.Correct,
			ScoreGained: res.Delta,
			TotalScore:  p.Score,
			Streak:      p.Streak,
		})
		mine := ws.YourResultPayload{
			Answered:      answered,
			Correct:       res.Correct,
			CorrectAnswer: q.Answers[q.Correct],
			ScoreGained:   res.Delta,
			TotalScore:    p.Score,
			Streak:        p.Streak,
			Rank:          i + 1,
			TotalPlayers:  len(ranked),
		}
		view.personal[key] = mine
		if p.Connected() {
			events = append(events, unicast(p.ConnID, ws.TypeYourResult, mine))
		}
	}
	events = append([]event{hostOnly(ws.TypeShowResults, view.show)}, events...)
	s.last = view

	s.logger.Info().
		Int("question", s.questionIndex).
		Int("answered", s.round.Count()).
		Int("roster", s.roster.Len()).
		Msg("question scored")

	events = append(events, s.pruneInactive()...)

	if s.autoplay.Enabled {
		events = append(events, s.startAutoplay(s.autoplay.Delay))
	}
	return events
}

// pruneInactive removes everyone at or over the missed-round threshold
// and announces them in a single batch.
func (s *Session) pruneInactive() []event {
	if !s.inactivity.Enabled {
		return nil
	}

	var names, conns []string
	for _, p := range s.roster.Members() {
		if p.Missed < s.inactivity.Threshold {
			continue
		}
		if p.ConnID != "" {
			conns = append(conns, p.ConnID)
		}
		names = append(names, p.Name)
		s.roster.Ban(p.Name)
	}
	if len(names) == 0 {
		return nil
	}

	s.metrics.ParticipantsPruned(len(names))
	s.logger.Info().Strs("participants", names).Int("threshold", s.inactivity.Threshold).Msg("inactive participants removed")

	notice := ws.InactivePlayersRemovedPayload{Count: len(names), Players: names}
	events := []event{broadcast(ws.TypeInactivePlayersRemoved, notice)}
	for _, id := range conns {
		events = append(events, unicast(id, ws.TypeInactivePlayersRemoved, notice))
	}
	return append(events, broadcast(ws.TypePlayerLeft, s.playersPayload("")))
}

func (s *Session) startAutoplay(delay time.Duration) event {
	s.schedulePhase(delay, s.advance)
	return broadcast(ws.TypeAutoplayCountdown, ws.AutoplayCountdownPayload{
		Seconds:        wholeSeconds(delay),
		IsLastQuestion: s.isLastQuestion(),
	})
}

// Next advances from results to the next question or the end.
func (s *Session) Next(connID string) error {
	return s.apply(func(now time.Time) ([]event, error) {
		if err := s.requireHost(connID); err != nil {
			return nil, err
		}
		if s.phase != PhaseResults {
			return nil, phaseError("advance", s.phase)
		}
		return s.advance(now), nil
	})
}

func (s *Session) advance(now time.Time) []event {
	s.phaseTimer.Cancel()
	if s.isLastQuestion() {
		return s.end(now, causeCompleted)
	}
	return s.beginQuestion(now)
}

// End terminates the session from any phase.
func (s *Session) End(connID string) error {
	return s.apply(func(now time.Time) ([]event, error) {
		if err := s.requireHost(connID); err != nil {
			return nil, err
		}
		return s.end(now, causeHostEnded), nil
	})
}

// forceEnd is used by the registry for expiry and shutdown.
func (s *Session) forceEnd(cause endCause) {
	_ = s.apply(func(now time.Time) ([]event, error) {
		return s.end(now, cause), nil
	})
}

func (s *Session) end(now time.Time, cause endCause) []event {
	s.phaseTimer.Cancel()
	s.graceTimer.Cancel()
	s.endedAt = now
	s.cause = cause
	s.enterPhase(PhaseEnded)

	standings := s.roster.Standings()
	payload := ws.GameEndedPayload{
		Leaderboard: leaderboard.ToWSEntries(standings),
		TeamMode:    s.teams.Enabled,
		Reason:      cause.message,
	}
	if s.teams.Enabled {
		payload.TeamLeaderboard = leaderboard.ToWSTeams(leaderboard.Teams(standings, s.teams.Teams, s.teams.TopN))
		payload.TopNPlayers = s.teams.TopN
	}

	s.logger.Info().Str("reason", cause.label).Int("roster", s.roster.Len()).Msg("game ended")
	return []event{broadcast(ws.TypeGameEnded, payload)}
}

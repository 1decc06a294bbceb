package session

import (
	"slices"
	"time"

	ws "github.com/gokatarajesh/live-quiz/pkg/http/ws"
)

// Disconnect handles a dropped transport. A host drop starts the grace period;
// a participant drop keeps their record so they can reconnect by name.
func (s *Session) Disconnect(connID string) {
	_ = s.apply(func(now time.Time) ([]event, error) {
		if connID != "" && connID == s.hostConn {
			return s.hostLost(now), nil
		}
		p, ok := s.roster.Detach(connID)
		if !ok {
			return nil, nil
		}
		s.logger.Info().Str("participant", p.Name).Msg("participant disconnected")

		events := []event{hostOnly(ws.TypePlayerUpdated, s.playersPayload(p.Name))}
		if s.phase == PhaseAnswering && s.allAnswered() {
			events = append(events, s.finishQuestion(now)...)
		}
		return events, nil
	})
}

func (s *Session) hostLost(now time.Time) []event {
	grace := s.opts.HostGracePeriod
	s.hostConn = ""
	s.hostDeadline = now.Add(grace)
	s.graceTimer.Schedule(grace, func(gen uint64) {
		s.onTimer(s.graceTimer, gen, s.graceExpired)
	})
	s.logger.Warn().Dur("grace", grace).Str("phase", string(s.phase)).Msg("host disconnected")

	return []event{participants(ws.TypeHostDisconnected, ws.HostDisconnectedPayload{
		GracePeriod: wholeSeconds(grace),
	})}
}

func (s *Session) graceExpired(now time.Time) []event {
	s.logger.Warn().Msg("host grace period expired")
	return s.end(now, causeHostDisconnected)
}

// HostAway reports whether the session is waiting for its host to return.
func (s *Session) HostAway() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hostConn == ""
}

// ReconnectHost binds connID as the host again and replays the current view.
// When host tokens are enabled the token must match this session; it also
// allows taking over from a host connection that is still open.
func (s *Session) ReconnectHost(connID, token string) error {
	return s.apply(func(now time.Time) ([]event, error) {
		tokensOn := s.tokens != nil && s.tokens.Enabled()
		if tokensOn {
			if err := s.tokens.Verify(token, s.code); err != nil {
				s.logger.Debug().Err(err).Msg("host token rejected")
				return nil, ErrHostTokenInvalid
			}
		}
		if _, ok := s.roster.ByConn(connID); ok {
			return nil, ErrNotHost
		}
		if s.hostConn != "" && s.hostConn != connID && !tokensOn {
			return nil, ErrHostConnected
		}

		wasAway := s.hostConn == ""
		s.graceTimer.Cancel()
		s.hostConn = connID
		s.hostDeadline = time.Time{}
		s.logger.Info().Bool("was_away", wasAway).Str("phase", string(s.phase)).Msg("host reconnected")

		events := []event{unicast(connID, ws.TypeReconnectedHost, ws.ReconnectedHostPayload{
			Code:           s.code,
			QuizTitle:      s.quiz.Title,
			State:          string(s.phase),
			QuestionNum:    s.questionIndex + 1,
			TotalQuestions: len(s.quiz.Questions),
			Players:        s.roster.Players(),
			TeamMode:       s.teams.Enabled,
			Teams:          s.teams.Teams,
			TopNPlayers:    s.teams.TopN,
			AutoplayOn:     s.autoplay.Enabled,
			AutoRemoveOn:   s.inactivity.Enabled,
		})}
		events = append(events, s.replayHost(connID)...)
		if wasAway {
			events = append(events, participants(ws.TypeHostReconnected, nil))
		}
		return events, nil
	})
}

// ReconnectPlayer re-attaches connID to an existing participant record.
func (s *Session) ReconnectPlayer(connID, name string) (Participant, error) {
	var out Participant
	err := s.apply(func(now time.Time) ([]event, error) {
		if connID != "" && connID == s.hostConn {
			return nil, ErrHostCannotJoin
		}
		if s.roster.IsBanned(name) {
			return nil, ErrNameBanned
		}
		p, err := s.roster.Attach(name, connID)
		if err != nil {
			return nil, err
		}
		p.LastActivity = now
		out = *p
		s.logger.Info().Str("participant", p.Name).Str("phase", string(s.phase)).Msg("participant reconnected")

		events := []event{unicast(connID, ws.TypeReconnectedPlayer, ws.ReconnectedPlayerPayload{
			Code:        s.code,
			Name:        p.Name,
			QuizTitle:   s.quiz.Title,
			State:       string(s.participantState(p)),
			TeamMode:    s.teams.Enabled,
			Teams:       s.teams.Teams,
			Team:        p.Team,
			Score:       p.Score,
			HasAnswered: s.phase == PhaseAnswering && s.round.Get(NameKey(p.Name)) != nil,
		})}
		events = append(events, s.replayParticipant(p)...)
		events = append(events, hostOnly(ws.TypePlayerUpdated, s.playersPayload(p.Name)))
		return events, nil
	})
	return out, err
}

// Readmit lifts an inactivity ban. A pruned participant is restored with
// their score and team and can come back through ReconnectPlayer mid-game.
func (s *Session) Readmit(connID, name string) error {
	return s.apply(func(now time.Time) ([]event, error) {
		if err := s.requireHost(connID); err != nil {
			return nil, err
		}
		p, ok := s.roster.Readmit(name)
		if !ok {
			return nil, ErrNotBanned
		}
		if p != nil {
			name = p.Name
			p.LastActivity = now
			if p.Team != "" && !slices.Contains(s.teams.Teams, p.Team) {
				p.Team = ""
			}
		}
		s.logger.Info().Str("participant", name).Bool("restored", p != nil).Msg("participant readmitted")

		events := []event{hostOnly(ws.TypePlayerReadmitted, ws.PlayerReadmittedPayload{Name: name})}
		if p != nil {
			events = append(events, hostOnly(ws.TypePlayerUpdated, s.playersPayload(p.Name)))
		}
		return events, nil
	})
}

// replayHost re-sends the view of the current phase to the host.
func (s *Session) replayHost(connID string) []event {
	switch s.phase {
	case PhaseStarting:
		return []event{unicast(connID, ws.TypeGameStarting, ws.GameStartingPayload{
			Seconds: wholeSeconds(s.phaseTimer.Remaining()),
		})}
	case PhaseReading:
		q := s.question()
		return []event{unicast(connID, ws.TypeShowQuestionReading, s.readingPayload(q, s.readingTime(q)))}
	case PhaseAnswering:
		host, _ := s.answersPayloads()
		return []event{
			unicast(connID, ws.TypeShowAnswers, host),
			unicast(connID, ws.TypeAnswerUpdate, ws.AnswerUpdatePayload{Answered: s.round.Count(), Total: s.roster.Len()}),
		}
	case PhaseResults:
		if s.last == nil {
			return nil
		}
		events := []event{unicast(connID, ws.TypeShowResults, s.last.show)}
		if s.phaseTimer.Pending() {
			events = append(events, unicast(connID, ws.TypeAutoplayCountdown, ws.AutoplayCountdownPayload{
				Seconds:        wholeSeconds(s.phaseTimer.Remaining()),
				IsLastQuestion: s.isLastQuestion(),
			}))
		}
		return events
	default:
		return nil
	}
}

// replayParticipant re-sends the view of the current phase to one participant.
func (s *Session) replayParticipant(p *Participant) []event {
	connID := p.ConnID
	switch s.phase {
	case PhaseStarting:
		return []event{unicast(connID, ws.TypeGameStarting, ws.GameStartingPayload{
			Seconds: wholeSeconds(s.phaseTimer.Remaining()),
		})}
	case PhaseReading:
		q := s.question()
		return []event{unicast(connID, ws.TypeShowQuestionReading, s.readingPayload(q, s.readingTime(q)))}
	case PhaseAnswering:
		_, players := s.answersPayloads()
		return []event{unicast(connID, ws.TypeShowAnswers, players)}
	case PhaseResults:
		if s.last == nil {
			return nil
		}
		mine, ok := s.last.personal[NameKey(p.Name)]
		if !ok {
			return nil
		}
		return []event{unicast(connID, ws.TypeYourResult, mine)}
	default:
		return nil
	}
}

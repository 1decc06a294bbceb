package session

import (
	"context"
	"time"

	"github.com/gokatarajesh/live-quiz/internal/history"
	ws "github.com/gokatarajesh/live-quiz/pkg/http/ws"
)

// Phase is the lifecycle position of a session.
type Phase string

const (
	PhaseLobby      Phase = "lobby"
	PhaseTeamSelect Phase = "team_select" // participant view only: lobby with team mode on and no team picked
	PhaseStarting   Phase = "starting"
	PhaseReading    Phase = "reading"
	PhaseAnswering  Phase = "answering"
	PhaseResults    Phase = "results"
	PhaseEnded      Phase = "ended"
)

// endCause pairs a stable metric label with the reason shown to clients.
type endCause struct {
	label   string
	message string
}

var (
	causeCompleted        = endCause{label: "completed"}
	causeHostEnded        = endCause{label: "host_ended", message: "The host ended the game"}
	causeHostDisconnected = endCause{label: "host_disconnected", message: "host disconnected"}
	causeExpired          = endCause{label: "expired", message: "session expired"}
	causeShutdown         = endCause{label: "shutdown", message: "server shutting down"}
)

// Options tunes per-session timing and limits. Zero values fall back to defaults.
type Options struct {
	Countdown                  time.Duration // default: 3s
	DefaultReadingTime         time.Duration // default: 0, straight to answering
	HostGracePeriod            time.Duration // default: 60s
	AutoplayDelay              time.Duration // default: 10s
	TimeUpTolerance            time.Duration // default: 2s
	MaxParticipants            int           // default: 200
	DefaultTopN                int           // default: 3
	DefaultInactivityThreshold int           // default: 3
	MaxNameLength              int           // default: 30
}

func (o Options) withDefaults() Options {
	if o.Countdown <= 0 {
		o.Countdown = 3 * time.Second
	}
	if o.DefaultReadingTime < 0 {
		o.DefaultReadingTime = 0
	}
	if o.HostGracePeriod <= 0 {
		o.HostGracePeriod = 60 * time.Second
	}
	if o.AutoplayDelay <= 0 {
		o.AutoplayDelay = 10 * time.Second
	}
	if o.TimeUpTolerance <= 0 {
		o.TimeUpTolerance = 2 * time.Second
	}
	if o.MaxParticipants <= 0 {
		o.MaxParticipants = 200
	}
	if o.DefaultTopN <= 0 {
		o.DefaultTopN = 3
	}
	if o.DefaultInactivityThreshold <= 0 {
		o.DefaultInactivityThreshold = 3
	}
	if o.MaxNameLength <= 0 {
		o.MaxNameLength = 30
	}
	return o
}

// TeamConfig is the host-chosen team setup.
type TeamConfig struct {
	Enabled bool
	Teams   []string
	TopN    int
}

// InactivityConfig controls pruning of participants who keep missing questions.
type InactivityConfig struct {
	Enabled   bool
	Threshold int
}

// AutoplayConfig makes the session advance on its own after each results phase.
type AutoplayConfig struct {
	Enabled bool
	Delay   time.Duration
}

// Notifier delivers an encoded message to one connection.
type Notifier interface {
	Send(connID string, msg ws.Message) error
}

// Recorder receives the summary of every session that ends.
type Recorder interface {
	RecordSession(ctx context.Context, rec history.SessionRecord) error
}

// CodeReserver claims session codes across server instances.
type CodeReserver interface {
	Reserve(ctx context.Context, code string) (bool, error)
	Release(ctx context.Context, code string) error
}

// HostTokens issues and checks host reconnect credentials.
type HostTokens interface {
	Enabled() bool
	Issue(code string) (string, error)
	Verify(token, code string) error
}

// Metrics observes session activity.
type Metrics interface {
	SessionCreated()
	SessionEnded(reason string)
	PhaseEntered(phase string)
	AnswerScored(correct bool)
	ParticipantsPruned(n int)
	EventDelivered(recipients int)
}

type noopMetrics struct{}

func (noopMetrics) SessionCreated()        {}
func (noopMetrics) SessionEnded(string)    {}
func (noopMetrics) PhaseEntered(string)    {}
func (noopMetrics) AnswerScored(bool)      {}
func (noopMetrics) ParticipantsPruned(int) {}
func (noopMetrics) EventDelivered(int)     {}

package session

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/live-quiz/internal/history"
	"github.com/gokatarajesh/live-quiz/internal/quiz"
	ws "github.com/gokatarajesh/live-quiz/pkg/http/ws"
)

const waitFor = 2 * time.Second

type sentMessage struct {
	connID string
	msg    ws.Message
}

// fakeNotifier records every delivered message. It doubles as the hub in handler tests.
type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (f *fakeNotifier) Send(connID string, msg ws.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{connID: connID, msg: msg})
	return nil
}

func (f *fakeNotifier) RegisterConnection(*ws.Connection) {}

func (f *fakeNotifier) UnregisterConnection(string) {}

func (f *fakeNotifier) messages(connID, msgType string) []ws.Message {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []ws.Message
	for _, s := range f.sent {
		if s.connID == connID && s.msg.Type == msgType {
			out = append(out, s.msg)
		}
	}
	return out
}

func (f *fakeNotifier) count(connID, msgType string) int {
	return len(f.messages(connID, msgType))
}

func (f *fakeNotifier) types(connID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []string
	for _, s := range f.sent {
		if s.connID == connID {
			out = append(out, s.msg.Type)
		}
	}
	return out
}

// last decodes the most recent message of msgType sent to connID.
func (f *fakeNotifier) last(t *testing.T, connID, msgType string, dst interface{}) {
	t.Helper()
	msgs := f.messages(connID, msgType)
	require.NotEmpty(t, msgs, "no %s sent to %s", msgType, connID)
	require.NoError(t, json.Unmarshal(msgs[len(msgs)-1].Payload, dst))
}

type fakeRecorder struct {
	mu      sync.Mutex
	records []history.SessionRecord
}

func (f *fakeRecorder) RecordSession(_ context.Context, rec history.SessionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeRecorder) all() []history.SessionRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]history.SessionRecord(nil), f.records...)
}

func fixedCodes(codes ...string) func(int) string {
	var mu sync.Mutex
	i := 0
	return func(int) string {
		mu.Lock()
		defer mu.Unlock()
		c := codes[i%len(codes)]
		i++
		return c
	}
}

type testEnv struct {
	reg      *Registry
	notifier *fakeNotifier
	recorder *fakeRecorder
	clock    *clockwork.FakeClock
}

func newTestEnv(t *testing.T, opts RegistryOptions) *testEnv {
	t.Helper()
	env := &testEnv{
		notifier: &fakeNotifier{},
		recorder: &fakeRecorder{},
		clock:    clockwork.NewFakeClockAt(epoch),
	}
	opts.Clock = env.clock
	opts.Recorders = append(opts.Recorders, env.recorder)
	if opts.CodeGenerator == nil {
		opts.CodeGenerator = fixedCodes("ABCD")
	}
	env.reg = NewRegistry(env.notifier, zerolog.Nop(), opts)
	return env
}

func makeQuiz(n int) quiz.Quiz {
	q := quiz.Quiz{Title: "Capitals"}
	for i := 0; i < n; i++ {
		q.Questions = append(q.Questions, quiz.Question{
			Question:  "Q" + string(rune('1'+i)),
			Answers:   []string{"Berlin", "Paris", "Rome", "Madrid"},
			Correct:   1,
			TimeLimit: 20,
		})
	}
	return q
}

func waitPhase(t *testing.T, s *Session, want Phase) {
	t.Helper()
	require.Eventually(t, func() bool { return s.Phase() == want }, waitFor, 5*time.Millisecond,
		"session never reached %s (now %s)", want, s.Phase())
}

// startGame creates a session with the given participants and runs it to the first answering phase.
func (e *testEnv) startGame(t *testing.T, q quiz.Quiz, names ...string) *Session {
	t.Helper()
	s := e.lobby(t, q, names...)
	require.NoError(t, s.Start("host"))
	e.clock.Advance(3 * time.Second)
	waitPhase(t, s, PhaseAnswering)
	return s
}

func (e *testEnv) lobby(t *testing.T, q quiz.Quiz, names ...string) *Session {
	t.Helper()
	s, err := e.reg.Create(context.Background(), "host", q)
	require.NoError(t, err)
	for _, name := range names {
		_, err := e.reg.Join(s.Code(), name, name)
		require.NoError(t, err)
	}
	return s
}

package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/live-quiz/internal/history"
	"github.com/gokatarajesh/live-quiz/internal/quiz"
	ws "github.com/gokatarajesh/live-quiz/pkg/http/ws"
)

type mockReserver struct {
	mock.Mock
}

func (m *mockReserver) Reserve(ctx context.Context, code string) (bool, error) {
	args := m.Called(ctx, code)
	return args.Bool(0), args.Error(1)
}

func (m *mockReserver) Release(ctx context.Context, code string) error {
	args := m.Called(ctx, code)
	return args.Error(0)
}

func TestRegistry_CreateRejectsInvalidQuiz(t *testing.T) {
	env := newTestEnv(t, RegistryOptions{})

	_, err := env.reg.Create(context.Background(), "host", quiz.Quiz{Title: "Empty"})
	var vErr *quiz.ValidationError
	assert.ErrorAs(t, err, &vErr)
	assert.Zero(t, env.reg.Count())
}

func TestRegistry_LocalCodeCollision(t *testing.T) {
	env := newTestEnv(t, RegistryOptions{CodeGenerator: fixedCodes("AAAA", "AAAA", "BBBB")})

	first, err := env.reg.Create(context.Background(), "host-1", makeQuiz(1))
	require.NoError(t, err)
	second, err := env.reg.Create(context.Background(), "host-2", makeQuiz(1))
	require.NoError(t, err)

	assert.Equal(t, "AAAA", first.Code())
	assert.Equal(t, "BBBB", second.Code())
	assert.Equal(t, 2, env.reg.Count())
}

func TestRegistry_ReserverRejectsTakenCode(t *testing.T) {
	res := new(mockReserver)
	res.On("Reserve", mock.Anything, "AAAA").Return(false, nil).Once()
	res.On("Reserve", mock.Anything, "BBBB").Return(true, nil).Once()
	res.On("Release", mock.Anything, "BBBB").Return(nil).Once()

	env := newTestEnv(t, RegistryOptions{
		Reserver:      res,
		CodeGenerator: fixedCodes("AAAA", "BBBB"),
	})

	s, err := env.reg.Create(context.Background(), "host", makeQuiz(1))
	require.NoError(t, err)
	assert.Equal(t, "BBBB", s.Code())

	_, err = env.reg.Get("AAAA")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	require.NoError(t, s.End("host"))
	require.NoError(t, env.reg.Shutdown(context.Background()))
	res.AssertExpectations(t)
}

func TestRegistry_ReserverOutageFailsOpen(t *testing.T) {
	res := new(mockReserver)
	res.On("Reserve", mock.Anything, "ABCD").Return(false, errors.New("connection refused"))
	res.On("Release", mock.Anything, "ABCD").Return(errors.New("connection refused"))

	env := newTestEnv(t, RegistryOptions{Reserver: res})

	s, err := env.reg.Create(context.Background(), "host", makeQuiz(1))
	require.NoError(t, err)
	assert.Equal(t, "ABCD", s.Code())

	require.NoError(t, s.End("host"))
	require.NoError(t, env.reg.Shutdown(context.Background()))
	assert.Len(t, env.recorder.all(), 1, "a failed release does not block recording")
}

func TestRegistry_CodeExhausted(t *testing.T) {
	res := new(mockReserver)
	res.On("Reserve", mock.Anything, "AAAA").Return(false, nil)

	env := newTestEnv(t, RegistryOptions{
		Reserver:      res,
		CodeGenerator: fixedCodes("AAAA"),
	})

	_, err := env.reg.Create(context.Background(), "host", makeQuiz(1))
	assert.ErrorIs(t, err, ErrCodeExhausted)
	res.AssertNumberOfCalls(t, "Reserve", maxCodeAttempts)
	assert.Zero(t, env.reg.Count())
}

func TestRegistry_GetNormalizesCode(t *testing.T) {
	env := newTestEnv(t, RegistryOptions{})
	s := env.lobby(t, makeQuiz(1))

	got, err := env.reg.Get("  abcd ")
	require.NoError(t, err)
	assert.Same(t, s, got)

	_, err = env.reg.Get("   ")
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestRegistry_ConnectionMovesBetweenSessions(t *testing.T) {
	env := newTestEnv(t, RegistryOptions{CodeGenerator: fixedCodes("AAAA", "BBBB")})

	first, err := env.reg.Create(context.Background(), "host-1", makeQuiz(1))
	require.NoError(t, err)
	second, err := env.reg.Create(context.Background(), "host-2", makeQuiz(1))
	require.NoError(t, err)

	_, err = env.reg.Join(first.Code(), "c1", "Anna")
	require.NoError(t, err)
	_, err = env.reg.Join(second.Code(), "c1", "Anna")
	require.NoError(t, err)

	anna, ok := first.Participant("Anna")
	require.True(t, ok)
	assert.False(t, anna.Connected())

	bound, ok := env.reg.SessionFor("c1")
	require.True(t, ok)
	assert.Same(t, second, bound)
}

func TestRegistry_LeaveForgetsBinding(t *testing.T) {
	env := newTestEnv(t, RegistryOptions{})
	s := env.lobby(t, makeQuiz(1), "Anna")

	require.NoError(t, env.reg.Leave(s.Code(), "Anna"))
	_, ok := env.reg.SessionFor("Anna")
	assert.False(t, ok)
	assert.Zero(t, s.ParticipantCount())

	var left ws.PlayersPayload
	env.notifier.last(t, "host", ws.TypePlayerLeft, &left)
	assert.Equal(t, "Anna", left.Name)
}

func TestRegistry_SweepIdle(t *testing.T) {
	env := newTestEnv(t, RegistryOptions{MaxIdle: time.Hour})
	s := env.lobby(t, makeQuiz(1), "Anna")

	assert.Zero(t, env.reg.SweepIdle(env.clock.Now().Add(59*time.Minute)))
	assert.Equal(t, 1, env.reg.SweepIdle(env.clock.Now().Add(time.Hour)))

	_, err := env.reg.Get(s.Code())
	assert.ErrorIs(t, err, ErrSessionNotFound)

	var ended ws.GameEndedPayload
	env.notifier.last(t, "Anna", ws.TypeGameEnded, &ended)
	assert.Equal(t, "session expired", ended.Reason)

	require.NoError(t, env.reg.Shutdown(context.Background()))
	require.Len(t, env.recorder.all(), 1)
	assert.Equal(t, "expired", env.recorder.all()[0].EndReason)
}

func TestRegistry_Shutdown(t *testing.T) {
	env := newTestEnv(t, RegistryOptions{CodeGenerator: fixedCodes("AAAA", "BBBB")})
	first := env.lobby(t, makeQuiz(1), "Anna")
	second, err := env.reg.Create(context.Background(), "host-2", makeQuiz(2))
	require.NoError(t, err)

	require.NoError(t, env.reg.Shutdown(context.Background()))

	assert.Equal(t, PhaseEnded, first.Phase())
	assert.Equal(t, PhaseEnded, second.Phase())
	assert.Zero(t, env.reg.Count())

	var ended ws.GameEndedPayload
	env.notifier.last(t, "Anna", ws.TypeGameEnded, &ended)
	assert.Equal(t, "server shutting down", ended.Reason)
	assert.Len(t, env.recorder.all(), 2)

	_, err = env.reg.Create(context.Background(), "host-3", makeQuiz(1))
	assert.ErrorIs(t, err, ErrShuttingDown)
}

func TestRegistry_ShutdownHonoursContext(t *testing.T) {
	blocked := make(chan struct{})
	env := newTestEnv(t, RegistryOptions{Recorders: []Recorder{blockingRecorder(blocked)}})
	env.lobby(t, makeQuiz(1))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, env.reg.Shutdown(ctx), context.DeadlineExceeded)
	close(blocked)
}

type blockingRecorder chan struct{}

func (b blockingRecorder) RecordSession(ctx context.Context, _ history.SessionRecord) error {
	select {
	case <-b:
	case <-ctx.Done():
	}
	return nil
}

func TestRegistry_EndedSessionReleasesConnections(t *testing.T) {
	env := newTestEnv(t, RegistryOptions{})
	s := env.lobby(t, makeQuiz(1), "Anna")

	require.NoError(t, s.End("host"))

	_, ok := env.reg.SessionFor("host")
	assert.False(t, ok)
	_, ok = env.reg.SessionFor("Anna")
	assert.False(t, ok)

	assert.ErrorIs(t, s.Start("host"), ErrSessionNotFound)
}

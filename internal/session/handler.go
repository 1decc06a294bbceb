package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/live-quiz/internal/quiz"
	httperrors "github.com/gokatarajesh/live-quiz/pkg/http/errors"
	ws "github.com/gokatarajesh/live-quiz/pkg/http/ws"
)

type quizSource interface {
	Get(ctx context.Context, id int) (quiz.Quiz, error)
}

type connectionHub interface {
	RegisterConnection(conn *ws.Connection)
	UnregisterConnection(connID string)
	Send(connID string, msg ws.Message) error
}

// Handler manages WebSocket connections and routes session messages.
type Handler struct {
	registry *Registry
	quizzes  quizSource
	hub      connectionHub
	logger   zerolog.Logger
}

// NewHandler creates a session WebSocket handler.
func NewHandler(registry *Registry, quizzes quizSource, hub connectionHub, logger zerolog.Logger) *Handler {
	return &Handler{
		registry: registry,
		quizzes:  quizzes,
		hub:      hub,
		logger:   logger.With().Str("component", "session_ws").Logger(),
	}
}

// HandleConnection serves one upgraded connection until it closes.
func (h *Handler) HandleConnection(conn *websocket.Conn) {
	wsConn := ws.NewConnection(conn, h.logger)
	connID := wsConn.ID()
	h.hub.RegisterConnection(wsConn)

	go wsConn.WritePump()

	wsConn.ReadPump(func(msg ws.Message) error {
		return h.HandleMessage(context.Background(), connID, msg)
	})

	h.registry.Disconnect(connID)
	h.hub.UnregisterConnection(connID)
}

// HandleMessage routes one inbound message from connID.
func (h *Handler) HandleMessage(ctx context.Context, connID string, msg ws.Message) error {
	var err error
	switch msg.Type {
	case ws.TypePing:
		return h.reply(connID, msg, ws.TypePong, nil)
	case ws.TypeCreateGame:
		err = h.handleCreateGame(ctx, connID, msg)
	case ws.TypeCreateCustomGame:
		err = h.handleCreateCustomGame(ctx, connID, msg)
	case ws.TypeJoinGame:
		err = h.handleJoinGame(connID, msg)
	case ws.TypeSelectTeam:
		err = h.handleSelectTeam(connID, msg)
	case ws.TypeStartGame:
		err = h.withSession(msg, func(s *Session) error { return s.Start(connID) })
	case ws.TypeSubmitAnswer:
		err = h.handleSubmitAnswer(connID, msg)
	case ws.TypeTimeUp:
		err = h.handleTimeUp(connID, msg)
	case ws.TypeNextQuestionRequest:
		err = h.withSession(msg, func(s *Session) error { return s.Next(connID) })
	case ws.TypeEndGameRequest:
		err = h.withSession(msg, func(s *Session) error { return s.End(connID) })
	case ws.TypeConfigureTeams:
		err = h.handleConfigureTeams(connID, msg)
	case ws.TypeConfigureAutoRemove:
		err = h.handleConfigureAutoRemove(connID, msg)
	case ws.TypeConfigureAutoplay:
		err = h.handleConfigureAutoplay(connID, msg)
	case ws.TypeAutoplayStarted:
		err = h.handleAutoplayStarted(connID, msg)
	case ws.TypeLeaveGame:
		err = h.handleLeaveGame(connID, msg)
	case ws.TypeReadmitPlayer:
		err = h.handleReadmitPlayer(connID, msg)
	case ws.TypeReconnectHost:
		return h.handleReconnectHost(connID, msg)
	case ws.TypeReconnectPlayer:
		return h.handleReconnectPlayer(connID, msg)
	default:
		return h.sendError(connID, msg, httperrors.ErrCodeUnknownMessageType, fmt.Sprintf("Unknown message type: %s", msg.Type))
	}

	if err != nil {
		return h.reject(connID, msg, err)
	}
	return nil
}

// errInvalidPayload marks a message whose payload could not be decoded.
var errInvalidPayload = errors.New("invalid payload")

func (h *Handler) decode(msg ws.Message, dst interface{}) error {
	if err := msg.Decode(dst); err != nil {
		h.logger.Debug().Err(err).Str("type", msg.Type).Msg("bad payload")
		return errInvalidPayload
	}
	return nil
}

func (h *Handler) withSession(msg ws.Message, fn func(s *Session) error) error {
	var req ws.CodePayload
	if err := h.decode(msg, &req); err != nil {
		return err
	}
	s, err := h.registry.Get(req.Code)
	if err != nil {
		return err
	}
	return fn(s)
}

func (h *Handler) handleCreateGame(ctx context.Context, connID string, msg ws.Message) error {
	var req ws.CreateGamePayload
	if err := h.decode(msg, &req); err != nil {
		return err
	}
	q, err := h.quizzes.Get(ctx, req.QuizID)
	if err != nil {
		return err
	}
	_, err = h.registry.Create(ctx, connID, q)
	return err
}

func (h *Handler) handleCreateCustomGame(ctx context.Context, connID string, msg ws.Message) error {
	var req ws.CreateCustomGamePayload
	if err := h.decode(msg, &req); err != nil {
		return err
	}
	q, err := quiz.ParseOne(req.Quiz)
	if err != nil {
		return err
	}
	_, err = h.registry.Create(ctx, connID, q)
	return err
}

func (h *Handler) handleJoinGame(connID string, msg ws.Message) error {
	var req ws.JoinGamePayload
	if err := h.decode(msg, &req); err != nil {
		return err
	}
	_, err := h.registry.Join(req.Code, connID, req.Name)
	return err
}

func (h *Handler) handleSelectTeam(connID string, msg ws.Message) error {
	var req ws.SelectTeamPayload
	if err := h.decode(msg, &req); err != nil {
		return err
	}
	s, err := h.registry.Get(req.Code)
	if err != nil {
		return err
	}
	return s.SelectTeam(connID, req.Team)
}

func (h *Handler) handleSubmitAnswer(connID string, msg ws.Message) error {
	var req ws.SubmitAnswerPayload
	if err := h.decode(msg, &req); err != nil {
		return err
	}
	if req.AnswerIndex == nil {
		return ErrInvalidAnswer
	}
	s, err := h.registry.Get(req.Code)
	if err != nil {
		return err
	}
	return s.SubmitAnswer(connID, *req.AnswerIndex)
}

func (h *Handler) handleTimeUp(connID string, msg ws.Message) error {
	var req ws.TimeUpPayload
	if err := h.decode(msg, &req); err != nil {
		return err
	}
	s, err := h.registry.Get(req.Code)
	if err != nil {
		return err
	}
	return s.TimeUp(connID, req.Force)
}

func (h *Handler) handleConfigureTeams(connID string, msg ws.Message) error {
	var req ws.ConfigureTeamsPayload
	if err := h.decode(msg, &req); err != nil {
		return err
	}
	s, err := h.registry.Get(req.Code)
	if err != nil {
		return err
	}
	return s.ConfigureTeams(connID, TeamConfig{
		Enabled: req.TeamMode,
		Teams:   req.Teams,
		TopN:    req.TopNPlayers,
	})
}

func (h *Handler) handleConfigureAutoRemove(connID string, msg ws.Message) error {
	var req ws.ConfigureAutoRemovePayload
	if err := h.decode(msg, &req); err != nil {
		return err
	}
	s, err := h.registry.Get(req.Code)
	if err != nil {
		return err
	}
	return s.ConfigureAutoRemove(connID, InactivityConfig{
		Enabled:   req.AutoRemoveInactive,
		Threshold: req.InactivityThreshold,
	})
}

func (h *Handler) handleConfigureAutoplay(connID string, msg ws.Message) error {
	var req ws.ConfigureAutoplayPayload
	if err := h.decode(msg, &req); err != nil {
		return err
	}
	s, err := h.registry.Get(req.Code)
	if err != nil {
		return err
	}
	return s.ConfigureAutoplay(connID, AutoplayConfig{
		Enabled: req.Enabled,
		Delay:   time.Duration(req.Seconds) * time.Second,
	})
}

func (h *Handler) handleAutoplayStarted(connID string, msg ws.Message) error {
	var req ws.AutoplayStartedPayload
	if err := h.decode(msg, &req); err != nil {
		return err
	}
	s, err := h.registry.Get(req.Code)
	if err != nil {
		return err
	}
	return s.AutoplayStarted(connID, time.Duration(req.Seconds)*time.Second)
}

func (h *Handler) handleLeaveGame(connID string, msg ws.Message) error {
	var req ws.CodePayload
	if err := h.decode(msg, &req); err != nil {
		return err
	}
	return h.registry.Leave(req.Code, connID)
}

func (h *Handler) handleReadmitPlayer(connID string, msg ws.Message) error {
	var req ws.ReadmitPlayerPayload
	if err := h.decode(msg, &req); err != nil {
		return err
	}
	s, err := h.registry.Get(req.Code)
	if err != nil {
		return err
	}
	return s.Readmit(connID, req.Name)
}

func (h *Handler) handleReconnectHost(connID string, msg ws.Message) error {
	var req ws.ReconnectHostPayload
	if err := h.decode(msg, &req); err != nil {
		return h.reconnectFailed(connID, msg, err)
	}
	if _, err := h.registry.ReconnectHost(req.Code, connID, req.HostToken); err != nil {
		return h.reconnectFailed(connID, msg, err)
	}
	return nil
}

func (h *Handler) handleReconnectPlayer(connID string, msg ws.Message) error {
	var req ws.ReconnectPlayerPayload
	if err := h.decode(msg, &req); err != nil {
		return h.reconnectFailed(connID, msg, err)
	}
	if _, err := h.registry.ReconnectPlayer(req.Code, connID, req.Name); err != nil {
		return h.reconnectFailed(connID, msg, err)
	}
	return nil
}

func (h *Handler) reconnectFailed(connID string, req ws.Message, cause error) error {
	h.logger.Debug().Err(cause).Str("conn_id", connID).Str("type", req.Type).Msg("reconnect rejected")
	_, message := classify(cause)
	return h.reply(connID, req, ws.TypeReconnectFailed, ws.ReconnectFailedPayload{Message: message})
}

// reject reports a failed action to its originator only.
func (h *Handler) reject(connID string, req ws.Message, cause error) error {
	code, message := classify(cause)
	if code == httperrors.ErrCodeInternalError {
		h.logger.Error().Err(cause).Str("conn_id", connID).Str("type", req.Type).Msg("action failed")
	} else {
		h.logger.Debug().Err(cause).Str("conn_id", connID).Str("type", req.Type).Msg("action rejected")
	}
	return h.sendError(connID, req, code, message)
}

func classify(err error) (code, message string) {
	var sErr *Error
	var vErr *quiz.ValidationError
	switch {
	case errors.As(err, &sErr):
		return sErr.Code, sErr.Message
	case errors.As(err, &vErr):
		return httperrors.ErrCodeValidationFailed, vErr.Error()
	case errors.Is(err, quiz.ErrQuizNotFound):
		return httperrors.ErrCodeQuizNotFound, "Quiz not found"
	case errors.Is(err, errInvalidPayload):
		return httperrors.ErrCodeInvalidPayload, "Invalid message payload"
	default:
		return httperrors.ErrCodeInternalError, "Something went wrong, please try again"
	}
}

func (h *Handler) sendError(connID string, req ws.Message, code, message string) error {
	return h.reply(connID, req, ws.TypeError, ws.ErrorPayload{Code: code, Message: message})
}

func (h *Handler) reply(connID string, req ws.Message, msgType string, payload interface{}) error {
	msg, err := ws.NewMessage(msgType, payload)
	if err != nil {
		return err
	}
	msg.RequestID = req.RequestID
	return h.hub.Send(connID, msg)
}

package ws

import (
	"encoding/json"
	"fmt"
)

// MessageType constants for WebSocket protocol.
const (
	// Client -> Server
	TypeCreateGame          = "create_game"
	TypeCreateCustomGame    = "create_custom_game"
	TypeJoinGame            = "join_game"
	TypeSelectTeam          = "select_team"
	TypeStartGame           = "start_game"
	TypeSubmitAnswer        = "submit_answer"
	TypeTimeUp              = "time_up"
	TypeNextQuestionRequest = "next_question_request"
	TypeEndGameRequest      = "end_game_request"
	TypeConfigureTeams      = "configure_teams"
	TypeConfigureAutoRemove = "configure_auto_remove"
	TypeConfigureAutoplay   = "configure_autoplay"
	TypeAutoplayStarted     = "autoplay_started"
	TypeReconnectHost       = "reconnect_host"
	TypeReconnectPlayer     = "reconnect_player"
	TypeLeaveGame           = "leave_game"
	TypeReadmitPlayer       = "readmit_player"
	TypePing                = "ping"

	// Server -> Client
	TypeGameCreated             = "game_created"
	TypeJoinedGame              = "joined_game"
	TypePlayerJoined            = "player_joined"
	TypePlayerLeft              = "player_left"
	TypePlayerUpdated           = "player_updated"
	TypeTeamConfigUpdated       = "team_config_updated"
	TypeAutoRemoveConfigUpdated = "auto_remove_config_updated"
	TypeAutoplayConfigUpdated   = "autoplay_config_updated"
	TypeGameStarting            = "game_starting"
	TypeShowQuestionReading     = "show_question_reading"
	TypeShowAnswers             = "show_answers"
	TypeAnswerReceived          = "answer_received"
	TypeAnswerUpdate            = "answer_update"
	TypeShowResults             = "show_results"
	TypeYourResult              = "your_result"
	TypeInactivePlayersRemoved  = "inactive_players_removed"
	TypePlayerReadmitted        = "player_readmitted"
	TypeAutoplayCountdown       = "autoplay_countdown"
	TypeGameEnded               = "game_ended"
	TypeHostDisconnected        = "host_disconnected"
	TypeHostReconnected         = "host_reconnected"
	TypeReconnectedHost         = "reconnected_host"
	TypeReconnectedPlayer       = "reconnected_player"
	TypeReconnectFailed         = "reconnect_failed"
	TypeError                   = "error"
	TypePong                    = "pong"
)

// Message wraps all WebSocket payloads with type and optional request ID.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	RequestID string          `json:"request_id,omitempty"`
}

// NewMessage encodes payload into a typed envelope.
func NewMessage(msgType string, payload interface{}) (Message, error) {
	if payload == nil {
		return Message{Type: msgType, Payload: json.RawMessage("{}")}, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	return Message{Type: msgType, Payload: raw}, nil
}

// Decode unmarshals the message payload into dst.
func (m Message) Decode(dst interface{}) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("decode %s: empty payload", m.Type)
	}
	if err := json.Unmarshal(m.Payload, dst); err != nil {
		return fmt.Errorf("decode %s: %w", m.Type, err)
	}
	return nil
}

// Client Messages (incoming)

type CreateGamePayload struct {
	QuizID int `json:"quiz_id"`
}

type CreateCustomGamePayload struct {
	Quiz json.RawMessage `json:"quiz"`
}

// CodePayload is shared by every host or participant action that only names the session.
type CodePayload struct {
	Code string `json:"code"`
}

type JoinGamePayload struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type SelectTeamPayload struct {
	Code string `json:"code"`
	Team string `json:"team"`
}

type SubmitAnswerPayload struct {
	Code        string `json:"code"`
	AnswerIndex *int   `json:"answer_index"`
}

type TimeUpPayload struct {
	Code  string `json:"code"`
	Force bool   `json:"force,omitempty"`
}

type ConfigureTeamsPayload struct {
	Code        string   `json:"code"`
	TeamMode    bool     `json:"team_mode"`
	Teams       []string `json:"teams"`
	TopNPlayers int      `json:"top_n_players"`
}

type ConfigureAutoRemovePayload struct {
	Code                string `json:"code"`
	AutoRemoveInactive  bool   `json:"auto_remove_inactive"`
	InactivityThreshold int    `json:"inactivity_threshold"`
}

type ConfigureAutoplayPayload struct {
	Code    string `json:"code"`
	Enabled bool   `json:"enabled"`
	Seconds int    `json:"seconds,omitempty"`
}

type AutoplayStartedPayload struct {
	Code    string `json:"code"`
	Seconds int    `json:"seconds,omitempty"`
}

type ReconnectHostPayload struct {
	Code      string `json:"code"`
	HostToken string `json:"host_token,omitempty"`
}

type ReconnectPlayerPayload struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type ReadmitPlayerPayload struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Server Messages (outgoing)

type GameCreatedPayload struct {
	Code          string `json:"code"`
	QuizTitle     string `json:"quiz_title"`
	QuestionCount int    `json:"question_count"`
	HostToken     string `json:"host_token,omitempty"`
}

type JoinedGamePayload struct {
	Code      string   `json:"code"`
	Name      string   `json:"name"`
	QuizTitle string   `json:"quiz_title"`
	TeamMode  bool     `json:"team_mode"`
	Teams     []string `json:"teams,omitempty"`
}

type Player struct {
	Name      string `json:"name"`
	Score     int    `json:"score"`
	Team      string `json:"team,omitempty"`
	Connected bool   `json:"connected"`
}

// PlayersPayload backs player_joined, player_left and player_updated.
type PlayersPayload struct {
	Name    string   `json:"name,omitempty"`
	Players []Player `json:"players"`
}

type TeamConfigPayload struct {
	TeamMode    bool     `json:"team_mode"`
	Teams       []string `json:"teams"`
	TopNPlayers int      `json:"top_n_players"`
}

type AutoRemoveConfigPayload struct {
	AutoRemoveInactive  bool `json:"auto_remove_inactive"`
	InactivityThreshold int  `json:"inactivity_threshold"`
}

type AutoplayConfigPayload struct {
	Enabled bool `json:"enabled"`
	Seconds int  `json:"seconds"`
}

type GameStartingPayload struct {
	Seconds int `json:"seconds"`
}

type QuestionReadingPayload struct {
	QuestionNum    int     `json:"question_num"`
	TotalQuestions int     `json:"total_questions"`
	Question       string  `json:"question"`
	ReadingTime    int     `json:"reading_time"`
	TimeRemaining  float64 `json:"time_remaining"`
}

type ShowAnswersPayload struct {
	QuestionNum    int      `json:"question_num"`
	TotalQuestions int      `json:"total_questions"`
	Question       string   `json:"question"`
	Answers        []string `json:"answers"`
	TimeLimit      int      `json:"time_limit"`
	TimeRemaining  float64  `json:"time_remaining"`
	CorrectIndex   *int     `json:"correct_index,omitempty"`
}

type AnswerReceivedPayload struct {
	AnswerIndex int `json:"answer_index"`
}

type AnswerUpdatePayload struct {
	Answered int `json:"answered"`
	Total    int `json:"total"`
}

type QuestionResult struct {
	Rank        int    `json:"rank"`
	Name        string `json:"name"`
	Team        string `json:"team,omitempty"`
	Answered    bool   `json:"answered"`
	Correct     bool   `json:"correct"`
	ScoreGained int    `json:"score_gained"`
	TotalScore  int    `json:"total_score"`
	Streak      int    `json:"streak"`
}

type ShowResultsPayload struct {
	QuestionNum    int              `json:"question_num"`
	TotalQuestions int              `json:"total_questions"`
	CorrectIndex   int              `json:"correct_index"`
	CorrectAnswer  string           `json:"correct_answer"`
	AnswerCounts   []int            `json:"answer_counts"`
	Results        []QuestionResult `json:"results"`
	IsLastQuestion bool             `json:"is_last_question"`
}

type YourResultPayload struct {
	Answered      bool   `json:"answered"`
	Correct       bool   `json:"correct"`
	CorrectAnswer string `json:"correct_answer"`
	ScoreGained   int    `json:"score_gained"`
	TotalScore    int    `json:"total_score"`
	Streak        int    `json:"streak"`
	Rank          int    `json:"rank"`
	TotalPlayers  int    `json:"total_players"`
}

type InactivePlayersRemovedPayload struct {
	Count   int      `json:"count"`
	Players []string `json:"players"`
}

type PlayerReadmittedPayload struct {
	Name string `json:"name"`
}

type AutoplayCountdownPayload struct {
	Seconds        int  `json:"seconds"`
	IsLastQuestion bool `json:"is_last_question"`
}

type LeaderboardEntry struct {
	Rank  int    `json:"rank"`
	Name  string `json:"name"`
	Score int    `json:"score"`
	Team  string `json:"team,omitempty"`
}

type TeamEntry struct {
	Rank        int                `json:"rank"`
	Team        string             `json:"team"`
	Score       int                `json:"score"`
	PlayerCount int                `json:"player_count"`
	TopPlayers  []LeaderboardEntry `json:"top_players"`
}

type GameEndedPayload struct {
	Leaderboard     []LeaderboardEntry `json:"leaderboard"`
	TeamMode        bool               `json:"team_mode"`
	TeamLeaderboard []TeamEntry        `json:"team_leaderboard,omitempty"`
	TopNPlayers     int                `json:"top_n_players,omitempty"`
	Reason          string             `json:"reason,omitempty"`
}

type HostDisconnectedPayload struct {
	GracePeriod int `json:"grace_period"`
}

type ReconnectedHostPayload struct {
	Code           string   `json:"code"`
	QuizTitle      string   `json:"quiz_title"`
	State          string   `json:"state"`
	QuestionNum    int      `json:"question_num"`
	TotalQuestions int      `json:"total_questions"`
	Players        []Player `json:"players"`
	TeamMode       bool     `json:"team_mode"`
	Teams          []string `json:"teams,omitempty"`
	TopNPlayers    int      `json:"top_n_players"`
	AutoplayOn     bool     `json:"autoplay"`
	AutoRemoveOn   bool     `json:"auto_remove_inactive"`
}

type ReconnectedPlayerPayload struct {
	Code        string   `json:"code"`
	Name        string   `json:"name"`
	QuizTitle   string   `json:"quiz_title"`
	State       string   `json:"state"`
	TeamMode    bool     `json:"team_mode"`
	Teams       []string `json:"teams,omitempty"`
	Team        string   `json:"team,omitempty"`
	Score       int      `json:"score"`
	HasAnswered bool     `json:"has_answered"`
}

type ReconnectFailedPayload struct {
	Message string `json:"message"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

package history

import "time"

// SessionRecord is the durable summary of one finished session.
type SessionRecord struct {
	Code          string
	QuizTitle     string
	QuestionCount int
	TeamMode      bool
	CreatedAt     time.Time
	StartedAt     time.Time
	EndedAt       time.Time
	EndReason     string
	Players       []PlayerRecord
}

// PlayerRecord is a participant's final standing plus their per-question answers.
type PlayerRecord struct {
	Name      string
	Team      string
	Score     int
	Rank      int
	Responses []ResponseRecord
}

// ResponseRecord is one question outcome. AnswerIndex is nil when the question was missed.
type ResponseRecord struct {
	QuestionIndex int
	AnswerIndex   *int
	Correct       bool
	ScoreDelta    int
	Elapsed       time.Duration
}

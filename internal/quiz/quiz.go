package quiz

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	AnswerCount      = 4
	MinTimeLimit     = 5
	MaxTimeLimit     = 120
	DefaultTimeLimit = 20
	MaxReadingTime   = 60
)

// Question is a single multiple-choice question with exactly four answers.
type Question struct {
	Question    string   `json:"question"`
	Answers     []string `json:"answers"`
	Correct     int      `json:"correct"`
	TimeLimit   int      `json:"time_limit"`
	ReadingTime *int     `json:"reading_time,omitempty"`
}

// Quiz is an ordered, immutable-once-started list of questions.
type Quiz struct {
	ID          int        `json:"id,omitempty"`
	Title       string     `json:"title"`
	ReadingTime *int       `json:"reading_time,omitempty"`
	Questions   []Question `json:"questions"`
}

// Summary is the catalog listing shape.
type Summary struct {
	ID            int    `json:"id"`
	Title         string `json:"title"`
	QuestionCount int    `json:"question_count"`
}

// ValidationError reports the first structural problem found in a quiz.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var ErrQuizNotFound = errors.New("quiz not found")

// Validate checks the quiz and every question.
func (q Quiz) Validate() error {
	if strings.TrimSpace(q.Title) == "" {
		return &ValidationError{Field: "title", Message: "must not be empty"}
	}
	if q.ReadingTime != nil && (*q.ReadingTime < 0 || *q.ReadingTime > MaxReadingTime) {
		return &ValidationError{Field: "reading_time", Message: fmt.Sprintf("must be between 0 and %d", MaxReadingTime)}
	}
	if len(q.Questions) == 0 {
		return &ValidationError{Field: "questions", Message: "at least one question is required"}
	}
	for i, question := range q.Questions {
		if err := question.validate(i); err != nil {
			return err
		}
	}
	return nil
}

func (q Question) validate(idx int) error {
	field := func(name string) string { return fmt.Sprintf("questions[%d].%s", idx, name) }

	if strings.TrimSpace(q.Question) == "" {
		return &ValidationError{Field: field("question"), Message: "must not be empty"}
	}
	if len(q.Answers) != AnswerCount {
		return &ValidationError{Field: field("answers"), Message: fmt.Sprintf("exactly %d answers are required", AnswerCount)}
	}
	for i, a := range q.Answers {
		if strings.TrimSpace(a) == "" {
			return &ValidationError{Field: field(fmt.Sprintf("answers[%d]", i)), Message: "must not be empty"}
		}
	}
	if q.Correct < 0 || q.Correct >= AnswerCount {
		return &ValidationError{Field: field("correct"), Message: fmt.Sprintf("must be between 0 and %d", AnswerCount-1)}
	}
	if q.TimeLimit < MinTimeLimit || q.TimeLimit > MaxTimeLimit {
		return &ValidationError{Field: field("time_limit"), Message: fmt.Sprintf("must be between %d and %d seconds", MinTimeLimit, MaxTimeLimit)}
	}
	if q.ReadingTime != nil && (*q.ReadingTime < 0 || *q.ReadingTime > MaxReadingTime) {
		return &ValidationError{Field: field("reading_time"), Message: fmt.Sprintf("must be between 0 and %d", MaxReadingTime)}
	}
	return nil
}

// Clone returns a deep copy so a running session never shares slices with its source.
func (q Quiz) Clone() Quiz {
	out := q
	out.ReadingTime = cloneInt(q.ReadingTime)
	out.Questions = make([]Question, len(q.Questions))
	for i, question := range q.Questions {
		cp := question
		cp.Answers = append([]string(nil), question.Answers...)
		cp.ReadingTime = cloneInt(question.ReadingTime)
		out.Questions[i] = cp
	}
	return out
}

// Summary builds the catalog listing entry.
func (q Quiz) Summary() Summary {
	return Summary{ID: q.ID, Title: q.Title, QuestionCount: len(q.Questions)}
}

// Parse accepts {"quizzes": [...]}, a bare array or a single quiz object and
// returns the validated quizzes.
func Parse(data []byte) ([]Quiz, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	var quizzes []Quiz
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &quizzes); err != nil {
			return nil, fmt.Errorf("decode quizzes: %w", err)
		}
	} else {
		var doc struct {
			Quizzes   []Quiz          `json:"quizzes"`
			Questions json.RawMessage `json:"questions"`
		}
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, fmt.Errorf("decode quizzes: %w", err)
		}
		quizzes = doc.Quizzes
		if doc.Quizzes == nil && doc.Questions != nil {
			// A lone quiz object is a one-element collection.
			var single Quiz
			if err := json.Unmarshal(trimmed, &single); err != nil {
				return nil, fmt.Errorf("decode quiz: %w", err)
			}
			quizzes = []Quiz{single}
		}
	}

	used := make(map[int]bool, len(quizzes))
	for i, q := range quizzes {
		if q.ID == 0 {
			continue
		}
		if used[q.ID] {
			return nil, fmt.Errorf("quiz %d: %w", i, &ValidationError{Field: "id", Message: fmt.Sprintf("duplicate id %d", q.ID)})
		}
		used[q.ID] = true
	}

	for i := range quizzes {
		quizzes[i].applyDefaults()
		if quizzes[i].ID == 0 {
			// Positional id, skipping any taken explicitly.
			id := i + 1
			for used[id] {
				id++
			}
			used[id] = true
			quizzes[i].ID = id
		}
		if err := quizzes[i].Validate(); err != nil {
			return nil, fmt.Errorf("quiz %d: %w", i, err)
		}
	}
	return quizzes, nil
}

// ParseOne decodes and validates a single quiz, as supplied for a custom game.
func ParseOne(data []byte) (Quiz, error) {
	var q Quiz
	if err := json.Unmarshal(data, &q); err != nil {
		return Quiz{}, &ValidationError{Field: "quiz", Message: "malformed quiz document"}
	}
	q.applyDefaults()
	if err := q.Validate(); err != nil {
		return Quiz{}, err
	}
	return q, nil
}

func (q *Quiz) applyDefaults() {
	q.Title = strings.TrimSpace(q.Title)
	for i := range q.Questions {
		if q.Questions[i].TimeLimit == 0 {
			q.Questions[i].TimeLimit = DefaultTimeLimit
		}
	}
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	cp := *v
	return &cp
}

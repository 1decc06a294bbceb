package scoring

import (
	"math"
	"sync"
)

// ScoringConfig holds configurable scoring constants.
type ScoringConfig struct {
	BaseScore          int     // default: 500
	MaxTimeBonus       int     // default: 500, awarded in full for an instant answer
	StreakBonusPercent float64 // default: 0.10 per prior consecutive correct answer
	MaxStreakBonus     float64 // default: 0.50 cap on the streak multiplier
}

// DefaultScoringConfig returns production defaults.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		BaseScore:          500,
		MaxTimeBonus:       500,
		StreakBonusPercent: 0.10,
		MaxStreakBonus:     0.50,
	}
}

// Engine computes server-side scores with configurable constants.
type Engine struct {
	config ScoringConfig
}

// NewEngine creates a scoring engine with the provided config.
func NewEngine(config ScoringConfig) *Engine {
	return &Engine{config: config}
}

// ScoreResult is the outcome of evaluating one participant's answer.
type ScoreResult struct {
	Correct   bool
	Delta     int
	NewStreak int
}

// CalculateScore computes points for a single answer.
// Formula: (base + time_bonus) * (1 + streak_bonus)
//   - time_bonus decays linearly from MaxTimeBonus to 0 across the answering window
//   - streak_bonus grows with consecutive prior correct answers, capped
func (e *Engine) CalculateScore(isCorrect bool, remainingFraction float64, priorStreak int) int {
	if !isCorrect {
		return 0
	}

	remainingFraction = clamp01(remainingFraction)
	raw := float64(e.config.BaseScore) + float64(e.config.MaxTimeBonus)*remainingFraction

	return int(math.Round(raw * (1 + e.streakMultiplier(priorStreak))))
}

// Evaluate scores a submission against the correct index.
// A nil submission is a missed question: zero points and a broken streak.
func (e *Engine) Evaluate(sub *Submission, correctIndex int, priorStreak int) ScoreResult {
	if sub == nil || sub.ChosenIndex != correctIndex {
		return ScoreResult{}
	}
	return ScoreResult{
		Correct:   true,
		Delta:     e.CalculateScore(true, 1-sub.ElapsedFraction, priorStreak),
		NewStreak: priorStreak + 1,
	}
}

func (e *Engine) streakMultiplier(priorStreak int) float64 {
	if priorStreak <= 0 {
		return 0
	}
	m := float64(priorStreak) * e.config.StreakBonusPercent
	if m > e.config.MaxStreakBonus {
		m = e.config.MaxStreakBonus
	}
	return m
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// Submission is the first accepted answer from one participant for one question.
type Submission struct {
	ChosenIndex     int
	ElapsedFraction float64
	Seq             int
}

// Round collects submissions for a single question.
// Only the first submission per participant is kept.
type Round struct {
	mu          sync.Mutex
	submissions map[string]*Submission
	order       []string
}

// NewRound creates an empty round.
func NewRound() *Round {
	return &Round{submissions: make(map[string]*Submission)}
}

// Submit records an answer and reports whether it was accepted.
func (r *Round) Submit(participant string, chosenIndex int, elapsedFraction float64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.submissions[participant]; exists {
		return false
	}
	r.submissions[participant] = &Submission{
		ChosenIndex:     chosenIndex,
		ElapsedFraction: clamp01(elapsedFraction),
		Seq:             len(r.order),
	}
	r.order = append(r.order, participant)
	return true
}

// Get returns the participant's submission, or nil if they did not answer.
func (r *Round) Get(participant string) *Submission {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.submissions[participant]
}

// Forget drops a participant's submission, used when they leave mid-question.
func (r *Round) Forget(participant string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.submissions[participant]; !ok {
		return
	}
	delete(r.submissions, participant)
	for i, p := range r.order {
		if p == participant {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Order lists participants in submission order.
func (r *Round) Order() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

// Count is the number of accepted submissions.
func (r *Round) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

// AnswerCounts tallies how many participants chose each answer index.
func (r *Round) AnswerCounts(n int) []int {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := make([]int, n)
	for _, sub := range r.submissions {
		if sub.ChosenIndex >= 0 && sub.ChosenIndex < n {
			counts[sub.ChosenIndex]++
		}
	}
	return counts
}

package domain

import "time"

// SessionState tracks a session through its lifecycle.
type SessionState string

const (
	StateLobby SessionState = "lobby"
	StateLive  SessionState = "live"
	StateEnded SessionState = "ended"
)

// ChoiceKeys is the fixed option layout for every question.
var ChoiceKeys = []string{"A", "B", "C", "D"}

// Question models a single MCQ (or poll) question. Choices maps A-D to
// option text; empty strings are disabled slots. Correct is the winning
// key, or empty for poll mode.
type Question struct {
	ID      string            `json:"id"`
	Prompt  string            `json:"prompt"`
	Choices map[string]string `json:"choices"`
	Correct string            `json:"correct,omitempty"`
}

// Scored reports whether the question has a designated correct choice.
func (q Question) Scored() bool {
	return q.Correct != ""
}

// SessionConfig is the validated create-session payload.
type SessionConfig struct {
	ClassID                int
	Title                  string
	Anonymous              bool
	SecondsPerQuestion     *int // nil = untimed
	ShuffleQuestions       bool
	AutoEndWhenAllAnswered bool
	Questions              []Question
}

// Participant is one joined identity within a session.
type Participant struct {
	AnonID    string
	Nickname  string // empty in anonymous sessions
	JoinOrder int
	JoinedAt  time.Time
}

// Answer is a participant's latest recorded choice for a question.
type Answer struct {
	Choice     string
	AnsweredAt time.Time
}

// JoinResult is returned to the student on (re)join.
type JoinResult struct {
	AnonID   string `json:"anon_id"`
	Nickname string `json:"nickname,omitempty"`
}

// Status is the teacher-facing snapshot of a session.
type Status struct {
	SessionCode        string       `json:"session_code"`
	State              SessionState `json:"state"`
	Title              string       `json:"title"`
	Anonymous          bool         `json:"anonymous"`
	SecondsPerQuestion *int         `json:"seconds_per_question"`
	CurrentIndex       int          `json:"current_index"`
	TotalQuestions     int          `json:"total_questions"`
	TimeLeftSeconds    *int         `json:"time_left_seconds"`
	JoinedCount        int          `json:"joined_count"`
	AnsweredCount      int          `json:"answered_count"`
}

// StudentQuestion is the open question as shown to students. The correct
// key is stripped before it ever leaves the session.
type StudentQuestion struct {
	ID      string            `json:"id"`
	Prompt  string            `json:"prompt"`
	Choices map[string]string `json:"choices"`
}

// CurrentView is the student-facing snapshot of a session.
type CurrentView struct {
	State           SessionState     `json:"state"`
	Title           string           `json:"title"`
	Anonymous       bool             `json:"anonymous"`
	CurrentIndex    int              `json:"current_index"`
	TotalQuestions  int              `json:"total_questions"`
	TimeLeftSeconds *int             `json:"time_left_seconds"`
	Question        *StudentQuestion `json:"question,omitempty"`
}

// LeaderboardEntry is one ranked participant in the final report.
type LeaderboardEntry struct {
	Name     string `json:"name"`
	Correct  int    `json:"correct"`
	Answered int    `json:"answered"`
	Percent  int    `json:"percent"`
}

// HardestQuestion identifies the scored question with the lowest correct rate.
type HardestQuestion struct {
	QuestionID  string  `json:"question_id"`
	Prompt      string  `json:"prompt"`
	CorrectRate float64 `json:"correct_rate"`
}

// Summary captures the headline numbers of an ended session.
type Summary struct {
	Joined          int              `json:"joined"`
	AttemptedAny    int              `json:"attempted_any"`
	TotalQuestions  int              `json:"total_questions"`
	AvgPercent      int              `json:"avg_percent"`
	HardestQuestion *HardestQuestion `json:"hardest_question"`
	ScoredMode      bool             `json:"scored_mode"`
}

// QuestionStat is the per-question answer breakdown in the final report.
type QuestionStat struct {
	QuestionID      string         `json:"question_id"`
	Prompt          string         `json:"prompt"`
	Correct         string         `json:"correct,omitempty"`
	Counts          map[string]int `json:"counts"`
	TotalAnswers    int            `json:"total_answers"`
	CorrectRate     *float64       `json:"correct_rate"`
	MostCommonWrong string         `json:"most_common_wrong,omitempty"`
}

// Report is the final results document, computed once at session end.
type Report struct {
	SessionCode   string             `json:"session_code"`
	ClassID       int                `json:"class_id"`
	Title         string             `json:"title"`
	Anonymous     bool               `json:"anonymous"`
	State         SessionState       `json:"state"`
	CreatedAt     time.Time          `json:"created_at"`
	StartedAt     *time.Time         `json:"started_at"`
	EndedAt       *time.Time         `json:"ended_at"`
	Summary       Summary            `json:"summary"`
	Top3          []LeaderboardEntry `json:"top3"`
	Leaderboard   []LeaderboardEntry `json:"leaderboard"`
	QuestionStats []QuestionStat     `json:"question_stats"`
}

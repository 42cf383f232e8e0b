package models

import "time"

// Attempt statuses
const (
	AttemptInProgress = "in_progress"
	AttemptSubmitted  = "submitted"
)

type Question struct {
	ID            int      `json:"id"`
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer,omitempty"`
}

// HasOption reports whether option is one of the question's choices.
func (q *Question) HasOption(option string) bool {
	for _, o := range q.Options {
		if o == option {
			return true
		}
	}
	return false
}

type Exam struct {
	ID               int        `json:"id"`
	CourseID         *int       `json:"course_id,omitempty"`
	Title            string     `json:"title"`
	Questions        []Question `json:"questions"`
	TimeLimitMinutes int        `json:"time_limit_minutes"`
	PassingScore     float64    `json:"passing_score"`
	MaxAttempts      int        `json:"max_attempts"`
	CreatedAt        time.Time  `json:"created_at"`
}

// TimeLimit returns the countdown length.
func (e *Exam) TimeLimit() time.Duration {
	return time.Duration(e.TimeLimitMinutes) * time.Minute
}

// Public returns a copy with correct answers stripped.
func (e *Exam) Public() Exam {
	out := *e
	out.Questions = make([]Question, len(e.Questions))
	for i, q := range e.Questions {
		q.CorrectAnswer = ""
		out.Questions[i] = q
	}
	return out
}

// ExamView is what a student sees before starting.
type ExamView struct {
	Exam              Exam     `json:"exam"`
	AttemptsUsed      int      `json:"attempts_used"`
	AttemptsRemaining *int     `json:"attempts_remaining,omitempty"`
	InProgressAttempt *Attempt `json:"in_progress_attempt,omitempty"`
	BestPercentage    *float64 `json:"best_percentage,omitempty"`
}

type Attempt struct {
	ID            int            `json:"id"`
	ExamID        int            `json:"exam_id"`
	UserID        int            `json:"user_id"`
	AttemptNumber int            `json:"attempt_number"`
	Answers       map[int]string `json:"answers"`
	Score         int            `json:"score"`
	Percentage    float64        `json:"percentage"`
	Passed        bool           `json:"passed"`
	Status        string         `json:"status"`
	AutoSubmitted bool           `json:"auto_submitted"`
	StartedAt     time.Time      `json:"started_at"`
	Deadline      time.Time      `json:"deadline"`
	SubmittedAt   *time.Time     `json:"submitted_at,omitempty"`
}

// AttemptResult is the server's verdict on a submission.
type AttemptResult struct {
	AttemptID     int     `json:"attempt_id"`
	Score         int     `json:"score"`
	Total         int     `json:"total"`
	Percentage    float64 `json:"percentage"`
	Passed        bool    `json:"passed"`
	AutoSubmitted bool    `json:"auto_submitted"`
}

// ResultRow is one line of an exam results export.
type ResultRow struct {
	AttemptID     int        `json:"attempt_id"`
	UserName      string     `json:"user_name"`
	UserEmail     string     `json:"user_email"`
	AttemptNumber int        `json:"attempt_number"`
	Score         int        `json:"score"`
	Total         int        `json:"total"`
	Percentage    float64    `json:"percentage"`
	Passed        bool       `json:"passed"`
	AutoSubmitted bool       `json:"auto_submitted"`
	SubmittedAt   *time.Time `json:"submitted_at,omitempty"`
}

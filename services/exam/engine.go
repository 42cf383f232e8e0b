package exam

import (
	"context"
	"fmt"
	"sync"
	"time"

	"triaright-platform/clock"
	"triaright-platform/errors"
	"triaright-platform/logger"
	"triaright-platform/models"
)

// State is the attempt lifecycle position.
type State string

const (
	StateLoading    State = "loading"
	StateInProgress State = "in_progress"
	StateSubmitting State = "submitting"
	StateSubmitted  State = "submitted"
)

// SubmitReason records what triggered a submission.
type SubmitReason string

const (
	ReasonManual  SubmitReason = "manual"
	ReasonTimeout SubmitReason = "timeout"
)

// Submitter delivers answers and returns the authoritative verdict.
type Submitter interface {
	Submit(ctx context.Context, attemptID int, answers map[int]string, reason SubmitReason) (*models.AttemptResult, error)
}

// SubmitterFunc adapts a function to Submitter.
type SubmitterFunc func(ctx context.Context, attemptID int, answers map[int]string, reason SubmitReason) (*models.AttemptResult, error)

func (f SubmitterFunc) Submit(ctx context.Context, attemptID int, answers map[int]string, reason SubmitReason) (*models.AttemptResult, error) {
	return f(ctx, attemptID, answers, reason)
}

var (
	ErrNotStarted       = errors.E(errors.Invalid, "attempt has not started")
	ErrSubmitInFlight   = errors.E(errors.Conflict, "submission already in progress")
	ErrAlreadySubmitted = errors.E(errors.Conflict, "attempt already submitted")
	ErrTimeUp           = errors.E(errors.Invalid, "time is up; answers can no longer be changed")
)

const autoSubmitTimeout = 30 * time.Second

// Snapshot is a consistent read of the engine.
type Snapshot struct {
	AttemptID int                   `json:"attempt_id"`
	State     State                 `json:"state"`
	Remaining int                   `json:"remaining_seconds"`
	Current   int                   `json:"current_index"`
	Answers   map[int]string        `json:"answers"`
	Answered  int                   `json:"answered"`
	Total     int                   `json:"total"`
	Expired   bool                  `json:"expired"`
	Result    *models.AttemptResult `json:"result,omitempty"`
}

// Engine runs one exam attempt: countdown, answer map, navigation and a
// guarded submission. It never grades; the Submitter does.
type Engine struct {
	mu        sync.Mutex
	attemptID int
	questions []models.Question
	limit     time.Duration
	clock     clock.Clock
	submitter Submitter

	state     State
	remaining time.Duration
	current   int
	answers   map[int]string
	expired   bool
	result    *models.AttemptResult
	lastErr   error
	ticker    clock.Ticker

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewEngine prepares an attempt in the loading state.
func NewEngine(exam models.Exam, attemptID int, submitter Submitter, clk clock.Clock) *Engine {
	if clk == nil {
		clk = clock.Real()
	}
	return &Engine{
		attemptID: attemptID,
		questions: exam.Questions,
		limit:     exam.TimeLimit(),
		clock:     clk,
		submitter: submitter,
		state:     StateLoading,
		answers:   make(map[int]string),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start begins the countdown from the full time limit.
func (e *Engine) Start() error {
	return e.Resume(nil, e.limit)
}

// Resume begins the countdown from remaining with previously saved answers.
// A non-positive remaining submits right away.
func (e *Engine) Resume(answers map[int]string, remaining time.Duration) error {
	e.mu.Lock()
	if e.state != StateLoading {
		e.mu.Unlock()
		return errors.E(errors.Conflict, fmt.Sprintf("attempt is already %s", e.state))
	}
	for q, a := range answers {
		e.answers[q] = a
	}
	e.remaining = remaining.Truncate(time.Second)
	e.state = StateInProgress
	expired := e.remaining <= 0
	if expired {
		e.remaining = 0
		e.expired = true
		e.mu.Unlock()
		go e.autoSubmit()
		return nil
	}
	e.ticker = e.clock.NewTicker(time.Second)
	t := e.ticker
	e.mu.Unlock()

	go e.run(t)
	return nil
}

func (e *Engine) run(t clock.Ticker) {
	defer t.Stop()
	for {
		select {
		case <-e.stop:
			return
		case <-t.C():
			if e.tick() {
				e.autoSubmit()
				return
			}
		}
	}
}

// tick counts down one second and reports whether time just ran out.
func (e *Engine) tick() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateSubmitted || e.expired {
		return false
	}
	e.remaining -= time.Second
	if e.remaining > 0 {
		return false
	}
	e.remaining = 0
	e.expired = true
	return true
}

func (e *Engine) autoSubmit() {
	ctx, cancel := context.WithTimeout(context.Background(), autoSubmitTimeout)
	defer cancel()
	if _, err := e.submit(ctx, ReasonTimeout); err != nil {
		logger.Warn("[EXAM] auto-submit of attempt %d failed: %v", e.attemptID, err)
	}
}

// Submit is the manual submission. Every question must be answered unless
// the time has already run out.
func (e *Engine) Submit(ctx context.Context) (*models.AttemptResult, error) {
	return e.submit(ctx, ReasonManual)
}

func (e *Engine) submit(ctx context.Context, reason SubmitReason) (*models.AttemptResult, error) {
	e.mu.Lock()
	switch e.state {
	case StateLoading:
		e.mu.Unlock()
		return nil, ErrNotStarted
	case StateSubmitting:
		e.mu.Unlock()
		return nil, ErrSubmitInFlight
	case StateSubmitted:
		e.mu.Unlock()
		return nil, ErrAlreadySubmitted
	}
	if reason == ReasonManual && !e.expired {
		if missing := len(e.questions) - e.answeredLocked(); missing > 0 {
			e.mu.Unlock()
			return nil, errors.E(errors.Invalid, fmt.Sprintf("please answer all questions before submitting (%d unanswered)", missing))
		}
	}
	e.state = StateSubmitting
	answers := make(map[int]string, len(e.answers))
	for q, a := range e.answers {
		answers[q] = a
	}
	e.mu.Unlock()

	res, err := e.submitter.Submit(ctx, e.attemptID, answers, reason)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.state = StateInProgress
		e.lastErr = err
		return nil, err
	}
	e.state = StateSubmitted
	e.result = res
	e.lastErr = nil
	e.haltLocked()
	close(e.done)
	return res, nil
}

func (e *Engine) answeredLocked() int {
	n := 0
	for _, q := range e.questions {
		if _, ok := e.answers[q.ID]; ok {
			n++
		}
	}
	return n
}

// SelectAnswer records option for questionID.
func (e *Engine) SelectAnswer(questionID int, option string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch {
	case e.state == StateLoading:
		return ErrNotStarted
	case e.state == StateSubmitting:
		return ErrSubmitInFlight
	case e.state == StateSubmitted:
		return ErrAlreadySubmitted
	case e.expired:
		return ErrTimeUp
	}
	for _, q := range e.questions {
		if q.ID != questionID {
			continue
		}
		if !q.HasOption(option) {
			return errors.E(errors.Invalid, fmt.Sprintf("%q is not an option of question %d", option, questionID))
		}
		e.answers[questionID] = option
		return nil
	}
	return errors.E(errors.NotFound, fmt.Sprintf("question %d is not part of this exam", questionID))
}

// Next moves to the following question.
func (e *Engine) Next() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gotoLocked(e.current + 1)
}

// Prev moves to the previous question.
func (e *Engine) Prev() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gotoLocked(e.current - 1)
}

// Goto jumps to index, clamped to the question range. Navigation never
// validates answers.
func (e *Engine) Goto(index int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gotoLocked(index)
}

func (e *Engine) gotoLocked(index int) int {
	if index >= len(e.questions) {
		index = len(e.questions) - 1
	}
	if index < 0 {
		index = 0
	}
	e.current = index
	return e.current
}

// CurrentQuestion returns the question under the cursor without its answer.
func (e *Engine) CurrentQuestion() (models.Question, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.questions) == 0 {
		return models.Question{}, false
	}
	q := e.questions[e.current]
	q.CorrectAnswer = ""
	return q, true
}

// Snapshot returns the current state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	answers := make(map[int]string, len(e.answers))
	for q, a := range e.answers {
		answers[q] = a
	}
	return Snapshot{
		AttemptID: e.attemptID,
		State:     e.state,
		Remaining: int(e.remaining / time.Second),
		Current:   e.current,
		Answers:   answers,
		Answered:  e.answeredLocked(),
		Total:     len(e.questions),
		Expired:   e.expired,
		Result:    e.result,
	}
}

// LastError is the error of the most recent failed submission.
func (e *Engine) LastError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// Done is closed once the attempt is submitted.
func (e *Engine) Done() <-chan struct{} { return e.done }

// Stop halts the countdown without submitting.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.haltLocked()
}

func (e *Engine) haltLocked() {
	if e.ticker != nil {
		e.ticker.Stop()
	}
	e.stopOnce.Do(func() { close(e.stop) })
}

package client

import (
	"context"
	"sort"
	"time"

	"triaright-platform/clock"
	"triaright-platform/errors"
	"triaright-platform/models"
	"triaright-platform/services/exam"
)

// RemoteSubmitter lets a local exam.Engine submit through the API. Answers
// are pushed before the submit call, so the server grades exactly what the
// engine holds.
type RemoteSubmitter struct {
	Client  *Client
	Session *Session
}

func (r RemoteSubmitter) Submit(ctx context.Context, attemptID int, answers map[int]string, reason exam.SubmitReason) (*models.AttemptResult, error) {
	ids := make([]int, 0, len(answers))
	for id := range answers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		if _, err := r.Client.SaveAnswer(ctx, r.Session, attemptID, id, answers[id]); err != nil {
			// The server's own timer may have closed the attempt first.
			if KindOf(err) == errors.Conflict {
				return r.settled(ctx, attemptID)
			}
			return nil, err
		}
	}
	res, err := r.Client.SubmitAttempt(ctx, r.Session, attemptID)
	if KindOf(err) == errors.Conflict {
		return r.settled(ctx, attemptID)
	}
	return res, err
}

// settled reads the result of an attempt the server already graded.
func (r RemoteSubmitter) settled(ctx context.Context, attemptID int) (*models.AttemptResult, error) {
	v, err := r.Client.GetAttempt(ctx, r.Session, attemptID)
	if err != nil {
		return nil, err
	}
	if v.Status != models.AttemptSubmitted {
		return nil, errors.E(errors.Conflict, "attempt is not submitted")
	}
	return &models.AttemptResult{
		AttemptID:     v.ID,
		Score:         v.Score,
		Percentage:    v.Percentage,
		Passed:        v.Passed,
		AutoSubmitted: v.AutoSubmitted,
	}, nil
}

// StartEngine starts (or resumes) an attempt on the server and runs a local
// engine for it, picking up saved answers and the remaining time.
func (c *Client) StartEngine(ctx context.Context, s *Session, examID int, clk clock.Clock) (*exam.Engine, error) {
	view, err := c.GetExam(ctx, s, examID)
	if err != nil {
		return nil, err
	}
	attempt, err := c.StartAttempt(ctx, s, examID)
	if err != nil {
		return nil, err
	}
	e := exam.NewEngine(view.Exam, attempt.ID, RemoteSubmitter{Client: c, Session: s}, clk)
	if err := e.Resume(attempt.Answers, time.Duration(attempt.Remaining)*time.Second); err != nil {
		return nil, err
	}
	return e, nil
}

package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"

	"triaright-platform/errors"
	"triaright-platform/models"
)

func (s *Store) CreateExam(ctx context.Context, e *models.Exam) error {
	questions, err := json.Marshal(e.Questions)
	if err != nil {
		return errors.E(errors.Invalid, "invalid questions", err)
	}
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO exams (course_id, title, questions, time_limit_minutes, passing_score, max_attempts)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		e.CourseID, e.Title, questions, e.TimeLimitMinutes, e.PassingScore, e.MaxAttempts,
	).Scan(&e.ID, &e.CreatedAt)
	return mapErr(err, "exam")
}

func (s *Store) GetExam(ctx context.Context, id int) (*models.Exam, error) {
	var e models.Exam
	var questions []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT id, course_id, title, questions, time_limit_minutes, passing_score, max_attempts, created_at
		 FROM exams WHERE id = $1`, id,
	).Scan(&e.ID, &e.CourseID, &e.Title, &questions, &e.TimeLimitMinutes, &e.PassingScore, &e.MaxAttempts, &e.CreatedAt)
	if err != nil {
		return nil, mapErr(err, "exam")
	}
	if err := json.Unmarshal(questions, &e.Questions); err != nil {
		return nil, errors.E(errors.Internal, fmt.Sprintf("exam %d has malformed questions", id), err)
	}
	return &e, nil
}

func (s *Store) UpdateQuestions(ctx context.Context, examID int, questions []models.Question) error {
	b, err := json.Marshal(questions)
	if err != nil {
		return errors.E(errors.Invalid, "invalid questions", err)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE exams SET questions = $1 WHERE id = $2`, b, examID)
	if err != nil {
		return mapErr(err, "exam")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.E(errors.NotFound, "exam not found")
	}
	return nil
}

func (s *Store) CountAttempts(ctx context.Context, examID, userID int) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM exam_attempts WHERE exam_id = $1 AND user_id = $2`, examID, userID).Scan(&n)
	return n, mapErr(err, "attempt")
}

func (s *Store) BestPercentage(ctx context.Context, examID, userID int) (*float64, error) {
	var best sql.NullFloat64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(percentage) FROM exam_attempts WHERE exam_id = $1 AND user_id = $2 AND status = $3`,
		examID, userID, models.AttemptSubmitted).Scan(&best)
	if err != nil {
		return nil, mapErr(err, "attempt")
	}
	if !best.Valid {
		return nil, nil
	}
	return &best.Float64, nil
}

const attemptColumns = `id, exam_id, user_id, attempt_number, answers, score, percentage, passed,
	status, auto_submitted, started_at, deadline, submitted_at`

func scanAttempt(row scanner) (*models.Attempt, error) {
	var a models.Attempt
	var answers []byte
	err := row.Scan(&a.ID, &a.ExamID, &a.UserID, &a.AttemptNumber, &answers, &a.Score, &a.Percentage, &a.Passed,
		&a.Status, &a.AutoSubmitted, &a.StartedAt, &a.Deadline, &a.SubmittedAt)
	if err != nil {
		return nil, mapErr(err, "attempt")
	}
	if a.Answers, err = decodeAnswers(answers); err != nil {
		return nil, errors.E(errors.Internal, fmt.Sprintf("attempt %d has malformed answers", a.ID), err)
	}
	return &a, nil
}

// Answers are stored as a JSON object keyed by question id.
func encodeAnswers(answers map[int]string) ([]byte, error) {
	m := make(map[string]string, len(answers))
	for k, v := range answers {
		m[strconv.Itoa(k)] = v
	}
	return json.Marshal(m)
}

func decodeAnswers(b []byte) (map[int]string, error) {
	answers := map[int]string{}
	if len(b) == 0 {
		return answers, nil
	}
	if err := json.Unmarshal(b, &answers); err != nil {
		return nil, err
	}
	return answers, nil
}

func (s *Store) GetInProgressAttempt(ctx context.Context, examID, userID int) (*models.Attempt, error) {
	return scanAttempt(s.db.QueryRowContext(ctx,
		`SELECT `+attemptColumns+` FROM exam_attempts
		 WHERE exam_id = $1 AND user_id = $2 AND status = $3
		 ORDER BY attempt_number DESC LIMIT 1`,
		examID, userID, models.AttemptInProgress))
}

func (s *Store) ListInProgressAttempts(ctx context.Context) ([]models.Attempt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+attemptColumns+` FROM exam_attempts WHERE status = $1 ORDER BY deadline`, models.AttemptInProgress)
	if err != nil {
		return nil, mapErr(err, "attempt")
	}
	defer rows.Close()
	var out []models.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, mapErr(rows.Err(), "attempt")
}

func (s *Store) CreateAttempt(ctx context.Context, a *models.Attempt) error {
	answers, err := encodeAnswers(a.Answers)
	if err != nil {
		return errors.E(errors.Invalid, "invalid answers", err)
	}
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO exam_attempts (exam_id, user_id, attempt_number, answers, status, started_at, deadline)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		a.ExamID, a.UserID, a.AttemptNumber, answers, a.Status, a.StartedAt, a.Deadline,
	).Scan(&a.ID)
	return mapErr(err, "attempt")
}

func (s *Store) GetAttempt(ctx context.Context, id int) (*models.Attempt, error) {
	return scanAttempt(s.db.QueryRowContext(ctx, `SELECT `+attemptColumns+` FROM exam_attempts WHERE id = $1`, id))
}

func (s *Store) SaveAnswers(ctx context.Context, attemptID int, answers map[int]string) error {
	b, err := encodeAnswers(answers)
	if err != nil {
		return errors.E(errors.Invalid, "invalid answers", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE exam_attempts SET answers = $1 WHERE id = $2 AND status = $3`, b, attemptID, models.AttemptInProgress)
	if err != nil {
		return mapErr(err, "attempt")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.E(errors.Conflict, "attempt is no longer in progress")
	}
	return nil
}

func (s *Store) CompleteAttempt(ctx context.Context, a *models.Attempt) error {
	answers, err := encodeAnswers(a.Answers)
	if err != nil {
		return errors.E(errors.Invalid, "invalid answers", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE exam_attempts
		 SET answers = $1, score = $2, percentage = $3, passed = $4, status = $5, auto_submitted = $6, submitted_at = $7
		 WHERE id = $8 AND status = $9`,
		answers, a.Score, a.Percentage, a.Passed, models.AttemptSubmitted, a.AutoSubmitted, a.SubmittedAt,
		a.ID, models.AttemptInProgress)
	if err != nil {
		return mapErr(err, "attempt")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.E(errors.Conflict, "attempt already submitted")
	}
	return nil
}

func (s *Store) ListResults(ctx context.Context, examID int) ([]models.ResultRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT a.id, u.name, u.email, a.attempt_number, a.score, jsonb_array_length(e.questions),
		        a.percentage, a.passed, a.auto_submitted, a.submitted_at
		 FROM exam_attempts a
		 JOIN users u ON u.id = a.user_id
		 JOIN exams e ON e.id = a.exam_id
		 WHERE a.exam_id = $1 AND a.status = $2
		 ORDER BY u.name, a.attempt_number`, examID, models.AttemptSubmitted)
	if err != nil {
		return nil, mapErr(err, "result")
	}
	defer rows.Close()
	out := []models.ResultRow{}
	for rows.Next() {
		var r models.ResultRow
		if err := rows.Scan(&r.AttemptID, &r.UserName, &r.UserEmail, &r.AttemptNumber, &r.Score, &r.Total,
			&r.Percentage, &r.Passed, &r.AutoSubmitted, &r.SubmittedAt); err != nil {
			return nil, mapErr(err, "result")
		}
		out = append(out, r)
	}
	return out, mapErr(rows.Err(), "result")
}

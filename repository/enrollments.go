package repository

import (
	"context"
	"time"

	"triaright-platform/models"
)

const enrollmentColumns = `id, user_id, course_id, pack_id, status, COALESCE(payment_order_id, ''),
	certificate_issued, completed_at, expires_at, created_at`

func scanEnrollment(row scanner) (*models.Enrollment, error) {
	var e models.Enrollment
	err := row.Scan(&e.ID, &e.UserID, &e.CourseID, &e.PackID, &e.Status, &e.PaymentOrderID,
		&e.CertificateIssued, &e.CompletedAt, &e.ExpiresAt, &e.CreatedAt)
	if err != nil {
		return nil, mapErr(err, "enrollment")
	}
	return &e, nil
}

func (s *Store) CreateEnrollment(ctx context.Context, e *models.Enrollment) error {
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO enrollments (user_id, course_id, pack_id, status, payment_order_id, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		e.UserID, e.CourseID, e.PackID, e.Status, nullString(e.PaymentOrderID), e.ExpiresAt,
	).Scan(&e.ID, &e.CreatedAt)
	return mapErr(err, "enrollment")
}

// GetEnrollment loads the enrollment with its per-subtopic progress.
func (s *Store) GetEnrollment(ctx context.Context, id int) (*models.Enrollment, error) {
	e, err := scanEnrollment(s.db.QueryRowContext(ctx, `SELECT `+enrollmentColumns+` FROM enrollments WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT topic_index, subtopic_index, watched_seconds, completed, completed_at
		 FROM subtopic_progress WHERE enrollment_id = $1
		 ORDER BY topic_index, subtopic_index`, id)
	if err != nil {
		return nil, mapErr(err, "progress")
	}
	defer rows.Close()
	e.Progress = []models.SubtopicProgress{}
	for rows.Next() {
		var p models.SubtopicProgress
		if err := rows.Scan(&p.TopicIndex, &p.SubtopicIndex, &p.WatchedSeconds, &p.Completed, &p.CompletedAt); err != nil {
			return nil, mapErr(err, "progress")
		}
		e.Progress = append(e.Progress, p)
	}
	return e, mapErr(rows.Err(), "progress")
}

func (s *Store) ListEnrollments(ctx context.Context, userID int) ([]models.Enrollment, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+enrollmentColumns+` FROM enrollments WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, mapErr(err, "enrollment")
	}
	defer rows.Close()
	out := []models.Enrollment{}
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, mapErr(rows.Err(), "enrollment")
}

// IsEnrolled counts only enrollments that have not expired.
func (s *Store) IsEnrolled(ctx context.Context, userID, courseID int) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM enrollments
		  WHERE user_id = $1 AND course_id = $2 AND (expires_at IS NULL OR expires_at > CURRENT_TIMESTAMP))`,
		userID, courseID).Scan(&exists)
	return exists, mapErr(err, "enrollment")
}

// RecordWatch keeps the furthest position seen for a subtopic.
func (s *Store) RecordWatch(ctx context.Context, enrollmentID, topic, subtopic, seconds int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subtopic_progress (enrollment_id, topic_index, subtopic_index, watched_seconds)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (enrollment_id, topic_index, subtopic_index)
		 DO UPDATE SET watched_seconds = GREATEST(subtopic_progress.watched_seconds, EXCLUDED.watched_seconds)`,
		enrollmentID, topic, subtopic, seconds)
	return mapErr(err, "progress")
}

func (s *Store) MarkSubtopicComplete(ctx context.Context, enrollmentID, topic, subtopic int, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO subtopic_progress (enrollment_id, topic_index, subtopic_index, completed, completed_at)
		 VALUES ($1, $2, $3, TRUE, $4)
		 ON CONFLICT (enrollment_id, topic_index, subtopic_index)
		 DO UPDATE SET completed = TRUE, completed_at = EXCLUDED.completed_at
		 WHERE subtopic_progress.completed = FALSE`,
		enrollmentID, topic, subtopic, at)
	if err != nil {
		return false, mapErr(err, "progress")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, mapErr(err, "progress")
	}
	return n > 0, nil
}

func (s *Store) CountCompletedSubtopics(ctx context.Context, enrollmentID int) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM subtopic_progress WHERE enrollment_id = $1 AND completed = TRUE`, enrollmentID).Scan(&n)
	return n, mapErr(err, "progress")
}

func (s *Store) CompleteEnrollment(ctx context.Context, enrollmentID int, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE enrollments SET status = $1, completed_at = $2 WHERE id = $3 AND status = $4`,
		models.EnrollmentCompleted, at, enrollmentID, models.EnrollmentActive)
	if err != nil {
		return false, mapErr(err, "enrollment")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, mapErr(err, "enrollment")
	}
	return n > 0, nil
}

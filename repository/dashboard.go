package repository

import (
	"context"

	"triaright-platform/models"
)

func (s *Store) StudentStats(ctx context.Context, userID int) (*models.StudentDashboard, error) {
	var d models.StudentDashboard
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM enrollments WHERE user_id = $1),
			(SELECT COUNT(*) FROM enrollments WHERE user_id = $1 AND status = $2),
			(SELECT COUNT(*) FROM certificates WHERE user_id = $1),
			(SELECT COUNT(*) FROM exam_attempts WHERE user_id = $1 AND status = $3),
			(SELECT COUNT(*) FROM exam_attempts WHERE user_id = $1 AND status = $3 AND passed),
			(SELECT COUNT(*) FROM applications WHERE student_id = $1)`,
		userID, models.EnrollmentCompleted, models.AttemptSubmitted,
	).Scan(&d.Enrollments, &d.CompletedCourses, &d.Certificates, &d.AttemptsTaken, &d.AttemptsPassed, &d.Applications)
	if err != nil {
		return nil, mapErr(err, "dashboard")
	}
	return &d, nil
}

func (s *Store) EmployerStats(ctx context.Context, employerID int) (*models.EmployerDashboard, error) {
	var d models.EmployerDashboard
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM internships WHERE employer_id = $1),
			COUNT(a.id),
			COUNT(a.id) FILTER (WHERE a.status = $2),
			COUNT(a.id) FILTER (WHERE a.status = $3)
		FROM applications a
		JOIN internships i ON i.id = a.internship_id
		WHERE i.employer_id = $1`,
		employerID, models.ApplicationApplied, models.ApplicationAccepted,
	).Scan(&d.Internships, &d.Applications, &d.PendingApplications, &d.Accepted)
	if err != nil {
		return nil, mapErr(err, "dashboard")
	}
	return &d, nil
}

// PlatformStats always includes revenue; callers hide it from non-admins.
func (s *Store) PlatformStats(ctx context.Context) (*models.PlatformDashboard, error) {
	var d models.PlatformDashboard
	var revenue float64
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users WHERE role = $1),
			(SELECT COUNT(*) FROM courses WHERE is_active),
			(SELECT COUNT(*) FROM enrollments),
			(SELECT COUNT(*) FROM enrollments WHERE status = $2),
			(SELECT COALESCE(SUM(amount), 0) FROM payments WHERE status = $3)`,
		models.RoleStudent, models.EnrollmentCompleted, models.PaymentPaid,
	).Scan(&d.Students, &d.Courses, &d.Enrollments, &d.Completions, &revenue)
	if err != nil {
		return nil, mapErr(err, "dashboard")
	}
	d.Revenue = &revenue
	return &d, nil
}

package repository

import (
	"context"

	"triaright-platform/errors"
	"triaright-platform/models"
)

const internshipColumns = `id, employer_id, title, COALESCE(description, ''), COALESCE(location, ''), stipend, open_until, created_at`

func scanInternship(row scanner) (*models.Internship, error) {
	var in models.Internship
	if err := row.Scan(&in.ID, &in.EmployerID, &in.Title, &in.Description, &in.Location, &in.Stipend, &in.OpenUntil, &in.CreatedAt); err != nil {
		return nil, mapErr(err, "internship")
	}
	return &in, nil
}

func (s *Store) CreateInternship(ctx context.Context, in *models.Internship) error {
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO internships (employer_id, title, description, location, stipend, open_until)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		in.EmployerID, in.Title, in.Description, in.Location, in.Stipend, in.OpenUntil,
	).Scan(&in.ID, &in.CreatedAt)
	return mapErr(err, "internship")
}

func (s *Store) GetInternship(ctx context.Context, id int) (*models.Internship, error) {
	return scanInternship(s.db.QueryRowContext(ctx, `SELECT `+internshipColumns+` FROM internships WHERE id = $1`, id))
}

func (s *Store) ListInternships(ctx context.Context) ([]models.Internship, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+internshipColumns+` FROM internships ORDER BY created_at DESC`)
	if err != nil {
		return nil, mapErr(err, "internship")
	}
	defer rows.Close()
	out := []models.Internship{}
	for rows.Next() {
		in, err := scanInternship(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *in)
	}
	return out, mapErr(rows.Err(), "internship")
}

func (s *Store) CreateApplication(ctx context.Context, a *models.Application) error {
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO applications (internship_id, student_id, cover_letter, resume_url, status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at, updated_at`,
		a.InternshipID, a.StudentID, a.CoverLetter, a.ResumeURL, a.Status,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	return mapErr(err, "application")
}

const applicationColumns = `a.id, a.internship_id, a.student_id, u.name, u.email, COALESCE(a.cover_letter, ''),
	COALESCE(a.resume_url, ''), a.status, COALESCE(a.interview_link, ''), a.created_at, a.updated_at`

func scanApplication(row scanner) (*models.Application, error) {
	var a models.Application
	err := row.Scan(&a.ID, &a.InternshipID, &a.StudentID, &a.StudentName, &a.StudentEmail, &a.CoverLetter,
		&a.ResumeURL, &a.Status, &a.InterviewLink, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, mapErr(err, "application")
	}
	return &a, nil
}

func (s *Store) GetApplication(ctx context.Context, id int) (*models.Application, error) {
	return scanApplication(s.db.QueryRowContext(ctx,
		`SELECT `+applicationColumns+` FROM applications a JOIN users u ON u.id = a.student_id WHERE a.id = $1`, id))
}

func (s *Store) ListApplications(ctx context.Context, internshipID int) ([]models.Application, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+applicationColumns+` FROM applications a JOIN users u ON u.id = a.student_id
		 WHERE a.internship_id = $1 ORDER BY a.created_at`, internshipID)
	if err != nil {
		return nil, mapErr(err, "application")
	}
	defer rows.Close()
	out := []models.Application{}
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, mapErr(rows.Err(), "application")
}

func (s *Store) ReviewApplication(ctx context.Context, id int, status, interviewLink string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE applications SET status = $1, interview_link = $2, updated_at = CURRENT_TIMESTAMP
		 WHERE id = $3 AND status = $4`,
		status, nullString(interviewLink), id, models.ApplicationApplied)
	if err != nil {
		return mapErr(err, "application")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.E(errors.Conflict, "application already reviewed")
	}
	return nil
}

package repository

import (
	"context"
	"database/sql"

	"triaright-platform/errors"
	"triaright-platform/models"
)

const certificateColumns = `id, certificate_number, user_id, course_id, enrollment_id, file_path, issued_at`

func scanCertificate(row scanner) (*models.Certificate, error) {
	var c models.Certificate
	if err := row.Scan(&c.ID, &c.Number, &c.UserID, &c.CourseID, &c.EnrollmentID, &c.FilePath, &c.IssuedAt); err != nil {
		return nil, mapErr(err, "certificate")
	}
	return &c, nil
}

func (s *Store) GetCertificateByEnrollment(ctx context.Context, enrollmentID int) (*models.Certificate, error) {
	return scanCertificate(s.db.QueryRowContext(ctx,
		`SELECT `+certificateColumns+` FROM certificates WHERE enrollment_id = $1`, enrollmentID))
}

func (s *Store) GetCertificateByNumber(ctx context.Context, number string) (*models.Certificate, error) {
	return scanCertificate(s.db.QueryRowContext(ctx,
		`SELECT `+certificateColumns+` FROM certificates WHERE certificate_number = $1`, number))
}

func (s *Store) CreateCertificate(ctx context.Context, c *models.Certificate) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`INSERT INTO certificates (certificate_number, user_id, course_id, enrollment_id, file_path, issued_at)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING id`,
			c.Number, c.UserID, c.CourseID, c.EnrollmentID, c.FilePath, c.IssuedAt,
		).Scan(&c.ID)
		if err != nil {
			return mapErr(err, "certificate")
		}
		res, err := tx.ExecContext(ctx, `UPDATE enrollments SET certificate_issued = TRUE WHERE id = $1`, c.EnrollmentID)
		if err != nil {
			return mapErr(err, "enrollment")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return errors.E(errors.NotFound, "enrollment not found")
		}
		return nil
	})
}

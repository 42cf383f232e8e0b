package models

import "time"

type Certificate struct {
	ID           int       `json:"id"`
	Number       string    `json:"certificate_number"`
	UserID       int       `json:"user_id"`
	CourseID     int       `json:"course_id"`
	EnrollmentID int       `json:"enrollment_id"`
	FilePath     string    `json:"-"`
	IssuedAt     time.Time `json:"issued_at"`
}

package models

import "time"

// Application statuses
const (
	ApplicationApplied  = "APPLIED"
	ApplicationAccepted = "ACCEPTED"
	ApplicationRejected = "REJECTED"
)

type Internship struct {
	ID          int        `json:"id"`
	EmployerID  int        `json:"employer_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Location    string     `json:"location"`
	Stipend     float64    `json:"stipend"`
	OpenUntil   *time.Time `json:"open_until,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// IsOpen reports whether applications are still accepted at now.
func (i *Internship) IsOpen(now time.Time) bool {
	return i.OpenUntil == nil || now.Before(*i.OpenUntil)
}

type Application struct {
	ID            int       `json:"id"`
	InternshipID  int       `json:"internship_id"`
	StudentID     int       `json:"student_id"`
	StudentName   string    `json:"student_name,omitempty"`
	StudentEmail  string    `json:"student_email,omitempty"`
	CoverLetter   string    `json:"cover_letter"`
	ResumeURL     string    `json:"resume_url"`
	Status        string    `json:"status"`
	InterviewLink string    `json:"interview_link,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

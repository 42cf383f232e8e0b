package models

import "time"

// Enrollment statuses
const (
	EnrollmentActive    = "active"
	EnrollmentCompleted = "completed"
)

// Enrollment links a user to a course, optionally through a Pack365 purchase.
type Enrollment struct {
	ID                int                `json:"id"`
	UserID            int                `json:"user_id"`
	CourseID          int                `json:"course_id"`
	PackID            *int               `json:"pack_id,omitempty"`
	Status            string             `json:"status"`
	PaymentOrderID    string             `json:"payment_order_id,omitempty"`
	CertificateIssued bool               `json:"certificate_issued"`
	Progress          []SubtopicProgress `json:"progress,omitempty"`
	CompletedAt       *time.Time         `json:"completed_at,omitempty"`
	ExpiresAt         *time.Time         `json:"expires_at,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
}

// SubtopicProgress is the watched state of one subtopic within an enrollment.
type SubtopicProgress struct {
	TopicIndex     int        `json:"topic_index"`
	SubtopicIndex  int        `json:"subtopic_index"`
	WatchedSeconds int        `json:"watched_seconds"`
	Completed      bool       `json:"completed"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// CourseProgress summarizes completion of an enrollment.
type CourseProgress struct {
	EnrollmentID      int     `json:"enrollment_id"`
	CourseID          int     `json:"course_id"`
	CompletedSubtopic int     `json:"completed_subtopics"`
	TotalSubtopics    int     `json:"total_subtopics"`
	CompletionPct     float64 `json:"completion_pct"`
	IsCompleted       bool    `json:"is_completed"`
}

// ProgressUpdate is returned for every reported player position.
type ProgressUpdate struct {
	TopicIndex    int            `json:"topic_index"`
	SubtopicIndex int            `json:"subtopic_index"`
	Percent       float64        `json:"percent"`
	Completed     bool           `json:"completed"`
	JustCompleted bool           `json:"just_completed"`
	Course        CourseProgress `json:"course"`
}

package models

import "time"

// Course types
const (
	CourseTypePaid   = "paid"
	CourseTypeUnpaid = "unpaid"
)

// Subtopic is the smallest trackable unit of a curriculum (usually one video).
type Subtopic struct {
	Title           string `json:"title"`
	DurationSeconds int    `json:"duration_seconds"`
}

// Topic groups subtopics.
type Topic struct {
	Title     string     `json:"title"`
	Subtopics []Subtopic `json:"subtopics"`
}

// Course represents a course in the catalog
type Course struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Stream      string    `json:"stream"`
	Instructor  string    `json:"instructor"`
	Type        string    `json:"type"`
	Price       float64   `json:"price"`
	Curriculum  []Topic   `json:"curriculum"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsPaid reports whether enrolling requires a payment.
func (c *Course) IsPaid() bool {
	return c.Type == CourseTypePaid && c.Price > 0
}

// SubtopicCount returns the number of trackable units.
func (c *Course) SubtopicCount() int {
	n := 0
	for _, t := range c.Curriculum {
		n += len(t.Subtopics)
	}
	return n
}

// Subtopic returns the subtopic at the given indices.
func (c *Course) Subtopic(topic, subtopic int) (Subtopic, bool) {
	if topic < 0 || topic >= len(c.Curriculum) {
		return Subtopic{}, false
	}
	subs := c.Curriculum[topic].Subtopics
	if subtopic < 0 || subtopic >= len(subs) {
		return Subtopic{}, false
	}
	return subs[subtopic], true
}

// TotalDurationSeconds sums every subtopic's duration.
func (c *Course) TotalDurationSeconds() int {
	total := 0
	for _, t := range c.Curriculum {
		for _, s := range t.Subtopics {
			total += s.DurationSeconds
		}
	}
	return total
}

// CourseFilter narrows catalog listings.
type CourseFilter struct {
	Stream string
	Type   string
}

// Pack365 is a yearly bundle covering every active course of a stream.
type Pack365 struct {
	ID           int       `json:"id"`
	Stream       string    `json:"stream"`
	Name         string    `json:"name"`
	Price        float64   `json:"price"`
	ValidityDays int       `json:"validity_days"`
	CreatedAt    time.Time `json:"created_at"`
}

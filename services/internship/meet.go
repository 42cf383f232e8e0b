package internship

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Interview is a scheduled call for an accepted application.
type Interview struct {
	Link  string
	Start time.Time
	End   time.Time
}

// Scheduler books interviews.
type Scheduler interface {
	Schedule(applicationID int, at time.Time) (Interview, error)
}

// MeetLinks generates Google Meet style links one hour after acceptance,
// without calling the Calendar API.
type MeetLinks struct {
	BaseURL string
}

func (m MeetLinks) Schedule(applicationID int, at time.Time) (Interview, error) {
	base := m.BaseURL
	if base == "" {
		base = "https://meet.google.com"
	}
	code := strings.ReplaceAll(uuid.NewString(), "-", "")
	link := fmt.Sprintf("%s/%s-%s-%s", strings.TrimRight(base, "/"), code[0:3], code[3:7], code[7:10])
	start := at.Add(time.Hour)
	return Interview{Link: link, Start: start, End: start.Add(time.Hour)}, nil
}

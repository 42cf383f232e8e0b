package progress

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"triaright-platform/clock"
	"triaright-platform/errors"
	"triaright-platform/logger"
	"triaright-platform/models"
	"triaright-platform/services/kafka"
	"triaright-platform/services/notify"
)

// Store persists enrollment progress.
type Store interface {
	GetEnrollment(ctx context.Context, id int) (*models.Enrollment, error)
	GetCourse(ctx context.Context, id int) (*models.Course, error)
	RecordWatch(ctx context.Context, enrollmentID, topic, subtopic, seconds int) error
	// MarkSubtopicComplete is idempotent and reports whether the row changed.
	MarkSubtopicComplete(ctx context.Context, enrollmentID, topic, subtopic int, at time.Time) (bool, error)
	CountCompletedSubtopics(ctx context.Context, enrollmentID int) (int, error)
	// CompleteEnrollment only moves active enrollments and reports whether it did.
	CompleteEnrollment(ctx context.Context, enrollmentID int, at time.Time) (bool, error)
}

// UserLookup resolves completion email recipients.
type UserLookup interface {
	GetUserByID(ctx context.Context, id int) (*models.User, error)
}

type trackerKey struct {
	enrollment, topic, subtopic int
}

// trackerIdleTTL is how long an untouched tracker is kept. Evicted trackers
// are rebuilt from the stored watched seconds.
const trackerIdleTTL = 30 * time.Minute

type trackerEntry struct {
	tracker  *Tracker
	lastSeen time.Time
}

// Service turns player reports into stored progress.
type Service struct {
	store     Store
	users     UserLookup
	events    kafka.Publisher
	mail      notify.Sender
	clock     clock.Clock
	threshold float64

	mu        sync.Mutex
	trackers  map[trackerKey]*trackerEntry
	lastSweep time.Time
}

func NewService(store Store, users UserLookup, events kafka.Publisher, mail notify.Sender, clk clock.Clock, threshold float64) *Service {
	if clk == nil {
		clk = clock.Real()
	}
	return &Service{
		store:     store,
		users:     users,
		events:    events,
		mail:      mail,
		clock:     clk,
		threshold: ClampThreshold(threshold),
		trackers:  make(map[trackerKey]*trackerEntry),
	}
}

// load returns an enrollment owned by userID that can still record progress.
func (s *Service) load(ctx context.Context, userID, enrollmentID int) (*models.Enrollment, *models.Course, error) {
	enr, err := s.store.GetEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, nil, err
	}
	if enr.UserID != userID {
		return nil, nil, errors.E(errors.Forbidden, "enrollment belongs to another user")
	}
	if enr.ExpiresAt != nil && !s.clock.Now().Before(*enr.ExpiresAt) {
		return nil, nil, errors.E(errors.Forbidden, "enrollment has expired")
	}
	course, err := s.store.GetCourse(ctx, enr.CourseID)
	if err != nil {
		return nil, nil, err
	}
	return enr, course, nil
}

func subtopicDone(enr *models.Enrollment, topic, subtopic int) bool {
	for _, p := range enr.Progress {
		if p.TopicIndex == topic && p.SubtopicIndex == subtopic {
			return p.Completed
		}
	}
	return false
}

func watchedSeconds(enr *models.Enrollment, topic, subtopic int) int {
	for _, p := range enr.Progress {
		if p.TopicIndex == topic && p.SubtopicIndex == subtopic {
			return p.WatchedSeconds
		}
	}
	return 0
}

// Report records the player position (seconds) for a subtopic.
func (s *Service) Report(ctx context.Context, userID, enrollmentID, topic, subtopic int, position float64) (*models.ProgressUpdate, error) {
	enr, course, err := s.load(ctx, userID, enrollmentID)
	if err != nil {
		return nil, err
	}
	sub, ok := course.Subtopic(topic, subtopic)
	if !ok {
		return nil, errors.E(errors.NotFound, fmt.Sprintf("subtopic %d.%d does not exist", topic, subtopic))
	}
	if position < 0 || math.IsNaN(position) {
		return nil, errors.E(errors.Invalid, "position must be a non-negative number of seconds")
	}

	watched := int(math.Min(position, float64(sub.DurationSeconds)))
	if err := s.store.RecordWatch(ctx, enr.ID, topic, subtopic, watched); err != nil {
		return nil, err
	}

	update := &models.ProgressUpdate{TopicIndex: topic, SubtopicIndex: subtopic}
	if subtopicDone(enr, topic, subtopic) {
		update.Percent = percentOf(position, float64(sub.DurationSeconds))
		update.Completed = true
	} else {
		key := trackerKey{enr.ID, topic, subtopic}
		t := s.tracker(key, sub.DurationSeconds, watchedSeconds(enr, topic, subtopic), func(ctx context.Context) error {
			return s.complete(ctx, enr, course, topic, subtopic)
		})
		pct, just, err := t.Observe(ctx, position)
		if err != nil {
			return nil, err
		}
		if t.Completed() {
			s.forget(key)
		}
		update.Percent = pct
		update.Completed = t.Completed()
		update.JustCompleted = just
	}

	summary, err := s.summary(ctx, enr.ID, course)
	if err != nil {
		return nil, err
	}
	update.Course = *summary
	return update, nil
}

// MarkComplete completes a subtopic explicitly, e.g. for non-video content.
func (s *Service) MarkComplete(ctx context.Context, userID, enrollmentID, topic, subtopic int) (*models.CourseProgress, error) {
	enr, course, err := s.load(ctx, userID, enrollmentID)
	if err != nil {
		return nil, err
	}
	if _, ok := course.Subtopic(topic, subtopic); !ok {
		return nil, errors.E(errors.NotFound, fmt.Sprintf("subtopic %d.%d does not exist", topic, subtopic))
	}
	if err := s.complete(ctx, enr, course, topic, subtopic); err != nil {
		return nil, err
	}
	s.forget(trackerKey{enr.ID, topic, subtopic})
	return s.summary(ctx, enr.ID, course)
}

// Summary returns completion for an enrollment.
func (s *Service) Summary(ctx context.Context, userID, enrollmentID int) (*models.CourseProgress, error) {
	enr, err := s.store.GetEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	if enr.UserID != userID {
		return nil, errors.E(errors.Forbidden, "enrollment belongs to another user")
	}
	course, err := s.store.GetCourse(ctx, enr.CourseID)
	if err != nil {
		return nil, err
	}
	return s.summary(ctx, enr.ID, course)
}

func (s *Service) summary(ctx context.Context, enrollmentID int, course *models.Course) (*models.CourseProgress, error) {
	done, err := s.store.CountCompletedSubtopics(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	total := course.SubtopicCount()
	p := &models.CourseProgress{
		EnrollmentID:      enrollmentID,
		CourseID:          course.ID,
		CompletedSubtopic: done,
		TotalSubtopics:    total,
	}
	if total > 0 {
		p.CompletionPct = math.Round(float64(done)/float64(total)*10000) / 100
		p.IsCompleted = done >= total
	}
	return p, nil
}

// tracker returns the live tracker for key, creating one seeded with the
// stored watch time. Idle trackers are swept at most once per TTL.
func (s *Service) tracker(key trackerKey, duration, watched int, onComplete func(context.Context) error) *Tracker {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if now.Sub(s.lastSweep) >= trackerIdleTTL {
		for k, e := range s.trackers {
			if now.Sub(e.lastSeen) >= trackerIdleTTL {
				delete(s.trackers, k)
			}
		}
		s.lastSweep = now
	}
	if e, ok := s.trackers[key]; ok {
		e.lastSeen = now
		return e.tracker
	}
	t := NewTracker(duration, s.threshold, onComplete)
	t.seed(float64(watched))
	s.trackers[key] = &trackerEntry{tracker: t, lastSeen: now}
	return t
}

func (s *Service) forget(key trackerKey) {
	s.mu.Lock()
	delete(s.trackers, key)
	s.mu.Unlock()
}

// complete marks the subtopic and, when it was the last one, the enrollment.
func (s *Service) complete(ctx context.Context, enr *models.Enrollment, course *models.Course, topic, subtopic int) error {
	now := s.clock.Now().UTC()
	changed, err := s.store.MarkSubtopicComplete(ctx, enr.ID, topic, subtopic, now)
	if err != nil {
		return err
	}
	if changed {
		logger.Info("[PROGRESS] enrollment %d completed subtopic %d.%d", enr.ID, topic, subtopic)
	}

	done, err := s.store.CountCompletedSubtopics(ctx, enr.ID)
	if err != nil {
		return err
	}
	total := course.SubtopicCount()
	if total == 0 || done < total {
		return nil
	}

	finished, err := s.store.CompleteEnrollment(ctx, enr.ID, now)
	if err != nil || !finished {
		return err
	}
	logger.Info("[PROGRESS] enrollment %d completed course %d", enr.ID, course.ID)

	if err := s.events.PublishEvent(ctx, kafka.TopicEnrollments, fmt.Sprintf("enrollment-%d", enr.ID), kafka.EventEnrollmentCompleted, map[string]interface{}{
		"enrollment_id": enr.ID,
		"user_id":       enr.UserID,
		"course_id":     course.ID,
		"completed_at":  now,
	}); err != nil {
		logger.Warn("[PROGRESS] could not publish completion of enrollment %d: %v", enr.ID, err)
	}
	if u, err := s.users.GetUserByID(ctx, enr.UserID); err == nil {
		if err := s.mail.Send(ctx, notify.CourseCompleted(u.Email, u.Name, course.Name)); err != nil {
			logger.Warn("[PROGRESS] could not queue completion email: %v", err)
		}
	}
	return nil
}

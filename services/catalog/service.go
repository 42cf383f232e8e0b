// Package catalog manages courses, Pack365 bundles, coupons and enrollments.
package catalog

import (
	"context"
	"fmt"
	"strings"

	"triaright-platform/clock"
	"triaright-platform/errors"
	"triaright-platform/logger"
	"triaright-platform/models"
	"triaright-platform/services/kafka"
	"triaright-platform/services/pricing"
	"triaright-platform/utils"
)

type Store interface {
	CreateCourse(ctx context.Context, c *models.Course) error
	UpdateCourse(ctx context.Context, c *models.Course) error
	GetCourse(ctx context.Context, id int) (*models.Course, error)
	ListCourses(ctx context.Context, f models.CourseFilter) ([]models.Course, error)
	CreatePack(ctx context.Context, p *models.Pack365) error
	ListPacks(ctx context.Context) ([]models.Pack365, error)
	CreateEnrollment(ctx context.Context, e *models.Enrollment) error
	GetEnrollment(ctx context.Context, id int) (*models.Enrollment, error)
	ListEnrollments(ctx context.Context, userID int) ([]models.Enrollment, error)
	CreateCoupon(ctx context.Context, c *models.Coupon) error
}

type Service struct {
	store  Store
	events kafka.Publisher
	clock  clock.Clock
}

func NewService(store Store, events kafka.Publisher, clk clock.Clock) *Service {
	if clk == nil {
		clk = clock.Real()
	}
	return &Service{store: store, events: events, clock: clk}
}

func validateCourse(c *models.Course) error {
	c.Name = strings.TrimSpace(c.Name)
	if err := utils.ValidateName(c.Name); err != nil {
		return errors.E(errors.Invalid, err.Error())
	}
	if err := utils.ValidateText("description", c.Description); err != nil {
		return errors.E(errors.Invalid, err.Error())
	}
	switch c.Type {
	case models.CourseTypePaid:
		if c.Price <= 0 {
			return errors.E(errors.Invalid, "paid courses need a positive price")
		}
	case models.CourseTypeUnpaid:
		if c.Price != 0 {
			return errors.E(errors.Invalid, "unpaid courses cannot have a price")
		}
	default:
		return errors.E(errors.Invalid, "type must be paid or unpaid")
	}
	for ti, t := range c.Curriculum {
		if strings.TrimSpace(t.Title) == "" {
			return errors.E(errors.Invalid, fmt.Sprintf("topic %d needs a title", ti+1))
		}
		for si, s := range t.Subtopics {
			if strings.TrimSpace(s.Title) == "" || s.DurationSeconds <= 0 {
				return errors.E(errors.Invalid, fmt.Sprintf("subtopic %d.%d needs a title and a positive duration", ti+1, si+1))
			}
		}
	}
	return nil
}

func (s *Service) CreateCourse(ctx context.Context, c *models.Course) error {
	if err := validateCourse(c); err != nil {
		return err
	}
	if c.Curriculum == nil {
		c.Curriculum = []models.Topic{}
	}
	c.IsActive = true
	if err := s.store.CreateCourse(ctx, c); err != nil {
		return err
	}
	logger.Info("[CATALOG] created course %d %q", c.ID, c.Name)
	return nil
}

func (s *Service) UpdateCourse(ctx context.Context, c *models.Course) error {
	if _, err := s.store.GetCourse(ctx, c.ID); err != nil {
		return err
	}
	if err := validateCourse(c); err != nil {
		return err
	}
	return s.store.UpdateCourse(ctx, c)
}

func (s *Service) GetCourse(ctx context.Context, id int) (*models.Course, error) {
	return s.store.GetCourse(ctx, id)
}

// ListCourses returns active courses matching f.
func (s *Service) ListCourses(ctx context.Context, f models.CourseFilter) ([]models.Course, error) {
	if f.Type != "" && f.Type != models.CourseTypePaid && f.Type != models.CourseTypeUnpaid {
		return nil, errors.E(errors.Invalid, "type must be paid or unpaid")
	}
	return s.store.ListCourses(ctx, f)
}

func (s *Service) CreatePack(ctx context.Context, p *models.Pack365) error {
	p.Name = strings.TrimSpace(p.Name)
	p.Stream = strings.TrimSpace(p.Stream)
	if p.Name == "" || p.Stream == "" {
		return errors.E(errors.Invalid, "name and stream are required")
	}
	if p.Price <= 0 {
		return errors.E(errors.Invalid, "price must be positive")
	}
	if p.ValidityDays == 0 {
		p.ValidityDays = 365
	}
	if p.ValidityDays < 0 {
		return errors.E(errors.Invalid, "validity_days must be positive")
	}
	return s.store.CreatePack(ctx, p)
}

func (s *Service) ListPacks(ctx context.Context) ([]models.Pack365, error) {
	return s.store.ListPacks(ctx)
}

// Enroll enrolls a user in a free course. Paid courses go through checkout.
func (s *Service) Enroll(ctx context.Context, userID, courseID int) (*models.Enrollment, error) {
	c, err := s.store.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if !c.IsActive {
		return nil, errors.E(errors.Invalid, "course is not available")
	}
	if c.IsPaid() {
		return nil, errors.E(errors.Forbidden, "course requires payment")
	}
	e := &models.Enrollment{UserID: userID, CourseID: courseID, Status: models.EnrollmentActive}
	if err := s.store.CreateEnrollment(ctx, e); err != nil {
		if errors.IsKind(err, errors.Conflict) {
			return nil, errors.E(errors.Conflict, "already enrolled in this course")
		}
		return nil, err
	}
	logger.Info("[CATALOG] user %d enrolled in free course %d", userID, courseID)

	if err := s.events.PublishEvent(ctx, kafka.TopicEnrollments, fmt.Sprintf("user-%d", userID), kafka.EventEnrollmentCreated, map[string]interface{}{
		"user_id":        userID,
		"enrollment_ids": []int{e.ID},
	}); err != nil {
		logger.Warn("[CATALOG] could not publish enrollment %d: %v", e.ID, err)
	}
	return e, nil
}

func (s *Service) Enrollments(ctx context.Context, userID int) ([]models.Enrollment, error) {
	return s.store.ListEnrollments(ctx, userID)
}

// Enrollment returns one of the user's enrollments with its progress rows.
func (s *Service) Enrollment(ctx context.Context, userID, id int) (*models.Enrollment, error) {
	e, err := s.store.GetEnrollment(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.UserID != userID {
		return nil, errors.E(errors.Forbidden, "enrollment belongs to another user")
	}
	return e, nil
}

func (s *Service) CreateCoupon(ctx context.Context, c *models.Coupon) error {
	if err := pricing.ValidateDefinition(c); err != nil {
		return err
	}
	c.Code = pricing.NormalizeCode(c.Code)
	c.IsActive = true
	c.UsedCount = 0
	if c.ExpiresAt != nil && !c.ExpiresAt.After(s.clock.Now()) {
		return errors.E(errors.Invalid, "expires_at must be in the future")
	}
	if c.CourseID != nil {
		if _, err := s.store.GetCourse(ctx, *c.CourseID); err != nil {
			return err
		}
	}
	if err := s.store.CreateCoupon(ctx, c); err != nil {
		if errors.IsKind(err, errors.Conflict) {
			return errors.E(errors.Conflict, "coupon code already exists")
		}
		return err
	}
	logger.Info("[CATALOG] created coupon %s", c.Code)
	return nil
}

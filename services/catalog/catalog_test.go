package catalog

import (
	"context"
	"testing"
	"time"

	"triaright-platform/clock"
	"triaright-platform/errors"
	"triaright-platform/models"
)

type memStore struct {
	courses     []*models.Course
	packs       []models.Pack365
	enrollments []*models.Enrollment
	coupons     []*models.Coupon
}

func (s *memStore) CreateCourse(ctx context.Context, c *models.Course) error {
	c.ID = len(s.courses) + 1
	cp := *c
	s.courses = append(s.courses, &cp)
	return nil
}

func (s *memStore) UpdateCourse(ctx context.Context, c *models.Course) error {
	cp := *c
	s.courses[c.ID-1] = &cp
	return nil
}

func (s *memStore) GetCourse(ctx context.Context, id int) (*models.Course, error) {
	if id < 1 || id > len(s.courses) {
		return nil, errors.E(errors.NotFound, "course not found")
	}
	cp := *s.courses[id-1]
	return &cp, nil
}

func (s *memStore) ListCourses(ctx context.Context, f models.CourseFilter) ([]models.Course, error) {
	var out []models.Course
	for _, c := range s.courses {
		if c.IsActive && (f.Stream == "" || c.Stream == f.Stream) && (f.Type == "" || c.Type == f.Type) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *memStore) CreatePack(ctx context.Context, p *models.Pack365) error {
	p.ID = len(s.packs) + 1
	s.packs = append(s.packs, *p)
	return nil
}

func (s *memStore) ListPacks(ctx context.Context) ([]models.Pack365, error) { return s.packs, nil }

func (s *memStore) CreateEnrollment(ctx context.Context, e *models.Enrollment) error {
	for _, x := range s.enrollments {
		if x.UserID == e.UserID && x.CourseID == e.CourseID {
			return errors.E(errors.Conflict, "duplicate key")
		}
	}
	e.ID = len(s.enrollments) + 1
	cp := *e
	s.enrollments = append(s.enrollments, &cp)
	return nil
}

func (s *memStore) GetEnrollment(ctx context.Context, id int) (*models.Enrollment, error) {
	if id < 1 || id > len(s.enrollments) {
		return nil, errors.E(errors.NotFound, "enrollment not found")
	}
	cp := *s.enrollments[id-1]
	return &cp, nil
}

func (s *memStore) ListEnrollments(ctx context.Context, userID int) ([]models.Enrollment, error) {
	var out []models.Enrollment
	for _, e := range s.enrollments {
		if e.UserID == userID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (s *memStore) CreateCoupon(ctx context.Context, c *models.Coupon) error {
	for _, x := range s.coupons {
		if x.Code == c.Code {
			return errors.E(errors.Conflict, "duplicate key")
		}
	}
	c.ID = len(s.coupons) + 1
	s.coupons = append(s.coupons, c)
	return nil
}

type events struct{ types []string }

func (e *events) PublishEvent(ctx context.Context, topic, key, eventType string, data interface{}) error {
	e.types = append(e.types, eventType)
	return nil
}

var now = time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) (*Service, *memStore, *events) {
	t.Helper()
	store, ev := &memStore{}, &events{}
	svc := NewService(store, ev, clock.NewFake(now))
	ctx := context.Background()
	courses := []models.Course{
		{Name: "Intro to Python", Stream: "it", Type: models.CourseTypeUnpaid, Curriculum: []models.Topic{
			{Title: "Basics", Subtopics: []models.Subtopic{{Title: "Variables", DurationSeconds: 300}}},
		}},
		{Name: "Go Microservices", Stream: "it", Type: models.CourseTypePaid, Price: 1999},
		{Name: "Accounting 101", Stream: "finance", Type: models.CourseTypeUnpaid},
	}
	for i := range courses {
		if err := svc.CreateCourse(ctx, &courses[i]); err != nil {
			t.Fatal(err)
		}
	}
	return svc, store, ev
}

func TestCourseValidation(t *testing.T) {
	svc, _, _ := newFixture(t)
	tests := []struct {
		name string
		c    models.Course
	}{
		{"missing name", models.Course{Type: models.CourseTypeUnpaid}},
		{"bad type", models.Course{Name: "x", Type: "premium"}},
		{"paid without price", models.Course{Name: "x", Type: models.CourseTypePaid}},
		{"free with price", models.Course{Name: "x", Type: models.CourseTypeUnpaid, Price: 10}},
		{"zero duration", models.Course{Name: "x", Type: models.CourseTypeUnpaid, Curriculum: []models.Topic{
			{Title: "t", Subtopics: []models.Subtopic{{Title: "s"}}},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := svc.CreateCourse(context.Background(), &tt.c); errors.KindOf(err) != errors.Invalid {
				t.Errorf("Expected Invalid, got %v", err)
			}
		})
	}
}

func TestListAndUpdateCourses(t *testing.T) {
	svc, _, _ := newFixture(t)
	ctx := context.Background()

	it, err := svc.ListCourses(ctx, models.CourseFilter{Stream: "it"})
	if err != nil || len(it) != 2 {
		t.Fatalf("Expected 2 IT courses, got %d %v", len(it), err)
	}
	paid, _ := svc.ListCourses(ctx, models.CourseFilter{Type: models.CourseTypePaid})
	if len(paid) != 1 || paid[0].Name != "Go Microservices" {
		t.Errorf("Expected only the paid course, got %v", paid)
	}
	if _, err := svc.ListCourses(ctx, models.CourseFilter{Type: "gold"}); errors.KindOf(err) != errors.Invalid {
		t.Errorf("Expected Invalid filter, got %v", err)
	}

	upd := models.Course{ID: 2, Name: "Go Microservices v2", Type: models.CourseTypePaid, Price: 2499, IsActive: true}
	if err := svc.UpdateCourse(ctx, &upd); err != nil {
		t.Fatal(err)
	}
	got, _ := svc.GetCourse(ctx, 2)
	if got.Price != 2499 {
		t.Errorf("Expected updated price, got %v", got.Price)
	}
	if err := svc.UpdateCourse(ctx, &models.Course{ID: 42, Name: "x", Type: models.CourseTypeUnpaid}); errors.KindOf(err) != errors.NotFound {
		t.Errorf("Expected NotFound, got %v", err)
	}
}

func TestEnroll(t *testing.T) {
	svc, _, ev := newFixture(t)
	ctx := context.Background()

	e, err := svc.Enroll(ctx, 7, 1)
	if err != nil {
		t.Fatalf("Expected enrollment, got %v", err)
	}
	if e.Status != models.EnrollmentActive || e.ID == 0 {
		t.Errorf("Unexpected enrollment %+v", e)
	}
	if _, err := svc.Enroll(ctx, 7, 1); errors.KindOf(err) != errors.Conflict {
		t.Errorf("Expected Conflict on duplicate enrollment, got %v", err)
	}
	if _, err := svc.Enroll(ctx, 7, 2); errors.KindOf(err) != errors.Forbidden {
		t.Errorf("Expected Forbidden for paid course, got %v", err)
	}
	if len(ev.types) != 1 || ev.types[0] != "enrollment.created" {
		t.Errorf("Expected one enrollment event, got %v", ev.types)
	}

	if _, err := svc.Enrollment(ctx, 8, e.ID); errors.KindOf(err) != errors.Forbidden {
		t.Errorf("Expected Forbidden for other user, got %v", err)
	}
	list, err := svc.Enrollments(ctx, 7)
	if err != nil || len(list) != 1 {
		t.Errorf("Expected one enrollment, got %v %v", list, err)
	}
}

func TestPacksAndCoupons(t *testing.T) {
	svc, store, _ := newFixture(t)
	ctx := context.Background()

	p := models.Pack365{Name: "IT Pack", Stream: "it", Price: 4999}
	if err := svc.CreatePack(ctx, &p); err != nil {
		t.Fatal(err)
	}
	if p.ValidityDays != 365 {
		t.Errorf("Expected default validity 365, got %d", p.ValidityDays)
	}
	if err := svc.CreatePack(ctx, &models.Pack365{Name: "x", Stream: "it"}); errors.KindOf(err) != errors.Invalid {
		t.Errorf("Expected Invalid pack, got %v", err)
	}

	c := models.Coupon{Code: " welcome10 ", DiscountType: models.DiscountPercentage, DiscountValue: 10}
	if err := svc.CreateCoupon(ctx, &c); err != nil {
		t.Fatal(err)
	}
	if store.coupons[0].Code != "WELCOME10" || !store.coupons[0].IsActive {
		t.Errorf("Expected normalized active coupon, got %+v", store.coupons[0])
	}
	dup := models.Coupon{Code: "Welcome10", DiscountType: models.DiscountFlat, DiscountValue: 50}
	if err := svc.CreateCoupon(ctx, &dup); errors.KindOf(err) != errors.Conflict {
		t.Errorf("Expected Conflict, got %v", err)
	}
	past := now.Add(-time.Hour)
	expired := models.Coupon{Code: "OLD", DiscountType: models.DiscountFlat, DiscountValue: 50, ExpiresAt: &past}
	if err := svc.CreateCoupon(ctx, &expired); errors.KindOf(err) != errors.Invalid {
		t.Errorf("Expected Invalid expiry, got %v", err)
	}
	missing := 99
	scoped := models.Coupon{Code: "ONLY", DiscountType: models.DiscountFlat, DiscountValue: 50, CourseID: &missing}
	if err := svc.CreateCoupon(ctx, &scoped); errors.KindOf(err) != errors.NotFound {
		t.Errorf("Expected NotFound course, got %v", err)
	}
}

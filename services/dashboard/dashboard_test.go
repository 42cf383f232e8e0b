package dashboard

import (
	"context"
	"testing"

	"triaright-platform/errors"
	"triaright-platform/models"
)

type fakeStore struct {
	employerAsked int
}

func (f *fakeStore) StudentStats(ctx context.Context, userID int) (*models.StudentDashboard, error) {
	return &models.StudentDashboard{Enrollments: 3, CompletedCourses: 1}, nil
}

func (f *fakeStore) EmployerStats(ctx context.Context, employerID int) (*models.EmployerDashboard, error) {
	f.employerAsked = employerID
	return &models.EmployerDashboard{Internships: 2}, nil
}

func (f *fakeStore) PlatformStats(ctx context.Context) (*models.PlatformDashboard, error) {
	revenue := 125000.5
	return &models.PlatformDashboard{Students: 40, Revenue: &revenue}, nil
}

func TestDashboardPerRole(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(store)
	ctx := context.Background()

	tests := []struct {
		role                        string
		student, employer, platform bool
		revenue                     bool
	}{
		{models.RoleStudent, true, false, false, false},
		{models.RoleEmployer, false, true, false, false},
		{models.RoleCollege, false, false, true, false},
		{models.RoleAdmin, false, false, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			d, err := svc.For(ctx, 11, tt.role)
			if err != nil {
				t.Fatal(err)
			}
			if (d.Student != nil) != tt.student || (d.Employer != nil) != tt.employer || (d.Platform != nil) != tt.platform {
				t.Errorf("Unexpected sections for %s: %+v", tt.role, d)
			}
			if tt.platform && (d.Platform.Revenue != nil) != tt.revenue {
				t.Errorf("Expected revenue visible=%v for %s", tt.revenue, tt.role)
			}
		})
	}
	if store.employerAsked != 11 {
		t.Errorf("Expected employer stats for user 11, got %d", store.employerAsked)
	}
	if _, err := svc.For(ctx, 1, "guest"); errors.KindOf(err) != errors.Forbidden {
		t.Errorf("Expected Forbidden, got %v", err)
	}
}

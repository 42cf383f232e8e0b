// Package dashboard builds the role-specific home screen.
package dashboard

import (
	"context"

	"triaright-platform/errors"
	"triaright-platform/models"
)

type Store interface {
	StudentStats(ctx context.Context, userID int) (*models.StudentDashboard, error)
	EmployerStats(ctx context.Context, employerID int) (*models.EmployerDashboard, error)
	PlatformStats(ctx context.Context) (*models.PlatformDashboard, error)
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// For returns the dashboard of the given role. Colleges see platform totals
// without revenue.
func (s *Service) For(ctx context.Context, userID int, role string) (*models.Dashboard, error) {
	d := &models.Dashboard{Role: role}
	var err error
	switch role {
	case models.RoleStudent:
		d.Student, err = s.store.StudentStats(ctx, userID)
	case models.RoleEmployer:
		d.Employer, err = s.store.EmployerStats(ctx, userID)
	case models.RoleCollege, models.RoleAdmin:
		d.Platform, err = s.store.PlatformStats(ctx)
		if err == nil && role != models.RoleAdmin {
			d.Platform.Revenue = nil
		}
	default:
		return nil, errors.E(errors.Forbidden, "no dashboard for role "+role)
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

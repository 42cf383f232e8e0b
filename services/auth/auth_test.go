package auth

import (
	"context"
	"testing"
	"time"

	"triaright-platform/clock"
	"triaright-platform/errors"
	"triaright-platform/models"

	"golang.org/x/crypto/bcrypt"
)

type memStore struct {
	users []*models.User
}

func (s *memStore) CreateUser(ctx context.Context, u *models.User) error {
	for _, x := range s.users {
		if x.Email == u.Email {
			return errors.E(errors.Conflict, "duplicate key")
		}
	}
	u.ID = len(s.users) + 1
	s.users = append(s.users, u)
	return nil
}

func (s *memStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, errors.E(errors.NotFound, "user not found")
}

func (s *memStore) GetUserByID(ctx context.Context, id int) (*models.User, error) {
	if id < 1 || id > len(s.users) {
		return nil, errors.E(errors.NotFound, "user not found")
	}
	return s.users[id-1], nil
}

type memRevocations map[string]time.Duration

func (m memRevocations) Revoke(ctx context.Context, id string, ttl time.Duration) error {
	m[id] = ttl
	return nil
}

func (m memRevocations) IsRevoked(ctx context.Context, id string) (bool, error) {
	_, ok := m[id]
	return ok, nil
}

func newService(clk clock.Clock) (*Service, memRevocations) {
	rev := memRevocations{}
	svc := NewService(&memStore{}, NewTokenManager("test-secret", time.Hour, clk), rev)
	svc.cost = bcrypt.MinCost
	return svc, rev
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newService(nil)
	ctx := context.Background()

	sess, err := svc.Register(ctx, RegisterRequest{Name: "Meera", Email: " Meera@Example.com ", Password: "secret123"})
	if err != nil {
		t.Fatalf("Expected registration, got %v", err)
	}
	if sess.User.Role != models.RoleStudent || sess.User.Email != "meera@example.com" || sess.Token == "" {
		t.Errorf("Unexpected session %+v", sess)
	}
	if sess.User.PasswordHash == "secret123" {
		t.Error("Expected password to be hashed")
	}

	id, err := svc.Authenticate(ctx, sess.Token)
	if err != nil || id.UserID != sess.User.ID || id.Role != models.RoleStudent {
		t.Errorf("Expected identity for user %d, got %+v %v", sess.User.ID, id, err)
	}

	if _, err := svc.Login(ctx, LoginRequest{Email: "MEERA@example.com", Password: "secret123"}); err != nil {
		t.Errorf("Expected login, got %v", err)
	}
	if _, err := svc.Login(ctx, LoginRequest{Email: "meera@example.com", Password: "wrong-pass"}); errors.KindOf(err) != errors.Unauthorized {
		t.Errorf("Expected Unauthorized for bad password, got %v", err)
	}
	if _, err := svc.Login(ctx, LoginRequest{Email: "nobody@example.com", Password: "secret123"}); errors.KindOf(err) != errors.Unauthorized {
		t.Errorf("Expected Unauthorized for unknown email, got %v", err)
	}

	me, err := svc.Me(ctx, id)
	if err != nil || me.Name != "Meera" {
		t.Errorf("Expected Me to return the user, got %+v %v", me, err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newService(nil)
	ctx := context.Background()
	if _, err := svc.Register(ctx, RegisterRequest{Name: "A", Email: "a@example.com", Password: "password1"}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		req  RegisterRequest
		kind errors.Kind
	}{
		{"missing name", RegisterRequest{Email: "b@example.com", Password: "password1"}, errors.Invalid},
		{"bad email", RegisterRequest{Name: "B", Email: "b@", Password: "password1"}, errors.Invalid},
		{"short password", RegisterRequest{Name: "B", Email: "b@example.com", Password: "short"}, errors.Invalid},
		{"admin role", RegisterRequest{Name: "B", Email: "b@example.com", Password: "password1", Role: models.RoleAdmin}, errors.Invalid},
		{"unknown role", RegisterRequest{Name: "B", Email: "b@example.com", Password: "password1", Role: "guest"}, errors.Invalid},
		{"duplicate email", RegisterRequest{Name: "B", Email: "A@example.com", Password: "password1"}, errors.Conflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Register(ctx, tt.req); errors.KindOf(err) != tt.kind {
				t.Errorf("Expected %v, got %v", tt.kind, err)
			}
		})
	}
}

func TestTokenExpiryAndLogout(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	svc, rev := newService(clk)
	ctx := context.Background()

	sess, err := svc.Register(ctx, RegisterRequest{Name: "E", Email: "e@example.com", Password: "password1", Role: models.RoleEmployer})
	if err != nil {
		t.Fatal(err)
	}
	id, err := svc.Authenticate(ctx, sess.Token)
	if err != nil {
		t.Fatal(err)
	}

	clk.Advance(15 * time.Minute)
	if err := svc.Logout(ctx, id); err != nil {
		t.Fatal(err)
	}
	if ttl := rev[id.TokenID]; ttl != 45*time.Minute {
		t.Errorf("Expected revocation for the remaining 45m, got %v", ttl)
	}
	if _, err := svc.Authenticate(ctx, sess.Token); errors.KindOf(err) != errors.Unauthorized {
		t.Errorf("Expected revoked token to be rejected, got %v", err)
	}

	other, err := svc.Login(ctx, LoginRequest{Email: "e@example.com", Password: "password1"})
	if err != nil {
		t.Fatal(err)
	}
	clk.Advance(2 * time.Hour)
	if _, err := svc.Authenticate(ctx, other.Token); errors.KindOf(err) != errors.Unauthorized {
		t.Errorf("Expected expired token to be rejected, got %v", err)
	}
}

func TestValidateRejectsForeignTokens(t *testing.T) {
	a := NewTokenManager("secret-a", time.Hour, nil)
	b := NewTokenManager("secret-b", time.Hour, nil)
	tok, _, err := a.Generate(3, models.RoleAdmin)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Validate(tok); errors.KindOf(err) != errors.Unauthorized {
		t.Errorf("Expected Unauthorized, got %v", err)
	}
	if _, err := a.Validate("not-a-token"); errors.KindOf(err) != errors.Unauthorized {
		t.Errorf("Expected Unauthorized, got %v", err)
	}
}

func TestIdentityContext(t *testing.T) {
	if _, ok := FromContext(context.Background()); ok {
		t.Error("Expected no identity on empty context")
	}
	ctx := WithIdentity(context.Background(), Identity{UserID: 5, Role: models.RoleCollege})
	id, ok := FromContext(ctx)
	if !ok || id.UserID != 5 {
		t.Errorf("Expected identity 5, got %+v", id)
	}
}

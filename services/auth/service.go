package auth

import (
	"context"
	"strings"
	"time"

	"triaright-platform/errors"
	"triaright-platform/logger"
	"triaright-platform/models"
	"triaright-platform/utils"

	"golang.org/x/crypto/bcrypt"
)

// Store persists users.
type Store interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id int) (*models.User, error)
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Session is what a client keeps after logging in.
type Session struct {
	Token     string       `json:"token"`
	ExpiresAt string       `json:"expires_at"`
	User      *models.User `json:"user"`
}

type Service struct {
	store   Store
	tokens  *TokenManager
	revoked Revocations
	cost    int
}

// NewService wires the auth flow. revoked may be nil, in which case logout
// cannot invalidate tokens before they expire.
func NewService(store Store, tokens *TokenManager, revoked Revocations) *Service {
	return &Service{store: store, tokens: tokens, revoked: revoked, cost: bcrypt.DefaultCost}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a user. Admin accounts cannot be self-registered.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Session, error) {
	req.Email = normalizeEmail(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if req.Role == "" {
		req.Role = models.RoleStudent
	}
	if err := utils.ValidateName(req.Name); err != nil {
		return nil, errors.E(errors.Invalid, err.Error())
	}
	if err := utils.ValidateEmail(req.Email); err != nil {
		return nil, errors.E(errors.Invalid, err.Error())
	}
	if err := utils.ValidatePassword(req.Password); err != nil {
		return nil, errors.E(errors.Invalid, err.Error())
	}
	if !models.ValidRole(req.Role) || req.Role == models.RoleAdmin {
		return nil, errors.E(errors.Invalid, "role must be student, college or employer")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, errors.E(errors.Internal, "could not hash password", err)
	}
	u := &models.User{Name: req.Name, Email: req.Email, PasswordHash: string(hash), Role: req.Role}
	if err := s.store.CreateUser(ctx, u); err != nil {
		if errors.IsKind(err, errors.Conflict) {
			return nil, errors.E(errors.Conflict, "email is already registered")
		}
		return nil, err
	}
	logger.Info("[AUTH] registered user %d (%s)", u.ID, u.Role)
	return s.session(u)
}

// Login checks credentials and returns a fresh session.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	u, err := s.store.GetUserByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.IsKind(err, errors.NotFound) {
			return nil, errors.E(errors.Unauthorized, "invalid email or password")
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		logger.Warn("[AUTH] failed login for user %d", u.ID)
		return nil, errors.E(errors.Unauthorized, "invalid email or password")
	}
	return s.session(u)
}

func (s *Service) session(u *models.User) (*Session, error) {
	token, exp, err := s.tokens.Generate(u.ID, u.Role)
	if err != nil {
		return nil, errors.E(errors.Internal, "could not issue token", err)
	}
	return &Session{Token: token, ExpiresAt: exp.UTC().Format(time.RFC3339), User: u}, nil
}

// Authenticate resolves a bearer token to an identity.
func (s *Service) Authenticate(ctx context.Context, token string) (Identity, error) {
	id, err := s.tokens.Validate(token)
	if err != nil {
		return Identity{}, err
	}
	if s.revoked != nil {
		revoked, err := s.revoked.IsRevoked(ctx, id.TokenID)
		if err != nil {
			// fail open; the token is still signed and unexpired
			logger.Warn("[AUTH] revocation lookup failed: %v", err)
		} else if revoked {
			return Identity{}, errors.E(errors.Unauthorized, "token has been revoked")
		}
	}
	return id, nil
}

// Logout revokes the caller's token.
func (s *Service) Logout(ctx context.Context, id Identity) error {
	if s.revoked == nil {
		return nil
	}
	ttl := id.ExpiresAt.Sub(s.tokens.clock.Now())
	if err := s.revoked.Revoke(ctx, id.TokenID, ttl); err != nil {
		return errors.E(errors.Internal, "could not revoke token", err)
	}
	return nil
}

// Me returns the caller's user record.
func (s *Service) Me(ctx context.Context, id Identity) (*models.User, error) {
	return s.store.GetUserByID(ctx, id.UserID)
}

package auth

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"github.com/kitarena/kitarena/internal/shared"
)

// Service wraps authentication business rules.
type Service struct {
	repo     Repository
	sessions *shared.SessionManager
}

// NewService constructs a new Service.
func NewService(repo Repository, sessions *shared.SessionManager) *Service {
	return &Service{repo: repo, sessions: sessions}
}

// Authenticate validates email/password credentials and issues a bearer token.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, string, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, "", shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, "", shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", shared.ErrInvalidCredentials
	}
	token, err := s.sessions.Create(ctx, user.ID, user.Role)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Resolve maps a bearer token to an identity.
func (s *Service) Resolve(ctx context.Context, token string) (shared.Identity, error) {
	return s.sessions.Resolve(ctx, token)
}

// Logout invalidates the given token.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.sessions.Destroy(ctx, token)
}

// Me loads the account behind an identity.
func (s *Service) Me(ctx context.Context, id shared.Identity) (*User, error) {
	return s.repo.FindByID(ctx, id.UserID)
}

package auth

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/gatehouse-app/gatehouse/internal/identity"
	"github.com/gatehouse-app/gatehouse/internal/shared"
)

// Service wraps authentication business rules around the OIDC flow:
// login auditing and the local development fallback used when no
// identity provider is configured.
type Service struct {
	repo       Repository
	devEmail   string
	devHash    string
	rolesClaim string
}

// NewService constructs a new Service. repo may be nil when no database
// is configured; auditing then degrades to a no-op. devEmail/devHash
// enable the development login when non-empty.
func NewService(repo Repository, devEmail, devHash, rolesClaim string) *Service {
	return &Service{repo: repo, devEmail: devEmail, devHash: devHash, rolesClaim: rolesClaim}
}

// DevLoginEnabled reports whether the local development login may be used.
func (s *Service) DevLoginEnabled() bool {
	return s.devEmail != "" && s.devHash != ""
}

// AuthenticateDev validates the development credentials against the
// configured bcrypt hash. The resulting identity carries the admin role
// so the bootstrap operator can reach the admin console.
func (s *Service) AuthenticateDev(ctx context.Context, email, password string) (*shared.StoredIdentity, error) {
	if !s.DevLoginEnabled() || email != s.devEmail {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.devHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return &shared.StoredIdentity{
		Subject:       "dev|" + email,
		Email:         email,
		EmailVerified: true,
		Claims: map[string]any{
			s.rolesClaim: []string{identity.RoleAdmin},
		},
	}, nil
}

// RecordLogin persists the login audit row when a repository exists.
func (s *Service) RecordLogin(ctx context.Context, sessionID, email string, expiresAt time.Time, ip, ua string) error {
	if s.repo == nil {
		return nil
	}
	return s.repo.RecordLogin(ctx, sessionID, email, expiresAt, ip, ua)
}

// RemoveLogin deletes the login audit row when a repository exists.
func (s *Service) RemoveLogin(ctx context.Context, sessionID string) error {
	if s.repo == nil {
		return nil
	}
	return s.repo.RemoveLogin(ctx, sessionID)
}

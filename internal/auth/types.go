package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Errors returned by the authentication subsystem.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrMissingToken       = errors.New("missing bearer token")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrSubjectRevoked     = errors.New("subject is disabled")
)

// Store abstracts the persistent account catalogue. Implementations
// must be safe for concurrent use.
type Store interface {
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	LoadSubject(ctx context.Context, userID string) (*Subject, error)
	FindAPIKey(ctx context.Context, key string) (*APIKey, error)
}

// SeedWriter is implemented by stores that can upsert bootstrap
// accounts.
type SeedWriter interface {
	ApplySeed(ctx context.Context, seed Seed) error
}

// Organization is a tenant. Every domain record carries an
// organization id and every token is scoped to exactly one.
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// User is a persisted account with credentials.
type User struct {
	ID           string
	OrgID        string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Disabled     bool
}

// APIKey grants programmatic access scoped to one organization.
type APIKey struct {
	Key      string
	OrgID    string
	Label    string
	Disabled bool
}

// Subject is the authenticated identity attached to a request.
type Subject struct {
	UserID      string
	OrgID       string
	Email       string
	Roles       []string
	Permissions []string
	Disabled    bool

	permissionsSet map[string]struct{}
}

func (s *Subject) normalize() {
	if s == nil {
		return
	}
	if s.permissionsSet == nil {
		s.permissionsSet = make(map[string]struct{}, len(s.Permissions))
		for _, perm := range s.Permissions {
			s.permissionsSet[strings.ToLower(strings.TrimSpace(perm))] = struct{}{}
		}
	}
}

// HasPermission reports whether the subject carries the permission.
func (s *Subject) HasPermission(permission string) bool {
	if s == nil {
		return false
	}
	s.normalize()
	_, ok := s.permissionsSet[strings.ToLower(strings.TrimSpace(permission))]
	return ok
}

// Authorize ensures the subject has every required permission.
func (s *Subject) Authorize(perms ...string) error {
	if s == nil {
		return ErrInvalidToken
	}
	if s.Disabled {
		return ErrSubjectRevoked
	}
	for _, perm := range perms {
		if perm == "" {
			continue
		}
		if !s.HasPermission(perm) {
			return fmt.Errorf("%w: missing %s", ErrPermissionDenied, perm)
		}
	}
	return nil
}

// Clone returns a copy safe to hand out.
func (s *Subject) Clone() *Subject {
	if s == nil {
		return nil
	}
	clone := &Subject{
		UserID:      s.UserID,
		OrgID:       s.OrgID,
		Email:       s.Email,
		Roles:       append([]string(nil), s.Roles...),
		Permissions: append([]string(nil), s.Permissions...),
		Disabled:    s.Disabled,
	}
	clone.normalize()
	return clone
}

// TokenRequest is the login payload.
type TokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenPair contains the issued access and refresh tokens.
type TokenPair struct {
	AccessToken      string   `json:"access_token"`
	ExpiresIn        int64    `json:"expires_in"`
	RefreshToken     string   `json:"refresh_token,omitempty"`
	RefreshExpiresIn int64    `json:"refresh_expires_in,omitempty"`
	TokenType        string   `json:"token_type"`
	Subject          *Subject `json:"-"`
}

// Config configures the token service.
type Config struct {
	Secret     string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Seeds      []Seed
}

// Seed defines a bootstrap account.
type Seed struct {
	OrgID       string
	Email       string
	Password    string
	Roles       []string
	Permissions []string
	Disabled    bool
}

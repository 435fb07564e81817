package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	stdErrors "errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"machtms/internal/auth"
)

// AuthStore persists accounts and API keys.
type AuthStore struct {
	db *sql.DB
}

// NewAuthStore wraps an existing database handle.
func NewAuthStore(db *sql.DB) *AuthStore {
	return &AuthStore{db: db}
}

// FindUserByEmail returns the account with the given email.
func (s *AuthStore) FindUserByEmail(ctx context.Context, email string) (*auth.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, org_id, email, password_hash, first_name, last_name, disabled
        FROM users WHERE email = ?`, strings.ToLower(strings.TrimSpace(email)))
	var user auth.User
	if err := row.Scan(&user.ID, &user.OrgID, &user.Email, &user.PasswordHash,
		&user.FirstName, &user.LastName, &user.Disabled); err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, notFound("user", email)
		}
		return nil, storageErr(err, "query user")
	}
	return &user, nil
}

// LoadSubject returns the identity embedded in tokens.
func (s *AuthStore) LoadSubject(ctx context.Context, userID string) (*auth.Subject, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, org_id, email, roles, permissions, disabled FROM users WHERE id = ?`, userID)
	var subject auth.Subject
	var roles, permissions sql.NullString
	if err := row.Scan(&subject.UserID, &subject.OrgID, &subject.Email, &roles, &permissions, &subject.Disabled); err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, notFound("user", userID)
		}
		return nil, storageErr(err, "query subject")
	}
	if roles.Valid {
		_ = json.Unmarshal([]byte(roles.String), &subject.Roles)
	}
	if permissions.Valid {
		_ = json.Unmarshal([]byte(permissions.String), &subject.Permissions)
	}
	return &subject, nil
}

// FindAPIKey resolves a programmatic access key.
func (s *AuthStore) FindAPIKey(ctx context.Context, key string) (*auth.APIKey, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT api_key, org_id, label, disabled FROM api_keys WHERE api_key = ?`, key)
	var apiKey auth.APIKey
	if err := row.Scan(&apiKey.Key, &apiKey.OrgID, &apiKey.Label, &apiKey.Disabled); err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, notFound("api key", key)
		}
		return nil, storageErr(err, "query api key")
	}
	return &apiKey, nil
}

// ApplySeed upserts a bootstrap account.
func (s *AuthStore) ApplySeed(ctx context.Context, seed auth.Seed) error {
	email := strings.ToLower(strings.TrimSpace(seed.Email))
	if email == "" {
		return storageErr(stdErrors.New("empty email"), "apply seed")
	}
	hashed, err := auth.HashPassword(seed.Password)
	if err != nil {
		return err
	}
	roles, _ := json.Marshal(seed.Roles)
	permissions, _ := json.Marshal(seed.Permissions)
	now := time.Now().UTC()

	const stmt = `INSERT INTO users (id, org_id, email, password_hash, roles, permissions, disabled, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON DUPLICATE KEY UPDATE org_id = VALUES(org_id), password_hash = VALUES(password_hash),
        roles = VALUES(roles), permissions = VALUES(permissions), disabled = VALUES(disabled), updated_at = VALUES(updated_at)`
	if _, err := s.db.ExecContext(ctx, stmt,
		uuid.NewString(), seed.OrgID, email, hashed, string(roles), string(permissions),
		seed.Disabled, now, now,
	); err != nil {
		return storageErr(err, "upsert seed user")
	}
	return nil
}

var _ auth.Store = (*AuthStore)(nil)
var _ auth.SeedWriter = (*AuthStore)(nil)

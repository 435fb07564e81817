// Package auth issues and verifies organization scoped bearer tokens
// and enforces them on HTTP handlers.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"machtms/pkg/logger"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
	jwtHeaderJSON    = `{"alg":"HS256","typ":"JWT"}`

	passwordSaltBytes = 16
	apiKeyPrefix      = "mtk_"
)

var encodedJWTHeader = base64.RawURLEncoding.EncodeToString([]byte(jwtHeaderJSON))

// Service authenticates requests and issues tokens.
type Service struct {
	store Store
	jwt   *jwtManager
	audit *slog.Logger
}

// NewService builds the token service and applies bootstrap seeds.
func NewService(ctx context.Context, cfg Config, store Store) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth requires a user store")
	}
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, errors.New("token secret must be configured")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = time.Hour
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 24 * time.Hour
	}

	svc := &Service{
		store: store,
		audit: logger.Audit(),
		jwt: &jwtManager{
			secret:     []byte(cfg.Secret),
			issuer:     cfg.Issuer,
			accessTTL:  cfg.AccessTTL,
			refreshTTL: cfg.RefreshTTL,
		},
	}

	if ctx == nil {
		ctx = context.Background()
	}
	if len(cfg.Seeds) > 0 {
		if writer, ok := store.(SeedWriter); ok {
			for _, seed := range cfg.Seeds {
				if err := writer.ApplySeed(ctx, seed); err != nil {
					return nil, fmt.Errorf("apply seed %s: %w", seed.Email, err)
				}
			}
		}
	}
	return svc, nil
}

// Authenticate verifies credentials and issues a token pair.
func (s *Service) Authenticate(ctx context.Context, req TokenRequest) (*TokenPair, error) {
	user, err := s.store.FindUserByEmail(ctx, strings.TrimSpace(strings.ToLower(req.Email)))
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if user.Disabled {
		return nil, ErrSubjectRevoked
	}
	if !verifyPassword(user.PasswordHash, req.Password) {
		return nil, ErrInvalidCredentials
	}
	subject, err := s.store.LoadSubject(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("load subject: %w", err)
	}
	if subject.Disabled {
		return nil, ErrSubjectRevoked
	}
	pair, err := s.jwt.Generate(subject)
	if err != nil {
		return nil, err
	}
	pair.Subject = subject.Clone()
	s.audit.Info("token_issued", "user", subject.Email, "org_id", subject.OrgID)
	return pair, nil
}

// Refresh exchanges a valid refresh token for a new pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.jwt.Verify(refreshToken)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != tokenTypeRefresh {
		return nil, ErrInvalidToken
	}
	subject, err := s.store.LoadSubject(ctx, claims.Subject)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if subject.Disabled {
		return nil, ErrSubjectRevoked
	}
	pair, err := s.jwt.Generate(subject)
	if err != nil {
		return nil, err
	}
	pair.Subject = subject.Clone()
	return pair, nil
}

// AuthenticateRequest resolves an Authorization header to a subject.
// Both "Bearer <jwt>" and "ApiKey <key>" schemes are accepted.
func (s *Service) AuthenticateRequest(ctx context.Context, authorization string) (*Subject, error) {
	parts := strings.SplitN(strings.TrimSpace(authorization), " ", 2)
	if len(parts) != 2 {
		return nil, ErrMissingToken
	}
	credential := strings.TrimSpace(parts[1])
	if credential == "" {
		return nil, ErrMissingToken
	}
	switch {
	case strings.EqualFold(parts[0], "bearer"):
		return s.verifyAccessToken(ctx, credential)
	case strings.EqualFold(parts[0], "apikey"):
		return s.verifyAPIKey(ctx, credential)
	default:
		return nil, ErrMissingToken
	}
}

func (s *Service) verifyAccessToken(ctx context.Context, token string) (*Subject, error) {
	claims, err := s.jwt.Verify(token)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != tokenTypeAccess {
		return nil, ErrInvalidToken
	}
	subject, err := s.store.LoadSubject(ctx, claims.Subject)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if subject.Disabled {
		return nil, ErrSubjectRevoked
	}
	subject.normalize()
	return subject, nil
}

func (s *Service) verifyAPIKey(ctx context.Context, key string) (*Subject, error) {
	if !strings.HasPrefix(key, apiKeyPrefix) {
		return nil, ErrInvalidToken
	}
	apiKey, err := s.store.FindAPIKey(ctx, key)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if apiKey.Disabled {
		return nil, ErrSubjectRevoked
	}
	subject := &Subject{
		OrgID: apiKey.OrgID,
		Email: apiKey.Label,
		Roles: []string{"api"},
	}
	subject.normalize()
	return subject, nil
}

type jwtManager struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

type jwtClaims struct {
	Email       string   `json:"email,omitempty"`
	OrgID       string   `json:"org_id"`
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	TokenType   string   `json:"type"`
	Subject     string   `json:"sub"`
	Issuer      string   `json:"iss,omitempty"`
	IssuedAt    int64    `json:"iat,omitempty"`
	ExpiresAt   int64    `json:"exp,omitempty"`
}

// Generate signs an access and refresh token pair for the subject.
func (m *jwtManager) Generate(subject *Subject) (*TokenPair, error) {
	if subject == nil {
		return nil, errors.New("subject required")
	}
	subject.normalize()
	now := time.Now().Unix()

	accessClaims := jwtClaims{
		Email:       subject.Email,
		OrgID:       subject.OrgID,
		Roles:       append([]string(nil), subject.Roles...),
		Permissions: append([]string(nil), subject.Permissions...),
		TokenType:   tokenTypeAccess,
		Subject:     subject.UserID,
		Issuer:      m.issuer,
		IssuedAt:    now,
		ExpiresAt:   now + int64(m.accessTTL.Seconds()),
	}
	refreshClaims := jwtClaims{
		Email:     subject.Email,
		OrgID:     subject.OrgID,
		TokenType: tokenTypeRefresh,
		Subject:   subject.UserID,
		Issuer:    m.issuer,
		IssuedAt:  now,
		ExpiresAt: now + int64(m.refreshTTL.Seconds()),
	}

	accessToken, err := m.sign(accessClaims)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	refreshToken, err := m.sign(refreshClaims)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}
	return &TokenPair{
		AccessToken:      accessToken,
		ExpiresIn:        int64(m.accessTTL.Seconds()),
		RefreshToken:     refreshToken,
		RefreshExpiresIn: int64(m.refreshTTL.Seconds()),
		TokenType:        "Bearer",
	}, nil
}

func (m *jwtManager) sign(claims jwtClaims) (string, error) {
	payloadBytes, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("encode claims: %w", err)
	}
	payload := base64.RawURLEncoding.EncodeToString(payloadBytes)
	signature := m.signature(encodedJWTHeader, payload)
	return strings.Join([]string{
		encodedJWTHeader,
		payload,
		base64.RawURLEncoding.EncodeToString(signature),
	}, "."), nil
}

func (m *jwtManager) signature(header, payload string) []byte {
	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(header))
	mac.Write([]byte("."))
	mac.Write([]byte(payload))
	return mac.Sum(nil)
}

// Verify checks the signature and expiry and returns the claims.
func (m *jwtManager) Verify(token string) (*jwtClaims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, ErrInvalidToken
	}
	expected := m.signature(parts[0], parts[1])
	actual, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, ErrInvalidToken
	}
	if subtle.ConstantTimeCompare(expected, actual) != 1 {
		return nil, ErrInvalidToken
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, ErrInvalidToken
	}
	var claims jwtClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, ErrInvalidToken
	}

	now := time.Now().Unix()
	if claims.ExpiresAt != 0 && now > claims.ExpiresAt {
		return nil, ErrInvalidToken
	}
	if m.issuer != "" && claims.Issuer != "" && !strings.EqualFold(m.issuer, claims.Issuer) {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

// HashPassword hashes a password with a random salt.
func HashPassword(password string) (string, error) {
	if strings.TrimSpace(password) == "" {
		return "", errors.New("password cannot be empty")
	}
	salt := make([]byte, passwordSaltBytes)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	digest := sha256.Sum256(append(salt, []byte(password)...))
	encodedSalt := base64.RawStdEncoding.EncodeToString(salt)
	encodedDigest := base64.RawStdEncoding.EncodeToString(digest[:])
	return encodedSalt + ":" + encodedDigest, nil
}

func verifyPassword(hashed, password string) bool {
	if hashed == "" {
		return false
	}
	parts := strings.SplitN(hashed, ":", 2)
	if len(parts) != 2 {
		return false
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[0])
	if err != nil {
		return false
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[1])
	if err != nil {
		return false
	}
	digest := sha256.Sum256(append(salt, []byte(password)...))
	return subtle.ConstantTimeCompare(expected, digest[:]) == 1
}

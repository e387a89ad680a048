package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/noah-isme/pcquote-api/internal/common"
)

const (
	defaultTokenTTL = 30 * time.Minute

	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeUnauthorized       = "UNAUTHORIZED"
)

// Service checks the configured admin credential and issues session tokens.
type Service struct {
	username  string
	hash      string
	secret    []byte
	ttl       time.Duration
	now       func() time.Time
	validator TokenValidator
}

// Config configures the auth service. PasswordHash is an argon2id hash.
type Config struct {
	Username     string
	PasswordHash string
	Secret       string
	TokenTTL     time.Duration
	Issuer       string
	Audience     string
	ClockSkew    time.Duration
}

// LoginResult is returned after a successful login.
type LoginResult struct {
	Username  string    `json:"username"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// HashPassword produces an argon2id hash suitable for Config.PasswordHash.
func HashPassword(password string) (string, error) {
	return argon2id.CreateHash(password, argon2id.DefaultParams)
}

// NewService constructs a Service.
func NewService(cfg Config) (*Service, error) {
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errors.New("auth: secret is required")
	}
	username := strings.TrimSpace(cfg.Username)
	if username == "" {
		return nil, errors.New("auth: admin username is required")
	}
	if _, _, _, err := argon2id.DecodeHash(cfg.PasswordHash); err != nil {
		return nil, fmt.Errorf("auth: admin password hash: %w", err)
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = "pcquote-api"
	}
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		audience = "pcquote-admin"
	}
	skew := cfg.ClockSkew
	if skew < 0 {
		skew = 0
	}
	return &Service{
		username: username,
		hash:     cfg.PasswordHash,
		secret:   []byte(secret),
		ttl:      ttl,
		now:      time.Now,
		validator: TokenValidator{
			Issuer:    issuer,
			Audience:  audience,
			Scope:     ScopeCatalogAdmin,
			ClockSkew: skew,
			Algorithm: jwa.HS256,
		},
	}, nil
}

// WithNow allows tests to override the time provider.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Login verifies the admin credential and signs a session token.
func (s *Service) Login(_ context.Context, username, password string) (LoginResult, error) {
	userOK := subtle.ConstantTimeCompare([]byte(strings.TrimSpace(username)), []byte(s.username)) == 1
	passOK, err := argon2id.ComparePasswordAndHash(password, s.hash)
	if err != nil || !userOK || !passOK || password == "" {
		return LoginResult{}, invalidCredentials()
	}
	token, expiresAt, err := s.sign()
	if err != nil {
		return LoginResult{}, fmt.Errorf("sign admin token: %w", err)
	}
	return LoginResult{Username: s.username, Token: token, ExpiresAt: expiresAt}, nil
}

// ParseToken validates a session token and returns the admin session.
func (s *Service) ParseToken(token string) (common.Session, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return common.Session{}, unauthorized("missing token", nil)
	}
	algorithm, err := tokenAlgorithm(trimmed)
	if err != nil {
		return common.Session{}, unauthorized("invalid token", err)
	}
	if algorithm != s.validator.Algorithm {
		return common.Session{}, unauthorized("invalid token", fmt.Errorf("unexpected token algorithm %s", algorithm))
	}
	parsed, err := jwt.ParseString(trimmed, jwt.WithKey(algorithm, s.secret), jwt.WithValidate(false))
	if err != nil {
		return common.Session{}, unauthorized("invalid token", err)
	}
	v := s.validator
	v.Subject = s.username
	if err := v.Validate(parsed, algorithm, s.now()); err != nil {
		return common.Session{}, unauthorized("invalid token", err)
	}
	return common.Session{Username: parsed.Subject(), IssuedAt: parsed.IssuedAt(), ExpiresAt: parsed.Expiration()}, nil
}

func (s *Service) sign() (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)
	tok, err := jwt.NewBuilder().
		Subject(s.username).
		Issuer(s.validator.Issuer).
		Audience([]string{s.validator.Audience}).
		IssuedAt(now).
		NotBefore(now.Add(-s.validator.ClockSkew)).
		Expiration(expiresAt).
		Claim(ScopeClaim, ScopeCatalogAdmin).
		Build()
	if err != nil {
		return "", time.Time{}, err
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, s.secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return string(signed), expiresAt, nil
}

func invalidCredentials() error {
	return common.NewAppError(CodeInvalidCredentials, "invalid username or password", http.StatusUnauthorized, nil)
}

func unauthorized(message string, err error) error {
	return common.NewAppError(CodeUnauthorized, message, http.StatusUnauthorized, err)
}

package auth

import (
	"crypto/subtle"
	"errors"
	"time"

	"cart-recovery/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// OperatorName is the identity stamped on every issued token.
const OperatorName = "operator"

// ErrBadPassword rejects a login attempt.
var ErrBadPassword = errors.New("invalid password")

type Manager struct {
	secret     []byte
	password   string
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewManager(cfg config.AuthConfig) (*Manager, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if cfg.DashboardPassword == "" {
		return nil, errors.New("DASHBOARD_PASSWORD is required")
	}

	return &Manager{
		secret:     []byte(cfg.JWTSecret),
		password:   cfg.DashboardPassword,
		issuer:     cfg.JWTIssuer,
		audience:   cfg.JWTAudience,
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
	}, nil
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Login checks the dashboard password in constant time and issues a token
// pair on success.
func (m *Manager) Login(now time.Time, password string) (TokenPair, error) {
	if subtle.ConstantTimeCompare([]byte(password), []byte(m.password)) != 1 {
		return TokenPair{}, ErrBadPassword
	}
	return m.IssuePair(now)
}

// Refresh exchanges a valid refresh token for a fresh pair.
func (m *Manager) Refresh(now time.Time, refreshToken string) (TokenPair, error) {
	if _, err := m.Verify(refreshToken, TokenTypeRefresh, now); err != nil {
		return TokenPair{}, err
	}
	return m.IssuePair(now)
}

func (m *Manager) IssuePair(now time.Time) (TokenPair, error) {
	access, err := m.issue(now, TokenTypeAccess, m.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := m.issue(now, TokenTypeRefresh, m.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (m *Manager) Verify(tokenString string, expected TokenType, now time.Time) (Claims, error) {
	var claims Claims

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	)

	_, err := parser.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil {
		return Claims{}, err
	}

	opts := []jwt.ParserOption{
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithLeeway(30 * time.Second), // clock skew tolerance
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}
	if m.audience != "" {
		opts = append(opts, jwt.WithAudience(m.audience))
	}

	validator := jwt.NewValidator(opts...)
	if err := validator.Validate(claims.RegisteredClaims); err != nil {
		return Claims{}, err
	}

	if claims.TokenType != expected {
		return Claims{}, errors.New("token_type mismatch")
	}
	if claims.Operator == "" {
		return Claims{}, errors.New("operator missing")
	}

	return claims, nil
}

func (m *Manager) issue(now time.Time, tokenType TokenType, ttl time.Duration) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Audience:  audienceOrNil(m.audience),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		Operator:  OperatorName,
		TokenType: tokenType,
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(m.secret)
}

func audienceOrNil(aud string) jwt.ClaimStrings {
	if aud == "" {
		return nil
	}
	return jwt.ClaimStrings{aud}
}

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lorrc/support-chat-gateway/internal/core/domain"
	apperrors "github.com/lorrc/support-chat-gateway/internal/core/errors"
	"github.com/lorrc/support-chat-gateway/internal/core/ports"
)

// Claims defines the structured data carried in the JWT.
// The subject is the user's stable external ID.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

type TokenManager struct {
	secretKey []byte
	ttl       time.Duration
	issuer    string
}

var _ ports.TokenVerifier = (*TokenManager)(nil)

// Option configures a TokenManager.
type Option func(*TokenManager)

// WithIssuer requires and stamps the given issuer.
func WithIssuer(issuer string) Option {
	return func(tm *TokenManager) { tm.issuer = issuer }
}

func NewTokenManager(secret string, ttl time.Duration, opts ...Option) *TokenManager {
	if ttl <= 0 {
		ttl = time.Hour
	}
	tm := &TokenManager{secretKey: []byte(secret), ttl: ttl}
	for _, opt := range opts {
		opt(tm)
	}
	return tm
}

// GenerateToken creates a signed access token for the identity.
// Tokens are normally issued by the identity provider; this exists for local
// development and tests.
func (tm *TokenManager) GenerateToken(identity domain.Identity) (string, error) {
	now := time.Now()
	claims := &Claims{
		Email: identity.Email,
		Role:  string(identity.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UserID,
			Issuer:    tm.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tm.secretKey)
}

// ValidateToken parses and validates the token string
func (tm *TokenManager) ValidateToken(tokenString string) (*Claims, error) {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if tm.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(tm.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secretKey, nil
	}, parserOpts...)

	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}

// Verify validates the credential and maps its claims to an Identity.
func (tm *TokenManager) Verify(credential string) (domain.Identity, error) {
	claims, err := tm.ValidateToken(credential)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %w", apperrors.ErrInvalidCredential, err)
	}
	return claims.Identity()
}

// Identity extracts the identity carried by the claims.
func (c *Claims) Identity() (domain.Identity, error) {
	if c.Subject == "" {
		return domain.Identity{}, fmt.Errorf("%w: %w", apperrors.ErrInvalidCredential, apperrors.ErrUserIDRequired)
	}
	role, err := domain.ParseRole(c.Role)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %w", apperrors.ErrInvalidCredential, err)
	}
	return domain.Identity{
		UserID: c.Subject,
		Email:  c.Email,
		Role:   role,
	}, nil
}

package auth

// API TOKENS:
// Browsers authenticate with the session cookie. Scripts and CLI clients can
// instead trade a logged-in session for a short-lived JWT at POST /api/token
// and send it as "Authorization: Bearer <token>".
//
// The token carries the whole normalized user (id, name, email), so API
// middleware needs no session lookup to rebuild it.
//
// JWT STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: {"alg":"HS256","typ":"JWT"}
//	- Payload: {"sub":"github|5987806","name":"...","email":"...","exp":...}
//	- Signature: HMAC-SHA256(header+"."+payload, secretKey)

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sakif/todo-app/internal/model"
)

const tokenIssuer = "todo-app"

// TokenService handles JWT creation and validation.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService with the given secret and token
// lifetime. The secret should be at least 32 bytes of random data in
// production, e.g. JWT_SECRET=$(openssl rand -hex 32).
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

// claims is the JWT payload. The user id goes in the standard "sub" claim.
type claims struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Generate signs a token for user with the service's TTL and returns it
// with its expiry.
func (s *TokenService) Generate(user model.User) (string, time.Time, error) {
	return s.GenerateWithDuration(user, s.ttl)
}

// GenerateWithDuration signs a token with a custom lifetime. Tests use it to
// mint already-expired tokens.
func (s *TokenService) GenerateWithDuration(user model.User, d time.Duration) (string, time.Time, error) {
	if user.ID == "" {
		return "", time.Time{}, errors.New("auth: cannot issue a token without a user id")
	}
	now := time.Now()
	expiresAt := now.Add(d)

	c := claims{
		Name:  user.Name,
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Issuer:    tokenIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, expiresAt, nil
}

// Validate parses and verifies a JWT string and returns the user it was
// issued for.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - Signature is valid
//   - Token is not expired, and has an expiry at all
//   - Issuer is "todo-app"
//   - Algorithm is HS256, which rules out "none" and algorithm confusion
func (s *TokenService) Validate(tokenStr string) (*model.User, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("auth: token expired")
		}
		return nil, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("auth: invalid token claims")
	}
	if c.Subject == "" {
		return nil, fmt.Errorf("auth: token has no subject")
	}

	return &model.User{ID: c.Subject, Name: c.Name, Email: c.Email}, nil
}

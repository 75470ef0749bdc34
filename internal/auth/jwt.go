package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stellr/server/internal/errs"
	"github.com/stellr/server/internal/model"
)

// DefaultSessionTTL is how long an issued session token stays valid.
const DefaultSessionTTL = 7 * 24 * time.Hour

// SessionClaims represents the session token claims
type SessionClaims struct {
	UserID uuid.UUID `json:"sub"`
	Email  string    `json:"email,omitempty"`
	Phone  string    `json:"phone,omitempty"`
	jwt.RegisteredClaims
}

// JWTService issues and validates stateless session tokens. Validity is
// purely signature + expiry; there is no server-side session store.
type JWTService struct {
	secret []byte
	ttl    time.Duration
}

// NewJWTService creates a new JWT service
func NewJWTService(secret string, ttl time.Duration) *JWTService {
	return &JWTService{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

// Issue creates a signed session token carrying the identity's claims
func (s *JWTService) Issue(ident model.Identity) (string, error) {
	now := time.Now()
	claims := &SessionClaims{
		UserID: ident.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	if ident.Email != nil {
		claims.Email = *ident.Email
	}
	if ident.Phone != nil {
		claims.Phone = *ident.Phone
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// Validate verifies signature and expiry. Any malformed, tampered, or
// expired token comes back as errs.ErrInvalidToken; expired sessions are
// routine, so the detail of why is deliberately not surfaced.
func (s *JWTService) Validate(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, errs.ErrInvalidToken
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, errs.ErrInvalidToken
	}

	return claims, nil
}

// Refresh validates the token and issues a fresh one for the same identity
// with a new expiry. No re-authentication: holding a valid token is the
// trust boundary here.
func (s *JWTService) Refresh(tokenString string) (string, error) {
	claims, err := s.Validate(tokenString)
	if err != nil {
		return "", err
	}

	ident := model.Identity{ID: claims.UserID}
	if claims.Email != "" {
		ident.Email = &claims.Email
	}
	if claims.Phone != "" {
		ident.Phone = &claims.Phone
	}
	return s.Issue(ident)
}

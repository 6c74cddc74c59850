package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"rollcall/pkg/types"
)

// Claims is the signed token payload.
type Claims struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies HS256 tokens. It implements
// interfaces.IdentityVerifier.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService returns a service signing with secret. A zero ttl issues
// tokens without expiry.
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	return &TokenService{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// Issue signs a token carrying the user's id and role.
func (s *TokenService) Issue(user *types.User) (string, error) {
	now := s.now()
	claims := Claims{
		UserID: user.ID,
		Role:   string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  user.ID,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if s.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.ttl))
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("error signing token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature, expiry and payload of a token.
func (s *TokenService) Verify(tokenString string) (types.Identity, error) {
	if tokenString == "" {
		return types.Identity{}, ErrMissingToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return types.Identity{}, ErrTokenExpired
		}
		return types.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return types.Identity{}, ErrInvalidToken
	}

	if !types.IsValidID(claims.UserID) {
		return types.Identity{}, fmt.Errorf("%w: missing user id", ErrInvalidToken)
	}
	role, err := types.ParseRole(claims.Role)
	if err != nil {
		return types.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	return types.Identity{UserID: claims.UserID, Role: role}, nil
}

// BearerToken extracts a credential from the Authorization header, falling
// back to the token query parameter used by browser websocket clients.
func BearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if strings.HasPrefix(header, "Bearer ") {
			return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// Claims is what the rest of the system knows about a verified caller.
type Claims struct {
	Subject string
	Email   string
	Name    string
	Phone   string
	Role    string
}

type Verifier interface {
	Verify(ctx context.Context, token string) (*Claims, error)
}

type Issuer interface {
	Issue(c Claims) (token string, expiresAt time.Time, err error)
}

type tokenClaims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	Phone string `json:"phoneNumber,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// JWT signs and verifies HS256 tokens with a shared secret.
type JWT struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewJWT(secret string, ttl time.Duration) *JWT {
	return &JWT{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (j *JWT) Issue(c Claims) (string, time.Time, error) {
	now := j.now()
	exp := now.Add(j.ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		Email: c.Email,
		Name:  c.Name,
		Phone: c.Phone,
		Role:  c.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})

	signed, err := token.SignedString(j.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

func (j *JWT) Verify(_ context.Context, raw string) (*Claims, error) {
	if raw == "" {
		return nil, ErrMissingToken
	}

	var tc tokenClaims
	token, err := jwt.ParseWithClaims(raw, &tc, func(t *jwt.Token) (any, error) {
		return j.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || tc.Subject == "" {
		return nil, ErrInvalidToken
	}

	return &Claims{
		Subject: tc.Subject,
		Email:   tc.Email,
		Name:    tc.Name,
		Phone:   tc.Phone,
		Role:    tc.Role,
	}, nil
}

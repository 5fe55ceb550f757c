package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const serviceAudience = "delifood-services"

// ServiceClaims identifies a calling service. It carries no permission set.
type ServiceClaims struct {
	jwt.RegisteredClaims
}

// ServiceTokens signs and verifies HS256 service-to-service tokens.
type ServiceTokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewServiceTokens builds a signer/verifier pair around secret.
func NewServiceTokens(secret string, ttl time.Duration) (*ServiceTokens, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrWeakSecret
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ServiceTokens{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Sign issues a token naming service as subject.
func (s *ServiceTokens) Sign(service string) (string, error) {
	now := s.now()
	claims := ServiceClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   service,
			Audience:  jwt.ClaimStrings{serviceAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("token: sign service token: %w", err)
	}
	return signed, nil
}

// Verify parses raw and returns its claims.
func (s *ServiceTokens) Verify(raw string) (ServiceClaims, error) {
	var claims ServiceClaims
	parsed, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithAudience(serviceAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return ServiceClaims{}, errors.Join(ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return ServiceClaims{}, ErrInvalidToken
	}
	return claims, nil
}

package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/streakup/habit-tracker/internal/core/domain"
)

const defaultTokenTTL = 24 * time.Hour

// TokenService signs HS256 JWTs whose subject is the username. Validity is
// decided by signature and expiry alone; nothing is stored server-side.
type TokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService returns a TokenService. now may be nil, in which case
// time.Now is used.
func NewTokenService(secret, issuer string, ttl time.Duration, now func() time.Time) *TokenService {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	if now == nil {
		now = time.Now
	}
	return &TokenService{secret: []byte(secret), issuer: issuer, ttl: ttl, now: now}
}

// Issue returns a signed token for username together with its expiry.
// JWT dates carry whole seconds, so the issue time is truncated first and the
// returned expiry matches the one embedded in the token.
func (s *TokenService) Issue(username string) (string, time.Time, error) {
	issuedAt := s.now().Truncate(time.Second)
	expiresAt := issuedAt.Add(s.ttl)

	claims := jwt.RegisteredClaims{
		Subject:   username,
		Issuer:    s.issuer,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Validate checks signature, algorithm, issuer and expiry and returns the
// subject. A token is rejected from the instant now reaches its expiry.
func (s *TokenService) Validate(token string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		return "", errors.Join(domain.ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return "", domain.ErrInvalidToken
	}
	return claims.Subject, nil
}

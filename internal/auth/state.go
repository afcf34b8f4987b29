package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// StateTTL is how long an issued state parameter stays valid.
	StateTTL = 10 * time.Minute

	// MinSecretLength is the minimum HMAC secret length in bytes.
	MinSecretLength = 32

	stateSubject = "oauth-state"
)

// ErrInvalidState is returned for a state parameter that was not issued by
// this signer or has expired.
var ErrInvalidState = errors.New("invalid state parameter")

// StateSigner issues self-verifying state parameters so the server-side
// browser flow needs no session storage.
type StateSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewStateSigner creates a signer with the given HMAC secret.
func NewStateSigner(secret string) (*StateSigner, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("state secret must be at least %d characters", MinSecretLength)
	}
	return &StateSigner{secret: []byte(secret), ttl: StateTTL, now: time.Now}, nil
}

// RandomSecret returns a fresh hex-encoded secret suitable for NewStateSigner.
func RandomSecret() (string, error) {
	buf := make([]byte, MinSecretLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate state secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// WithClock overrides the time source.
func (s *StateSigner) WithClock(now func() time.Time) *StateSigner {
	s.now = now
	return s
}

// Issue returns a new signed state parameter.
func (s *StateSigner) Issue() (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   stateSubject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign state: %w", err)
	}
	return signed, nil
}

// Verify checks a state parameter returned by the provider.
func (s *StateSigner) Verify(state string) error {
	if state == "" {
		return ErrInvalidState
	}

	token, err := jwt.ParseWithClaims(state, &jwt.RegisteredClaims{},
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
		jwt.WithSubject(stateSubject),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if !token.Valid {
		return ErrInvalidState
	}
	return nil
}

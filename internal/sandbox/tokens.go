package sandbox

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// approvalClaims is the payload of an approval link.
type approvalClaims struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	BusinessName string `json:"businessName"`
	jwt.RegisteredClaims
}

// Signer issues and verifies HS256 approval tokens.
type Signer struct {
	secret []byte
	ttl    time.Duration
}

// NewSigner returns a signer for secret.
func NewSigner(secret string, ttl time.Duration) *Signer {
	return &Signer{secret: []byte(secret), ttl: ttl}
}

// Sign issues a token naming the registration.
func (s *Signer) Sign(r Registration, now time.Time) (string, error) {
	claims := approvalClaims{
		Name:         r.DisplayName(),
		Email:        r.Fields["email"],
		BusinessName: r.Fields["businessName"],
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   r.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sandbox: sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry and returns the registration id.
func (s *Signer) Verify(token string, now time.Time) (string, error) {
	claims := &approvalClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
	)
	_, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("sandbox: verify token: %w", err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("sandbox: token has no subject")
	}
	return claims.Subject, nil
}

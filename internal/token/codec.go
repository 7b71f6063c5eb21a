package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Algorithm identifies the HMAC signing algorithm used for both access and
// refresh tokens. The service signs everything with one process-wide secret,
// so only symmetric methods are supported.
type Algorithm string

const (
	AlgHS256 Algorithm = "hs256"
	AlgHS384 Algorithm = "hs384"
	AlgHS512 Algorithm = "hs512"
)

var (
	// ErrMalformed is returned when the token cannot be parsed at all.
	ErrMalformed = errors.New("malformed token")
	// ErrSignature is returned when the token parses but the signature or
	// signing method does not check out.
	ErrSignature = errors.New("invalid token signature")
	// ErrExpired is returned when the token is structurally valid but its
	// exp claim has passed.
	ErrExpired = errors.New("token expired")
)

// Codec issues and verifies signed, time-bounded subject claims. The secret
// is injected at construction; there is no hidden global key.
type Codec struct {
	secret []byte
	method jwt.SigningMethod
}

type claims struct {
	jwt.RegisteredClaims
}

// NewCodec validates the algorithm identifier and returns a ready codec.
func NewCodec(secret []byte, alg Algorithm) (*Codec, error) {
	if len(secret) == 0 {
		return nil, errors.New("token: signing secret must not be empty")
	}

	var method jwt.SigningMethod
	switch alg {
	case AlgHS256, "":
		method = jwt.SigningMethodHS256
	case AlgHS384:
		method = jwt.SigningMethodHS384
	case AlgHS512:
		method = jwt.SigningMethodHS512
	default:
		return nil, errors.New("token: unsupported signing algorithm")
	}

	return &Codec{secret: secret, method: method}, nil
}

// Issue signs a {sub, exp, iat} claim bundle for the given subject. Two
// calls at different instants always produce different tokens because exp
// and iat move with the wall clock.
func (c *Codec) Issue(subject string, lifetime time.Duration) (string, error) {
	if lifetime <= 0 {
		return "", errors.New("token: lifetime must be positive")
	}

	now := time.Now()
	tok := jwt.NewWithClaims(c.method, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(lifetime)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	})

	return tok.SignedString(c.secret)
}

// Verify checks signature integrity and expiry and returns the embedded
// subject. Expiry is strict: no leeway is configured.
func (c *Codec) Verify(tokenStr string) (string, error) {
	subject, _, err := c.Inspect(tokenStr)
	return subject, err
}

// Inspect performs the same verification as Verify and additionally
// returns the token's expiry, which revocation uses to size TTLs.
func (c *Codec) Inspect(tokenStr string) (string, time.Time, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{c.method.Alg()}))

	parsed, err := parser.ParseWithClaims(tokenStr, &claims{}, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return "", time.Time{}, ErrExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
			return "", time.Time{}, ErrSignature
		case errors.Is(err, jwt.ErrTokenMalformed):
			return "", time.Time{}, ErrMalformed
		default:
			return "", time.Time{}, ErrSignature
		}
	}

	cl, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid {
		return "", time.Time{}, ErrSignature
	}
	if cl.Subject == "" || cl.ExpiresAt == nil {
		return "", time.Time{}, ErrMalformed
	}

	return cl.Subject, cl.ExpiresAt.Time, nil
}

package queue

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Issuer is the iss claim carried by delivery signatures.
const Issuer = "Upstash"

var (
	// ErrNoSigningKeys is returned when a Verifier has no keys configured.
	ErrNoSigningKeys = errors.New("no signing keys configured")
	// ErrInvalidSignature is returned when no key validates a signature.
	ErrInvalidSignature = errors.New("invalid delivery signature")
)

// deliveryClaims binds a signature to one URL and one body. Body is the
// base64url SHA-256 of the raw request body.
type deliveryClaims struct {
	Body string `json:"body"`
	jwt.RegisteredClaims
}

func bodyHash(body []byte) string {
	sum := sha256.Sum256(body)
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// Signer produces HS256 delivery signatures.
type Signer struct {
	Key string
	TTL time.Duration
	Now func() time.Time
}

// Sign returns a signature for a delivery of body to url.
func (s Signer) Sign(url string, body []byte) (string, error) {
	if strings.TrimSpace(s.Key) == "" {
		return "", ErrNoSigningKeys
	}
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	ttl := s.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	claims := deliveryClaims{
		Body: bodyHash(body),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   url,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.Key))
}

// Verifier checks delivery signatures against a current and a next key.
// Either key is accepted so rotation never opens a delivery gap.
type Verifier struct {
	Keys   []string
	Leeway time.Duration
	Now    func() time.Time
}

// NewVerifier returns a Verifier over the non-empty keys.
func NewVerifier(keys ...string) Verifier {
	v := Verifier{Leeway: 5 * time.Second}
	for _, k := range keys {
		if strings.TrimSpace(k) != "" {
			v.Keys = append(v.Keys, k)
		}
	}
	return v
}

// Verify checks that token was issued for url and body by one of the keys.
func (v Verifier) Verify(token, url string, body []byte) error {
	if len(v.Keys) == 0 {
		return ErrNoSigningKeys
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("%w: missing", ErrInvalidSignature)
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithSubject(url),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.Leeway),
	}
	if v.Now != nil {
		opts = append(opts, jwt.WithTimeFunc(v.Now))
	}
	want := bodyHash(body)

	var lastErr error
	for _, key := range v.Keys {
		var claims deliveryClaims
		_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
			return []byte(key), nil
		}, opts...)
		if err != nil {
			lastErr = err
			continue
		}
		if strings.TrimRight(claims.Body, "=") != want {
			lastErr = errors.New("body hash mismatch")
			continue
		}
		return nil
	}
	return fmt.Errorf("%w: %v", ErrInvalidSignature, lastErr)
}

// Package token encodes and verifies the signed ticket payload that is
// rendered into the attendee's QR code.
//
// A token is a compact HS256 JWS over {ver, evt, sub, jti, iat, exp}.
// The codec checks structure, version and the integrity tag only; it
// does not look at expiry or redemption state, so it can be used by
// anyone holding the secret.
package token

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"

	"github.com/iliyamo/event-checkin/internal/ticket"
)

// Version is the only payload version this codec understands.
const Version = 1

// MinSecretLen is the shortest deployment secret New accepts.
const MinSecretLen = 16

const keyInfo = "checkin-ticket/v1"

// Claims is the decoded ticket payload.
type Claims struct {
	EventID   string
	UserID    string
	Nonce     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type wireClaims struct {
	Version int    `json:"ver"`
	EventID string `json:"evt"`
	jwt.RegisteredClaims
}

// Codec signs and verifies tickets with a key derived from the
// deployment secret.  It is safe for concurrent use and never changes
// after New returns.
type Codec struct {
	key    []byte
	parser *jwt.Parser
}

// New derives the ticket signing key from secret with HKDF-SHA256.
// Deriving keeps the ticket key distinct from the access-token key even
// when operators configure the same value for both.
func New(secret []byte) (*Codec, error) {
	if len(secret) < MinSecretLen {
		return nil, fmt.Errorf("token: secret must be at least %d bytes", MinSecretLen)
	}
	key := make([]byte, sha256.Size)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(keyInfo)), key); err != nil {
		return nil, fmt.Errorf("token: derive key: %w", err)
	}
	return &Codec{
		key: key,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithStrictDecoding(),
			jwt.WithoutClaimsValidation(),
		),
	}, nil
}

// Encode serializes c and appends the HMAC tag.
func (k *Codec) Encode(c Claims) (string, error) {
	if c.EventID == "" || c.UserID == "" || c.Nonce == "" {
		return "", errors.New("token: event, user and nonce are required")
	}
	if !c.ExpiresAt.After(c.IssuedAt) {
		return "", errors.New("token: expiry must be after issuance")
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, wireClaims{
		Version: Version,
		EventID: c.EventID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.UserID,
			ID:        c.Nonce,
			IssuedAt:  jwt.NewNumericDate(c.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(c.ExpiresAt),
		},
	})
	signed, err := t.SignedString(k.key)
	if err != nil {
		return "", fmt.Errorf("token: sign: %w", err)
	}
	return signed, nil
}

// Decode verifies the tag and returns the payload.  Every failure is
// reported as ticket.ErrInvalidToken; the cause is kept for logging.
func (k *Codec) Decode(raw string) (Claims, error) {
	var wc wireClaims
	tok, err := k.parser.ParseWithClaims(raw, &wc, func(*jwt.Token) (interface{}, error) {
		return k.key, nil
	})
	if err != nil {
		return Claims{}, invalid(err)
	}
	if !tok.Valid {
		return Claims{}, invalid(errors.New("signature rejected"))
	}
	if wc.Version != Version {
		return Claims{}, invalid(fmt.Errorf("unknown version %d", wc.Version))
	}
	if wc.EventID == "" || wc.Subject == "" || wc.ID == "" || wc.IssuedAt == nil || wc.ExpiresAt == nil {
		return Claims{}, invalid(errors.New("missing claims"))
	}
	c := Claims{
		EventID:   wc.EventID,
		UserID:    wc.Subject,
		Nonce:     wc.ID,
		IssuedAt:  wc.IssuedAt.Time.UTC(),
		ExpiresAt: wc.ExpiresAt.Time.UTC(),
	}
	if !c.ExpiresAt.After(c.IssuedAt) {
		return Claims{}, invalid(errors.New("expiry not after issuance"))
	}
	return c, nil
}

func invalid(cause error) error {
	return &ticket.Error{
		Kind:    ticket.KindInvalidToken,
		Message: ticket.ErrInvalidToken.Message,
		Err:     cause,
	}
}

package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	sealVersion = "d1"
	saltSize    = 16
	keyInfo     = "delifood sealed token v1"

	// MinSecretLength is the shortest secret accepted for sealing.
	MinSecretLength = 32
)

var (
	// ErrInvalidToken is returned for malformed, truncated or forged tokens.
	ErrInvalidToken = errors.New("token: invalid")
	// ErrWeakSecret is returned when the sealing secret is too short.
	ErrWeakSecret = fmt.Errorf("token: secret must be at least %d bytes", MinSecretLength)
)

var b64 = base64.RawURLEncoding.Strict()

// Codec seals payloads with XChaCha20-Poly1305 under a per-token key derived
// from the shared secret and a random salt. The version, salt and nonce are
// bound to the ciphertext as associated data.
type Codec struct {
	secret []byte
	rand   io.Reader
}

// NewCodec builds a Codec from a shared secret.
func NewCodec(secret string) (*Codec, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrWeakSecret
	}
	return &Codec{secret: []byte(secret), rand: rand.Reader}, nil
}

// IsSealed reports whether raw has the shape of a sealed token. It does not
// verify anything.
func IsSealed(raw string) bool {
	return strings.HasPrefix(raw, sealVersion+".")
}

// Seal serializes and encrypts p into an opaque URL-safe string.
func (c *Codec) Seal(p Payload) (string, error) {
	plaintext, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("token: encode payload: %w", err)
	}
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(c.rand, salt); err != nil {
		return "", fmt.Errorf("token: read salt: %w", err)
	}
	aead, err := c.aead(salt)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(c.rand, nonce); err != nil {
		return "", fmt.Errorf("token: read nonce: %w", err)
	}
	header := sealVersion + "." + b64.EncodeToString(salt) + "." + b64.EncodeToString(nonce)
	sealed := aead.Seal(nil, nonce, plaintext, []byte(header))
	return header + "." + b64.EncodeToString(sealed), nil
}

// Unseal verifies and decodes a token produced by Seal. It does not check
// expiry; callers compare ExpiresAt against their clock.
func (c *Codec) Unseal(raw string) (Payload, error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 4 || parts[0] != sealVersion {
		return Payload{}, ErrInvalidToken
	}
	salt, err := b64.DecodeString(parts[1])
	if err != nil || len(salt) != saltSize {
		return Payload{}, ErrInvalidToken
	}
	nonce, err := b64.DecodeString(parts[2])
	if err != nil || len(nonce) != chacha20poly1305.NonceSizeX {
		return Payload{}, ErrInvalidToken
	}
	sealed, err := b64.DecodeString(parts[3])
	if err != nil || len(sealed) < chacha20poly1305.Overhead {
		return Payload{}, ErrInvalidToken
	}
	aead, err := c.aead(salt)
	if err != nil {
		return Payload{}, ErrInvalidToken
	}
	header := parts[0] + "." + parts[1] + "." + parts[2]
	plaintext, err := aead.Open(nil, nonce, sealed, []byte(header))
	if err != nil {
		return Payload{}, ErrInvalidToken
	}
	var p Payload
	if err := json.Unmarshal(plaintext, &p); err != nil {
		return Payload{}, ErrInvalidToken
	}
	return p, nil
}

func (c *Codec) aead(salt []byte) (interface {
	NonceSize() int
	Seal(dst, nonce, plaintext, additionalData []byte) []byte
	Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
}, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, c.secret, salt, []byte(keyInfo)), key); err != nil {
		return nil, fmt.Errorf("token: derive key: %w", err)
	}
	return chacha20poly1305.NewX(key)
}

// Issuer mints sealed tokens with a fixed lifetime.
type Issuer struct {
	codec *Codec
	ttl   time.Duration
	now   func() time.Time
}

// NewIssuer constructs an Issuer. A non-positive ttl defaults to 24h.
func NewIssuer(codec *Codec, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Issuer{codec: codec, ttl: ttl, now: time.Now}
}

// Issue seals a snapshot of the user's roles and permissions.
func (i *Issuer) Issue(userID string, roles, permissions []string) (string, Payload, error) {
	now := i.now()
	p := Payload{
		User:      User{ID: userID, Roles: roles, Permissions: permissions},
		IssuedAt:  now.UnixMilli(),
		ExpiresAt: now.Add(i.ttl).UnixMilli(),
	}
	raw, err := i.codec.Seal(p)
	if err != nil {
		return "", Payload{}, err
	}
	return raw, p, nil
}

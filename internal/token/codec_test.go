package token

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func samplePayload() Payload {
	return Payload{
		User: User{
			ID:          "u-1",
			Roles:       []string{"r-admin"},
			Permissions: []string{"create:permission", "delete:permission"},
		},
		IssuedAt:  1_700_000_000_000,
		ExpiresAt: 1_700_086_400_000,
	}
}

func TestSealUnsealRoundTrip(t *testing.T) {
	codec, err := NewCodec(testSecret)
	require.NoError(t, err)

	raw, err := codec.Seal(samplePayload())
	require.NoError(t, err)
	assert.True(t, IsSealed(raw))
	assert.NotContains(t, raw, "create:permission")

	got, err := codec.Unseal(raw)
	require.NoError(t, err)
	assert.Equal(t, samplePayload(), got)
}

func TestSealIsRandomized(t *testing.T) {
	codec, err := NewCodec(testSecret)
	require.NoError(t, err)

	a, err := codec.Seal(samplePayload())
	require.NoError(t, err)
	b, err := codec.Seal(samplePayload())
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestUnsealRejectsTampering(t *testing.T) {
	codec, err := NewCodec(testSecret)
	require.NoError(t, err)
	raw, err := codec.Seal(samplePayload())
	require.NoError(t, err)

	for i := range raw {
		replacement := byte('A')
		if raw[i] == 'A' {
			replacement = 'B'
		}
		forged := raw[:i] + string(replacement) + raw[i+1:]
		_, err := codec.Unseal(forged)
		assert.ErrorIs(t, err, ErrInvalidToken, "byte %d", i)
	}
}

func TestUnsealRejectsMalformed(t *testing.T) {
	codec, err := NewCodec(testSecret)
	require.NoError(t, err)
	raw, err := codec.Seal(samplePayload())
	require.NoError(t, err)

	other, err := NewCodec(strings.Repeat("z", MinSecretLength))
	require.NoError(t, err)
	_, err = other.Unseal(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)

	for _, bad := range []string{"", "d1", "d1...", raw[:len(raw)-4], raw + ".x", "Fe26.2**abc"} {
		_, err := codec.Unseal(bad)
		assert.ErrorIs(t, err, ErrInvalidToken, bad)
	}
}

func TestNewCodecRejectsShortSecret(t *testing.T) {
	_, err := NewCodec("short")
	assert.ErrorIs(t, err, ErrWeakSecret)
}

func TestIssuerStampsLifetime(t *testing.T) {
	codec, err := NewCodec(testSecret)
	require.NoError(t, err)
	issuer := NewIssuer(codec, 0)
	now := time.UnixMilli(1_700_000_000_000)
	issuer.now = func() time.Time { return now }

	raw, payload, err := issuer.Issue("u-1", []string{"r-1"}, []string{"get:cart"})
	require.NoError(t, err)
	assert.Equal(t, now.UnixMilli(), payload.IssuedAt)
	assert.Equal(t, now.Add(24*time.Hour).UnixMilli(), payload.ExpiresAt)

	got, err := codec.Unseal(raw)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	assert.False(t, got.Expired(now.Add(24*time.Hour)))
	assert.True(t, got.Expired(now.Add(24*time.Hour+time.Millisecond)))
}

func TestServiceTokens(t *testing.T) {
	svc, err := NewServiceTokens(testSecret, time.Minute)
	require.NoError(t, err)

	raw, err := svc.Sign("cart")
	require.NoError(t, err)
	claims, err := svc.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, "cart", claims.Subject)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = svc.Verify(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)

	other, err := NewServiceTokens(strings.Repeat("q", MinSecretLength), time.Minute)
	require.NoError(t, err)
	_, err = other.Verify(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

package secretbox

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() []byte {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i + 1)
	}
	return key
}

func TestSealOpenRoundTrip(t *testing.T) {
	box, err := New(testKey())
	require.NoError(t, err)

	token, err := box.Seal("sbp_access_token_example")
	require.NoError(t, err)
	assert.Contains(t, token, "v1:")

	plain, err := box.Open(token)
	require.NoError(t, err)
	assert.Equal(t, "sbp_access_token_example", plain)
}

func TestSealUsesFreshNonce(t *testing.T) {
	box, err := New(testKey())
	require.NoError(t, err)

	a, err := box.Seal("same credential")
	require.NoError(t, err)
	b, err := box.Seal("same credential")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestOpenRejectsTamperedToken(t *testing.T) {
	box, err := New(testKey())
	require.NoError(t, err)

	token, err := box.Seal("secret")
	require.NoError(t, err)

	// Flip a byte in the ciphertext body.
	raw, err := base64.StdEncoding.DecodeString(token[len("v1:"):])
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0x01
	tampered := "v1:" + base64.StdEncoding.EncodeToString(raw)

	_, err = box.Open(tampered)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestOpenRejectsUnknownPrefix(t *testing.T) {
	box, err := New(testKey())
	require.NoError(t, err)

	_, err = box.Open("plain-token-without-prefix")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestOpenLegacyXORToken(t *testing.T) {
	key := testKey()
	box, err := New(key)
	require.NoError(t, err)

	plain := "legacy-refresh-token"
	obfuscated := make([]byte, len(plain))
	for i := range plain {
		obfuscated[i] = plain[i] ^ key[i%len(key)]
	}
	token := "xor0:" + base64.StdEncoding.EncodeToString(obfuscated)

	got, err := box.Open(token)
	require.NoError(t, err)
	assert.Equal(t, plain, got)
}

func TestNewRejectsShortKey(t *testing.T) {
	_, err := New([]byte("short"))
	assert.Error(t, err)
}

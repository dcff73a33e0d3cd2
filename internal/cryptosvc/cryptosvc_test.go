package cryptosvc

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCBCRoundTrip(t *testing.T) {
	key := make([]byte, 16)
	plaintext := []byte("fingerprint sensor pairing payload")

	ct, err := EncryptCBC(key, plaintext)
	require.NoError(t, err)

	pt, err := DecryptCBC(key, ct)
	require.NoError(t, err)
	assert.Equal(t, plaintext, pt)
}

func TestDecryptCBCRejectsShortInput(t *testing.T) {
	key := make([]byte, 16)
	_, err := DecryptCBC(key, []byte{1, 2, 3})
	assert.Error(t, err)
}

func TestHMACRoundTrip(t *testing.T) {
	key := []byte("session-key")
	msg := []byte("challenge-response")
	mac := HMACSHA256(key, msg)
	assert.True(t, VerifyHMACSHA256(key, msg, mac))
	assert.False(t, VerifyHMACSHA256(key, msg, append([]byte{}, mac[:len(mac)-1]...)))
}

func TestECDSASignVerify(t *testing.T) {
	key, err := GenerateECDSAKey()
	require.NoError(t, err)

	digest := sha256.Sum256([]byte("device identity"))
	sig, err := SignECDSA(key, digest[:])
	require.NoError(t, err)

	assert.True(t, VerifyECDSA(&key.PublicKey, digest[:], sig))
}

func TestTLS12PRFDeterministic(t *testing.T) {
	secret := []byte("master-secret")
	label := []byte("key expansion")
	seed := []byte("client-server-random")

	a, err := TLS12PRF(secret, label, seed, 32)
	require.NoError(t, err)
	b, err := TLS12PRF(secret, label, seed, 32)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 32)
}

package crypto

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, KeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func TestNewEnvelope_KeySize(t *testing.T) {
	tests := []struct {
		name    string
		keyLen  int
		wantErr bool
	}{
		{name: "256-bit key", keyLen: 32},
		{name: "too short", keyLen: 16, wantErr: true},
		{name: "too long", keyLen: 64, wantErr: true},
		{name: "empty", keyLen: 0, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEnvelope(make([]byte, tt.keyLen))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidKeySize)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestEnvelope_RoundTrip(t *testing.T) {
	env, err := NewEnvelope(testKey(t))
	require.NoError(t, err)

	plaintexts := [][]byte{
		[]byte(""),
		[]byte("x"),
		[]byte(`{"api_key":"sk-live-0000"}`),
		bytes.Repeat([]byte{0x00, 0xff}, 4096),
	}

	for _, plaintext := range plaintexts {
		blob, err := env.Encrypt(plaintext)
		require.NoError(t, err)
		assert.Len(t, blob.IV, NonceSize)
		assert.Len(t, blob.Tag, TagSize)

		got, err := env.Decrypt(blob)
		require.NoError(t, err)
		assert.Equal(t, plaintext, got)
		assert.NotNil(t, got)
	}
}

func TestEnvelope_NonceUniqueness(t *testing.T) {
	env, err := NewEnvelope(testKey(t))
	require.NoError(t, err)

	seen := make(map[string]bool)
	for i := 0; i < 256; i++ {
		blob, err := env.Encrypt([]byte("same plaintext"))
		require.NoError(t, err)
		require.False(t, seen[string(blob.IV)], "nonce reused")
		seen[string(blob.IV)] = true
	}
}

func TestEnvelope_TamperedCiphertextFails(t *testing.T) {
	env, err := NewEnvelope(testKey(t))
	require.NoError(t, err)

	blob, err := env.Encrypt([]byte("credential material"))
	require.NoError(t, err)

	// Flip a single bit in every ciphertext byte position in turn.
	for i := range blob.Ciphertext {
		tampered := &EncryptedBlob{
			Ciphertext: append([]byte(nil), blob.Ciphertext...),
			IV:         blob.IV,
			Tag:        blob.Tag,
		}
		tampered.Ciphertext[i] ^= 0x01

		_, err := env.Decrypt(tampered)
		assert.ErrorIs(t, err, ErrDecryptionFailed)
	}
}

func TestEnvelope_TamperedTagFails(t *testing.T) {
	env, err := NewEnvelope(testKey(t))
	require.NoError(t, err)

	blob, err := env.Encrypt([]byte("credential material"))
	require.NoError(t, err)

	for i := range blob.Tag {
		tampered := &EncryptedBlob{
			Ciphertext: blob.Ciphertext,
			IV:         blob.IV,
			Tag:        append([]byte(nil), blob.Tag...),
		}
		tampered.Tag[i] ^= 0x80

		_, err := env.Decrypt(tampered)
		assert.ErrorIs(t, err, ErrDecryptionFailed)
	}
}

func TestEnvelope_WrongKeyFails(t *testing.T) {
	env1, err := NewEnvelope(testKey(t))
	require.NoError(t, err)
	env2, err := NewEnvelope(testKey(t))
	require.NoError(t, err)

	blob, err := env1.Encrypt([]byte("secret"))
	require.NoError(t, err)

	_, err = env2.Decrypt(blob)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestEnvelope_Decrypt_InvalidBlob(t *testing.T) {
	env, err := NewEnvelope(testKey(t))
	require.NoError(t, err)

	_, err = env.Decrypt(nil)
	assert.ErrorIs(t, err, ErrInvalidBlob)

	_, err = env.Decrypt(&EncryptedBlob{IV: []byte("short"), Tag: make([]byte, TagSize)})
	assert.ErrorIs(t, err, ErrInvalidBlob)

	_, err = env.Decrypt(&EncryptedBlob{IV: make([]byte, NonceSize), Tag: []byte("short")})
	assert.ErrorIs(t, err, ErrInvalidBlob)
}

func TestNewEnvelopeFromSecret(t *testing.T) {
	env1, err := NewEnvelopeFromSecret([]byte("correct horse battery staple"), []byte("salt"))
	require.NoError(t, err)

	// Same secret and salt derive the same key.
	env2, err := NewEnvelopeFromSecret([]byte("correct horse battery staple"), []byte("salt"))
	require.NoError(t, err)

	blob, err := env1.Encrypt([]byte("payload"))
	require.NoError(t, err)

	got, err := env2.Decrypt(blob)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)

	// A different salt derives a different key.
	env3, err := NewEnvelopeFromSecret([]byte("correct horse battery staple"), []byte("other"))
	require.NoError(t, err)
	_, err = env3.Decrypt(blob)
	assert.ErrorIs(t, err, ErrDecryptionFailed)

	_, err = NewEnvelopeFromSecret(nil, nil)
	assert.Error(t, err)
}

func TestConstantTimeEqual(t *testing.T) {
	assert.True(t, ConstantTimeEqual([]byte("abc"), []byte("abc")))
	assert.False(t, ConstantTimeEqual([]byte("abc"), []byte("abd")))
	assert.False(t, ConstantTimeEqual([]byte("abc"), []byte("abcd")))
	assert.True(t, ConstantTimeEqual(nil, nil))
}

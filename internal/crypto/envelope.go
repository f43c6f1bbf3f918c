package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Key and envelope geometry for AES-256-GCM.
const (
	// KeySize is the master key size in bytes (256 bits).
	KeySize = 32

	// NonceSize is the GCM nonce size in bytes (96 bits).
	NonceSize = 12

	// TagSize is the GCM authentication tag size in bytes (128 bits).
	TagSize = 16
)

// Common envelope errors.
var (
	// ErrDecryptionFailed indicates the authentication tag did not verify:
	// the blob was tampered with, corrupted, or sealed under another key.
	ErrDecryptionFailed = errors.New("envelope decryption failed")

	// ErrInvalidKeySize indicates the master key is not 256 bits.
	ErrInvalidKeySize = errors.New("master key must be 32 bytes")

	// ErrInvalidBlob indicates the encrypted blob is structurally invalid.
	ErrInvalidBlob = errors.New("invalid encrypted blob")
)

// EncryptedBlob is the stored form of a sealed secret. Ciphertext, nonce
// and tag are kept as separate fields so storage backends can persist
// them independently.
type EncryptedBlob struct {
	Ciphertext []byte `json:"ciphertext"`
	IV         []byte `json:"iv"`
	Tag        []byte `json:"tag"`
}

// Envelope seals and opens connector secrets with a fixed master key.
// It is safe for concurrent use; both operations are pure functions over
// their inputs and the key.
type Envelope struct {
	aead cipher.AEAD
}

// NewEnvelope creates an envelope service from a 256-bit master key.
func NewEnvelope(masterKey []byte) (*Envelope, error) {
	if len(masterKey) != KeySize {
		return nil, ErrInvalidKeySize
	}

	block, err := aes.NewCipher(masterKey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize GCM: %w", err)
	}

	return &Envelope{aead: aead}, nil
}

// NewEnvelopeFromSecret derives the 256-bit master key from arbitrary
// secret material using HKDF-SHA256 and creates an envelope service.
// Used when the configured master secret is a passphrase or a key of a
// different length.
func NewEnvelopeFromSecret(secret []byte, salt []byte) (*Envelope, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("%w: empty master secret", ErrInvalidKeySize)
	}

	key := make([]byte, KeySize)
	kdf := hkdf.New(sha256.New, secret, salt, []byte("conduit/envelope/v1"))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("failed to derive master key: %w", err)
	}

	return NewEnvelope(key)
}

// Encrypt seals plaintext under the master key with a fresh random nonce.
func (e *Envelope) Encrypt(plaintext []byte) (*EncryptedBlob, error) {
	iv := make([]byte, NonceSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	// Seal appends the tag to the ciphertext; split them for storage.
	sealed := e.aead.Seal(nil, iv, plaintext, nil)
	boundary := len(sealed) - TagSize

	blob := &EncryptedBlob{
		Ciphertext: sealed[:boundary],
		IV:         iv,
		Tag:        sealed[boundary:],
	}
	return blob, nil
}

// Decrypt opens a sealed blob. The tag is verified over the whole
// ciphertext before any plaintext is returned.
func (e *Envelope) Decrypt(blob *EncryptedBlob) ([]byte, error) {
	if blob == nil {
		return nil, ErrInvalidBlob
	}
	if len(blob.IV) != NonceSize {
		return nil, fmt.Errorf("%w: nonce must be %d bytes", ErrInvalidBlob, NonceSize)
	}
	if len(blob.Tag) != TagSize {
		return nil, fmt.Errorf("%w: tag must be %d bytes", ErrInvalidBlob, TagSize)
	}

	sealed := make([]byte, 0, len(blob.Ciphertext)+len(blob.Tag))
	sealed = append(sealed, blob.Ciphertext...)
	sealed = append(sealed, blob.Tag...)

	plaintext, err := e.aead.Open(nil, blob.IV, sealed, nil)
	if err != nil {
		recordDecryptFailure()
		return nil, ErrDecryptionFailed
	}
	if plaintext == nil {
		// Open returns nil for empty plaintext; callers get the same
		// non-nil slice shape they encrypted.
		plaintext = []byte{}
	}

	recordDecryptSuccess()
	return plaintext, nil
}

// ConstantTimeEqual compares two secrets in constant time. Use this
// instead of bytes.Equal anywhere credential material is compared.
func ConstantTimeEqual(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

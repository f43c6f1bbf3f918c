// Package crypto implements the envelope encryption service protecting
// connector credentials. Secrets are sealed with AES-256-GCM under a
// single process-wide master key; every encryption draws a fresh 96-bit
// nonce and produces a 128-bit authentication tag. Decryption is
// all-or-nothing: a failed tag check yields ErrDecryptionFailed and no
// plaintext.
package crypto

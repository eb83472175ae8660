// Package cryptox provides authenticated encryption for wallet secrets held
// at rest, notably seed phrases.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters for deriving the AES key from the service secret.
const (
	saltLength  = 16
	iterations  = 3
	memory      = 64 * 1024 // KiB
	parallelism = 2
	keyLength   = 32
)

// ErrSealedFormat reports a ciphertext that is truncated or not produced by Seal.
var ErrSealedFormat = errors.New("cryptox: malformed sealed blob")

// Seal encrypts plaintext under a key derived from secret with Argon2id and
// AES-256-GCM. A fresh salt and nonce are used per call, so sealing the same
// value twice yields different blobs. The result is base64url encoded as
// salt || nonce || ciphertext.
func Seal(secret []byte, plaintext string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	gcm, err := newGCM(secret, salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	blob := make([]byte, 0, saltLength+len(nonce)+len(plaintext)+gcm.Overhead())
	blob = append(blob, salt...)
	blob = append(blob, nonce...)
	blob = gcm.Seal(blob, nonce, []byte(plaintext), nil)

	return base64.RawURLEncoding.EncodeToString(blob), nil
}

// Open decrypts a blob produced by Seal. Tampered or truncated input fails
// with ErrSealedFormat or a GCM authentication error.
func Open(secret []byte, sealed string) (string, error) {
	blob, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil {
		return "", ErrSealedFormat
	}
	if len(blob) < saltLength {
		return "", ErrSealedFormat
	}
	salt, rest := blob[:saltLength], blob[saltLength:]

	gcm, err := newGCM(secret, salt)
	if err != nil {
		return "", err
	}
	if len(rest) < gcm.NonceSize() {
		return "", ErrSealedFormat
	}
	nonce, ciphertext := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("open sealed blob: %w", err)
	}
	return string(plaintext), nil
}

func newGCM(secret, salt []byte) (cipher.AEAD, error) {
	key := argon2.IDKey(secret, salt, iterations, memory, parallelism, keyLength)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return gcm, nil
}

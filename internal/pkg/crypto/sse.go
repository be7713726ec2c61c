// Package crypto provides cryptographic utilities for Alexander Storage.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// blobKeyInfo is the HKDF "info" parameter binding a derived key to the
// blob it protects, so the same IV against a different content hash never
// derives the same key.
const blobKeyInfo = "alexander-storage/sse-s3/blob"

// NewBlobIV generates a random 16-byte nonce for per-blob key derivation,
// returned base64-encoded for storage in domain.Blob.EncryptionIV.
func NewBlobIV() (string, error) {
	iv := make([]byte, 16)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("failed to generate blob IV: %w", err)
	}
	return base64.StdEncoding.EncodeToString(iv), nil
}

// DeriveBlobKey derives a 32-byte AES-256 key for a single blob from the
// master key, the blob's content hash, and its stored IV using HKDF-SHA256.
// Every blob gets a distinct key even though they all trace back to one
// master key, so compromising one derived key never exposes the master.
func DeriveBlobKey(masterKey []byte, contentHash, encryptionIV string) ([]byte, error) {
	if len(masterKey) != KeySize {
		return nil, ErrInvalidKeySize
	}

	iv, err := base64.StdEncoding.DecodeString(encryptionIV)
	if err != nil {
		return nil, fmt.Errorf("invalid blob IV: %w", err)
	}

	salt := append(iv, []byte(contentHash)...)
	reader := hkdf.New(sha256.New, masterKey, salt, []byte(blobKeyInfo))

	key := make([]byte, KeySize)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("failed to derive blob key: %w", err)
	}
	return key, nil
}

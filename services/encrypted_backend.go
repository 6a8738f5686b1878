package services

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"merchant-docs-platform/internal/logger"
)

const encryptedPrefix = "enc:v1:"

// EncryptedVectorIndex decorates a VectorIndex with AES-256-GCM
// encryption of chunk content at rest. Embeddings stay plaintext; only
// the stored content is encrypted. A record whose content fails to
// decrypt is dropped from query results rather than surfaced corrupted.
type EncryptedVectorIndex struct {
	inner VectorIndex
	aead  cipher.AEAD
}

// NewEncryptedVectorIndex wraps inner with content encryption. The key is
// hex-encoded and must decode to 32 bytes.
func NewEncryptedVectorIndex(inner VectorIndex, hexKey string) (*EncryptedVectorIndex, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &EncryptedVectorIndex{inner: inner, aead: aead}, nil
}

var _ VectorIndex = (*EncryptedVectorIndex)(nil)

func (e *EncryptedVectorIndex) EnsureReady(ctx context.Context) error {
	return e.inner.EnsureReady(ctx)
}

func (e *EncryptedVectorIndex) Upsert(ctx context.Context, records []VectorRecord) error {
	encrypted := make([]VectorRecord, len(records))
	for i, record := range records {
		ciphertext, err := e.encrypt(record.Content)
		if err != nil {
			return fmt.Errorf("failed to encrypt record %s: %w", record.ID, err)
		}
		record.Content = ciphertext
		encrypted[i] = record
	}
	return e.inner.Upsert(ctx, encrypted)
}

func (e *EncryptedVectorIndex) Query(ctx context.Context, vector []float32, topK int, namespace string) ([]VectorMatch, error) {
	matches, err := e.inner.Query(ctx, vector, topK, namespace)
	if err != nil {
		return nil, err
	}

	out := make([]VectorMatch, 0, len(matches))
	for _, m := range matches {
		plaintext, err := e.decrypt(m.Record.Content)
		if err != nil {
			logger.Warn("Dropping result with undecryptable content", "record_id", m.Record.ID)
			continue
		}
		m.Record.Content = plaintext
		out = append(out, m)
	}
	return out, nil
}

func (e *EncryptedVectorIndex) Delete(ctx context.Context, ids []string) error {
	return e.inner.Delete(ctx, ids)
}

func (e *EncryptedVectorIndex) DeleteByDocument(ctx context.Context, documentID string) error {
	return e.inner.DeleteByDocument(ctx, documentID)
}

func (e *EncryptedVectorIndex) Stats(ctx context.Context) (*IndexStats, error) {
	return e.inner.Stats(ctx)
}

func (e *EncryptedVectorIndex) encrypt(plaintext string) (string, error) {
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	sealed := e.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return encryptedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

func (e *EncryptedVectorIndex) decrypt(content string) (string, error) {
	if !strings.HasPrefix(content, encryptedPrefix) {
		// Plaintext rows written before encryption was enabled
		return content, nil
	}

	sealed, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(content, encryptedPrefix))
	if err != nil {
		return "", fmt.Errorf("failed to decode ciphertext: %w", err)
	}
	if len(sealed) < e.aead.NonceSize() {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := sealed[:e.aead.NonceSize()], sealed[e.aead.NonceSize():]
	plaintext, err := e.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt content: %w", err)
	}
	return string(plaintext), nil
}

package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/conduit-ai/conduit/pkg/ports"
)

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys is a list of old keys to try when decryption fails.
	// This enables zero-downtime key rotation.
	FallbackKeys [][]byte

	// Kinds limits encryption to the listed record kinds. Empty means all
	// kinds are encrypted.
	Kinds []string
}

type encryptionMiddleware struct {
	next   ports.RecordStore
	config EncryptionConfig
	kinds  map[string]struct{}
}

// envelope is the opaque shape persisted in place of an encrypted record.
type envelope struct {
	Encrypted string `json:"__encrypted__"`
}

// NewEncryptionMiddleware creates a middleware that encrypts records at
// rest using AES-GCM.
func NewEncryptionMiddleware(config EncryptionConfig) Middleware {
	if len(config.ActiveKey) != 32 {
		panic("active key must be 32 bytes (AES-256)")
	}
	kinds := make(map[string]struct{}, len(config.Kinds))
	for _, k := range config.Kinds {
		kinds[k] = struct{}{}
	}
	return func(next ports.RecordStore) ports.RecordStore {
		return &encryptionMiddleware{
			next:   next,
			config: config,
			kinds:  kinds,
		}
	}
}

func (m *encryptionMiddleware) covers(kind string) bool {
	if len(m.kinds) == 0 {
		return true
	}
	_, ok := m.kinds[kind]
	return ok
}

func (m *encryptionMiddleware) Put(ctx context.Context, kind, id string, value any) error {
	if !m.covers(kind) {
		return m.next.Put(ctx, kind, id, value)
	}

	plainText, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	ciphertext, err := encrypt(plainText, m.config.ActiveKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt record: %w", err)
	}

	return m.next.Put(ctx, kind, id, envelope{
		Encrypted: base64.StdEncoding.EncodeToString(ciphertext),
	})
}

func (m *encryptionMiddleware) Get(ctx context.Context, kind, id string, out any) error {
	if !m.covers(kind) {
		return m.next.Get(ctx, kind, id, out)
	}

	var env envelope
	if err := m.next.Get(ctx, kind, id, &env); err != nil {
		return err
	}
	if env.Encrypted == "" {
		// Fail secure: once a kind is configured for encryption, a plain
		// record is treated as corrupt rather than passed through.
		return errors.New("record is missing encrypted data envelope")
	}

	ciphertext, err := base64.StdEncoding.DecodeString(env.Encrypted)
	if err != nil {
		return fmt.Errorf("failed to decode ciphertext base64: %w", err)
	}

	plainText, err := decryptWithRotation(ciphertext, m.config.ActiveKey, m.config.FallbackKeys)
	if err != nil {
		return fmt.Errorf("failed to decrypt record: %w", err)
	}

	if err := json.Unmarshal(plainText, out); err != nil {
		return fmt.Errorf("failed to unmarshal decrypted record: %w", err)
	}
	return nil
}

func (m *encryptionMiddleware) Delete(ctx context.Context, kind, id string) error {
	return m.next.Delete(ctx, kind, id)
}

func (m *encryptionMiddleware) List(ctx context.Context, kind string) ([]string, error) {
	return m.next.List(ctx, kind)
}

// Helpers

func encrypt(plaintext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptWithRotation(ciphertext []byte, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	// Try active key first
	if plain, err := decrypt(ciphertext, activeKey); err == nil {
		return plain, nil
	}

	// Try fallbacks in order
	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}

	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce := ciphertext[:gcm.NonceSize()]
	ciphertextBytes := ciphertext[gcm.NonceSize():]

	return gcm.Open(nil, nonce, ciphertextBytes, nil)
}

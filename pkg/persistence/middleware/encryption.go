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

	"github.com/aretw0/lattice/pkg/ports"
)

// envelopeScope marks a token set whose AccessToken holds the sealed original.
const envelopeScope = "lattice:encrypted"

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys are old keys tried when decryption with ActiveKey fails.
	FallbackKeys [][]byte
}

type encryptionMiddleware struct {
	next   ports.TokenStore
	config EncryptionConfig
}

// NewEncryptionMiddleware creates a middleware that seals token sets with
// AES-GCM before they reach the wrapped store.
func NewEncryptionMiddleware(config EncryptionConfig) (Middleware, error) {
	if len(config.ActiveKey) != 32 {
		return nil, errors.New("active key must be 32 bytes (AES-256)")
	}
	return func(next ports.TokenStore) ports.TokenStore {
		return &encryptionMiddleware{
			next:   next,
			config: config,
		}
	}, nil
}

// ParseKey decodes a base64 AES-256 key.
func ParseKey(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("failed to decode key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("key is %d bytes, want 32", len(key))
	}
	return key, nil
}

func (m *encryptionMiddleware) SaveTokens(ctx context.Context, provider string, tokens ports.Tokens) error {
	plainText, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("failed to marshal tokens: %w", err)
	}

	ciphertext, err := encrypt(plainText, m.config.ActiveKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt tokens: %w", err)
	}

	// The envelope carries nothing of the original besides the sealed blob.
	return m.next.SaveTokens(ctx, provider, ports.Tokens{
		AccessToken: base64.StdEncoding.EncodeToString(ciphertext),
		Scope:       envelopeScope,
	})
}

func (m *encryptionMiddleware) LoadTokens(ctx context.Context, provider string) (ports.Tokens, error) {
	envelope, err := m.next.LoadTokens(ctx, provider)
	if err != nil {
		return ports.Tokens{}, err
	}

	// Plain token sets saved before encryption was enabled are rejected.
	if envelope.Scope != envelopeScope {
		return ports.Tokens{}, errors.New("tokens are missing encrypted data envelope")
	}

	ciphertext, err := base64.StdEncoding.DecodeString(envelope.AccessToken)
	if err != nil {
		return ports.Tokens{}, fmt.Errorf("failed to decode ciphertext base64: %w", err)
	}

	plainText, err := decryptWithRotation(ciphertext, m.config.ActiveKey, m.config.FallbackKeys)
	if err != nil {
		return ports.Tokens{}, fmt.Errorf("failed to decrypt tokens: %w", err)
	}

	var tokens ports.Tokens
	if err := json.Unmarshal(plainText, &tokens); err != nil {
		return ports.Tokens{}, fmt.Errorf("failed to unmarshal decrypted tokens: %w", err)
	}
	return tokens, nil
}

func (m *encryptionMiddleware) DeleteTokens(ctx context.Context, provider string) error {
	return m.next.DeleteTokens(ctx, provider)
}

func encrypt(plaintext []byte, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
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
	if plain, err := decrypt(ciphertext, activeKey); err == nil {
		return plain, nil
	}
	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}
	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, sealed := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, sealed, nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

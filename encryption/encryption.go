package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/kelseyhightower/envconfig"

	"github.com/tidepool-org/glucose-alerts/readings"
)

const keySize = 32

var (
	ErrMalformedCiphertext = fmt.Errorf("%w: malformed ciphertext", readings.ErrDecryption)
	ErrDecryptionFailed    = fmt.Errorf("%w: authentication failed", readings.ErrDecryption)
	ErrInvalidKey          = errors.New("encryption key must be 32 bytes encoded as base64")
)

type Config struct {
	Key string `envconfig:"TIDEPOOL_ALERTS_ENCRYPTION_KEY" required:"true"`
}

func NewConfig() (*Config, error) {
	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Cipher seals glucose values with AES-256-GCM. Ciphertexts are the base64 encoding of the
// nonce followed by the sealed decimal representation of the value.
type Cipher struct {
	aead cipher.AEAD
}

func NewCipher(cfg *Config) (*Cipher, error) {
	key, err := base64.StdEncoding.DecodeString(cfg.Key)
	if err != nil || len(key) != keySize {
		return nil, ErrInvalidKey
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &Cipher{aead: aead}, nil
}

func NewDecryptor(c *Cipher) readings.Decryptor {
	return c
}

func (c *Cipher) Encrypt(value float64) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	plaintext := []byte(strconv.FormatFloat(value, 'f', -1, 64))
	sealed := c.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (c *Cipher) Decrypt(ciphertext string) (float64, error) {
	sealed, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return 0, ErrMalformedCiphertext
	}
	if len(sealed) < c.aead.NonceSize()+c.aead.Overhead() {
		return 0, ErrMalformedCiphertext
	}

	nonce, payload := sealed[:c.aead.NonceSize()], sealed[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, payload, nil)
	if err != nil {
		return 0, ErrDecryptionFailed
	}

	value, err := strconv.ParseFloat(string(plaintext), 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, ErrMalformedCiphertext
	}
	return value, nil
}

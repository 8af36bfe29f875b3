// Package sealer encrypts small JSON payloads with AES-256-GCM.
//
// A sealed blob is base64(iv[12] | tag[16] | ciphertext).
package sealer

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const (
	keySize   = 32
	nonceSize = 12
	tagSize   = 16
)

var (
	ErrKeyMissing = errors.New("integration_key_missing")
	ErrMalformed  = errors.New("sealed_payload_malformed")
)

var hkdfInfo = []byte("switchboard org_integrations v1")

type Sealer struct {
	aead cipher.AEAD
}

// New derives the AES key from secret with HKDF-SHA256. A 64-char hex
// secret is decoded first; anything else is used as raw key material.
func New(secret string) (*Sealer, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, ErrKeyMissing
	}
	ikm := []byte(secret)
	if len(secret) == 64 {
		if decoded, err := hex.DecodeString(secret); err == nil {
			ikm = decoded
		}
	}

	key := make([]byte, keySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, ikm, nil, hkdfInfo), key); err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Sealer{aead: aead}, nil
}

// Seal marshals v to JSON and encrypts it.
func (s *Sealer) Seal(v any) (string, error) {
	plain, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	// Go appends the tag after the ciphertext; the stored layout puts it first.
	sealed := s.aead.Seal(nil, nonce, plain, nil)
	ct, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	out := make([]byte, 0, nonceSize+tagSize+len(ct))
	out = append(out, nonce...)
	out = append(out, tag...)
	out = append(out, ct...)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Open decrypts a blob produced by Seal into v.
func (s *Sealer) Open(blob string, v any) error {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(blob))
	if err != nil || len(raw) < nonceSize+tagSize {
		return ErrMalformed
	}
	nonce := raw[:nonceSize]
	tag := raw[nonceSize : nonceSize+tagSize]
	ct := raw[nonceSize+tagSize:]

	joined := make([]byte, 0, len(ct)+tagSize)
	joined = append(joined, ct...)
	joined = append(joined, tag...)

	plain, err := s.aead.Open(nil, nonce, joined, nil)
	if err != nil {
		return ErrMalformed
	}
	return json.Unmarshal(plain, v)
}

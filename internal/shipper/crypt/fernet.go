package crypt

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"time"
)

// tokenVersion is the Fernet format version byte.
const tokenVersion byte = 0x80

// Box authenticates and encrypts alert frames with a Fernet-compatible
// token: version || timestamp || iv || AES-128-CBC ciphertext || HMAC-
// SHA256, url-safe base64 encoded. Grounded on the wire format the
// source's encryption.py produces via cryptography.fernet.Fernet, built
// here on crypto/aes, crypto/cipher and crypto/hmac since the standard
// library has no Fernet implementation and none of the example repos'
// dependencies provide one either.
type Box struct {
	signingKey    []byte
	encryptionKey []byte
}

// NewBox splits a 32-byte HKDF session key into its Fernet signing and
// encryption halves (first 16 bytes signing, last 16 encryption, per
// the Fernet spec).
func NewBox(sessionKey []byte) (*Box, error) {
	if len(sessionKey) != 32 {
		return nil, fmt.Errorf("crypt: session key must be 32 bytes, got %d", len(sessionKey))
	}
	return &Box{
		signingKey:    sessionKey[:16],
		encryptionKey: sessionKey[16:],
	}, nil
}

// Encrypt produces a Fernet token for plaintext, stamped at now.
func (b *Box) Encrypt(plaintext []byte, now time.Time) (string, error) {
	block, err := aes.NewCipher(b.encryptionKey)
	if err != nil {
		return "", fmt.Errorf("crypt: new cipher: %w", err)
	}
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("crypt: read iv: %w", err)
	}
	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	payload := make([]byte, 0, 1+8+aes.BlockSize+len(ciphertext))
	payload = append(payload, tokenVersion)
	payload = binary.BigEndian.AppendUint64(payload, uint64(now.Unix()))
	payload = append(payload, iv...)
	payload = append(payload, ciphertext...)

	mac := hmac.New(sha256.New, b.signingKey)
	mac.Write(payload)
	token := append(payload, mac.Sum(nil)...)

	return base64.URLEncoding.EncodeToString(token), nil
}

// Decrypt validates and opens a Fernet token, returning the plaintext.
func (b *Box) Decrypt(token string) ([]byte, error) {
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("crypt: base64 decode token: %w", err)
	}
	const minLen = 1 + 8 + aes.BlockSize + sha256.Size
	if len(raw) < minLen {
		return nil, fmt.Errorf("crypt: token too short")
	}
	macOffset := len(raw) - sha256.Size
	payload, gotMAC := raw[:macOffset], raw[macOffset:]

	mac := hmac.New(sha256.New, b.signingKey)
	mac.Write(payload)
	wantMAC := mac.Sum(nil)
	if subtle.ConstantTimeCompare(gotMAC, wantMAC) != 1 {
		return nil, fmt.Errorf("crypt: HMAC verification failed")
	}
	if payload[0] != tokenVersion {
		return nil, fmt.Errorf("crypt: unsupported token version %#x", payload[0])
	}

	iv := payload[9 : 9+aes.BlockSize]
	ciphertext := payload[9+aes.BlockSize:]
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("crypt: ciphertext is not a multiple of the block size")
	}

	block, err := aes.NewCipher(b.encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("crypt: new cipher: %w", err)
	}
	padded := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(padded, ciphertext)
	return pkcs7Unpad(padded)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padding := bytes.Repeat([]byte{byte(padLen)}, padLen)
	return append(append([]byte{}, data...), padding...)
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("crypt: cannot unpad empty data")
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > len(data) {
		return nil, fmt.Errorf("crypt: invalid PKCS7 padding")
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, fmt.Errorf("crypt: invalid PKCS7 padding")
		}
	}
	return data[:len(data)-padLen], nil
}

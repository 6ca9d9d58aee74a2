package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	envelopeSaltSize = 32
	envelopeIVSize   = aes.BlockSize // 16 bytes
	envelopeTagSize  = sha256.Size   // 32 bytes
	envelopeMinSize  = envelopeSaltSize + envelopeIVSize
)

var (
	ErrCiphertextTooShort = errors.New("crypto: ciphertext too short")
	// ErrIntegrityViolation means the stored integrity tag does not match the
	// ciphertext. The record was altered after encryption; no plaintext is
	// ever returned alongside it.
	ErrIntegrityViolation = errors.New("crypto: integrity verification failed")
)

// Seal applies encrypt-then-MAC using AES-CTR for confidentiality and
// HMAC-SHA256 for integrity. Keys are derived from the provided master key
// with HKDF-SHA256, using a per-call random salt baked into the ciphertext.
// Ciphertext layout is [salt||iv||body]; the tag is returned separately so
// the store can persist it in its own column.
func Seal(masterKey, plaintext, aad []byte) (ciphertext, tag []byte, err error) {
	if len(masterKey) == 0 {
		return nil, nil, errors.New("crypto: empty master key")
	}

	salt := make([]byte, envelopeSaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, nil, err
	}

	encKey, macKey, err := deriveEnvelopeKeys(masterKey, salt)
	if err != nil {
		return nil, nil, err
	}
	defer Zero(encKey)
	defer Zero(macKey)

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, nil, err
	}

	iv := make([]byte, envelopeIVSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, nil, err
	}

	body := make([]byte, len(plaintext))
	cipher.NewCTR(block, iv).XORKeyStream(body, plaintext)

	out := make([]byte, 0, envelopeSaltSize+envelopeIVSize+len(body))
	out = append(out, salt...)
	out = append(out, iv...)
	out = append(out, body...)

	tag = computeTag(macKey, aad, out)
	return out, tag, nil
}

// Open verifies the integrity tag over the full ciphertext and only then
// decrypts. A tag mismatch returns ErrIntegrityViolation and no plaintext.
func Open(masterKey, ciphertext, tag, aad []byte) ([]byte, error) {
	if len(ciphertext) < envelopeMinSize {
		return nil, ErrCiphertextTooShort
	}
	if len(masterKey) == 0 {
		return nil, errors.New("crypto: empty master key")
	}

	iv := ciphertext[envelopeSaltSize : envelopeSaltSize+envelopeIVSize]
	body := ciphertext[envelopeSaltSize+envelopeIVSize:]

	encKey, macKey, err := deriveEnvelopeKeys(masterKey, ciphertext[:envelopeSaltSize])
	if err != nil {
		return nil, err
	}
	defer Zero(encKey)
	defer Zero(macKey)

	expected := computeTag(macKey, aad, ciphertext)
	if subtle.ConstantTimeCompare(expected, tag) != 1 {
		return nil, ErrIntegrityViolation
	}

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, err
	}

	pt := make([]byte, len(body))
	cipher.NewCTR(block, iv).XORKeyStream(pt, body)
	return pt, nil
}

func deriveEnvelopeKeys(masterKey, salt []byte) (encKey, macKey []byte, err error) {
	stream := hkdf.New(sha256.New, masterKey, salt, []byte("yamii/envelope/v1"))
	encKey = make([]byte, 32)
	macKey = make([]byte, 32)
	if _, err = io.ReadFull(stream, encKey); err != nil {
		return nil, nil, err
	}
	if _, err = io.ReadFull(stream, macKey); err != nil {
		return nil, nil, err
	}
	return encKey, macKey, nil
}

func computeTag(macKey, aad, ciphertext []byte) []byte {
	mac := hmac.New(sha256.New, macKey)
	if len(aad) > 0 {
		mac.Write(aad)
	}
	mac.Write(ciphertext)
	return mac.Sum(nil)
}

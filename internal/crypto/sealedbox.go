package crypto

import (
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"

	xchacha "golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	sealedBoxScheme = "x25519-xchacha20poly1305"
	sealedBoxInfo   = "yamii/sealedbox/v1"
)

var (
	// ErrDecryptFailed means the private key does not match the public key the
	// box was sealed for, or the box was tampered with.
	ErrDecryptFailed = errors.New("crypto: sealed box decryption failed")
	ErrBadKeySize    = errors.New("crypto: bad X25519 key size")
)

// KeyPair holds raw X25519 key bytes. The private key is generated client-side
// in the zero-knowledge design; the server only ever persists the public half.
type KeyPair struct {
	Public  []byte
	Private []byte
}

// GenerateKeyPair produces a fresh X25519 pair. Every call yields an
// independent pair.
func GenerateKeyPair() (KeyPair, error) {
	priv, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, err
	}
	return KeyPair{
		Public:  priv.PublicKey().Bytes(),
		Private: priv.Bytes(),
	}, nil
}

// SealedBox is the output of SealBox: the AEAD ciphertext, its nonce, and the
// ephemeral public key the recipient needs to recompute the shared secret.
type SealedBox struct {
	Ciphertext   []byte
	Nonce        []byte
	EphemeralPub []byte
}

// SealBox encrypts plaintext so that only the holder of the private key
// matching recipientPub can read it. An ephemeral X25519 key is generated per
// call; the XChaCha20-Poly1305 key is derived from the ECDH shared secret with
// HKDF-SHA256 salted by both public keys. The ephemeral public key is bound
// into the AEAD as associated data.
func SealBox(plaintext, recipientPub []byte) (SealedBox, error) {
	curve := ecdh.X25519()
	peer, err := curve.NewPublicKey(recipientPub)
	if err != nil {
		return SealedBox{}, ErrBadKeySize
	}
	eph, err := curve.GenerateKey(rand.Reader)
	if err != nil {
		return SealedBox{}, err
	}
	shared, err := eph.ECDH(peer)
	if err != nil {
		return SealedBox{}, err
	}
	defer Zero(shared)

	key, err := deriveBoxKey(shared, eph.PublicKey().Bytes(), recipientPub)
	if err != nil {
		return SealedBox{}, err
	}
	defer Zero(key)

	aead, err := xchacha.NewX(key)
	if err != nil {
		return SealedBox{}, err
	}
	nonce := make([]byte, xchacha.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return SealedBox{}, err
	}
	ct := aead.Seal(nil, nonce, plaintext, eph.PublicKey().Bytes())
	return SealedBox{
		Ciphertext:   ct,
		Nonce:        nonce,
		EphemeralPub: eph.PublicKey().Bytes(),
	}, nil
}

// OpenBox decrypts a sealed box with the recipient's private key. A mismatched
// key pair or altered ciphertext returns ErrDecryptFailed, never garbage
// plaintext; the AEAD's own authentication covers the box.
func OpenBox(box SealedBox, recipientPriv []byte) ([]byte, error) {
	curve := ecdh.X25519()
	priv, err := curve.NewPrivateKey(recipientPriv)
	if err != nil {
		return nil, ErrBadKeySize
	}
	eph, err := curve.NewPublicKey(box.EphemeralPub)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	shared, err := priv.ECDH(eph)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	defer Zero(shared)

	key, err := deriveBoxKey(shared, box.EphemeralPub, priv.PublicKey().Bytes())
	if err != nil {
		return nil, err
	}
	defer Zero(key)

	aead, err := xchacha.NewX(key)
	if err != nil {
		return nil, err
	}
	if len(box.Nonce) != xchacha.NonceSizeX {
		return nil, ErrDecryptFailed
	}
	pt, err := aead.Open(nil, box.Nonce, box.Ciphertext, box.EphemeralPub)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return pt, nil
}

// Fingerprint returns the hex SHA-256 of a public key. It identifies a key
// without exposing it, e.g. to bind a session to the key pair in use.
func Fingerprint(pub []byte) string {
	sum := sha256.Sum256(pub)
	return hex.EncodeToString(sum[:])
}

func deriveBoxKey(shared, ephPub, recipientPub []byte) ([]byte, error) {
	salt := make([]byte, 0, len(ephPub)+len(recipientPub))
	salt = append(salt, ephPub...)
	salt = append(salt, recipientPub...)
	stream := hkdf.New(sha256.New, shared, salt, []byte(sealedBoxInfo))
	key := make([]byte, xchacha.KeySize)
	if _, err := io.ReadFull(stream, key); err != nil {
		return nil, err
	}
	return key, nil
}

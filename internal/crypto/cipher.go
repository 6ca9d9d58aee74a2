package crypto

import "errors"

// Scheme labels which engine produced a Blob.
type Scheme string

const (
	SchemeEnvelope  Scheme = "envelope-v1"
	SchemeSealedBox Scheme = sealedBoxScheme
)

// KeyContext is the tagged union of key material the two engines accept:
// a process-wide shared secret for the envelope path, or an X25519 key
// (public to encrypt, private to decrypt) for the sealed-box path. Exactly
// one variant must be set.
type KeyContext struct {
	MasterKey  []byte
	PublicKey  []byte
	PrivateKey []byte
}

// SharedKey builds the envelope-path key context.
func SharedKey(master []byte) KeyContext { return KeyContext{MasterKey: master} }

// RecipientKey builds the sealed-box encryption context.
func RecipientKey(pub []byte) KeyContext { return KeyContext{PublicKey: pub} }

// HolderKey builds the sealed-box decryption context.
func HolderKey(priv []byte) KeyContext { return KeyContext{PrivateKey: priv} }

// Blob is scheme-independent encrypted output: what the store persists.
// Nonce and Tag are populated per scheme; Extra carries scheme fields the
// decryptor needs back (the sealed box's ephemeral public key).
type Blob struct {
	Scheme     Scheme
	Ciphertext []byte
	Nonce      []byte
	Tag        []byte
	Extra      []byte
}

var ErrBadKeyContext = errors.New("crypto: key context does not select exactly one scheme")

// Encrypt dispatches on the key context so callers never special-case the
// active scheme. AAD binds the envelope ciphertext to its record identity.
func Encrypt(plaintext []byte, kc KeyContext, aad []byte) (Blob, error) {
	switch {
	case kc.MasterKey != nil && kc.PublicKey == nil && kc.PrivateKey == nil:
		ct, tag, err := Seal(kc.MasterKey, plaintext, aad)
		if err != nil {
			return Blob{}, err
		}
		return Blob{Scheme: SchemeEnvelope, Ciphertext: ct, Tag: tag}, nil
	case kc.PublicKey != nil && kc.MasterKey == nil:
		box, err := SealBox(plaintext, kc.PublicKey)
		if err != nil {
			return Blob{}, err
		}
		return Blob{
			Scheme:     SchemeSealedBox,
			Ciphertext: box.Ciphertext,
			Nonce:      box.Nonce,
			Extra:      box.EphemeralPub,
		}, nil
	default:
		return Blob{}, ErrBadKeyContext
	}
}

// Decrypt is the inverse dispatch. Integrity or authentication failures come
// back as ErrIntegrityViolation or ErrDecryptFailed respectively.
func Decrypt(b Blob, kc KeyContext, aad []byte) ([]byte, error) {
	switch b.Scheme {
	case SchemeEnvelope:
		if kc.MasterKey == nil {
			return nil, ErrBadKeyContext
		}
		return Open(kc.MasterKey, b.Ciphertext, b.Tag, aad)
	case SchemeSealedBox:
		if kc.PrivateKey == nil {
			return nil, ErrBadKeyContext
		}
		return OpenBox(SealedBox{
			Ciphertext:   b.Ciphertext,
			Nonce:        b.Nonce,
			EphemeralPub: b.Extra,
		}, kc.PrivateKey)
	default:
		return nil, errors.New("crypto: unknown scheme " + string(b.Scheme))
	}
}

package crypto

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/argon2"
)

const masterKeySize = 32

// ErrConfiguration covers bad key material and key-file problems. These are
// fatal at startup: the process must not serve traffic with a missing or
// world-readable key.
var ErrConfiguration = errors.New("crypto: key configuration error")

type keyFile struct {
	Version int        `json:"version"`
	KDF     *kdfHeader `json:"kdf,omitempty"`
	Key     []byte     `json:"key,omitempty"`
}

type kdfHeader struct {
	Algo string `json:"algo"` // "argon2id"
	M    uint32 `json:"m"`
	T    uint32 `json:"t"`
	P    uint8  `json:"p"`
	Salt []byte `json:"salt"`
}

func defaultKDFHeader() *kdfHeader {
	salt := make([]byte, 32)
	_, _ = rand.Read(salt)
	return &kdfHeader{Algo: "argon2id", M: 128 * 1024, T: 3, P: 4, Salt: salt}
}

func (h *kdfHeader) derive(material []byte) []byte {
	return argon2.IDKey(material, h.Salt, h.T, h.M, h.P, masterKeySize)
}

// LoadOrCreateMasterKey loads the process master key from path, generating
// and persisting a new key file on first run. When keyMaterial is supplied
// the key is argon2id-derived from it and never written to disk; otherwise a
// random key is stored directly. The file is created 0600 and a file
// reachable by group or others is rejected outright.
func LoadOrCreateMasterKey(path string, keyMaterial []byte) ([]byte, error) {
	fi, err := os.Stat(path)
	switch {
	case err == nil:
		if fi.Mode().Perm()&0o077 != 0 {
			return nil, fmt.Errorf("%w: %s permissions %o too open, want 0600", ErrConfiguration, path, fi.Mode().Perm())
		}
		return loadMasterKey(path, keyMaterial)
	case os.IsNotExist(err):
		return createMasterKey(path, keyMaterial)
	default:
		return nil, fmt.Errorf("%w: stat %s: %v", ErrConfiguration, path, err)
	}
}

func loadMasterKey(path string, keyMaterial []byte) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrConfiguration, path, err)
	}
	var kf keyFile
	if err := json.Unmarshal(b, &kf); err != nil {
		return nil, fmt.Errorf("%w: corrupt key file %s: %v", ErrConfiguration, path, err)
	}

	var key []byte
	switch {
	case len(keyMaterial) > 0:
		if kf.KDF == nil || kf.KDF.Algo != "argon2id" {
			return nil, fmt.Errorf("%w: key file %s has no argon2id header", ErrConfiguration, path)
		}
		key = kf.KDF.derive(keyMaterial)
	case len(kf.Key) == masterKeySize:
		key = append([]byte(nil), kf.Key...)
	default:
		return nil, fmt.Errorf("%w: key file %s holds no usable key", ErrConfiguration, path)
	}

	_ = lockMemory(key) // best effort
	return key, nil
}

func createMasterKey(path string, keyMaterial []byte) ([]byte, error) {
	kf := keyFile{Version: 1}
	var key []byte
	if len(keyMaterial) > 0 {
		kf.KDF = defaultKDFHeader()
		key = kf.KDF.derive(keyMaterial)
	} else {
		key = make([]byte, masterKeySize)
		if _, err := rand.Read(key); err != nil {
			return nil, err
		}
		kf.Key = key
	}

	b, err := json.Marshal(kf)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return nil, fmt.Errorf("%w: write %s: %v", ErrConfiguration, path, err)
	}

	out := append([]byte(nil), key...)
	_ = lockMemory(out)
	return out, nil
}

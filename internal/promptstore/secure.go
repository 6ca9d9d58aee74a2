package promptstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/yamisskey-dev/yamii-sub001/internal/audit"
	"github.com/yamisskey-dev/yamii-sub001/internal/crypto"
	"github.com/yamisskey-dev/yamii-sub001/internal/storage"
)

// SecurePrompts manages the zero-knowledge record family. Payloads are sealed
// under a caller-supplied public key; the server never holds the private key
// and can never read what it stores.
type SecurePrompts struct {
	store storage.SecurePromptStore
	log   *slog.Logger
	audit *audit.Log
	now   func() time.Time
}

func NewSecurePrompts(store storage.SecurePromptStore, log *slog.Logger, auditLog *audit.Log) *SecurePrompts {
	if log == nil {
		log = slog.Default()
	}
	return &SecurePrompts{
		store: store,
		log:   log,
		audit: auditLog,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// boxMeta is the e2ee_metadata column payload: everything the key holder
// needs to decrypt, none of it sensitive.
type boxMeta struct {
	Scheme         string `json:"scheme"`
	EphemeralPub   []byte `json:"ephemeral_pub"`
	KeyFingerprint string `json:"key_fingerprint"`
}

func sealPrompt(payload any, recipientPub []byte) (crypto.Blob, []byte, error) {
	pt, err := json.Marshal(payload)
	if err != nil {
		return crypto.Blob{}, nil, err
	}
	blob, err := crypto.Encrypt(pt, crypto.RecipientKey(recipientPub), nil)
	if err != nil {
		return crypto.Blob{}, nil, err
	}
	meta, err := json.Marshal(boxMeta{
		Scheme:         string(blob.Scheme),
		EphemeralPub:   blob.Extra,
		KeyFingerprint: crypto.Fingerprint(recipientPub),
	})
	if err != nil {
		return crypto.Blob{}, nil, err
	}
	return blob, meta, nil
}

// Store seals the payload for recipientPub and inserts it under a fresh
// record id. Failures collapse to false with a logged cause.
func (s *SecurePrompts) Store(ctx context.Context, ownerID, promptID string, payload any, recipientPub []byte, title, description string) bool {
	blob, meta, err := sealPrompt(payload, recipientPub)
	if err != nil {
		s.log.Warn("prompt store: seal failed", "owner", ownerID, "prompt", promptID, "err", err)
		return false
	}
	now := s.now()
	rec := storage.SecurePromptRecord{
		RecordID:     uuid.New(),
		OwnerID:      ownerID,
		PromptID:     promptID,
		Ciphertext:   blob.Ciphertext,
		Nonce:        blob.Nonce,
		E2EEMetadata: meta,
		Title:        title,
		Description:  description,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Insert(ctx, rec); err != nil {
		s.log.Warn("prompt store: insert failed", "owner", ownerID, "prompt", promptID, "err", err)
		return false
	}
	s.log.Info("prompt stored", "owner", ownerID, "prompt", promptID, "record_id", rec.RecordID)
	s.auditEvent("prompt.store", ownerID, promptID)
	return true
}

// Fetch opens the sealed prompt with the caller-held private key. Missing
// records are ErrNotFound; a record that exists but cannot be authenticated
// and decrypted is ErrDecryptFailed.
func (s *SecurePrompts) Fetch(ctx context.Context, ownerID, promptID string, privateKey []byte) ([]byte, error) {
	rec, err := s.store.Get(ctx, ownerID, promptID)
	if err != nil {
		return nil, err
	}
	var meta boxMeta
	if err := json.Unmarshal(rec.E2EEMetadata, &meta); err != nil {
		return nil, fmt.Errorf("prompt %s/%s metadata: %w", ownerID, promptID, ErrDecryptFailed)
	}
	blob := crypto.Blob{
		Scheme:     crypto.Scheme(meta.Scheme),
		Ciphertext: rec.Ciphertext,
		Nonce:      rec.Nonce,
		Extra:      meta.EphemeralPub,
	}
	pt, err := crypto.Decrypt(blob, crypto.HolderKey(privateKey), nil)
	if err != nil {
		s.log.Error("prompt fetch: decrypt failure", "owner", ownerID, "prompt", promptID, "err", err)
		return nil, fmt.Errorf("prompt %s/%s: %w", ownerID, promptID, err)
	}
	return pt, nil
}

// List returns prompt metadata newest-first without touching ciphertext.
func (s *SecurePrompts) List(ctx context.Context, ownerID string) ([]storage.SecurePromptMeta, error) {
	return s.store.ListMetadata(ctx, ownerID)
}

// Update re-seals under recipientPub with a fresh ephemeral key and nonce and
// bumps the stored version. False when no active record matches.
func (s *SecurePrompts) Update(ctx context.Context, ownerID, promptID string, payload any, recipientPub []byte, title, description string) bool {
	blob, meta, err := sealPrompt(payload, recipientPub)
	if err != nil {
		s.log.Warn("prompt update: seal failed", "owner", ownerID, "prompt", promptID, "err", err)
		return false
	}
	ok, err := s.store.Update(ctx, storage.SecurePromptRecord{
		OwnerID:      ownerID,
		PromptID:     promptID,
		Ciphertext:   blob.Ciphertext,
		Nonce:        blob.Nonce,
		E2EEMetadata: meta,
		Title:        title,
		Description:  description,
		UpdatedAt:    s.now(),
	})
	if err != nil {
		s.log.Warn("prompt update failed", "owner", ownerID, "prompt", promptID, "err", err)
		return false
	}
	if ok {
		s.log.Info("prompt updated", "owner", ownerID, "prompt", promptID)
		s.auditEvent("prompt.update", ownerID, promptID)
	}
	return ok
}

// Delete marks the prompt inactive; re-creation uses a new record id.
func (s *SecurePrompts) Delete(ctx context.Context, ownerID, promptID string) bool {
	ok, err := s.store.SoftDelete(ctx, ownerID, promptID, s.now())
	if err != nil {
		s.log.Warn("prompt delete failed", "owner", ownerID, "prompt", promptID, "err", err)
		return false
	}
	if ok {
		s.log.Info("prompt deleted", "owner", ownerID, "prompt", promptID)
		s.auditEvent("prompt.delete", ownerID, promptID)
	}
	return ok
}

func (s *SecurePrompts) auditEvent(op, ownerID, promptID string) {
	if s.audit != nil {
		s.audit.Append(op + " owner=" + ownerID + " prompt=" + promptID)
	}
}

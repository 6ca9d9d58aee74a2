package promptstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/yamisskey-dev/yamii-sub001/internal/audit"
	"github.com/yamisskey-dev/yamii-sub001/internal/crypto"
	"github.com/yamisskey-dev/yamii-sub001/internal/storage"
)

// Settings manages the server-readable record family (per-user settings and
// custom prompts) under the process-wide master key. Construct one instance
// at process start and pass it to consumers; the master key is read-only
// after construction and safe for concurrent use.
type Settings struct {
	store  storage.SettingsStore
	master []byte
	log    *slog.Logger
	audit  *audit.Log
	now    func() time.Time
}

func NewSettings(store storage.SettingsStore, masterKey []byte, log *slog.Logger, auditLog *audit.Log) *Settings {
	if log == nil {
		log = slog.Default()
	}
	return &Settings{
		store:  store,
		master: masterKey,
		log:    log,
		audit:  auditLog,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func settingsAAD(ownerID, recordName string) []byte {
	return []byte("settings:" + ownerID + ":" + recordName)
}

// Store serializes payload as JSON, encrypts it under the master key, and
// inserts the record. Failures are logged and collapsed to false; nothing
// propagates past this boundary.
func (s *Settings) Store(ctx context.Context, ownerID, recordName string, payload any, description string, tags []string) bool {
	pt, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn("settings store: serialize failed", "owner", ownerID, "record", recordName, "err", err)
		return false
	}
	blob, err := crypto.Encrypt(pt, crypto.SharedKey(s.master), settingsAAD(ownerID, recordName))
	if err != nil {
		s.log.Warn("settings store: encrypt failed", "owner", ownerID, "record", recordName, "err", err)
		return false
	}
	now := s.now()
	rec := storage.SettingsRecord{
		OwnerID:      ownerID,
		RecordName:   recordName,
		Ciphertext:   blob.Ciphertext,
		IntegrityTag: blob.Tag,
		Description:  description,
		Tags:         tags,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Insert(ctx, rec); err != nil {
		s.log.Warn("settings store: insert failed", "owner", ownerID, "record", recordName, "err", err)
		return false
	}
	s.log.Info("settings stored", "owner", ownerID, "record", recordName)
	s.auditEvent("settings.store", ownerID, recordName)
	return true
}

// Fetch returns the decrypted JSON payload. A missing record is ErrNotFound;
// an existing record that fails integrity verification is ErrIntegrity. The
// two are never conflated.
func (s *Settings) Fetch(ctx context.Context, ownerID, recordName string) ([]byte, error) {
	rec, err := s.store.Get(ctx, ownerID, recordName)
	if err != nil {
		return nil, err
	}
	blob := crypto.Blob{
		Scheme:     crypto.SchemeEnvelope,
		Ciphertext: rec.Ciphertext,
		Tag:        rec.IntegrityTag,
	}
	pt, err := crypto.Decrypt(blob, crypto.SharedKey(s.master), settingsAAD(ownerID, recordName))
	if err != nil {
		s.log.Error("settings fetch: integrity failure", "owner", ownerID, "record", recordName, "err", err)
		return nil, fmt.Errorf("settings %s/%s: %w", ownerID, recordName, err)
	}
	return pt, nil
}

// List returns plaintext metadata only; ciphertext is never touched.
func (s *Settings) List(ctx context.Context, ownerID string) ([]storage.SettingsMeta, error) {
	return s.store.ListMetadata(ctx, ownerID)
}

// Update re-encrypts with fresh randomness even when the payload is
// unchanged, and bumps updated_at. False when no active record matches.
func (s *Settings) Update(ctx context.Context, ownerID, recordName string, payload any, description string, tags []string) bool {
	pt, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn("settings update: serialize failed", "owner", ownerID, "record", recordName, "err", err)
		return false
	}
	blob, err := crypto.Encrypt(pt, crypto.SharedKey(s.master), settingsAAD(ownerID, recordName))
	if err != nil {
		s.log.Warn("settings update: encrypt failed", "owner", ownerID, "record", recordName, "err", err)
		return false
	}
	ok, err := s.store.Update(ctx, storage.SettingsRecord{
		OwnerID:      ownerID,
		RecordName:   recordName,
		Ciphertext:   blob.Ciphertext,
		IntegrityTag: blob.Tag,
		Description:  description,
		Tags:         tags,
		UpdatedAt:    s.now(),
	})
	if err != nil {
		s.log.Warn("settings update failed", "owner", ownerID, "record", recordName, "err", err)
		return false
	}
	if ok {
		s.log.Info("settings updated", "owner", ownerID, "record", recordName)
		s.auditEvent("settings.update", ownerID, recordName)
	}
	return ok
}

// Delete marks the record inactive. The row stays behind for the retention
// window; reads and listings exclude it immediately.
func (s *Settings) Delete(ctx context.Context, ownerID, recordName string) bool {
	ok, err := s.store.SoftDelete(ctx, ownerID, recordName, s.now())
	if err != nil {
		s.log.Warn("settings delete failed", "owner", ownerID, "record", recordName, "err", err)
		return false
	}
	if ok {
		s.log.Info("settings deleted", "owner", ownerID, "record", recordName)
		s.auditEvent("settings.delete", ownerID, recordName)
	}
	return ok
}

func (s *Settings) auditEvent(op, ownerID, recordName string) {
	if s.audit != nil {
		s.audit.Append(op + " owner=" + ownerID + " record=" + recordName)
	}
}

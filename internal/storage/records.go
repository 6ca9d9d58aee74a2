// Package storage owns the relational schema and CRUD primitives for the two
// encrypted-record families: server-readable user settings and zero-knowledge
// secure prompts. Every query is scoped by owner_id, so a caller can never
// observe another owner's rows. Timestamps are supplied by the orchestrator.
//
// Concurrency contract: operations on the same (owner, record) do not
// serialize at this layer. Concurrent writers resolve to last-writer-wins at
// the row level, and read-your-writes across different pooled connections is
// not guaranteed without an explicit transaction.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound means no active row matched. Another owner's record and a
	// missing record are indistinguishable on purpose.
	ErrNotFound = errors.New("storage: record not found")
	// ErrPersistence wraps database failures; the cause is attached.
	ErrPersistence = errors.New("storage: persistence failure")
)

// SettingsRecord is a row of the server-readable family. Ciphertext and
// IntegrityTag are opaque to this package.
type SettingsRecord struct {
	OwnerID      string
	RecordName   string
	Ciphertext   []byte
	IntegrityTag []byte
	Description  string
	Tags         []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	IsActive     bool
}

// SettingsMeta is the listable, never-sensitive subset of a settings row.
type SettingsMeta struct {
	RecordName  string
	Description string
	Tags        []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SecurePromptRecord is a row of the E2EE family. The server cannot decrypt
// Ciphertext; E2EEMetadata is the JSON scheme envelope (ephemeral public key,
// scheme label, key fingerprint).
type SecurePromptRecord struct {
	RecordID     uuid.UUID
	OwnerID      string
	PromptID     string
	Ciphertext   []byte
	Nonce        []byte
	E2EEMetadata []byte
	Title        string
	Description  string
	Version      int
	CreatedAt    time.Time
	UpdatedAt    time.Time
	IsActive     bool
	IsDefault    bool
}

// SecurePromptMeta is the listable subset of a secure prompt row.
type SecurePromptMeta struct {
	RecordID    uuid.UUID
	PromptID    string
	Title       string
	Description string
	Version     int
	CreatedAt   time.Time
	UpdatedAt   time.Time
	IsDefault   bool
}

// SettingsStore is the adapter surface for the server-readable family.
type SettingsStore interface {
	Insert(ctx context.Context, rec SettingsRecord) error
	Get(ctx context.Context, ownerID, recordName string) (SettingsRecord, error)
	ListMetadata(ctx context.Context, ownerID string) ([]SettingsMeta, error)
	Update(ctx context.Context, rec SettingsRecord) (bool, error)
	SoftDelete(ctx context.Context, ownerID, recordName string, at time.Time) (bool, error)
}

// SecurePromptStore is the adapter surface for the E2EE family.
type SecurePromptStore interface {
	Insert(ctx context.Context, rec SecurePromptRecord) error
	InsertDefault(ctx context.Context, rec SecurePromptRecord) (bool, error)
	Get(ctx context.Context, ownerID, promptID string) (SecurePromptRecord, error)
	ListMetadata(ctx context.Context, ownerID string) ([]SecurePromptMeta, error)
	Update(ctx context.Context, rec SecurePromptRecord) (bool, error)
	SoftDelete(ctx context.Context, ownerID, promptID string, at time.Time) (bool, error)
}

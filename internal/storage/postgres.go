package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolConfig carries the connection settings the adapter needs. AcquireTimeout
// bounds how long an operation may queue for a pooled connection; beyond it
// the operation fails fast instead of waiting indefinitely.
type PoolConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	AcquireTimeout time.Duration
}

// Postgres implements both record-family stores on one bounded pgx pool.
type Postgres struct {
	pool           *pgxpool.Pool
	acquireTimeout time.Duration
}

// NewPostgres connects, verifies the connection with a scoped ping, and
// returns the adapter.
func NewPostgres(ctx context.Context, cfg PoolConfig) (*Postgres, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: parse dsn: %v", ErrPersistence, err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pc.MinConns = cfg.MinConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("%w: connect: %v", ErrPersistence, err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ping: %v", ErrPersistence, err)
	}
	return &Postgres{pool: pool, acquireTimeout: cfg.AcquireTimeout}, nil
}

func (p *Postgres) Close() { p.pool.Close() }

// opCtx bounds pool acquisition and the statement itself. The caller's
// context still applies; this only tightens it.
func (p *Postgres) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.acquireTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, p.acquireTimeout)
}

// Migrate creates both tables and the partial unique indexes that enforce
// "at most one active record per (owner, logical id)". Idempotent.
func (p *Postgres) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS user_settings (
			owner_id      text        NOT NULL,
			record_name   text        NOT NULL,
			ciphertext    bytea       NOT NULL,
			integrity_tag bytea       NOT NULL,
			description   text        NOT NULL DEFAULT '',
			tags          text[]      NOT NULL DEFAULT '{}',
			created_at    timestamptz NOT NULL,
			updated_at    timestamptz NOT NULL,
			is_active     boolean     NOT NULL DEFAULT true
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS user_settings_owner_name_active
			ON user_settings (owner_id, record_name) WHERE is_active`,
		`CREATE TABLE IF NOT EXISTS secure_prompts (
			record_id     uuid        PRIMARY KEY,
			owner_id      text        NOT NULL,
			prompt_id     text        NOT NULL,
			ciphertext    bytea       NOT NULL,
			nonce         bytea       NOT NULL,
			e2ee_metadata jsonb       NOT NULL,
			title         text        NOT NULL DEFAULT '',
			description   text        NOT NULL DEFAULT '',
			version       int         NOT NULL DEFAULT 1,
			created_at    timestamptz NOT NULL,
			updated_at    timestamptz NOT NULL,
			is_active     boolean     NOT NULL DEFAULT true,
			is_default    boolean     NOT NULL DEFAULT false
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS secure_prompts_owner_prompt_active
			ON secure_prompts (owner_id, prompt_id) WHERE is_active`,
	}
	for _, s := range stmts {
		if _, err := p.pool.Exec(ctx, s); err != nil {
			return fmt.Errorf("%w: migrate: %v", ErrPersistence, err)
		}
	}
	return nil
}

// ---------- user_settings (family A) ----------

type settingsStore struct{ p *Postgres }

// Settings returns the adapter for the server-readable family.
func (p *Postgres) Settings() SettingsStore { return settingsStore{p} }

func (s settingsStore) Insert(ctx context.Context, rec SettingsRecord) error {
	ctx, cancel := s.p.opCtx(ctx)
	defer cancel()
	if rec.Tags == nil {
		rec.Tags = []string{}
	}
	_, err := s.p.pool.Exec(ctx, `
INSERT INTO user_settings (owner_id, record_name, ciphertext, integrity_tag, description, tags, created_at, updated_at, is_active)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,true)`,
		rec.OwnerID, rec.RecordName, rec.Ciphertext, rec.IntegrityTag,
		rec.Description, rec.Tags, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%w: insert settings: %v", ErrPersistence, err)
	}
	return nil
}

func (s settingsStore) Get(ctx context.Context, ownerID, recordName string) (SettingsRecord, error) {
	ctx, cancel := s.p.opCtx(ctx)
	defer cancel()
	var rec SettingsRecord
	err := s.p.pool.QueryRow(ctx, `
SELECT owner_id, record_name, ciphertext, integrity_tag, description, tags, created_at, updated_at, is_active
FROM user_settings
WHERE owner_id=$1 AND record_name=$2 AND is_active`,
		ownerID, recordName).Scan(
		&rec.OwnerID, &rec.RecordName, &rec.Ciphertext, &rec.IntegrityTag,
		&rec.Description, &rec.Tags, &rec.CreatedAt, &rec.UpdatedAt, &rec.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return SettingsRecord{}, ErrNotFound
	}
	if err != nil {
		return SettingsRecord{}, fmt.Errorf("%w: get settings: %v", ErrPersistence, err)
	}
	return rec, nil
}

func (s settingsStore) ListMetadata(ctx context.Context, ownerID string) ([]SettingsMeta, error) {
	ctx, cancel := s.p.opCtx(ctx)
	defer cancel()
	rows, err := s.p.pool.Query(ctx, `
SELECT record_name, description, tags, created_at, updated_at
FROM user_settings
WHERE owner_id=$1 AND is_active
ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: list settings: %v", ErrPersistence, err)
	}
	defer rows.Close()
	var out []SettingsMeta
	for rows.Next() {
		var m SettingsMeta
		if err := rows.Scan(&m.RecordName, &m.Description, &m.Tags, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%w: list settings: %v", ErrPersistence, err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list settings: %v", ErrPersistence, err)
	}
	return out, nil
}

func (s settingsStore) Update(ctx context.Context, rec SettingsRecord) (bool, error) {
	ctx, cancel := s.p.opCtx(ctx)
	defer cancel()
	if rec.Tags == nil {
		rec.Tags = []string{}
	}
	ct, err := s.p.pool.Exec(ctx, `
UPDATE user_settings
SET ciphertext=$3, integrity_tag=$4, description=$5, tags=$6, updated_at=$7
WHERE owner_id=$1 AND record_name=$2 AND is_active`,
		rec.OwnerID, rec.RecordName, rec.Ciphertext, rec.IntegrityTag,
		rec.Description, rec.Tags, rec.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("%w: update settings: %v", ErrPersistence, err)
	}
	return ct.RowsAffected() > 0, nil
}

func (s settingsStore) SoftDelete(ctx context.Context, ownerID, recordName string, at time.Time) (bool, error) {
	ctx, cancel := s.p.opCtx(ctx)
	defer cancel()
	ct, err := s.p.pool.Exec(ctx, `
UPDATE user_settings SET is_active=false, updated_at=$3
WHERE owner_id=$1 AND record_name=$2 AND is_active`,
		ownerID, recordName, at)
	if err != nil {
		return false, fmt.Errorf("%w: delete settings: %v", ErrPersistence, err)
	}
	return ct.RowsAffected() > 0, nil
}

// ---------- secure_prompts (family B) ----------

type securePromptStore struct{ p *Postgres }

// SecurePrompts returns the adapter for the E2EE family.
func (p *Postgres) SecurePrompts() SecurePromptStore { return securePromptStore{p} }

func (s securePromptStore) Insert(ctx context.Context, rec SecurePromptRecord) error {
	ctx, cancel := s.p.opCtx(ctx)
	defer cancel()
	_, err := s.p.pool.Exec(ctx, `
INSERT INTO secure_prompts (record_id, owner_id, prompt_id, ciphertext, nonce, e2ee_metadata, title, description, version, created_at, updated_at, is_active, is_default)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,true,$12)`,
		rec.RecordID, rec.OwnerID, rec.PromptID, rec.Ciphertext, rec.Nonce,
		rec.E2EEMetadata, rec.Title, rec.Description, rec.Version,
		rec.CreatedAt, rec.UpdatedAt, rec.IsDefault)
	if err != nil {
		return fmt.Errorf("%w: insert prompt: %v", ErrPersistence, err)
	}
	return nil
}

// InsertDefault stores rec as the owner's default prompt, but only when the
// owner has no active default yet. Runs in a transaction so two concurrent
// bootstraps cannot both insert. Returns false when a default already exists.
func (s securePromptStore) InsertDefault(ctx context.Context, rec SecurePromptRecord) (bool, error) {
	ctx, cancel := s.p.opCtx(ctx)
	defer cancel()
	tx, err := s.p.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: begin: %v", ErrPersistence, err)
	}
	defer tx.Rollback(ctx)

	ct, err := tx.Exec(ctx, `
INSERT INTO secure_prompts (record_id, owner_id, prompt_id, ciphertext, nonce, e2ee_metadata, title, description, version, created_at, updated_at, is_active, is_default)
SELECT $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,true,true
WHERE NOT EXISTS (
	SELECT 1 FROM secure_prompts WHERE owner_id=$2 AND is_default AND is_active
)`,
		rec.RecordID, rec.OwnerID, rec.PromptID, rec.Ciphertext, rec.Nonce,
		rec.E2EEMetadata, rec.Title, rec.Description, rec.Version,
		rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("%w: insert default prompt: %v", ErrPersistence, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("%w: commit: %v", ErrPersistence, err)
	}
	return ct.RowsAffected() > 0, nil
}

func (s securePromptStore) Get(ctx context.Context, ownerID, promptID string) (SecurePromptRecord, error) {
	ctx, cancel := s.p.opCtx(ctx)
	defer cancel()
	var rec SecurePromptRecord
	err := s.p.pool.QueryRow(ctx, `
SELECT record_id, owner_id, prompt_id, ciphertext, nonce, e2ee_metadata, title, description, version, created_at, updated_at, is_active, is_default
FROM secure_prompts
WHERE owner_id=$1 AND prompt_id=$2 AND is_active`,
		ownerID, promptID).Scan(
		&rec.RecordID, &rec.OwnerID, &rec.PromptID, &rec.Ciphertext, &rec.Nonce,
		&rec.E2EEMetadata, &rec.Title, &rec.Description, &rec.Version,
		&rec.CreatedAt, &rec.UpdatedAt, &rec.IsActive, &rec.IsDefault)
	if errors.Is(err, pgx.ErrNoRows) {
		return SecurePromptRecord{}, ErrNotFound
	}
	if err != nil {
		return SecurePromptRecord{}, fmt.Errorf("%w: get prompt: %v", ErrPersistence, err)
	}
	return rec, nil
}

func (s securePromptStore) ListMetadata(ctx context.Context, ownerID string) ([]SecurePromptMeta, error) {
	ctx, cancel := s.p.opCtx(ctx)
	defer cancel()
	rows, err := s.p.pool.Query(ctx, `
SELECT record_id, prompt_id, title, description, version, created_at, updated_at, is_default
FROM secure_prompts
WHERE owner_id=$1 AND is_active
ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: list prompts: %v", ErrPersistence, err)
	}
	defer rows.Close()
	var out []SecurePromptMeta
	for rows.Next() {
		var m SecurePromptMeta
		if err := rows.Scan(&m.RecordID, &m.PromptID, &m.Title, &m.Description, &m.Version, &m.CreatedAt, &m.UpdatedAt, &m.IsDefault); err != nil {
			return nil, fmt.Errorf("%w: list prompts: %v", ErrPersistence, err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list prompts: %v", ErrPersistence, err)
	}
	return out, nil
}

func (s securePromptStore) Update(ctx context.Context, rec SecurePromptRecord) (bool, error) {
	ctx, cancel := s.p.opCtx(ctx)
	defer cancel()
	ct, err := s.p.pool.Exec(ctx, `
UPDATE secure_prompts
SET ciphertext=$3, nonce=$4, e2ee_metadata=$5, title=$6, description=$7, version=version+1, updated_at=$8
WHERE owner_id=$1 AND prompt_id=$2 AND is_active`,
		rec.OwnerID, rec.PromptID, rec.Ciphertext, rec.Nonce, rec.E2EEMetadata,
		rec.Title, rec.Description, rec.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("%w: update prompt: %v", ErrPersistence, err)
	}
	return ct.RowsAffected() > 0, nil
}

func (s securePromptStore) SoftDelete(ctx context.Context, ownerID, promptID string, at time.Time) (bool, error) {
	ctx, cancel := s.p.opCtx(ctx)
	defer cancel()
	ct, err := s.p.pool.Exec(ctx, `
UPDATE secure_prompts SET is_active=false, updated_at=$3
WHERE owner_id=$1 AND prompt_id=$2 AND is_active`,
		ownerID, promptID, at)
	if err != nil {
		return false, fmt.Errorf("%w: delete prompt: %v", ErrPersistence, err)
	}
	return ct.RowsAffected() > 0, nil
}

// ---------- retention ----------

// PurgeInactive physically removes soft-deleted rows whose updated_at is older
// than cutoff, up to limit rows per table. Returns the number of rows removed.
func (p *Postgres) PurgeInactive(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	ctx, cancel := p.opCtx(ctx)
	defer cancel()
	var total int64
	for _, q := range []string{
		`DELETE FROM user_settings
		 WHERE ctid IN (
			SELECT ctid FROM user_settings
			WHERE NOT is_active AND updated_at < $1 LIMIT $2)`,
		`DELETE FROM secure_prompts
		 WHERE ctid IN (
			SELECT ctid FROM secure_prompts
			WHERE NOT is_active AND updated_at < $1 LIMIT $2)`,
	} {
		ct, err := p.pool.Exec(ctx, q, cutoff, limit)
		if err != nil {
			return total, fmt.Errorf("%w: purge: %v", ErrPersistence, err)
		}
		total += ct.RowsAffected()
	}
	return total, nil
}

package promptstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/yamisskey-dev/yamii-sub001/internal/storage"
)

// fakeSettingsStore mimics the adapter's owner scoping, active-row filtering,
// and newest-first listing in memory.
type fakeSettingsStore struct {
	mu   sync.Mutex
	rows []storage.SettingsRecord
}

func (f *fakeSettingsStore) Insert(_ context.Context, rec storage.SettingsRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.OwnerID == rec.OwnerID && r.RecordName == rec.RecordName && r.IsActive {
			return storage.ErrPersistence
		}
	}
	rec.IsActive = true
	f.rows = append(f.rows, rec)
	return nil
}

func (f *fakeSettingsStore) Get(_ context.Context, ownerID, recordName string) (storage.SettingsRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.OwnerID == ownerID && r.RecordName == recordName && r.IsActive {
			return r, nil
		}
	}
	return storage.SettingsRecord{}, storage.ErrNotFound
}

func (f *fakeSettingsStore) ListMetadata(_ context.Context, ownerID string) ([]storage.SettingsMeta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []storage.SettingsMeta
	for _, r := range f.rows {
		if r.OwnerID == ownerID && r.IsActive {
			out = append(out, storage.SettingsMeta{
				RecordName:  r.RecordName,
				Description: r.Description,
				Tags:        r.Tags,
				CreatedAt:   r.CreatedAt,
				UpdatedAt:   r.UpdatedAt,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeSettingsStore) Update(_ context.Context, rec storage.SettingsRecord) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.rows {
		if r.OwnerID == rec.OwnerID && r.RecordName == rec.RecordName && r.IsActive {
			f.rows[i].Ciphertext = rec.Ciphertext
			f.rows[i].IntegrityTag = rec.IntegrityTag
			f.rows[i].Description = rec.Description
			f.rows[i].Tags = rec.Tags
			f.rows[i].UpdatedAt = rec.UpdatedAt
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeSettingsStore) SoftDelete(_ context.Context, ownerID, recordName string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.rows {
		if r.OwnerID == ownerID && r.RecordName == recordName && r.IsActive {
			f.rows[i].IsActive = false
			f.rows[i].UpdatedAt = at
			return true, nil
		}
	}
	return false, nil
}

// row exposes the raw record including inactive ones, like a direct low-level
// lookup against the table.
func (f *fakeSettingsStore) row(ownerID, recordName string) (storage.SettingsRecord, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.OwnerID == ownerID && r.RecordName == recordName {
			return r, true
		}
	}
	return storage.SettingsRecord{}, false
}

// corrupt flips a ciphertext byte of the stored row.
func (f *fakeSettingsStore) corrupt(ownerID, recordName string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.rows {
		if r.OwnerID == ownerID && r.RecordName == recordName && r.IsActive {
			f.rows[i].Ciphertext[len(r.Ciphertext)/2] ^= 0xFF
			return
		}
	}
}

type fakePromptStore struct {
	mu   sync.Mutex
	rows []storage.SecurePromptRecord
}

func (f *fakePromptStore) Insert(_ context.Context, rec storage.SecurePromptRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.OwnerID == rec.OwnerID && r.PromptID == rec.PromptID && r.IsActive {
			return storage.ErrPersistence
		}
	}
	rec.IsActive = true
	f.rows = append(f.rows, rec)
	return nil
}

func (f *fakePromptStore) InsertDefault(ctx context.Context, rec storage.SecurePromptRecord) (bool, error) {
	f.mu.Lock()
	for _, r := range f.rows {
		if r.OwnerID == rec.OwnerID && r.IsDefault && r.IsActive {
			f.mu.Unlock()
			return false, nil
		}
	}
	f.mu.Unlock()
	rec.IsDefault = true
	if err := f.Insert(ctx, rec); err != nil {
		return false, err
	}
	return true, nil
}

func (f *fakePromptStore) Get(_ context.Context, ownerID, promptID string) (storage.SecurePromptRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.OwnerID == ownerID && r.PromptID == promptID && r.IsActive {
			return r, nil
		}
	}
	return storage.SecurePromptRecord{}, storage.ErrNotFound
}

func (f *fakePromptStore) ListMetadata(_ context.Context, ownerID string) ([]storage.SecurePromptMeta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []storage.SecurePromptMeta
	for _, r := range f.rows {
		if r.OwnerID == ownerID && r.IsActive {
			out = append(out, storage.SecurePromptMeta{
				RecordID:    r.RecordID,
				PromptID:    r.PromptID,
				Title:       r.Title,
				Description: r.Description,
				Version:     r.Version,
				CreatedAt:   r.CreatedAt,
				UpdatedAt:   r.UpdatedAt,
				IsDefault:   r.IsDefault,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakePromptStore) Update(_ context.Context, rec storage.SecurePromptRecord) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.rows {
		if r.OwnerID == rec.OwnerID && r.PromptID == rec.PromptID && r.IsActive {
			f.rows[i].Ciphertext = rec.Ciphertext
			f.rows[i].Nonce = rec.Nonce
			f.rows[i].E2EEMetadata = rec.E2EEMetadata
			f.rows[i].Title = rec.Title
			f.rows[i].Description = rec.Description
			f.rows[i].Version++
			f.rows[i].UpdatedAt = rec.UpdatedAt
			return true, nil
		}
	}
	return false, nil
}

func (f *fakePromptStore) SoftDelete(_ context.Context, ownerID, promptID string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.rows {
		if r.OwnerID == ownerID && r.PromptID == promptID && r.IsActive {
			f.rows[i].IsActive = false
			f.rows[i].UpdatedAt = at
			return true, nil
		}
	}
	return false, nil
}

func (f *fakePromptStore) row(ownerID, promptID string) (storage.SecurePromptRecord, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.OwnerID == ownerID && r.PromptID == promptID {
			return r, true
		}
	}
	return storage.SecurePromptRecord{}, false
}

func (f *fakePromptStore) corrupt(ownerID, promptID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.rows {
		if r.OwnerID == ownerID && r.PromptID == promptID && r.IsActive {
			f.rows[i].Ciphertext[len(r.Ciphertext)/2] ^= 0xFF
			return
		}
	}
}

// Package promptstore glues the encryption engines to the relational adapter
// and owns the business rules of the encrypted user-data store: record-level
// store/fetch/list/update/delete and default-record bootstrapping.
package promptstore

import (
	"github.com/yamisskey-dev/yamii-sub001/internal/crypto"
	"github.com/yamisskey-dev/yamii-sub001/internal/storage"
)

// The error taxonomy callers match with errors.Is. Not-found and corruption
// are deliberately distinct: the remediation differs (re-prompt the user vs
// raise a data-integrity incident), so Fetch never conflates them and never
// falls back to default plaintext.
var (
	ErrNotFound      = storage.ErrNotFound
	ErrPersistence   = storage.ErrPersistence
	ErrIntegrity     = crypto.ErrIntegrityViolation
	ErrDecryptFailed = crypto.ErrDecryptFailed
	ErrConfiguration = crypto.ErrConfiguration
)

// Package audit keeps a hash-chained log of store business events. Entries
// carry operation and record identity only, never plaintext, ciphertext, or
// key material. Together with soft-deleted rows it preserves an audit trail
// for the encrypted store.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

type Entry struct {
	TS   int64  `json:"ts"`
	What string `json:"what"`
	Hash string `json:"hash"`
}

// Log chains each entry's hash over the previous one, so tampering with any
// recorded event breaks verification. Safe for concurrent use.
type Log struct {
	mu       sync.Mutex
	lastHash []byte
	entries  []Entry
}

func New() *Log { return &Log{} }

func (l *Log) Append(what string) Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	h := sha256.New()
	h.Write(l.lastHash)
	h.Write([]byte(what))
	sum := h.Sum(nil)
	l.lastHash = sum
	e := Entry{TS: time.Now().Unix(), What: what, Hash: hex.EncodeToString(sum)}
	l.entries = append(l.entries, e)
	return e
}

func (l *Log) Verify() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var prev []byte
	for _, e := range l.entries {
		h := sha256.New()
		h.Write(prev)
		h.Write([]byte(e.What))
		sum := h.Sum(nil)
		if hex.EncodeToString(sum) != e.Hash {
			return fmt.Errorf("audit chain broken at %q", e.What)
		}
		prev = sum
	}
	return nil
}

func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Entry(nil), l.entries...)
}

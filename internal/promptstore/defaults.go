package promptstore

import (
	"context"

	"github.com/google/uuid"

	"github.com/yamisskey-dev/yamii-sub001/internal/storage"
)

const (
	defaultPromptID    = "default-counselor"
	defaultPromptTitle = "Counselor"
	defaultPromptDesc  = "Built-in counseling persona used until the owner stores their own."
)

// defaultPersona is the built-in counselor persona synthesized for owners who
// have no prompts yet.
type promptPayload struct {
	ID         string `json:"id"`
	PromptText string `json:"prompt_text"`
}

var defaultPersona = promptPayload{
	ID: defaultPromptID,
	PromptText: "You are a calm, empathetic counselor. Listen first, reflect " +
		"what you heard, and only then offer gentle, concrete suggestions. " +
		"Never diagnose; encourage professional help for anything serious.",
}

// EnsureDefaults stores the built-in persona for an owner who has no active
// default prompt yet, sealed under the owner's public key. The is_default
// flag is the detection mechanism, so the persona is created exactly once
// even across concurrent callers. Returns true when a record was created.
func (s *SecurePrompts) EnsureDefaults(ctx context.Context, ownerID string, recipientPub []byte) (bool, error) {
	blob, meta, err := sealPrompt(defaultPersona, recipientPub)
	if err != nil {
		return false, err
	}
	now := s.now()
	created, err := s.store.InsertDefault(ctx, storage.SecurePromptRecord{
		RecordID:     uuid.New(),
		OwnerID:      ownerID,
		PromptID:     defaultPromptID,
		Ciphertext:   blob.Ciphertext,
		Nonce:        blob.Nonce,
		E2EEMetadata: meta,
		Title:        defaultPromptTitle,
		Description:  defaultPromptDesc,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
		IsDefault:    true,
	})
	if err != nil {
		return false, err
	}
	if created {
		s.log.Info("default prompt bootstrapped", "owner", ownerID)
		s.auditEvent("prompt.bootstrap", ownerID, defaultPromptID)
	}
	return created, nil
}

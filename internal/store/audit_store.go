package store

import (
	"context"

	"boostmarket/internal/models"

	"github.com/google/uuid"
)

type AuditStore struct {
	kv KV
}

func NewAuditStore(kv KV) *AuditStore {
	return &AuditStore{kv: kv}
}

func (s *AuditStore) Log(ctx context.Context, actorID, action, entityType, entityID, data string) error {
	entries, err := s.all(ctx)
	if err != nil {
		return err
	}
	entries = append(entries, models.AuditEntry{
		ID:         uuid.NewString(),
		ActorID:    actorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Data:       data,
		CreatedAt:  nowUTC(),
	})
	return setJSON(ctx, s.kv, auditLogKey, entries)
}

// List returns entries newest first.
func (s *AuditStore) List(ctx context.Context, limit, offset int) ([]models.AuditEntry, error) {
	entries, err := s.all(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.AuditEntry, 0, limit)
	for i := len(entries) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, entries[i])
	}
	return out, nil
}

func (s *AuditStore) all(ctx context.Context) ([]models.AuditEntry, error) {
	var entries []models.AuditEntry
	if _, err := getJSON(ctx, s.kv, auditLogKey, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

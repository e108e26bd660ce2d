package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/InfiniteCod3/chatplugins/internal/kv"
	"github.com/InfiniteCod3/chatplugins/internal/model"
)

// RecordKey is the single record all conversations are persisted under.
const RecordKey = "aiagent-conversations"

// Persistence loads and saves the complete conversation map.
type Persistence interface {
	Load(ctx context.Context) (model.ConversationData, error)
	Save(ctx context.Context, data model.ConversationData) error
}

// RecordPersistence serializes the conversation map as one JSON record.
type RecordPersistence struct {
	kv  kv.KV
	key string
}

// NewRecordPersistence stores conversations in backend under RecordKey.
func NewRecordPersistence(backend kv.KV) *RecordPersistence {
	return &RecordPersistence{kv: backend, key: RecordKey}
}

// Load returns the stored map, or an empty one if nothing was saved yet.
func (p *RecordPersistence) Load(ctx context.Context) (model.ConversationData, error) {
	raw, err := p.kv.Get(ctx, p.key)
	if errors.Is(err, kv.ErrNotFound) {
		return model.ConversationData{}, nil
	}
	if err != nil {
		return nil, err
	}

	data := model.ConversationData{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", p.key, err)
	}
	return data, nil
}

// Save overwrites the stored map.
func (p *RecordPersistence) Save(ctx context.Context, data model.ConversationData) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", p.key, err)
	}
	return p.kv.Put(ctx, p.key, raw)
}

package repository

import (
	"context"
	"slices"
	"sync"

	"github.com/debemdeboas/lending-admin/internal/model"
)

// MemoryDocumentRepository keeps documents in process. Every Put notifies,
// which makes it a shared local store for all sessions of one process.
type MemoryDocumentRepository struct { // implements DocumentRepository
	changeNotifier

	documents sync.Map
}

func NewMemoryDocumentRepository() *MemoryDocumentRepository {
	return &MemoryDocumentRepository{}
}

func (r *MemoryDocumentRepository) Init(context.Context) error {
	return nil
}

func (r *MemoryDocumentRepository) Get(_ context.Context, key model.ResourceKey) ([]byte, error) {
	if doc, ok := r.documents.Load(key); ok {
		return slices.Clone(doc.([]byte)), nil
	}
	return nil, model.ErrNotFound
}

func (r *MemoryDocumentRepository) Put(_ context.Context, key model.ResourceKey, data []byte) error {
	r.documents.Store(key, slices.Clone(data))
	r.notify(key)
	return nil
}

func (r *MemoryDocumentRepository) Keys(context.Context) ([]model.ResourceKey, error) {
	var keys []model.ResourceKey
	r.documents.Range(func(k, _ any) bool {
		keys = append(keys, k.(model.ResourceKey))
		return true
	})
	slices.Sort(keys)
	return keys, nil
}

func (r *MemoryDocumentRepository) Close() error {
	return nil
}

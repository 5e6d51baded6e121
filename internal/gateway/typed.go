package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/debemdeboas/lending-admin/internal/model"
)

const defaultNotifyTimeout = 10 * time.Second

// Typed is the shared-store adapter: it encodes snapshots of T as JSON
// documents in a Hub and reloads them when the hub reports a change.
type Typed[T any] struct {
	hub           *Hub
	notifyTimeout time.Duration
}

func NewTyped[T any](hub *Hub, notifyTimeout time.Duration) *Typed[T] {
	if notifyTimeout <= 0 {
		notifyTimeout = defaultNotifyTimeout
	}
	return &Typed[T]{hub: hub, notifyTimeout: notifyTimeout}
}

func (g *Typed[T]) Load(ctx context.Context, key model.ResourceKey) (model.Snapshot[T], error) {
	data, err := g.hub.Get(ctx, key)
	if err != nil {
		return model.Snapshot[T]{}, err
	}
	return Decode[T](data)
}

func (g *Typed[T]) Save(ctx context.Context, key model.ResourceKey, snapshot model.Snapshot[T]) (model.Snapshot[T], error) {
	result := Reconcile(snapshot)

	data, err := json.Marshal(model.Snapshot[T]{Items: result.Items})
	if err != nil {
		return model.Snapshot[T]{}, fmt.Errorf("error encoding %s: %w", key, err)
	}
	if err := g.hub.Put(ctx, key, data); err != nil {
		return model.Snapshot[T]{}, err
	}
	return result, nil
}

func (g *Typed[T]) Subscribe(key model.ResourceKey, onChange func(model.Snapshot[T])) func() {
	return g.hub.Subscribe(key, func() {
		ctx, cancel := context.WithTimeout(context.Background(), g.notifyTimeout)
		defer cancel()

		snapshot, err := g.Load(ctx, key)
		if err != nil {
			gatewayLogger.Error().Err(err).Str("resource", string(key)).Msg("Error reloading changed document")
			return
		}
		onChange(snapshot)
	})
}

// Decode parses a stored document. An empty items list decodes to an empty,
// non-nil collection.
func Decode[T any](data []byte) (model.Snapshot[T], error) {
	var snapshot model.Snapshot[T]
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return model.Snapshot[T]{}, fmt.Errorf("error decoding snapshot: %w", err)
	}
	snapshot.Items = snapshot.Items.Sorted()
	snapshot.IDMap = nil
	return snapshot, nil
}

// Reconcile assigns durable ids to provisional items and returns the sorted
// snapshot together with the id mapping. Order values are left untouched.
func Reconcile[T any](snapshot model.Snapshot[T]) model.Snapshot[T] {
	items := snapshot.Items.Clone()

	var ids map[model.ItemID]model.ItemID
	for i := range items {
		if !items[i].ID.IsProvisional() {
			continue
		}
		if ids == nil {
			ids = make(map[model.ItemID]model.ItemID)
		}
		durable := model.NewDurableID()
		ids[items[i].ID] = durable
		items[i].ID = durable
	}

	return model.Snapshot[T]{Items: items.Sorted(), IDMap: ids}
}

// Package gateway loads and saves typed collection snapshots and delivers
// change notifications for them.
package gateway

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/lending-admin/internal/model"
)

// Gateway is the persistence contract a session works against.
type Gateway[T any] interface {
	// Load returns model.ErrNotFound when nothing was ever saved under key.
	Load(ctx context.Context, key model.ResourceKey) (model.Snapshot[T], error)

	// Save replaces the whole document. The returned snapshot may differ from
	// the input (sorted, provisional ids reconciled) and becomes the new baseline.
	Save(ctx context.Context, key model.ResourceKey, snapshot model.Snapshot[T]) (model.Snapshot[T], error)

	// Subscribe calls onChange with the stored snapshot whenever the document
	// changes. The returned function stops delivery.
	Subscribe(key model.ResourceKey, onChange func(model.Snapshot[T])) (unsubscribe func())
}

var gatewayLogger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	gatewayLogger = l
}

package repository

import (
	"context"
	"time"

	"github.com/debemdeboas/lending-admin/internal/model"
)

const DefaultPollInterval = 5 * time.Second

type listHashesFunc func(ctx context.Context) (map[model.ResourceKey]string, error)

// watchHashes polls list every interval until ctx is done, notifying for every
// key whose hash changed since the previous sweep.
func watchHashes(ctx context.Context, backend string, interval time.Duration, list listHashesFunc, tracker hashTracker, notify func(model.ResourceKey)) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		current, err := list(ctx)
		if err != nil {
			repoLogger.Error().Err(err).Str("backend", backend).Msg("Error checking documents for changes")
			continue
		}

		changed := tracker.sweep(current)
		if len(changed) == 0 {
			repoLogger.Debug().Str("backend", backend).Msg("No documents modified")
			continue
		}

		for _, key := range changed {
			repoLogger.Info().
				Str("backend", backend).
				Str("resource", string(key)).
				Msg("Document changed, notifying")
			notify(key)
		}
	}
}

// Command renumber rewrites stored collections whose display orders are not
// the dense sequence 1..N.
package main

import (
	"context"
	"flag"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/lending-admin/internal/config"
	"github.com/debemdeboas/lending-admin/internal/editor"
	"github.com/debemdeboas/lending-admin/internal/gateway"
	"github.com/debemdeboas/lending-admin/internal/logger"
	"github.com/debemdeboas/lending-admin/internal/repository"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the config file")
	flag.Parse()

	log := logger.New("info")
	if err := config.LoadConfig(*configPath); err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}
	repository.SetLogger(log)

	ctx := context.Background()
	repo, err := repository.Open(ctx, config.AppConfig.Storage)
	if err != nil {
		log.Fatal().Err(err).Msg("Error opening repository")
	}
	defer repo.Close()

	log.Info().Msg("Starting order renumbering...")
	changed, failed := renumber(ctx, editor.DefaultRegistry(), gateway.NewHub(repo), log)
	log.Info().Int("changed", changed).Int("failed", failed).Msg("Renumbering completed")
}

// renumber normalizes every registered collection and reports how many were
// rewritten and how many could not be processed.
func renumber(ctx context.Context, registry *editor.Registry, hub *gateway.Hub, log zerolog.Logger) (changed, failed int) {
	for _, key := range registry.Keys() {
		res, _ := registry.Get(key)

		ok, err := res.Renumber(ctx, hub)
		if err != nil {
			log.Error().Err(err).Str("resource", string(key)).Msg("Error renumbering collection")
			failed++
			continue
		}
		if ok {
			log.Info().Str("resource", string(key)).Msg("Renumbered collection")
			changed++
		}
	}
	return changed, failed
}

// Command seed imports content collections from a YAML file into the
// configured storage backend. The file maps resource keys to item lists:
//
//	branches:
//	  - name: Downtown
//	    address: 1 Main St
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/debemdeboas/lending-admin/internal/config"
	"github.com/debemdeboas/lending-admin/internal/editor"
	"github.com/debemdeboas/lending-admin/internal/gateway"
	"github.com/debemdeboas/lending-admin/internal/logger"
	"github.com/debemdeboas/lending-admin/internal/model"
	"github.com/debemdeboas/lending-admin/internal/repository"
)

func main() {
	path := flag.String("file", "", "YAML file with the collections to import")
	configPath := flag.String("config", "config.yaml", "Path to the config file")
	flag.Parse()

	log := logger.New("info")
	if *path == "" {
		log.Fatal().Msg("The --file flag is required")
	}

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

	data, err := os.ReadFile(*path)
	if err != nil {
		log.Fatal().Err(err).Str("file", *path).Msg("Error reading seed file")
	}

	imported, err := seed(ctx, editor.DefaultRegistry(), gateway.NewHub(repo), data)
	for key, n := range imported {
		log.Info().Str("resource", string(key)).Int("items", n).Msg("Imported collection")
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Seeding failed")
	}
}

// seed imports every collection named in data and returns the item count per
// imported collection. It stops at the first failing collection.
func seed(ctx context.Context, registry *editor.Registry, hub *gateway.Hub, data []byte) (map[model.ResourceKey]int, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("error parsing seed file: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("seed file must map resource keys to item lists, line %d", root.Line)
	}

	imported := make(map[model.ResourceKey]int)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key := model.ResourceKey(root.Content[i].Value)
		res, ok := registry.Get(key)
		if !ok {
			return imported, fmt.Errorf("unknown resource %q at line %d", key, root.Content[i].Line)
		}

		n, err := res.Import(ctx, hub, root.Content[i+1])
		if err != nil {
			return imported, err
		}
		imported[key] = n
	}
	return imported, nil
}

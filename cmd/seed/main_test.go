package main

import (
	"context"
	"strings"
	"testing"

	"github.com/debemdeboas/lending-admin/internal/editor"
	"github.com/debemdeboas/lending-admin/internal/gateway"
	"github.com/debemdeboas/lending-admin/internal/model"
	"github.com/debemdeboas/lending-admin/internal/repository"
)

func newHub(t *testing.T) *gateway.Hub {
	t.Helper()
	repo := repository.NewMemoryDocumentRepository()
	if err := repo.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return gateway.NewHub(repo)
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	registry := editor.DefaultRegistry()

	t.Run("imports in file order", func(t *testing.T) {
		hub := newHub(t)
		data := []byte(`
branches:
  - name: Downtown
    address: 1 Main St
  - name: Riverside
    address: 9 Water Ln
rates:
  - product: Personal loan
    apr: 12.5
    term_months: 36
`)
		imported, err := seed(ctx, registry, hub, data)
		if err != nil {
			t.Fatalf("seed failed: %v", err)
		}
		if imported[model.ResourceBranches] != 2 || imported[model.ResourceRates] != 1 {
			t.Errorf("Unexpected import counts: %v", imported)
		}

		snapshot, err := gateway.NewTyped[model.Branch](hub, 0).Load(ctx, model.ResourceBranches)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		sorted := snapshot.Items.Sorted()
		if len(sorted) != 2 || sorted[0].Fields.Name != "Downtown" || sorted[1].Order != 2 {
			t.Errorf("Unexpected stored branches: %+v", sorted)
		}
		for _, it := range sorted {
			if it.ID.IsProvisional() {
				t.Errorf("Expected durable ids, got %s", it.ID)
			}
		}
	})

	t.Run("rejects", func(t *testing.T) {
		cases := []struct {
			name string
			data string
			want string
		}{
			{"unknown resource", "loans:\n  - name: x\n", "unknown resource"},
			{"invalid items", "branches:\n  - name: No address\n", "invalid branches"},
			{"not a mapping", "- branches\n", "must map resource keys"},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := seed(ctx, registry, newHub(t), []byte(tc.data))
				if err == nil {
					t.Fatal("Expected an error")
				}
				if !strings.Contains(err.Error(), tc.want) {
					t.Errorf("Expected error mentioning %q, got %v", tc.want, err)
				}
			})
		}
	})
}

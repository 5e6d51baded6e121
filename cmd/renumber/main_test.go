package main

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/lending-admin/internal/editor"
	"github.com/debemdeboas/lending-admin/internal/gateway"
	"github.com/debemdeboas/lending-admin/internal/model"
	"github.com/debemdeboas/lending-admin/internal/repository"
)

func TestRenumber(t *testing.T) {
	ctx := context.Background()

	repo := repository.NewMemoryDocumentRepository()
	if err := repo.Init(ctx); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer repo.Close()
	hub := gateway.NewHub(repo)

	team := model.Collection[model.TeamMember]{
		{ID: "x", Order: 10, Fields: model.TeamMember{Name: "Ana", Role: "CEO"}},
		{ID: "y", Order: 4, Fields: model.TeamMember{Name: "Bo", Role: "CFO"}},
	}
	if err := repo.Put(ctx, model.ResourceTeam, mustEncode(t, team)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	branches := model.Collection[model.Branch]{
		{ID: "p", Order: 5, Fields: model.Branch{Name: "North", Address: "1 Elm"}},
		{ID: "q", Order: 6, Fields: model.Branch{Name: "South", Address: "2 Oak"}},
	}
	if err := repo.Put(ctx, model.ResourceBranches, mustEncode(t, branches)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := repo.Put(ctx, model.ResourceRates, []byte("{not json")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	changed, failed := renumber(ctx, editor.DefaultRegistry(), hub, zerolog.Nop())
	if changed != 2 || failed != 1 {
		t.Fatalf("Expected 2 changed and 1 failed, got %d and %d", changed, failed)
	}

	snapshot, err := gateway.NewTyped[model.TeamMember](hub, 0).Load(ctx, model.ResourceTeam)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	sorted := snapshot.Items.Sorted()
	if sorted[0].ID != "y" || sorted[0].Order != 1 || sorted[1].ID != "x" || sorted[1].Order != 2 {
		t.Errorf("Expected y,x renumbered 1,2, got %+v", sorted)
	}

	stored, err := gateway.NewTyped[model.Branch](hub, 0).Load(ctx, model.ResourceBranches)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	for i, it := range stored.Items.Sorted() {
		if it.Order != i+1 {
			t.Errorf("Expected branches numbered from 1, got %+v", stored.Items)
		}
	}

	changed, failed = renumber(ctx, editor.DefaultRegistry(), hub, zerolog.Nop())
	if changed != 0 || failed != 1 {
		t.Errorf("Expected a second pass to change nothing, got %d changed", changed)
	}
}

func mustEncode[T any](t *testing.T, items model.Collection[T]) []byte {
	t.Helper()
	data, err := json.Marshal(model.Snapshot[T]{Items: items})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	return data
}

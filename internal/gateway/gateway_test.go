package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/debemdeboas/lending-admin/internal/model"
	"github.com/debemdeboas/lending-admin/internal/repository"
)

const waitFor = 2 * time.Second

type branch struct {
	Name string `json:"name"`
}

func newTyped(t *testing.T) (*Typed[branch], *Hub) {
	t.Helper()
	repo := repository.NewMemoryDocumentRepository()
	if err := repo.Init(context.Background()); err != nil {
		t.Fatalf("Failed to init repository: %v", err)
	}
	hub := NewHub(repo)
	return NewTyped[branch](hub, time.Second), hub
}

func TestTyped(t *testing.T) {
	ctx := context.Background()

	t.Run("Load of a missing document", func(t *testing.T) {
		g, _ := newTyped(t)
		if _, err := g.Load(ctx, "branches"); !errors.Is(err, model.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Save reconciles provisional ids", func(t *testing.T) {
		g, _ := newTyped(t)
		in := model.Snapshot[branch]{Items: model.Collection[branch]{
			{ID: "tmp-1", Order: 2, Fields: branch{Name: "North"}},
			{ID: "b", Order: 1, Fields: branch{Name: "Main"}},
		}}

		out, err := g.Save(ctx, "branches", in)
		if err != nil {
			t.Fatalf("Failed to save: %v", err)
		}

		durable, ok := out.IDMap["tmp-1"]
		if !ok || durable.IsProvisional() || durable == "" {
			t.Fatalf("Expected a durable id for tmp-1, got %v", out.IDMap)
		}
		if out.Items[0].ID != "b" || out.Items[1].ID != durable || out.Items[1].Order != 2 {
			t.Errorf("Unexpected result %+v", out.Items)
		}

		loaded, err := g.Load(ctx, "branches")
		if err != nil {
			t.Fatalf("Failed to load: %v", err)
		}
		if len(loaded.Items) != 2 || loaded.Items[1].ID != durable || loaded.Items[1].Fields.Name != "North" {
			t.Errorf("Unexpected stored snapshot %+v", loaded.Items)
		}
		if loaded.IDMap != nil {
			t.Error("Expected the id map not to be stored")
		}
	})

	t.Run("Input snapshot is not modified", func(t *testing.T) {
		g, _ := newTyped(t)
		in := model.Snapshot[branch]{Items: model.Collection[branch]{{ID: "tmp-x", Order: 1}}}
		if _, err := g.Save(ctx, "branches", in); err != nil {
			t.Fatalf("Failed to save: %v", err)
		}
		if in.Items[0].ID != "tmp-x" {
			t.Error("Expected the caller's snapshot to keep its provisional id")
		}
	})

	t.Run("Subscribers receive the stored snapshot", func(t *testing.T) {
		g, hub := newTyped(t)
		other := NewTyped[branch](hub, time.Second)

		got := make(chan model.Snapshot[branch], 4)
		unsubscribe := g.Subscribe("branches", func(s model.Snapshot[branch]) { got <- s })

		other.Save(ctx, "branches", model.Snapshot[branch]{Items: model.Collection[branch]{{ID: "a", Order: 1, Fields: branch{Name: "East"}}}})

		select {
		case s := <-got:
			if len(s.Items) != 1 || s.Items[0].Fields.Name != "East" {
				t.Errorf("Unexpected snapshot %+v", s.Items)
			}
		case <-time.After(waitFor):
			t.Fatal("Expected a change notification")
		}

		unsubscribe()
		other.Save(ctx, "branches", model.Snapshot[branch]{Items: model.Collection[branch]{}})
		select {
		case s := <-got:
			t.Errorf("Unexpected notification after unsubscribe: %+v", s)
		case <-time.After(50 * time.Millisecond):
		}
	})
}

func TestHubListeners(t *testing.T) {
	_, hub := newTyped(t)

	keys := make(chan model.ResourceKey, 4)
	remove := hub.Listen(func(key model.ResourceKey) { keys <- key })

	hub.Put(context.Background(), "rates", []byte(`{"items":[]}`))
	select {
	case key := <-keys:
		if key != "rates" {
			t.Errorf("Expected rates, got %s", key)
		}
	case <-time.After(waitFor):
		t.Fatal("Expected listener to be called")
	}

	remove()
	hub.Put(context.Background(), "rates", []byte(`{"items":[]}`))
	select {
	case key := <-keys:
		t.Errorf("Unexpected call after remove: %s", key)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDecode(t *testing.T) {
	s, err := Decode[branch]([]byte(`{"items":[{"id":"b","order":2,"name":"B"},{"id":"a","order":1,"name":"A"}]}`))
	if err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if s.Items[0].ID != "a" || s.Items[1].Fields.Name != "B" {
		t.Errorf("Expected sorted items, got %+v", s.Items)
	}

	empty, err := Decode[branch]([]byte(`{}`))
	if err != nil || empty.Items == nil || len(empty.Items) != 0 {
		t.Errorf("Expected empty non-nil collection, got %+v (%v)", empty.Items, err)
	}

	if _, err := Decode[branch]([]byte(`not json`)); err == nil {
		t.Error("Expected error for invalid document")
	}
}

func TestHTTP(t *testing.T) {
	var mu sync.Mutex
	stored := map[string][]byte{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Path[len("/api/collections/"):]
		mu.Lock()
		defer mu.Unlock()

		switch r.Method {
		case http.MethodGet:
			doc, ok := stored[key]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				json.NewEncoder(w).Encode(map[string]string{"kind": "not_found", "message": "no document"})
				return
			}
			w.Write(doc)
		case http.MethodPut:
			var s model.Snapshot[branch]
			if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if key == "invalid" {
				w.WriteHeader(http.StatusUnprocessableEntity)
				json.NewEncoder(w).Encode(map[string]string{"kind": "validation", "message": "name is required"})
				return
			}
			if key == "broken" {
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte("boom"))
				return
			}
			result := Reconcile(s)
			doc, _ := json.Marshal(model.Snapshot[branch]{Items: result.Items})
			stored[key] = doc
			json.NewEncoder(w).Encode(result)
		}
	}))
	defer srv.Close()

	g := NewHTTP[branch](srv.URL+"/", srv.Client())
	ctx := context.Background()

	if _, err := g.Load(ctx, "branches"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	out, err := g.Save(ctx, "branches", model.Snapshot[branch]{Items: model.Collection[branch]{{ID: "tmp-1", Order: 1, Fields: branch{Name: "A"}}}})
	if err != nil {
		t.Fatalf("Failed to save: %v", err)
	}
	if durable := out.IDMap["tmp-1"]; durable == "" || out.Items[0].ID != durable {
		t.Errorf("Expected reconciled ids, got %+v", out)
	}

	loaded, err := g.Load(ctx, "branches")
	if err != nil || len(loaded.Items) != 1 || loaded.Items[0].Fields.Name != "A" {
		t.Errorf("Unexpected load %+v (%v)", loaded, err)
	}

	var validationErr *model.ValidationError
	if _, err := g.Save(ctx, "invalid", model.Snapshot[branch]{}); !errors.As(err, &validationErr) {
		t.Errorf("Expected validation error, got %v", err)
	}

	var apiErr *APIError
	if _, err := g.Save(ctx, "broken", model.Snapshot[branch]{}); !errors.As(err, &apiErr) || apiErr.Status != 500 || apiErr.Message != "boom" {
		t.Errorf("Expected API error with body, got %v", err)
	}

	g.Subscribe("branches", func(model.Snapshot[branch]) { t.Error("HTTP subscribe must not deliver") })()
}

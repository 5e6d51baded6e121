package editor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"

	"github.com/jonboulle/clockwork"
	"gopkg.in/yaml.v3"

	"github.com/debemdeboas/lending-admin/internal/config"
	"github.com/debemdeboas/lending-admin/internal/gateway"
	"github.com/debemdeboas/lending-admin/internal/model"
	"github.com/debemdeboas/lending-admin/internal/render"
	"github.com/debemdeboas/lending-admin/internal/reorder"
	"github.com/debemdeboas/lending-admin/internal/session"
)

// Env is what a resource needs to open sessions and serve its collection.
type Env struct {
	Hub      *gateway.Hub
	Editor   config.EditorConfig
	Renderer *render.Renderer
	Clock    clockwork.Clock
}

// Summary is one stored item as listed by the inspect tool.
type Summary struct {
	ID    model.ItemID
	Order int
	Title string
}

// Resource is one editable collection kind with its item type erased.
type Resource interface {
	Key() model.ResourceKey

	// NewBinding opens an editing session. It is not loaded yet.
	NewBinding(env Env) Binding

	// ServeCollection implements GET and PUT of the collections API.
	ServeCollection(w http.ResponseWriter, r *http.Request, env Env)

	// Import replaces the stored collection with the YAML list in node.
	Import(ctx context.Context, hub *gateway.Hub, node *yaml.Node) (int, error)

	// Renumber rewrites the stored collection with dense orders. It reports
	// whether anything changed.
	Renumber(ctx context.Context, hub *gateway.Hub) (bool, error)

	Summaries(ctx context.Context, hub *gateway.Hub) ([]Summary, error)
}

type kind[T any] struct {
	key      model.ResourceKey
	title    func(T) string
	defaults []T
	preview  func(r *render.Renderer, items model.Collection[T], source bool) ([]byte, error)
}

func (k *kind[T]) Key() model.ResourceKey {
	return k.key
}

func (k *kind[T]) defaultCollection() model.Collection[T] {
	items := make(model.Collection[T], len(k.defaults))
	for i, fields := range k.defaults {
		items[i] = model.Item[T]{Order: i + 1, Fields: fields}
	}
	return items
}

func (k *kind[T]) NewBinding(env Env) Binding {
	c := session.New(session.Options[T]{
		Key:           k.key,
		Gateway:       gateway.NewTyped[T](env.Hub, env.Editor.RequestTimeout),
		Default:       k.defaultCollection(),
		Autosave:      env.Editor.Autosaves(string(k.key)),
		AutosaveDelay: env.Editor.AutosaveDelay,
		Clock:         env.Clock,
		Timeout:       env.Editor.RequestTimeout,
		ConfirmSave:   env.Editor.ConfirmSave,
		ConfirmReset:  env.Editor.ConfirmReset,
	})
	return &binding[T]{Coordinator: c, kind: k, renderer: env.Renderer}
}

func (k *kind[T]) ServeCollection(w http.ResponseWriter, r *http.Request, env Env) {
	g := gateway.NewTyped[T](env.Hub, env.Editor.RequestTimeout)

	timeout := env.Editor.RequestTimeout
	if timeout <= 0 {
		timeout = session.DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	switch r.Method {
	case http.MethodGet:
		snapshot, err := g.Load(ctx, k.key)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, snapshot)

	case http.MethodPut:
		var snapshot model.Snapshot[T]
		if err := json.NewDecoder(r.Body).Decode(&snapshot); err != nil {
			writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
			return
		}
		if snapshot.Items == nil {
			snapshot.Items = model.Collection[T]{}
		}
		if err := model.ValidateCollection(snapshot.Items); err != nil {
			writeError(w, r, err)
			return
		}

		result, err := g.Save(ctx, k.key, snapshot)
		if err != nil {
			writeError(w, r, &model.TransportError{Op: "save", Key: k.key, Err: err})
			return
		}
		writeJSON(w, http.StatusOK, result)

	default:
		http.Error(w, config.HTTPErrMethodNotAllowed, http.StatusMethodNotAllowed)
	}
}

func (k *kind[T]) Import(ctx context.Context, hub *gateway.Hub, node *yaml.Node) (int, error) {
	var fields []T
	if err := node.Decode(&fields); err != nil {
		return 0, fmt.Errorf("error decoding %s: %w", k.key, err)
	}

	items := make(model.Collection[T], len(fields))
	for i, f := range fields {
		items[i] = model.Item[T]{ID: model.NewDurableID(), Order: i + 1, Fields: f}
	}
	if err := model.ValidateCollection(items); err != nil {
		return 0, fmt.Errorf("invalid %s: %w", k.key, err)
	}

	if _, err := gateway.NewTyped[T](hub, 0).Save(ctx, k.key, model.Snapshot[T]{Items: items}); err != nil {
		return 0, fmt.Errorf("error saving %s: %w", k.key, err)
	}
	return len(items), nil
}

func (k *kind[T]) Renumber(ctx context.Context, hub *gateway.Hub) (bool, error) {
	g := gateway.NewTyped[T](hub, 0)

	snapshot, err := g.Load(ctx, k.key)
	if errors.Is(err, model.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if reorder.Numbered(snapshot.Items) {
		return false, nil
	}

	if _, err := g.Save(ctx, k.key, model.Snapshot[T]{Items: reorder.Normalize(snapshot.Items)}); err != nil {
		return false, err
	}
	return true, nil
}

func (k *kind[T]) Summaries(ctx context.Context, hub *gateway.Hub) ([]Summary, error) {
	snapshot, err := gateway.NewTyped[T](hub, 0).Load(ctx, k.key)
	if err != nil {
		return nil, err
	}

	out := make([]Summary, 0, len(snapshot.Items))
	for _, it := range snapshot.Items {
		out = append(out, Summary{ID: it.ID, Order: it.Order, Title: k.title(it.Fields)})
	}
	return out, nil
}

// Registry maps resource keys to their kinds.
type Registry struct {
	resources map[model.ResourceKey]Resource
}

func NewRegistry(resources ...Resource) *Registry {
	r := &Registry{resources: make(map[model.ResourceKey]Resource, len(resources))}
	for _, res := range resources {
		r.resources[res.Key()] = res
	}
	return r
}

func (r *Registry) Get(key model.ResourceKey) (Resource, bool) {
	res, ok := r.resources[key]
	return res, ok
}

func (r *Registry) Keys() []model.ResourceKey {
	keys := make([]model.ResourceKey, 0, len(r.resources))
	for key := range r.resources {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

// DefaultRegistry holds every collection of the site.
func DefaultRegistry() *Registry {
	return NewRegistry(
		&kind[model.HeroSlide]{
			key:   model.ResourceHeroSlides,
			title: func(h model.HeroSlide) string { return h.Title },
		},
		&kind[model.CTACard]{
			key:   model.ResourceCTACards,
			title: func(c model.CTACard) string { return c.Title },
		},
		&kind[model.Branch]{
			key:   model.ResourceBranches,
			title: func(b model.Branch) string { return b.Name },
		},
		&kind[model.Rate]{
			key: model.ResourceRates,
			title: func(r model.Rate) string {
				return fmt.Sprintf("%s (%.2f%%, %d months)", r.Product, r.APR, r.TermMonths)
			},
		},
		&kind[model.TeamMember]{
			key:   model.ResourceTeam,
			title: func(m model.TeamMember) string { return m.Name + ", " + m.Role },
		},
		&kind[model.ServiceBlock]{
			key:   model.ResourceServices,
			title: func(s model.ServiceBlock) string { return s.Heading },
			defaults: []model.ServiceBlock{
				{Heading: "Personal loans", Body: "Fixed rates and terms from 6 to 60 months."},
				{Heading: "Business loans", Body: "Working capital for small businesses."},
			},
			preview: previewServices,
		},
	)
}

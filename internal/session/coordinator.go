// Package session coordinates one editing session over a content collection:
// loading, item edits, reordering, manual and automatic saves, reset, the
// leave guard and reaction to changes made elsewhere.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/debemdeboas/lending-admin/internal/autosave"
	"github.com/debemdeboas/lending-admin/internal/draft"
	"github.com/debemdeboas/lending-admin/internal/gateway"
	"github.com/debemdeboas/lending-admin/internal/model"
	"github.com/debemdeboas/lending-admin/internal/reorder"
)

const DefaultTimeout = 10 * time.Second

var (
	ErrNoGesture = errors.New("no drag in progress")
	ErrNotLoaded = errors.New("session not loaded")
)

var sessionLogger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	sessionLogger = l
}

type Options[T any] struct {
	Key     model.ResourceKey
	Gateway gateway.Gateway[T]

	// Default seeds the session when nothing was ever saved under Key.
	Default model.Collection[T]

	// Validate defaults to model.ValidateCollection.
	Validate func(model.Collection[T]) error

	Autosave      bool
	AutosaveDelay time.Duration
	Clock         clockwork.Clock

	// Timeout bounds every gateway call.
	Timeout time.Duration

	Confirmer    Confirmer
	ConfirmSave  bool
	ConfirmReset bool
}

type Coordinator[T any] struct {
	opts      Options[T]
	clock     clockwork.Clock
	store     *draft.Store[T]
	scheduler *autosave.Scheduler

	// saveMu serializes every gateway save of this session and the handling
	// of remote changes against them.
	saveMu sync.Mutex

	mu          sync.Mutex
	loaded      bool
	inFlight    bool
	gesture     *reorder.Gesture[T]
	conflict    *model.ConflictError
	remote      model.Collection[T]
	lastErr     error
	autosaved   time.Time
	unsubscribe func()
}

func New[T any](opts Options[T]) *Coordinator[T] {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Validate == nil {
		opts.Validate = model.ValidateCollection[T]
	}
	if opts.Confirmer == nil {
		opts.Confirmer = ContextConfirmer{}
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}

	c := &Coordinator[T]{
		opts:  opts,
		clock: opts.Clock,
		store: draft.New[T](),
	}

	if opts.Autosave {
		c.scheduler = autosave.New(autosave.Options{
			Delay: opts.AutosaveDelay,
			Clock: opts.Clock,
			Ready: func() error {
				return c.opts.Validate(c.store.Draft())
			},
			Save: c.autosave,
			Done: c.autosaveDone,
		})
	}

	c.store.Observe(c.onChange)
	return c
}

func (c *Coordinator[T]) Key() model.ResourceKey {
	return c.opts.Key
}

func (c *Coordinator[T]) log() *zerolog.Logger {
	l := sessionLogger.With().Str("resource", string(c.opts.Key)).Logger()
	return &l
}

func (c *Coordinator[T]) onChange(change draft.Change) {
	if c.scheduler == nil {
		return
	}
	switch change.Kind {
	case draft.Mutated:
		c.scheduler.Notify()
	case draft.Loaded, draft.Reverted, draft.Adopted:
		c.scheduler.Cancel()
	}
}

func (c *Coordinator[T]) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.opts.Timeout)
}

// Load fetches the collection and starts following changes made elsewhere.
// A collection that was never saved is seeded with the default.
func (c *Coordinator[T]) Load(ctx context.Context) error {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	items, err := c.fetch(ctx)
	if err != nil {
		c.setError(err)
		return err
	}
	c.store.Load(items)

	c.mu.Lock()
	c.loaded = true
	c.conflict = nil
	c.remote = nil
	c.lastErr = nil
	c.gesture = nil
	subscribe := c.unsubscribe == nil
	if subscribe {
		c.unsubscribe = func() {}
	}
	c.mu.Unlock()

	if subscribe {
		unsubscribe := c.opts.Gateway.Subscribe(c.opts.Key, c.onRemote)
		c.mu.Lock()
		c.unsubscribe = unsubscribe
		c.mu.Unlock()
	}
	return nil
}

func (c *Coordinator[T]) fetch(ctx context.Context) (model.Collection[T], error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	snapshot, err := c.opts.Gateway.Load(ctx, c.opts.Key)
	if errors.Is(err, model.ErrNotFound) {
		c.log().Info().Msg("Nothing saved yet, seeding with defaults")
		return c.seed(), nil
	}
	if err != nil {
		return nil, &model.TransportError{Op: "load", Key: c.opts.Key, Err: err}
	}

	items := snapshot.Items
	if !reorder.Settled(items) {
		items = reorder.Normalize(items)
	}
	return items, nil
}

func (c *Coordinator[T]) seed() model.Collection[T] {
	items := c.opts.Default.Clone()
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = model.NewDurableID()
		}
	}
	return reorder.Normalize(items)
}

func (c *Coordinator[T]) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}

// Mutate applies updater to the draft and reports whether it is dirty.
func (c *Coordinator[T]) Mutate(updater func(model.Collection[T]) model.Collection[T]) bool {
	return c.store.Mutate(updater)
}

// AddItem appends an item with a provisional id after the last one.
func (c *Coordinator[T]) AddItem(fields T) model.ItemID {
	id := model.NewProvisionalID()
	c.store.Mutate(func(items model.Collection[T]) model.Collection[T] {
		order := 1
		if len(items) > 0 {
			order = items.MaxOrder() + 1
		}
		return append(items, model.Item[T]{ID: id, Order: order, Fields: fields})
	})
	return id
}

func (c *Coordinator[T]) UpdateItem(id model.ItemID, update func(*T)) error {
	id = c.store.Resolve(id)

	var err error
	c.store.Mutate(func(items model.Collection[T]) model.Collection[T] {
		i, ok := items.Find(id)
		if !ok {
			err = reorder.ErrUnknownItem
			return items
		}
		update(&items[i].Fields)
		return items
	})
	return err
}

// RemoveItem deletes the item and renumbers the rest densely.
func (c *Coordinator[T]) RemoveItem(id model.ItemID) error {
	id = c.store.Resolve(id)

	var err error
	c.store.Mutate(func(items model.Collection[T]) model.Collection[T] {
		i, ok := items.Find(id)
		if !ok {
			err = reorder.ErrUnknownItem
			return items
		}
		return reorder.Normalize(append(items[:i], items[i+1:]...))
	})
	return err
}

func (c *Coordinator[T]) Move(id model.ItemID, dir reorder.Direction) error {
	id = c.store.Resolve(id)

	var err error
	c.store.Mutate(func(items model.Collection[T]) model.Collection[T] {
		var out model.Collection[T]
		out, err = reorder.AdjacentSwap(items, id, dir)
		return out
	})
	return err
}

// BeginDrag snapshots the draft for a drag gesture starting at sorted index from.
func (c *Coordinator[T]) BeginDrag(from int) error {
	g, err := reorder.BeginGesture(c.store.Draft(), from)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.gesture = g
	c.mu.Unlock()
	return nil
}

// DragOver previews a drop at to without touching the draft.
func (c *Coordinator[T]) DragOver(to int) (model.Collection[T], error) {
	c.mu.Lock()
	g := c.gesture
	c.mu.Unlock()

	if g == nil {
		return nil, ErrNoGesture
	}
	return g.Over(to)
}

func (c *Coordinator[T]) Drop(to int) error {
	c.mu.Lock()
	g := c.gesture
	c.gesture = nil
	c.mu.Unlock()

	if g == nil {
		return ErrNoGesture
	}

	result, err := g.Over(to)
	if err != nil {
		return err
	}
	c.store.Mutate(func(items model.Collection[T]) model.Collection[T] {
		return reorder.Apply(items, result)
	})
	return nil
}

func (c *Coordinator[T]) CancelDrag() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gesture = nil
}

// Save validates the draft, asks for confirmation when configured and persists
// it. A clean draft is not sent. The draft is kept whatever the outcome.
func (c *Coordinator[T]) Save(ctx context.Context) error {
	if err := c.opts.Validate(c.store.Draft()); err != nil {
		c.setError(err)
		return err
	}
	if c.opts.ConfirmSave && !c.opts.Confirmer.Confirm(ctx, PromptSave) {
		return ErrCancelled
	}
	return c.persist(ctx, false)
}

func (c *Coordinator[T]) autosave(ctx context.Context) error {
	if err := c.opts.Validate(c.store.Draft()); err != nil {
		return nil
	}
	return c.persist(ctx, false)
}

// autosaveDone records when an autosave run left the draft clean. Failed runs
// are already recorded by persist; skipped invalid drafts stay dirty.
func (c *Coordinator[T]) autosaveDone(err error) {
	if err != nil || c.store.Dirty() {
		return
	}
	c.mu.Lock()
	c.autosaved = c.clock.Now()
	c.mu.Unlock()
}

func (c *Coordinator[T]) persist(ctx context.Context, force bool) error {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	if !force && !c.store.Dirty() {
		return nil
	}

	c.setInFlight(true)
	defer c.setInFlight(false)

	ticket := c.store.Begin()

	saveCtx, cancel := c.withTimeout(ctx)
	result, err := c.opts.Gateway.Save(saveCtx, c.opts.Key, model.Snapshot[T]{Items: ticket.Draft})
	cancel()

	if err != nil {
		var validationErr *model.ValidationError
		if !errors.As(err, &validationErr) {
			err = &model.TransportError{Op: "save", Key: c.opts.Key, Err: err}
		}
		c.log().Error().Err(err).Msg("Save failed, draft kept")
		c.setError(err)
		return err
	}

	if err := c.store.Commit(ticket, result); err != nil {
		conflict := model.NewConflictError(c.opts.Key)
		c.log().Warn().Err(err).Msg("Save result is stale, not committed")

		c.mu.Lock()
		c.conflict = conflict
		c.lastErr = conflict
		c.mu.Unlock()
		return conflict
	}

	c.mu.Lock()
	c.lastErr = nil
	c.conflict = nil
	c.remote = nil
	c.mu.Unlock()
	return nil
}

// Reset discards the draft after confirmation when configured. Calling it
// again has no further effect.
func (c *Coordinator[T]) Reset(ctx context.Context) error {
	if c.opts.ConfirmReset && !c.opts.Confirmer.Confirm(ctx, PromptReset) {
		return ErrCancelled
	}

	c.store.Revert()

	c.mu.Lock()
	c.gesture = nil
	if c.conflict == nil {
		c.lastErr = nil
	}
	c.mu.Unlock()
	return nil
}

// ResetToLatest resolves a conflict by discarding the draft and reloading the
// stored collection.
func (c *Coordinator[T]) ResetToLatest(ctx context.Context) error {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	items, err := c.fetch(ctx)
	if err != nil {
		c.setError(err)
		return err
	}
	c.store.Load(items)

	c.mu.Lock()
	c.conflict = nil
	c.remote = nil
	c.lastErr = nil
	c.gesture = nil
	c.mu.Unlock()
	return nil
}

// ForceOverwrite resolves a conflict by replacing the stored collection with
// the draft, even when the draft is clean.
func (c *Coordinator[T]) ForceOverwrite(ctx context.Context) error {
	if err := c.opts.Validate(c.store.Draft()); err != nil {
		c.setError(err)
		return err
	}
	return c.persist(ctx, true)
}

// CanLeave reports whether the page may be left without losing edits.
func (c *Coordinator[T]) CanLeave() bool {
	c.mu.Lock()
	inFlight := c.inFlight
	c.mu.Unlock()

	dirty := c.store.Dirty()
	if c.scheduler == nil {
		return !dirty && !inFlight
	}
	if inFlight || c.scheduler.InFlight() {
		return false
	}
	return !dirty || c.scheduler.Pending()
}

// ConfirmLeave is CanLeave, falling back to asking the user.
func (c *Coordinator[T]) ConfirmLeave(ctx context.Context) bool {
	return c.CanLeave() || c.opts.Confirmer.Confirm(ctx, PromptLeave)
}

// onRemote treats a delivered snapshot only as a change signal. It may have
// been read before a later save of this session, so the stored collection is
// loaded again under saveMu and compared instead.
func (c *Coordinator[T]) onRemote(model.Snapshot[T]) {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	ctx, cancel := c.withTimeout(context.Background())
	snapshot, err := c.opts.Gateway.Load(ctx, c.opts.Key)
	cancel()
	if err != nil {
		c.log().Warn().Err(err).Msg("Error reloading collection changed elsewhere")
		return
	}

	if c.store.MatchesBaseline(snapshot.Items) {
		return
	}

	if c.store.Adopt(snapshot.Items) {
		c.log().Info().Msg("Adopted change made elsewhere")
		c.mu.Lock()
		c.conflict = nil
		c.remote = nil
		c.mu.Unlock()
		return
	}

	c.log().Warn().Msg("Collection changed elsewhere while draft is dirty")
	conflict := model.NewConflictError(c.opts.Key)

	c.mu.Lock()
	c.conflict = conflict
	c.remote = snapshot.Items.Clone()
	c.mu.Unlock()
}

func (c *Coordinator[T]) setInFlight(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight = v
}

func (c *Coordinator[T]) setError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastErr = err
}

func (c *Coordinator[T]) Draft() model.Collection[T] {
	return c.store.Draft()
}

func (c *Coordinator[T]) Baseline() model.Collection[T] {
	return c.store.Baseline()
}

func (c *Coordinator[T]) Dirty() bool {
	return c.store.Dirty()
}

// Remote returns the change made elsewhere that is waiting on a conflict decision.
func (c *Coordinator[T]) Remote() (model.Collection[T], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.remote == nil {
		return nil, false
	}
	return c.remote.Clone(), true
}

type State[T any] struct {
	Key             model.ResourceKey    `json:"key"`
	Items           model.Collection[T]  `json:"items"`
	Dirty           bool                 `json:"dirty"`
	Autosave        bool                 `json:"autosave"`
	Saving          bool                 `json:"saving"`
	AutosavePending bool                 `json:"autosavePending"`
	Dragging        bool                 `json:"dragging"`
	CanLeave        bool                 `json:"canLeave"`
	Conflict        *model.ConflictError `json:"conflict,omitempty"`
	LastAutosave    *time.Time           `json:"lastAutosave,omitempty"`
	LastError       string               `json:"lastError,omitempty"`
	ErrorKind       model.ErrorKind      `json:"errorKind,omitempty"`
}

func (c *Coordinator[T]) State() State[T] {
	canLeave := c.CanLeave()

	c.mu.Lock()
	defer c.mu.Unlock()

	s := State[T]{
		Key:      c.opts.Key,
		Items:    c.store.Draft(),
		Dirty:    c.store.Dirty(),
		Autosave: c.scheduler != nil,
		Saving:   c.inFlight,
		Dragging: c.gesture != nil,
		CanLeave: canLeave,
		Conflict: c.conflict,
	}
	if c.scheduler != nil {
		s.AutosavePending = c.scheduler.Pending()
	}
	if !c.autosaved.IsZero() {
		at := c.autosaved
		s.LastAutosave = &at
	}
	if c.lastErr != nil {
		s.LastError = c.lastErr.Error()
		s.ErrorKind = model.KindOf(c.lastErr)
	}
	return s
}

// Close stops autosave and change delivery. Pending autosaves are dropped.
func (c *Coordinator[T]) Close() {
	if c.scheduler != nil {
		c.scheduler.Stop()
	}

	c.mu.Lock()
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

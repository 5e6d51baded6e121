// Package draft holds the editable copy of a collection next to the last
// snapshot known to match the backend.
package draft

import (
	"errors"
	"sync"

	"github.com/debemdeboas/lending-admin/internal/model"
	"github.com/debemdeboas/lending-admin/internal/util"
)

// ErrStale is returned by Commit when the baseline moved since the save began.
var ErrStale = errors.New("save result is stale")

type ChangeKind int

const (
	Loaded ChangeKind = iota
	Mutated
	Committed
	Reverted
	Adopted
)

func (k ChangeKind) String() string {
	switch k {
	case Loaded:
		return "loaded"
	case Mutated:
		return "mutated"
	case Committed:
		return "committed"
	case Reverted:
		return "reverted"
	case Adopted:
		return "adopted"
	}
	return "unknown"
}

type Change struct {
	Kind  ChangeKind
	Dirty bool
}

// Ticket captures the draft at the moment a save starts.
type Ticket[T any] struct {
	Draft model.Collection[T]

	lineage  uint64
	revision uint64
}

type Store[T any] struct {
	mu sync.Mutex

	baseline   model.Collection[T]
	draft      model.Collection[T]
	baselineFP string
	dirty      bool

	// lineage changes whenever the baseline is replaced or the draft reverted.
	lineage uint64
	// revision changes whenever the draft is replaced.
	revision uint64

	aliases   map[model.ItemID]model.ItemID
	observers []func(Change)
}

func New[T any]() *Store[T] {
	return &Store[T]{
		baseline: model.Collection[T]{},
		draft:    model.Collection[T]{},
		aliases:  make(map[model.ItemID]model.ItemID),
	}
}

// Observe registers fn to be called after every change, outside the store lock.
func (s *Store[T]) Observe(fn func(Change)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

func (s *Store[T]) notify(kind ChangeKind, dirty bool) {
	s.mu.Lock()
	observers := append([]func(Change){}, s.observers...)
	s.mu.Unlock()

	for _, fn := range observers {
		fn(Change{Kind: kind, Dirty: dirty})
	}
}

func (s *Store[T]) Load(snapshot model.Collection[T]) {
	s.mu.Lock()
	s.setBaselineLocked(snapshot)
	s.draft = s.baseline.Clone()
	s.dirty = false
	s.revision++
	s.aliases = make(map[model.ItemID]model.ItemID)
	s.mu.Unlock()

	s.notify(Loaded, false)
}

// Mutate replaces the draft with updater applied to a copy of it and returns
// the resulting dirty flag.
func (s *Store[T]) Mutate(updater func(model.Collection[T]) model.Collection[T]) bool {
	s.mu.Lock()
	next := updater(s.draft.Clone())
	if next == nil {
		next = model.Collection[T]{}
	}
	s.draft = next
	s.revision++
	s.dirty = s.differsLocked(s.draft)
	dirty := s.dirty
	s.mu.Unlock()

	s.notify(Mutated, dirty)
	return dirty
}

func (s *Store[T]) Begin() Ticket[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Ticket[T]{
		Draft:    s.draft.Clone(),
		lineage:  s.lineage,
		revision: s.revision,
	}
}

// Commit installs the result of a successful save as the new baseline. When
// the draft was edited during the round-trip it is kept, with provisional ids
// remapped through result.IDMap.
func (s *Store[T]) Commit(t Ticket[T], result model.Snapshot[T]) error {
	s.mu.Lock()
	if t.lineage != s.lineage {
		s.mu.Unlock()
		return ErrStale
	}

	s.setBaselineLocked(result.Items)
	for provisional, durable := range result.IDMap {
		s.aliases[provisional] = durable
	}

	if s.revision == t.revision {
		s.draft = s.baseline.Clone()
		s.dirty = false
	} else {
		s.draft = remap(s.draft, result.IDMap)
		s.dirty = s.differsLocked(s.draft)
	}
	dirty := s.dirty
	s.mu.Unlock()

	s.notify(Committed, dirty)
	return nil
}

func (s *Store[T]) Revert() {
	s.mu.Lock()
	s.draft = s.baseline.Clone()
	s.dirty = false
	s.lineage++
	s.revision++
	s.mu.Unlock()

	s.notify(Reverted, false)
}

// Adopt replaces baseline and draft with snapshot, but only while clean.
func (s *Store[T]) Adopt(snapshot model.Collection[T]) bool {
	s.mu.Lock()
	if s.dirty {
		s.mu.Unlock()
		return false
	}
	s.setBaselineLocked(snapshot)
	s.draft = s.baseline.Clone()
	s.revision++
	s.mu.Unlock()

	s.notify(Adopted, false)
	return true
}

func (s *Store[T]) Draft() model.Collection[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft.Sorted()
}

func (s *Store[T]) Baseline() model.Collection[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseline.Sorted()
}

func (s *Store[T]) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// MatchesBaseline reports whether c is value-equal to the current baseline.
func (s *Store[T]) MatchesBaseline(c model.Collection[T]) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.differsLocked(c)
}

// Resolve maps an id reconciled by an earlier commit to its durable id.
func (s *Store[T]) Resolve(id model.ItemID) model.ItemID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if durable, ok := s.aliases[id]; ok {
		return durable
	}
	return id
}

func (s *Store[T]) setBaselineLocked(c model.Collection[T]) {
	s.baseline = c.Sorted()
	s.baselineFP = fingerprint(s.baseline)
	s.lineage++
}

func (s *Store[T]) differsLocked(c model.Collection[T]) bool {
	fp := fingerprint(c)
	return fp == "" || fp != s.baselineFP
}

// fingerprint is empty when c cannot be encoded; such drafts always count as dirty.
func fingerprint[T any](c model.Collection[T]) string {
	fp, err := util.JSONHash(c.Sorted())
	if err != nil {
		draftLogger.Warn().Err(err).Msg("Failed to fingerprint collection")
		return ""
	}
	return fp
}

func remap[T any](c model.Collection[T], ids map[model.ItemID]model.ItemID) model.Collection[T] {
	if len(ids) == 0 {
		return c
	}
	out := c.Clone()
	for i := range out {
		if durable, ok := ids[out[i].ID]; ok {
			out[i].ID = durable
		}
	}
	return out
}

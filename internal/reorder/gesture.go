package reorder

import (
	"fmt"

	"github.com/debemdeboas/lending-admin/internal/model"
)

// Gesture is one drag-and-drop interaction. Every Over call is computed against
// the snapshot taken when the gesture began, never against a partially updated
// collection, so a burst of drag-over events cannot drift order values.
type Gesture[T any] struct {
	snapshot model.Collection[T]
	from     int
}

func BeginGesture[T any](c model.Collection[T], from int) (*Gesture[T], error) {
	snapshot := prepare(c)
	if from < 0 || from >= len(snapshot) {
		return nil, fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, from, len(snapshot))
	}
	return &Gesture[T]{snapshot: snapshot, from: from}, nil
}

func (g *Gesture[T]) From() int {
	return g.from
}

func (g *Gesture[T]) ID() model.ItemID {
	return g.snapshot[g.from].ID
}

// Over returns the collection as it would look if the item were dropped at to.
func (g *Gesture[T]) Over(to int) (model.Collection[T], error) {
	return RangeShift(g.snapshot, g.from, to)
}

// Apply copies the order values of result onto current by id. Items of current
// missing from result (added mid-gesture) are placed after the rest.
func Apply[T any](current, result model.Collection[T]) model.Collection[T] {
	orders := make(map[model.ItemID]int, len(result))
	for _, it := range result {
		orders[it.ID] = it.Order
	}

	out := current.Clone()
	next := result.MaxOrder()
	for i := range out {
		if o, ok := orders[out[i].ID]; ok {
			out[i].Order = o
			continue
		}
		next++
		out[i].Order = next
	}

	if !Settled(out) {
		return Normalize(out)
	}
	return out.Sorted()
}

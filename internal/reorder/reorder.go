// Package reorder keeps the order field of a collection consistent under
// button moves and drag-and-drop.
package reorder

import (
	"errors"
	"fmt"

	"github.com/debemdeboas/lending-admin/internal/model"
)

type Direction int

const (
	Up   Direction = -1
	Down Direction = 1
)

func ParseDirection(s string) (Direction, error) {
	switch s {
	case "up":
		return Up, nil
	case "down":
		return Down, nil
	}
	return 0, fmt.Errorf("invalid direction %q", s)
}

var (
	ErrUnknownItem     = errors.New("unknown item")
	ErrIndexOutOfRange = errors.New("index out of range")
)

// Settled reports whether every order value is unique.
func Settled[T any](c model.Collection[T]) bool {
	seen := make(map[int]bool, len(c))
	for _, it := range c {
		if seen[it.Order] {
			return false
		}
		seen[it.Order] = true
	}
	return true
}

// Dense reports whether the sorted order values are consecutive integers.
func Dense[T any](c model.Collection[T]) bool {
	sorted := c.Sorted()
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Order != sorted[i-1].Order+1 {
			return false
		}
	}
	return true
}

// Numbered reports whether the sorted order values are exactly 1..N.
func Numbered[T any](c model.Collection[T]) bool {
	for i, it := range c.Sorted() {
		if it.Order != i+1 {
			return false
		}
	}
	return true
}

// Normalize renumbers the collection 1..N by current sorted position.
func Normalize[T any](c model.Collection[T]) model.Collection[T] {
	out := c.Sorted()
	for i := range out {
		out[i].Order = i + 1
	}
	return out
}

func prepare[T any](c model.Collection[T]) model.Collection[T] {
	if !Dense(c) {
		return Normalize(c)
	}
	return c.Sorted()
}

// AdjacentSwap swaps the order of item id with its neighbour in dir.
// At a boundary the collection is returned unchanged.
func AdjacentSwap[T any](c model.Collection[T], id model.ItemID, dir Direction) (model.Collection[T], error) {
	out := prepare(c)

	i, ok := out.Find(id)
	if !ok {
		return out, fmt.Errorf("%w: %s", ErrUnknownItem, id)
	}

	j := i + int(dir)
	if j < 0 || j >= len(out) {
		return out, nil
	}

	out[i].Order, out[j].Order = out[j].Order, out[i].Order
	out[i], out[j] = out[j], out[i]
	return out, nil
}

// RangeShift moves the item at sorted index from to sorted index to. Items
// between the two positions shift by one towards the vacated slot.
func RangeShift[T any](c model.Collection[T], from, to int) (model.Collection[T], error) {
	out := prepare(c)

	if from < 0 || from >= len(out) || to < 0 || to >= len(out) {
		return out, fmt.Errorf("%w: %d -> %d (len %d)", ErrIndexOutOfRange, from, to, len(out))
	}
	if from == to {
		return out, nil
	}

	oldOrder := out[from].Order
	newOrder := out[to].Order

	for i := range out {
		o := out[i].Order
		switch {
		case i == from:
			out[i].Order = newOrder
		case from < to && o > oldOrder && o <= newOrder:
			out[i].Order = o - 1
		case from > to && o >= newOrder && o < oldOrder:
			out[i].Order = o + 1
		}
	}

	return out.Sorted(), nil
}

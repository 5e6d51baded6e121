// Package model defines the content collections edited from the admin surface.
package model

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
)

type ItemID string

type ResourceKey string

// ProvisionalPrefix marks ids generated locally before the backend assigned a durable one.
const ProvisionalPrefix = "tmp-"

func NewProvisionalID() ItemID {
	return ItemID(ProvisionalPrefix + uuid.New().String())
}

func NewDurableID() ItemID {
	return ItemID(uuid.New().String())
}

func (id ItemID) IsProvisional() bool {
	return strings.HasPrefix(string(id), ProvisionalPrefix)
}

// Item is one entry of a collection. Fields must be a plain value type: it is
// copied, never deep-cloned.
type Item[T any] struct {
	ID     ItemID
	Order  int
	Fields T
}

type itemHeader struct {
	ID    ItemID `json:"id"`
	Order int    `json:"order"`
}

func (it Item[T]) MarshalJSON() ([]byte, error) {
	raw, err := json.Marshal(it.Fields)
	if err != nil {
		return nil, fmt.Errorf("error encoding item %s: %w", it.ID, err)
	}

	obj := make(map[string]json.RawMessage)
	if string(raw) != "null" {
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, fmt.Errorf("item %s fields must encode to an object: %w", it.ID, err)
		}
	}

	id, _ := json.Marshal(it.ID)
	order, _ := json.Marshal(it.Order)
	obj["id"] = id
	obj["order"] = order

	return json.Marshal(obj)
}

func (it *Item[T]) UnmarshalJSON(data []byte) error {
	var header itemHeader
	if err := json.Unmarshal(data, &header); err != nil {
		return fmt.Errorf("error decoding item header: %w", err)
	}

	var fields T
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("error decoding item %s: %w", header.ID, err)
	}

	it.ID = header.ID
	it.Order = header.Order
	it.Fields = fields
	return nil
}

// Collection is an unordered set of items; display position is given by Order.
type Collection[T any] []Item[T]

func (c Collection[T]) Clone() Collection[T] {
	if c == nil {
		return Collection[T]{}
	}
	return slices.Clone(c)
}

// Sorted returns a copy ordered by Order, ties broken by ID.
func (c Collection[T]) Sorted() Collection[T] {
	out := c.Clone()
	slices.SortStableFunc(out, func(a, b Item[T]) int {
		if a.Order != b.Order {
			return a.Order - b.Order
		}
		return strings.Compare(string(a.ID), string(b.ID))
	})
	return out
}

func (c Collection[T]) Find(id ItemID) (int, bool) {
	for i := range c {
		if c[i].ID == id {
			return i, true
		}
	}
	return -1, false
}

func (c Collection[T]) MaxOrder() int {
	max := 0
	for i, it := range c {
		if i == 0 || it.Order > max {
			max = it.Order
		}
	}
	return max
}

// Snapshot is the unit exchanged with a persistence backend.
type Snapshot[T any] struct {
	Items Collection[T] `json:"items"`

	// IDMap maps provisional ids to the durable ids the backend assigned on save.
	IDMap map[ItemID]ItemID `json:"idMap,omitempty"`
}

package editor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/debemdeboas/lending-admin/internal/model"
	"github.com/debemdeboas/lending-admin/internal/render"
	"github.com/debemdeboas/lending-admin/internal/reorder"
	"github.com/debemdeboas/lending-admin/internal/session"
)

var (
	errBadRequest    = errors.New("bad request")
	errNoPreview     = errors.New("collection has no preview")
	errUnknownOp     = errors.New("unknown operation")
	errUnknownRemedy = errors.New("unknown remedy")
)

const (
	OpAdd        = "add"
	OpUpdate     = "update"
	OpRemove     = "remove"
	OpMove       = "move"
	OpDragStart  = "drag-start"
	OpDragOver   = "drag-over"
	OpDrop       = "drop"
	OpDragCancel = "drag-cancel"
)

// Op is one editing operation posted by the admin page.
type Op struct {
	Op        string          `json:"op"`
	ID        model.ItemID    `json:"id,omitempty"`
	Fields    json.RawMessage `json:"fields,omitempty"`
	Direction string          `json:"direction,omitempty"`
	From      *int            `json:"from,omitempty"`
	To        *int            `json:"to,omitempty"`
}

// Binding is an editing session with its item type erased.
type Binding interface {
	Key() model.ResourceKey
	Load(ctx context.Context) error
	Loaded() bool

	// Apply runs op. The result is op specific: the new id for add, the
	// preview collection for drag-over, nil otherwise.
	Apply(op Op) (any, error)

	Save(ctx context.Context) error
	Reset(ctx context.Context) error
	Resolve(ctx context.Context, remedy model.Remedy) error
	CanLeave() bool
	ConfirmLeave(ctx context.Context) bool

	// Preview renders the draft as it would appear on the site.
	Preview(source bool) ([]byte, error)

	State() any
	Close()
}

type binding[T any] struct {
	*session.Coordinator[T]
	kind     *kind[T]
	renderer *render.Renderer
}

func index(v *int, name string) (int, error) {
	if v == nil {
		return 0, fmt.Errorf("%w: %s is required", errBadRequest, name)
	}
	return *v, nil
}

func (b *binding[T]) Apply(op Op) (any, error) {
	switch op.Op {
	case OpAdd:
		var fields T
		if len(op.Fields) > 0 {
			if err := json.Unmarshal(op.Fields, &fields); err != nil {
				return nil, fmt.Errorf("%w: %v", errBadRequest, err)
			}
		}
		return map[string]model.ItemID{"id": b.AddItem(fields)}, nil

	case OpUpdate:
		if len(op.Fields) == 0 {
			return nil, fmt.Errorf("%w: fields are required", errBadRequest)
		}
		var decodeErr error
		err := b.UpdateItem(op.ID, func(fields *T) {
			// Absent keys keep their current value.
			next := *fields
			if err := json.Unmarshal(op.Fields, &next); err != nil {
				decodeErr = fmt.Errorf("%w: %v", errBadRequest, err)
				return
			}
			*fields = next
		})
		if decodeErr != nil {
			return nil, decodeErr
		}
		return nil, err

	case OpRemove:
		return nil, b.RemoveItem(op.ID)

	case OpMove:
		dir, err := reorder.ParseDirection(op.Direction)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errBadRequest, err)
		}
		return nil, b.Move(op.ID, dir)

	case OpDragStart:
		from, err := index(op.From, "from")
		if err != nil {
			return nil, err
		}
		return nil, b.BeginDrag(from)

	case OpDragOver:
		to, err := index(op.To, "to")
		if err != nil {
			return nil, err
		}
		preview, err := b.DragOver(to)
		if err != nil {
			return nil, err
		}
		return map[string]any{"preview": preview}, nil

	case OpDrop:
		to, err := index(op.To, "to")
		if err != nil {
			return nil, err
		}
		return nil, b.Drop(to)

	case OpDragCancel:
		b.CancelDrag()
		return nil, nil
	}
	return nil, fmt.Errorf("%w: %q", errUnknownOp, op.Op)
}

func (b *binding[T]) Resolve(ctx context.Context, remedy model.Remedy) error {
	switch remedy {
	case model.RemedyResetToLatest:
		return b.ResetToLatest(ctx)
	case model.RemedyForceOverwrite:
		return b.ForceOverwrite(ctx)
	}
	return fmt.Errorf("%w: %q", errUnknownRemedy, remedy)
}

func (b *binding[T]) Preview(source bool) ([]byte, error) {
	if b.kind.preview == nil || b.renderer == nil {
		return nil, errNoPreview
	}
	return b.kind.preview(b.renderer, b.Draft(), source)
}

func (b *binding[T]) State() any {
	return b.Coordinator.State()
}

package session

import (
	"context"
	"errors"
)

// ErrCancelled is returned when the user declines a confirmation.
var ErrCancelled = errors.New("cancelled by user")

type Prompt string

const (
	PromptSave  Prompt = "save"
	PromptReset Prompt = "reset"
	PromptLeave Prompt = "leave"
)

type Confirmer interface {
	Confirm(ctx context.Context, prompt Prompt) bool
}

type ConfirmFunc func(ctx context.Context, prompt Prompt) bool

func (f ConfirmFunc) Confirm(ctx context.Context, prompt Prompt) bool {
	return f(ctx, prompt)
}

type confirmKey struct{}

// WithConfirmation records the user's answer for the request carried by ctx.
func WithConfirmation(ctx context.Context, confirmed bool) context.Context {
	return context.WithValue(ctx, confirmKey{}, confirmed)
}

// ContextConfirmer answers from the value set by WithConfirmation and declines
// when none was set.
type ContextConfirmer struct{}

func (ContextConfirmer) Confirm(ctx context.Context, _ Prompt) bool {
	confirmed, _ := ctx.Value(confirmKey{}).(bool)
	return confirmed
}

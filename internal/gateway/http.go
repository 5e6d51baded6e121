package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/debemdeboas/lending-admin/internal/model"
)

// APIError is a non-2xx response from the collections API.
type APIError struct {
	Status  int
	Kind    model.ErrorKind `json:"kind"`
	Message string          `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("collections api: %d %s: %s", e.Status, e.Kind, e.Message)
}

// HTTP is the network adapter for /api/collections/{key}. It has no change
// feed, so Subscribe is a no-op.
type HTTP[T any] struct {
	baseURL string
	client  *http.Client
}

func NewHTTP[T any](baseURL string, client *http.Client) *HTTP[T] {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTP[T]{baseURL: strings.TrimSuffix(baseURL, "/"), client: client}
}

func (g *HTTP[T]) url(key model.ResourceKey) string {
	return g.baseURL + "/api/collections/" + url.PathEscape(string(key))
}

func (g *HTTP[T]) Load(ctx context.Context, key model.ResourceKey) (model.Snapshot[T], error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.url(key), nil)
	if err != nil {
		return model.Snapshot[T]{}, err
	}
	return g.do(req)
}

func (g *HTTP[T]) Save(ctx context.Context, key model.ResourceKey, snapshot model.Snapshot[T]) (model.Snapshot[T], error) {
	body, err := json.Marshal(snapshot)
	if err != nil {
		return model.Snapshot[T]{}, fmt.Errorf("error encoding %s: %w", key, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, g.url(key), bytes.NewReader(body))
	if err != nil {
		return model.Snapshot[T]{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	return g.do(req)
}

func (g *HTTP[T]) Subscribe(model.ResourceKey, func(model.Snapshot[T])) func() {
	return func() {}
}

func (g *HTTP[T]) do(req *http.Request) (model.Snapshot[T], error) {
	resp, err := g.client.Do(req)
	if err != nil {
		return model.Snapshot[T]{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.Snapshot[T]{}, err
	}

	if resp.StatusCode == http.StatusNotFound {
		return model.Snapshot[T]{}, model.ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		if json.Unmarshal(data, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		if apiErr.Kind == model.KindValidation {
			return model.Snapshot[T]{}, &model.ValidationError{Message: apiErr.Message}
		}
		return model.Snapshot[T]{}, apiErr
	}

	var snapshot model.Snapshot[T]
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return model.Snapshot[T]{}, fmt.Errorf("error decoding snapshot: %w", err)
	}
	snapshot.Items = snapshot.Items.Sorted()
	return snapshot, nil
}

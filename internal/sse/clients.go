// Package sse pushes collection change events to open editor tabs.
package sse

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/lending-admin/internal/config"
	"github.com/debemdeboas/lending-admin/internal/model"
)

const EventReload = "reload"

type Client struct {
	Msg      chan string
	Resource model.ResourceKey
}

type SSEClients struct {
	clients map[*Client]bool
	mu      sync.RWMutex
}

func NewSSEClients() *SSEClients {
	return &SSEClients{
		clients: make(map[*Client]bool),
	}
}

func (s *SSEClients) Add(client *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[client] = true
}

func (s *SSEClients) Delete(client *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clients[client] {
		delete(s.clients, client)
		close(client.Msg)
	}
}

func (s *SSEClients) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Broadcast sends msg to every client following key. Slow clients miss it.
func (s *SSEClients) Broadcast(key model.ResourceKey, msg string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for client := range s.clients {
		if client.Resource == key {
			select {
			case client.Msg <- msg:
			default:
			}
		}
	}
}

// ServeHTTP streams events for the collection named by the resource query parameter.
func (s *SSEClients) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("resource")
	if key == "" {
		http.Error(w, "resource parameter required", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set(config.HCType, config.CTypeSSE)
	w.Header().Set(config.HCacheControl, "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Del("X-Content-Type-Options")

	fmt.Fprintf(w, "event: connected\ndata: %s\n\n", key)
	flusher.Flush()

	client := &Client{
		Msg:      make(chan string, 1),
		Resource: model.ResourceKey(key),
	}
	s.Add(client)

	log := zerolog.Ctx(r.Context())
	log.Debug().Str("resource", key).Msg("New SSE client connected")
	defer func() {
		s.Delete(client)
		log.Debug().Str("resource", key).Msg("SSE client disconnected")
	}()

	done := r.Context().Done()
	for {
		select {
		case msg := <-client.Msg:
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		case <-done:
			return
		}
	}
}

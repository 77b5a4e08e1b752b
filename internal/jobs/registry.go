package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Handler runs one claimed job. Run returning nil marks the run succeeded;
// an error marks it failed and leaves it for the retry policy.
type Handler interface {
	Type() string
	Run(ctx context.Context, payload json.RawMessage) error
}

type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

func (r *Registry) Register(h Handler) error {
	if h == nil {
		return fmt.Errorf("nil handler")
	}
	t := h.Type()
	if t == "" {
		return fmt.Errorf("handler Type() is empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[t]; exists {
		return fmt.Errorf("handler already registered for job_type=%s", t)
	}
	r.handlers[t] = h
	return nil
}

func (r *Registry) Get(jobType string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[jobType]
	return h, ok
}

// Known reports whether a type can be enqueued at all; the admin trigger
// rejects unknown types before writing a row.
func (r *Registry) Known(jobType string) bool {
	_, ok := r.Get(jobType)
	return ok
}

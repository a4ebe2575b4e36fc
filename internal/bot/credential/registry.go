// Package credential maps user identities to provider API keys, persisting
// registered keys through a CredentialStore.
package credential

import (
	"context"
	"fmt"
	"sync"

	"github.com/eigo-sensei/server/internal/bot/model"
	errx "github.com/eigo-sensei/server/internal/core/error"
	logx "github.com/eigo-sensei/server/pkg/logger"
)

// Checker validates an API key against the provider.
type Checker func(ctx context.Context, apiKey string) error

// Registry is the in-memory credential map. Registered keys are durable;
// adopted keys (the process-default fallback) live only in memory.
type Registry struct {
	mu         sync.RWMutex
	registered map[string]string
	adopted    map[string]string
	store      model.CredentialStore
	check      Checker
}

func New(store model.CredentialStore, check Checker) *Registry {
	return &Registry{
		registered: make(map[string]string),
		adopted:    make(map[string]string),
		store:      store,
		check:      check,
	}
}

// Bootstrap populates the registry from a persisted snapshot. A nil or empty
// snapshot simply leaves the registry empty.
func (r *Registry) Bootstrap(records map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for userID, key := range records {
		r.registered[userID] = key
	}
}

// Register validates the key, stores it and persists the full registered
// map. A rejected key returns errx.ErrInvalidCredential and mutates nothing.
func (r *Registry) Register(ctx context.Context, userID, apiKey string) error {
	if err := r.check(ctx, apiKey); err != nil {
		logx.Debug().Err(err).Str("user_id", userID).Msg("credential check rejected token")
		return errx.ErrInvalidCredential
	}

	r.mu.Lock()
	r.registered[userID] = apiKey
	snapshot := make(map[string]string, len(r.registered))
	for id, key := range r.registered {
		snapshot[id] = key
	}
	r.mu.Unlock()

	if err := r.store.Save(ctx, snapshot); err != nil {
		return fmt.Errorf("save credential snapshot: %w", err)
	}
	return nil
}

// Resolve returns the key in effect for the user: a registered key first,
// then a previously adopted fallback key.
func (r *Registry) Resolve(userID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if key, ok := r.registered[userID]; ok {
		return key, true
	}
	if key, ok := r.adopted[userID]; ok {
		return key, true
	}
	return "", false
}

// Adopt caches a fallback key for the user in memory only, so later turns
// reuse it without another lookup. Adopted keys are never persisted.
func (r *Registry) Adopt(userID, apiKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adopted[userID] = apiKey
}

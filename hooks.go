package sqlexec

import (
	"context"
	"sync"
)

// If set to true, statement hooks are skipped
type SkipHooksKey struct{}

// SkipHooks modifies a context to prevent hooks from running for any
// statement it encounters.
func SkipHooks(ctx context.Context) context.Context {
	return context.WithValue(ctx, SkipHooksKey{}, true)
}

// Invocation is a single statement about to be executed by a [Template].
// Hooks may rewrite the Args.
type Invocation struct {
	Op    string
	Query string
	Args  []any
}

// Hook is a function that can be called during lifecycle of an object
// the context can be modified and returned
// The caller is expected to use the returned context for subsequent processing
type Hook[T any] func(context.Context, T) (context.Context, error)

// Hooks is a set of hooks that can be called all at once
type Hooks[T any, K any] struct {
	mu    sync.RWMutex
	hooks []Hook[T]
	key   K
}

// AppendHooks a hook to the set
func (h *Hooks[T, K]) AppendHooks(hooks ...Hook[T]) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.hooks = append(h.hooks, hooks...)
}

// GetHooks returns all the hooks in the set
func (h *Hooks[T, K]) GetHooks() []Hook[T] {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.hooks
}

// RunHooks calls all the registered hooks.
// if the context is set to skip hooks, then RunHooks simply returns the context
func (h *Hooks[T, K]) RunHooks(ctx context.Context, o T) (context.Context, error) {
	if skip, ok := ctx.Value(h.key).(bool); skip && ok {
		return ctx, nil
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	var err error

	for _, hook := range h.hooks {
		if ctx, err = hook(ctx, o); err != nil {
			return ctx, err
		}
	}

	return ctx, nil
}

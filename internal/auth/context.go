package auth

import (
	"context"
	"sync"

	"github.com/felixgeelhaar/chatsql/internal/domain"
)

// Context holds the process-wide identity. It is created once by the
// composition root and handed to whoever needs it; Set is the only way the
// state changes.
type Context struct {
	mu     sync.RWMutex
	state  domain.AuthState
	events *domain.EventDispatcher
}

// NewContext creates an unauthenticated context. events may be nil.
func NewContext(events *domain.EventDispatcher) *Context {
	if events == nil {
		events = domain.NewEventDispatcher()
	}
	return &Context{events: events}
}

// State returns the current identity
func (c *Context) State() domain.AuthState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Set replaces the identity and notifies observers. An unauthenticated
// state never carries a username or role.
func (c *Context) Set(ctx context.Context, state domain.AuthState) {
	if !state.IsAuthenticated {
		state = domain.AuthState{}
	}

	c.mu.Lock()
	changed := c.state != state
	c.state = state
	c.mu.Unlock()

	if changed {
		c.events.Publish(ctx, domain.NewAuthChangedEvent(state))
	}
}

// Clear signs the context out
func (c *Context) Clear(ctx context.Context) {
	c.Set(ctx, domain.AuthState{})
}

// Subscribe registers fn for every identity change
func (c *Context) Subscribe(fn func(ctx context.Context, state domain.AuthState)) {
	c.events.Subscribe(domain.EventAuthChanged, func(ctx context.Context, e domain.Event) {
		if ev, ok := e.(domain.AuthChangedEvent); ok {
			fn(ctx, ev.State)
		}
	})
}

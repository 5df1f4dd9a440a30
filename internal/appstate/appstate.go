// Package appstate holds session-scoped view state: the signed-in agent,
// theme, and the active conversation selection. It is an explicit object
// with an init/teardown lifecycle, injected where needed — not an ambient
// singleton.
package appstate

import (
	"context"
	"sync"

	"github.com/tradmak/aixos/internal/domain"
	"github.com/tradmak/aixos/internal/gateway"
	aixos_errors "github.com/tradmak/aixos/pkg/errors"
)

type AppContext struct {
	data gateway.Data
	auth *gateway.AuthClient

	mu         sync.RWMutex
	agent      *domain.Agent
	theme      string
	activeKind domain.Kind
	activeID   string
	loading    bool
	listeners  map[int]func()
	seq        int
	authUnsub  gateway.Unsubscribe
}

func New(data gateway.Data, auth *gateway.AuthClient) *AppContext {
	return &AppContext{
		data:      data,
		auth:      auth,
		theme:     "light",
		loading:   true,
		listeners: make(map[int]func()),
	}
}

// Init loads the agent profile for the signed-in session and starts
// watching auth changes. Call once after sign-in.
func (a *AppContext) Init(ctx context.Context) error {
	state := a.auth.State()
	if !state.SignedIn {
		return aixos_errors.ErrUnauthorized
	}
	if err := a.loadAgent(ctx, state.AgentUserID); err != nil {
		return err
	}

	a.mu.Lock()
	if a.authUnsub == nil {
		a.authUnsub = a.auth.OnAuthChange(func(s gateway.AuthState) {
			if !s.SignedIn {
				a.teardown()
			}
		})
	}
	a.loading = false
	a.mu.Unlock()
	a.notify()
	return nil
}

func (a *AppContext) loadAgent(ctx context.Context, userID string) error {
	rows, err := a.data.Query(ctx, "agents", gateway.Filter{"user_id": gateway.Eq(userID)}, nil, 1)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return aixos_errors.ErrNotFound
	}
	agent := domain.AgentFromRow(rows[0])

	a.mu.Lock()
	a.agent = &agent
	if agent.Theme != "" {
		a.theme = agent.Theme
	}
	a.mu.Unlock()
	return nil
}

// SignOut revokes the platform session and clears local state.
func (a *AppContext) SignOut(ctx context.Context) error {
	err := a.auth.SignOut(ctx)
	a.teardown()
	return err
}

func (a *AppContext) teardown() {
	a.mu.Lock()
	a.agent = nil
	a.activeKind = ""
	a.activeID = ""
	a.theme = "light"
	a.loading = false
	a.mu.Unlock()
	a.notify()
}

func (a *AppContext) Agent() (domain.Agent, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.agent == nil {
		return domain.Agent{}, false
	}
	return *a.agent, true
}

// SetAgent installs an already-resolved identity. Used by middleware when
// the browser presents a platform-issued token for a different agent than
// the service session.
func (a *AppContext) SetAgent(agent domain.Agent) {
	a.mu.Lock()
	a.agent = &agent
	if agent.Theme != "" {
		a.theme = agent.Theme
	}
	a.mu.Unlock()
	a.notify()
}

func (a *AppContext) Theme() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.theme
}

func (a *AppContext) SetTheme(theme string) {
	a.mu.Lock()
	a.theme = theme
	a.mu.Unlock()
	a.notify()
}

func (a *AppContext) ActiveSelection() (domain.Kind, string) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.activeKind, a.activeID
}

func (a *AppContext) SetActiveSelection(kind domain.Kind, entityID string) {
	a.mu.Lock()
	a.activeKind = kind
	a.activeID = entityID
	a.mu.Unlock()
	a.notify()
}

func (a *AppContext) Loading() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.loading
}

// OnChange registers a listener fired after every state change.
func (a *AppContext) OnChange(fn func()) gateway.Unsubscribe {
	a.mu.Lock()
	a.seq++
	id := a.seq
	a.listeners[id] = fn
	a.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			a.mu.Lock()
			delete(a.listeners, id)
			a.mu.Unlock()
		})
	}
}

func (a *AppContext) notify() {
	a.mu.RLock()
	fns := make([]func(), 0, len(a.listeners))
	for _, fn := range a.listeners {
		fns = append(fns, fn)
	}
	a.mu.RUnlock()
	for _, fn := range fns {
		fn()
	}
}

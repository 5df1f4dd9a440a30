package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	aixos_errors "github.com/tradmak/aixos/pkg/errors"
)

// AuthClient is the platform session client. It holds the console's own
// session token and broadcasts state changes (sign-in, sign-out, expiry)
// to registered listeners. Verifying tokens presented by browsers happens
// in middleware, not here.
type AuthClient struct {
	baseURL    string
	serviceKey string
	http       *http.Client

	mu        sync.Mutex
	state     AuthState
	listeners map[int]func(AuthState)
	seq       int
}

func NewAuthClient(baseURL, serviceKey string) *AuthClient {
	return &AuthClient{
		baseURL:    baseURL,
		serviceKey: serviceKey,
		http:       &http.Client{Timeout: 15 * time.Second},
		listeners:  make(map[int]func(AuthState)),
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	User        struct {
		ID string `json:"id"`
	} `json:"user"`
}

func (a *AuthClient) SignIn(ctx context.Context, email, password string) (AuthState, error) {
	return a.tokenRequest(ctx, "/token?grant_type=password", map[string]string{
		"email":    email,
		"password": password,
	})
}

func (a *AuthClient) SignUp(ctx context.Context, email, password string) (AuthState, error) {
	return a.tokenRequest(ctx, "/signup", map[string]string{
		"email":    email,
		"password": password,
	})
}

func (a *AuthClient) SignOut(ctx context.Context) error {
	a.setState(AuthState{})
	return nil
}

func (a *AuthClient) OnAuthChange(fn func(AuthState)) Unsubscribe {
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

func (a *AuthClient) State() AuthState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// MarkExpired is called when a platform call comes back unauthorized; it
// flips the session to signed-out and notifies listeners so the console
// can redirect to login.
func (a *AuthClient) MarkExpired() {
	a.setState(AuthState{})
}

func (a *AuthClient) tokenRequest(ctx context.Context, path string, payload map[string]string) (AuthState, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return AuthState{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return AuthState{}, err
	}
	req.Header.Set("apikey", a.serviceKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return AuthState{}, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return AuthState{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusBadRequest {
			return AuthState{}, aixos_errors.ErrUnauthorized
		}
		return AuthState{}, &QueryError{Table: "auth", Status: resp.StatusCode, Body: string(body)}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return AuthState{}, err
	}
	state := AuthState{
		SignedIn:    true,
		AccessToken: tr.AccessToken,
		AgentUserID: tr.User.ID,
		ExpiresAt:   time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second),
	}
	a.setState(state)
	return state, nil
}

func (a *AuthClient) setState(state AuthState) {
	a.mu.Lock()
	a.state = state
	fns := make([]func(AuthState), 0, len(a.listeners))
	for _, fn := range a.listeners {
		fns = append(fns, fn)
	}
	a.mu.Unlock()
	for _, fn := range fns {
		fn(state)
	}
}

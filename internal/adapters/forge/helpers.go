// Package forge provides the shared HTTP plumbing the per-provider forge
// clients (github, gitlab, codeberg) build on: a timeout-bounded
// *http.Client, a generic JSON-GET helper, and the OptionalClient wrapper
// that lets the reducer hold a possibly-unconfigured client behind a
// swappable, concurrency-safe pointer.
package forge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/flock-cli/flock/internal/core"
)

// DefaultTimeout bounds every outbound forge request (spec §5).
const DefaultTimeout = 10 * time.Second

// NewHTTPClient returns a client with the spec's default network timeout.
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: DefaultTimeout}
}

// Get issues an authenticated GET against rawURL with the given query
// values, decodes a successful JSON body into out, and otherwise returns a
// provider-tagged DomainError: ErrRateLimit on 429, ErrProviderPermanent
// on other 4xx, ErrProviderTransient (retryable) on 5xx or transport
// failure.
func Get(ctx context.Context, client *http.Client, provider, rawURL string, query url.Values, applyAuth func(*http.Request), out any) error {
	if query != nil {
		rawURL = rawURL + "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return core.ErrProviderPermanent(provider, err)
	}
	applyAuth(req)

	resp, err := client.Do(req)
	if err != nil {
		return core.ErrProviderTransient(provider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return core.ErrProviderTransient(provider, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return core.ErrRateLimit(provider)
	case resp.StatusCode >= 500:
		return core.ErrProviderTransient(provider, fmt.Errorf("%s: %s", resp.Status, body))
	case resp.StatusCode >= 400:
		return core.ErrProviderPermanent(provider, fmt.Errorf("%s: %s", resp.Status, body))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return core.ErrProviderPermanent(provider, fmt.Errorf("parsing response: %w", err))
	}
	return nil
}

// TestConnection issues a plain GET and discards the body, used by each
// provider's connectivity check.
func TestConnection(ctx context.Context, client *http.Client, provider, rawURL string, applyAuth func(*http.Request)) error {
	return Get(ctx, client, provider, rawURL, nil, applyAuth, nil)
}

// OptionalClient holds a possibly-absent provider client behind a
// reader-preferring lock, so settings reconfiguration can swap it
// atomically while in-flight reads against the old value complete safely.
type OptionalClient[T any] struct {
	mu     sync.RWMutex
	client *T
}

// NewOptionalClient wraps an already-constructed client, or none.
func NewOptionalClient[T any](client *T) *OptionalClient[T] {
	return &OptionalClient[T]{client: client}
}

// Reconfigure atomically replaces the held client.
func (o *OptionalClient[T]) Reconfigure(client *T) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.client = client
}

// IsConfigured reports whether a client is currently held.
func (o *OptionalClient[T]) IsConfigured() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.client != nil
}

// With runs fn against the held client, or returns notConfigured
// unmodified when none is configured.
func With[T, R any](o *OptionalClient[T], notConfigured R, fn func(*T) R) R {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.client == nil {
		return notConfigured
	}
	return fn(o.client)
}

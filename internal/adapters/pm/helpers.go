// Package pm provides the shared HTTP plumbing the per-provider project
// management clients (asana, notion, clickup, airtable, linear) build on,
// mirroring internal/adapters/forge's helpers since both subsystems hold an
// optional client behind a TTL cache and a reader-preferring lock (spec
// §4.7).
package pm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/flock-cli/flock/internal/core"
)

// DefaultTimeout bounds every outbound PM-provider request (spec §5).
const DefaultTimeout = 10 * time.Second

// NewHTTPClient returns a client with the spec's default network timeout.
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: DefaultTimeout}
}

func do(ctx context.Context, client *http.Client, provider, method, rawURL string, query url.Values, body any, applyAuth func(*http.Request), out any) error {
	if query != nil {
		rawURL = rawURL + "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return core.ErrProviderPermanent(provider, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return core.ErrProviderPermanent(provider, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	applyAuth(req)

	resp, err := client.Do(req)
	if err != nil {
		return core.ErrProviderTransient(provider, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return core.ErrProviderTransient(provider, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return core.ErrRateLimit(provider)
	case resp.StatusCode >= 500:
		return core.ErrProviderTransient(provider, fmt.Errorf("%s: %s", resp.Status, respBody))
	case resp.StatusCode >= 400:
		return core.ErrProviderPermanent(provider, fmt.Errorf("%s: %s", resp.Status, respBody))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return core.ErrProviderPermanent(provider, fmt.Errorf("parsing response: %w", err))
	}
	return nil
}

// Get issues an authenticated GET and decodes the JSON body into out.
func Get(ctx context.Context, client *http.Client, provider, rawURL string, query url.Values, applyAuth func(*http.Request), out any) error {
	return do(ctx, client, provider, http.MethodGet, rawURL, query, nil, applyAuth, out)
}

// Post issues an authenticated POST with a JSON body and decodes the JSON
// response into out.
func Post(ctx context.Context, client *http.Client, provider, rawURL string, body any, applyAuth func(*http.Request), out any) error {
	return do(ctx, client, provider, http.MethodPost, rawURL, nil, body, applyAuth, out)
}

// Put issues an authenticated PUT with a JSON body and decodes the JSON
// response into out.
func Put(ctx context.Context, client *http.Client, provider, rawURL string, body any, applyAuth func(*http.Request), out any) error {
	return do(ctx, client, provider, http.MethodPut, rawURL, nil, body, applyAuth, out)
}

// Patch issues an authenticated PATCH with a JSON body and decodes the JSON
// response into out.
func Patch(ctx context.Context, client *http.Client, provider, rawURL string, body any, applyAuth func(*http.Request), out any) error {
	return do(ctx, client, provider, http.MethodPatch, rawURL, nil, body, applyAuth, out)
}

// TestConnection issues a plain GET and discards the body, used by each
// provider's connectivity check.
func TestConnection(ctx context.Context, client *http.Client, provider, rawURL string, applyAuth func(*http.Request)) error {
	return Get(ctx, client, provider, rawURL, nil, applyAuth, nil)
}

// FindBySubstring returns the name of the first option whose lowercased
// name contains any of terms, or "" if none match. Every provider's status
// auto-detection (move_to_in_progress/done/not_started without an explicit
// override) reduces to this same case-insensitive substring search over
// whatever vocabulary the provider returns.
func FindBySubstring(names []string, terms ...string) string {
	for _, name := range names {
		lower := strings.ToLower(name)
		for _, term := range terms {
			if strings.Contains(lower, strings.ToLower(term)) {
				return name
			}
		}
	}
	return ""
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

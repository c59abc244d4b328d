package chat

import (
	"context"
	"sort"

	"github.com/valpere/polytran/internal/config"
	"github.com/valpere/polytran/internal/errs"
	"github.com/valpere/polytran/internal/retry"
)

// Constructor builds a vendor client from its configuration.
type Constructor func(cfg config.VendorConfig) Client

// Registry maps vendor names to client constructors.
type Registry struct {
	constructors map[string]Constructor
}

func NewRegistry() *Registry {
	return &Registry{constructors: make(map[string]Constructor)}
}

// NewDefaultRegistry knows the built-in chat vendors.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("openai", func(cfg config.VendorConfig) Client { return NewOpenAIClient(cfg) })
	r.Register("openrouter", func(cfg config.VendorConfig) Client { return NewOpenRouterClient(cfg) })
	r.Register("ollama", func(cfg config.VendorConfig) Client { return NewOllamaClient(cfg) })
	return r
}

func (r *Registry) Register(vendor string, c Constructor) {
	r.constructors[vendor] = c
}

// Has reports whether the vendor has a chat client.
func (r *Registry) Has(vendor string) bool {
	_, ok := r.constructors[vendor]
	return ok
}

func (r *Registry) Vendors() []string {
	out := make([]string, 0, len(r.constructors))
	for v := range r.constructors {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Client returns a ready client for vendor, wrapped with the vendor timeout
// and a single transport retry. It fails closed when the vendor is unknown,
// disabled, or missing a required credential.
func (r *Registry) Client(vendor string, settings config.Settings) (Client, error) {
	ctor, ok := r.constructors[vendor]
	if !ok {
		return nil, errs.Config("unknown chat vendor %q", vendor)
	}
	cfg, enabled := settings.Vendor(vendor)
	if !enabled {
		return nil, errs.Config("vendor %q is not enabled", vendor)
	}
	if config.RequiresAPIKey(vendor) && cfg.APIKey == "" {
		return nil, errs.Config("vendor %q has no API key configured", vendor)
	}
	return WithRetry(ctor(cfg), retry.Policy{Timeout: cfg.Timeout}), nil
}

type retryingClient struct {
	Client
	policy retry.Policy
}

// WithRetry bounds every completion by the policy timeout and retries it
// once on transport failure.
func WithRetry(c Client, p retry.Policy) Client {
	return &retryingClient{Client: c, policy: p}
}

func (c *retryingClient) ChatCompletion(ctx context.Context, messages []Message, params Params) (*Response, error) {
	return retry.Do(ctx, c.policy, func(ctx context.Context) (*Response, error) {
		return c.Client.ChatCompletion(ctx, messages, params)
	})
}

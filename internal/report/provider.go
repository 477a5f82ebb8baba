package report

import (
	"context"
	"fmt"
	"sort"
)

// ImagePayload is one downloaded image ready to be attached to a request.
type ImagePayload struct {
	URL  string
	MIME string
	Data []byte
}

// Request is a single generation request: a prompt plus zero or more image
// attachments. An empty Images slice makes it a text-only call.
type Request struct {
	Prompt string
	Images []ImagePayload
}

// Provider is the uniform contract over an AI backend.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
}

// ProviderFactory builds a provider from its API key and model name.
type ProviderFactory func(apiKey, model string) Provider

// registry maps backend names to constructors. Backends register themselves
// at startup via Register; nothing is discovered dynamically.
var registry = map[string]ProviderFactory{}

// Register adds a named backend constructor. Call from init or from main
// before NewProvider is used.
func Register(name string, factory ProviderFactory) {
	registry[name] = factory
}

// NewProvider instantiates the named backend.
func NewProvider(name, apiKey, model string) (Provider, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown AI provider %q (have: %v)", name, ProviderNames())
	}
	return factory(apiKey, model), nil
}

// ProviderNames lists the registered backends, sorted.
func ProviderNames() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

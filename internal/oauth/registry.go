package oauth

import (
	"errors"
	"fmt"

	"authhub/internal/entity"
)

// Providers holds the providers that have credentials configured.
type Providers struct {
	byName map[entity.Provider]*Provider
}

// NewProviders builds every provider with credentials and skips the rest.
func NewProviders(configs map[entity.Provider]ProviderConfig) (*Providers, error) {
	providers := &Providers{byName: make(map[entity.Provider]*Provider)}
	for name, cfg := range configs {
		provider, err := NewProvider(name, cfg)
		if errors.Is(err, ErrProviderNotConfigured) {
			continue
		}
		if err != nil {
			return nil, err
		}
		providers.byName[name] = provider
	}
	return providers, nil
}

func (p *Providers) Add(provider *Provider) {
	p.byName[provider.Name] = provider
}

func (p *Providers) Get(name entity.Provider) (*Provider, error) {
	if !name.Valid() {
		return nil, fmt.Errorf("%w: %s", entity.ErrInvalidProvider, name)
	}
	provider, ok := p.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotConfigured, name)
	}
	return provider, nil
}

// Package apps maps client app endpoints to the app identifiers used on
// registrations. The table is static configuration: endpoints match exactly,
// scheme, host and port included.
package apps

import (
	"fmt"
	"sort"

	"authhub/internal/entity"
)

var defaultEndpoints = map[string]entity.AppIdentifier{
	"https://food-delivery-app-frontend.vercel.app":      entity.AppSeraFoodCustomer,
	"https://food-delivery-business-app-sera.vercel.app": entity.AppSeraFoodBusiness,
	"https://todo-frontend-beta-three-78.vercel.app":     entity.AppTodo,

	"http://localhost:3000": entity.AppSeraFoodCustomer,
	"http://localhost:3001": entity.AppSeraFoodBusiness,
	"http://localhost:3002": entity.AppTodo,
}

type Registry struct {
	endpoints map[string]entity.AppIdentifier
}

// NewRegistry returns the default table extended with extra endpoint ->
// identifier pairs. Extras may only point at a known identifier.
func NewRegistry(extra map[string]string) (*Registry, error) {
	endpoints := make(map[string]entity.AppIdentifier, len(defaultEndpoints)+len(extra))
	for endpoint, app := range defaultEndpoints {
		endpoints[endpoint] = app
	}
	for endpoint, raw := range extra {
		app := entity.AppIdentifier(raw)
		if !app.Valid() {
			return nil, fmt.Errorf("endpoint %q: %w: %s", endpoint, entity.ErrInvalidAppIdentifier, raw)
		}
		endpoints[endpoint] = app
	}
	return &Registry{endpoints: endpoints}, nil
}

// Default returns the built-in table.
func Default() *Registry {
	registry, _ := NewRegistry(nil)
	return registry
}

// Resolve looks up endpoint. An unknown endpoint is a validation failure for
// the caller, never a fallback to some default app.
func (r *Registry) Resolve(endpoint string) (entity.AppIdentifier, bool) {
	app, ok := r.endpoints[endpoint]
	return app, ok
}

func (r *Registry) IsValidRole(role string) bool {
	return entity.Role(role).Valid()
}

// DefaultRoles is the role set given on registration when none is requested.
func (r *Registry) DefaultRoles(app entity.AppIdentifier) []entity.Role {
	if app == entity.AppSeraFoodBusiness {
		return []entity.Role{entity.RoleBusinessUser}
	}
	return []entity.Role{entity.RoleUser}
}

// Endpoints lists the known endpoints in sorted order.
func (r *Registry) Endpoints() []string {
	endpoints := make([]string, 0, len(r.endpoints))
	for endpoint := range r.endpoints {
		endpoints = append(endpoints, endpoint)
	}
	sort.Strings(endpoints)
	return endpoints
}

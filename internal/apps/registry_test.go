package apps_test

import (
	"testing"

	"authhub/internal/apps"
	"authhub/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_ExactMatchOnly(t *testing.T) {
	registry := apps.Default()

	app, ok := registry.Resolve("https://todo-frontend-beta-three-78.vercel.app")
	require.True(t, ok)
	assert.Equal(t, entity.AppTodo, app)

	app, ok = registry.Resolve("http://localhost:3001")
	require.True(t, ok)
	assert.Equal(t, entity.AppSeraFoodBusiness, app)

	for _, endpoint := range []string{
		"https://todo-frontend-beta-three-78.vercel.app/",
		"http://todo-frontend-beta-three-78.vercel.app",
		"http://localhost:3003",
		"localhost:3000",
		"",
	} {
		_, ok := registry.Resolve(endpoint)
		assert.False(t, ok, endpoint)
	}
}

func TestNewRegistry_Extras(t *testing.T) {
	registry, err := apps.NewRegistry(map[string]string{"https://staging.todo.example": "todo-app"})
	require.NoError(t, err)

	app, ok := registry.Resolve("https://staging.todo.example")
	require.True(t, ok)
	assert.Equal(t, entity.AppTodo, app)

	_, err = apps.NewRegistry(map[string]string{"https://x.example": "unknown-app"})
	assert.ErrorIs(t, err, entity.ErrInvalidAppIdentifier)
}

func TestIsValidRole(t *testing.T) {
	registry := apps.Default()
	for _, role := range []string{"user", "business-user", "admin", "superadmin"} {
		assert.True(t, registry.IsValidRole(role), role)
	}
	assert.False(t, registry.IsValidRole("owner"))
	assert.False(t, registry.IsValidRole(""))
}

func TestDefaultRoles(t *testing.T) {
	registry := apps.Default()
	assert.Equal(t, []entity.Role{entity.RoleBusinessUser}, registry.DefaultRoles(entity.AppSeraFoodBusiness))
	assert.Equal(t, []entity.Role{entity.RoleUser}, registry.DefaultRoles(entity.AppSeraFoodCustomer))
	assert.Equal(t, []entity.Role{entity.RoleUser}, registry.DefaultRoles(entity.AppTodo))
}

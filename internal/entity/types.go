package entity

type AppIdentifier string

const (
	AppSeraFoodCustomer AppIdentifier = "sera-food-customer-app"
	AppSeraFoodBusiness AppIdentifier = "sera-food-business-app"
	AppTodo             AppIdentifier = "todo-app"
)

func AllAppIdentifiers() []AppIdentifier {
	return []AppIdentifier{AppSeraFoodCustomer, AppSeraFoodBusiness, AppTodo}
}

func (a AppIdentifier) Valid() bool {
	switch a {
	case AppSeraFoodCustomer, AppSeraFoodBusiness, AppTodo:
		return true
	}
	return false
}

type Role string

const (
	RoleUser         Role = "user"
	RoleBusinessUser Role = "business-user"
	RoleAdmin        Role = "admin"
	RoleSuperAdmin   Role = "superadmin"
)

func AllRoles() []Role {
	return []Role{RoleUser, RoleBusinessUser, RoleAdmin, RoleSuperAdmin}
}

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleBusinessUser, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// IsAdministrative reports whether the role may use the admin API.
func (r Role) IsAdministrative() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

type AuthMethod string

const (
	AuthMethodEmailPassword AuthMethod = "email-password"
	AuthMethodGoogle        AuthMethod = "google-oauth"
	AuthMethodFacebook      AuthMethod = "facebook-oauth"
	AuthMethodGithub        AuthMethod = "github-oauth"
)

func (m AuthMethod) Valid() bool {
	switch m {
	case AuthMethodEmailPassword, AuthMethodGoogle, AuthMethodFacebook, AuthMethodGithub:
		return true
	}
	return false
}

// UsesPassword reports whether the stored password is the authoritative credential.
func (m AuthMethod) UsesPassword() bool {
	return m == AuthMethodEmailPassword
}

type Provider string

const (
	ProviderGoogle   Provider = "google"
	ProviderFacebook Provider = "facebook"
	ProviderGithub   Provider = "github"
)

func AllProviders() []Provider {
	return []Provider{ProviderGoogle, ProviderFacebook, ProviderGithub}
}

func (p Provider) Valid() bool {
	switch p {
	case ProviderGoogle, ProviderFacebook, ProviderGithub:
		return true
	}
	return false
}

func (p Provider) AuthMethod() AuthMethod {
	return AuthMethod(string(p) + "-oauth")
}

package dto

import (
	"time"

	"authhub/internal/entity"
)

type RegisterRequest struct {
	Email       string   `json:"email" validate:"required,email"`
	Password    string   `json:"password" validate:"required,min=6,max=72"`
	Username    *string  `json:"username" validate:"omitempty,min=2,max=50"`
	AppEndpoint string   `json:"app_endpoint" validate:"required,url"`
	Roles       []string `json:"roles" validate:"omitempty,dive,approle"`
	AuthMethod  string   `json:"auth_method" validate:"omitempty,authmethod"`
}

type LoginRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required"`
	AppEndpoint string `json:"app_endpoint" validate:"required,url"`
	Role        string `json:"role" validate:"omitempty,approle"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"omitempty"`
}

type VerifyEmailRequest struct {
	Token string `json:"token" validate:"required"`
}

type EmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type PasswordForgotRequest struct {
	Email       string `json:"email" validate:"required,email"`
	AppEndpoint string `json:"app_endpoint" validate:"required,url"`
}

type PasswordResetRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=6,max=72"`
}

type AuthResponse struct {
	User             UserResponse `json:"user"`
	App              string       `json:"app"`
	Role             string       `json:"role"`
	AccessToken      string       `json:"access_token"`
	ExpiresIn        int64        `json:"expires_in"`
	RefreshToken     string       `json:"refresh_token,omitempty"`
	RefreshExpiresIn int64        `json:"refresh_expires_in"`
	EmailWarning     string       `json:"email_warning,omitempty"`
}

type OAuthURLResponse struct {
	URL string `json:"url"`
}

// RegistrationResponse is the public view of one app registration. It never
// carries the password hash, attempt counters or lock timestamps.
type RegistrationResponse struct {
	AppIdentifier string     `json:"app_identifier"`
	Roles         []string   `json:"roles"`
	AuthMethod    string     `json:"auth_method"`
	IsActive      bool       `json:"is_active"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty"`
	ActivatedAt   *time.Time `json:"activated_at,omitempty"`
}

type UserResponse struct {
	ID               string                 `json:"id"`
	Email            string                 `json:"email"`
	Username         *string                `json:"username,omitempty"`
	EmailVerified    bool                   `json:"email_verified"`
	IsActive         bool                   `json:"is_active"`
	OAuthProvider    *string                `json:"oauth_provider,omitempty"`
	LastLoginAt      *time.Time             `json:"last_login_at,omitempty"`
	AppRegistrations []RegistrationResponse `json:"app_registrations"`
	CreatedAt        time.Time              `json:"created_at"`
	UpdatedAt        time.Time              `json:"updated_at"`
}

func UserResponseFromEntity(user *entity.User) UserResponse {
	response := UserResponse{
		ID:               user.ID.String(),
		Email:            user.Email,
		Username:         user.Username,
		EmailVerified:    user.EmailVerified,
		IsActive:         user.IsActive,
		LastLoginAt:      user.LastLoginAt,
		AppRegistrations: make([]RegistrationResponse, 0, len(user.AppRegistrations)),
		CreatedAt:        user.CreatedAt,
		UpdatedAt:        user.UpdatedAt,
	}
	if user.OAuthProvider != nil {
		provider := string(*user.OAuthProvider)
		response.OAuthProvider = &provider
	}
	for i := range user.AppRegistrations {
		reg := &user.AppRegistrations[i]
		response.AppRegistrations = append(response.AppRegistrations, RegistrationResponse{
			AppIdentifier: string(reg.AppIdentifier),
			Roles:         roleStrings(reg.Roles),
			AuthMethod:    string(reg.AuthMethod),
			IsActive:      reg.IsActive,
			LastLoginAt:   reg.LastLoginAt,
			ActivatedAt:   reg.ActivatedAt,
		})
	}
	return response
}

func roleStrings(roles []entity.Role) []string {
	out := make([]string, 0, len(roles))
	for _, role := range roles {
		out = append(out, string(role))
	}
	return out
}

// Roles converts validated request roles to the enum type.
func Roles(raw []string) []entity.Role {
	if len(raw) == 0 {
		return nil
	}
	roles := make([]entity.Role, 0, len(raw))
	for _, role := range raw {
		roles = append(roles, entity.Role(role))
	}
	return roles
}

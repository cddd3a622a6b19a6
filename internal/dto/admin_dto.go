package dto

import (
	"time"

	"authhub/internal/entity"
)

type GrantAppAccessRequest struct {
	AppIdentifier string   `json:"app_identifier" validate:"required"`
	Roles         []string `json:"roles" validate:"required,min=1,dive,approle"`
	AuthMethod    string   `json:"auth_method" validate:"omitempty,authmethod"`
	Password      string   `json:"password" validate:"omitempty,min=6,max=72"`
}

type UpdateRolesRequest struct {
	Roles []string `json:"roles" validate:"required,min=1,dive,approle"`
}

type DeactivateAppRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

type ChangeAuthMethodRequest struct {
	AuthMethod string `json:"auth_method" validate:"required,authmethod"`
	Password   string `json:"password" validate:"omitempty,min=6,max=72"`
}

type AccountStatusRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

// AdminRegistrationResponse adds the lockout and audit state admins need.
type AdminRegistrationResponse struct {
	RegistrationResponse
	LoginAttempts      int        `json:"login_attempts"`
	LockedUntil        *time.Time `json:"locked_until,omitempty"`
	DeactivatedAt      *time.Time `json:"deactivated_at,omitempty"`
	DeactivatedBy      *string    `json:"deactivated_by,omitempty"`
	DeactivationReason *string    `json:"deactivation_reason,omitempty"`
}

type AdminUserResponse struct {
	UserResponse
	AppRegistrations []AdminRegistrationResponse `json:"app_registrations"`
}

func AdminUserResponseFromEntity(user *entity.User) AdminUserResponse {
	public := UserResponseFromEntity(user)
	response := AdminUserResponse{
		UserResponse:     public,
		AppRegistrations: make([]AdminRegistrationResponse, 0, len(user.AppRegistrations)),
	}
	for i := range user.AppRegistrations {
		reg := &user.AppRegistrations[i]
		response.AppRegistrations = append(response.AppRegistrations, AdminRegistrationResponse{
			RegistrationResponse: public.AppRegistrations[i],
			LoginAttempts:        reg.LoginAttempts,
			LockedUntil:          reg.LockedUntil,
			DeactivatedAt:        reg.DeactivatedAt,
			DeactivatedBy:        reg.DeactivatedBy,
			DeactivationReason:   reg.DeactivationReason,
		})
	}
	return response
}

func AdminUserResponsesFromEntities(users []entity.User) []AdminUserResponse {
	responses := make([]AdminUserResponse, 0, len(users))
	for i := range users {
		responses = append(responses, AdminUserResponseFromEntity(&users[i]))
	}
	return responses
}

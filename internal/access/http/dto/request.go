// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	validation "github.com/jellydator/validation"

	accessDomain "github.com/aknoru/lacbot-security/internal/access/domain"
)

// RegisterPrincipalRequest contains the parameters for registering a principal.
type RegisterPrincipalRequest struct {
	Role string `json:"role"`
}

// Validate checks if the register principal request is valid.
func (r *RegisterPrincipalRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Role,
			validation.Required,
			validation.By(validateRole),
		),
	)
}

// ChangeRoleRequest contains the parameters for changing a principal's role.
type ChangeRoleRequest struct {
	Role string `json:"role"`
}

// Validate checks if the change role request is valid.
func (r *ChangeRoleRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Role,
			validation.Required,
			validation.By(validateRole),
		),
	)
}

// validateRole validates a role value.
func validateRole(value interface{}) error {
	role, ok := value.(string)
	if !ok || !accessDomain.Role(role).IsValid() {
		return validation.NewError("validation_role", "must be a known role")
	}
	return nil
}

// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	"time"

	accessDomain "github.com/aknoru/lacbot-security/internal/access/domain"
)

// PrincipalResponse represents a principal in API responses.
type PrincipalResponse struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MapPrincipalToResponse converts a domain principal to an API response.
func MapPrincipalToResponse(principal *accessDomain.Principal) PrincipalResponse {
	return PrincipalResponse{
		ID:        principal.ID.String(),
		Role:      string(principal.Role),
		Active:    principal.Active,
		CreatedAt: principal.CreatedAt,
		UpdatedAt: principal.UpdatedAt,
	}
}

// ListPrincipalsResponse represents a paginated list of principals.
type ListPrincipalsResponse struct {
	Data []PrincipalResponse `json:"data"`
}

// MapPrincipalsToListResponse converts a slice of domain principals to a list API response.
func MapPrincipalsToListResponse(principals []*accessDomain.Principal) ListPrincipalsResponse {
	principalResponses := make([]PrincipalResponse, 0, len(principals))
	for _, principal := range principals {
		principalResponses = append(principalResponses, MapPrincipalToResponse(principal))
	}
	return ListPrincipalsResponse{
		Data: principalResponses,
	}
}

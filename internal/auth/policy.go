package auth

import "github.com/wolfeidau/tenantdesk/internal/models"

// IsUnrestricted reports whether p may skip tenant restriction predicates.
// Stores consult this before choosing the restricted or unrestricted query
// path; the principal is still bound to the connection either way.
func IsUnrestricted(p models.Principal) bool {
	switch p.Role() {
	case models.RoleAdmin:
		return true
	case models.RoleStandard:
		return false
	default:
		return false
	}
}

// CanCreateTickets reports whether p may create tickets. Admins do not own
// tickets, so only standard principals can create them.
func CanCreateTickets(p models.Principal) bool {
	switch p.Role() {
	case models.RoleStandard:
		return true
	case models.RoleAdmin:
		return false
	default:
		return false
	}
}

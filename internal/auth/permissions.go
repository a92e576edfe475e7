package auth

import "errors"

// Роли пользователей
const (
	RoleAdmin    = "admin"
	RoleCustomer = "customer"
)

// Permissions список разрешений
var Permissions = map[string][]string{
	RoleAdmin: {
		"plans:write",
		"subscriptions:read",
		"subscriptions:cancel",
		"subscriptions:expire",
		"dashboard:read",
	},
	RoleCustomer: {
		"plans:read",
		"subscriptions:read:self",
		"subscriptions:write:self",
		"payments:write:self",
	},
}

// HasPermission проверяет есть ли у роли указанное разрешение
func HasPermission(role, permission string) bool {
	for _, p := range Permissions[role] {
		if p == permission {
			return true
		}
	}
	return false
}

// IsAdmin проверяет является ли пользователь администратором
func IsAdmin(claims *Claims) bool {
	return claims != nil && claims.Role == RoleAdmin
}

// ValidateRole проверяет валидность роли
func ValidateRole(role string) error {
	switch role {
	case RoleAdmin, RoleCustomer:
		return nil
	default:
		return errors.New("invalid role")
	}
}

package models

import "time"

const (
	RoleSuperAdmin  = "super_admin"
	RoleTenantAdmin = "tenant_admin"
	RoleStudent     = "student"
)

type User struct {
	ID           string
	Email        string
	PasswordHash string
	Name         string
	Phone        *string
	Role         string
	Timezone     *string
	CreatedAt    time.Time
}

// Student is a user's enrollment within one tenant.
type Student struct {
	ID        string
	TenantID  string
	UserID    string
	Level     *string
	Goals     *string
	CreatedAt time.Time
}

type Lead struct {
	ID        string
	TenantID  string
	Name      string
	Phone     string
	Email     *string
	Objective *string
	Status    string
	CreatedAt time.Time
}

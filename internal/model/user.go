package model

import "time"

// Staff roles carried in the JWT role claim.
const (
	RoleAdmin   = "ADMIN"
	RoleSeller  = "SELLER"
	RoleScanner = "SCANNER"
)

// User represents a staff account as stored in the `users` table.  Buyers
// never authenticate; only staff operations (check-in, manual issuance,
// coupon and order administration) require a user.
//
// Fields:
//
//	ID           – primary key identifier of the user.
//	Username     – unique login name.
//	PasswordHash – bcrypt hashed password.
//	Role         – ADMIN, SELLER or SCANNER.
//	IsActive     – whether the account may log in.
//	CreatedAt    – timestamp of creation.
//	UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64    // users.id
	Username     string    // users.username
	PasswordHash string    // users.password_hash
	Role         string    // users.role
	IsActive     bool      // users.is_active
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

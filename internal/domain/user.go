package domain

import "github.com/shopspring/decimal"

// UserRole distinguishes the access level of a user; the core only reads
// it, role enforcement lives in the out-of-scope authz collaborator.
type UserRole string

const (
	UserRoleAdmin   UserRole = "admin"
	UserRoleManager UserRole = "manager"
	UserRoleUser    UserRole = "user"
)

// User is created and owned by an external system; the core references
// it to bill against a wallet balance and to target notifications.
type User struct {
	ID       string
	Email    string
	Role     UserRole
	Balance  decimal.Decimal
	Currency string
	Active   bool
}

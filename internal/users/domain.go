package users

import (
	"time"

	"github.com/niaga-erp/niaga/internal/shared"
)

// User is an operator account. Authentication lives upstream; this module
// only answers who a user is and what role they hold.
type User struct {
	ID        int64       `json:"id"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Role      shared.Role `json:"role"`
	IsActive  bool        `json:"is_active"`
	CreatedAt time.Time   `json:"created_at"`
}

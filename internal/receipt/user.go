package receipt

import (
	"strings"
	"time"
)

// Role determines what a user may do
type Role string

const (
	RoleEmployee   Role = "employee"
	RoleSupervisor Role = "supervisor"
)

// IsValid reports whether r is a known role
func (r Role) IsValid() bool {
	return r == RoleEmployee || r == RoleSupervisor
}

// User is a person who submits or reviews receipts
type User struct {
	ID           string    `json:"id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Email        string    `json:"email"`
	Role         Role      `json:"role"`
	DepartmentID string    `json:"department_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// FullName returns "First Last"
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Department groups users under a single supervisor
type Department struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	SupervisorID string    `json:"supervisor_id"`
	EmployeeIDs  []string  `json:"employee_ids,omitempty"` // derived from User.DepartmentID on read
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Identity is the caller as vouched for by the session layer
type Identity struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
}

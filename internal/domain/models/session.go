package models

// Role is the access level of a desk user.
type Role string

const (
	RoleAdmin       Role = "admin"
	RoleSalesperson Role = "salesperson"
)

// User mirrors the backend user object.
type User struct {
	ID        int64     `json:"id"`
	FullName  string    `json:"full_name"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt Timestamp `json:"created_at"`
	LastLogin Timestamp `json:"last_login"`
}

// Session pairs the opaque backend token with its user.
type Session struct {
	SessionToken string `json:"session_token"`
	User         User   `json:"user"`
}

// SalespersonRegistration is the body of POST /auth/register/salesperson.
type SalespersonRegistration struct {
	FullName string `json:"full_name" binding:"required"`
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	AdminID  int64  `json:"admin_id"`
}

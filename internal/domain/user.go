package domain

import "time"

type UserRole string

const (
	UserRoleAdmin     UserRole = "ADMIN"
	UserRoleLibrarian UserRole = "LIBRARIAN"
	UserRoleMember    UserRole = "MEMBER"
)

type User struct {
	ID           int32     `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	PasswordHash string    `json:"-"`
	Role         UserRole  `json:"role"`
	Active       bool      `json:"active"`
	Phone        string    `json:"phone,omitempty"`
	Address      string    `json:"address,omitempty"`
	CreatedOn    time.Time `json:"created_on"`
	UpdatedOn    time.Time `json:"updated_on"`
}

func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// IsStaff reports whether the role may manage the catalog and other
// members' loans.
func (r UserRole) IsStaff() bool {
	return r == UserRoleAdmin || r == UserRoleLibrarian
}

func (u *User) IsStaff() bool {
	return u.Role.IsStaff()
}

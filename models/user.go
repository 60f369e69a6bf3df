package models

// UserRole mirrors the role claim issued by the platform's auth service.
type UserRole string

const (
	UserRoleAdmin     UserRole = "admin"
	UserRoleOrganizer UserRole = "organizer"
	UserRolePlayer    UserRole = "player"
)

func (r UserRole) CanOrganize() bool {
	return r == UserRoleAdmin || r == UserRoleOrganizer
}

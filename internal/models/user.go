package models

import "strings"

// Role is the role a user holds globally or inside a room.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleAgent     Role = "agent"
	RoleModerator Role = "moderator"
	RoleUser      Role = "user"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleAgent, RoleModerator, RoleUser:
		return true
	}
	return false
}

// User is a directory entry. Timestamps are milliseconds since epoch and nil
// when the stored document does not carry them.
type User struct {
	ID        string         `json:"id"`
	FirstName string         `json:"firstName,omitempty"`
	LastName  string         `json:"lastName,omitempty"`
	ImageURL  string         `json:"imageUrl,omitempty"`
	Role      Role           `json:"role,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt *int64         `json:"createdAt,omitempty"`
	UpdatedAt *int64         `json:"updatedAt,omitempty"`
	LastSeen  *int64         `json:"lastSeen,omitempty"`
}

// DisplayName returns "FirstName LastName" with surrounding blanks removed.
func (u User) DisplayName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// UserStub is the minimal author reference used when a message author is not
// among the known members.
func UserStub(id string) User {
	return User{ID: id}
}

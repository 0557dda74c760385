package models

// RoomType is fixed at creation time.
type RoomType string

const (
	RoomTypeDirect    RoomType = "direct"
	RoomTypeGroup     RoomType = "group"
	RoomTypeBroadcast RoomType = "broadcast"
)

func (t RoomType) Valid() bool {
	switch t {
	case RoomTypeDirect, RoomTypeGroup, RoomTypeBroadcast:
		return true
	}
	return false
}

// Room is a resolved room. Users is a point-in-time join of the member
// documents and is never updated in place; UserIDs keeps the raw membership
// even when a member document could not be loaded.
type Room struct {
	ID             string          `json:"id"`
	Type           RoomType        `json:"type"`
	Name           string          `json:"name,omitempty"`
	ImageURL       string          `json:"imageUrl,omitempty"`
	Users          []User          `json:"users"`
	UserIDs        []string        `json:"userIds"`
	UserRoles      map[string]Role `json:"userRoles,omitempty"`
	Metadata       map[string]any  `json:"metadata,omitempty"`
	UnseenMessages map[string]int  `json:"unSeenMessages,omitempty"`
	BlockedUsers   []string        `json:"blockedUsers,omitempty"`
	LastMessages   []Message       `json:"lastMessages,omitempty"`
	CreatedAt      *int64          `json:"createdAt,omitempty"`
	UpdatedAt      *int64          `json:"updatedAt,omitempty"`
}

// Member returns the resolved member with the given id.
func (r Room) Member(id string) (User, bool) {
	for _, u := range r.Users {
		if u.ID == id {
			return u, true
		}
	}
	return User{}, false
}

// HasMember reports whether id belongs to the room membership.
func (r Room) HasMember(id string) bool {
	for _, uid := range r.UserIDs {
		if uid == id {
			return true
		}
	}
	return false
}

// IsPair reports whether the membership is exactly {a, b}.
func (r Room) IsPair(a, b string) bool {
	if len(r.UserIDs) != 2 || a == b {
		return false
	}
	return r.HasMember(a) && r.HasMember(b)
}

// RoleOf returns the member role, defaulting to RoleUser.
func (r Room) RoleOf(id string) Role {
	if role, ok := r.UserRoles[id]; ok && role.Valid() {
		return role
	}
	return RoleUser
}

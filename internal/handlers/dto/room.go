package dto

import "github.com/thereayou/chatsync/internal/models"

type CreateDirectRoomRequest struct {
	UserID   string         `json:"userId" binding:"required"`
	Metadata map[string]any `json:"metadata"`
}

// CreateBroadcastRoomRequest требует второй токен: комнату создают от имени
// двух авторизованных идентичностей.
type CreateBroadcastRoomRequest struct {
	UserID         string         `json:"userId" binding:"required"`
	SecondaryToken string         `json:"secondaryToken" binding:"required"`
	Metadata       map[string]any `json:"metadata"`
}

type CreateGroupRoomRequest struct {
	Name     string         `json:"name" binding:"required,max=200"`
	UserIDs  []string       `json:"userIds"`
	ImageURL string         `json:"imageUrl" binding:"omitempty,url"`
	Metadata map[string]any `json:"metadata"`
}

type RoomsResponse struct {
	Rooms []models.Room `json:"rooms"`
}

type UsersResponse struct {
	Users []models.User `json:"users"`
}

package websocket

import "errors"

var (
	ErrClientQueueFull = errors.New("client message queue is full")
	ErrInvalidMessage  = errors.New("invalid message format")
	ErrRoomNotFound    = errors.New("room not found")
	ErrUserNotInRoom   = errors.New("room is not joined")
	ErrMessageNotFound = errors.New("message not found")
	ErrUnauthorized    = errors.New("only the author can edit a message")
	ErrRateLimited     = errors.New("too many commands, slow down")
)

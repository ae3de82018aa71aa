package server

import (
	"net/http"
	"time"

	"github.com/parley-chat/parley/internal/types"
)

const (
	// frame types exchanged over a live connection
	TypeMessage = "message"
	TypePublish = "publish"
	TypeJoin    = "join"
	TypeLeave   = "leave"
	TypeOK      = "ok"
	TypeError   = "error"
)

// ClientMessage is a frame received from a live connection. Publish
// frames may omit RoomId when the connection was bound to a room at
// connect time.
type ClientMessage struct {
	Type    string `json:"type"`
	RoomId  string `json:"room_id,omitempty"`
	Content string `json:"content,omitempty"`
}

// ServerMessage is a frame pushed to a live connection. Message events
// carry the persisted message; ok and error frames answer client frames.
type ServerMessage struct {
	Type      string         `json:"type"`
	Data      *types.Message `json:"data,omitempty"`
	RoomId    string         `json:"room_id,omitempty"`
	Code      int            `json:"code,omitempty"`
	Error     string         `json:"error,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

func MessageEvent(msg *types.Message) *ServerMessage {
	return &ServerMessage{
		Type:      TypeMessage,
		Data:      msg,
		Timestamp: msg.Timestamp,
	}
}

func NoErrOK(roomId string) *ServerMessage {
	return &ServerMessage{
		Type:      TypeOK,
		RoomId:    roomId,
		Code:      http.StatusOK,
		Timestamp: Now(),
	}
}

func ErrRoomNotFound(roomId string) *ServerMessage {
	return &ServerMessage{
		Type:      TypeError,
		RoomId:    roomId,
		Code:      http.StatusNotFound,
		Error:     "room not found",
		Timestamp: Now(),
	}
}

func ErrNotMember(roomId string) *ServerMessage {
	return &ServerMessage{
		Type:      TypeError,
		RoomId:    roomId,
		Code:      http.StatusForbidden,
		Error:     "not a member of room",
		Timestamp: Now(),
	}
}

func ErrInvalidMessage() *ServerMessage {
	return &ServerMessage{
		Type:      TypeError,
		Code:      http.StatusBadRequest,
		Error:     "invalid message format",
		Timestamp: Now(),
	}
}

func ErrInternalError(roomId string) *ServerMessage {
	return &ServerMessage{
		Type:      TypeError,
		RoomId:    roomId,
		Code:      http.StatusInternalServerError,
		Error:     "internal server error",
		Timestamp: Now(),
	}
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}

package types

import (
	"time"
)

type User struct {
	Id           int       `json:"id"`
	Username     string    `json:"username"`
	EmailAddress string    `json:"email_address,omitempty"`
	Password     string    `json:"-"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

// Sender is the public identity attached to every delivered message.
type Sender struct {
	Id       int    `json:"id"`
	Username string `json:"username"`
}

type Room struct {
	Id        string    `json:"id"`
	Name      string    `json:"name"`
	Owner     *Sender   `json:"owner,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Message is the wire form of a persisted message. RoomId is the room's
// external identifier, never the database row id.
type Message struct {
	Id        int       `json:"id"`
	RoomId    string    `json:"room_id"`
	Sender    Sender    `json:"sender"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

package database

import "errors"

// ErrDuplicate is returned when an insert violates a uniqueness
// constraint (room name, username, email address).
var ErrDuplicate = errors.New("duplicate record")

type ChatRepository interface {
	Ping() error
	CreateAccount(params CreateAccountParams) (User, error)
	GetAccountById(accountId int) (User, error)
	GetAccountByUsername(username string) (User, error)
	ListAccounts() ([]User, error)
	CreateRoom(params CreateRoomParams) (Room, error)
	GetRoomByExternalId(externalId string) (Room, error)
	ListRooms() ([]Room, error)
	DeleteRoom(roomId int) error
	AddMember(roomId, accountId int) error
	RemoveMember(roomId, accountId int) error
	IsMember(roomId, accountId int) bool
	ListMembers(roomId int) ([]User, error)
	CreateMessage(params CreateMessageParams) (Message, error)
	GetMessageById(messageId int) (Message, error)
	DeleteMessage(messageId int) error
	ListMessagesByRoom(roomId int) ([]Message, error)
}

package database

import "time"

type User struct {
	Id           int
	Username     string
	EmailAddress string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Room struct {
	Id            int
	ExternalId    string
	Name          string
	OwnerId       int
	OwnerUsername string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Message struct {
	Id             int
	RoomId         int
	AccountId      int
	SenderUsername string
	Content        string
	CreatedAt      time.Time
}

type CreateAccountParams struct {
	Username     string
	EmailAddress string
	PasswordHash string
}

type CreateRoomParams struct {
	Name       string
	ExternalId string
	OwnerId    int
}

type CreateMessageParams struct {
	RoomId    int
	AccountId int
	Content   string
}

package database

import (
	"time"
)

func (db *PgChatRepository) CreateAccount(params CreateAccountParams) (User, error) {
	res := db.conn.QueryRow(
		"INSERT INTO accounts (username, email, password_hash, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $4) RETURNING id, username, email, created_at, updated_at",
		params.Username,
		params.EmailAddress,
		params.PasswordHash,
		time.Now().UTC(),
	)

	var u User
	err := res.Scan(
		&u.Id,
		&u.Username,
		&u.EmailAddress,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	return u, translateError(err)
}

func (db *PgChatRepository) GetAccountById(accountId int) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, created_at, updated_at FROM accounts "+
			"WHERE id = $1 LIMIT 1",
		accountId,
	)

	var u User
	err := row.Scan(
		&u.Id,
		&u.Username,
		&u.EmailAddress,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	return u, err
}

func (db *PgChatRepository) GetAccountByUsername(username string) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, password_hash, created_at, updated_at FROM accounts "+
			"WHERE username = $1 LIMIT 1",
		username,
	)

	var u User
	err := row.Scan(
		&u.Id,
		&u.Username,
		&u.EmailAddress,
		&u.PasswordHash,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	return u, err
}

func (db *PgChatRepository) ListAccounts() ([]User, error) {
	rows, err := db.conn.Query(
		"SELECT id, username, email FROM accounts ORDER BY username",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err = rows.Scan(&u.Id, &u.Username, &u.EmailAddress); err != nil {
			return nil, err
		}

		users = append(users, u)
	}

	return users, rows.Err()
}

func (db *PgChatRepository) CreateRoom(params CreateRoomParams) (Room, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return Room{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res := tx.QueryRow(
		"INSERT INTO rooms (name, external_id, owner_id, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $4) RETURNING id, external_id, name, owner_id, created_at, updated_at",
		params.Name,
		params.ExternalId,
		params.OwnerId,
		time.Now().UTC(),
	)

	var room Room
	err = res.Scan(
		&room.Id,
		&room.ExternalId,
		&room.Name,
		&room.OwnerId,
		&room.CreatedAt,
		&room.UpdatedAt,
	)
	if err != nil {
		return Room{}, translateError(err)
	}

	// the owner is always the first member
	_, err = tx.Exec(
		"INSERT INTO room_members (room_id, account_id, created_at) VALUES ($1, $2, $3)",
		room.Id,
		params.OwnerId,
		time.Now().UTC(),
	)
	if err != nil {
		return Room{}, err
	}

	if err = tx.Commit(); err != nil {
		return Room{}, err
	}

	return room, nil
}

func (db *PgChatRepository) GetRoomByExternalId(externalId string) (Room, error) {
	row := db.conn.QueryRow(
		"SELECT r.id, r.external_id, r.name, r.owner_id, a.username, r.created_at, r.updated_at "+
			"FROM rooms r JOIN accounts a ON r.owner_id = a.id "+
			"WHERE r.external_id = $1 LIMIT 1",
		externalId,
	)

	var room Room
	err := row.Scan(
		&room.Id,
		&room.ExternalId,
		&room.Name,
		&room.OwnerId,
		&room.OwnerUsername,
		&room.CreatedAt,
		&room.UpdatedAt,
	)

	return room, err
}

func (db *PgChatRepository) ListRooms() ([]Room, error) {
	rows, err := db.conn.Query(
		"SELECT r.id, r.external_id, r.name, r.owner_id, a.username, r.created_at, r.updated_at " +
			"FROM rooms r JOIN accounts a ON r.owner_id = a.id ORDER BY r.name",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []Room
	for rows.Next() {
		var room Room
		if err = rows.Scan(
			&room.Id,
			&room.ExternalId,
			&room.Name,
			&room.OwnerId,
			&room.OwnerUsername,
			&room.CreatedAt,
			&room.UpdatedAt,
		); err != nil {
			return nil, err
		}

		rooms = append(rooms, room)
	}

	return rooms, rows.Err()
}

func (db *PgChatRepository) DeleteRoom(roomId int) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	_, err = tx.Exec("DELETE FROM room_members WHERE room_id = $1", roomId)
	if err != nil {
		return err
	}

	_, err = tx.Exec("DELETE FROM messages WHERE room_id = $1", roomId)
	if err != nil {
		return err
	}

	_, err = tx.Exec("DELETE FROM rooms WHERE id = $1", roomId)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (db *PgChatRepository) AddMember(roomId, accountId int) error {
	// ON CONFLICT keeps the operation idempotent
	_, err := db.conn.Exec(
		"INSERT INTO room_members (room_id, account_id, created_at) VALUES ($1, $2, $3) "+
			"ON CONFLICT (room_id, account_id) DO NOTHING",
		roomId,
		accountId,
		time.Now().UTC(),
	)

	return err
}

func (db *PgChatRepository) RemoveMember(roomId, accountId int) error {
	_, err := db.conn.Exec(
		"DELETE FROM room_members WHERE room_id = $1 AND account_id = $2",
		roomId,
		accountId,
	)

	return err
}

func (db *PgChatRepository) IsMember(roomId, accountId int) bool {
	res := db.conn.QueryRow(
		"SELECT id FROM room_members WHERE room_id = $1 AND account_id = $2 LIMIT 1",
		roomId,
		accountId,
	)

	var id int
	err := res.Scan(&id)

	return err == nil
}

func (db *PgChatRepository) ListMembers(roomId int) ([]User, error) {
	rows, err := db.conn.Query(
		"SELECT a.id, a.username FROM room_members AS rm "+
			"JOIN accounts AS a ON rm.account_id = a.id "+
			"WHERE rm.room_id = $1 ORDER BY rm.id",
		roomId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members = make([]User, 0)
	for rows.Next() {
		var u User
		if err = rows.Scan(&u.Id, &u.Username); err != nil {
			return nil, err
		}

		members = append(members, u)
	}

	return members, rows.Err()
}

func (db *PgChatRepository) CreateMessage(params CreateMessageParams) (Message, error) {
	res := db.conn.QueryRow(
		"INSERT INTO messages (room_id, account_id, content, created_at) "+
			"VALUES ($1, $2, $3, $4) RETURNING id, room_id, account_id, content, created_at",
		params.RoomId,
		params.AccountId,
		params.Content,
		time.Now().UTC(),
	)

	var msg Message
	err := res.Scan(
		&msg.Id,
		&msg.RoomId,
		&msg.AccountId,
		&msg.Content,
		&msg.CreatedAt,
	)

	return msg, err
}

func (db *PgChatRepository) GetMessageById(messageId int) (Message, error) {
	row := db.conn.QueryRow(
		"SELECT m.id, m.room_id, m.account_id, a.username, m.content, m.created_at "+
			"FROM messages m JOIN accounts a ON m.account_id = a.id "+
			"WHERE m.id = $1 LIMIT 1",
		messageId,
	)

	var msg Message
	err := row.Scan(
		&msg.Id,
		&msg.RoomId,
		&msg.AccountId,
		&msg.SenderUsername,
		&msg.Content,
		&msg.CreatedAt,
	)

	return msg, err
}

func (db *PgChatRepository) DeleteMessage(messageId int) error {
	_, err := db.conn.Exec("DELETE FROM messages WHERE id = $1", messageId)

	return err
}

func (db *PgChatRepository) ListMessagesByRoom(roomId int) ([]Message, error) {
	rows, err := db.conn.Query(
		"SELECT m.id, m.room_id, m.account_id, a.username, m.content, m.created_at "+
			"FROM messages m JOIN accounts a ON m.account_id = a.id "+
			"WHERE m.room_id = $1 ORDER BY m.created_at, m.id",
		roomId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages = make([]Message, 0)
	for rows.Next() {
		var msg Message
		if err = rows.Scan(
			&msg.Id,
			&msg.RoomId,
			&msg.AccountId,
			&msg.SenderUsername,
			&msg.Content,
			&msg.CreatedAt,
		); err != nil {
			return nil, err
		}

		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

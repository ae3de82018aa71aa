package server

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/parley-chat/parley/internal/database"
	"github.com/parley-chat/parley/internal/stats"
	"github.com/parley-chat/parley/internal/types"
)

// ErrNotAMember is returned when a channel asks to subscribe to a room
// its user has not joined.
var ErrNotAMember = errors.New("not a member of room")

// ChatServer owns the live side of the chat service: it admits channels
// into rooms, persists submitted messages and hands them to the
// dispatcher. It is constructed once per process and injected wherever
// it is needed.
type ChatServer struct {
	log        *log.Logger
	db         database.ChatRepository
	registry   *Registry
	dispatcher *Dispatcher
	stats      stats.StatsProvider

	clientsLock sync.Mutex
	clients     map[*Client]struct{}

	// roomLocks serializes persist+fan-out per room so delivery order to
	// any one subscriber always matches ledger append order.
	roomLocksMu sync.Mutex
	roomLocks   map[string]*sync.Mutex
}

func NewChatServer(logger *log.Logger, db database.ChatRepository, registry *Registry, dispatcher *Dispatcher, statsUpdater stats.StatsProvider) (*ChatServer, error) {
	statsUpdater.RegisterMetric(stats.NumActiveClients)
	statsUpdater.RegisterMetric(stats.MessagesPublished)

	return &ChatServer{
		log:        logger,
		db:         db,
		registry:   registry,
		dispatcher: dispatcher,
		stats:      statsUpdater,
		clients:    make(map[*Client]struct{}),
		roomLocks:  make(map[string]*sync.Mutex),
	}, nil
}

func (cs *ChatServer) Registry() *Registry {
	return cs.registry
}

func (cs *ChatServer) RegisterClient(c *Client) {
	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()

	cs.clients[c] = struct{}{}
	cs.stats.Incr(stats.NumActiveClients)
}

func (cs *ChatServer) DeRegisterClient(c *Client) {
	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()

	if _, ok := cs.clients[c]; !ok {
		return
	}

	delete(cs.clients, c)
	cs.stats.Decr(stats.NumActiveClients)
}

// JoinLive subscribes a channel to a room's live stream. The room must
// exist and the channel's user must be a member.
func (cs *ChatServer) JoinLive(c *Client, roomId string) error {
	room, err := cs.db.GetRoomByExternalId(roomId)
	if err != nil {
		return err
	}

	if !cs.db.IsMember(room.Id, c.user.Id) {
		return ErrNotAMember
	}

	cs.registry.Register(room.ExternalId, c)
	c.addRoom(room.ExternalId)

	return nil
}

// LeaveLive drops a channel's live subscription to a room. Idempotent.
func (cs *ChatServer) LeaveLive(c *Client, roomId string) {
	cs.registry.Unregister(roomId, c)
	c.delRoom(roomId)
}

// Disconnect removes every trace of a channel from the live state. It is
// called synchronously from the channel's disconnect handling.
func (cs *ChatServer) Disconnect(c *Client) {
	cs.registry.UnregisterAll(c)
	c.clearRooms()
	cs.DeRegisterClient(c)
}

// UnloadRoom evicts every live subscriber of a room that no longer
// exists. Subscribers stay connected; they just stop receiving the
// room's stream.
func (cs *ChatServer) UnloadRoom(roomId string) {
	for _, ch := range cs.registry.DropRoom(roomId) {
		if c, ok := ch.(*Client); ok {
			c.delRoom(roomId)
		}
	}

	cs.roomLocksMu.Lock()
	delete(cs.roomLocks, roomId)
	cs.roomLocksMu.Unlock()
}

func (cs *ChatServer) roomLock(roomId string) *sync.Mutex {
	cs.roomLocksMu.Lock()
	defer cs.roomLocksMu.Unlock()

	l, ok := cs.roomLocks[roomId]
	if !ok {
		l = &sync.Mutex{}
		cs.roomLocks[roomId] = l
	}
	return l
}

// Publish durably appends a message to the room's ledger and fans it out
// to the room's current subscribers. The durable write happens before
// any delivery; both happen under the room's ordering lock.
func (cs *ChatServer) Publish(room database.Room, sender types.Sender, content string) (*types.Message, error) {
	l := cs.roomLock(room.ExternalId)
	l.Lock()
	defer l.Unlock()

	dbMsg, err := cs.db.CreateMessage(database.CreateMessageParams{
		RoomId:    room.Id,
		AccountId: sender.Id,
		Content:   content,
	})
	if err != nil {
		return nil, err
	}

	msg := &types.Message{
		Id:        dbMsg.Id,
		RoomId:    room.ExternalId,
		Sender:    sender,
		Content:   dbMsg.Content,
		Timestamp: dbMsg.CreatedAt,
	}

	cs.dispatcher.Publish(room.ExternalId, msg)
	cs.stats.Incr(stats.MessagesPublished)

	return msg, nil
}

// PublishFrom publishes a message submitted over a live connection. The
// room must exist; membership is not required to post, matching the
// request-style create-message path.
func (cs *ChatServer) PublishFrom(c *Client, roomId, content string) error {
	room, err := cs.db.GetRoomByExternalId(roomId)
	if err != nil {
		return err
	}

	_, err = cs.Publish(room, c.user, content)
	return err
}

// Shutdown tears down all live state: every channel is closed and the
// registry cleared. Durable state is untouched; reconnecting clients
// start with empty subscriptions.
func (cs *ChatServer) Shutdown(ctx context.Context) error {
	cs.log.Println("closing live connections")
	cs.registry.Close()

	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()
	for c := range cs.clients {
		c.Close()
		delete(cs.clients, c)
		cs.stats.Decr(stats.NumActiveClients)
	}

	return ctx.Err()
}

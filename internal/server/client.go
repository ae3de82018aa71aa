package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/parley-chat/parley/internal/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 1024
)

// Client is the LiveChannel implementation for a websocket connection.
// One Read and one Write goroutine run per client; everything outbound
// goes through the buffered send channel.
type Client struct {
	conn       *websocket.Conn
	chatServer *ChatServer
	log        *log.Logger
	user       types.Sender
	send       chan *ServerMessage
	stop       chan struct{}
	closeOnce  sync.Once

	// boundRoom is the room bound at connect time; publish frames with
	// no room_id are routed to it.
	boundRoom string

	roomsLock sync.RWMutex
	rooms     map[string]struct{}
}

func NewClient(user types.Sender, conn *websocket.Conn, cs *ChatServer, l *log.Logger) *Client {
	return &Client{
		conn:       conn,
		chatServer: cs,
		log:        l,
		user:       user,
		send:       make(chan *ServerMessage, 256),
		rooms:      make(map[string]struct{}),
		stop:       make(chan struct{}),
	}
}

func (c *Client) User() types.Sender {
	return c.user
}

// BindRoom fixes the default room for publish frames that omit room_id.
func (c *Client) BindRoom(roomId string) {
	c.boundRoom = roomId
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.log.Println("write exiting")
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := serializeMessage(msg)
			if err != nil {
				c.log.Println("failed to serialize message:", err)
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			return
		case <-ticker.C:
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
		c.log.Println("read exiting")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.Println("error parsing message:", err)
			c.queueMessage(ErrInvalidMessage())
			continue
		}

		c.handleInbound(&msg)
	}
}

// handleInbound dispatches one client frame. Malformed frames are
// answered with an error frame; the connection stays open.
func (c *Client) handleInbound(msg *ClientMessage) {
	switch msg.Type {
	case TypeJoin:
		if msg.RoomId == "" {
			c.queueMessage(ErrInvalidMessage())
			return
		}
		c.queueMessage(c.joinRoom(msg.RoomId))
	case TypeLeave:
		if msg.RoomId == "" {
			c.queueMessage(ErrInvalidMessage())
			return
		}
		c.chatServer.LeaveLive(c, msg.RoomId)
		c.queueMessage(NoErrOK(msg.RoomId))
	case TypePublish:
		roomId := msg.RoomId
		if roomId == "" {
			roomId = c.boundRoom
		}
		if roomId == "" || msg.Content == "" {
			c.queueMessage(ErrInvalidMessage())
			return
		}
		if frame := c.publish(roomId, msg.Content); frame != nil {
			c.queueMessage(frame)
		}
	default:
		c.queueMessage(ErrInvalidMessage())
	}
}

func (c *Client) joinRoom(roomId string) *ServerMessage {
	err := c.chatServer.JoinLive(c, roomId)
	switch {
	case err == nil:
		return NoErrOK(roomId)
	case errors.Is(err, sql.ErrNoRows):
		return ErrRoomNotFound(roomId)
	case errors.Is(err, ErrNotAMember):
		return ErrNotMember(roomId)
	default:
		c.log.Println("join room:", err)
		return ErrInternalError(roomId)
	}
}

// publish persists the message and triggers fan-out. Returns a frame
// only on failure; on success the message event itself reaches this
// client through the dispatcher like any other subscriber.
func (c *Client) publish(roomId, content string) *ServerMessage {
	err := c.chatServer.PublishFrom(c, roomId, content)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return ErrRoomNotFound(roomId)
	default:
		c.log.Println("publish:", err)
		return ErrInternalError(roomId)
	}
}

func (c *Client) queueMessage(msg *ServerMessage) bool {
	select {
	case c.send <- msg:
	default:
		c.log.Println("failed to send message to client, channel is full")
		return false
	}

	return true
}

// Deliver implements Channel for the dispatcher.
func (c *Client) Deliver(msg *ServerMessage) bool {
	select {
	case <-c.stop:
		return false
	default:
	}

	return c.queueMessage(msg)
}

func serializeMessage(msg *ServerMessage) ([]byte, error) {
	return json.Marshal(msg)
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

// Close implements Channel. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.stop)
	})
}

func (c *Client) cleanup() {
	c.chatServer.Disconnect(c)
	c.Close()
}

func (c *Client) addRoom(roomId string) {
	c.roomsLock.Lock()
	defer c.roomsLock.Unlock()

	c.rooms[roomId] = struct{}{}
}

func (c *Client) delRoom(roomId string) {
	c.roomsLock.Lock()
	defer c.roomsLock.Unlock()

	delete(c.rooms, roomId)
}

func (c *Client) clearRooms() {
	c.roomsLock.Lock()
	defer c.roomsLock.Unlock()

	c.rooms = make(map[string]struct{})
}

func (c *Client) inRoom(roomId string) bool {
	c.roomsLock.RLock()
	defer c.roomsLock.RUnlock()

	_, ok := c.rooms[roomId]
	return ok
}

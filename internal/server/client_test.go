package server

import (
	"database/sql"
	"testing"
	"time"

	"github.com/parley-chat/parley/internal/database"
	"github.com/parley-chat/parley/internal/testutil"
	"github.com/parley-chat/parley/internal/types"
	"github.com/stretchr/testify/assert"
)

func Test_queueMessage(t *testing.T) {
	t.Run("successful queue", func(t *testing.T) {
		c := &Client{
			send: make(chan *ServerMessage, 1),
			log:  testutil.TestLogger(t),
		}

		res := c.queueMessage(&ServerMessage{})
		assert.True(t, res, "expected queueMessage to return true when channel is not full")

		select {
		case msg := <-c.send:
			assert.NotNil(t, msg, "expected a message to be sent to the client")
		default:
			t.Error("expected a message to be sent to the client, but none was sent")
		}
	})
	t.Run("channel full", func(t *testing.T) {
		c := &Client{
			send: make(chan *ServerMessage, 1),
			log:  testutil.TestLogger(t),
		}

		c.send <- &ServerMessage{} // pre-fill the send channel to simulate a full channel
		res := c.queueMessage(&ServerMessage{})
		assert.False(t, res, "expected queueMessage to return false when channel is full")
	})
}

func TestDeliver(t *testing.T) {
	t.Run("delivers to open client", func(t *testing.T) {
		c := &Client{
			send: make(chan *ServerMessage, 1),
			log:  testutil.TestLogger(t),
			stop: make(chan struct{}),
		}

		assert.True(t, c.Deliver(&ServerMessage{}), "expected delivery to open client to succeed")
	})
	t.Run("fails after close", func(t *testing.T) {
		c := &Client{
			send: make(chan *ServerMessage, 1),
			log:  testutil.TestLogger(t),
			stop: make(chan struct{}),
		}

		c.Close()
		assert.False(t, c.Deliver(&ServerMessage{}), "expected delivery to closed client to fail")
	})
}

func Test_serializeMessage(t *testing.T) {
	msg := MessageEvent(&types.Message{
		Id:        1,
		RoomId:    "EoGKUXPHgz",
		Sender:    types.Sender{Id: 2, Username: "alice"},
		Content:   "hi",
		Timestamp: Now(),
	})

	expected := `{"type":"message","data":{"id":1,"room_id":"EoGKUXPHgz",` +
		`"sender":{"id":2,"username":"alice"},"content":"hi",` +
		`"timestamp":"` + msg.Data.Timestamp.Format(time.RFC3339Nano) + `"},` +
		`"timestamp":"` + msg.Timestamp.Format(time.RFC3339Nano) + `"}`

	bytes, err := serializeMessage(msg)
	assert.NoError(t, err, "expected no error during serialization")
	assert.Equal(t, expected, string(bytes), "expected serialized message to match the expected format")
}

func TestClose_Idempotent(t *testing.T) {
	c := &Client{stop: make(chan struct{})}

	c.Close()
	c.Close() // second close must not panic

	select {
	case <-c.stop:
	default:
		t.Error("expected stop channel to be closed")
	}
}

func Test_handleInbound(t *testing.T) {
	room := database.Room{Id: 1, ExternalId: "EoGKUXPHgz", Name: "General", OwnerId: 1}

	tcases := []struct {
		name         string
		msg          *ClientMessage
		boundRoom    string
		setupMock    func(db *database.MockChatRepository)
		expectedType string
		expectedCode int
	}{
		{
			name:         "unknown frame type",
			msg:          &ClientMessage{Type: "bogus"},
			expectedType: TypeError,
			expectedCode: 400,
		},
		{
			name:         "join without room id",
			msg:          &ClientMessage{Type: TypeJoin},
			expectedType: TypeError,
			expectedCode: 400,
		},
		{
			name: "join unknown room",
			msg:  &ClientMessage{Type: TypeJoin, RoomId: room.ExternalId},
			setupMock: func(db *database.MockChatRepository) {
				db.On("GetRoomByExternalId", room.ExternalId).Return(database.Room{}, sql.ErrNoRows).Once()
			},
			expectedType: TypeError,
			expectedCode: 404,
		},
		{
			name: "join as non-member",
			msg:  &ClientMessage{Type: TypeJoin, RoomId: room.ExternalId},
			setupMock: func(db *database.MockChatRepository) {
				db.On("GetRoomByExternalId", room.ExternalId).Return(room, nil).Once()
				db.On("IsMember", room.Id, 2).Return(false).Once()
			},
			expectedType: TypeError,
			expectedCode: 403,
		},
		{
			name: "join as member",
			msg:  &ClientMessage{Type: TypeJoin, RoomId: room.ExternalId},
			setupMock: func(db *database.MockChatRepository) {
				db.On("GetRoomByExternalId", room.ExternalId).Return(room, nil).Once()
				db.On("IsMember", room.Id, 2).Return(true).Once()
			},
			expectedType: TypeOK,
			expectedCode: 200,
		},
		{
			name:         "leave room",
			msg:          &ClientMessage{Type: TypeLeave, RoomId: room.ExternalId},
			expectedType: TypeOK,
			expectedCode: 200,
		},
		{
			name:         "publish without room or binding",
			msg:          &ClientMessage{Type: TypePublish, Content: "hi"},
			expectedType: TypeError,
			expectedCode: 400,
		},
		{
			name:         "publish without content",
			msg:          &ClientMessage{Type: TypePublish, RoomId: room.ExternalId},
			expectedType: TypeError,
			expectedCode: 400,
		},
		{
			name: "publish to unknown room",
			msg:  &ClientMessage{Type: TypePublish, RoomId: room.ExternalId, Content: "hi"},
			setupMock: func(db *database.MockChatRepository) {
				db.On("GetRoomByExternalId", room.ExternalId).Return(database.Room{}, sql.ErrNoRows).Once()
			},
			expectedType: TypeError,
			expectedCode: 404,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			db := &database.MockChatRepository{}
			defer db.AssertExpectations(t)
			if tc.setupMock != nil {
				tc.setupMock(db)
			}

			cs := newTestChatServer(t, db)
			c := newTestClient(cs, types.Sender{Id: 2, Username: "bob"})
			c.BindRoom(tc.boundRoom)

			c.handleInbound(tc.msg)

			select {
			case frame := <-c.send:
				assert.Equal(t, tc.expectedType, frame.Type, "unexpected frame type")
				assert.Equal(t, tc.expectedCode, frame.Code, "unexpected frame code")
			default:
				t.Error("expected a response frame")
			}
		})
	}
}

func Test_handleInbound_PublishBoundRoom(t *testing.T) {
	room := database.Room{Id: 1, ExternalId: "EoGKUXPHgz", Name: "General", OwnerId: 1}
	now := time.Now().UTC()

	db := &database.MockChatRepository{}
	defer db.AssertExpectations(t)
	db.On("GetRoomByExternalId", room.ExternalId).Return(room, nil).Once()
	db.On("CreateMessage", database.CreateMessageParams{
		RoomId:    room.Id,
		AccountId: 2,
		Content:   "hi",
	}).Return(database.Message{Id: 9, RoomId: room.Id, AccountId: 2, Content: "hi", CreatedAt: now}, nil).Once()

	cs := newTestChatServer(t, db)
	c := newTestClient(cs, types.Sender{Id: 2, Username: "bob"})
	c.BindRoom(room.ExternalId)

	// subscribe the publishing client itself so we can observe fan-out
	cs.registry.Register(room.ExternalId, c)

	c.handleInbound(&ClientMessage{Type: TypePublish, Content: "hi"})

	select {
	case frame := <-c.send:
		assert.Equal(t, TypeMessage, frame.Type, "expected the published message back via fan-out")
		assert.Equal(t, "hi", frame.Data.Content)
		assert.Equal(t, room.ExternalId, frame.Data.RoomId)
		assert.Equal(t, "bob", frame.Data.Sender.Username)
	default:
		t.Error("expected the published message to be delivered")
	}
}

func Test_addRoom_delRoom_clearRooms(t *testing.T) {
	c := &Client{rooms: make(map[string]struct{})}

	c.addRoom("room1")
	c.addRoom("room2")
	assert.True(t, c.inRoom("room1"))
	assert.True(t, c.inRoom("room2"))

	c.delRoom("room1")
	assert.False(t, c.inRoom("room1"))

	c.clearRooms()
	assert.False(t, c.inRoom("room2"))
}

package server

import (
	"strconv"
	"testing"

	"github.com/parley-chat/parley/internal/stats"
	"github.com/parley-chat/parley/internal/testutil"
	"github.com/parley-chat/parley/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *Registry) {
	su := &stats.MockStatsUpdater{}
	su.On("RegisterMetric", mock.Anything).Maybe()
	su.On("Incr", mock.Anything).Maybe()
	su.On("Decr", mock.Anything).Maybe()

	logger := testutil.TestLogger(t)
	registry := NewRegistry(logger, su)
	return NewDispatcher(logger, registry, su), registry
}

func TestDispatcher_PublishReachesAllSubscribers(t *testing.T) {
	d, registry := newTestDispatcher(t)

	chans := []*fakeChannel{{}, {}, {}}
	for _, ch := range chans {
		registry.Register("room1", ch)
	}
	outsider := &fakeChannel{}
	registry.Register("room2", outsider)

	msg := &types.Message{Id: 1, RoomId: "room1", Content: "hi", Sender: types.Sender{Id: 1, Username: "alice"}}
	d.Publish("room1", msg)

	for i, ch := range chans {
		frames := ch.delivered()
		assert.Lenf(t, frames, 1, "expected one frame on channel %d", i)
		assert.Equal(t, TypeMessage, frames[0].Type)
		assert.Equal(t, msg, frames[0].Data)
	}
	assert.Empty(t, outsider.delivered(), "expected no delivery to other rooms")
}

func TestDispatcher_SlowSubscriberEvicted(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	su.On("RegisterMetric", mock.Anything).Maybe()
	su.On("Incr", stats.NumLiveRooms).Maybe()
	su.On("Decr", stats.NumLiveRooms).Maybe()
	su.On("Incr", stats.DeliveryFailures).Once()
	defer su.AssertExpectations(t)

	logger := testutil.TestLogger(t)
	registry := NewRegistry(logger, su)
	d := NewDispatcher(logger, registry, su)

	healthy := &fakeChannel{}
	slow := &fakeChannel{full: true}
	registry.Register("room1", healthy)
	registry.Register("room1", slow)
	registry.Register("room2", slow)

	d.Publish("room1", &types.Message{Id: 1, RoomId: "room1", Content: "hi"})

	// the slow channel is evicted everywhere and closed; the healthy one
	// still got the message
	assert.True(t, slow.isClosed(), "expected slow channel to be closed")
	assert.False(t, registry.Contains("room1", slow), "expected slow channel unregistered from room1")
	assert.False(t, registry.Contains("room2", slow), "expected slow channel unregistered from room2")
	assert.Len(t, healthy.delivered(), 1, "expected healthy channel to receive the message")
	assert.False(t, healthy.isClosed(), "expected healthy channel to stay open")
}

func TestDispatcher_PerSubscriberOrdering(t *testing.T) {
	d, registry := newTestDispatcher(t)

	ch := &fakeChannel{}
	registry.Register("room1", ch)

	const n = 50
	for i := 1; i <= n; i++ {
		d.Publish("room1", &types.Message{Id: i, RoomId: "room1", Content: strconv.Itoa(i)})
	}

	frames := ch.delivered()
	assert.Len(t, frames, n, "expected every message to be delivered")
	for i, frame := range frames {
		assert.Equalf(t, i+1, frame.Data.Id, "expected message %d in order", i+1)
	}
}

func TestDispatcher_NoSubscribers(t *testing.T) {
	d, _ := newTestDispatcher(t)

	// publishing to an empty room must not panic
	d.Publish("empty-room", &types.Message{Id: 1, RoomId: "empty-room", Content: "hi"})
}

package server

import (
	"log"
	"sync"

	"github.com/parley-chat/parley/internal/stats"
)

// Channel is one live streaming connection's handle as the registry and
// dispatcher see it. Deliver must never block; it reports false when the
// channel can no longer accept frames.
type Channel interface {
	Deliver(msg *ServerMessage) bool
	Close()
}

// Registry is the process-wide mapping from room identifier to the set
// of currently subscribed channels. It is purely transient state: it is
// emptied by a restart and clients are expected to reconnect.
type Registry struct {
	log   *log.Logger
	stats stats.StatsProvider

	mu    sync.RWMutex
	rooms map[string]map[Channel]struct{}
}

func NewRegistry(logger *log.Logger, statsUpdater stats.StatsProvider) *Registry {
	statsUpdater.RegisterMetric(stats.NumLiveRooms)

	return &Registry{
		log:   logger,
		stats: statsUpdater,
		rooms: make(map[string]map[Channel]struct{}),
	}
}

// Register inserts the channel into the room's subscriber set, creating
// the set on first use.
func (r *Registry) Register(roomId string, ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.rooms[roomId]
	if !ok {
		set = make(map[Channel]struct{})
		r.rooms[roomId] = set
		r.stats.Incr(stats.NumLiveRooms)
	}
	set[ch] = struct{}{}
}

// Unregister removes the channel from the room's set. Empty sets are
// pruned. Idempotent.
func (r *Registry) Unregister(roomId string, ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.removeLocked(roomId, ch)
}

// UnregisterAll removes the channel from every room it joined. Called
// synchronously from disconnect handling so no dangling entries survive
// a closed connection.
func (r *Registry) UnregisterAll(ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for roomId := range r.rooms {
		r.removeLocked(roomId, ch)
	}
}

func (r *Registry) removeLocked(roomId string, ch Channel) {
	set, ok := r.rooms[roomId]
	if !ok {
		return
	}

	if _, ok := set[ch]; !ok {
		return
	}

	delete(set, ch)
	if len(set) == 0 {
		delete(r.rooms, roomId)
		r.stats.Decr(stats.NumLiveRooms)
	}
}

// DropRoom removes the room's entire subscriber set. Returns the
// channels that were subscribed so the caller can notify them. The
// channels themselves stay open.
func (r *Registry) DropRoom(roomId string) []Channel {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.rooms[roomId]
	if !ok {
		return nil
	}

	subs := make([]Channel, 0, len(set))
	for ch := range set {
		subs = append(subs, ch)
	}

	delete(r.rooms, roomId)
	r.stats.Decr(stats.NumLiveRooms)

	return subs
}

// Subscribers returns a snapshot of the room's subscriber set. A
// registration racing a fan-out pass may miss that pass; a channel never
// appears unless it was registered at snapshot time.
func (r *Registry) Subscribers(roomId string) []Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.rooms[roomId]
	if !ok {
		return nil
	}

	subs := make([]Channel, 0, len(set))
	for ch := range set {
		subs = append(subs, ch)
	}

	return subs
}

// Contains reports whether the channel is currently subscribed to the room.
func (r *Registry) Contains(roomId string, ch Channel) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.rooms[roomId][ch]
	return ok
}

// Close tears the registry down: every channel is closed once and the
// map is cleared.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	closed := make(map[Channel]struct{})
	for roomId, set := range r.rooms {
		for ch := range set {
			if _, ok := closed[ch]; !ok {
				ch.Close()
				closed[ch] = struct{}{}
			}
		}
		delete(r.rooms, roomId)
		r.stats.Decr(stats.NumLiveRooms)
	}
}

package server

import (
	"log"

	"github.com/parley-chat/parley/internal/stats"
	"github.com/parley-chat/parley/internal/types"
)

// Dispatcher fans a persisted message out to every channel currently
// subscribed to its room.
type Dispatcher struct {
	log      *log.Logger
	registry *Registry
	stats    stats.StatsProvider
}

func NewDispatcher(logger *log.Logger, registry *Registry, statsUpdater stats.StatsProvider) *Dispatcher {
	statsUpdater.RegisterMetric(stats.DeliveryFailures)

	return &Dispatcher{
		log:      logger,
		registry: registry,
		stats:    statsUpdater,
	}
}

// Publish delivers the message to the current subscriber snapshot of its
// room. A channel that cannot accept the frame is treated as an implicit
// disconnect: it is unregistered everywhere and closed, and delivery to
// the remaining subscribers continues.
func (d *Dispatcher) Publish(roomId string, msg *types.Message) {
	frame := MessageEvent(msg)

	for _, ch := range d.registry.Subscribers(roomId) {
		if ch.Deliver(frame) {
			continue
		}

		d.log.Printf("evicting slow subscriber from room %q", roomId)
		d.stats.Incr(stats.DeliveryFailures)
		d.registry.UnregisterAll(ch)
		ch.Close()
	}
}

package stats

import (
	"encoding/json"
	"expvar"
	"net/http"
	"time"
)

// Metric names registered by the chat server.
const (
	NumActiveClients  = "NumActiveClients"
	NumLiveRooms      = "NumLiveRooms"
	MessagesPublished = "MessagesPublished"
	DeliveryFailures  = "DeliveryFailures"
)

// StatsProvider is the counter surface the server components depend on.
type StatsProvider interface {
	Incr(name string)
	Decr(name string)
	RegisterMetric(name string)
	Run()
}

// StatsUpdater maintains process counters in an expvar map. Updates are
// applied by a single goroutine fed through updateChan, so callers never
// block on expvar internals.
type StatsUpdater struct {
	vars       *expvar.Map
	startTime  time.Time
	updateChan chan counterDelta
}

type counterDelta struct {
	name  string
	value int64
}

func NewStatsUpdater(mux *http.ServeMux) *StatsUpdater {
	// expvar names are process-global; reuse the map if one was
	// already published
	vars, ok := expvar.Get("parley-stats").(*expvar.Map)
	if !ok {
		vars = expvar.NewMap("parley-stats")
	}

	su := &StatsUpdater{
		vars:       vars,
		startTime:  time.Now(),
		updateChan: make(chan counterDelta, 512),
	}

	su.vars.Set("Uptime", expvar.Func(func() any {
		return time.Since(su.startTime).Milliseconds()
	}))

	mux.HandleFunc("GET /debug/vars", su.expvarHandler)

	return su
}

func (su *StatsUpdater) expvarHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	data := make(map[string]any)
	su.vars.Do(func(kv expvar.KeyValue) {
		var value any
		json.Unmarshal([]byte(kv.Value.String()), &value)
		data[kv.Key] = value
	})

	json.NewEncoder(w).Encode(data)
}

func (su *StatsUpdater) applyDeltas() {
	for d := range su.updateChan {
		metric, ok := su.vars.Get(d.name).(*expvar.Int)
		if !ok {
			panic("metric not registered: " + d.name)
		}

		metric.Add(d.value)
	}
}

func (su *StatsUpdater) Incr(name string) {
	su.updateChan <- counterDelta{name: name, value: 1}
}

func (su *StatsUpdater) Decr(name string) {
	su.updateChan <- counterDelta{name: name, value: -1}
}

func (su *StatsUpdater) RegisterMetric(name string) {
	su.vars.Set(name, expvar.NewInt(name))
}

func (su *StatsUpdater) Run() {
	go su.applyDeltas()
}

func (su *StatsUpdater) Stop() {
	close(su.updateChan)
}

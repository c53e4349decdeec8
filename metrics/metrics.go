package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rafimuhammad01/dispatch-app/dispatch"
)

// Collector exports hub activity as Prometheus metrics. Rooms are labelled by role only
// so the series count stays bounded.
type Collector struct {
	publishes      *prometheus.CounterVec
	emptyPublishes *prometheus.CounterVec
	dropped        *prometheus.CounterVec
	evictions      prometheus.Counter
	connections    prometheus.Gauge
	drivers        prometheus.Gauge
}

// NewCollector registers the dispatch metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)

	return &Collector{
		publishes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dispatch_publishes_total",
				Help: "Total number of events published to a room",
			},
			[]string{"event", "role"},
		),
		emptyPublishes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dispatch_publishes_empty_room_total",
				Help: "Total number of events published to a room without members",
			},
			[]string{"event", "role"},
		),
		dropped: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dispatch_sends_dropped_total",
				Help: "Total number of messages dropped because a connection send queue was full",
			},
			[]string{"event", "role"},
		),
		evictions: f.NewCounter(
			prometheus.CounterOpts{
				Name: "dispatch_stale_evictions_total",
				Help: "Total number of driver locations evicted for being stale",
			},
		),
		connections: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "dispatch_connections",
				Help: "Number of open client connections",
			},
		),
		drivers: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "dispatch_tracked_drivers",
				Help: "Number of drivers with a known location",
			},
		),
	}
}

var _ dispatch.Observer = (*Collector)(nil)

func (c *Collector) Published(event string, room dispatch.Room, recipients int) {
	c.publishes.WithLabelValues(event, string(room.Role)).Inc()
	if recipients == 0 {
		c.emptyPublishes.WithLabelValues(event, string(room.Role)).Inc()
	}
}

func (c *Collector) Dropped(event string, room dispatch.Room) {
	c.dropped.WithLabelValues(event, string(room.Role)).Inc()
}

func (c *Collector) Connected() {
	c.connections.Inc()
}

func (c *Collector) Disconnected() {
	c.connections.Dec()
}

func (c *Collector) Evicted(n int) {
	c.evictions.Add(float64(n))
}

func (c *Collector) TrackedDrivers(n int) {
	c.drivers.Set(float64(n))
}

package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector implements MetricsCollector using Prometheus
type Collector struct {
	gamesStarted     *prometheus.CounterVec
	gamesFinished    *prometheus.CounterVec
	gameDuration     *prometheus.HistogramVec
	moves            *prometheus.CounterVec
	activeRooms      prometheus.Gauge
	queueDepth       *prometheus.GaugeVec
	connectedClients prometheus.Gauge
	settlements      *prometheus.CounterVec
	workerPoolIdle   prometheus.Gauge
	workerPoolBusy   prometheus.Gauge
}

// NewCollector registers the OmokPang metrics on reg. Pass
// prometheus.DefaultRegisterer to expose them on /metrics.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		gamesStarted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "omokpang_games_started_total",
				Help: "Total number of games started",
			},
			[]string{"mode"},
		),
		gamesFinished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "omokpang_games_finished_total",
				Help: "Total number of games finished",
			},
			[]string{"mode", "outcome"},
		),
		gameDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "omokpang_game_duration_seconds",
				Help:    "Game duration in seconds",
				Buckets: []float64{30, 60, 120, 300, 600, 1200, 1800, 3600},
			},
			[]string{"mode"},
		),
		moves: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "omokpang_moves_total",
				Help: "Total number of moves by kind (stone placements and cards)",
			},
			[]string{"kind"},
		),
		activeRooms: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "omokpang_active_rooms",
				Help: "Number of rooms currently in play",
			},
		),
		queueDepth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "omokpang_queue_depth",
				Help: "Players waiting in each matchmaking queue",
			},
			[]string{"mode"},
		),
		connectedClients: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "omokpang_connected_clients",
				Help: "Number of open game connections",
			},
		),
		settlements: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "omokpang_settlements_total",
				Help: "Game result settlements by status",
			},
			[]string{"status"},
		),
		workerPoolIdle: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "omokpang_worker_pool_idle",
				Help: "Number of idle settlement workers",
			},
		),
		workerPoolBusy: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "omokpang_worker_pool_busy",
				Help: "Number of busy settlement workers",
			},
		),
	}
}

func (c *Collector) RecordGameStarted(mode string) {
	c.gamesStarted.WithLabelValues(mode).Inc()
}

// RecordGameFinished counts a finished game. outcome is "win", "draw" or
// "aborted".
func (c *Collector) RecordGameFinished(mode, outcome string, duration time.Duration) {
	c.gamesFinished.WithLabelValues(mode, outcome).Inc()
	c.gameDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

func (c *Collector) RecordMove(kind string) {
	c.moves.WithLabelValues(kind).Inc()
}

func (c *Collector) SetActiveRooms(count int) {
	c.activeRooms.Set(float64(count))
}

func (c *Collector) SetQueueDepth(mode string, depth int) {
	c.queueDepth.WithLabelValues(mode).Set(float64(depth))
}

func (c *Collector) SetConnectedClients(count int) {
	c.connectedClients.Set(float64(count))
}

func (c *Collector) RecordSettlement(status string) {
	c.settlements.WithLabelValues(status).Inc()
}

// SetWorkerStatus updates worker pool gauges
func (c *Collector) SetWorkerStatus(idle, busy int) {
	c.workerPoolIdle.Set(float64(idle))
	c.workerPoolBusy.Set(float64(busy))
}

package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/omokpang/omokpang/internal/domain/user"
	"github.com/omokpang/omokpang/pkg/ports"
)

const settleTimeout = 10 * time.Second

// Settlement outcomes recorded per event
const (
	SettlementApplied = "applied"
	SettlementDraw    = "draw"
	SettlementInvalid = "invalid"
	SettlementFailed  = "failed"
)

// Settler records the results of a finished game. Applying the same
// settlementID twice must be a no-op.
type Settler interface {
	Apply(ctx context.Context, settlementID string, results []user.PlayerResult) error
}

// Pool manages a pool of settlement workers
type Pool struct {
	size     int
	eventBus ports.EventBus
	settler  Settler
	metrics  ports.MetricsCollector
	logger   *zap.Logger
	health   *HealthMonitor

	jobs    chan job
	workers []*worker
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

// job is one delivered event. The handler waits on done so the bus only
// acknowledges settled events.
type job struct {
	event ports.Event
	done  chan error
}

// worker represents a single worker goroutine
type worker struct {
	id      string
	pool    *Pool
	status  WorkerStatus
	mu      sync.RWMutex
	lastJob time.Time
}

// WorkerStatus represents worker status
type WorkerStatus string

const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusBusy    WorkerStatus = "busy"
	WorkerStatusStopped WorkerStatus = "stopped"
)

// NewPool creates a new worker pool
func NewPool(
	size int,
	eventBus ports.EventBus,
	settler Settler,
	metrics ports.MetricsCollector,
	logger *zap.Logger,
	healthCheckInterval time.Duration,
) *Pool {
	ctx, cancel := context.WithCancel(context.Background())

	pool := &Pool{
		size:     size,
		eventBus: eventBus,
		settler:  settler,
		metrics:  metrics,
		logger:   logger,
		jobs:     make(chan job),
		workers:  make([]*worker, size),
		ctx:      ctx,
		cancel:   cancel,
	}

	pool.health = NewHealthMonitor(pool, healthCheckInterval, logger)

	return pool
}

// Start starts the workers and subscribes the pool to game events
func (p *Pool) Start() error {
	p.logger.Info("starting worker pool", zap.Int("size", p.size))

	for i := 0; i < p.size; i++ {
		w := &worker{
			id:      fmt.Sprintf("worker-%d", i),
			pool:    p,
			status:  WorkerStatusIdle,
			lastJob: time.Now(),
		}
		p.workers[i] = w

		p.wg.Add(1)
		go w.run(p.ctx)
	}

	if err := p.eventBus.Subscribe(p.ctx, ports.GameEventsTopic, p.dispatch); err != nil {
		p.cancel()
		p.wg.Wait()
		return fmt.Errorf("failed to subscribe to game events: %w", err)
	}

	p.health.Start()

	p.logger.Info("worker pool started", zap.Int("workers", p.size))
	return nil
}

// dispatch hands an event to the next free worker and waits for its
// result, which the bus uses to acknowledge the event. Both buses deliver
// events concurrently, so up to size events are settled at once.
func (p *Pool) dispatch(ctx context.Context, event ports.Event) error {
	j := job{event: event, done: make(chan error, 1)}

	select {
	case p.jobs <- j:
	case <-p.ctx.Done():
		return p.ctx.Err()
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-j.done:
		return err
	case <-p.ctx.Done():
		return p.ctx.Err()
	}
}

// Shutdown gracefully shuts down the worker pool
func (p *Pool) Shutdown(ctx context.Context) error {
	p.logger.Info("shutting down worker pool")

	p.health.Stop()

	if err := p.eventBus.Unsubscribe(ctx, ports.GameEventsTopic); err != nil {
		p.logger.Warn("failed to unsubscribe from game events", zap.Error(err))
	}

	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool shut down complete")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout")
	}
}

// GetStatus returns the status of all workers
func (p *Pool) GetStatus() map[string]WorkerStatus {
	status := make(map[string]WorkerStatus)
	for _, w := range p.workers {
		if w == nil {
			continue
		}
		w.mu.RLock()
		status[w.id] = w.status
		w.mu.RUnlock()
	}
	return status
}

// Health returns the pool's health monitor
func (p *Pool) Health() *HealthMonitor {
	return p.health
}

// run is the main worker loop
func (w *worker) run(ctx context.Context) {
	defer w.pool.wg.Done()

	w.pool.logger.Debug("worker started", zap.String("worker_id", w.id))

	for {
		select {
		case <-ctx.Done():
			w.setStatus(WorkerStatusStopped)
			w.pool.logger.Debug("worker stopped", zap.String("worker_id", w.id))
			return
		case j := <-w.pool.jobs:
			j.done <- w.handle(ctx, j.event)
		}
	}
}

func (w *worker) setStatus(status WorkerStatus) {
	w.mu.Lock()
	w.status = status
	if status == WorkerStatusBusy {
		w.lastJob = time.Now()
	}
	w.mu.Unlock()
}

// handle settles a game.finished event. Other event types are ignored.
// Malformed events are dropped; a failed settlement is returned so the bus
// can redeliver it.
func (w *worker) handle(ctx context.Context, event ports.Event) error {
	if event.Type != ports.EventTypeGameFinished {
		return nil
	}

	w.setStatus(WorkerStatusBusy)
	defer w.setStatus(WorkerStatusIdle)

	if draw, _ := event.Data["draw"].(bool); draw {
		w.pool.metrics.RecordSettlement(SettlementDraw)
		w.pool.logger.Info("draw not recorded",
			zap.String("worker_id", w.id),
			zap.String("room_id", event.RoomID))
		return nil
	}

	results, err := decodeResults(event.Data["results"])
	if err != nil {
		w.pool.metrics.RecordSettlement(SettlementInvalid)
		w.pool.logger.Error("invalid results in event",
			zap.String("worker_id", w.id),
			zap.String("event_id", event.ID),
			zap.String("room_id", event.RoomID),
			zap.Error(err))
		return nil
	}

	settlementID := event.ID
	if settlementID == "" {
		settlementID = event.RoomID
	}
	if settlementID == "" {
		w.pool.metrics.RecordSettlement(SettlementInvalid)
		w.pool.logger.Error("finished game without an id", zap.String("worker_id", w.id))
		return nil
	}

	startTime := time.Now()
	settleCtx, cancel := context.WithTimeout(ctx, settleTimeout)
	defer cancel()

	if err := w.pool.settler.Apply(settleCtx, settlementID, results); err != nil {
		w.pool.metrics.RecordSettlement(SettlementFailed)
		w.pool.logger.Error("failed to settle game",
			zap.String("worker_id", w.id),
			zap.String("room_id", event.RoomID),
			zap.Error(err))
		return fmt.Errorf("failed to settle room %s: %w", event.RoomID, err)
	}

	w.pool.metrics.RecordSettlement(SettlementApplied)
	w.pool.logger.Info("game settled",
		zap.String("worker_id", w.id),
		zap.String("room_id", event.RoomID),
		zap.Int("players", len(results)),
		zap.Duration("duration", time.Since(startTime)))
	return nil
}

// decodeResults accepts results both as published in process and as
// decoded from JSON by a remote bus.
func decodeResults(raw interface{}) ([]user.PlayerResult, error) {
	if raw == nil {
		return nil, fmt.Errorf("missing results")
	}
	if results, ok := raw.([]user.PlayerResult); ok {
		return results, nil
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal results: %w", err)
	}
	var results []user.PlayerResult
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("failed to unmarshal results: %w", err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("empty results")
	}
	for _, r := range results {
		if r.Nickname == "" || r.Rank < 1 {
			return nil, fmt.Errorf("malformed result %+v", r)
		}
	}
	return results, nil
}

package ingest

import (
	"context"
	"encoding/json"
	"sync"

	"transrelay/pkg/logger"
	"transrelay/pkg/metrics"
	"transrelay/pkg/telegram"
)

// Handler processes one update.
type Handler func(ctx context.Context, u telegram.Update)

// DispatcherConfig tunes a Dispatcher.
type DispatcherConfig struct {
	// Workers bounds how many updates are handled at once across chats.
	Workers int
	// LaneCapacity bounds the backlog of a single chat.
	LaneCapacity int
	// ChatOf keys updates into lanes; updates keyed 0 share one lane.
	ChatOf func(telegram.Update) int64
}

type lane struct {
	pending []telegram.Update
	running bool
}

// Dispatcher drains a Queue into per-chat lanes. Updates of one chat are
// handled one at a time in arrival order; different chats run in parallel.
type Dispatcher struct {
	q      *Queue
	handle Handler
	cfg    DispatcherConfig
	sem    chan struct{}

	mu    sync.Mutex
	lanes map[int64]*lane
	wg    sync.WaitGroup
}

func NewDispatcher(q *Queue, handle Handler, cfg DispatcherConfig) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	if cfg.LaneCapacity <= 0 {
		cfg.LaneCapacity = 64
	}
	if cfg.ChatOf == nil {
		cfg.ChatOf = func(telegram.Update) int64 { return 0 }
	}
	return &Dispatcher{
		q:      q,
		handle: handle,
		cfg:    cfg,
		sem:    make(chan struct{}, cfg.Workers),
		lanes:  make(map[int64]*lane),
	}
}

// Run reads the queue until ctx is done or the queue is closed, then waits
// for in-flight lanes to finish.
func (d *Dispatcher) Run(ctx context.Context) {
	defer d.wg.Wait()
	for {
		select {
		case it, ok := <-d.q.Out():
			if !ok {
				return
			}
			u, ok := decode(it.Op)
			it.Done()
			if ok {
				d.route(ctx, u)
			}
		case <-ctx.Done():
			return
		}
	}
}

func decode(op *Op) (telegram.Update, bool) {
	if op.Update != nil {
		return *op.Update, true
	}
	var u telegram.Update
	if err := json.Unmarshal(op.Payload, &u); err != nil {
		logger.Warn("update_decode_failed", "source", op.Source, "seq", op.EnqSeq, "error", err)
		metrics.Updates.WithLabelValues("malformed").Inc()
		return u, false
	}
	return u, true
}

func (d *Dispatcher) route(ctx context.Context, u telegram.Update) {
	chatID := d.cfg.ChatOf(u)
	d.mu.Lock()
	defer d.mu.Unlock()
	l := d.lanes[chatID]
	if l == nil {
		l = &lane{}
		d.lanes[chatID] = l
	}
	if len(l.pending) >= d.cfg.LaneCapacity {
		metrics.QueueDropped.Inc()
		logger.Warn("lane_full_dropped", "chat", chatID, "update", u.UpdateID)
		return
	}
	l.pending = append(l.pending, u)
	if !l.running {
		l.running = true
		d.wg.Add(1)
		go d.drain(ctx, chatID, l)
	}
}

func (d *Dispatcher) drain(ctx context.Context, chatID int64, l *lane) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		if len(l.pending) == 0 || ctx.Err() != nil {
			l.running = false
			delete(d.lanes, chatID)
			d.mu.Unlock()
			return
		}
		u := l.pending[0]
		l.pending = l.pending[1:]
		d.mu.Unlock()

		d.sem <- struct{}{}
		d.handle(ctx, u)
		<-d.sem
	}
}

// Lanes is the number of chats with a backlog or an update in flight.
func (d *Dispatcher) Lanes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.lanes)
}

package ingest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/valyala/bytebufferpool"

	"transrelay/pkg/telegram"
)

// Source tells where an update came from.
type Source string

const (
	SourceWebhook Source = "webhook"
	SourcePoll    Source = "poll"
)

// Op is one inbound update waiting for dispatch. Webhook deliveries carry
// the raw body in Payload; polled updates arrive decoded in Update.
type Op struct {
	Source  Source
	Payload []byte
	Update  *telegram.Update
	// TS is the receive time in nanoseconds.
	TS int64
	// EnqSeq is a monotonic sequence assigned on enqueue.
	EnqSeq uint64
}

var (
	// ErrQueueFull is returned by TryEnqueue when the queue is at capacity.
	ErrQueueFull = errors.New("ingest queue full")
	// ErrQueueClosed is returned by every enqueue after Close.
	ErrQueueClosed = errors.New("ingest queue closed")
)

// Item wraps an Op and owns a pooled ByteBuffer if one was used. Consumers
// MUST call Done() exactly once after processing the item to return
// pooled resources.
type Item struct {
	Op *Op

	buf  *bytebufferpool.ByteBuffer
	once sync.Once
}

// Done releases internal pooled resources (buffer + op) back to the pool.
func (it *Item) Done() {
	it.once.Do(func() {
		if it.buf != nil {
			// avoid retaining huge buffers in the pool
			if cap(it.buf.B) <= maxPooledBuffer {
				bytebufferpool.Put(it.buf)
			}
			it.buf = nil
		}
		if it.Op != nil {
			it.Op.Payload = nil
			it.Op.Update = nil
			opPool.Put(it.Op)
			it.Op = nil
		}
	})
}

// Queue is a bounded in-memory queue between the update sources and the
// dispatcher. It is safe for concurrent producers.
type Queue struct {
	ch       chan *Item
	capacity int
	dropped  uint64
	seq      uint64

	// mu guards closed against sends racing Close.
	mu     sync.RWMutex
	closed bool
}

var opPool = sync.Pool{New: func() any { return &Op{} }}

// maxPooledBuffer controls the largest buffer size that will be returned
// to the pooled ByteBuffer.
var maxPooledBuffer = 256 * 1024

// NewQueue creates a new bounded Queue. Non-positive capacity means 1024.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Queue{ch: make(chan *Item, capacity), capacity: capacity}
}

// Out returns the receive side of the queue.
func (q *Queue) Out() <-chan *Item { return q.ch }

func (q *Queue) wrap(op *Op) *Item {
	newOp := opPool.Get().(*Op)
	*newOp = *op
	if newOp.TS == 0 {
		newOp.TS = time.Now().UnixNano()
	}
	newOp.EnqSeq = atomic.AddUint64(&q.seq, 1)

	var bb *bytebufferpool.ByteBuffer
	if len(op.Payload) > 0 {
		bb = bytebufferpool.Get()
		bb.B = append(bb.B[:0], op.Payload...)
		newOp.Payload = bb.B[:len(op.Payload)]
	}
	return &Item{Op: newOp, buf: bb}
}

// TryEnqueue copies op (and its payload) into the queue without blocking.
func (q *Queue) TryEnqueue(op *Op) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	it := q.wrap(op)
	select {
	case q.ch <- it:
		return nil
	default:
		it.Done()
		atomic.AddUint64(&q.dropped, 1)
		return ErrQueueFull
	}
}

// TryEnqueueBytes enqueues a raw webhook body.
func (q *Queue) TryEnqueueBytes(src Source, payload []byte) error {
	return q.TryEnqueue(&Op{Source: src, Payload: payload})
}

// Enqueue blocks until op fits or ctx is done.
func (q *Queue) Enqueue(ctx context.Context, op *Op) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	it := q.wrap(op)
	select {
	case q.ch <- it:
		return nil
	case <-ctx.Done():
		it.Done()
		atomic.AddUint64(&q.dropped, 1)
		return ctx.Err()
	}
}

// Close stops intake. Items already queued stay readable from Out so a
// running Dispatcher can finish them. Close waits for blocked Enqueue calls
// to finish, so it needs a consumer or cancelled producers. Repeated calls
// are no-ops.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
}

// CloseAndDrain closes the queue and releases the items nobody consumed.
func (q *Queue) CloseAndDrain() {
	q.Close()
	for it := range q.ch {
		it.Done()
	}
}

// Len returns the current number of items in the queue.
func (q *Queue) Len() int { return len(q.ch) }

// Cap returns the configured capacity of the queue.
func (q *Queue) Cap() int { return q.capacity }

// Dropped returns the number of operations that were dropped due to a full
// queue or context cancellations during enqueue.
func (q *Queue) Dropped() uint64 { return atomic.LoadUint64(&q.dropped) }

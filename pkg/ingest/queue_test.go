package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"transrelay/pkg/telegram"
)

func TestTryEnqueueFull(t *testing.T) {
	q := NewQueue(2)
	for i := 0; i < 2; i++ {
		if err := q.TryEnqueueBytes(SourceWebhook, []byte(`{"update_id":1}`)); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	if err := q.TryEnqueueBytes(SourceWebhook, []byte(`{}`)); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	if q.Len() != 2 || q.Cap() != 2 || q.Dropped() != 1 {
		t.Fatalf("len=%d cap=%d dropped=%d", q.Len(), q.Cap(), q.Dropped())
	}
}

func TestPayloadIsCopied(t *testing.T) {
	q := NewQueue(1)
	body := []byte(`{"update_id":5}`)
	if err := q.TryEnqueueBytes(SourceWebhook, body); err != nil {
		t.Fatal(err)
	}
	body[2] = 'X'
	it := <-q.Out()
	defer it.Done()
	if string(it.Op.Payload) != `{"update_id":5}` {
		t.Fatalf("payload aliased caller buffer: %s", it.Op.Payload)
	}
	if it.Op.EnqSeq != 1 || it.Op.TS == 0 || it.Op.Source != SourceWebhook {
		t.Fatalf("unexpected op metadata %+v", it.Op)
	}
}

func TestEnqueueHonorsContext(t *testing.T) {
	q := NewQueue(1)
	_ = q.Enqueue(context.Background(), &Op{Source: SourcePoll, Update: &telegram.Update{UpdateID: 1}})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := q.Enqueue(ctx, &Op{Source: SourcePoll, Update: &telegram.Update{UpdateID: 2}}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}
}

func TestCloseAndDrain(t *testing.T) {
	q := NewQueue(4)
	_ = q.TryEnqueueBytes(SourceWebhook, []byte("a"))
	_ = q.TryEnqueueBytes(SourceWebhook, []byte("b"))
	q.CloseAndDrain()
	if q.Len() != 0 {
		t.Fatalf("queue not drained")
	}
}

func TestEnqueueAfterClose(t *testing.T) {
	q := NewQueue(2)
	if err := q.TryEnqueueBytes(SourceWebhook, []byte(`{"update_id":1}`)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	q.Close()
	q.Close()
	if err := q.TryEnqueueBytes(SourceWebhook, []byte("x")); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("expected ErrQueueClosed, got %v", err)
	}
	if err := q.Enqueue(context.Background(), &Op{Source: SourcePoll}); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("expected ErrQueueClosed, got %v", err)
	}
	it, ok := <-q.Out()
	if !ok || string(it.Op.Payload) != `{"update_id":1}` {
		t.Fatalf("queued item should survive Close")
	}
	it.Done()
	if _, ok := <-q.Out(); ok {
		t.Fatalf("channel should be closed after the backlog")
	}
}

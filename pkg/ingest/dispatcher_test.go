package ingest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"transrelay/pkg/telegram"
)

func chatOf(u telegram.Update) int64 {
	if u.Message != nil {
		return u.Message.Chat.ID
	}
	return 0
}

func msgUpdate(id, chat int64) []byte {
	return []byte(fmt.Sprintf(`{"update_id":%d,"message":{"message_id":%d,"chat":{"id":%d},"text":"t"}}`, id, id, chat))
}

func TestDispatcherKeepsChatOrder(t *testing.T) {
	q := NewQueue(256)
	var mu sync.Mutex
	seen := map[int64][]int64{}
	var done sync.WaitGroup
	done.Add(100)

	d := NewDispatcher(q, func(ctx context.Context, u telegram.Update) {
		defer done.Done()
		mu.Lock()
		c := u.Message.Chat.ID
		seen[c] = append(seen[c], u.UpdateID)
		mu.Unlock()
	}, DispatcherConfig{Workers: 4, ChatOf: chatOf})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	for i := int64(1); i <= 100; i++ {
		if err := q.TryEnqueueBytes(SourceWebhook, msgUpdate(i, i%3)); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	done.Wait()

	mu.Lock()
	defer mu.Unlock()
	for chat, ids := range seen {
		for i := 1; i < len(ids); i++ {
			if ids[i] <= ids[i-1] {
				t.Fatalf("chat %d out of order: %v", chat, ids)
			}
		}
	}
}

func TestDispatcherBoundsWorkers(t *testing.T) {
	q := NewQueue(64)
	var active, peak int32
	var done sync.WaitGroup
	done.Add(10)
	d := NewDispatcher(q, func(ctx context.Context, u telegram.Update) {
		defer done.Done()
		n := atomic.AddInt32(&active, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&active, -1)
	}, DispatcherConfig{Workers: 2, ChatOf: chatOf})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)
	for i := int64(1); i <= 10; i++ {
		_ = q.TryEnqueueBytes(SourceWebhook, msgUpdate(i, i))
	}
	done.Wait()
	if p := atomic.LoadInt32(&peak); p > 2 {
		t.Fatalf("peak concurrency %d exceeds 2", p)
	}
}

func TestDispatcherSkipsMalformed(t *testing.T) {
	q := NewQueue(8)
	got := make(chan int64, 4)
	d := NewDispatcher(q, func(ctx context.Context, u telegram.Update) {
		got <- u.UpdateID
	}, DispatcherConfig{ChatOf: chatOf})

	_ = q.TryEnqueueBytes(SourceWebhook, []byte("{nope"))
	_ = q.Enqueue(context.Background(), &Op{Source: SourcePoll, Update: &telegram.Update{UpdateID: 42}})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	select {
	case id := <-got:
		if id != 42 {
			t.Fatalf("unexpected update %d", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("update not dispatched")
	}
}

func TestDispatcherStopsOnClose(t *testing.T) {
	q := NewQueue(1)
	d := NewDispatcher(q, func(ctx context.Context, u telegram.Update) {}, DispatcherConfig{})
	finished := make(chan struct{})
	go func() {
		d.Run(context.Background())
		close(finished)
	}()
	q.CloseAndDrain()
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after close")
	}
	if d.Lanes() != 0 {
		t.Fatalf("lanes left behind")
	}
}

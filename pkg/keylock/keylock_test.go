package keylock

import (
	"sync"
	"testing"
	"time"
)

func TestSameKeySerialized(t *testing.T) {
	var m Map[string, int]
	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g := m.Lock("k")
			defer g.Unlock()
			v := counter
			time.Sleep(time.Microsecond)
			counter = v + 1
		}()
	}
	wg.Wait()
	if counter != 50 {
		t.Fatalf("counter = %d, want 50", counter)
	}
	if m.Len() != 0 {
		t.Fatalf("entries leaked: %d", m.Len())
	}
}

func TestDifferentKeysDoNotBlock(t *testing.T) {
	var m Map[int, struct{}]
	a := m.Lock(1)
	done := make(chan struct{})
	go func() {
		b := m.Lock(2)
		b.Unlock()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("lock on key 2 blocked behind key 1")
	}
	a.Unlock()
}

func TestValueSharedWhileContended(t *testing.T) {
	var m Map[string, string]
	g := m.Lock("k")
	if _, ok := g.Value(); ok {
		t.Fatalf("fresh entry should have no value")
	}
	got := make(chan string, 1)
	go func() {
		g2 := m.Lock("k")
		v, _ := g2.Value()
		g2.Unlock()
		got <- v
	}()
	// wait until the second caller is queued on the entry
	for m.Holders("k") != 2 {
		time.Sleep(time.Millisecond)
	}
	g.SetValue("latest")
	g.Unlock()
	if v := <-got; v != "latest" {
		t.Fatalf("waiter saw %q, want latest", v)
	}

	g = m.Lock("k")
	if _, ok := g.Value(); ok {
		t.Fatalf("value should not outlive the contention window")
	}
	g.Unlock()
}

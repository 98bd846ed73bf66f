package sweeper

import (
	"context"
	"testing"
	"time"

	"transrelay/pkg/collect"
)

type fakeExpirer struct {
	ttl   time.Duration
	calls int
}

func (f *fakeExpirer) Expire(ctx context.Context, ttl time.Duration) []collect.Expired {
	f.calls++
	f.ttl = ttl
	return []collect.Expired{{ChatID: 1, Items: 2}, {ChatID: 2}}
}

func TestRunOnce(t *testing.T) {
	f := &fakeExpirer{}
	if n := RunOnce(context.Background(), time.Hour, f); n != 2 {
		t.Fatalf("expected 2 expired, got %d", n)
	}
	if f.calls != 1 || f.ttl != time.Hour {
		t.Fatalf("unexpected call %+v", f)
	}
}

func TestStartValidation(t *testing.T) {
	f := &fakeExpirer{}
	if _, err := Start(context.Background(), Config{Enabled: true, Cron: "not a cron", TTL: time.Hour}, f); err == nil {
		t.Fatalf("expected invalid cron error")
	}
	if _, err := Start(context.Background(), Config{Enabled: true, Cron: DefaultCron}, f); err == nil {
		t.Fatalf("expected ttl error")
	}
	stop, err := Start(context.Background(), Config{Enabled: false}, f)
	if err != nil || stop == nil {
		t.Fatalf("disabled start: %v", err)
	}
	stop()

	stop, err = Start(context.Background(), Config{Enabled: true, TTL: time.Hour}, f)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	stop()
}

func TestNextWait(t *testing.T) {
	now := time.Date(2026, 1, 1, 10, 3, 0, 0, time.UTC)
	wait, err := nextWait(DefaultCron, now)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if wait != 7*time.Minute {
		t.Fatalf("unexpected wait %s", wait)
	}
}

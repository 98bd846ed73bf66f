package app

import (
	"context"
	"errors"
	"time"

	"transrelay/pkg/ingest"
	"transrelay/pkg/logger"
	"transrelay/pkg/telegram"
)

const (
	pollBackoffMin = time.Second
	pollBackoffMax = 30 * time.Second
)

type updateSource interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]telegram.Update, error)
}

// poller feeds long-polled updates into the queue. The offset only moves
// past an update once it is queued, so a stop never skips one.
type poller struct {
	src     updateSource
	q       *ingest.Queue
	timeout time.Duration
	offset  int64
}

func (a *App) startPolling(ctx context.Context) <-chan struct{} {
	p := &poller{src: a.tg, q: a.queue, timeout: a.eff.Config.Telegram.PollTimeout.Duration()}
	done := make(chan struct{})
	go func() {
		defer close(done)
		logger.Info("poll_started", "timeout", p.timeout)
		p.run(ctx)
		logger.Info("poll_stopped", "offset", p.offset)
	}()
	return done
}

func (p *poller) run(ctx context.Context) {
	backoff := pollBackoffMin
	for ctx.Err() == nil {
		updates, err := p.src.GetUpdates(ctx, p.offset, p.timeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			wait := backoff
			var re *telegram.RequestError
			if errors.As(err, &re) && re.RetryAfter > 0 {
				wait = time.Duration(re.RetryAfter) * time.Second
			}
			logger.Warn("poll_failed", "error", err, "retry_in", wait)
			if !sleepCtx(ctx, wait) {
				return
			}
			backoff = min(backoff*2, pollBackoffMax)
			continue
		}
		backoff = pollBackoffMin
		for i := range updates {
			u := updates[i]
			if err := p.q.Enqueue(ctx, &ingest.Op{Source: ingest.SourcePoll, Update: &u}); err != nil {
				return
			}
			p.offset = u.UpdateID + 1
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

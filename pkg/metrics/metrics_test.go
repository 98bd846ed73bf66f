package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersMove(t *testing.T) {
	before := testutil.ToFloat64(QueueDropped)
	QueueDropped.Inc()
	if got := testutil.ToFloat64(QueueDropped); got != before+1 {
		t.Fatalf("queue dropped = %v, want %v", got, before+1)
	}

	Expansions.WithLabelValues("ok").Inc()
	if got := testutil.ToFloat64(Expansions.WithLabelValues("ok")); got < 1 {
		t.Fatalf("expand ok = %v", got)
	}
}

func TestPebbleGaugesZeroWhenClosed(t *testing.T) {
	for _, g := range []prometheus.Collector{pebbleDisk, pebbleL0, pebbleWAL, pebbleDebt} {
		if got := testutil.ToFloat64(g); got != 0 {
			t.Fatalf("gauge = %v before the store is opened", got)
		}
	}
}

func TestRegisteredWithDefaultRegistry(t *testing.T) {
	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, mf := range mfs {
		if strings.HasPrefix(mf.GetName(), "transrelay_pebble_") {
			found = true
		}
	}
	if !found {
		t.Fatal("pebble gauges missing from the default registry")
	}
}

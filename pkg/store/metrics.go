package store

// PebbleMetrics is a compact view of the engine counters exported to prometheus.
type PebbleMetrics struct {
	DiskBytes         uint64
	WALBytes          uint64
	L0Files           int64
	CompactionBacklog uint64
}

// GetPebbleMetrics returns the current engine counters, zero before Open.
func GetPebbleMetrics() PebbleMetrics {
	var m PebbleMetrics
	if db == nil {
		return m
	}
	pm := db.Metrics()
	if pm == nil {
		return m
	}
	m.DiskBytes = pm.DiskSpaceUsage()
	m.WALBytes = pm.WAL.Size
	m.L0Files = pm.Levels[0].NumFiles
	m.CompactionBacklog = pm.Compact.EstimatedDebt
	return m
}


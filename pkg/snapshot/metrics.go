package snapshot

import "time"

// Store operations reported to Metrics.
const (
	OpSave   = "save"
	OpLoad   = "load"
	OpDelete = "delete"
	OpList   = "list"
)

// Metrics records snapshot store activity. A nil Metrics disables recording.
type Metrics interface {
	// ObserveOperation records one store operation and its outcome.
	ObserveOperation(op string, err error, duration time.Duration)

	// SetStoreSize reports the on-disk size of the LSM tree and value log.
	SetStoreSize(lsm, vlog int64)
}

// SetMetrics attaches m to the store. Call before the store is shared.
func (s *Store) SetMetrics(m Metrics) {
	s.metrics = m
	s.reportSize()
}

func (s *Store) observe(op string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveOperation(op, err, time.Since(start))
}

func (s *Store) reportSize() {
	if s.metrics == nil {
		return
	}
	lsm, vlog := s.db.Size()
	s.metrics.SetStoreSize(lsm, vlog)
}

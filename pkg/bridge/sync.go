package bridge

// Transmit period bounds in microseconds.
const (
	DefaultPeriod = 4000
	MinPeriod     = 1000
	MaxPeriod     = 50000

	// MinRefresh is the shortest refresh period accepted from a module.
	MinRefresh = 500
	// SyncTimeout is how long, in microseconds, a correction stays valid.
	SyncTimeout = 2000000
)

// Synchronizer tracks the module refresh period and phase offset reported
// by timing correction frames.
type Synchronizer struct {
	// OnUpdate is called after each update.
	OnUpdate func(refresh, offset int32)

	refresh    int32
	offset     int32
	lastUpdate uint64
	valid      bool
	updated    bool
}

// TimingStatus is a snapshot of Synchronizer.
type TimingStatus struct {
	Valid   bool  `json:"valid"`
	Refresh int32 `json:"refreshUs"`
	Offset  int32 `json:"offsetUs"`
	AgeMs   int64 `json:"ageMs"`
}

// Update overwrites the timing state.
func (s *Synchronizer) Update(now uint64, refresh, offset int32) {
	s.refresh, s.offset = refresh, offset
	s.lastUpdate, s.valid, s.updated = now, true, true
	if fn := s.OnUpdate; fn != nil {
		fn(refresh, offset)
	}
}

// AdjustedPeriod returns the period for the next transmit cycle. The part
// of the offset applied to this period is consumed.
func (s *Synchronizer) AdjustedPeriod() int32 {
	if !s.valid {
		return DefaultPeriod
	}
	adjusted := s.refresh + s.offset
	if adjusted < MinPeriod {
		adjusted = MinPeriod
	} else if adjusted > MaxPeriod {
		adjusted = MaxPeriod
	}
	s.offset -= adjusted - s.refresh
	return adjusted
}

// Expire drops the correction when no update arrived within SyncTimeout.
// It reports whether sync was lost by this call.
func (s *Synchronizer) Expire(now uint64) bool {
	if s.valid && now-s.lastUpdate > SyncTimeout {
		s.valid = false
		return true
	}
	return false
}

// IsValid indicates a correction has been received and not expired.
func (s *Synchronizer) IsValid() bool {
	return s.valid
}

// Refresh returns the last reported refresh period.
func (s *Synchronizer) Refresh() int32 {
	return s.refresh
}

// Offset returns the remaining phase offset.
func (s *Synchronizer) Offset() int32 {
	return s.offset
}

// Age returns milliseconds since the last update, -1 if never updated.
func (s *Synchronizer) Age(now uint64) int64 {
	if !s.updated {
		return -1
	}
	return int64(now-s.lastUpdate) / 1000
}

// Status takes a snapshot.
func (s *Synchronizer) Status(now uint64) TimingStatus {
	return TimingStatus{
		Valid:   s.valid,
		Refresh: s.refresh,
		Offset:  s.offset,
		AgeMs:   s.Age(now),
	}
}

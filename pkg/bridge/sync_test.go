package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSynchronizerDefault(t *testing.T) {
	var s Synchronizer
	assert.Equal(t, int32(DefaultPeriod), s.AdjustedPeriod())
	assert.False(t, s.IsValid())
	assert.Equal(t, int64(-1), s.Age(1000))
}

func TestSynchronizerNoOffset(t *testing.T) {
	var s Synchronizer
	s.Update(0, 2000, 0)
	assert.Equal(t, int32(2000), s.AdjustedPeriod())
	assert.Equal(t, int32(2000), s.AdjustedPeriod())
}

func TestSynchronizerConsumesOffset(t *testing.T) {
	testCases := []struct {
		name    string
		refresh int32
		offset  int32
		periods []int32
	}{
		{
			name:    "applied at once",
			refresh: 4000, offset: 300,
			periods: []int32{4300, 4000, 4000},
		},
		{
			name:    "negative offset",
			refresh: 4000, offset: -500,
			periods: []int32{3500, 4000},
		},
		{
			name:    "clamped at min and spread",
			refresh: 1000, offset: -1500,
			periods: []int32{1000, 1000, 1000},
		},
		{
			name:    "clamped at max and spread",
			refresh: 40000, offset: 25000,
			periods: []int32{50000, 50000, 45000, 40000},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var s Synchronizer
			s.Update(0, tc.refresh, tc.offset)
			for n, want := range tc.periods {
				assert.Equal(t, want, s.AdjustedPeriod(), "cycle %d", n)
			}
		})
	}
}

func TestSynchronizerUpdateOverwrites(t *testing.T) {
	var calls int
	s := Synchronizer{OnUpdate: func(refresh, offset int32) { calls++ }}
	s.Update(1000, 4000, 100)
	s.Update(5000, 2000, -50)
	assert.Equal(t, 2, calls)
	assert.Equal(t, int32(2000), s.Refresh())
	assert.Equal(t, int32(-50), s.Offset())
	assert.Equal(t, int64(3), s.Age(8000))
	assert.Equal(t, TimingStatus{Valid: true, Refresh: 2000, Offset: -50, AgeMs: 3}, s.Status(8000))
}

func TestSynchronizerExpire(t *testing.T) {
	var s Synchronizer
	s.Update(1000, 2000, 0)
	assert.False(t, s.Expire(1000+SyncTimeout))
	assert.True(t, s.Expire(1000+SyncTimeout+1))
	assert.False(t, s.IsValid())
	assert.Equal(t, int32(DefaultPeriod), s.AdjustedPeriod())
	assert.False(t, s.Expire(1000+2*SyncTimeout))
}

package async

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSweepProgress_RecordSweep_Accumulates(t *testing.T) {
	// Given: a fresh progress tracker
	p := NewSweepProgress()

	// When: two sweeps are recorded
	p.RecordSweep(4)
	p.RecordSweep(6)

	// Then: cumulative totals and last-sweep fields both update
	snap := p.Snapshot()
	assert.Equal(t, 2, snap.Sweeps)
	assert.Equal(t, 6, snap.LastMigrated)
	assert.Equal(t, 10, snap.TotalMigrated)
	assert.False(t, snap.LastSweepAt.IsZero())
}

func TestSweepProgress_RecordError_DoesNotCountAsSweep(t *testing.T) {
	// Given: a tracker with one successful sweep
	p := NewSweepProgress()
	p.RecordSweep(1)

	// When: an error is recorded
	p.RecordError("storage unavailable")

	// Then: the sweep count is unchanged but the error surfaces
	snap := p.Snapshot()
	assert.Equal(t, 1, snap.Sweeps)
	assert.Equal(t, "storage unavailable", snap.LastError)
}

func TestSweepProgress_RecordSweep_ClearsPriorError(t *testing.T) {
	// Given: a tracker that just recorded an error
	p := NewSweepProgress()
	p.RecordError("transient failure")

	// When: a successful sweep follows
	p.RecordSweep(2)

	// Then: the error is cleared
	assert.Empty(t, p.Snapshot().LastError)
}

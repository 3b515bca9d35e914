package async

import (
	"sync"
	"time"
)

// SweepProgress provides thread-safe tracking of a scheduler's
// cumulative sweep outcomes.
type SweepProgress struct {
	mu sync.RWMutex

	sweeps        int
	lastSweepAt   time.Time
	lastMigrated  int
	totalMigrated int
	lastErr       string
}

// NewSweepProgress creates a tracker with no recorded sweeps yet.
func NewSweepProgress() *SweepProgress {
	return &SweepProgress{}
}

// RecordSweep logs a completed sweep that migrated the given count.
func (p *SweepProgress) RecordSweep(migrated int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sweeps++
	p.lastSweepAt = time.Now()
	p.lastMigrated = migrated
	p.totalMigrated += migrated
	p.lastErr = ""
}

// RecordError notes that the most recent sweep attempt failed. It does
// not increment the sweep count; a failed sweep is retried next tick.
func (p *SweepProgress) RecordError(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastErr = message
}

// SweepSnapshot is an immutable copy of SweepProgress for reporting.
type SweepSnapshot struct {
	Sweeps        int       `json:"sweeps"`
	LastSweepAt   time.Time `json:"last_sweep_at"`
	LastMigrated  int       `json:"last_migrated"`
	TotalMigrated int       `json:"total_migrated"`
	LastError     string    `json:"last_error,omitempty"`
}

// Snapshot returns the current cumulative state.
func (p *SweepProgress) Snapshot() SweepSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return SweepSnapshot{
		Sweeps:        p.sweeps,
		LastSweepAt:   p.lastSweepAt,
		LastMigrated:  p.lastMigrated,
		TotalMigrated: p.totalMigrated,
		LastError:     p.lastErr,
	}
}

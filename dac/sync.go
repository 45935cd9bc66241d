package dac

import (
	"sync"
	"time"
)

// Heartbeat and synchronization timing of the DAC.
const (
	HeartbeatCycle     = 100 * time.Millisecond
	InitialSyncTimeout = 2 * HeartbeatCycle
	SyncTimeout        = 150 * time.Millisecond
	MissedHeartbeats   = 3
	SyncLostThreshold  = 5 * time.Second
	SyncRetryInterval  = 1 * time.Second
)

// SyncState is the synchronization state with the DAC.
type SyncState int

// Synchronization states
const (
	Unsynced SyncState = iota // no (recent) heartbeat
	Synced                    // heartbeats arrive in time
	Degraded                  // last heartbeat is late
	Lost                      // no heartbeat within SyncLostThreshold
)

func (s SyncState) String() string {
	switch s {
	case Unsynced:
		return "unsynced"
	case Synced:
		return "synced"
	case Degraded:
		return "degraded"
	case Lost:
		return "lost"
	}
	return "unknown"
}

// SyncMonitor derives the synchronization state from the heartbeats
// received from the DAC.
type SyncMonitor struct {
	sync.Mutex
	started   time.Time
	last      time.Time
	lastRetry time.Time
}

// NewSyncMonitor returns a SyncMonitor which starts waiting for the first
// heartbeat at t.
func NewSyncMonitor(t time.Time) *SyncMonitor {
	return &SyncMonitor{started: t}
}

// Heartbeat records a heartbeat received at t.
func (m *SyncMonitor) Heartbeat(t time.Time) {
	m.Lock()
	defer m.Unlock()
	if t.After(m.last) {
		m.last = t
	}
}

// Check returns the synchronization state at t.
//
// Before the first heartbeat the DAC is unsynced, and considered lost once
// InitialSyncTimeout and SyncLostThreshold have passed. Afterwards the DAC
// is synced as long as the last heartbeat is at most SyncTimeout old,
// degraded until MissedHeartbeats cycles were missed, unsynced until
// SyncLostThreshold and lost after that.
func (m *SyncMonitor) Check(t time.Time) SyncState {
	m.Lock()
	defer m.Unlock()

	if m.last.IsZero() {
		if t.Sub(m.started) >= InitialSyncTimeout+SyncLostThreshold {
			return Lost
		}
		return Unsynced
	}

	elapsed := t.Sub(m.last)

	switch {
	case elapsed <= SyncTimeout:
		return Synced
	case elapsed < MissedHeartbeats*HeartbeatCycle:
		return Degraded
	case elapsed < SyncLostThreshold:
		return Unsynced
	}
	return Lost
}

// RetryDue reports if a new synchronization attempt should be made at t.
// Attempts are spaced by SyncRetryInterval.
func (m *SyncMonitor) RetryDue(t time.Time) bool {
	state := m.Check(t)
	if state == Synced || state == Degraded {
		return false
	}

	m.Lock()
	defer m.Unlock()

	if !m.lastRetry.IsZero() && t.Sub(m.lastRetry) < SyncRetryInterval {
		return false
	}
	m.lastRetry = t
	return true
}

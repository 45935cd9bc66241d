package broadcast

import (
	"time"
)

// ChannelState is a snapshot of a broadcast channel.
type ChannelState struct {
	State    string    `json:"state"`
	Playlist *Playlist `json:"playlist,omitempty"`
	Pending  []string  `json:"pending"`
}

// State is a snapshot of the Scheduler.
type State struct {
	Running          string       `json:"running"`
	Normal           ChannelState `json:"normal"`
	Interrupt        ChannelState `json:"interrupt"`
	InterruptPending bool         `json:"interrupt_pending"`
	LastPlayed       string       `json:"last_played,omitempty"`
	LastPlayedAt     time.Time    `json:"last_played_at,omitempty"`
}

// State returns a snapshot of the Scheduler. Running is the channel which
// currently owns the audio sink ("normal", "interrupt" or "idle").
func (s *Scheduler) State() State {

	st := State{
		Normal:           channelState(s.normal),
		Interrupt:        channelState(s.interrupt),
		InterruptPending: s.interruptPending.Load(),
	}

	switch {
	case st.Interrupt.State == StateActive:
		st.Running = string(Interrupt)
	case st.Normal.State == StateActive:
		st.Running = string(Normal)
	default:
		st.Running = StateIdle
	}

	s.Lock()
	st.LastPlayed = s.lastPlayed
	st.LastPlayedAt = s.playedAt
	s.Unlock()

	return st
}

// Playlist returns the current playlist of a channel or nil.
func (s *Scheduler) Playlist(ch ChannelName) *Playlist {
	return s.channel(ch).currentPlaylist()
}

func channelState(c *channel) ChannelState {
	return ChannelState{
		State:    c.state(),
		Playlist: c.currentPlaylist(),
		Pending:  c.pendingIDs(),
	}
}

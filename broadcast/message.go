// Package broadcast schedules the playback of emergency broadcast
// messages. The Scheduler owns two channels: the normal channel which
// cycles through the regular playlist, and the interrupt channel whose
// playlist always pre-empts the normal broadcast.
package broadcast

import (
	"time"
)

// ChannelName identifies one of the two broadcast channels.
type ChannelName string

// The broadcast channels.
const (
	Normal    ChannelName = "normal"
	Interrupt ChannelName = "interrupt"
)

// Message is a broadcast message with its audio and framing flags.
type Message struct {
	ID         string    `json:"id"`
	Recognized bool      `json:"recognized"`
	Expires    time.Time `json:"expires"`
	SoundFiles []string  `json:"sound_files"`
	AlertTone  bool      `json:"alert_tone"`
	SameTones  bool      `json:"same_tones"`
	Warning    bool      `json:"warning"`
	Watch      bool      `json:"watch"`
	SameHeader string    `json:"same_header,omitempty"`
	Padding    uint32    `json:"padding,omitempty"`
}

// Expired reports if the message has expired at t. A zero expiration
// instant never expires.
func (m Message) Expired(t time.Time) bool {
	return !m.Expires.IsZero() && !t.Before(m.Expires)
}

// Urgent reports if the message has to be forwarded to the interrupt
// channel.
func (m Message) Urgent() bool {
	return m.AlertTone || m.Warning || m.Watch
}

// Playlist is an ordered list of message ids.
type Playlist struct {
	ID         string   `json:"id"`
	MessageIDs []string `json:"message_ids"`
	Interrupt  bool     `json:"interrupt"`
}

func (p Playlist) copy() *Playlist {
	ids := make([]string, len(p.MessageIDs))
	copy(ids, p.MessageIDs)
	return &Playlist{
		ID:         p.ID,
		MessageIDs: ids,
		Interrupt:  p.Interrupt,
	}
}

func (p Playlist) contains(id string) bool {
	for _, mID := range p.MessageIDs {
		if mID == id {
			return true
		}
	}
	return false
}

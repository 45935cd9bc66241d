package broadcast

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/looplab/fsm"
)

// Channel states
const (
	StateIdle   = "idle"
	StateActive = "active"
	StatePaused = "paused"
)

// Channel events
const (
	eventStart  = "start"
	eventPause  = "pause"
	eventResume = "resume"
	eventStop   = "stop"
)

// channel holds the playlist and the pending messages of a broadcast
// channel. The playback state is tracked by a finite state machine.
type channel struct {
	name ChannelName
	fsm  *fsm.FSM

	sync.RWMutex
	playlist *Playlist
	pending  map[string]Message
	expired  map[string]time.Time // ids evicted due to expiration
}

func newChannel(name ChannelName) *channel {
	c := &channel{
		name:    name,
		pending: make(map[string]Message),
		expired: make(map[string]time.Time),
	}

	c.fsm = fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{Name: eventStart, Src: []string{StateIdle}, Dst: StateActive},
			{Name: eventPause, Src: []string{StateActive}, Dst: StatePaused},
			{Name: eventResume, Src: []string{StatePaused}, Dst: StateActive},
			{Name: eventStop, Src: []string{StateActive, StatePaused}, Dst: StateIdle},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				log.Printf("broadcast: %s channel %s -> %s\n", name, e.Src, e.Dst)
			},
		},
	)

	return c
}

// event triggers a state transition if it is permitted in the current
// state. It reports if the transition took place.
func (c *channel) event(ctx context.Context, event string) bool {
	if !c.fsm.Can(event) {
		return false
	}
	if err := c.fsm.Event(ctx, event); err != nil {
		log.Printf("broadcast: %s channel event %s: %v\n", c.name, event, err)
		return false
	}
	return true
}

func (c *channel) state() string {
	return c.fsm.Current()
}

// setPlaylist replaces the current playlist. Pending messages which were
// referenced by the old playlist but not by the new one are removed and
// returned.
func (c *channel) setPlaylist(p Playlist) []Message {
	c.Lock()
	defer c.Unlock()

	var evicted []Message

	if c.playlist != nil {
		for _, id := range c.playlist.MessageIDs {
			if p.contains(id) {
				continue
			}
			if msg, ok := c.pending[id]; ok {
				evicted = append(evicted, msg)
				delete(c.pending, id)
			}
		}
	}

	for id := range c.expired {
		if !p.contains(id) {
			delete(c.expired, id)
		}
	}

	c.playlist = p.copy()

	return evicted
}

// currentPlaylist returns a copy of the current playlist or nil.
func (c *channel) currentPlaylist() *Playlist {
	c.RLock()
	defer c.RUnlock()
	if c.playlist == nil {
		return nil
	}
	return c.playlist.copy()
}

// references reports if id is part of the current playlist.
func (c *channel) references(id string) bool {
	c.RLock()
	defer c.RUnlock()
	return c.playlist != nil && c.playlist.contains(id)
}

// add inserts or replaces a pending message.
func (c *channel) add(m Message) {
	c.Lock()
	defer c.Unlock()
	c.pending[m.ID] = m
	delete(c.expired, m.ID)
}

func (c *channel) get(id string) (Message, bool) {
	c.RLock()
	defer c.RUnlock()
	m, ok := c.pending[id]
	return m, ok
}

func (c *channel) remove(id string) (Message, bool) {
	c.Lock()
	defer c.Unlock()
	m, ok := c.pending[id]
	delete(c.pending, id)
	return m, ok
}

// lookup resolves a message id. Messages which have been evicted due to
// expiration are reported as expired, unknown ids as unavailable.
func (c *channel) lookup(id string) (Message, error) {
	c.RLock()
	defer c.RUnlock()

	if m, ok := c.pending[id]; ok {
		return m, nil
	}

	if exp, ok := c.expired[id]; ok {
		return Message{}, &MessageExpiredError{ID: id, Expired: exp}
	}

	return Message{}, &MessageUnavailableError{ID: id}
}

// sweep removes and returns all messages which have expired at now.
func (c *channel) sweep(now time.Time) []Message {
	c.Lock()
	defer c.Unlock()

	var evicted []Message

	for id, m := range c.pending {
		if m.Expired(now) {
			evicted = append(evicted, m)
			c.expired[id] = m.Expires
			delete(c.pending, id)
		}
	}

	return evicted
}

// pendingIDs returns the sorted ids of the pending messages.
func (c *channel) pendingIDs() []string {
	c.RLock()
	defer c.RUnlock()

	ids := make([]string, 0, len(c.pending))
	for id := range c.pending {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

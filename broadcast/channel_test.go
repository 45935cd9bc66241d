package broadcast

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestChannelStateMachine(t *testing.T) {
	ctx := context.Background()
	c := newChannel(Normal)

	assert.Equal(t, StateIdle, c.state())
	assert.False(t, c.event(ctx, eventPause))
	assert.False(t, c.event(ctx, eventResume))

	assert.True(t, c.event(ctx, eventStart))
	assert.Equal(t, StateActive, c.state())
	assert.False(t, c.event(ctx, eventStart))

	assert.True(t, c.event(ctx, eventPause))
	assert.Equal(t, StatePaused, c.state())

	assert.True(t, c.event(ctx, eventResume))
	assert.Equal(t, StateActive, c.state())

	assert.True(t, c.event(ctx, eventPause))
	assert.True(t, c.event(ctx, eventStop))
	assert.Equal(t, StateIdle, c.state())
}

func TestChannelPlaylistIsCopied(t *testing.T) {
	c := newChannel(Normal)
	ids := []string{"a", "b"}
	c.setPlaylist(Playlist{MessageIDs: ids})

	ids[0] = "z"
	p := c.currentPlaylist()
	assert.Equal(t, []string{"a", "b"}, p.MessageIDs)

	p.MessageIDs[1] = "y"
	assert.True(t, c.references("b"))
	assert.False(t, c.references("y"))
}

func TestChannelSweep(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c := newChannel(Interrupt)

	c.add(Message{ID: "never"})
	c.add(Message{ID: "past", Expires: now.Add(-time.Second)})
	c.add(Message{ID: "future", Expires: now.Add(time.Second)})

	evicted := c.sweep(now)
	assert.Len(t, evicted, 1)
	assert.Equal(t, "past", evicted[0].ID)
	assert.Equal(t, []string{"future", "never"}, c.pendingIDs())

	// a message re-sent after expiration is available again
	c.add(Message{ID: "past"})
	_, err := c.lookup("past")
	assert.NoError(t, err)
}

package broadcast

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dh1tw/edgeAudio/audio"
	"github.com/dh1tw/edgeAudio/tones"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSink records the played buffers. Playing a buffer listed in block
// waits until it is released.
type fakeSink struct {
	sync.Mutex
	played  []string
	err     error
	block   map[string]chan struct{}
	started chan string
}

func newFakeSink() *fakeSink {
	return &fakeSink{
		block:   make(map[string]chan struct{}),
		started: make(chan string, 100),
	}
}

func (f *fakeSink) Play(ctx context.Context, data []byte) error {
	f.Lock()
	wait := f.block[string(data)]
	delete(f.block, string(data))
	f.Unlock()

	select {
	case f.started <- string(data):
	default:
	}

	if wait != nil {
		<-wait
	}

	f.Lock()
	defer f.Unlock()
	if f.err != nil {
		return f.err
	}
	f.played = append(f.played, string(data))
	return nil
}

func (f *fakeSink) Close() error { return nil }

func (f *fakeSink) plays() []string {
	f.Lock()
	defer f.Unlock()
	res := make([]string, len(f.played))
	copy(res, f.played)
	return res
}

// passThrough returns the file content unchanged.
type passThrough struct{}

func (passThrough) Convert(ctx context.Context, data []byte, src, dst audio.Format) ([]byte, error) {
	return data, nil
}

// markerComposer frames messages with single letter markers.
type markerComposer struct{}

func (markerComposer) SameAndAlertTones(header string, includeAlert, includeSilence bool, padding uint32) (tones.Bundle, error) {
	b := tones.Bundle{Preamble: []byte("[" + header + "]")}
	if includeAlert {
		b.Alert = []byte("A")
	}
	if includeSilence {
		b.MessagePause = []byte("_")
	}
	return b, nil
}

func (markerComposer) AlertOnlyTones() tones.Bundle {
	return tones.Bundle{Alert: []byte("A"), MessagePause: []byte("_")}
}

func (markerComposer) EndOfMessageTones(padding uint32) ([]byte, error) {
	return []byte("E"), nil
}

type fixture struct {
	sink    *fakeSink
	sched   *Scheduler
	reg     *prometheus.Registry
	removed []string
	mu      sync.Mutex
	now     time.Time
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	f := &fixture{
		sink: newFakeSink(),
		reg:  prometheus.NewRegistry(),
		now:  time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	base := []Option{
		WithConverter(passThrough{}),
		WithComposer(markerComposer{}),
		MessagePause(5 * time.Millisecond),
		Registerer(f.reg),
		Clock(func() time.Time { return f.now }),
		// the sound file name is the audio
		FileReader(func(name string) ([]byte, error) {
			return []byte(name[:len(name)-3]), nil
		}),
		FileRemover(func(name string) error {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.removed = append(f.removed, name)
			return nil
		}),
	}

	s, err := New(f.sink, append(base, opts...)...)
	require.NoError(t, err)
	f.sched = s
	return f
}

func (f *fixture) removedFiles() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.removed...)
}

func msg(id string) Message {
	return Message{
		ID:         id,
		Recognized: true,
		SoundFiles: []string{id + ".ul"},
	}
}

func waitStarted(t *testing.T, s *fakeSink, want string) {
	for {
		select {
		case got := <-s.started:
			if got == want {
				return
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timeout waiting for %s", want)
		}
	}
}

func TestInterruptPrecedence(t *testing.T) {
	f := newFixture(t)
	s := f.sched

	release := make(chan struct{})
	f.sink.block["n1"] = release

	s.AddPlaylist(Playlist{ID: "p1", MessageIDs: []string{"n1", "n2"}})
	s.AddMessage(msg("n1"))
	s.AddMessage(msg("n2"))
	s.AddPlaylist(Playlist{ID: "p2", MessageIDs: []string{"i1"}, Interrupt: true})

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	waitStarted(t, f.sink, "n1")

	// raised while n1 is on air
	urgent := msg("i1")
	urgent.Warning = true
	s.AddMessage(urgent)
	assert.True(t, s.InterruptPending())

	close(release)

	require.Eventually(t, func() bool {
		return len(f.sink.plays()) >= 3
	}, 2*time.Second, time.Millisecond)

	assert.Equal(t, []string{"n1", "i1", "n2"}, f.sink.plays()[:3])
	assert.False(t, s.InterruptPending())
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.interruptCycles))
}

func TestNormalPassRunsPendingInterruptFirst(t *testing.T) {
	f := newFixture(t)
	s := f.sched

	s.AddPlaylist(Playlist{MessageIDs: []string{"i1", "i2"}, Interrupt: true})
	s.AddPlaylist(Playlist{MessageIDs: []string{"n1"}})
	s.AddMessage(msg("n1"))

	urgent := msg("i1")
	urgent.AlertTone = true
	s.AddMessage(urgent)
	watch := msg("i2")
	watch.Watch = true
	s.AddMessage(watch)

	s.normalPass(context.Background(), s.Playlist(Normal))

	assert.Equal(t, []string{"A_i1", "i2", "n1"}, f.sink.plays())
	assert.False(t, s.InterruptPending())

	// played interrupt messages are consumed
	_, err := s.Message(Interrupt, "i1")
	assert.IsType(t, &MessageUnavailableError{}, err)
}

func TestExpiredMessage(t *testing.T) {
	f := newFixture(t)
	s := f.sched

	old := msg("old")
	old.Expires = f.now.Add(-time.Minute)
	fresh := msg("fresh")
	fresh.Expires = f.now.Add(time.Hour)

	s.AddPlaylist(Playlist{MessageIDs: []string{"old", "fresh", "missing"}})
	s.AddMessage(old)
	s.AddMessage(fresh)

	s.normalPass(context.Background(), s.Playlist(Normal))

	assert.Equal(t, []string{"fresh"}, f.sink.plays())

	_, err := s.Message(Normal, "old")
	var expErr *MessageExpiredError
	require.True(t, errors.As(err, &expErr))
	assert.Equal(t, old.Expires, expErr.Expired)

	_, err = s.Message(Normal, "missing")
	assert.IsType(t, &MessageUnavailableError{}, err)

	assert.Equal(t, []string{"old.ul"}, f.removedFiles())

	assert.Equal(t, 1.0, testutil.ToFloat64(
		s.metrics.errors.WithLabelValues("normal", "expired")))
	assert.Equal(t, 1.0, testutil.ToFloat64(
		s.metrics.errors.WithLabelValues("normal", "unavailable")))
}

func TestExpiredMemoryPrunedOnPlaylistChange(t *testing.T) {
	f := newFixture(t)
	s := f.sched

	old := msg("old")
	old.Expires = f.now
	s.AddPlaylist(Playlist{MessageIDs: []string{"old"}})
	s.AddMessage(old)
	s.sweep(s.normal)

	_, err := s.Message(Normal, "old")
	assert.IsType(t, &MessageExpiredError{}, err)

	s.AddPlaylist(Playlist{MessageIDs: []string{"other"}})
	_, err = s.Message(Normal, "old")
	assert.IsType(t, &MessageUnavailableError{}, err)
}

func TestPlaylistReplacementEvicts(t *testing.T) {
	f := newFixture(t)
	s := f.sched

	s.AddPlaylist(Playlist{MessageIDs: []string{"a", "b"}})
	s.AddMessage(msg("a"))
	s.AddMessage(msg("b"))
	s.AddMessage(msg("c")) // arrived ahead of its playlist

	s.AddPlaylist(Playlist{MessageIDs: []string{"b", "c"}})

	_, err := s.Message(Normal, "a")
	assert.IsType(t, &MessageUnavailableError{}, err)
	_, err = s.Message(Normal, "b")
	assert.NoError(t, err)
	_, err = s.Message(Normal, "c")
	assert.NoError(t, err)

	assert.Equal(t, []string{"a.ul"}, f.removedFiles())
}

func TestEvictionKeepsFilesOfOtherChannel(t *testing.T) {
	f := newFixture(t)
	s := f.sched

	s.AddPlaylist(Playlist{MessageIDs: []string{"x"}, Interrupt: true})
	s.AddPlaylist(Playlist{MessageIDs: []string{"x"}})
	urgent := msg("x")
	urgent.Warning = true
	s.AddMessage(urgent)

	s.AddPlaylist(Playlist{MessageIDs: []string{}})
	assert.Empty(t, f.removedFiles())
}

func TestDeleteFilesDisabled(t *testing.T) {
	f := newFixture(t, DeleteFiles(false))
	s := f.sched

	s.AddPlaylist(Playlist{MessageIDs: []string{"a"}})
	s.AddMessage(msg("a"))
	s.AddPlaylist(Playlist{MessageIDs: []string{"b"}})

	assert.Empty(t, f.removedFiles())
}

func TestInterruptPlaylistCopiesPendingMessages(t *testing.T) {
	f := newFixture(t)
	s := f.sched

	urgent := msg("u")
	urgent.Warning = true
	s.AddMessage(urgent)
	s.AddMessage(msg("plain"))
	assert.False(t, s.InterruptPending())

	s.AddPlaylist(Playlist{MessageIDs: []string{"u", "plain"}, Interrupt: true})
	assert.True(t, s.InterruptPending())

	_, err := s.Message(Interrupt, "u")
	assert.NoError(t, err)
	_, err = s.Message(Interrupt, "plain")
	assert.IsType(t, &MessageUnavailableError{}, err)
}

func TestUrgentMessageWithoutInterruptPlaylist(t *testing.T) {
	f := newFixture(t)
	s := f.sched

	urgent := msg("u")
	urgent.AlertTone = true
	s.AddMessage(urgent)

	assert.False(t, s.InterruptPending())
	_, err := s.Message(Interrupt, "u")
	assert.Error(t, err)
}

func TestUnrecognizedMessageIsSkipped(t *testing.T) {
	f := newFixture(t)
	s := f.sched

	m := msg("m")
	m.Recognized = false
	s.AddPlaylist(Playlist{MessageIDs: []string{"m"}})
	s.AddMessage(m)

	s.normalPass(context.Background(), s.Playlist(Normal))
	assert.Empty(t, f.sink.plays())

	m.Recognized = true
	s.AddMessage(m)
	s.normalPass(context.Background(), s.Playlist(Normal))
	assert.Equal(t, []string{"m"}, f.sink.plays())
}

func TestDeviceErrorDoesNotAbortCycle(t *testing.T) {
	f := newFixture(t)
	s := f.sched
	f.sink.err = errors.New("device gone")

	s.AddPlaylist(Playlist{MessageIDs: []string{"a", "b"}})
	s.AddMessage(msg("a"))
	s.AddMessage(msg("b"))

	s.normalPass(context.Background(), s.Playlist(Normal))

	// both messages have been attempted
	assert.Len(t, f.sink.started, 2)
	assert.Equal(t, 2.0, testutil.ToFloat64(
		s.metrics.errors.WithLabelValues("normal", "device")))
}

func TestPlayReturnsTypedErrors(t *testing.T) {
	f := newFixture(t)
	s := f.sched
	f.sink.err = errors.New("device gone")

	s.AddMessage(msg("a"))
	_, err := s.play(context.Background(), s.normal, "a")
	var devErr *AudioDeviceError
	require.True(t, errors.As(err, &devErr))
	assert.Equal(t, "a", devErr.ID)

	bad := msg("b")
	bad.SoundFiles = []string{"b.flac"}
	s.AddMessage(bad)
	_, err = s.play(context.Background(), s.normal, "b")
	assert.IsType(t, &ComposeError{}, err)
}

func TestComposeOrder(t *testing.T) {
	f := newFixture(t)
	s := f.sched
	ctx := context.Background()

	m := msg("m")
	m.SoundFiles = []string{"one.ul", "two.ul"}
	m.SameTones = true
	m.AlertTone = true
	m.SameHeader = "ZCZC"

	data, err := s.compose(ctx, m)
	require.NoError(t, err)
	assert.Equal(t, "[ZCZC]A_onetwoE", string(data))

	m.AlertTone = false
	data, err = s.compose(ctx, m)
	require.NoError(t, err)
	assert.Equal(t, "[ZCZC]_onetwoE", string(data))

	m.SameTones = false
	m.AlertTone = true
	data, err = s.compose(ctx, m)
	require.NoError(t, err)
	assert.Equal(t, "A_onetwo", string(data))

	m.AlertTone = false
	data, err = s.compose(ctx, m)
	require.NoError(t, err)
	assert.Equal(t, "onetwo", string(data))
}

func TestStartStop(t *testing.T) {
	var mu sync.Mutex
	var states []State

	f := newFixture(t, StateChanged(func(st State) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, st)
	}))
	s := f.sched

	require.NoError(t, s.Start(context.Background()))
	assert.Error(t, s.Start(context.Background()))
	assert.Equal(t, StateActive, s.State().Normal.State)
	assert.Equal(t, string(Normal), s.State().Running)

	s.Stop()
	assert.Equal(t, StateIdle, s.State().Normal.State)
	assert.Equal(t, StateIdle, s.State().Running)

	// stopping twice is harmless
	s.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.NotEmpty(t, states)
}

func TestStateSnapshot(t *testing.T) {
	f := newFixture(t)
	s := f.sched

	s.AddPlaylist(Playlist{ID: "trace", MessageIDs: []string{"b", "a"}})
	s.AddMessage(msg("b"))
	s.AddMessage(msg("a"))
	s.normalPass(context.Background(), s.Playlist(Normal))

	st := s.State()
	assert.Equal(t, []string{"a", "b"}, st.Normal.Pending)
	require.NotNil(t, st.Normal.Playlist)
	assert.Equal(t, "trace", st.Normal.Playlist.ID)
	assert.Equal(t, []string{"b", "a"}, st.Normal.Playlist.MessageIDs)
	assert.Equal(t, "a", st.LastPlayed)
	assert.Equal(t, f.now, st.LastPlayedAt)
	assert.Nil(t, st.Interrupt.Playlist)

	assert.Equal(t, 2.0, testutil.ToFloat64(
		s.metrics.pending.WithLabelValues("normal")))
	assert.Equal(t, 2.0, testutil.ToFloat64(
		s.metrics.played.WithLabelValues("normal")))
}

func TestPlayedInterruptLeavesNormalChannel(t *testing.T) {
	f := newFixture(t)
	s := f.sched

	s.AddPlaylist(Playlist{MessageIDs: []string{"n1"}})
	s.AddPlaylist(Playlist{MessageIDs: []string{"u", "shared"}, Interrupt: true})
	s.AddMessage(msg("n1"))

	urgent := msg("u")
	urgent.Warning = true
	s.AddMessage(urgent)

	s.normalPass(context.Background(), s.Playlist(Normal))
	assert.Equal(t, []string{"u", "n1"}, f.sink.plays())

	assert.NotContains(t, s.State().Normal.Pending, "u")
	_, err := s.Message(Normal, "u")
	assert.IsType(t, &MessageUnavailableError{}, err)
	assert.Equal(t, []string{"u.ul"}, f.removedFiles())
	assert.Equal(t, 1.0, testutil.ToFloat64(
		s.metrics.pending.WithLabelValues("normal")))
}

func TestPlayedInterruptKeptForNormalPlaylist(t *testing.T) {
	f := newFixture(t)
	s := f.sched

	s.AddPlaylist(Playlist{MessageIDs: []string{"u"}})
	s.AddPlaylist(Playlist{MessageIDs: []string{"u"}, Interrupt: true})

	urgent := msg("u")
	urgent.Warning = true
	s.AddMessage(urgent)

	s.interruptMu.Lock()
	s.drainInterrupts(context.Background())
	s.interruptMu.Unlock()

	assert.Equal(t, []string{"u"}, f.sink.plays())
	_, err := s.Message(Interrupt, "u")
	assert.IsType(t, &MessageUnavailableError{}, err)
	_, err = s.Message(Normal, "u")
	assert.NoError(t, err)
	assert.Empty(t, f.removedFiles())
}

func TestReplacedInterruptPlaylistReleasesMessages(t *testing.T) {
	f := newFixture(t)
	s := f.sched

	s.AddPlaylist(Playlist{MessageIDs: []string{"u"}, Interrupt: true})
	urgent := msg("u")
	urgent.Warning = true
	s.AddMessage(urgent)

	s.AddPlaylist(Playlist{MessageIDs: []string{}, Interrupt: true})

	_, err := s.Message(Normal, "u")
	assert.IsType(t, &MessageUnavailableError{}, err)
	assert.Empty(t, s.State().Normal.Pending)
	assert.Equal(t, []string{"u.ul"}, f.removedFiles())
}

func TestZeroPauseDoesNotSpin(t *testing.T) {
	f := newFixture(t, MessagePause(0))
	s := f.sched

	s.AddPlaylist(Playlist{MessageIDs: []string{"late"}})

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	time.Sleep(100 * time.Millisecond)
	assert.LessOrEqual(t, testutil.ToFloat64(
		s.metrics.errors.WithLabelValues("normal", "unavailable")), 2.0)

	// an arriving message ends the idle wait
	s.AddMessage(msg("late"))
	require.Eventually(t, func() bool {
		return len(f.sink.plays()) > 0
	}, 400*time.Millisecond, time.Millisecond)
	assert.Equal(t, "late", f.sink.plays()[0])
}

package broadcast

import (
	"context"
	"errors"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dh1tw/edgeAudio/audio"
	"github.com/dh1tw/edgeAudio/converter"
	"github.com/dh1tw/edgeAudio/tones"
)

// minIdleInterval is the shortest wait after a pass of the normal playlist
// in which no message could be played.
const minIdleInterval = 500 * time.Millisecond

// Scheduler drives the playback of the normal and the interrupt channel.
// At any time at most one of them writes to the audio sink. Once an
// interrupt is pending, no further audio of the normal channel is played
// until the interrupt playlist has been played completely.
type Scheduler struct {
	options Options
	sink    audio.Sink
	metrics *metrics

	normal    *channel
	interrupt *channel

	interruptPending atomic.Bool
	interruptMu      sync.Mutex // held while a channel plays or arbitrates
	sinkMu           sync.Mutex // held for the duration of a single play
	interruptSignal  chan struct{}
	playlistSignal   chan struct{}

	sync.Mutex
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	lastPlayed string
	playedAt   time.Time
}

// New returns a Scheduler which plays through sink.
func New(sink audio.Sink, opts ...Option) (*Scheduler, error) {

	s := &Scheduler{
		options: Options{
			MessagePause: time.Second * 2,
			DeleteFiles:  true,
			Clock:        time.Now,
			ReadFile:     os.ReadFile,
			RemoveFile:   os.Remove,
		},
		sink:            sink,
		normal:          newChannel(Normal),
		interrupt:       newChannel(Interrupt),
		interruptSignal: make(chan struct{}, 1),
		playlistSignal:  make(chan struct{}, 1),
	}

	for _, option := range opts {
		option(&s.options)
	}

	if s.options.Converter == nil {
		s.options.Converter = converter.New()
	}

	if s.options.Composer == nil {
		c, err := tones.Default()
		if err != nil {
			return nil, err
		}
		s.options.Composer = c
	}

	s.metrics = newMetrics(s.options.Registerer)

	return s, nil
}

// Start launches the normal and the interrupt cycle tasks.
func (s *Scheduler) Start(ctx context.Context) error {
	s.Lock()
	defer s.Unlock()

	if s.cancel != nil {
		return errors.New("scheduler already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.normal.event(ctx, eventStart)

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.normalTask(ctx)
	}()
	go func() {
		defer s.wg.Done()
		s.interruptTask(ctx)
	}()

	if s.interruptPending.Load() {
		s.signalInterrupt()
	}

	go s.notify()

	return nil
}

// Stop ends both cycle tasks and waits until they have returned. A message
// which is currently played is always played to the end.
func (s *Scheduler) Stop() {
	s.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	s.wg.Wait()

	s.normal.event(context.Background(), eventStop)
	s.notify()
}

// AddPlaylist replaces the playlist of the normal channel, or of the
// interrupt channel if the playlist is flagged as interrupt.
func (s *Scheduler) AddPlaylist(p Playlist) {

	if p.Interrupt {
		s.release(s.interrupt.setPlaylist(p))

		// messages which arrived before the playlist
		raise := false
		for _, id := range p.MessageIDs {
			if _, ok := s.interrupt.get(id); ok {
				continue
			}
			if m, ok := s.normal.get(id); ok && m.Urgent() {
				s.interrupt.add(m)
				raise = true
			}
		}
		log.Printf("broadcast: interrupt playlist %s with %d messages\n",
			p.ID, len(p.MessageIDs))
		if raise {
			s.raiseInterrupt()
		}
	} else {
		s.evict(s.normal, s.normal.setPlaylist(p))
		log.Printf("broadcast: normal playlist %s with %d messages\n",
			p.ID, len(p.MessageIDs))
		s.signalPlaylist()
	}

	s.updateGauges()
	s.notify()
}

// AddMessage adds a message to the normal channel. Urgent messages which
// are referenced by the interrupt playlist are also copied into the
// interrupt channel and raise an interrupt.
func (s *Scheduler) AddMessage(m Message) {

	s.normal.add(m)

	if m.Urgent() && s.interrupt.references(m.ID) {
		s.interrupt.add(m)
		s.raiseInterrupt()
	}

	s.signalPlaylist()
	s.updateGauges()
	s.notify()
}

// Message resolves a message id of a channel. The error is either a
// *MessageExpiredError or a *MessageUnavailableError.
func (s *Scheduler) Message(ch ChannelName, id string) (Message, error) {
	return s.channel(ch).lookup(id)
}

// InterruptPending reports if an interrupt is waiting to be played.
func (s *Scheduler) InterruptPending() bool {
	return s.interruptPending.Load()
}

func (s *Scheduler) channel(ch ChannelName) *channel {
	if ch == Interrupt {
		return s.interrupt
	}
	return s.normal
}

func (s *Scheduler) raiseInterrupt() {
	s.interruptPending.Store(true)
	s.signalInterrupt()
}

func (s *Scheduler) signalInterrupt() {
	select {
	case s.interruptSignal <- struct{}{}:
	default:
	}
}

// normalTask repeats the normal playlist until ctx is cancelled. A pass
// which played nothing is followed by an idle wait, which ends early when
// a playlist or a message arrives.
func (s *Scheduler) normalTask(ctx context.Context) {
	for ctx.Err() == nil {
		p := s.normal.currentPlaylist()
		if p != nil && len(p.MessageIDs) > 0 && s.normalPass(ctx, p) > 0 {
			continue
		}
		s.idle(ctx)
	}
}

// normalPass plays the playlist once and returns the amount of played
// messages. Before each message expired messages are evicted and pending
// interrupts are played.
func (s *Scheduler) normalPass(ctx context.Context, p *Playlist) int {
	played := 0
	for _, id := range p.MessageIDs {
		if ctx.Err() != nil {
			return played
		}

		s.sweep(s.normal)

		s.interruptMu.Lock()
		s.drainInterrupts(ctx)
		ok, err := s.play(ctx, s.normal, id)
		s.interruptMu.Unlock()

		if err != nil {
			s.reportError(Normal, err)
		}
		if !ok {
			continue
		}

		played++
		s.sleep(ctx, s.options.MessagePause)
	}
	return played
}

// idle blocks until ctx is done, new content arrived or the idle interval
// elapsed.
func (s *Scheduler) idle(ctx context.Context) {
	d := s.options.MessagePause
	if d < minIdleInterval {
		d = minIdleInterval
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-s.playlistSignal:
	case <-t.C:
	}
}

func (s *Scheduler) signalPlaylist() {
	select {
	case s.playlistSignal <- struct{}{}:
	default:
	}
}

// interruptTask plays pending interrupts whenever they are raised.
func (s *Scheduler) interruptTask(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.interruptSignal:
			s.interruptMu.Lock()
			s.drainInterrupts(ctx)
			s.interruptMu.Unlock()
		}
	}
}

// drainInterrupts runs the interrupt cycle as long as an interrupt is
// pending. The caller must hold interruptMu.
func (s *Scheduler) drainInterrupts(ctx context.Context) {
	for ctx.Err() == nil && s.interruptPending.Swap(false) {
		paused := s.normal.event(ctx, eventPause)
		s.runInterruptCycle(ctx)
		if paused {
			s.normal.event(ctx, eventResume)
		}
	}
}

// runInterruptCycle plays the interrupt playlist once, without pauses.
// Played messages are consumed.
func (s *Scheduler) runInterruptCycle(ctx context.Context) *Playlist {

	p := s.interrupt.currentPlaylist()
	if p == nil {
		return nil
	}

	s.interrupt.event(ctx, eventStart)
	s.notify()

	for _, id := range p.MessageIDs {
		if ctx.Err() != nil {
			// resumed after the next start
			s.interruptPending.Store(true)
			break
		}
		s.sweep(s.interrupt)
		if _, err := s.play(ctx, s.interrupt, id); err != nil {
			s.reportError(Interrupt, err)
		}
	}

	s.interrupt.event(ctx, eventStop)
	s.metrics.interruptCycles.Inc()
	s.updateGauges()
	s.notify()

	return p
}

// play resolves and plays a single message and reports if it went on
// air. Messages whose audio is not ready yet are skipped silently.
func (s *Scheduler) play(ctx context.Context, ch *channel, id string) (bool, error) {

	msg, err := ch.lookup(id)
	if err != nil {
		return false, err
	}

	if !msg.Recognized {
		return false, nil
	}

	data, err := s.compose(ctx, msg)
	if err != nil {
		return false, &ComposeError{ID: id, Err: err}
	}

	s.sinkMu.Lock()
	// an ongoing playback is never aborted
	err = s.sink.Play(context.WithoutCancel(ctx), data)
	s.sinkMu.Unlock()

	if err != nil {
		return false, &AudioDeviceError{ID: id, Err: err}
	}

	if ch == s.interrupt {
		if m, ok := ch.remove(id); ok {
			s.release([]Message{m})
		}
	}

	s.Lock()
	s.lastPlayed = id
	s.playedAt = s.options.Clock()
	s.Unlock()

	s.metrics.played.WithLabelValues(string(ch.name)).Inc()
	s.notify()

	return true, nil
}

// release hands messages which left the interrupt channel back. Messages
// which the normal playlist does not reference are dropped from the normal
// channel as well and their files are deleted.
func (s *Scheduler) release(msgs []Message) {
	var gone []Message
	for _, m := range msgs {
		if s.normal.references(m.ID) {
			continue
		}
		if nm, ok := s.normal.remove(m.ID); ok {
			m = nm
		}
		gone = append(gone, m)
	}
	s.evict(s.interrupt, gone)
	s.updateGauges()
}

func (s *Scheduler) reportError(ch ChannelName, err error) {
	log.Printf("broadcast: %s channel: %v\n", ch, err)
	s.metrics.errors.WithLabelValues(string(ch), errorKind(err)).Inc()
}

// sweep evicts the expired messages of a channel.
func (s *Scheduler) sweep(ch *channel) {
	expired := ch.sweep(s.options.Clock())
	for _, m := range expired {
		log.Printf("broadcast: %s channel: message %s expired\n", ch.name, m.ID)
	}
	if len(expired) > 0 {
		s.evict(ch, expired)
		s.updateGauges()
	}
}

// evict deletes the sound files of messages removed from ch, unless the
// other channel still holds the message.
func (s *Scheduler) evict(ch *channel, msgs []Message) {
	if !s.options.DeleteFiles {
		return
	}

	other := s.normal
	if ch == s.normal {
		other = s.interrupt
	}

	for _, m := range msgs {
		if _, ok := other.get(m.ID); ok {
			continue
		}
		for _, f := range m.SoundFiles {
			if err := s.options.RemoveFile(f); err != nil && !os.IsNotExist(err) {
				log.Printf("broadcast: unable to delete %s of message %s: %v\n", f, m.ID, err)
			}
		}
	}
}

func (s *Scheduler) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (s *Scheduler) updateGauges() {
	s.metrics.pending.WithLabelValues(string(Normal)).Set(float64(len(s.normal.pendingIDs())))
	s.metrics.pending.WithLabelValues(string(Interrupt)).Set(float64(len(s.interrupt.pendingIDs())))
}

func (s *Scheduler) notify() {
	if s.options.StateChanged != nil {
		s.options.StateChanged(s.State())
	}
}

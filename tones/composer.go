package tones

import (
	"sync"
)

// ToneSet holds the fixed tone buffers and caches the end-of-message
// sequences.
type ToneSet struct {
	synth Synthesizer

	betweenPreamblePause []byte
	beforeAlertPause     []byte
	alertTone            []byte
	beforeMessagePause   []byte

	sync.Mutex
	eom map[uint32][]byte // by padding
}

// NewToneSet generates the fixed buffers of a ToneSet.
func NewToneSet(synth Synthesizer) (*ToneSet, error) {

	alert, err := synth.AlertTone(AlertToneAmplitude, AlertToneDuration)
	if err != nil {
		return nil, &GenerationError{Part: "alert tone", Err: err}
	}

	ts := &ToneSet{
		synth:                synth,
		betweenPreamblePause: Silence(BetweenPreamblePause),
		beforeAlertPause:     Silence(BeforeAlertPause),
		alertTone:            alert,
		beforeMessagePause:   Silence(BeforeMessagePause),
		eom:                  make(map[uint32][]byte),
	}

	return ts, nil
}

// EndOfMessage returns the post message silence followed by three
// end-of-message bursts. The sequence is generated once per padding.
func (ts *ToneSet) EndOfMessage(padding uint32) ([]byte, error) {
	ts.Lock()
	defer ts.Unlock()

	if eom, ok := ts.eom[padding]; ok {
		return eom, nil
	}

	burst, err := ts.synth.SameTone(EndOfMessageHeader, padding)
	if err != nil {
		return nil, &GenerationError{Part: "end of message", Err: err}
	}

	eom := make([]byte, 0, AfterMessagePause+repetitions*len(burst)+
		(repetitions-1)*len(ts.betweenPreamblePause))
	eom = append(eom, Silence(AfterMessagePause)...)
	eom = append(eom, ts.repeat(burst)...)

	ts.eom[padding] = eom

	return eom, nil
}

// repeat concatenates three bursts with a pause between (not after) them.
func (ts *ToneSet) repeat(burst []byte) []byte {
	res := make([]byte, 0, repetitions*len(burst)+(repetitions-1)*len(ts.betweenPreamblePause))
	for i := 0; i < repetitions; i++ {
		if i > 0 {
			res = append(res, ts.betweenPreamblePause...)
		}
		res = append(res, burst...)
	}
	return res
}

// Bundle contains the tones which precede the message audio.
type Bundle struct {
	Preamble     []byte
	Alert        []byte
	MessagePause []byte
}

// Bytes returns the concatenated tones in playback order.
func (b Bundle) Bytes() []byte {
	res := make([]byte, 0, len(b.Preamble)+len(b.Alert)+len(b.MessagePause))
	res = append(res, b.Preamble...)
	res = append(res, b.Alert...)
	return append(res, b.MessagePause...)
}

// Len returns the total number of samples of the Bundle.
func (b Bundle) Len() int {
	return len(b.Preamble) + len(b.Alert) + len(b.MessagePause)
}

// Composer assembles the tone sequences framing a broadcast message.
// A Composer is safe for concurrent use. The returned buffers are shared
// and must not be modified.
type Composer struct {
	tones *ToneSet
}

// NewComposer returns a Composer using synth for the tone primitives.
func NewComposer(synth Synthesizer) (*Composer, error) {
	ts, err := NewToneSet(synth)
	if err != nil {
		return nil, err
	}
	return &Composer{tones: ts}, nil
}

// SameAndAlertTones returns the SAME preamble for header, optionally
// followed by the attention signal and the pause before the message.
func (c *Composer) SameAndAlertTones(header string, includeAlert, includeSilence bool, padding uint32) (Bundle, error) {

	burst, err := c.tones.synth.SameTone(header, padding)
	if err != nil {
		return Bundle{}, &GenerationError{Part: "preamble", Err: err}
	}

	b := Bundle{
		Preamble: c.tones.repeat(burst),
	}

	if includeAlert {
		alert := make([]byte, 0, len(c.tones.beforeAlertPause)+len(c.tones.alertTone))
		alert = append(alert, c.tones.beforeAlertPause...)
		b.Alert = append(alert, c.tones.alertTone...)
	}

	if includeSilence {
		b.MessagePause = c.tones.beforeMessagePause
	}

	return b, nil
}

// AlertOnlyTones returns the attention signal followed by the pause
// before the message.
func (c *Composer) AlertOnlyTones() Bundle {
	return Bundle{
		Alert:        c.tones.alertTone,
		MessagePause: c.tones.beforeMessagePause,
	}
}

// EndOfMessageTones returns the sequence which is played after the
// message audio.
func (c *Composer) EndOfMessageTones(padding uint32) ([]byte, error) {
	return c.tones.EndOfMessage(padding)
}

var (
	defaultOnce     sync.Once
	defaultComposer *Composer
	defaultErr      error
)

// Default returns the process wide Composer based on the SameSynthesizer.
// It is built on first use.
func Default() (*Composer, error) {
	defaultOnce.Do(func() {
		defaultComposer, defaultErr = NewComposer(NewSameSynthesizer())
	})
	return defaultComposer, defaultErr
}

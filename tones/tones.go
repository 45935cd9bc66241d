// Package tones provides the tone sequences which frame an emergency
// broadcast message: the SAME preamble bursts, the attention signal and
// the end-of-message bursts, separated by fixed periods of silence.
package tones

import (
	"fmt"

	"github.com/dh1tw/edgeAudio/audio"
)

// Silence lengths in samples at the canonical 8kHz frame rate.
const (
	BetweenPreamblePause = 8000
	BeforeAlertPause     = 16000
	BeforeMessagePause   = 32000
	AfterMessagePause    = 16000
)

// Attention signal parameters.
const (
	AlertToneDuration  = 9.0 // seconds
	AlertToneAmplitude = 0.5 // fraction of full scale
)

// EndOfMessageHeader is the literal SAME end-of-message code.
const EndOfMessageHeader = "NNNN"

// Repetitions of each SAME burst.
const repetitions = 3

// Synthesizer generates the tone primitives as μ-law encoded audio in the
// canonical line format.
type Synthesizer interface {
	// SameTone returns a single SAME burst for header, followed by padding
	// samples of silence.
	SameTone(header string, padding uint32) ([]byte, error)
	// AlertTone returns the attention signal.
	AlertTone(amplitude, durationSecs float64) ([]byte, error)
}

// GenerationError is returned when the Synthesizer fails.
type GenerationError struct {
	Part string
	Err  error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("tones: unable to generate %s: %v", e.Part, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Silence returns n samples of μ-law silence.
func Silence(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = audio.SilenceByte
	}
	return b
}

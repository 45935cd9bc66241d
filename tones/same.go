package tones

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
	"github.com/dh1tw/edgeAudio/audio"
	"github.com/dh1tw/edgeAudio/audiocodec/ulaw"
)

// SAME AFSK parameters. A bit lasts 1920µs (520.83 baud), which are
// 15.36 samples at 8kHz. The bit boundaries are therefore calculated
// as an exact fraction of the sample rate.
const (
	MarkFrequency  = 2083.3
	SpaceFrequency = 1562.5

	baudNumerator   = 3125
	baudDenominator = 6

	preambleByte   = 0xAB
	preambleLength = 16
)

// Attention signal frequencies.
const (
	alertFrequencyLow  = 853.0
	alertFrequencyHigh = 960.0
)

const twoPi = 2 * math32.Pi

// SameSynthesizer is the default Synthesizer. It produces phase continuous
// AFSK bursts and the two-tone attention signal.
type SameSynthesizer struct {
	amplitude float32
}

// NewSameSynthesizer returns a SameSynthesizer which modulates the SAME
// bursts at 80% of full scale.
func NewSameSynthesizer() *SameSynthesizer {
	return &SameSynthesizer{amplitude: 0.8}
}

// BurstSamples returns the number of samples of an AFSK burst for header
// (excluding padding).
func BurstSamples(header string) int {
	bits := (preambleLength + len(header)) * 8
	return bits * audio.Samplerate * baudDenominator / baudNumerator
}

// SameTone returns the preamble followed by the header, sent LSB first.
func (s *SameSynthesizer) SameTone(header string, padding uint32) ([]byte, error) {

	for i := 0; i < len(header); i++ {
		if header[i] > 0x7F {
			return nil, fmt.Errorf("header contains non ascii character at position %d", i)
		}
	}

	msg := make([]byte, 0, preambleLength+len(header))
	for i := 0; i < preambleLength; i++ {
		msg = append(msg, preambleByte)
	}
	msg = append(msg, header...)

	total := BurstSamples(header)
	res := make([]byte, 0, total+int(padding))

	var phase float32
	bit := 0
	for n := 0; n < total; n++ {
		// advance to the bit which covers sample n
		for (bit+1)*audio.Samplerate*baudDenominator/baudNumerator <= n {
			bit++
		}
		freq := float32(SpaceFrequency)
		if (msg[bit/8]>>(bit%8))&1 == 1 {
			freq = MarkFrequency
		}
		res = append(res, ulaw.EncodeSample(s.sample(math32.Sin(phase))))
		phase += twoPi * freq / audio.Samplerate
		if phase >= twoPi {
			phase -= twoPi
		}
	}

	return append(res, Silence(int(padding))...), nil
}

// AlertTone returns the 853Hz + 960Hz attention signal.
func (s *SameSynthesizer) AlertTone(amplitude, durationSecs float64) ([]byte, error) {

	if amplitude <= 0 || amplitude > 1 {
		return nil, fmt.Errorf("invalid amplitude %v", amplitude)
	}
	if durationSecs <= 0 {
		return nil, errors.New("duration must be positive")
	}

	n := int(durationSecs * audio.Samplerate)
	res := make([]byte, n)
	amp := float32(amplitude)

	var pLow, pHigh float32
	for i := range res {
		v := amp * (math32.Sin(pLow) + math32.Sin(pHigh)) / 2
		res[i] = ulaw.EncodeSample(int16(v * 32767))
		pLow += twoPi * alertFrequencyLow / audio.Samplerate
		if pLow >= twoPi {
			pLow -= twoPi
		}
		pHigh += twoPi * alertFrequencyHigh / audio.Samplerate
		if pHigh >= twoPi {
			pHigh -= twoPi
		}
	}

	return res, nil
}

func (s *SameSynthesizer) sample(v float32) int16 {
	return int16(s.amplitude * v * 32767)
}

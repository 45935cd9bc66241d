package tones

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/dh1tw/edgeAudio/audio"
	"github.com/dh1tw/edgeAudio/audiocodec/ulaw"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSynth returns recognizable buffers: a SAME burst consists of the
// header bytes followed by padding times 0xEE, the alert tone of 100
// times 0xAA.
type fakeSynth struct {
	sync.Mutex
	sameCalls map[string]int
	sameErr   error
	alertErr  error
}

func newFakeSynth() *fakeSynth {
	return &fakeSynth{sameCalls: make(map[string]int)}
}

func (f *fakeSynth) SameTone(header string, padding uint32) ([]byte, error) {
	f.Lock()
	defer f.Unlock()
	f.sameCalls[header]++
	if f.sameErr != nil {
		return nil, f.sameErr
	}
	res := []byte(header)
	return append(res, bytes.Repeat([]byte{0xEE}, int(padding))...), nil
}

func (f *fakeSynth) AlertTone(amplitude, durationSecs float64) ([]byte, error) {
	if f.alertErr != nil {
		return nil, f.alertErr
	}
	return bytes.Repeat([]byte{0xAA}, 100), nil
}

func isSilence(b []byte) bool {
	for _, v := range b {
		if v != audio.SilenceByte {
			return false
		}
	}
	return true
}

func TestSameAndAlertTonesLayout(t *testing.T) {
	c, err := NewComposer(newFakeSynth())
	require.NoError(t, err)

	b, err := c.SameAndAlertTones("HDR", true, true, 2)
	require.NoError(t, err)

	burst := []byte{'H', 'D', 'R', 0xEE, 0xEE}
	pause := Silence(BetweenPreamblePause)

	var preamble []byte
	preamble = append(preamble, burst...)
	preamble = append(preamble, pause...)
	preamble = append(preamble, burst...)
	preamble = append(preamble, pause...)
	preamble = append(preamble, burst...)
	assert.Equal(t, preamble, b.Preamble)

	require.Len(t, b.Alert, BeforeAlertPause+100)
	assert.True(t, isSilence(b.Alert[:BeforeAlertPause]))
	assert.Equal(t, bytes.Repeat([]byte{0xAA}, 100), b.Alert[BeforeAlertPause:])

	assert.Len(t, b.MessagePause, BeforeMessagePause)
	assert.True(t, isSilence(b.MessagePause))

	all := b.Bytes()
	assert.Len(t, all, b.Len())
	assert.Equal(t, preamble, all[:len(preamble)])
}

func TestSameTonesWithoutAlertAndSilence(t *testing.T) {
	c, err := NewComposer(newFakeSynth())
	require.NoError(t, err)

	b, err := c.SameAndAlertTones("X", false, false, 0)
	require.NoError(t, err)

	assert.Len(t, b.Preamble, 3+2*BetweenPreamblePause)
	assert.Empty(t, b.Alert)
	assert.Empty(t, b.MessagePause)
}

func TestAlertOnlyTones(t *testing.T) {
	c, err := NewComposer(newFakeSynth())
	require.NoError(t, err)

	b := c.AlertOnlyTones()
	assert.Empty(t, b.Preamble)
	assert.Equal(t, bytes.Repeat([]byte{0xAA}, 100), b.Alert)
	assert.Len(t, b.MessagePause, BeforeMessagePause)
}

func TestEndOfMessageLength(t *testing.T) {
	c, err := NewComposer(newFakeSynth())
	require.NoError(t, err)

	eom, err := c.EndOfMessageTones(5)
	require.NoError(t, err)

	burstLen := len(EndOfMessageHeader) + 5
	assert.Len(t, eom, AfterMessagePause+3*burstLen+2*BetweenPreamblePause)
	assert.True(t, isSilence(eom[:AfterMessagePause]))
	assert.Equal(t, []byte(EndOfMessageHeader), eom[AfterMessagePause:AfterMessagePause+4])
	assert.Equal(t, []byte(EndOfMessageHeader), eom[len(eom)-burstLen:len(eom)-5])
}

func TestEndOfMessageCachedByPadding(t *testing.T) {
	synth := newFakeSynth()
	c, err := NewComposer(synth)
	require.NoError(t, err)

	a, err := c.EndOfMessageTones(0)
	require.NoError(t, err)
	b, err := c.EndOfMessageTones(0)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, 1, synth.sameCalls[EndOfMessageHeader])

	// a different padding must not be served from the cache
	p, err := c.EndOfMessageTones(10)
	require.NoError(t, err)
	assert.Len(t, p, len(a)+3*10)
	assert.Equal(t, 2, synth.sameCalls[EndOfMessageHeader])
}

func TestGenerationErrors(t *testing.T) {
	synth := newFakeSynth()
	synth.alertErr = errors.New("boom")
	_, err := NewComposer(synth)
	var gErr *GenerationError
	require.True(t, errors.As(err, &gErr))
	assert.Equal(t, "alert tone", gErr.Part)

	synth = newFakeSynth()
	c, err := NewComposer(synth)
	require.NoError(t, err)
	synth.sameErr = errors.New("boom")

	_, err = c.SameAndAlertTones("HDR", true, true, 0)
	require.True(t, errors.As(err, &gErr))
	assert.Equal(t, "preamble", gErr.Part)

	_, err = c.EndOfMessageTones(1)
	require.True(t, errors.As(err, &gErr))
	assert.Equal(t, "end of message", gErr.Part)
}

func TestComposerDeterministic(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	a, err := c.SameAndAlertTones("TEST_HEADER", true, true, 0)
	require.NoError(t, err)
	b, err := c.SameAndAlertTones("TEST_HEADER", true, true, 0)
	require.NoError(t, err)

	assert.Equal(t, a.Bytes(), b.Bytes())
}

func TestDefaultIsShared(t *testing.T) {
	var wg sync.WaitGroup
	res := make([]*Composer, 8)
	for i := range res {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := Default()
			assert.NoError(t, err)
			res[i] = c
		}(i)
	}
	wg.Wait()

	for _, c := range res {
		assert.Same(t, res[0], c)
	}
}

func TestSameToneLength(t *testing.T) {
	s := NewSameSynthesizer()

	burst, err := s.SameTone("ZCZC-WXR-TOR-039173+0030-1051700-KEAX/NWS-", 100)
	require.NoError(t, err)

	// 58 bytes * 8 bits * 15.36 samples per bit
	assert.Equal(t, 7127, BurstSamples("ZCZC-WXR-TOR-039173+0030-1051700-KEAX/NWS-"))
	assert.Len(t, burst, 7127+100)
	assert.True(t, isSilence(burst[7127:]))
	assert.False(t, isSilence(burst[:7127]))
}

func TestSameToneRejectsNonASCII(t *testing.T) {
	s := NewSameSynthesizer()
	_, err := s.SameTone("ZCZC-Ä", 0)
	assert.Error(t, err)
}

func TestAlertTone(t *testing.T) {
	s := NewSameSynthesizer()

	tone, err := s.AlertTone(AlertToneAmplitude, 0.5)
	require.NoError(t, err)
	require.Len(t, tone, 4000)

	var peak int16
	for _, v := range ulaw.Decode(tone) {
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	// the sum of both tones never exceeds the amplitude
	assert.LessOrEqual(t, int(peak), 16800)
	assert.Greater(t, int(peak), 12000)

	_, err = s.AlertTone(0, 1)
	assert.Error(t, err)
	_, err = s.AlertTone(0.5, 0)
	assert.Error(t, err)
}

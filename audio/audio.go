package audio

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// Canonical line format expected by the broadcast exciter.
const (
	Samplerate = 8000
	BitDepth   = 16
	Channels   = 1

	// SilenceByte is the idle-line value of the μ-law wire format. It
	// decodes to a linear sample of 0.
	SilenceByte byte = 0xFF
)

// Format is one of the closed set of audio formats handled by the
// audio pipeline.
type Format int

// Supported audio formats.
const (
	FormatUnknown Format = iota
	PCM                  // raw 16-bit signed little-endian, 8kHz mono
	ULAW                 // raw 8-bit G.711 μ-law, 8kHz mono
	WAV                  // RIFF/WAVE container (PCM or μ-law encoded)
	MP3
)

func (f Format) String() string {
	switch f {
	case PCM:
		return "pcm"
	case ULAW:
		return "ulaw"
	case WAV:
		return "wav"
	case MP3:
		return "mp3"
	}
	return "unknown"
}

// ParseFormat returns the Format for a format name (case insensitive).
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(name) {
	case "pcm", "s16le", "raw":
		return PCM, nil
	case "ulaw", "mulaw", "ul":
		return ULAW, nil
	case "wav", "wave":
		return WAV, nil
	case "mp3":
		return MP3, nil
	}
	return FormatUnknown, fmt.Errorf("unknown audio format '%s'", name)
}

// Buffer is an immutable chunk of encoded audio together with its
// metadata. Components which transform a Buffer always return a new one.
type Buffer struct {
	Data       []byte
	Format     Format
	Samplerate int
	BitDepth   int
	Channels   int
}

// NewBuffer returns a Buffer in the canonical line format which owns a
// copy of data.
func NewBuffer(data []byte, f Format) Buffer {
	b := Buffer{
		Data:       make([]byte, len(data)),
		Format:     f,
		Samplerate: Samplerate,
		BitDepth:   BitDepth,
		Channels:   Channels,
	}
	if f == ULAW {
		b.BitDepth = 8
	}
	copy(b.Data, data)
	return b
}

// Sink is the interface which is implemented by an audio sink. Typically
// this is the broadcast exciter (DAC), but could also be a local
// soundcard or a file for recording. Play takes μ-law encoded audio in
// the canonical line format and blocks until the data has been drained.
type Sink interface {
	Play(ctx context.Context, ulaw []byte) error
	Close() error
}

// FormatFromPath derives the audio format from the file extension.
func FormatFromPath(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".wav", ".wave":
		return WAV, nil
	case ".mp3":
		return MP3, nil
	case ".ul", ".ulaw", ".mulaw", ".ulw":
		return ULAW, nil
	case ".pcm", ".raw", ".s16", ".sw":
		return PCM, nil
	}
	return FormatUnknown, fmt.Errorf("unable to derive audio format from '%s'", path)
}

// Extension returns the usual file extension (including the dot).
func (f Format) Extension() string {
	switch f {
	case PCM:
		return ".pcm"
	case ULAW:
		return ".ul"
	case WAV:
		return ".wav"
	case MP3:
		return ".mp3"
	}
	return ""
}

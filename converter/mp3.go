package converter

import (
	"bytes"
	"context"
	"io"

	"github.com/dh1tw/edgeAudio/audio"
	"github.com/hajimehoshi/go-mp3"
	"github.com/pkg/errors"
)

// mp3Converter decodes MP3 in-process. MP3 encoding requires the
// external tool.
type mp3Converter struct{}

func newMP3Converter() *mp3Converter {
	return &mp3Converter{}
}

func (m *mp3Converter) Kind() Kind { return MP3Decoder }

func (m *mp3Converter) SourceFormats() []audio.Format {
	return []audio.Format{audio.MP3}
}

func (m *mp3Converter) DestinationFormats() []audio.Format {
	return []audio.Format{audio.PCM, audio.ULAW, audio.WAV}
}

func (m *mp3Converter) VerifyCompatibility(src, dst audio.Format) error {
	return verifyStructure(m, src, dst)
}

func (m *mp3Converter) Convert(ctx context.Context, data []byte, src, dst audio.Format) ([]byte, error) {

	if err := m.VerifyCompatibility(src, dst); err != nil {
		return nil, err
	}

	d, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, newError(ConversionFailure, src, dst, errors.Wrap(err, "mp3 decoder"))
	}

	// go-mp3 always produces 16 bit little endian stereo
	raw, err := io.ReadAll(d)
	if err != nil {
		return nil, newError(ConversionFailure, src, dst, errors.Wrap(err, "decoding mp3"))
	}

	if err := ctx.Err(); err != nil {
		return nil, newError(ConversionFailure, src, dst, err)
	}

	frame := pcmFrame{
		samples:    audio.BytesToInt16(raw),
		samplerate: d.SampleRate(),
		channels:   2,
	}

	return finish(frame, src, dst)
}

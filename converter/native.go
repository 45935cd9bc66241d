package converter

import (
	"context"

	"github.com/dh1tw/edgeAudio/audio"
)

// nativeConverter handles PCM, μ-law and WAV in-process. The output is
// always normalized to the canonical frame format, even when the WAV
// payload is already linear PCM.
type nativeConverter struct {
	formats []audio.Format
}

func newNativeConverter() *nativeConverter {
	return &nativeConverter{
		formats: []audio.Format{audio.PCM, audio.ULAW, audio.WAV},
	}
}

func (n *nativeConverter) Kind() Kind { return Native }

func (n *nativeConverter) SourceFormats() []audio.Format { return n.formats }

func (n *nativeConverter) DestinationFormats() []audio.Format { return n.formats }

func (n *nativeConverter) VerifyCompatibility(src, dst audio.Format) error {
	return verifyStructure(n, src, dst)
}

func (n *nativeConverter) Convert(ctx context.Context, data []byte, src, dst audio.Format) ([]byte, error) {

	if err := n.VerifyCompatibility(src, dst); err != nil {
		return nil, err
	}

	var frame pcmFrame
	var err error

	if src == audio.WAV {
		frame, err = decodeWav(data)
	} else {
		frame, err = decodeRaw(data, src)
	}
	if err != nil {
		return nil, withFormats(err, src, dst)
	}

	return finish(frame, src, dst)
}

// finish normalizes a decoded frame and encodes it into dst.
func finish(frame pcmFrame, src, dst audio.Format) ([]byte, error) {
	samples, err := normalize(frame)
	if err != nil {
		return nil, newError(ConversionFailure, src, dst, err)
	}

	res, err := encodeCanonical(samples, dst)
	if err != nil {
		return nil, newError(ConversionFailure, src, dst, err)
	}

	return res, nil
}

// withFormats fills in the format pair of errors raised by the decoders
// and wraps anything else as a ConversionFailure.
func withFormats(err error, src, dst audio.Format) error {
	if cErr, ok := err.(*Error); ok {
		cErr.Src = src
		cErr.Dst = dst
		return cErr
	}
	return newError(ConversionFailure, src, dst, err)
}

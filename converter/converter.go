// Package converter converts audio between the formats handled by the
// broadcast pipeline. Conversions which can be done in-process (PCM, μ-law,
// WAV, MP3 decoding) are built in; everything else is delegated to an
// external transcoder (ffmpeg).
package converter

import (
	"context"
	"log"

	"github.com/dh1tw/edgeAudio/audio"
	"github.com/pkg/errors"
)

// Kind identifies a converter implementation.
type Kind int

// Available converter kinds.
const (
	Native Kind = iota
	MP3Decoder
	Tool
)

func (k Kind) String() string {
	switch k {
	case Native:
		return "native"
	case MP3Decoder:
		return "mp3-decoder"
	case Tool:
		return "tool"
	}
	return "unknown"
}

// Converter is implemented by all converter kinds. VerifyCompatibility
// must be called (and succeed) before Convert.
type Converter interface {
	Kind() Kind
	SourceFormats() []audio.Format
	DestinationFormats() []audio.Format
	VerifyCompatibility(src, dst audio.Format) error
	Convert(ctx context.Context, data []byte, src, dst audio.Format) ([]byte, error)
}

// Engine dispatches conversions to the first compatible converter.
type Engine struct {
	options    Options
	converters []Converter
}

// New returns an Engine with the native, mp3 and tool backed converters.
// A missing external tool is not fatal; only the tool backed converter
// will be unavailable.
func New(opts ...Option) *Engine {

	e := &Engine{
		options: Options{
			FFmpegPath: DefaultFFmpegPath,
		},
	}

	for _, option := range opts {
		option(&e.options)
	}

	e.converters = []Converter{
		newNativeConverter(),
		newMP3Converter(),
	}

	if !e.options.DisableTool {
		tr := e.options.Transcoder
		if tr == nil {
			tr = NewExecTranscoder(e.options.FFmpegPath)
		}
		tc := newToolConverter(tr, e.options.TempDir)
		if err := tc.available(); err != nil {
			log.Printf("converter: %v; tool backed conversions disabled\n", err)
		}
		e.converters = append(e.converters, tc)
	}

	return e
}

// Convert converts data from the src into the dst format. The returned
// slice never aliases data.
func (e *Engine) Convert(ctx context.Context, data []byte, src, dst audio.Format) ([]byte, error) {

	// raw formats don't need any processing
	if src == dst && src != audio.WAV {
		res := make([]byte, len(data))
		copy(res, data)
		return res, nil
	}

	var verifyErr error

	for _, c := range e.converters {
		err := c.VerifyCompatibility(src, dst)
		if err != nil {
			// a missing tool is more relevant to the caller than
			// the structural mismatch of another converter
			if verifyErr == nil || errors.Is(err, ErrToolUnavailable) {
				verifyErr = err
			}
			continue
		}
		return c.Convert(ctx, data, src, dst)
	}

	if verifyErr == nil {
		verifyErr = newError(UnsupportedFormat, src, dst, nil)
	}

	return nil, verifyErr
}

// ConvertBuffer converts an audio.Buffer into a new Buffer of the dst format.
func (e *Engine) ConvertBuffer(ctx context.Context, b audio.Buffer, dst audio.Format) (audio.Buffer, error) {
	data, err := e.Convert(ctx, b.Data, b.Format, dst)
	if err != nil {
		return audio.Buffer{}, err
	}
	res := audio.NewBuffer(nil, dst)
	res.Data = data
	return res, nil
}

func containsFormat(formats []audio.Format, f audio.Format) bool {
	for _, el := range formats {
		if el == f {
			return true
		}
	}
	return false
}

// verifyStructure is the first phase of every compatibility check.
func verifyStructure(c Converter, src, dst audio.Format) error {
	if !containsFormat(c.SourceFormats(), src) {
		return newError(UnsupportedFormat, src, dst,
			errors.Errorf("%s converter can not read %s", c.Kind(), src))
	}
	if !containsFormat(c.DestinationFormats(), dst) {
		return newError(UnsupportedFormat, src, dst,
			errors.Errorf("%s converter can not write %s", c.Kind(), dst))
	}
	return nil
}

package converter

import (
	"fmt"

	"github.com/dh1tw/edgeAudio/audio"
)

// ErrorKind categorizes conversion errors.
type ErrorKind int

// Error kinds returned by the converters.
const (
	// UnsupportedFormat indicates that the requested src/dst pair is outside
	// of the declared support of a converter
	UnsupportedFormat ErrorKind = iota + 1
	// UnsupportedAudioFormat indicates a container with an encoding which
	// can not be handled (e.g. ADPCM in a WAV file)
	UnsupportedAudioFormat
	// ToolUnavailable indicates that the external transcoder is missing
	ToolUnavailable
	// ConversionFailure indicates that the tool or a codec failed
	ConversionFailure
)

func (k ErrorKind) String() string {
	switch k {
	case UnsupportedFormat:
		return "unsupported format"
	case UnsupportedAudioFormat:
		return "unsupported audio format"
	case ToolUnavailable:
		return "external tool unavailable"
	case ConversionFailure:
		return "conversion failure"
	}
	return fmt.Sprintf("unknown error kind %d", int(k))
}

// Error is returned by all converters. It wraps the underlying cause.
type Error struct {
	Kind   ErrorKind
	Src    audio.Format
	Dst    audio.Format
	Tool   string // path of the external tool, if involved
	Stderr string // captured tool output, if any
	Err    error
}

// Sentinel errors to be used with errors.Is.
var (
	ErrUnsupportedFormat      = &Error{Kind: UnsupportedFormat}
	ErrUnsupportedAudioFormat = &Error{Kind: UnsupportedAudioFormat}
	ErrToolUnavailable        = &Error{Kind: ToolUnavailable}
	ErrConversionFailure      = &Error{Kind: ConversionFailure}
)

func (e *Error) Error() string {
	msg := fmt.Sprintf("converter: %s (%s -> %s)", e.Kind, e.Src, e.Dst)
	if e.Tool != "" {
		msg += " tool: " + e.Tool
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Stderr != "" {
		msg += "; stderr: " + e.Stderr
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func newError(kind ErrorKind, src, dst audio.Format, err error) *Error {
	return &Error{
		Kind: kind,
		Src:  src,
		Dst:  dst,
		Err:  err,
	}
}

package broadcast

import (
	"context"
	"time"

	"github.com/dh1tw/edgeAudio/audio"
	"github.com/dh1tw/edgeAudio/tones"
	"github.com/prometheus/client_golang/prometheus"
)

// Converter converts the sound files of a message into μ-law.
type Converter interface {
	Convert(ctx context.Context, data []byte, src, dst audio.Format) ([]byte, error)
}

// Composer provides the tone sequences which frame a message.
type Composer interface {
	SameAndAlertTones(header string, includeAlert, includeSilence bool, padding uint32) (tones.Bundle, error)
	AlertOnlyTones() tones.Bundle
	EndOfMessageTones(padding uint32) ([]byte, error)
}

// Option is the type for a function option
type Option func(*Options)

// Options contains the parameters of a Scheduler.
type Options struct {
	Converter    Converter
	Composer     Composer
	MessagePause time.Duration
	DeleteFiles  bool
	Clock        func() time.Time
	StateChanged func(State)
	Registerer   prometheus.Registerer
	ReadFile     func(string) ([]byte, error)
	RemoveFile   func(string) error
}

// WithConverter is a functional option to set the converter of the
// message sound files. By default a converter.Engine is used.
func WithConverter(c Converter) Option {
	return func(args *Options) {
		args.Converter = c
	}
}

// WithComposer is a functional option to set the tone composer. By
// default the process wide tones.Default() composer is used.
func WithComposer(c Composer) Option {
	return func(args *Options) {
		args.Composer = c
	}
}

// MessagePause is a functional option to set the pause between two
// messages of the normal channel.
func MessagePause(d time.Duration) Option {
	return func(args *Options) {
		args.MessagePause = d
	}
}

// DeleteFiles is a functional option to enable / disable the removal of
// the sound files of evicted messages.
func DeleteFiles(enabled bool) Option {
	return func(args *Options) {
		args.DeleteFiles = enabled
	}
}

// Clock is a functional option to provide the time source used for
// expiration.
func Clock(now func() time.Time) Option {
	return func(args *Options) {
		args.Clock = now
	}
}

// StateChanged is a functional option to set a callback which is
// executed whenever the state of the scheduler changes.
func StateChanged(f func(State)) Option {
	return func(args *Options) {
		args.StateChanged = f
	}
}

// Registerer is a functional option to register the prometheus metrics
// of the scheduler.
func Registerer(r prometheus.Registerer) Option {
	return func(args *Options) {
		args.Registerer = r
	}
}

// FileReader is a functional option to replace os.ReadFile for reading
// the sound files.
func FileReader(f func(string) ([]byte, error)) Option {
	return func(args *Options) {
		args.ReadFile = f
	}
}

// FileRemover is a functional option to replace os.Remove for deleting
// the sound files of evicted messages.
func FileRemover(f func(string) error) Option {
	return func(args *Options) {
		args.RemoveFile = f
	}
}

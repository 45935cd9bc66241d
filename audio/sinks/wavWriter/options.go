package wavWriter

// Option is the type for a function option
type Option func(*Options)

// DefaultSamplerate is the 8kHz line format.
const DefaultSamplerate float64 = 8000

// Options contains the parameters for initializing a wav writer.
type Options struct {
	Samplerate float64
}

// Samplerate is a functional option to set the sampling rate with which the
// audio will be recorded. By default the audio is recorded in its 8kHz
// line format.
func Samplerate(s float64) Option {
	return func(args *Options) {
		args.Samplerate = s
	}
}

package dacWriter

// Option is the type for a function option
type Option func(*Options)

// Options contains the parameters for initializing a DAC writer.
type Options struct {
	Address     string
	SSRC        uint32
	Pace        bool
	RequireSync bool
}

// Address is a functional option to set the UDP address (host:port) of
// the broadcast exciter.
func Address(addr string) Option {
	return func(args *Options) {
		args.Address = addr
	}
}

// SSRC is a functional option to set the RTP synchronization source.
func SSRC(ssrc uint32) Option {
	return func(args *Options) {
		args.SSRC = ssrc
	}
}

// Pace is a functional option to send the packets in real time (one
// packet every 40ms) instead of as fast as possible. The exciter only
// has a small receive buffer, so pacing should only be disabled for
// testing.
func Pace(enabled bool) Option {
	return func(args *Options) {
		args.Pace = enabled
	}
}

// RequireSync is a functional option to refuse playback while the
// heartbeats of the exciter are lost.
func RequireSync(enabled bool) Option {
	return func(args *Options) {
		args.RequireSync = enabled
	}
}

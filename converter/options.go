package converter

// DefaultFFmpegPath is used when no explicit transcoder path is configured.
const DefaultFFmpegPath = "ffmpeg"

// Option is the type for a function option
type Option func(*Options)

// Options contains the parameters for initializing a converter Engine.
type Options struct {
	FFmpegPath  string
	TempDir     string
	Transcoder  Transcoder
	DisableTool bool
}

// FFmpegPath is a functional option to set the path (or name in $PATH)
// of the ffmpeg binary.
func FFmpegPath(path string) Option {
	return func(args *Options) {
		args.FFmpegPath = path
	}
}

// TempDir is a functional option to set the directory in which the
// temporary files for tool backed conversions are created. By default
// the os temp directory is used.
func TempDir(dir string) Option {
	return func(args *Options) {
		args.TempDir = dir
	}
}

// WithTranscoder is a functional option to replace the ffmpeg transcoder.
func WithTranscoder(t Transcoder) Option {
	return func(args *Options) {
		args.Transcoder = t
	}
}

// DisableTool is a functional option to run without any external tool.
func DisableTool() Option {
	return func(args *Options) {
		args.DisableTool = true
	}
}

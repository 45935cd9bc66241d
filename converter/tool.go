package converter

import (
	"context"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/dh1tw/edgeAudio/audio"
	"github.com/pkg/errors"
)

// toolIdentifiers maps the formats to the ffmpeg format names.
var toolIdentifiers = map[audio.Format]string{
	audio.PCM:  "s16le",
	audio.ULAW: "mulaw",
	audio.WAV:  "wav",
	audio.MP3:  "mp3",
}

type capability struct {
	decode bool
	encode bool
}

// toolConverter delegates conversions to an external transcoder. The
// presence of the tool and its capabilities are checked only once.
type toolConverter struct {
	transcoder Transcoder
	tempDir    string
	formats    []audio.Format

	lookOnce sync.Once
	lookErr  error

	probeOnce    sync.Once
	capabilities map[string]capability
	probeErr     error
}

func newToolConverter(tr Transcoder, tempDir string) *toolConverter {
	return &toolConverter{
		transcoder: tr,
		tempDir:    tempDir,
		formats:    []audio.Format{audio.PCM, audio.ULAW, audio.WAV, audio.MP3},
	}
}

func (t *toolConverter) Kind() Kind { return Tool }

func (t *toolConverter) SourceFormats() []audio.Format { return t.formats }

func (t *toolConverter) DestinationFormats() []audio.Format { return t.formats }

// available checks (once) that the tool exists.
func (t *toolConverter) available() error {
	t.lookOnce.Do(func() {
		if _, err := t.transcoder.LookPath(); err != nil {
			t.lookErr = err
		}
	})
	if t.lookErr != nil {
		e := newError(ToolUnavailable, audio.FormatUnknown, audio.FormatUnknown, t.lookErr)
		e.Tool = t.transcoder.Path()
		return e
	}
	return nil
}

// probe runs the format listing of the tool once and caches the result.
func (t *toolConverter) probe() (map[string]capability, error) {
	t.probeOnce.Do(func() {
		res, err := t.transcoder.Run(context.Background(), "-hide_banner", "-formats")
		if err != nil {
			t.probeErr = errors.Wrap(err, "format probe")
			return
		}
		if res.ExitCode != 0 {
			t.probeErr = errors.Errorf("format probe exited with %d: %s",
				res.ExitCode, strings.TrimSpace(res.Stderr))
			return
		}
		t.capabilities = parseFormats(res.Stdout + "\n" + res.Stderr)
	})
	return t.capabilities, t.probeErr
}

func (t *toolConverter) VerifyCompatibility(src, dst audio.Format) error {

	if err := verifyStructure(t, src, dst); err != nil {
		return err
	}

	if err := t.available(); err != nil {
		e := err.(*Error)
		e.Src, e.Dst = src, dst
		return e
	}

	caps, err := t.probe()
	if err != nil {
		e := newError(ConversionFailure, src, dst, err)
		e.Tool = t.transcoder.Path()
		return e
	}

	if !caps[toolIdentifiers[src]].decode {
		e := newError(UnsupportedFormat, src, dst,
			errors.Errorf("tool can not decode %s", toolIdentifiers[src]))
		e.Tool = t.transcoder.Path()
		return e
	}

	if !caps[toolIdentifiers[dst]].encode {
		e := newError(UnsupportedFormat, src, dst,
			errors.Errorf("tool can not encode %s", toolIdentifiers[dst]))
		e.Tool = t.transcoder.Path()
		return e
	}

	return nil
}

// Convert writes data into a temporary file, runs the tool and reads the
// result back from a second temporary file. Both files are removed on
// every return path.
func (t *toolConverter) Convert(ctx context.Context, data []byte, src, dst audio.Format) ([]byte, error) {

	in, err := os.CreateTemp(t.tempDir, "edgeaudio-in-*"+src.Extension())
	if err != nil {
		return nil, newError(ConversionFailure, src, dst, errors.Wrap(err, "temp input file"))
	}
	defer removeTemp(in.Name())

	_, err = in.Write(data)
	if cErr := in.Close(); err == nil {
		err = cErr
	}
	if err != nil {
		return nil, newError(ConversionFailure, src, dst, errors.Wrap(err, "temp input file"))
	}

	out, err := os.CreateTemp(t.tempDir, "edgeaudio-out-*"+dst.Extension())
	if err != nil {
		return nil, newError(ConversionFailure, src, dst, errors.Wrap(err, "temp output file"))
	}
	defer removeTemp(out.Name())
	out.Close()

	if err := t.VerifyCompatibility(src, dst); err != nil {
		return nil, err
	}

	res, err := t.transcoder.Run(ctx, toolArgs(in.Name(), out.Name(), src, dst)...)
	if err != nil {
		e := newError(ConversionFailure, src, dst, err)
		e.Tool = t.transcoder.Path()
		return nil, e
	}

	if res.ExitCode != 0 {
		e := newError(ConversionFailure, src, dst,
			errors.New("exit code "+strconv.Itoa(res.ExitCode)))
		e.Tool = t.transcoder.Path()
		e.Stderr = strings.TrimSpace(res.Stderr)
		return nil, e
	}

	result, err := os.ReadFile(out.Name())
	if err != nil {
		return nil, newError(ConversionFailure, src, dst, errors.Wrap(err, "reading tool output"))
	}

	if len(result) == 0 {
		e := newError(ConversionFailure, src, dst, errors.New("tool produced no output"))
		e.Tool = t.transcoder.Path()
		e.Stderr = strings.TrimSpace(res.Stderr)
		return nil, e
	}

	return result, nil
}

// toolArgs builds the ffmpeg argument list. Raw sources carry no header,
// so their frame format has to be declared explicitly.
func toolArgs(in, out string, src, dst audio.Format) []string {

	sr := strconv.Itoa(audio.Samplerate)
	chs := strconv.Itoa(audio.Channels)

	args := []string{"-y", "-hide_banner", "-loglevel", "error"}

	if src == audio.PCM || src == audio.ULAW {
		args = append(args, "-f", toolIdentifiers[src], "-ar", sr, "-ac", chs)
	}

	args = append(args, "-i", in, "-ar", sr, "-ac", chs, "-f", toolIdentifiers[dst])

	if dst == audio.WAV {
		args = append(args, "-acodec", "pcm_s16le")
	}

	return append(args, out)
}

func removeTemp(name string) {
	if err := os.Remove(name); err != nil && !os.IsNotExist(err) {
		log.Printf("converter: unable to remove temp file %s: %v\n", name, err)
	}
}

// parseFormats parses the output of 'ffmpeg -formats'. Relevant lines
// start with a capability code (e.g. "DE", " E", "D ") followed by a
// comma separated list of format names.
func parseFormats(output string) map[string]capability {

	caps := make(map[string]capability)

	for _, line := range strings.Split(output, "\n") {
		if len(line) < 4 {
			continue
		}

		// the capability code occupies the first columns; a missing
		// marker is printed as a space, so the code is sliced instead
		// of split by whitespace
		trimmed := strings.TrimPrefix(line, " ")
		fields := strings.Fields(trimmed)
		if len(fields) < 2 || len(trimmed) < 3 {
			continue
		}

		code := trimmed[:3]
		if !isCapabilityCode(code) {
			continue
		}

		names := strings.Fields(trimmed[3:])
		if len(names) == 0 || names[0] == "=" {
			continue
		}

		for _, name := range strings.Split(names[0], ",") {
			c := caps[name]
			c.decode = c.decode || code[0] == 'D'
			c.encode = c.encode || code[1] == 'E'
			caps[name] = c
		}
	}

	return caps
}

func isCapabilityCode(code string) bool {
	if strings.TrimSpace(code) == "" {
		return false
	}
	for _, r := range code {
		switch r {
		case 'D', 'E', 'd', '.', ' ':
		default:
			return false
		}
	}
	return true
}

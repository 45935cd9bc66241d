package converter

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/dh1tw/edgeAudio/audio"
	"github.com/dh1tw/edgeAudio/audiocodec/ulaw"
	"github.com/dh1tw/gosamplerate"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/riff"
	"github.com/go-audio/wav"
	"github.com/pkg/errors"
)

// WAV format tags accepted in the fmt chunk
const (
	wavFormatPCM  = 1
	wavFormatULAW = 7
)

// pcmFrame is decoded, interleaved linear audio with its metadata.
type pcmFrame struct {
	samples    []int16
	samplerate int
	channels   int
}

// decodeRaw decodes raw PCM / μ-law data which is always assumed to be
// in the canonical frame format.
func decodeRaw(data []byte, f audio.Format) (pcmFrame, error) {
	frame := pcmFrame{
		samplerate: audio.Samplerate,
		channels:   audio.Channels,
	}
	switch f {
	case audio.PCM:
		frame.samples = audio.BytesToInt16(data)
	case audio.ULAW:
		frame.samples = ulaw.Decode(data)
	default:
		return frame, errors.Errorf("%s is not a raw format", f)
	}
	return frame, nil
}

// decodeWav reads a WAV container. Only signed linear PCM (16/24/32 bit)
// and μ-law payloads are accepted.
func decodeWav(data []byte) (pcmFrame, error) {

	frame := pcmFrame{}

	d := wav.NewDecoder(bytes.NewReader(data))
	if !d.IsValidFile() {
		return frame, newError(ConversionFailure, audio.WAV, audio.FormatUnknown,
			errors.New("invalid wav file"))
	}

	if d.WavAudioFormat != wavFormatPCM && d.WavAudioFormat != wavFormatULAW {
		return frame, newError(UnsupportedAudioFormat, audio.WAV, audio.FormatUnknown,
			errors.Errorf("wav encoding %d not supported", d.WavAudioFormat))
	}

	if d.WavAudioFormat == wavFormatPCM && d.BitDepth == 8 {
		return frame, newError(UnsupportedAudioFormat, audio.WAV, audio.FormatUnknown,
			errors.New("unsigned 8 bit pcm not supported"))
	}

	raw, err := wavData(data)
	if err != nil {
		return frame, newError(ConversionFailure, audio.WAV, audio.FormatUnknown,
			errors.Wrap(err, "wav data chunk"))
	}

	frame.samplerate = int(d.SampleRate)
	frame.channels = int(d.NumChans)
	if frame.channels < 1 || frame.samplerate < 1 {
		return frame, newError(ConversionFailure, audio.WAV, audio.FormatUnknown,
			errors.Errorf("invalid wav header (%d channels, %dHz)",
				frame.channels, frame.samplerate))
	}

	if d.WavAudioFormat == wavFormatULAW {
		frame.samples = ulaw.Decode(raw)
		return frame, nil
	}

	switch d.BitDepth {
	case 16:
		frame.samples = audio.BytesToInt16(raw)
	case 24:
		frame.samples = make([]int16, len(raw)/3)
		for i := range frame.samples {
			frame.samples[i] = int16(binary.LittleEndian.Uint16(raw[i*3+1:]))
		}
	case 32:
		frame.samples = make([]int16, len(raw)/4)
		for i := range frame.samples {
			frame.samples[i] = int16(binary.LittleEndian.Uint16(raw[i*4+2:]))
		}
	default:
		return frame, newError(UnsupportedAudioFormat, audio.WAV, audio.FormatUnknown,
			errors.Errorf("%d bit pcm not supported", d.BitDepth))
	}

	return frame, nil
}

// streamedSize marks a data chunk whose length was unknown when the
// header was written. The chunk then extends to the end of the file.
const streamedSize = 0xFFFFFFFF

// wavData returns the payload of the data chunk, trimmed to the size
// declared in its header. The RIFF pad byte of odd sized chunks is not
// part of the payload and may be missing at the end of the file.
func wavData(data []byte) ([]byte, error) {

	r := bytes.NewReader(data)
	p := riff.New(r)
	if err := p.ParseHeaders(); err != nil {
		return nil, err
	}

	for {
		id, size, err := p.IDnSize()
		if err == io.EOF {
			return nil, errors.New("no data chunk")
		}
		if err != nil {
			return nil, err
		}

		n := int64(size)
		if id == riff.DataFormatID && size == streamedSize {
			n = int64(r.Len())
		}
		if n > int64(r.Len()) {
			return nil, errors.Wrapf(io.ErrUnexpectedEOF,
				"chunk %q declares %d bytes, %d left", id[:], n, r.Len())
		}

		if id != riff.DataFormatID {
			if _, err := r.Seek(n+n&1, io.SeekCurrent); err != nil {
				return nil, err
			}
			continue
		}

		raw, err := io.ReadAll(io.LimitReader(r, n))
		if err != nil {
			return nil, err
		}
		if int64(len(raw)) != n {
			return nil, io.ErrUnexpectedEOF
		}
		return raw, nil
	}
}

// normalize converts the frame into the canonical 8kHz / mono format.
func normalize(frame pcmFrame) ([]int16, error) {

	samples := frame.samples

	if frame.channels > 1 {
		samples = audio.AdjustChannels(frame.channels, samples)
	}

	if frame.samplerate == audio.Samplerate || len(samples) == 0 {
		return samples, nil
	}

	return resample(samples, frame.samplerate, audio.Samplerate)
}

// resample converts mono samples from the iRate into the oRate.
func resample(samples []int16, iRate, oRate int) ([]int16, error) {

	ratio := float64(oRate) / float64(iRate)

	out, err := gosamplerate.Simple(audio.Int16ToFloat32(samples), ratio, 1,
		gosamplerate.SRC_SINC_FASTEST)
	if err != nil {
		return nil, errors.Wrap(err, "resampling")
	}

	return audio.Float32ToInt16(out), nil
}

// encodeCanonical encodes canonical samples into the dst format.
func encodeCanonical(samples []int16, dst audio.Format) ([]byte, error) {
	switch dst {
	case audio.PCM:
		return audio.Int16ToBytes(samples), nil
	case audio.ULAW:
		return ulaw.Encode(samples), nil
	case audio.WAV:
		return encodeWav(samples)
	}
	return nil, errors.Errorf("can not encode %s", dst)
}

// encodeWav returns a 16 bit PCM, 8kHz mono WAV container.
func encodeWav(samples []int16) ([]byte, error) {

	ws := &writeSeeker{}

	enc := wav.NewEncoder(ws, audio.Samplerate, audio.BitDepth, audio.Channels, wavFormatPCM)

	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}

	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: audio.Channels,
			SampleRate:  audio.Samplerate,
		},
		Data:           data,
		SourceBitDepth: audio.BitDepth,
	}

	if err := enc.Write(buf); err != nil {
		return nil, errors.Wrap(err, "wav encoder")
	}

	if err := enc.Close(); err != nil {
		return nil, errors.Wrap(err, "wav encoder")
	}

	return ws.Bytes(), nil
}

// writeSeeker is an in-memory io.WriteSeeker, required by the wav encoder
// to patch the header once all samples have been written.
type writeSeeker struct {
	buf []byte
	pos int
}

func (ws *writeSeeker) Write(p []byte) (int, error) {
	end := ws.pos + len(p)
	if end > len(ws.buf) {
		if end > cap(ws.buf) {
			nb := make([]byte, end, 2*end)
			copy(nb, ws.buf)
			ws.buf = nb
		} else {
			ws.buf = ws.buf[:end]
		}
	}
	copy(ws.buf[ws.pos:], p)
	ws.pos = end
	return len(p), nil
}

func (ws *writeSeeker) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(ws.pos) + offset
	case io.SeekEnd:
		abs = int64(len(ws.buf)) + offset
	default:
		return 0, errors.New("writeSeeker: invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("writeSeeker: negative position")
	}
	ws.pos = int(abs)
	return abs, nil
}

func (ws *writeSeeker) Bytes() []byte {
	return ws.buf
}

package wavWriter

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/dh1tw/edgeAudio/audio"
	"github.com/dh1tw/edgeAudio/audiocodec/ulaw"
	"github.com/dh1tw/gosamplerate"
	ga "github.com/go-audio/audio"
	wav "github.com/go-audio/wav"
)

// WavWriter implements the audio.Sink interface and records the on-air
// audio into a wav file (mono). It is used for dry runs without an
// exciter.
type WavWriter struct {
	sync.Mutex
	file    *os.File
	encoder *wav.Encoder
	options Options
	src     src
	closed  bool
}

// src contains a samplerate converter and its needed variables
type src struct {
	gosamplerate.Src
	ratio float64
}

// NewWavWriter returns a WavWriter recording into a new file at path.
func NewWavWriter(path string, opts ...Option) (*WavWriter, error) {

	w := &WavWriter{
		options: Options{
			Samplerate: DefaultSamplerate,
		},
	}

	for _, o := range opts {
		o(&w.options)
	}

	if w.options.Samplerate <= 0 {
		return nil, fmt.Errorf("wavWriter: invalid samplerate %v", w.options.Samplerate)
	}

	w.src.ratio = w.options.Samplerate / audio.Samplerate

	if w.src.ratio != 1 {
		srConv, err := gosamplerate.New(gosamplerate.SRC_SINC_FASTEST, audio.Channels, 1<<18)
		if err != nil {
			return nil, fmt.Errorf("wavWriter samplerate converter: %v", err)
		}
		w.src.Src = srConv
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w.file = f

	w.encoder = wav.NewEncoder(f, int(w.options.Samplerate),
		audio.BitDepth, audio.Channels, 1)

	return w, nil
}

// Play appends the μ-law audio to the wav file.
func (w *WavWriter) Play(ctx context.Context, data []byte) error {
	w.Lock()
	defer w.Unlock()

	if w.closed {
		return fmt.Errorf("wavWriter: closed")
	}

	samples := ulaw.Decode(data)

	if w.src.ratio != 1 {
		w.src.Reset()
		aData, err := audio.Resample(&w.src, audio.Int16ToFloat32(samples), w.src.ratio)
		if err != nil {
			return err
		}
		samples = audio.Float32ToInt16(aData)
	}

	buf := ga.IntBuffer{
		Format: &ga.Format{
			SampleRate:  int(w.options.Samplerate),
			NumChannels: audio.Channels,
		},
		Data:           make([]int, len(samples)),
		SourceBitDepth: audio.BitDepth,
	}

	for i, s := range samples {
		buf.Data[i] = int(s)
	}

	return w.encoder.Write(&buf)
}

// Close finalizes the wav header and closes the file.
func (w *WavWriter) Close() error {
	w.Lock()
	defer w.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	err := w.encoder.Close()
	if cErr := w.file.Close(); err == nil {
		err = cErr
	}
	if w.src.ratio != 1 {
		gosamplerate.Delete(w.src.Src)
	}
	return err
}

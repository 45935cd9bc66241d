package scWriter

import (
	"context"
	"fmt"
	"log"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/dh1tw/edgeAudio/audio"
	"github.com/dh1tw/edgeAudio/audiocodec/ulaw"
	ringBuffer "github.com/dh1tw/golang-ring"
	"github.com/dh1tw/gosamplerate"
	pa "github.com/gordonklaus/portaudio"
)

// ScWriter implements the audio.Sink interface and is used to play the
// on-air audio on a local audio output device (e.g. a monitoring speaker).
type ScWriter struct {
	sync.RWMutex
	playMu     sync.Mutex
	options    Options
	deviceInfo *pa.DeviceInfo
	stream     *pa.Stream
	ring       ringBuffer.Ring
	volume     float32
	src        src
	bufFill    bool // indicates if the buffer is filling up
}

// src contains a samplerate converter and its needed variables
type src struct {
	gosamplerate.Src
	samplerate float64
	ratio      float64
}

// NewScWriter returns a new soundcard writer for a specific audio output
// device. This is typically a speaker or a pair of headphones.
func NewScWriter(opts ...Option) (*ScWriter, error) {

	w := &ScWriter{
		options: Options{
			DeviceName:      "default",
			HostAPI:         "default",
			Channels:        1,
			Samplerate:      48000,
			FramesPerBuffer: 480,
			RingBufferSize:  10,
			Latency:         time.Millisecond * 10,
			Volume:          0.7,
		},
		deviceInfo: nil,
		ring:       ringBuffer.Ring{},
	}

	for _, option := range opts {
		option(&w.options)
	}

	w.SetVolume(w.options.Volume)

	// samplerate converter from the canonical line format to the
	// samplerate of the device
	srConv, err := gosamplerate.New(gosamplerate.SRC_SINC_FASTEST, audio.Channels, 1<<18)
	if err != nil {
		return nil, fmt.Errorf("scWriter: %v", err)
	}

	w.src = src{
		Src:        srConv,
		samplerate: w.options.Samplerate,
		ratio:      w.options.Samplerate / audio.Samplerate,
	}

	var hostAPI *pa.HostApiInfo

	if w.options.HostAPI == "default" {
		switch runtime.GOOS {
		case "windows":
			// try to use WASAPI since it provides lower latency than the
			// other windows audio apis
			ha, err := pa.HostApi(pa.WASAPI)
			if err != nil {
				// try to fallback to the default API
				ha, err = pa.DefaultHostApi()
				if err != nil {
					return nil, fmt.Errorf("unable to determine the default host api - please provide a specific host api")
				}
			}
			hostAPI = ha
		default:
			// all other OS
			ha, err := pa.DefaultHostApi()
			if err != nil {
				return nil, fmt.Errorf("unable to determine the default host api - please provide a specific host api")
			}
			hostAPI = ha
		}
	} else {
		// non-default HostAPI
		ha, err := getHostAPI(w.options.HostAPI)
		if err != nil {
			return nil, err
		}
		hostAPI = ha
	}

	if w.options.DeviceName == "default" {
		w.deviceInfo = hostAPI.DefaultOutputDevice
	} else {
		dev, err := getPaDevice(w.options.DeviceName, hostAPI)
		if err != nil {
			return nil, err
		}
		w.deviceInfo = dev
	}

	// setup Audio Stream
	streamDeviceParam := pa.StreamDeviceParameters{
		Device:   w.deviceInfo,
		Channels: w.options.Channels,
		Latency:  w.options.Latency,
	}

	streamParm := pa.StreamParameters{
		FramesPerBuffer: w.options.FramesPerBuffer,
		Output:          streamDeviceParam,
		SampleRate:      w.options.Samplerate,
	}

	// setup ring buffer
	w.ring.SetCapacity(w.options.RingBufferSize)

	stream, err := pa.OpenStream(streamParm, w.playCb)
	if err != nil {
		return nil,
			fmt.Errorf("unable to open playback audio stream on device %s: %s",
				w.options.DeviceName, err)
	}

	w.stream = stream
	log.Printf("monitor sound device: %s, HostAPI: %s\n", w.deviceInfo.Name, w.deviceInfo.HostApi.Name)

	return w, nil
}

// portaudio callback which will be called continuously when the stream is
// started; this function should be short and never block
func (p *ScWriter) playCb(in []float32,
	iTime pa.StreamCallbackTimeInfo,
	iFlags pa.StreamCallbackFlags) {
	switch iFlags {
	case pa.OutputUnderflow:
		log.Println("scWriter: output underflow")
		return // move on!
	case pa.OutputOverflow:
		log.Println("scWriter: output overflow")
		return // move on!
	}

	var data interface{}

	p.Lock()
	bufFill := p.bufFill
	bufCapacity := p.ring.Capacity()
	bufLength := p.ring.Length()
	// when filling up the buffer, don't dequeue data
	if !bufFill {
		//pull data from Ringbuffer
		data = p.ring.Dequeue()
	}
	p.Unlock()

	// start filling buffer when buffer runs empty
	if bufLength == 0 {
		p.Lock()
		p.bufFill = true
		p.Unlock()
	}

	if bufFill {
		// stop filling buffer when it's again half full
		if bufLength >= bufCapacity/2 {
			p.Lock()
			p.bufFill = false
			p.Unlock()
		}
	}

	// if no data is available we fill the audio package with silence
	if data == nil {
		for i := 0; i < len(in); i++ {
			in[i] = 0
		}
		return
	}

	audioData := data.([]float32)

	// should never happen
	if len(audioData) != len(in) {
		log.Printf("scWriter: unable to play audio frame; expected frame size %d, but got %d\n",
			len(in), len(audioData))
		return
	}

	//copy data into buffer
	copy(in, audioData)
}

// Start starts streaming audio to the Soundcard output device (e.g. Speaker).
func (p *ScWriter) Start() error {
	if p.stream == nil {
		return fmt.Errorf("portaudio stream not initialized")
	}
	return p.stream.Start()
}

// Close shutsdown properly the soundcard audio device.
func (p *ScWriter) Close() error {
	if p.stream == nil {
		return fmt.Errorf("portaudio stream not initialized")
	}
	p.stream.Abort()
	p.stream.Stop()
	p.Flush()
	gosamplerate.Delete(p.src.Src)
	return p.stream.Close()
}

// SetVolume sets the volume for all upcoming audio frames.
func (p *ScWriter) SetVolume(v float32) {
	p.Lock()
	defer p.Unlock()
	if v < 0 {
		p.volume = 0
	} else if v > 1 {
		p.volume = 1
	} else {
		p.volume = v
	}
}

// Play decodes the μ-law audio, converts it into the format of the
// audio device and queues it into the ring buffer. Play blocks until
// the ring buffer has been drained by the portaudio callback.
func (p *ScWriter) Play(ctx context.Context, ulawData []byte) error {

	p.playMu.Lock()
	defer p.playMu.Unlock()

	aData := audio.Int16ToFloat32(ulaw.Decode(ulawData))

	// if necessary, resample the audio
	if p.src.ratio != 1 {
		var err error
		p.src.Reset()
		aData, err = audio.Resample(&p.src, aData, p.src.ratio)
		if err != nil {
			return err
		}
	}

	// the canonical line format is mono
	if p.options.Channels > 1 {
		aData = upmix(aData, p.options.Channels)
	}

	p.RLock()
	vol := p.volume
	p.RUnlock()
	if vol != 1 {
		audio.AdjustVolume(vol, aData)
	}

	// buffer size expected by the portaudio callback
	frames := chop(aData, p.options.FramesPerBuffer*p.options.Channels)

	frameDuration := time.Duration(float64(time.Second) *
		float64(p.options.FramesPerBuffer) / p.options.Samplerate)

	for len(frames) > 0 {
		p.Lock()
		free := p.ring.Capacity() - p.ring.Length()
		for free > 0 && len(frames) > 0 {
			p.ring.Enqueue(frames[0])
			frames = frames[1:]
			free--
		}
		p.Unlock()

		if err := wait(ctx, frameDuration); err != nil {
			p.Flush()
			return err
		}
	}

	// the tail of a message may be shorter than the refill threshold
	p.Lock()
	p.bufFill = false
	p.Unlock()

	// wait until the callback has dequeued everything
	for {
		p.RLock()
		l := p.ring.Length()
		p.RUnlock()
		if l == 0 {
			return nil
		}
		if err := wait(ctx, frameDuration); err != nil {
			p.Flush()
			return err
		}
	}
}

func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// upmix duplicates mono samples into chs interleaved channels.
func upmix(mono []float32, chs int) []float32 {
	res := make([]float32, 0, len(mono)*chs)
	for _, s := range mono {
		for i := 0; i < chs; i++ {
			res = append(res, s)
		}
	}
	return res
}

// chop splits the samples into buffers of size. The last buffer is padded
// with silence.
func chop(samples []float32, size int) [][]float32 {
	var res [][]float32
	for len(samples) > 0 {
		buf := make([]float32, size)
		n := copy(buf, samples)
		samples = samples[n:]
		res = append(res, buf)
	}
	return res
}

// Flush drops all queued audio frames.
func (p *ScWriter) Flush() {
	p.Lock()
	defer p.Unlock()

	p.ring = ringBuffer.Ring{}
	p.ring.SetCapacity(p.options.RingBufferSize)
}

// getHostAPI takes the name of a supported portaudio host api and returns
// the corresponding portaudio hostApiInfo object
func getHostAPI(name string) (*pa.HostApiInfo, error) {

	var hostAPIType pa.HostApiType

	switch strings.ToLower(name) {
	case "indevelopment":
		hostAPIType = pa.InDevelopment
	case "directsound":
		hostAPIType = pa.DirectSound
	case "mme":
		hostAPIType = pa.MME
	case "asio":
		hostAPIType = pa.ASIO
	case "soundmanager":
		hostAPIType = pa.SoundManager
	case "coreaudio":
		hostAPIType = pa.CoreAudio
	case "oss":
		hostAPIType = pa.OSS
	case "alsa":
		hostAPIType = pa.ALSA
	case "al":
		hostAPIType = pa.AL
	case "beos":
		hostAPIType = pa.BeOS
	case "wdmks":
		hostAPIType = pa.WDMkS
	case "jack":
		hostAPIType = pa.JACK
	case "wasapi":
		hostAPIType = pa.WASAPI
	case "audiosciencehpi":
		hostAPIType = pa.AudioScienceHPI
	default:
		return nil, fmt.Errorf("unknown host api type: %s", name)
	}

	hostAPIInfo, err := pa.HostApi(hostAPIType)
	if err != nil {
		return nil, fmt.Errorf("unable to load host api %s: %s", name, err.Error())
	}

	return hostAPIInfo, nil

}

// getPaDevice checks if the Audio Devices actually exist and
// then returns it
func getPaDevice(name string, hostAPI *pa.HostApiInfo) (*pa.DeviceInfo, error) {
	for _, device := range hostAPI.Devices {
		if strings.ToLower(device.Name) == strings.ToLower(name) {
			return device, nil
		}
	}
	return nil, fmt.Errorf("unknown audio device '%s'", name)
}

package audio

import "encoding/binary"

// AdjustChannels down-mixes interleaved multichannel samples to mono by
// averaging the channels of each frame. Mono input is returned as is.
func AdjustChannels(iChs int, samples []int16) []int16 {
	if iChs <= 1 {
		return samples
	}
	res := make([]int16, 0, len(samples)/iChs)
	for i := 0; i+iChs <= len(samples); i += iChs {
		var sum int32
		for ch := 0; ch < iChs; ch++ {
			sum += int32(samples[i+ch])
		}
		res = append(res, int16(sum/int32(iChs)))
	}
	return res
}

// BytesToInt16 decodes little-endian 16-bit samples. A trailing odd byte
// is ignored.
func BytesToInt16(data []byte) []int16 {
	res := make([]int16, len(data)/2)
	for i := range res {
		res[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return res
}

// Int16ToBytes encodes samples as little-endian 16-bit values.
func Int16ToBytes(samples []int16) []byte {
	res := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(res[i*2:], uint16(s))
	}
	return res
}

// Int16ToFloat32 scales samples into the range [-1, 1).
func Int16ToFloat32(samples []int16) []float32 {
	res := make([]float32, len(samples))
	for i, s := range samples {
		res[i] = float32(s) / 32768
	}
	return res
}

// Float32ToInt16 converts samples in the range [-1, 1] back into 16-bit
// values, clipping anything outside.
func Float32ToInt16(samples []float32) []int16 {
	res := make([]int16, len(samples))
	for i, s := range samples {
		v := s * 32768
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		res[i] = int16(v)
	}
	return res
}

// AdjustVolume scales the float32 samples in place.
func AdjustVolume(volume float32, audioFrames []float32) {
	for i := 0; i < len(audioFrames); i++ {
		audioFrames[i] *= volume
	}
}

// Processor is implemented by a samplerate converter (gosamplerate.Src).
type Processor interface {
	Process(in []float32, ratio float64, endOfInput bool) ([]float32, error)
}

// resampleChunk is the amount of input samples fed at once into a
// Processor.
const resampleChunk = 4096

// Resample feeds the samples in chunks into p, so that the output of a
// single call never exceeds the buffer of the converter.
func Resample(p Processor, in []float32, ratio float64) ([]float32, error) {
	out := make([]float32, 0, int(float64(len(in))*ratio)+1)

	for len(in) > 0 {
		n := resampleChunk
		if n > len(in) {
			n = len(in)
		}
		res, err := p.Process(in[:n], ratio, n == len(in))
		if err != nil {
			return nil, err
		}
		out = append(out, res...)
		in = in[n:]
	}

	return out, nil
}

// Package ulaw implements the G.711 μ-law companding of 16-bit linear PCM
// samples. All conversions are table driven and free of hidden state, so
// they are safe for concurrent use on disjoint buffers.
package ulaw

import "fmt"

const (
	bias = 0x84
	clip = 32635
)

// expLut maps the upper byte of a biased magnitude to the segment
// (exponent) of the μ-law companding curve.
var expLut = [256]uint8{
	0, 0, 1, 1, 2, 2, 2, 2, 3, 3, 3, 3, 3, 3, 3, 3,
	4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4,
	5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5,
	5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5,
	6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6,
	6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6,
	6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6,
	6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6,
	7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7,
	7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7,
	7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7,
	7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7,
	7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7,
	7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7,
	7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7,
	7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7,
}

// decodeTable maps every μ-law byte to its decompressed 16-bit value.
var decodeTable = [256]int16{
	-32124, -31100, -30076, -29052, -28028, -27004, -25980, -24956,
	-23932, -22908, -21884, -20860, -19836, -18812, -17788, -16764,
	-15996, -15484, -14972, -14460, -13948, -13436, -12924, -12412,
	-11900, -11388, -10876, -10364, -9852, -9340, -8828, -8316,
	-7932, -7676, -7420, -7164, -6908, -6652, -6396, -6140,
	-5884, -5628, -5372, -5116, -4860, -4604, -4348, -4092,
	-3900, -3772, -3644, -3516, -3388, -3260, -3132, -3004,
	-2876, -2748, -2620, -2492, -2364, -2236, -2108, -1980,
	-1884, -1820, -1756, -1692, -1628, -1564, -1500, -1436,
	-1372, -1308, -1244, -1180, -1116, -1052, -988, -924,
	-876, -844, -812, -780, -748, -716, -684, -652,
	-620, -588, -556, -524, -492, -460, -428, -396,
	-372, -356, -340, -324, -308, -292, -276, -260,
	-244, -228, -212, -196, -180, -164, -148, -132,
	-120, -112, -104, -96, -88, -80, -72, -64,
	-56, -48, -40, -32, -24, -16, -8, 0,
	32124, 31100, 30076, 29052, 28028, 27004, 25980, 24956,
	23932, 22908, 21884, 20860, 19836, 18812, 17788, 16764,
	15996, 15484, 14972, 14460, 13948, 13436, 12924, 12412,
	11900, 11388, 10876, 10364, 9852, 9340, 8828, 8316,
	7932, 7676, 7420, 7164, 6908, 6652, 6396, 6140,
	5884, 5628, 5372, 5116, 4860, 4604, 4348, 4092,
	3900, 3772, 3644, 3516, 3388, 3260, 3132, 3004,
	2876, 2748, 2620, 2492, 2364, 2236, 2108, 1980,
	1884, 1820, 1756, 1692, 1628, 1564, 1500, 1436,
	1372, 1308, 1244, 1180, 1116, 1052, 988, 924,
	876, 844, 812, 780, 748, 716, 684, 652,
	620, 588, 556, 524, 492, 460, 428, 396,
	372, 356, 340, 324, 308, 292, 276, 260,
	244, 228, 212, 196, 180, 164, 148, 132,
	120, 112, 104, 96, 88, 80, 72, 64,
	56, 48, 40, 32, 24, 16, 8, 0,
}

// InsufficientBufferError is returned when a destination buffer can not
// hold the result of a conversion.
type InsufficientBufferError struct {
	Required  int
	Available int
}

func (e *InsufficientBufferError) Error() string {
	return fmt.Sprintf("ulaw: insufficient destination buffer; required %d bytes, available %d",
		e.Required, e.Available)
}

// EncodeSample compresses a single linear sample into μ-law.
func EncodeSample(sample int16) byte {
	// int32 so that -32768 can be negated
	s := int32(sample)
	sign := (s >> 8) & 0x80
	if sign != 0 {
		s = -s
	}
	if s > clip {
		s = clip
	}
	s += bias
	exponent := int32(expLut[(s>>7)&0xFF])
	mantissa := (s >> (exponent + 3)) & 0x0F
	return ^byte(sign | exponent<<4 | mantissa)
}

// DecodeSample expands a single μ-law byte into a linear sample.
func DecodeSample(b byte) int16 {
	return decodeTable[b]
}

// Encode compresses linear samples into μ-law. The result contains one
// byte per sample.
func Encode(src []int16) []byte {
	dst := make([]byte, len(src))
	for i, s := range src {
		dst[i] = EncodeSample(s)
	}
	return dst
}

// Decode expands μ-law bytes into linear samples.
func Decode(src []byte) []int16 {
	dst := make([]int16, len(src))
	for i, b := range src {
		dst[i] = decodeTable[b]
	}
	return dst
}

// EncodeBytes compresses little-endian 16-bit PCM into μ-law. The result
// is half the size of the input.
func EncodeBytes(pcm []byte) []byte {
	dst := make([]byte, len(pcm)/2)
	encode(dst, pcm)
	return dst
}

// DecodeBytes expands μ-law into little-endian 16-bit PCM. The result is
// twice the size of the input.
func DecodeBytes(src []byte) []byte {
	dst := make([]byte, len(src)*2)
	decode(dst, src)
	return dst
}

// EncodeInto compresses little-endian PCM into dst starting at offset.
// Nothing is written if dst can not hold len(pcm)/2 bytes after offset.
func EncodeInto(dst []byte, offset int, pcm []byte) error {
	required := len(pcm) / 2
	if err := checkSize(dst, offset, required); err != nil {
		return err
	}
	encode(dst[offset:offset+required], pcm)
	return nil
}

// DecodeInto expands μ-law into dst starting at offset. Nothing is written
// if dst can not hold len(src)*2 bytes after offset.
func DecodeInto(dst []byte, offset int, src []byte) error {
	required := len(src) * 2
	if err := checkSize(dst, offset, required); err != nil {
		return err
	}
	decode(dst[offset:offset+required], src)
	return nil
}

func checkSize(dst []byte, offset, required int) error {
	available := len(dst) - offset
	if offset < 0 || available < required {
		if available < 0 {
			available = 0
		}
		return &InsufficientBufferError{Required: required, Available: available}
	}
	return nil
}

func encode(dst, pcm []byte) {
	for i := range dst {
		sample := int16(uint16(pcm[i*2]) | uint16(pcm[i*2+1])<<8)
		dst[i] = EncodeSample(sample)
	}
}

func decode(dst, src []byte) {
	for i, b := range src {
		sample := decodeTable[b]
		dst[i*2] = byte(sample)
		dst[i*2+1] = byte(uint16(sample) >> 8)
	}
}

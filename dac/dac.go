// Package dac contains the packet framing and the timing constants of the
// broadcast exciter (DAC). Audio is streamed as 8kHz μ-law in fixed size
// RTP packets carrying a packet counter in a header extension.
package dac

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/dh1tw/edgeAudio/audio"
	"github.com/pion/rtp"
)

// Packet layout
const (
	PacketSize      = 340
	HeaderSize      = 12
	ExtensionSize   = 8
	FrameSize       = 160
	FramesPerPacket = 2
	PayloadSize     = FrameSize * FramesPerPacket
)

const (
	// PayloadTypePCMU is the static RTP payload type of G.711 μ-law.
	PayloadTypePCMU = 0
	// ExtensionProfile identifies the packet counter extension.
	ExtensionProfile = 0xEDAC
)

// Packetizer splits a μ-law stream into DAC packets. A Packetizer keeps
// the sequence number, timestamp and packet counter across calls and is
// not safe for concurrent use.
type Packetizer struct {
	ssrc      uint32
	sequence  uint16
	timestamp uint32
	counter   uint32
}

// NewPacketizer returns a Packetizer for the synchronization source ssrc.
func NewPacketizer(ssrc uint32) *Packetizer {
	return &Packetizer{ssrc: ssrc}
}

// Packetize returns the packets for ulaw. The last payload is padded with
// silence.
func (p *Packetizer) Packetize(ulaw []byte) ([][]byte, error) {

	n := (len(ulaw) + PayloadSize - 1) / PayloadSize
	packets := make([][]byte, 0, n)

	for len(ulaw) > 0 {
		payload := make([]byte, PayloadSize)
		c := copy(payload, ulaw)
		ulaw = ulaw[c:]
		for i := c; i < PayloadSize; i++ {
			payload[i] = audio.SilenceByte
		}

		pkt, err := p.packet(payload)
		if err != nil {
			return nil, err
		}
		packets = append(packets, pkt)
	}

	return packets, nil
}

func (p *Packetizer) packet(payload []byte) ([]byte, error) {

	counter := make([]byte, 4)
	binary.BigEndian.PutUint32(counter, p.counter)

	pkt := rtp.Packet{
		Header: rtp.Header{
			Version:          2,
			PayloadType:      PayloadTypePCMU,
			SequenceNumber:   p.sequence,
			Timestamp:        p.timestamp,
			SSRC:             p.ssrc,
			Extension:        true,
			ExtensionProfile: ExtensionProfile,
		},
		Payload: payload,
	}

	if err := pkt.Header.SetExtension(0, counter); err != nil {
		return nil, err
	}

	data, err := pkt.Marshal()
	if err != nil {
		return nil, err
	}

	if len(data) != PacketSize {
		return nil, fmt.Errorf("dac: invalid packet size %d", len(data))
	}

	p.sequence++
	p.timestamp += PayloadSize
	p.counter++

	return data, nil
}

// Packet is a parsed DAC packet.
type Packet struct {
	Sequence  uint16
	Timestamp uint32
	Counter   uint32
	Payload   []byte
}

// Parse decodes a DAC packet.
func Parse(data []byte) (Packet, error) {

	if len(data) != PacketSize {
		return Packet{}, fmt.Errorf("dac: invalid packet size %d", len(data))
	}

	var pkt rtp.Packet
	if err := pkt.Unmarshal(data); err != nil {
		return Packet{}, err
	}

	if !pkt.Extension || pkt.ExtensionProfile != ExtensionProfile {
		return Packet{}, errors.New("dac: packet counter extension missing")
	}

	ext := pkt.GetExtension(0)
	if len(ext) != 4 {
		return Packet{}, errors.New("dac: invalid packet counter extension")
	}

	return Packet{
		Sequence:  pkt.SequenceNumber,
		Timestamp: pkt.Timestamp,
		Counter:   binary.BigEndian.Uint32(ext),
		Payload:   pkt.Payload,
	}, nil
}

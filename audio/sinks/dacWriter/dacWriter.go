package dacWriter

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/dh1tw/edgeAudio/audio"
	"github.com/dh1tw/edgeAudio/dac"
)

// packetDuration is the audio duration of a single packet.
const packetDuration = time.Second * dac.PayloadSize / audio.Samplerate

// ErrSyncLost is returned by Play if synchronization is required but the
// exciter stopped sending heartbeats.
var ErrSyncLost = errors.New("dac: synchronization lost")

// DacWriter implements the audio.Sink interface and streams μ-law audio
// via UDP to the broadcast exciter. Every datagram received from the
// exciter is treated as a heartbeat.
type DacWriter struct {
	sync.Mutex
	options    Options
	conn       *net.UDPConn
	packetizer *dac.Packetizer
	monitor    *dac.SyncMonitor
	closed     chan struct{}
	wg         sync.WaitGroup
}

// NewDacWriter returns a DacWriter connected to the exciter.
func NewDacWriter(opts ...Option) (*DacWriter, error) {

	w := &DacWriter{
		options: Options{
			Address: "127.0.0.1:5004",
			SSRC:    1,
			Pace:    true,
		},
		closed: make(chan struct{}),
	}

	for _, option := range opts {
		option(&w.options)
	}

	raddr, err := net.ResolveUDPAddr("udp", w.options.Address)
	if err != nil {
		return nil, fmt.Errorf("dacWriter: invalid address %s: %v", w.options.Address, err)
	}

	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("dacWriter: %v", err)
	}

	w.conn = conn
	w.packetizer = dac.NewPacketizer(w.options.SSRC)
	w.monitor = dac.NewSyncMonitor(time.Now())

	w.wg.Add(1)
	go w.readHeartbeats()

	log.Printf("dac output: %s (local %s)\n", raddr, conn.LocalAddr())

	return w, nil
}

// LocalAddr returns the local address heartbeats have to be sent to.
func (w *DacWriter) LocalAddr() net.Addr {
	return w.conn.LocalAddr()
}

// SyncState returns the current synchronization state with the exciter.
func (w *DacWriter) SyncState() dac.SyncState {
	return w.monitor.Check(time.Now())
}

func (w *DacWriter) readHeartbeats() {
	defer w.wg.Done()

	buf := make([]byte, 1500)
	for {
		_, err := w.conn.Read(buf)
		select {
		case <-w.closed:
			return
		default:
		}
		if err != nil {
			// the exciter may not be listening yet (connection refused)
			if w.monitor.RetryDue(time.Now()) {
				log.Printf("dacWriter: waiting for heartbeat: %v\n", err)
			}
			time.Sleep(dac.HeartbeatCycle)
			continue
		}
		w.monitor.Heartbeat(time.Now())
	}
}

// Play sends ulaw to the exciter and returns once all packets have been
// sent. With pacing enabled, Play returns once the audio has been played.
func (w *DacWriter) Play(ctx context.Context, ulaw []byte) error {
	w.Lock()
	defer w.Unlock()

	if w.options.RequireSync && w.monitor.Check(time.Now()) == dac.Lost {
		return ErrSyncLost
	}

	packets, err := w.packetizer.Packetize(ulaw)
	if err != nil {
		return err
	}

	var ticker *time.Ticker
	if w.options.Pace {
		ticker = time.NewTicker(packetDuration)
		defer ticker.Stop()
	}

	for i, pkt := range packets {
		if _, err := w.conn.Write(pkt); err != nil {
			return fmt.Errorf("dacWriter: packet %d of %d: %v", i+1, len(packets), err)
		}
		if ticker == nil {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}

	return nil
}

// Close shuts down the connection to the exciter.
func (w *DacWriter) Close() error {
	select {
	case <-w.closed:
		return nil
	default:
	}
	close(w.closed)
	err := w.conn.Close()
	w.wg.Wait()
	return err
}

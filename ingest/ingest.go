// Package ingest feeds the broadcast scheduler with messages and
// playlists received via NATS.
package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/dh1tw/edgeAudio/broadcast"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// Target receives the decoded messages and playlists. It is implemented
// by *broadcast.Scheduler.
type Target interface {
	AddMessage(broadcast.Message)
	AddPlaylist(broadcast.Playlist)
}

// NatsSource subscribes to the message and playlist subjects.
type NatsSource struct {
	sync.Mutex
	options Options
	target  Target
	conn    *nats.Conn
	subs    []*nats.Subscription
}

// NewNatsSource returns a NatsSource delivering into target.
func NewNatsSource(target Target, opts ...Option) *NatsSource {
	s := &NatsSource{
		options: Options{
			SubjectPrefix: "edge.audio",
			NatsOptions:   nats.GetDefaultOptions(),
		},
		target: target,
	}

	for _, option := range opts {
		option(&s.options)
	}

	return s
}

// MessageSubject returns the subject on which messages are received.
func (s *NatsSource) MessageSubject() string {
	return s.options.SubjectPrefix + ".message"
}

// PlaylistSubject returns the subject on which playlists are received.
func (s *NatsSource) PlaylistSubject() string {
	return s.options.SubjectPrefix + ".playlist"
}

// StateSubject returns the subject on which the state is published.
func (s *NatsSource) StateSubject() string {
	return s.options.SubjectPrefix + ".state"
}

// Connect connects to the broker and subscribes to the subjects.
func (s *NatsSource) Connect() error {
	s.Lock()
	defer s.Unlock()

	nopts := s.options.NatsOptions
	nopts.DisconnectedErrCB = func(conn *nats.Conn, err error) {
		log.Printf("ingest: disconnected from nats broker: %v\n", err)
	}
	nopts.ReconnectedCB = func(conn *nats.Conn) {
		log.Printf("ingest: reconnected to nats broker %s\n", conn.ConnectedUrl())
	}

	conn, err := nopts.Connect()
	if err != nil {
		return fmt.Errorf("ingest: unable to connect to %v: %v", nopts.Servers, err)
	}

	msgSub, err := conn.Subscribe(s.MessageSubject(), s.handleMessage)
	if err != nil {
		conn.Close()
		return fmt.Errorf("ingest: subscribe %s: %v", s.MessageSubject(), err)
	}

	plSub, err := conn.Subscribe(s.PlaylistSubject(), s.handlePlaylist)
	if err != nil {
		conn.Close()
		return fmt.Errorf("ingest: subscribe %s: %v", s.PlaylistSubject(), err)
	}

	s.conn = conn
	s.subs = []*nats.Subscription{msgSub, plSub}

	log.Printf("ingest: listening on %s and %s\n", s.MessageSubject(), s.PlaylistSubject())

	return nil
}

// PublishState publishes the scheduler state. It can be used as a
// broadcast.StateChanged callback.
func (s *NatsSource) PublishState(st broadcast.State) {
	s.Lock()
	conn := s.conn
	s.Unlock()

	if conn == nil {
		return
	}

	data, err := json.Marshal(st)
	if err != nil {
		log.Println("ingest:", err)
		return
	}

	if err := conn.Publish(s.StateSubject(), data); err != nil {
		log.Println("ingest: publish state:", err)
	}
}

// Close unsubscribes and closes the connection.
func (s *NatsSource) Close() {
	s.Lock()
	defer s.Unlock()

	for _, sub := range s.subs {
		if err := sub.Unsubscribe(); err != nil {
			log.Println("ingest:", err)
		}
	}
	s.subs = nil

	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}

func (s *NatsSource) handleMessage(m *nats.Msg) {
	msg, err := DecodeMessage(m.Data)
	if err != nil {
		log.Printf("ingest: dropping message on %s: %v\n", m.Subject, err)
		return
	}
	s.target.AddMessage(msg)
}

func (s *NatsSource) handlePlaylist(m *nats.Msg) {
	p, err := DecodePlaylist(m.Data)
	if err != nil {
		log.Printf("ingest: dropping playlist on %s: %v\n", m.Subject, err)
		return
	}
	s.target.AddPlaylist(p)
}

// DecodeMessage decodes a JSON encoded message.
func DecodeMessage(data []byte) (broadcast.Message, error) {
	var msg broadcast.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, err
	}
	if msg.ID == "" {
		return msg, errors.New("message id missing")
	}
	return msg, nil
}

// DecodePlaylist decodes a JSON encoded playlist. Playlists without a
// trace id get a random one.
func DecodePlaylist(data []byte) (broadcast.Playlist, error) {
	var p broadcast.Playlist
	if err := json.Unmarshal(data, &p); err != nil {
		return p, err
	}
	for i, id := range p.MessageIDs {
		if id == "" {
			return p, fmt.Errorf("empty message id at position %d", i)
		}
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return p, nil
}

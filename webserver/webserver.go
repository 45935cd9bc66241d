// Package webserver exposes the state of the broadcast scheduler through
// a small REST api, a websocket push channel and the prometheus metrics.
package webserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"sync"
	"time"

	"github.com/dh1tw/edgeAudio/broadcast"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
)

var upgrader = websocket.Upgrader{}

// StateSource provides snapshots of the broadcast scheduler. It is
// implemented by *broadcast.Scheduler.
type StateSource interface {
	State() broadcast.State
	Playlist(broadcast.ChannelName) *broadcast.Playlist
}

// Option is the type for a function option
type Option func(*Options)

// Options contains the parameters of the WebServer.
type Options struct {
	Address  string
	Port     int
	Gatherer prometheus.Gatherer
}

// Address is a functional option to set the listening address.
func Address(addr string) Option {
	return func(args *Options) {
		args.Address = addr
	}
}

// Port is a functional option to set the listening port.
func Port(port int) Option {
	return func(args *Options) {
		args.Port = port
	}
}

// Gatherer is a functional option to set the prometheus gatherer served
// on /metrics. Without a gatherer /metrics is not available.
func Gatherer(g prometheus.Gatherer) Option {
	return func(args *Options) {
		args.Gatherer = g
	}
}

// WebServer serves the status api.
type WebServer struct {
	options    Options
	router     *mux.Router
	apiVersion string
	apiMatch   *regexp.Regexp
	source     StateSource
	muClients  sync.Mutex
	clients    map[*wsClient]bool
}

// NewWebServer returns a WebServer reading its state from source.
func NewWebServer(source StateSource, opts ...Option) *WebServer {
	web := &WebServer{
		options: Options{
			Address: "127.0.0.1",
			Port:    9090,
		},
		router:     mux.NewRouter().StrictSlash(true),
		apiVersion: "1.0",
		apiMatch:   regexp.MustCompile(`api\/v\d\.\d\/`),
		source:     source,
		clients:    make(map[*wsClient]bool),
	}

	for _, option := range opts {
		option(&web.options)
	}

	web.routes()

	return web
}

// Handler returns the http.Handler of the WebServer.
func (web *WebServer) Handler() http.Handler {
	return web.apiRedirectRouter(web.router)
}

// ListenAndServe serves http requests until ctx is cancelled.
func (web *WebServer) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", web.options.Address, web.options.Port),
		Handler:           web.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("webserver: listening on %s\n", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	web.closeWsClients()
	return srv.Shutdown(shutdownCtx)
}

// Update pushes the state to all connected websocket clients. It can be
// used as a broadcast.StateChanged callback.
func (web *WebServer) Update(st broadcast.State) {
	data, err := json.Marshal(st)
	if err != nil {
		log.Println("webserver:", err)
		return
	}

	web.muClients.Lock()
	defer web.muClients.Unlock()

	for c := range web.clients {
		select {
		case c.send <- data:
		default:
			// slow client; the next update supersedes this one
		}
	}
}

func (web *WebServer) addWsClient(c *wsClient) {
	web.muClients.Lock()
	web.clients[c] = true
	web.muClients.Unlock()
	log.Printf("webserver: websocket client %s connected\n", c.ws.RemoteAddr())
}

func (web *WebServer) removeWsClient(c *wsClient) {
	web.muClients.Lock()
	defer web.muClients.Unlock()
	if _, ok := web.clients[c]; ok {
		delete(web.clients, c)
		close(c.send)
		log.Printf("webserver: websocket client %s disconnected\n", c.ws.RemoteAddr())
	}
}

func (web *WebServer) closeWsClients() {
	web.muClients.Lock()
	defer web.muClients.Unlock()
	for c := range web.clients {
		delete(web.clients, c)
		close(c.send)
	}
}

type wsClient struct {
	ws           *websocket.Conn
	send         chan []byte
	removeClient func(*wsClient)
}

func (c *wsClient) write() {
	defer c.ws.Close()

	for msg := range c.send {
		c.ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	c.ws.WriteMessage(websocket.CloseMessage, []byte{})
}

// read discards incoming messages; it only detects when the peer goes away.
func (c *wsClient) read() {
	defer c.removeClient(c)

	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			return
		}
	}
}

package webserver

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/dh1tw/edgeAudio/broadcast"
	"github.com/gorilla/mux"
)

func (web *WebServer) webSocketHdlr(w http.ResponseWriter, req *http.Request) {

	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		log.Printf("webserver: unable to open ws for %v\n", req.RemoteAddr)
		return
	}

	wsClient := &wsClient{
		ws:           conn,
		send:         make(chan []byte, 8),
		removeClient: web.removeWsClient,
	}

	data, err := json.Marshal(web.source.State())
	if err == nil {
		wsClient.send <- data
	}

	web.addWsClient(wsClient)

	go wsClient.write()
	go wsClient.read()
}

func (web *WebServer) statusHdlr(w http.ResponseWriter, req *http.Request) {
	defer req.Body.Close()
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")

	if err := json.NewEncoder(w).Encode(web.source.State()); err != nil {
		log.Println(err)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("500 - unable to encode state"))
	}
}

func (web *WebServer) playlistHdlr(w http.ResponseWriter, req *http.Request) {
	defer req.Body.Close()
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")

	ch := broadcast.ChannelName(mux.Vars(req)["channel"])
	if ch != broadcast.Normal && ch != broadcast.Interrupt {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(fmt.Sprintf("404 - unknown channel %s", ch)))
		return
	}

	p := web.source.Playlist(ch)
	if p == nil {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(fmt.Sprintf("404 - no playlist on channel %s", ch)))
		return
	}

	if err := json.NewEncoder(w).Encode(p); err != nil {
		log.Println(err)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("500 - unable to encode playlist"))
	}
}

package webserver

import "github.com/prometheus/client_golang/prometheus/promhttp"

func (web *WebServer) routes() {
	web.router.HandleFunc("/api/v1.0/status", web.statusHdlr).Methods("GET")
	web.router.HandleFunc("/api/v1.0/playlists/{channel}", web.playlistHdlr).Methods("GET")
	web.router.HandleFunc("/ws", web.webSocketHdlr)
	if web.options.Gatherer != nil {
		web.router.Handle("/metrics", promhttp.HandlerFor(web.options.Gatherer, promhttp.HandlerOpts{}))
	}
}

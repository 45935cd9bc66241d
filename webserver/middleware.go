package webserver

import (
	"net/http"
	"strings"
)

// apiRedirectRouter is an http middleware which adds the current api
// version to unversioned api calls (/api/status -> /api/v1.0/status).
// This avoids an http.Redirect and a second round trip.
func (web *WebServer) apiRedirectRouter(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {

		if strings.HasPrefix(req.URL.Path, "/api/") && !web.apiMatch.MatchString(req.URL.Path) {
			req.URL.Path = strings.Replace(req.URL.Path, "/api/", "/api/v"+web.apiVersion+"/", 1)
		}
		next.ServeHTTP(w, req)
	})
}

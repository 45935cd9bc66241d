package webserver

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dh1tw/edgeAudio/broadcast"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	state     broadcast.State
	playlists map[broadcast.ChannelName]*broadcast.Playlist
}

func (f *fakeSource) State() broadcast.State { return f.state }

func (f *fakeSource) Playlist(ch broadcast.ChannelName) *broadcast.Playlist {
	return f.playlists[ch]
}

func newTestServer(t *testing.T, opts ...Option) (*WebServer, *httptest.Server) {
	src := &fakeSource{
		state: broadcast.State{Running: "normal", LastPlayed: "m1"},
		playlists: map[broadcast.ChannelName]*broadcast.Playlist{
			broadcast.Normal: {ID: "trace-1", MessageIDs: []string{"m1", "m2"}},
		},
	}
	web := NewWebServer(src, opts...)
	ts := httptest.NewServer(web.Handler())
	t.Cleanup(ts.Close)
	return web, ts
}

func get(t *testing.T, url string) (int, string) {
	res, err := http.Get(url)
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res.StatusCode, string(body)
}

func TestStatus(t *testing.T) {
	_, ts := newTestServer(t)

	code, body := get(t, ts.URL+"/api/v1.0/status")
	require.Equal(t, http.StatusOK, code)

	var st broadcast.State
	require.NoError(t, json.Unmarshal([]byte(body), &st))
	assert.Equal(t, "normal", st.Running)
	assert.Equal(t, "m1", st.LastPlayed)
}

func TestAPIVersionRedirect(t *testing.T) {
	_, ts := newTestServer(t)

	code, _ := get(t, ts.URL+"/api/status")
	assert.Equal(t, http.StatusOK, code)
}

func TestPlaylist(t *testing.T) {
	_, ts := newTestServer(t)

	code, body := get(t, ts.URL+"/api/v1.0/playlists/normal")
	require.Equal(t, http.StatusOK, code)
	var p broadcast.Playlist
	require.NoError(t, json.Unmarshal([]byte(body), &p))
	assert.Equal(t, "trace-1", p.ID)
	assert.Equal(t, []string{"m1", "m2"}, p.MessageIDs)

	code, _ = get(t, ts.URL+"/api/v1.0/playlists/interrupt")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = get(t, ts.URL+"/api/v1.0/playlists/other")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "edgeaudio_test_total"})
	reg.MustRegister(c)
	c.Inc()

	_, ts := newTestServer(t, Gatherer(reg))
	code, body := get(t, ts.URL+"/metrics")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "edgeaudio_test_total 1")

	_, ts = newTestServer(t)
	code, _ = get(t, ts.URL+"/metrics")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestWebSocketPush(t *testing.T) {
	web, ts := newTestServer(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var st broadcast.State
	require.NoError(t, conn.ReadJSON(&st))
	assert.Equal(t, "m1", st.LastPlayed)

	require.Eventually(t, func() bool {
		web.muClients.Lock()
		defer web.muClients.Unlock()
		return len(web.clients) == 1
	}, time.Second, 10*time.Millisecond)

	web.Update(broadcast.State{Running: "interrupt", LastPlayed: "i1"})

	require.NoError(t, conn.ReadJSON(&st))
	assert.Equal(t, "interrupt", st.Running)
	assert.Equal(t, "i1", st.LastPlayed)

	conn.Close()
	assert.Eventually(t, func() bool {
		web.muClients.Lock()
		defer web.muClients.Unlock()
		return len(web.clients) == 0
	}, time.Second, 10*time.Millisecond)
}

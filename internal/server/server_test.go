package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/konfevgas/web-gis-project/internal/config"
	"github.com/konfevgas/web-gis-project/internal/service"
)

func newTestServer(t *testing.T, cfg Config) (*Server, *httptest.Server) {
	t.Helper()
	srv, err := New(cfg)
	require.NoError(t, err)
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})
	return srv, ts
}

func post(t *testing.T, url string, signals map[string]any) *http.Response {
	t.Helper()
	b, err := json.Marshal(signals)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", strings.NewReader(string(b)))
	require.NoError(t, err)
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return resp
}

func TestNewRejectsInvalidMap(t *testing.T) {
	m := config.Default()
	m.Basemaps[1].Visible = true

	_, err := New(Config{Map: m, NoDB: true})
	assert.Error(t, err)
}

func TestNewBindsControls(t *testing.T) {
	srv, err := New(Config{NoDB: true})
	require.NoError(t, err)
	defer srv.Close()

	osm, ok := srv.Board().Element("osm-toggle")
	require.True(t, ok)
	assert.True(t, osm.Checked)

	hover, ok := srv.Board().Element("coord-text")
	require.True(t, ok)
	assert.Empty(t, hover.Text)

	clicked, ok := srv.Board().Element("clicked-coordinates")
	require.True(t, ok)
	assert.Equal(t, "-, -", clicked.Text)
}

func TestViewerChange(t *testing.T) {
	srv, ts := newTestServer(t, Config{NoDB: true})

	resp := post(t, ts.URL+"/api/v1/viewer/change", map[string]any{"control": "districts-toggle", "checked": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream"))

	districts, _ := srv.Session().Layer("districts")
	assert.True(t, districts.Visible)

	post(t, ts.URL+"/api/v1/viewer/change", map[string]any{"control": "carto-toggle", "checked": true})
	assert.Equal(t, "carto", srv.Session().ActiveBasemap())

	osm, _ := srv.Board().Element("osm-toggle")
	assert.False(t, osm.Checked)

	resp = post(t, ts.URL+"/api/v1/viewer/change", map[string]any{"checked": true})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestViewerClickAndPress(t *testing.T) {
	srv, ts := newTestServer(t, Config{NoDB: true})

	// Lund in EPSG:3857
	resp := post(t, ts.URL+"/api/v1/viewer/click", map[string]any{"x": 1468370.875, "y": 7504400.0})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	r, f := srv.Session().Marker()
	assert.True(t, r.Placed)
	assert.NotNil(t, f)
	clicked, _ := srv.Board().Element("clicked-coordinates")
	assert.True(t, strings.HasPrefix(clicked.Text, "Clicked Coordinates: Lat/Lon: "))

	resp = post(t, ts.URL+"/api/v1/viewer/hover", map[string]any{"x": 0.0, "y": 0.0})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	hover, _ := srv.Board().Element("coord-text")
	assert.Equal(t, "0.0000, 0.0000", hover.Text)

	resp = post(t, ts.URL+"/api/v1/viewer/press", map[string]any{"control": "remove-marker"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	r, f = srv.Session().Marker()
	assert.False(t, r.Placed)
	assert.Nil(t, f)

	resp = post(t, ts.URL+"/api/v1/viewer/hover", map[string]any{"x": 1.0})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestViewerEvents(t *testing.T) {
	srv, ts := newTestServer(t, Config{NoDB: true})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/v1/viewer/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	lines := bufio.NewScanner(resp.Body)
	waitFor := func(substr string) {
		t.Helper()
		for lines.Scan() {
			if strings.Contains(lines.Text(), substr) {
				return
			}
		}
		t.Fatalf("stream ended before %q", substr)
	}

	waitFor(`"_basemap":"osm"`)

	require.Eventually(t, func() bool {
		return srv.Session().Events().Subscribers() > 0
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, srv.Session().SelectBasemap("google"))
	waitFor(`"_basemap":"google"`)
	waitFor("map-changed")
}

func TestCopyWaitsForThePage(t *testing.T) {
	srv, ts := newTestServer(t, Config{NoDB: true})
	srv.Session().Click(service.FromLonLat(orb.Point{13.1906, 55.706}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/v1/viewer/events", nil)
	require.NoError(t, err)
	stream, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer stream.Body.Close()

	require.Eventually(t, func() bool {
		return srv.Session().Events().Subscribers() > 0
	}, time.Second, 10*time.Millisecond)

	copied := make(chan *http.Response, 1)
	go func() {
		resp, err := http.Post(ts.URL+"/api/v1/marker/copy", "application/json", nil)
		if err == nil {
			copied <- resp
		}
	}()

	script := regexp.MustCompile(`webmap\.copy\("([^"]+)","55\.7060000, 13\.1906000","/api/v1/viewer/clipboard"\)`)
	var id string
	lines := bufio.NewScanner(stream.Body)
	for id == "" && lines.Scan() {
		if m := script.FindStringSubmatch(lines.Text()); m != nil {
			id = m[1]
		}
	}
	require.NotEmpty(t, id)

	select {
	case resp := <-copied:
		resp.Body.Close()
		t.Fatalf("copy answered %d before the page confirmed", resp.StatusCode)
	case <-time.After(50 * time.Millisecond):
	}

	resp := post(t, ts.URL+"/api/v1/viewer/clipboard", map[string]any{"id": id, "ok": true})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	select {
	case resp := <-copied:
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var body map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "55.7060000, 13.1906000", body["copied"])
	case <-time.After(2 * time.Second):
		t.Fatal("copy did not finish")
	}

	resp = post(t, ts.URL+"/api/v1/viewer/clipboard", map[string]any{"id": id, "ok": true})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestInfo(t *testing.T) {
	_, ts := newTestServer(t, Config{NoDB: true, DataDir: "data"})

	resp, err := http.Get(ts.URL + "/api/v1/info")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "web-gis-project", body["name"])
	assert.Equal(t, false, body["db"])
}

func TestCatalog(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	resp, err := http.Get(ts.URL + "/api/v1/catalog")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Layers []struct {
			ID string `json:"id"`
		} `json:"layers"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Layers, 11)
	assert.Equal(t, "osm", body.Layers[0].ID)
}

func TestQueryIsConfinedToTheCatalog(t *testing.T) {
	dir := t.TempDir()
	secret := filepath.Join(dir, "hostname")
	require.NoError(t, os.WriteFile(secret, []byte("vm\n"), 0o600))

	_, ts := newTestServer(t, Config{DataDir: dir})

	query := func(q string) (int, map[string]any) {
		t.Helper()
		b, err := json.Marshal(map[string]string{"query": q})
		require.NoError(t, err)
		resp, err := http.Post(ts.URL+"/api/v1/query", "application/json", strings.NewReader(string(b)))
		require.NoError(t, err)
		defer resp.Body.Close()
		var body map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		return resp.StatusCode, body
	}

	code, _ := query("SELECT content FROM read_text('" + secret + "')")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = query("SELECT * FROM read_csv('" + secret + "')")
	assert.Equal(t, http.StatusBadRequest, code)

	code, body := query("SELECT ';' AS s")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{map[string]any{"s": ";"}}, body["rows"])

	code, _ = query("SELECT 1; DELETE FROM layers")
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	code, body = query("SELECT count(*) AS n FROM layers")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{map[string]any{"n": float64(11)}}, body["rows"])
}

func TestRootWithoutTemplates(t *testing.T) {
	_, ts := newTestServer(t, Config{NoDB: true})

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Values("Link"))

	page, err := http.Get(ts.URL + "/viewer")
	require.NoError(t, err)
	page.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, page.StatusCode)
}

func TestViewerPage(t *testing.T) {
	_, ts := newTestServer(t, Config{NoDB: true, WebDir: "../../web"})

	resp, err := http.Get(ts.URL + "/viewer")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	html := string(b)
	for _, id := range []string{"osm-toggle", "districts-toggle", "remove-marker", "copy-coordinates", "coord-text", "clicked-coordinates"} {
		assert.Contains(t, html, `id="`+id+`"`)
	}
	assert.Contains(t, html, "/api/v1/viewer/events")

	static, err := http.Get(ts.URL + "/static/viewer.js")
	require.NoError(t, err)
	static.Body.Close()
	assert.Equal(t, http.StatusOK, static.StatusCode)
}

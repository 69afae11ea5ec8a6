package service

import (
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/paulmach/orb/maptile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/konfevgas/web-gis-project/internal/config"
)

func TestMakeWMSLayer(t *testing.T) {
	gs := config.GeoServer{URL: config.DefaultGeoServerURL, Workspace: "lund_web_mapping", Tiled: true}

	l := MakeWMSLayer(gs, "roads_all_wgs84")
	assert.Equal(t, "roads_all_wgs84", l.ID)
	assert.Equal(t, GroupOverlay, l.Group)
	assert.False(t, l.Visible)
	assert.Equal(t, SourceWMS, l.Source.Kind)
	assert.Equal(t, "http://localhost:8080/geoserver/wms", l.Source.URL)
	assert.Equal(t, map[string]string{
		"LAYERS": "lund_web_mapping:roads_all_wgs84",
		"TILED":  "true",
	}, l.Source.Params)

	styled := MakeWMSLayer(gs, "districts_wgs84", WithStyle("district_outline"), WithVisible(true), WithID("districts"))
	assert.Equal(t, "districts", styled.ID)
	assert.True(t, styled.Visible)
	assert.Equal(t, "district_outline", styled.Source.Params["STYLES"])
}

func TestLayersFromConfig(t *testing.T) {
	layers := LayersFromConfig(config.Default())
	require.Len(t, layers, 11)

	assert.Equal(t, "osm", layers[0].ID)
	assert.Equal(t, GroupBasemap, layers[0].Group)
	assert.Equal(t, 19, layers[0].Source.MaxZoom)
	assert.Equal(t, "addresses", layers[3].ID)
	assert.Equal(t, "addresses-toggle", layers[3].Control)
	assert.Equal(t, "lund_web_mapping:roads_throug_wgs84", layers[9].Source.Params[ParamLayers])
}

func TestTileURL(t *testing.T) {
	tile := maptile.New(1099, 641, 11)

	osm := Source{Kind: SourceTile, URL: "https://tile.openstreetmap.org/{z}/{x}/{y}.png"}
	assert.Equal(t, "https://tile.openstreetmap.org/11/1099/641.png", osm.TileURL(tile))

	carto := Source{Kind: SourceTile, URL: "https://{a-d}.basemaps.cartocdn.com/light_all/{z}/{x}/{y}.png"}
	// (1099+641) % 4 == 0
	assert.Equal(t, "https://a.basemaps.cartocdn.com/light_all/11/1099/641.png", carto.TileURL(tile))

	google := Source{Kind: SourceTile, URL: "https://mt{0-3}.google.com/vt/lyrs=m&x={x}&y={y}&z={z}"}
	assert.Equal(t, "https://mt1.google.com/vt/lyrs=m&x=1&y=0&z=1", google.TileURL(maptile.New(1, 0, 1)))

	osmS := Source{Kind: SourceTile, URL: "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png"}
	// 1740 % 3 == 0
	assert.Equal(t, "https://a.tile.openstreetmap.org/11/1099/641.png", osmS.TileURL(tile))
	assert.Equal(t, "https://b.tile.openstreetmap.org/1/1/0.png", osmS.TileURL(maptile.New(1, 0, 1)))

	tms := Source{Kind: SourceTile, URL: "https://example.com/{z}/{x}/{-y}.png"}
	assert.Equal(t, "https://example.com/2/1/2.png", tms.TileURL(maptile.New(1, 1, 2)))
}

func TestGetMapURL(t *testing.T) {
	gs := config.GeoServer{URL: "http://localhost:8080/geoserver/wms", Workspace: "lund_web_mapping", Tiled: true}
	l := MakeWMSLayer(gs, "addresses_wgs84", WithStyle("points"))

	raw, err := l.Source.GetMapURL(maptile.New(0, 0, 0), 256)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "/geoserver/wms", u.Path)
	assert.Equal(t, "GetMap", q.Get("REQUEST"))
	assert.Equal(t, "lund_web_mapping:addresses_wgs84", q.Get("LAYERS"))
	assert.Equal(t, "points", q.Get("STYLES"))
	assert.Equal(t, "true", q.Get("TILED"))
	assert.Equal(t, "EPSG:3857", q.Get("CRS"))
	assert.Equal(t, "256", q.Get("WIDTH"))

	parts := strings.Split(q.Get("BBOX"), ",")
	require.Len(t, parts, 4)
	const extent = 20037508.342789244
	want := []float64{-extent, -extent, extent, extent}
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		require.NoError(t, err)
		assert.InDelta(t, want[i], v, 0.01)
	}
}

func TestGetMapURLOnTileSource(t *testing.T) {
	_, err := Source{Kind: SourceTile, URL: "https://tile.openstreetmap.org/{z}/{x}/{y}.png"}.GetMapURL(maptile.New(0, 0, 0), 256)
	assert.Error(t, err)
}

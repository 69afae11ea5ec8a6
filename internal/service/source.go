package service

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/project"

	"github.com/konfevgas/web-gis-project/internal/config"
)

// WMS parameter names set on overlay sources.
const (
	ParamLayers = "LAYERS"
	ParamTiled  = "TILED"
	ParamStyles = "STYLES"
)

// LayerOption customizes a layer built by MakeWMSLayer or MakeTileLayer.
type LayerOption func(*Layer)

// WithStyle sets the WMS STYLES parameter.
func WithStyle(style string) LayerOption {
	return func(l *Layer) {
		if style == "" {
			return
		}
		if l.Source.Params == nil {
			l.Source.Params = map[string]string{}
		}
		l.Source.Params[ParamStyles] = style
	}
}

// WithVisible sets the initial visibility flag.
func WithVisible(visible bool) LayerOption {
	return func(l *Layer) { l.Visible = visible }
}

// WithID overrides the layer id.
func WithID(id string) LayerOption {
	return func(l *Layer) { l.ID = id }
}

// WithTitle sets the display name.
func WithTitle(title string) LayerOption {
	return func(l *Layer) { l.Title = title }
}

// WithControl sets the bound document control id.
func WithControl(control string) LayerOption {
	return func(l *Layer) { l.Control = control }
}

// MakeWMSLayer builds a hidden overlay layer for a GeoServer layer name.
// The LAYERS parameter is qualified with the workspace and TILED follows the
// GeoServer configuration. The id defaults to the layer name.
func MakeWMSLayer(gs config.GeoServer, layerName string, opts ...LayerOption) Layer {
	l := Layer{
		ID:    layerName,
		Title: layerName,
		Group: GroupOverlay,
		Source: Source{
			Kind: SourceWMS,
			URL:  gs.URL,
			Params: map[string]string{
				ParamLayers: gs.QualifiedLayer(layerName),
				ParamTiled:  strconv.FormatBool(gs.Tiled),
			},
		},
	}
	for _, opt := range opts {
		opt(&l)
	}
	return l
}

// MakeTileLayer builds a hidden basemap layer from a tile URL template.
func MakeTileLayer(id, template string, opts ...LayerOption) Layer {
	l := Layer{
		ID:     id,
		Title:  id,
		Group:  GroupBasemap,
		Source: Source{Kind: SourceTile, URL: template},
	}
	for _, opt := range opts {
		opt(&l)
	}
	return l
}

// LayersFromConfig builds the basemap and overlay layers described by m,
// basemaps first, each group in configuration order.
func LayersFromConfig(m *config.Map) []Layer {
	layers := make([]Layer, 0, len(m.Basemaps)+len(m.Overlays))
	for _, b := range m.Basemaps {
		l := MakeTileLayer(b.ID, b.URL,
			WithTitle(b.Title),
			WithControl(b.Control),
			WithVisible(b.Visible),
		)
		l.Source.Attribution = b.Attribution
		l.Source.MaxZoom = b.MaxZoom
		layers = append(layers, l)
	}
	for _, o := range m.Overlays {
		layers = append(layers, MakeWMSLayer(m.GeoServer, o.Layer,
			WithID(o.ID),
			WithTitle(o.Title),
			WithControl(o.Control),
			WithStyle(o.Style),
			WithVisible(o.Visible),
		))
	}
	return layers
}

// TileURL expands a tile template for t. It understands {z}, {x}, {y},
// {-y} (TMS row), {s} (subdomains a, b and c) and ranges such as {a-d} or
// {0-3}; the subdomain is picked from the tile position so a tile always
// maps to the same host.
func (s Source) TileURL(t maptile.Tile) string {
	u := s.URL
	u = strings.ReplaceAll(u, "{z}", strconv.FormatUint(uint64(t.Z), 10))
	u = strings.ReplaceAll(u, "{x}", strconv.FormatUint(uint64(t.X), 10))
	u = strings.ReplaceAll(u, "{y}", strconv.FormatUint(uint64(t.Y), 10))
	if strings.Contains(u, "{-y}") {
		tms := (uint64(1) << uint(t.Z)) - 1 - uint64(t.Y)
		u = strings.ReplaceAll(u, "{-y}", strconv.FormatUint(tms, 10))
	}
	n := int(t.X + t.Y)
	u = strings.ReplaceAll(u, "{s}", string("abc"[n%3]))
	return expandRange(u, n)
}

// expandRange replaces the first {a-c} style range with the member at
// index n modulo the range length.
func expandRange(u string, n int) string {
	open := strings.IndexByte(u, '{')
	if open < 0 {
		return u
	}
	end := strings.IndexByte(u[open:], '}')
	if end != 4 || u[open+2] != '-' {
		return u
	}
	lo, hi := u[open+1], u[open+3]
	if hi < lo {
		return u
	}
	member := lo + byte(n%int(hi-lo+1))
	return u[:open] + string(member) + u[open+end+1:]
}

// GetMapURL returns the WMS GetMap request covering the web-mercator tile t
// at size×size pixels.
func (s Source) GetMapURL(t maptile.Tile, size int) (string, error) {
	if s.Kind != SourceWMS {
		return "", fmt.Errorf("GetMap on %s source", s.Kind)
	}

	base, err := url.Parse(s.URL)
	if err != nil {
		return "", fmt.Errorf("parsing WMS endpoint: %w", err)
	}

	b := t.Bound()
	lo := project.Point(b.Min, project.WGS84.ToMercator)
	hi := project.Point(b.Max, project.WGS84.ToMercator)

	q := base.Query()
	q.Set("SERVICE", "WMS")
	q.Set("VERSION", "1.3.0")
	q.Set("REQUEST", "GetMap")
	q.Set("FORMAT", "image/png")
	q.Set("TRANSPARENT", "true")
	q.Set("CRS", "EPSG:3857")
	q.Set("BBOX", formatBBox(lo, hi))
	q.Set("WIDTH", strconv.Itoa(size))
	q.Set("HEIGHT", strconv.Itoa(size))
	q.Set(ParamStyles, "")
	for k, v := range s.Params {
		q.Set(k, v)
	}
	base.RawQuery = q.Encode()
	return base.String(), nil
}

func formatBBox(lo, hi orb.Point) string {
	parts := []string{
		strconv.FormatFloat(lo[0], 'f', 6, 64),
		strconv.FormatFloat(lo[1], 'f', 6, 64),
		strconv.FormatFloat(hi[0], 'f', 6, 64),
		strconv.FormatFloat(hi[1], 'f', 6, 64),
	}
	return strings.Join(parts, ",")
}

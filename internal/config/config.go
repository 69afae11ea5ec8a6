// Package config loads the map configuration: the GeoServer endpoint, the
// initial view, and the basemap and overlay layers with their UI controls.
//
// A configuration file is optional. Without one the built-in Lund project
// map from [Default] is used.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Map is the complete declarative description of one web map.
type Map struct {
	GeoServer GeoServer `yaml:"geoserver" toml:"geoserver" json:"geoserver"`
	View      View      `yaml:"view" toml:"view" json:"view"`
	Basemaps  []Basemap `yaml:"basemaps" toml:"basemaps" json:"basemaps"`
	Overlays  []Overlay `yaml:"overlays" toml:"overlays" json:"overlays"`
	Controls  Controls  `yaml:"controls" toml:"controls" json:"controls"`
}

// GeoServer holds the WMS endpoint the overlays are served from.
type GeoServer struct {
	URL       string `yaml:"url" toml:"url" json:"url"`
	Workspace string `yaml:"workspace" toml:"workspace" json:"workspace"`
	Tiled     bool   `yaml:"tiled" toml:"tiled" json:"tiled"`
}

// View is the initial map view. Center is longitude, latitude in degrees.
type View struct {
	Center [2]float64 `yaml:"center" toml:"center" json:"center"`
	Zoom   float64    `yaml:"zoom" toml:"zoom" json:"zoom"`
}

// Basemap is a tiled background layer bound to one radio control.
type Basemap struct {
	ID          string `yaml:"id" toml:"id" json:"id"`
	Title       string `yaml:"title" toml:"title" json:"title"`
	Control     string `yaml:"control" toml:"control" json:"control"`
	URL         string `yaml:"url" toml:"url" json:"url"`
	Attribution string `yaml:"attribution" toml:"attribution" json:"attribution"`
	MaxZoom     int    `yaml:"maxZoom" toml:"max_zoom" json:"maxZoom"`
	Visible     bool   `yaml:"visible" toml:"visible" json:"visible"`
}

// Overlay is a GeoServer WMS layer bound to one checkbox control.
// Layer is the name inside the workspace, without the workspace prefix.
type Overlay struct {
	ID      string `yaml:"id" toml:"id" json:"id"`
	Title   string `yaml:"title" toml:"title" json:"title"`
	Control string `yaml:"control" toml:"control" json:"control"`
	Layer   string `yaml:"layer" toml:"layer" json:"layer"`
	Style   string `yaml:"style" toml:"style" json:"style"`
	Visible bool   `yaml:"visible" toml:"visible" json:"visible"`
}

// Controls names the document elements used by the marker feature.
type Controls struct {
	RemoveMarker    string `yaml:"removeMarker" toml:"remove_marker" json:"removeMarker"`
	CopyCoordinates string `yaml:"copyCoordinates" toml:"copy_coordinates" json:"copyCoordinates"`
	HoverText       string `yaml:"hoverText" toml:"hover_text" json:"hoverText"`
	ClickText       string `yaml:"clickText" toml:"click_text" json:"clickText"`
}

// Defaults for the Lund web mapping project.
const (
	DefaultGeoServerURL = "http://localhost:8080/geoserver/wms"
	DefaultWorkspace    = "lund_web_mapping"
	DefaultZoom         = 12
)

// DefaultCenter is Lund, as longitude and latitude.
var DefaultCenter = [2]float64{13.1906, 55.7060}

// Default returns the built-in map: three basemaps with OpenStreetMap
// selected, and the eight Lund overlays hidden.
func Default() *Map {
	return &Map{
		GeoServer: GeoServer{URL: DefaultGeoServerURL, Workspace: DefaultWorkspace, Tiled: true},
		View:      View{Center: DefaultCenter, Zoom: DefaultZoom},
		Basemaps: []Basemap{
			{
				ID: "osm", Title: "OpenStreetMap", Control: "osm-toggle",
				URL:         "https://tile.openstreetmap.org/{z}/{x}/{y}.png",
				Attribution: "© OpenStreetMap contributors",
				MaxZoom:     19, Visible: true,
			},
			{
				ID: "carto", Title: "Carto Light", Control: "carto-toggle",
				URL:         "https://{a-d}.basemaps.cartocdn.com/light_all/{z}/{x}/{y}.png",
				Attribution: "© OpenStreetMap contributors © CARTO",
				MaxZoom:     20,
			},
			{
				ID: "google", Title: "Google Maps", Control: "google-toggle",
				URL:         "https://mt{0-3}.google.com/vt/lyrs=m&x={x}&y={y}&z={z}",
				Attribution: "© Google",
				MaxZoom:     20,
			},
		},
		Overlays: []Overlay{
			{ID: "addresses", Title: "Addresses", Control: "addresses-toggle", Layer: "addresses_wgs84"},
			{ID: "districts", Title: "Districts", Control: "districts-toggle", Layer: "districts_wgs84"},
			{ID: "public-buildings", Title: "Public buildings", Control: "publicBuildings-toggle", Layer: "public_buildings_wgs84"},
			{ID: "rural-buildings", Title: "Rural buildings", Control: "ruralBuildings-toggle", Layer: "rural_buildings_wgs84"},
			{ID: "roads-all", Title: "All roads", Control: "roadsAll-toggle", Layer: "roads_all_wgs84"},
			{ID: "roads-highway", Title: "Highways", Control: "roadsHighway-toggle", Layer: "roads_highway_wgs84"},
			{ID: "roads-through", Title: "Through roads", Control: "roadsThrough-toggle", Layer: "roads_throug_wgs84"},
			{ID: "railroads", Title: "Railroads", Control: "railroads-toggle", Layer: "railroads_wgs84"},
		},
		Controls: DefaultControls(),
	}
}

// DefaultControls returns the element ids used by the bundled viewer page.
func DefaultControls() Controls {
	return Controls{
		RemoveMarker:    "remove-marker",
		CopyCoordinates: "copy-coordinates",
		HoverText:       "coord-text",
		ClickText:       "clicked-coordinates",
	}
}

// Load reads a map configuration from path. The format is chosen by file
// extension: .yaml, .yml or .toml. An empty path returns [Default].
func Load(path string) (*Map, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading map config: %w", err)
	}

	var m Map
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), &m); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}

	m.applyDefaults()
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &m, nil
}

func (m *Map) applyDefaults() {
	if m.GeoServer.URL == "" {
		m.GeoServer.URL = DefaultGeoServerURL
	}
	if m.GeoServer.Workspace == "" {
		m.GeoServer.Workspace = DefaultWorkspace
	}
	if m.View.Center == [2]float64{} {
		m.View.Center = DefaultCenter
	}
	if m.View.Zoom == 0 {
		m.View.Zoom = DefaultZoom
	}

	d := DefaultControls()
	if m.Controls.RemoveMarker == "" {
		m.Controls.RemoveMarker = d.RemoveMarker
	}
	if m.Controls.CopyCoordinates == "" {
		m.Controls.CopyCoordinates = d.CopyCoordinates
	}
	if m.Controls.HoverText == "" {
		m.Controls.HoverText = d.HoverText
	}
	if m.Controls.ClickText == "" {
		m.Controls.ClickText = d.ClickText
	}
}

// Validation errors.
var (
	ErrNoBasemap        = errors.New("exactly one basemap must be visible by default")
	ErrDuplicateID      = errors.New("duplicate layer id")
	ErrDuplicateControl = errors.New("duplicate control id")
)

// Validate checks the invariants the map session relies on: ids and control
// ids are unique and non-empty, overlays name a WMS layer, and exactly one
// basemap starts visible.
func (m *Map) Validate() error {
	var errs []error

	ids := map[string]bool{}
	controls := map[string]bool{}
	check := func(kind, id, control string) {
		if id == "" {
			errs = append(errs, fmt.Errorf("%s without id", kind))
		} else if ids[id] {
			errs = append(errs, fmt.Errorf("%w: %q", ErrDuplicateID, id))
		}
		ids[id] = true

		if control == "" {
			errs = append(errs, fmt.Errorf("%s %q has no control", kind, id))
		} else if controls[control] {
			errs = append(errs, fmt.Errorf("%w: %q", ErrDuplicateControl, control))
		}
		controls[control] = true
	}

	visible := 0
	for _, b := range m.Basemaps {
		check("basemap", b.ID, b.Control)
		if b.URL == "" {
			errs = append(errs, fmt.Errorf("basemap %q has no url", b.ID))
		}
		if b.Visible {
			visible++
		}
	}
	if visible != 1 {
		errs = append(errs, fmt.Errorf("%w (got %d)", ErrNoBasemap, visible))
	}

	for _, o := range m.Overlays {
		check("overlay", o.ID, o.Control)
		if o.Layer == "" {
			errs = append(errs, fmt.Errorf("overlay %q has no WMS layer name", o.ID))
		}
	}

	for _, c := range []string{m.Controls.RemoveMarker, m.Controls.CopyCoordinates, m.Controls.HoverText, m.Controls.ClickText} {
		if c != "" && controls[c] {
			errs = append(errs, fmt.Errorf("%w: %q", ErrDuplicateControl, c))
		}
	}

	return errors.Join(errs...)
}

// QualifiedLayer returns the WMS LAYERS value for an overlay layer name,
// "<workspace>:<layer>".
func (g GeoServer) QualifiedLayer(layer string) string {
	if g.Workspace == "" {
		return layer
	}
	return g.Workspace + ":" + layer
}

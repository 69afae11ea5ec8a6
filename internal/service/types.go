// Package service contains the map session: the layer registry with its
// basemap and overlay groups, the click marker, and the coordinate readouts.
package service

import "errors"

// Group is the layer group a layer belongs to.
type Group string

const (
	// GroupBasemap layers are mutually exclusive: exactly one is visible.
	GroupBasemap Group = "basemap"
	// GroupOverlay layers are toggled independently.
	GroupOverlay Group = "overlay"
)

// SourceKind identifies how a layer's imagery is requested.
type SourceKind string

const (
	// SourceTile sources fill an XYZ URL template per tile.
	SourceTile SourceKind = "tile"
	// SourceWMS sources issue WMS GetMap requests.
	SourceWMS SourceKind = "wms"
)

// Layer is one map layer. Everything except Visible is fixed when the
// session is built.
// Huma reads the tags for OpenAPI; the viewer page reads Control to find the
// checkbox or radio element bound to the layer.
type Layer struct {
	ID      string `json:"id" doc:"Unique layer identifier" example:"addresses"`
	Title   string `json:"title" doc:"Display name" example:"Addresses"`
	Group   Group  `json:"group" enum:"basemap,overlay" doc:"Layer group" example:"overlay"`
	Control string `json:"control" doc:"Document element id of the bound control" example:"addresses-toggle"`
	Visible bool   `json:"visible" doc:"Whether the layer is currently visible"`
	Source  Source `json:"source" doc:"Render source descriptor"`
}

// Source is the render-source descriptor handed to the render engine.
// Tile sources carry a URL template; WMS sources carry the endpoint and the
// request parameters (LAYERS, TILED, STYLES).
type Source struct {
	Kind        SourceKind        `json:"kind" enum:"tile,wms" doc:"Source type"`
	URL         string            `json:"url" doc:"Tile URL template or WMS endpoint" example:"http://localhost:8080/geoserver/wms"`
	Params      map[string]string `json:"params,omitempty" doc:"WMS request parameters"`
	Attribution string            `json:"attribution,omitempty" doc:"Attribution text"`
	MaxZoom     int               `json:"maxZoom,omitempty" doc:"Maximum zoom served by the source"`
}

// ControlBinding associates one document control with one layer. For an
// overlay the control is a checkbox toggling the layer; for a basemap it is
// a radio selecting the layer as the active basemap.
type ControlBinding struct {
	Control string `json:"control" doc:"Document element id" example:"osm-toggle"`
	LayerID string `json:"layerId" doc:"Bound layer id" example:"osm"`
}

// Readout is the marker display state after a click or removal.
type Readout struct {
	Placed bool   `json:"placed" doc:"Whether a marker is placed"`
	LatLon string `json:"latLon" doc:"Stored \"lat, lon\" string (7 decimals), empty without a marker"`
	Text   string `json:"text" doc:"Text written to the clicked-coordinates element"`
}

var (
	// ErrInvalidLayerReference is returned when a toggle or a control binding
	// names a layer that is absent from the registry or in the wrong group.
	ErrInvalidLayerReference = errors.New("invalid layer reference")

	// ErrAlreadyBound is returned by a second BindControls call.
	ErrAlreadyBound = errors.New("controls already bound")

	// ErrUnknownControl is returned when a binding names a control the
	// document does not have.
	ErrUnknownControl = errors.New("unknown control")

	// ErrNoMarker is returned when copying coordinates with no marker placed.
	ErrNoMarker = errors.New("no marker placed")

	// ErrClipboardUnavailable is returned when no clipboard can take the write.
	ErrClipboardUnavailable = errors.New("clipboard unavailable")
)

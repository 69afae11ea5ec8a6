package service

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// MarkerState is the state of the click marker.
type MarkerState int

const (
	// NoMarker is the initial state, and the state after a removal.
	NoMarker MarkerState = iota
	// MarkerPlaced means a click put the marker on the map.
	MarkerPlaced
)

func (s MarkerState) String() string {
	if s == MarkerPlaced {
		return "placed"
	}
	return "none"
}

// Marker holds at most one point. A click replaces the point, it never adds
// a second one.
type Marker struct {
	state  MarkerState
	point  orb.Point // projected map coordinate
	lonLat orb.Point
}

// Place clears any existing point and sets a new one at the projected
// coordinate p.
func (m *Marker) Place(p orb.Point) {
	m.Clear()
	m.point = p
	m.lonLat = ToLonLat(p)
	m.state = MarkerPlaced
}

// Clear removes the point.
func (m *Marker) Clear() {
	m.state = NoMarker
	m.point = orb.Point{}
	m.lonLat = orb.Point{}
}

// State returns the current state.
func (m *Marker) State() MarkerState { return m.state }

// Point returns the projected coordinate and whether a marker is placed.
func (m *Marker) Point() (orb.Point, bool) {
	return m.point, m.state == MarkerPlaced
}

// Readout returns the click display for the current state.
func (m *Marker) Readout() Readout {
	if m.state != MarkerPlaced {
		return Readout{Text: Placeholder}
	}
	return Readout{
		Placed: true,
		LatLon: ClickFormat.LatLon(m.lonLat),
		Text:   ClickFormat.Text(m.lonLat),
	}
}

// Feature returns the marker as a GeoJSON feature in longitude/latitude,
// or nil without a marker.
func (m *Marker) Feature() *geojson.Feature {
	if m.state != MarkerPlaced {
		return nil
	}
	f := geojson.NewFeature(m.lonLat)
	f.Properties["latLon"] = ClickFormat.LatLon(m.lonLat)
	return f
}

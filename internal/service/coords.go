package service

import (
	"math"
	"math/big"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// Placeholder is the click readout shown when no marker is placed.
const Placeholder = "-, -"

// CoordinateFormat renders a longitude/latitude as "lat, lon" with a fixed
// number of decimals and an optional display prefix.
type CoordinateFormat struct {
	Decimals int
	Prefix   string
}

// The hover readout and the click readout use different precision.
var (
	HoverFormat = CoordinateFormat{Decimals: 4}
	ClickFormat = CoordinateFormat{Decimals: 7, Prefix: "Clicked Coordinates: Lat/Lon: "}
)

// LatLon formats ll (longitude, latitude) as "lat, lon".
func (f CoordinateFormat) LatLon(ll orb.Point) string {
	return fixed(ll.Lat(), f.Decimals) + ", " + fixed(ll.Lon(), f.Decimals)
}

// fixed formats v with d decimals the way a browser's toFixed does: exact
// halves round away from zero, where FormatFloat rounds them to even.
func fixed(v float64, d int) string {
	s := strconv.FormatFloat(v, 'f', d+1, 64)
	if d < 0 || s[len(s)-1] != '5' {
		return strconv.FormatFloat(v, 'f', d, 64)
	}
	half, ok := new(big.Rat).SetString(s)
	if !ok || new(big.Rat).SetFloat64(v).Cmp(half) != 0 {
		return strconv.FormatFloat(v, 'f', d, 64)
	}
	return strconv.FormatFloat(math.Nextafter(v, math.Copysign(math.Inf(1), v)), 'f', d, 64)
}

// Text formats ll for display, including the prefix.
func (f CoordinateFormat) Text(ll orb.Point) string {
	return f.Prefix + f.LatLon(ll)
}

// ToLonLat converts a web-mercator (EPSG:3857) map coordinate to longitude
// and latitude in degrees.
func ToLonLat(p orb.Point) orb.Point {
	return project.Point(p, project.Mercator.ToWGS84)
}

// FromLonLat converts longitude and latitude to a web-mercator coordinate.
func FromLonLat(ll orb.Point) orb.Point {
	return project.Point(ll, project.WGS84.ToMercator)
}

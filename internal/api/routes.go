// Package api defines the Huma API routes and handlers.
package api

import (
	"context"
	"errors"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"

	"github.com/konfevgas/web-gis-project/internal/humastar"
	"github.com/konfevgas/web-gis-project/internal/service"
)

// Version is the API version reported by /health.
const Version = "1.0.0"

// copyTimeout bounds how long POST /api/v1/marker/copy waits for the page.
const copyTimeout = 5 * time.Second

var layerActions = map[service.Group][]humastar.ActionDef{
	service.GroupOverlay: {
		{Rel: "toggle", Pattern: "/api/v1/overlays/%s", Method: "PUT", Title: "Set overlay visibility"},
	},
	service.GroupBasemap: {
		{Rel: "select", Pattern: "/api/v1/basemap", Method: "PUT", Title: "Select basemap"},
	},
}

// Types

type IDInput struct {
	ID string `path:"id" doc:"Layer ID" example:"districts"`
}

// LayerBody is a layer with its hypermedia actions.
type LayerBody struct {
	service.Layer
}

// Actions implements humastar.Actor.
func (b LayerBody) Actions() []humastar.Action {
	if b.Group == service.GroupBasemap && b.Visible {
		return nil
	}
	return humastar.ActionsFor(b.ID, layerActions[b.Group])
}

type LayerOutput struct {
	Body LayerBody
}

type LayersInput struct {
	humastar.PageInput
	Group string `query:"group" enum:"basemap,overlay" doc:"Only list layers of this group"`
}

type LayersOutput struct {
	Body humastar.PageBody[service.Layer]
}

type TileInput struct {
	IDInput
	Z    uint32 `query:"z" maximum:"22" doc:"Zoom"`
	X    uint32 `query:"x" doc:"Column"`
	Y    uint32 `query:"y" doc:"Row"`
	Size int    `query:"size" minimum:"64" maximum:"2048" default:"256" doc:"WMS image size in pixels"`
}

type TileBody struct {
	Layer string `json:"layer" doc:"Layer ID"`
	Kind  string `json:"kind" doc:"Source kind" enum:"tile,wms"`
	URL   string `json:"url" doc:"Request URL for the tile"`
}

type OverlayInput struct {
	IDInput
	Body struct {
		Visible bool `json:"visible" doc:"Overlay visibility"`
	}
}

type BasemapBody struct {
	ID string `json:"id" doc:"Active basemap ID" example:"osm"`
}

type BasemapInput struct {
	Body BasemapBody
}

type PointInput struct {
	Body struct {
		Lon float64 `json:"lon" minimum:"-180" maximum:"180" doc:"Longitude in degrees" example:"13.1906"`
		Lat float64 `json:"lat" minimum:"-85.06" maximum:"85.06" doc:"Latitude in degrees" example:"55.7060"`
	}
}

func (in *PointInput) point() orb.Point {
	return service.FromLonLat(orb.Point{in.Body.Lon, in.Body.Lat})
}

// MarkerBody is the click marker state.
type MarkerBody struct {
	State   string           `json:"state" enum:"none,placed" doc:"Marker state"`
	LatLon  string           `json:"latLon,omitempty" doc:"Stored \"lat, lon\" string" example:"55.7060000, 13.1906000"`
	Text    string           `json:"text" doc:"Click readout text" example:"Clicked Coordinates: Lat/Lon: 55.7060000, 13.1906000"`
	Feature *geojson.Feature `json:"feature,omitempty" doc:"Marker as a GeoJSON point feature"`
}

type MarkerOutput struct {
	Body MarkerBody
}

type ReadoutBody struct {
	Text string `json:"text" doc:"Hover readout text" example:"55.7060, 13.1906"`
}

type CopyBody struct {
	Copied string `json:"copied" doc:"Text written to the clipboard"`
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"1.0.0"`
}

// APIHandler holds all REST API handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	session *service.MapSession
}

func NewAPIHandler(session *service.MapSession) *APIHandler {
	return &APIHandler{session: session}
}

// RegisterRoutes registers every REST route on api.
func RegisterRoutes(api huma.API, session *service.MapSession) {
	huma.AutoRegister(api, NewAPIHandler(session))
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

// RegisterMap registers the map view and layer routes.
func (h *APIHandler) RegisterMap(api huma.API) {
	huma.Get(api, "/api/v1/view", h.GetView, huma.OperationTags("map"))
	huma.Get(api, "/api/v1/layers", h.GetLayers, huma.OperationTags("map"))
	huma.Get(api, "/api/v1/layers/{id}", h.GetLayer, huma.OperationTags("map"))
	huma.Get(api, "/api/v1/layers/{id}/tile", h.GetTile, huma.OperationTags("map"))
	huma.Put(api, "/api/v1/overlays/{id}", h.PutOverlay, huma.OperationTags("map"))
	huma.Get(api, "/api/v1/basemap", h.GetBasemap, huma.OperationTags("map"))
	huma.Put(api, "/api/v1/basemap", h.PutBasemap, huma.OperationTags("map"))
}

// RegisterMarker registers the click marker routes.
func (h *APIHandler) RegisterMarker(api huma.API) {
	huma.Get(api, "/api/v1/marker", h.GetMarker, huma.OperationTags("marker"))
	huma.Post(api, "/api/v1/marker", h.PlaceMarker, huma.OperationTags("marker"))
	huma.Delete(api, "/api/v1/marker", h.RemoveMarker, huma.OperationTags("marker"))
	huma.Post(api, "/api/v1/marker/copy", h.CopyMarker, huma.OperationTags("marker"))
	huma.Post(api, "/api/v1/readout", h.PostReadout, huma.OperationTags("marker"))
}

// Handlers

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: Version}}, nil
}

func (h *APIHandler) GetView(ctx context.Context, input *struct{}) (*struct{ Body service.View }, error) {
	return &struct{ Body service.View }{Body: h.session.View()}, nil
}

func (h *APIHandler) GetLayers(ctx context.Context, input *LayersInput) (*LayersOutput, error) {
	layers := h.session.Layers()
	if input.Group != "" {
		filtered := layers[:0]
		for _, l := range layers {
			if string(l.Group) == input.Group {
				filtered = append(filtered, l)
			}
		}
		layers = filtered
	}
	return &LayersOutput{Body: humastar.Paginate(layers, input.Offset, input.Limit)}, nil
}

func (h *APIHandler) GetLayer(ctx context.Context, input *IDInput) (*LayerOutput, error) {
	layer, ok := h.session.Layer(input.ID)
	if !ok {
		return nil, huma.Error404NotFound("layer not found")
	}
	return &LayerOutput{Body: LayerBody{layer}}, nil
}

func (h *APIHandler) GetTile(ctx context.Context, input *TileInput) (*struct{ Body TileBody }, error) {
	layer, ok := h.session.Layer(input.ID)
	if !ok {
		return nil, huma.Error404NotFound("layer not found")
	}
	if input.Z > 22 || uint64(input.X) >= 1<<input.Z || uint64(input.Y) >= 1<<input.Z {
		return nil, huma.Error422UnprocessableEntity("tile outside the zoom level")
	}
	tile := maptile.New(input.X, input.Y, maptile.Zoom(input.Z))

	body := TileBody{Layer: layer.ID, Kind: string(layer.Source.Kind)}
	switch layer.Source.Kind {
	case service.SourceWMS:
		u, err := layer.Source.GetMapURL(tile, input.Size)
		if err != nil {
			return nil, huma.Error500InternalServerError("building GetMap request", err)
		}
		body.URL = u
	default:
		body.URL = layer.Source.TileURL(tile)
	}
	return &struct{ Body TileBody }{Body: body}, nil
}

func (h *APIHandler) PutOverlay(ctx context.Context, input *OverlayInput) (*LayerOutput, error) {
	if err := h.session.ToggleOverlay(input.ID, input.Body.Visible); err != nil {
		return nil, h.layerError(input.ID, err)
	}
	layer, _ := h.session.Layer(input.ID)
	return &LayerOutput{Body: LayerBody{layer}}, nil
}

func (h *APIHandler) GetBasemap(ctx context.Context, input *struct{}) (*struct{ Body BasemapBody }, error) {
	return &struct{ Body BasemapBody }{Body: BasemapBody{ID: h.session.ActiveBasemap()}}, nil
}

func (h *APIHandler) PutBasemap(ctx context.Context, input *BasemapInput) (*struct{ Body BasemapBody }, error) {
	if err := h.session.SelectBasemap(input.Body.ID); err != nil {
		return nil, h.layerError(input.Body.ID, err)
	}
	return &struct{ Body BasemapBody }{Body: BasemapBody{ID: h.session.ActiveBasemap()}}, nil
}

func (h *APIHandler) GetMarker(ctx context.Context, input *struct{}) (*MarkerOutput, error) {
	return &MarkerOutput{Body: h.marker()}, nil
}

func (h *APIHandler) PlaceMarker(ctx context.Context, input *PointInput) (*MarkerOutput, error) {
	h.session.Click(input.point())
	return &MarkerOutput{Body: h.marker()}, nil
}

func (h *APIHandler) RemoveMarker(ctx context.Context, input *struct{}) (*MarkerOutput, error) {
	h.session.RemoveMarker()
	return &MarkerOutput{Body: h.marker()}, nil
}

func (h *APIHandler) CopyMarker(ctx context.Context, input *struct{}) (*struct{ Body CopyBody }, error) {
	ctx, cancel := context.WithTimeout(ctx, copyTimeout)
	defer cancel()

	done := make(chan error, 1)
	h.session.CopyCoordinates(ctx, func(err error) { done <- err })

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	switch {
	case err == nil:
	case errors.Is(err, service.ErrNoMarker):
		return nil, huma.Error409Conflict("no marker placed")
	case errors.Is(err, service.ErrClipboardUnavailable), errors.Is(err, context.DeadlineExceeded):
		return nil, huma.Error503ServiceUnavailable(err.Error())
	default:
		return nil, huma.Error500InternalServerError("copy failed", err)
	}

	r, _ := h.session.Marker()
	return &struct{ Body CopyBody }{Body: CopyBody{Copied: r.LatLon}}, nil
}

func (h *APIHandler) PostReadout(ctx context.Context, input *PointInput) (*struct{ Body ReadoutBody }, error) {
	return &struct{ Body ReadoutBody }{Body: ReadoutBody{Text: h.session.Hover(input.point())}}, nil
}

func (h *APIHandler) marker() MarkerBody {
	r, f := h.session.Marker()
	state := service.NoMarker
	if r.Placed {
		state = service.MarkerPlaced
	}
	return MarkerBody{State: state.String(), LatLon: r.LatLon, Text: r.Text, Feature: f}
}

// layerError maps a registry error to an HTTP error: unknown ids are 404,
// ids of the wrong group 422.
func (h *APIHandler) layerError(id string, err error) error {
	if !errors.Is(err, service.ErrInvalidLayerReference) {
		return huma.Error500InternalServerError("render engine failure", err)
	}
	if _, ok := h.session.Layer(id); ok {
		return huma.Error422UnprocessableEntity(err.Error())
	}
	return huma.Error404NotFound(err.Error())
}

// Package viewer contains the Datastar SSE handlers behind the map viewer
// page. The page posts control changes, button presses and map pointer
// events; the events stream pushes the resulting state back.
package viewer

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb"

	"github.com/konfevgas/web-gis-project/internal/engine"
	"github.com/konfevgas/web-gis-project/internal/humastar"
	"github.com/konfevgas/web-gis-project/internal/service"
	"github.com/konfevgas/web-gis-project/internal/templates"
	"github.com/konfevgas/web-gis-project/internal/ui"
)

const (
	// BasePath prefixes every viewer operation.
	BasePath = "/api/v1/viewer"
	// Tag marks viewer operations in the OpenAPI document.
	Tag = "viewer"
	// StreamTag marks the streams the page opens on load.
	StreamTag = "stream"
)

// Signal names shared with the page. Underscored signals are pushed by the
// server and never posted back.
const (
	sigControl = "control"
	sigChecked = "checked"
	sigX       = "x"
	sigY       = "y"
	sigStack   = "_stack"
	sigMarker  = "_marker"
	sigBasemap = "_basemap"
)

// Handler serves the viewer page and its SSE endpoints.
type Handler struct {
	humastar.Handler
	session *service.MapSession
	board   *ui.Board
	stack   *engine.Stack
	logger  *slog.Logger
	api     huma.API
}

// NewHandler creates a viewer handler. The board must already be bound to
// the session.
func NewHandler(session *service.MapSession, board *ui.Board, stack *engine.Stack, renderer *templates.Renderer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Handler: humastar.Handler{Renderer: renderer},
		session: session,
		board:   board,
		stack:   stack,
		logger:  logger,
	}
}

func (h *Handler) RegisterRoutes(api huma.API) {
	h.api = api
	huma.Get(api, BasePath+"/events", h.Events,
		huma.OperationTags(Tag, StreamTag),
	)
	huma.Post(api, BasePath+"/change", h.Change, huma.OperationTags(Tag))
	huma.Post(api, BasePath+"/press", h.Press, huma.OperationTags(Tag))
	huma.Post(api, BasePath+"/click", h.Click, huma.OperationTags(Tag))
	huma.Post(api, BasePath+"/hover", h.Hover, huma.OperationTags(Tag))
	huma.Post(api, BasePath+"/clipboard", h.Clipboard, huma.OperationTags(Tag))
}

// Change reports a checkbox or radio change: {control, checked}.
func (h *Handler) Change(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	id := signals.String(sigControl)
	if id == "" {
		return nil, huma.Error400BadRequest("control is required")
	}
	checked := signals.Bool(sigChecked)

	return h.Stream(func(sse humastar.SSE) {
		if err := h.board.Change(id, checked); err != nil {
			h.logger.Warn("control change rejected", "control", id, "error", err)
			sse.Error(err.Error())
			return
		}
		sse.Clear()
	}), nil
}

// Press reports a button press: {control}.
func (h *Handler) Press(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	id := signals.String(sigControl)
	if id == "" {
		return nil, huma.Error400BadRequest("control is required")
	}

	return h.Stream(func(sse humastar.SSE) {
		if err := h.board.Click(id); err != nil {
			h.logger.Warn("button press rejected", "control", id, "error", err)
			sse.Error(err.Error())
			return
		}
		sse.Clear()
	}), nil
}

// Click places the marker at the projected map coordinate {x, y}.
func (h *Handler) Click(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	p, err := point(input)
	if err != nil {
		return nil, err
	}
	return h.Stream(func(sse humastar.SSE) {
		h.session.Click(p)
	}), nil
}

// Hover updates the live readout for the projected map coordinate {x, y}.
func (h *Handler) Hover(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	p, err := point(input)
	if err != nil {
		return nil, err
	}
	return h.Stream(func(sse humastar.SSE) {
		h.session.Hover(p)
	}), nil
}

// ClipboardInput is a page's answer to a clipboard write.
type ClipboardInput struct {
	Body struct {
		ID    string `json:"id" minLength:"1" doc:"Clipboard request id from the write event"`
		OK    bool   `json:"ok" doc:"Whether the write succeeded"`
		Error string `json:"error,omitempty" doc:"Why the write failed"`
	}
}

// Clipboard reports the outcome of a clipboard write the events stream
// asked the page to perform.
func (h *Handler) Clipboard(ctx context.Context, input *ClipboardInput) (*struct{}, error) {
	var result error
	if !input.Body.OK {
		msg := input.Body.Error
		if msg == "" {
			msg = "write rejected"
		}
		result = errors.New(msg)
	}
	if err := h.session.ConfirmClipboard(input.Body.ID, result); err != nil {
		return nil, huma.Error404NotFound(err.Error())
	}
	return nil, nil
}

func point(input *humastar.SignalsInput) (orb.Point, error) {
	signals, err := input.MustParse()
	if err != nil {
		return orb.Point{}, err
	}
	x, y, ok := signals.Coordinate(sigX, sigY)
	if !ok {
		return orb.Point{}, huma.Error400BadRequest("x and y are required")
	}
	return orb.Point{x, y}, nil
}

// Page renders the viewer page.
func (h *Handler) Page(w http.ResponseWriter, r *http.Request) {
	if h.Renderer == nil || !h.Renderer.Has("viewer.html") || h.api == nil {
		http.Error(w, "viewer templates not loaded", http.StatusServiceUnavailable)
		return
	}

	pd, err := humastar.BuildPageData(h.api, BasePath, StreamTag, h.state(), h.page())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.Renderer.Execute(w, "viewer.html", pd); err != nil {
		h.logger.Error("rendering viewer", "error", err)
	}
}

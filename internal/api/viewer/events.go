package viewer

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/konfevgas/web-gis-project/internal/humastar"
	"github.com/konfevgas/web-gis-project/internal/service"
	"github.com/konfevgas/web-gis-project/internal/ui"
)

// controlView is a board element with the route its input posts to.
type controlView struct {
	ui.Element
	Route string
}

// pageView is the page specific data of viewer.html.
type pageView struct {
	Basemaps []controlView
	Overlays []controlView
	Buttons  []controlView
	Hover    ui.Element
	Clicked  ui.Element
	View     service.View
}

// Events streams session changes to the page. A new stream first receives
// the full state, then one patch per event. Patches carry the session state
// at the time they are written, not the event's copy of it.
func (h *Handler) Events(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return h.Stream(func(sse humastar.SSE) {
		bus := h.session.Events()
		ch := bus.Subscribe()
		defer bus.Unsubscribe(ch)

		sse.Signals(h.state())
		h.patchControls(sse)
		h.patchReadouts(sse)

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				h.apply(sse, ev)
			}
		}
	}), nil
}

func (h *Handler) apply(sse humastar.SSE, ev service.Event) {
	switch ev.Resource {
	case service.ResourceLayers:
		sse.Signals(map[string]any{
			sigStack:   h.stack.Snapshot(),
			sigBasemap: h.session.ActiveBasemap(),
		})
		h.patchControls(sse)
	case service.ResourceMarker:
		// events trail the session; text and feature come from one snapshot
		r, f := h.session.Marker()
		sse.Signals(map[string]any{sigMarker: f})
		sse.Text(r.Text, "#"+h.session.Controls().ClickText)
	case service.ResourceReadout:
		c := h.session.Controls()
		if e, ok := h.board.Element(c.HoverText); ok {
			sse.Text(e.Text, "#"+c.HoverText)
		}
	case service.ResourceClipboard:
		if err := sse.Call("webmap.copy", ev.ID, ev.Text, BasePath+"/clipboard"); err != nil {
			h.logger.Warn("clipboard script failed", "error", err)
		}
		return
	}
	sse.DispatchCustomEvent("map-changed", map[string]any{
		"resource": ev.Resource,
		"action":   ev.Action,
		"id":       ev.ID,
	})
}

// state returns the full set of page signals.
func (h *Handler) state() map[string]any {
	_, f := h.session.Marker()
	return map[string]any{
		sigControl: "",
		sigChecked: false,
		sigX:       0.0,
		sigY:       0.0,
		"error":    "",
		"success":  "",
		sigStack:   h.stack.Snapshot(),
		sigMarker:  f,
		sigBasemap: h.session.ActiveBasemap(),
		"_view":    h.session.View(),
	}
}

func (h *Handler) page() pageView {
	var pv pageView
	c := h.session.Controls()
	for _, e := range h.board.Elements() {
		switch {
		case e.Kind == ui.Radio:
			pv.Basemaps = append(pv.Basemaps, controlView{e, BasePath + "/change"})
		case e.Kind == ui.Checkbox:
			pv.Overlays = append(pv.Overlays, controlView{e, BasePath + "/change"})
		case e.Kind == ui.Button:
			pv.Buttons = append(pv.Buttons, controlView{e, BasePath + "/press"})
		case e.ID == c.HoverText:
			pv.Hover = e
		case e.ID == c.ClickText:
			pv.Clicked = e
		}
	}
	pv.View = h.session.View()
	return pv
}

func (h *Handler) patchControls(sse humastar.SSE) {
	if h.Renderer == nil {
		return
	}
	pv := h.page()
	sse.Patch(h.RenderList("control", items(pv.Basemaps), "No basemaps", "No basemap is configured"), "#basemap-controls")
	sse.Patch(h.RenderList("control", items(pv.Overlays), "No overlays", "No WMS overlay is configured"), "#overlay-controls")
}

func (h *Handler) patchReadouts(sse humastar.SSE) {
	c := h.session.Controls()
	if e, ok := h.board.Element(c.HoverText); ok {
		sse.Text(e.Text, "#"+c.HoverText)
	}
	if e, ok := h.board.Element(c.ClickText); ok {
		sse.Text(e.Text, "#"+c.ClickText)
	}
}

func items(views []controlView) []any {
	out := make([]any, len(views))
	for i, v := range views {
		out[i] = v
	}
	return out
}

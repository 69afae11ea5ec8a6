// Package humastar bridges Huma (REST/OpenAPI) with Datastar (SSE/hypermedia).
//
// A page posts its signals as the JSON body of a Huma operation; the
// operation answers with a Datastar event stream built through [SSE]:
//
//	func (h *Viewer) Hover(ctx context.Context, in *humastar.SignalsInput) (*huma.StreamResponse, error) {
//	    s, err := in.MustParse()
//	    if err != nil {
//	        return nil, err
//	    }
//	    x, y, ok := s.Coordinate("x", "y")
//	    ...
//	    return h.Stream(func(sse humastar.SSE) {
//	        sse.Text(readout, "#coord-text")
//	    }), nil
//	}
package humastar

import (
	"bytes"
	"encoding/json"
	"html"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/konfevgas/web-gis-project/internal/templates"
)

// Handler is an embeddable base for Huma handlers that answer with Datastar
// streams. Renderer may be nil; rendering then yields empty fragments.
type Handler struct {
	Renderer *templates.Renderer
}

// Stream wraps fn in a Huma StreamResponse.
func (h *Handler) Stream(fn func(sse SSE)) *huma.StreamResponse {
	return &huma.StreamResponse{
		Body: func(humaCtx huma.Context) {
			fn(NewSSE(humaCtx))
		},
	}
}

// RenderList renders items with a named template, or an empty state if none.
func (h *Handler) RenderList(tmpl string, items []any, emptyTitle, emptyMsg string) string {
	return RenderList(h.Renderer, tmpl, items, emptyTitle, emptyMsg)
}

// Render renders one named fragment.
func (h *Handler) Render(tmpl string, data any) string {
	if h.Renderer == nil {
		return ""
	}
	var buf bytes.Buffer
	h.Renderer.RenderToBuffer(&buf, tmpl, data)
	return buf.String()
}

// SSE is a Datastar event generator bound to one Huma stream.
type SSE struct {
	*datastar.ServerSentEventGenerator
}

// NewSSE creates a Datastar SSE helper from a Huma streaming context. The
// context must come from the humago adapter.
func NewSSE(ctx huma.Context) SSE {
	r, w := humago.Unwrap(ctx)
	return SSE{datastar.NewSSE(w, r)}
}

// Patch replaces the inner HTML of the elements matching selector.
func (s SSE) Patch(html, selector string) {
	s.PatchElements(html,
		datastar.WithSelector(selector),
		datastar.WithModeInner(),
		datastar.WithViewTransitions(),
	)
}

// Replace replaces the elements matching selector.
func (s SSE) Replace(html, selector string) {
	s.PatchElements(html,
		datastar.WithSelector(selector),
		datastar.WithModeOuter(),
		datastar.WithViewTransitions(),
	)
}

// Text sets the text content of the elements matching selector.
func (s SSE) Text(text, selector string) {
	s.PatchElements("<span>"+html.EscapeString(text)+"</span>",
		datastar.WithSelector(selector),
		datastar.WithModeInner(),
	)
}

// Error sets the page's error signal.
func (s SSE) Error(msg string) {
	s.MarshalAndPatchSignals(map[string]any{"error": msg})
}

// Success sets the page's success signal.
func (s SSE) Success(msg string) {
	s.MarshalAndPatchSignals(map[string]any{"success": msg})
}

// Clear resets the error and success signals.
func (s SSE) Clear() {
	s.MarshalAndPatchSignals(map[string]any{"error": "", "success": ""})
}

// Signals merges signals into the page's signal store.
func (s SSE) Signals(signals map[string]any) {
	s.MarshalAndPatchSignals(signals)
}

// Call runs fn(args...) in the page. Arguments are JSON encoded, so strings
// reach the script as literals.
func (s SSE) Call(fn string, args ...any) error {
	var buf bytes.Buffer
	buf.WriteString(fn)
	buf.WriteByte('(')
	for i, a := range args {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := json.Marshal(a)
		if err != nil {
			return err
		}
		buf.Write(b)
	}
	buf.WriteByte(')')
	return s.ExecuteScript(buf.String())
}

// Signals is the flat JSON object Datastar posts as the request body.
type Signals map[string]any

// ParseSignals parses Datastar signals from a raw request body.
func ParseSignals(body []byte) (Signals, error) {
	var signals Signals
	if err := json.Unmarshal(body, &signals); err != nil {
		return nil, err
	}
	return signals, nil
}

func lookup[T any](s Signals, key string) (T, bool) {
	v, ok := s[key].(T)
	return v, ok
}

// String returns a string signal, or "" when missing or not a string.
func (s Signals) String(key string) string {
	v, _ := lookup[string](s, key)
	return v
}

// Float returns a number signal, or 0.
func (s Signals) Float(key string) float64 {
	v, _ := lookup[float64](s, key)
	return v
}

// Bool returns a boolean signal, or false.
func (s Signals) Bool(key string) bool {
	v, _ := lookup[bool](s, key)
	return v
}

// Has reports whether key was posted, whatever its value.
func (s Signals) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// Coordinate returns the numeric signals xKey and yKey. ok is false unless
// both are present and numbers.
func (s Signals) Coordinate(xKey, yKey string) (x, y float64, ok bool) {
	x, okX := lookup[float64](s, xKey)
	y, okY := lookup[float64](s, yKey)
	return x, y, okX && okY
}

// EmptyInput is a shared input struct for handlers with no parameters.
type EmptyInput struct{}

// SignalsInput receives Datastar signals as the raw request body.
type SignalsInput struct {
	RawBody []byte
}

// MustParse parses signals or returns a Huma 400 error.
func (i *SignalsInput) MustParse() (Signals, error) {
	signals, err := ParseSignals(i.RawBody)
	if err != nil {
		return nil, huma.Error400BadRequest("Invalid request data: " + err.Error())
	}
	return signals, nil
}

// RenderList renders items with a named template, or the "empty-state"
// template when there are none.
func RenderList(r *templates.Renderer, tmpl string, items []any, emptyTitle, emptyMsg string) string {
	if r == nil {
		return ""
	}
	var buf bytes.Buffer
	if len(items) == 0 {
		r.RenderToBuffer(&buf, "empty-state", map[string]string{
			"Title": emptyTitle, "Message": emptyMsg,
		})
		return buf.String()
	}
	for _, item := range items {
		r.RenderToBuffer(&buf, tmpl, item)
	}
	return buf.String()
}

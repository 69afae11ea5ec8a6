package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/konfevgas/web-gis-project/internal/config"
)

// View is the initial map view.
type View struct {
	Center    orb.Point `json:"center" doc:"Center as [lon, lat]"`
	Projected orb.Point `json:"projected" doc:"Center in EPSG:3857"`
	Zoom      float64   `json:"zoom" doc:"Zoom level" example:"12"`
}

// MapSession owns the layer registry and the marker of one map. Every
// operation runs to completion under the session lock before the next one
// starts, so handlers behave as if dispatched from a single UI thread.
// Events are published after the lock is released.
type MapSession struct {
	mu       sync.Mutex
	registry *LayerRegistry
	marker   Marker
	view     View
	controls config.Controls
	bindings []ControlBinding
	doc      Document
	bound    bool
	// layer id -> bound control ids
	boundControls map[string][]string
	bus           *EventBus
	clipboard     Clipboard
	logger        *slog.Logger
}

// Option configures a MapSession.
type Option func(*MapSession)

// WithEventBus sets the bus session events are published on.
func WithEventBus(bus *EventBus) Option {
	return func(s *MapSession) { s.bus = bus }
}

// WithClipboard sets the clipboard used by CopyCoordinates.
func WithClipboard(c Clipboard) Option {
	return func(s *MapSession) { s.clipboard = c }
}

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *MapSession) { s.logger = l }
}

// NewMapSession builds the layers described by m on engine.
// Without options the session publishes on a private bus, hands clipboard
// writes to that bus, and logs through slog.Default.
func NewMapSession(m *config.Map, engine Engine, opts ...Option) (*MapSession, error) {
	s := &MapSession{
		controls: m.Controls,
		view: View{
			Center:    orb.Point(m.View.Center),
			Projected: FromLonLat(orb.Point(m.View.Center)),
			Zoom:      m.View.Zoom,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.bus == nil {
		s.bus = NewEventBus()
	}
	if s.clipboard == nil {
		s.clipboard = NewBusClipboard(s.bus)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	layers := LayersFromConfig(m)
	reg, err := NewLayerRegistry(engine, layers)
	if err != nil {
		return nil, err
	}
	s.registry = reg

	for _, l := range layers {
		if l.Control != "" {
			s.bindings = append(s.bindings, ControlBinding{Control: l.Control, LayerID: l.ID})
		}
	}
	return s, nil
}

// ClipboardTimeout bounds how long a copy button press waits for the
// clipboard.
const ClipboardTimeout = 10 * time.Second

// ConfirmClipboard passes a page's answer to clipboard request id on to the
// session clipboard. Only a BusClipboard takes answers.
func (s *MapSession) ConfirmClipboard(id string, err error) error {
	bc, ok := s.clipboard.(*BusClipboard)
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownClipboardRequest, id)
	}
	return bc.Confirm(id, err)
}

// Events returns the bus session events are published on.
func (s *MapSession) Events() *EventBus { return s.bus }

// View returns the initial map view.
func (s *MapSession) View() View { return s.view }

// Controls returns the marker control ids.
func (s *MapSession) Controls() config.Controls { return s.controls }

// Bindings returns the control bindings declared by the configuration.
func (s *MapSession) Bindings() []ControlBinding {
	return append([]ControlBinding(nil), s.bindings...)
}

// Layers returns all layers, basemaps first.
func (s *MapSession) Layers() []Layer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.List()
}

// Layer returns a layer by ID.
func (s *MapSession) Layer(id string) (Layer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.Get(id)
}

// ActiveBasemap returns the id of the visible basemap.
func (s *MapSession) ActiveBasemap() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.ActiveBasemap()
}

// ToggleOverlay sets the visibility of an overlay and mirrors it on the bound
// checkbox, also when the change failed.
func (s *MapSession) ToggleOverlay(id string, checked bool) error {
	s.mu.Lock()
	err := s.registry.ToggleOverlay(id, checked)
	s.syncChecked(id)
	s.mu.Unlock()

	if err != nil {
		return err
	}
	s.bus.Publish(Event{Resource: ResourceLayers, Action: "toggled", ID: id})
	return nil
}

// SelectBasemap makes id the active basemap and mirrors the selection on the
// basemap radios.
func (s *MapSession) SelectBasemap(id string) error {
	s.mu.Lock()
	err := s.registry.SelectBasemap(id)
	// on error this puts the radios back on the unchanged selection
	for _, bid := range s.registry.basemaps {
		s.syncChecked(bid)
	}
	s.mu.Unlock()

	if err != nil {
		return err
	}
	s.bus.Publish(Event{Resource: ResourceLayers, Action: "selected", ID: id})
	return nil
}

// BindControls attaches one change listener per binding to doc. Overlay
// bindings toggle their layer; basemap bindings select theirs. The marker's
// remove and copy buttons are bound too, and doc becomes the target of the
// coordinate readouts.
//
// Every binding is checked before any listener is attached, so a bad binding
// leaves doc untouched. Each control starts with the checked state of its
// layer. BindControls can be called once per session.
func (s *MapSession) BindControls(doc Document, bindings []ControlBinding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bound {
		return ErrAlreadyBound
	}

	groups := make([]Group, len(bindings))
	for i, b := range bindings {
		g, ok := s.registry.Group(b.LayerID)
		if !ok {
			return fmt.Errorf("%w: control %q bound to unknown layer %q", ErrInvalidLayerReference, b.Control, b.LayerID)
		}
		if !doc.Has(b.Control) {
			return fmt.Errorf("%w: %w %q (layer %q)", ErrInvalidLayerReference, ErrUnknownControl, b.Control, b.LayerID)
		}
		groups[i] = g
	}
	c := s.controls
	for _, id := range []string{c.RemoveMarker, c.CopyCoordinates, c.HoverText, c.ClickText} {
		if id != "" && !doc.Has(id) {
			return fmt.Errorf("%w: %q", ErrUnknownControl, id)
		}
	}

	s.doc = doc
	s.bound = true
	s.boundControls = make(map[string][]string, len(bindings))

	for i, b := range bindings {
		id := b.LayerID
		s.boundControls[id] = append(s.boundControls[id], b.Control)

		var err error
		if groups[i] == GroupBasemap {
			err = doc.OnChange(b.Control, func(checked bool) {
				if checked {
					s.logIfErr("select basemap", s.SelectBasemap(id))
				}
			})
		} else {
			err = doc.OnChange(b.Control, func(checked bool) {
				s.logIfErr("toggle overlay", s.ToggleOverlay(id, checked))
			})
		}
		if err != nil {
			return fmt.Errorf("binding %q: %w", b.Control, err)
		}
	}
	for id := range s.boundControls {
		s.syncChecked(id)
	}

	if c.RemoveMarker != "" {
		if err := doc.OnClick(c.RemoveMarker, func() { s.RemoveMarker() }); err != nil {
			return fmt.Errorf("binding %q: %w", c.RemoveMarker, err)
		}
	}
	if c.CopyCoordinates != "" {
		copyText := func() {
			ctx, cancel := context.WithTimeout(context.Background(), ClipboardTimeout)
			s.CopyCoordinates(ctx, func(error) { cancel() })
		}
		if err := doc.OnClick(c.CopyCoordinates, copyText); err != nil {
			return fmt.Errorf("binding %q: %w", c.CopyCoordinates, err)
		}
	}

	s.setText(c.ClickText, s.marker.Readout().Text)
	s.logger.Info("controls bound", "bindings", len(bindings))
	return nil
}

// Click places the marker at the projected coordinate p, replacing any
// previous marker, and writes the click readout.
func (s *MapSession) Click(p orb.Point) Readout {
	s.mu.Lock()
	s.marker.Place(p)
	r := s.marker.Readout()
	s.setText(s.controls.ClickText, r.Text)
	s.mu.Unlock()

	s.bus.Publish(Event{Resource: ResourceMarker, Action: "placed", Text: r.Text})
	return r
}

// RemoveMarker clears the marker and resets the click readout to the
// placeholder.
func (s *MapSession) RemoveMarker() Readout {
	s.mu.Lock()
	s.marker.Clear()
	r := s.marker.Readout()
	s.setText(s.controls.ClickText, r.Text)
	s.mu.Unlock()

	s.bus.Publish(Event{Resource: ResourceMarker, Action: "removed", Text: r.Text})
	return r
}

// Hover writes the live coordinate readout for the projected coordinate p.
// It never changes the marker.
func (s *MapSession) Hover(p orb.Point) string {
	text := HoverFormat.Text(ToLonLat(p))

	s.mu.Lock()
	s.setText(s.controls.HoverText, text)
	s.mu.Unlock()

	s.bus.Publish(Event{Resource: ResourceReadout, Action: "hover", Text: text})
	return text
}

// Marker returns the click readout and the marker feature, nil without a
// marker.
func (s *MapSession) Marker() (Readout, *geojson.Feature) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.marker.Readout(), s.marker.Feature()
}

// CopyCoordinates writes the stored "lat, lon" string to the clipboard
// without blocking the session. Failures are logged and passed to done,
// which may be nil; nothing else changes.
func (s *MapSession) CopyCoordinates(ctx context.Context, done func(error)) {
	s.mu.Lock()
	r := s.marker.Readout()
	s.mu.Unlock()

	finish := func(err error) {
		if err != nil {
			s.logger.Warn("copy coordinates failed", "error", err)
		}
		if done != nil {
			done(err)
		}
	}

	if !r.Placed {
		finish(ErrNoMarker)
		return
	}

	go func() {
		finish(s.clipboard.WriteText(ctx, r.LatLon))
	}()
}

func (s *MapSession) syncChecked(id string) {
	if s.doc == nil {
		return
	}
	l, ok := s.registry.Get(id)
	if !ok {
		return
	}
	for _, control := range s.boundControls[id] {
		s.logIfErr("sync control", s.doc.SetChecked(control, l.Visible))
	}
}

func (s *MapSession) setText(elementID, text string) {
	if s.doc == nil || elementID == "" {
		return
	}
	s.logIfErr("set text", s.doc.SetText(elementID, text))
}

func (s *MapSession) logIfErr(op string, err error) {
	if err == nil {
		return
	}
	level := slog.LevelError
	if errors.Is(err, ErrInvalidLayerReference) {
		level = slog.LevelWarn
	}
	s.logger.Log(context.Background(), level, op, "error", err)
}

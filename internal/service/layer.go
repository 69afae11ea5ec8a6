package service

import (
	"errors"
	"fmt"
)

// basemapSlot is the engine stack index the active basemap occupies.
const basemapSlot = 0

type entry struct {
	layer  Layer
	handle Handle
}

// LayerRegistry owns the basemap and overlay groups and keeps the render
// engine in step with each layer's visibility flag.
//
// LayerRegistry does no locking; MapSession serializes access.
type LayerRegistry struct {
	engine   Engine
	layers   map[string]*entry
	basemaps []string
	overlays []string
	active   string
}

// NewLayerRegistry creates a handle for every layer and builds the engine
// stack: the visible basemap in slot 0, then the overlays in order.
// Exactly one basemap must be visible.
func NewLayerRegistry(engine Engine, layers []Layer) (*LayerRegistry, error) {
	r := &LayerRegistry{
		engine: engine,
		layers: make(map[string]*entry, len(layers)),
	}

	for _, l := range layers {
		if l.ID == "" {
			return nil, fmt.Errorf("layer without id")
		}
		if _, exists := r.layers[l.ID]; exists {
			return nil, fmt.Errorf("layer with ID %q already exists", l.ID)
		}

		switch l.Group {
		case GroupBasemap:
			r.basemaps = append(r.basemaps, l.ID)
			if l.Visible {
				if r.active != "" {
					return nil, fmt.Errorf("basemaps %q and %q both visible", r.active, l.ID)
				}
				r.active = l.ID
			}
		case GroupOverlay:
			r.overlays = append(r.overlays, l.ID)
		default:
			return nil, fmt.Errorf("layer %q: unknown group %q", l.ID, l.Group)
		}

		h, err := engine.NewLayer(l.ID, cloneSource(l.Source))
		if err != nil {
			return nil, fmt.Errorf("creating layer %q: %w", l.ID, err)
		}
		if err := engine.SetVisible(h, l.Visible); err != nil {
			return nil, err
		}
		r.layers[l.ID] = &entry{layer: l, handle: h}
	}

	if r.active == "" {
		return nil, fmt.Errorf("no visible basemap among %d", len(r.basemaps))
	}

	if err := engine.AddLayer(r.layers[r.active].handle); err != nil {
		return nil, err
	}
	for _, id := range r.overlays {
		if err := engine.AddLayer(r.layers[id].handle); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// ToggleOverlay sets the visibility of one overlay. No other layer changes.
func (r *LayerRegistry) ToggleOverlay(id string, checked bool) error {
	e, err := r.lookup(id, GroupOverlay)
	if err != nil {
		return err
	}
	if err := r.engine.SetVisible(e.handle, checked); err != nil {
		return err
	}
	e.layer.Visible = checked
	return nil
}

// SelectBasemap makes id the only visible basemap and swaps it into the
// basemap slot of the engine stack. When the engine fails part way, the
// flags and the slot are put back to the previous selection before the
// error is returned; errors from that restore are joined to it.
func (r *LayerRegistry) SelectBasemap(id string) error {
	selected, err := r.lookup(id, GroupBasemap)
	if err != nil {
		return err
	}

	prev := r.active
	var written []*entry
	restore := func(cause error) error {
		errs := []error{cause}
		for _, e := range written {
			was := e.layer.ID == prev
			if err := r.engine.SetVisible(e.handle, was); err != nil {
				errs = append(errs, fmt.Errorf("restoring %q: %w", e.layer.ID, err))
			}
			e.layer.Visible = was
		}
		return errors.Join(errs...)
	}

	for _, bid := range r.basemaps {
		e := r.layers[bid]
		visible := bid == id
		if err := r.engine.SetVisible(e.handle, visible); err != nil {
			return restore(err)
		}
		e.layer.Visible = visible
		written = append(written, e)
	}

	if prev != id {
		removed, err := r.engine.RemoveLayerAt(basemapSlot)
		if err != nil {
			return restore(err)
		}
		if err := r.engine.InsertLayerAt(basemapSlot, selected.handle); err != nil {
			if rerr := r.engine.InsertLayerAt(basemapSlot, removed); rerr != nil {
				err = errors.Join(err, fmt.Errorf("restoring basemap slot: %w", rerr))
			}
			return restore(err)
		}
		r.active = id
	}
	return nil
}

// Get returns a layer by ID.
func (r *LayerRegistry) Get(id string) (Layer, bool) {
	e, ok := r.layers[id]
	if !ok {
		return Layer{}, false
	}
	return copyLayer(e.layer), true
}

// List returns all layers, basemaps first, in configuration order.
func (r *LayerRegistry) List() []Layer {
	result := make([]Layer, 0, len(r.layers))
	for _, ids := range [][]string{r.basemaps, r.overlays} {
		for _, id := range ids {
			result = append(result, copyLayer(r.layers[id].layer))
		}
	}
	return result
}

// ActiveBasemap returns the id of the visible basemap.
func (r *LayerRegistry) ActiveBasemap() string {
	return r.active
}

// Group returns the group of a layer.
func (r *LayerRegistry) Group(id string) (Group, bool) {
	e, ok := r.layers[id]
	if !ok {
		return "", false
	}
	return e.layer.Group, true
}

func (r *LayerRegistry) lookup(id string, want Group) (*entry, error) {
	e, ok := r.layers[id]
	if !ok {
		return nil, fmt.Errorf("%w: unknown layer %q", ErrInvalidLayerReference, id)
	}
	if e.layer.Group != want {
		return nil, fmt.Errorf("%w: %q is a %s layer, not a %s layer", ErrInvalidLayerReference, id, e.layer.Group, want)
	}
	return e, nil
}

func copyLayer(l Layer) Layer {
	l.Source = cloneSource(l.Source)
	return l
}

func cloneSource(s Source) Source {
	if s.Params != nil {
		params := make(map[string]string, len(s.Params))
		for k, v := range s.Params {
			params[k] = v
		}
		s.Params = params
	}
	return s
}

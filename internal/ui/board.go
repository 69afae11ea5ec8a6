// Package ui holds the server-side model of the viewer page: the controls
// and text elements the map session reads and writes. The page reports user
// input through Change and Click; the viewer streams the elements back.
package ui

import (
	"fmt"
	"sort"
	"sync"

	"github.com/konfevgas/web-gis-project/internal/config"
	"github.com/konfevgas/web-gis-project/internal/service"
)

// Kind is the element type.
type Kind string

const (
	Checkbox Kind = "checkbox"
	Radio    Kind = "radio"
	Button   Kind = "button"
	Text     Kind = "text"
)

// Element is one document element. Radios sharing a Name form a group in
// which at most one is checked.
type Element struct {
	ID      string `json:"id"`
	Kind    Kind   `json:"kind"`
	Name    string `json:"name,omitempty"`
	Label   string `json:"label,omitempty"`
	Checked bool   `json:"checked"`
	Text    string `json:"text,omitempty"`
}

// Board is a document of controls and text elements. It implements
// service.Document.
type Board struct {
	mu       sync.RWMutex
	order    []string
	elements map[string]*Element
	change   map[string][]func(bool)
	click    map[string][]func()
}

// NewBoard creates a board holding the given elements.
func NewBoard(elements ...Element) *Board {
	b := &Board{
		elements: make(map[string]*Element, len(elements)),
		change:   make(map[string][]func(bool)),
		click:    make(map[string][]func()),
	}
	for _, e := range elements {
		e := e
		if _, exists := b.elements[e.ID]; !exists {
			b.order = append(b.order, e.ID)
		}
		b.elements[e.ID] = &e
	}
	return b
}

// basemapGroup is the radio group name of the basemap controls.
const basemapGroup = "basemap"

// FromConfig creates the board of the bundled viewer page: a radio per
// basemap, a checkbox per overlay, the marker buttons and the two readouts.
func FromConfig(m *config.Map) *Board {
	var elements []Element
	for _, bm := range m.Basemaps {
		elements = append(elements, Element{ID: bm.Control, Kind: Radio, Name: basemapGroup, Label: bm.Title})
	}
	for _, o := range m.Overlays {
		elements = append(elements, Element{ID: o.Control, Kind: Checkbox, Label: o.Title})
	}
	c := m.Controls
	elements = append(elements,
		Element{ID: c.RemoveMarker, Kind: Button, Label: "Remove marker"},
		Element{ID: c.CopyCoordinates, Kind: Button, Label: "Copy coordinates"},
		Element{ID: c.HoverText, Kind: Text},
		Element{ID: c.ClickText, Kind: Text, Text: service.Placeholder},
	)
	return NewBoard(elements...)
}

// Has reports whether the board has an element with the given id.
func (b *Board) Has(id string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.elements[id]
	return ok
}

// OnChange registers a change listener on a checkbox or radio.
func (b *Board) OnChange(id string, fn func(checked bool)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := b.control(id, Checkbox, Radio); err != nil {
		return err
	}
	b.change[id] = append(b.change[id], fn)
	return nil
}

// OnClick registers a click listener on a button.
func (b *Board) OnClick(id string, fn func()) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := b.control(id, Button); err != nil {
		return err
	}
	b.click[id] = append(b.click[id], fn)
	return nil
}

// SetChecked sets the checked state without firing listeners. Checking a
// radio unchecks the rest of its group.
func (b *Board) SetChecked(id string, checked bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, err := b.control(id, Checkbox, Radio)
	if err != nil {
		return err
	}
	b.setChecked(e, checked)
	return nil
}

// SetText sets the text of any element.
func (b *Board) SetText(id, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.elements[id]
	if !ok {
		return fmt.Errorf("%w: %q", service.ErrUnknownControl, id)
	}
	e.Text = text
	return nil
}

// Change records user input on a checkbox or radio and fires its change
// listeners. Like a browser, unchecking a radio directly is ignored.
func (b *Board) Change(id string, checked bool) error {
	b.mu.Lock()
	e, err := b.control(id, Checkbox, Radio)
	if err != nil {
		b.mu.Unlock()
		return err
	}
	if e.Kind == Radio && !checked {
		b.mu.Unlock()
		return nil
	}
	b.setChecked(e, checked)
	listeners := append([]func(bool){}, b.change[id]...)
	b.mu.Unlock()

	for _, fn := range listeners {
		fn(checked)
	}
	return nil
}

// Click records a button press and fires its click listeners.
func (b *Board) Click(id string) error {
	b.mu.RLock()
	_, err := b.control(id, Button)
	listeners := append([]func(){}, b.click[id]...)
	b.mu.RUnlock()
	if err != nil {
		return err
	}

	for _, fn := range listeners {
		fn()
	}
	return nil
}

// Element returns a copy of one element.
func (b *Board) Element(id string) (Element, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.elements[id]
	if !ok {
		return Element{}, false
	}
	return *e, true
}

// Elements returns copies of all elements in creation order.
func (b *Board) Elements() []Element {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Element, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, *b.elements[id])
	}
	return out
}

// Checked returns the checked state of every checkbox and radio, keyed by id.
func (b *Board) Checked() map[string]bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := map[string]bool{}
	for id, e := range b.elements {
		if e.Kind == Checkbox || e.Kind == Radio {
			out[id] = e.Checked
		}
	}
	return out
}

// Listeners returns the number of listeners registered on an element.
func (b *Board) Listeners(id string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.change[id]) + len(b.click[id])
}

// ControlIDs returns the ids of all checkboxes and radios, sorted.
func (b *Board) ControlIDs() []string {
	checked := b.Checked()
	ids := make([]string, 0, len(checked))
	for id := range checked {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (b *Board) control(id string, kinds ...Kind) (*Element, error) {
	e, ok := b.elements[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", service.ErrUnknownControl, id)
	}
	for _, k := range kinds {
		if e.Kind == k {
			return e, nil
		}
	}
	return nil, fmt.Errorf("element %q is a %s", id, e.Kind)
}

func (b *Board) setChecked(e *Element, checked bool) {
	if e.Kind == Radio && checked {
		for _, other := range b.elements {
			if other.Kind == Radio && other.Name == e.Name {
				other.Checked = false
			}
		}
	}
	e.Checked = checked
}

var _ service.Document = (*Board)(nil)

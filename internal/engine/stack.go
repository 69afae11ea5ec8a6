// Package engine models the browser map's layer stack. The viewer streams
// the stack to the page, where the map widget renders it.
package engine

import (
	"fmt"
	"sync"

	"github.com/konfevgas/web-gis-project/internal/service"
)

// Layer is a layer handle issued by a Stack.
type Layer struct {
	id      string
	source  service.Source
	visible bool
}

// LayerID implements service.Handle.
func (l *Layer) LayerID() string { return l.id }

// LayerState is a snapshot of one stacked layer, bottom first.
type LayerState struct {
	ID      string         `json:"id"`
	Visible bool           `json:"visible"`
	Source  service.Source `json:"source"`
}

// Stack is an ordered layer stack, index 0 drawn first.
type Stack struct {
	mu      sync.RWMutex
	handles map[string]*Layer
	stack   []*Layer
}

// NewStack creates an empty stack.
func NewStack() *Stack {
	return &Stack{handles: make(map[string]*Layer)}
}

// NewLayer creates a hidden, unstacked layer.
func (s *Stack) NewLayer(id string, src service.Source) (service.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.handles[id]; exists {
		return nil, fmt.Errorf("layer %q already created", id)
	}
	l := &Layer{id: id, source: src}
	s.handles[id] = l
	return l, nil
}

// SetVisible sets a layer's visibility, stacked or not.
func (s *Stack) SetVisible(h service.Handle, visible bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.own(h)
	if err != nil {
		return err
	}
	l.visible = visible
	return nil
}

// AddLayer pushes a layer on top of the stack.
func (s *Stack) AddLayer(h service.Handle) error {
	return s.InsertLayerAt(-1, h)
}

// InsertLayerAt inserts a layer at index i; -1 appends.
func (s *Stack) InsertLayerAt(i int, h service.Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.own(h)
	if err != nil {
		return err
	}
	for _, existing := range s.stack {
		if existing == l {
			return fmt.Errorf("layer %q already stacked", l.id)
		}
	}
	if i == -1 {
		i = len(s.stack)
	}
	if i < 0 || i > len(s.stack) {
		return fmt.Errorf("insert index %d out of range [0,%d]", i, len(s.stack))
	}

	s.stack = append(s.stack, nil)
	copy(s.stack[i+1:], s.stack[i:])
	s.stack[i] = l
	return nil
}

// RemoveLayerAt removes and returns the layer at index i.
func (s *Stack) RemoveLayerAt(i int) (service.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i < 0 || i >= len(s.stack) {
		return nil, fmt.Errorf("remove index %d out of range [0,%d)", i, len(s.stack))
	}
	l := s.stack[i]
	s.stack = append(s.stack[:i], s.stack[i+1:]...)
	return l, nil
}

// Snapshot returns the stacked layers, bottom first.
func (s *Stack) Snapshot() []LayerState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]LayerState, len(s.stack))
	for i, l := range s.stack {
		out[i] = LayerState{ID: l.id, Visible: l.visible, Source: l.source}
	}
	return out
}

// Visible reports whether the layer with the given id is visible.
func (s *Stack) Visible(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.handles[id]
	return ok && l.visible
}

func (s *Stack) own(h service.Handle) (*Layer, error) {
	l, ok := h.(*Layer)
	if !ok || l == nil || s.handles[l.id] != l {
		return nil, fmt.Errorf("foreign layer handle %T", h)
	}
	return l, nil
}

var _ service.Engine = (*Stack)(nil)

package service

// Handle is an opaque layer handle issued by an Engine.
type Handle interface {
	LayerID() string
}

// Engine is the map render engine. The session only issues these calls; tile
// fetching, WMS requests and compositing are the engine's business. Calls are
// synchronous: when one returns, the engine reflects the change.
type Engine interface {
	NewLayer(id string, src Source) (Handle, error)
	SetVisible(h Handle, visible bool) error
	AddLayer(h Handle) error
	InsertLayerAt(i int, h Handle) error
	RemoveLayerAt(i int) (Handle, error)
}

// Document is the UI document hosting the controls. Controls are looked up by
// element id; an unknown id is an error.
type Document interface {
	Has(elementID string) bool
	OnChange(controlID string, fn func(checked bool)) error
	OnClick(controlID string, fn func()) error
	SetChecked(controlID string, checked bool) error
	SetText(elementID, text string) error
}

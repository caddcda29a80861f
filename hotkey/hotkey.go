// Package hotkey delivers the global Ctrl+Shift+Space gesture that toggles
// listening regardless of window focus.
package hotkey

type Hotkey interface {
	Register() error
	Unregister()
	// Pressed fires once per completed keypress of the combo.
	Pressed() <-chan struct{}
}

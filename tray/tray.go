// Package tray drives the macOS menu bar item: listening state at a
// glance, device and detector selection, and quit. On other platforms
// every entry point is a no-op.
package tray

import (
	"fmt"
	"sync"
	"time"
)

// DetectorMode is one selectable detector backend.
type DetectorMode struct {
	Name  string // wire name as stored in preferences
	Label string
}

var Modes = []DetectorMode{
	{"singing", "Singing detection"},
	{"energy_vad", "Energy VAD (no model)"},
}

var (
	quitCh    = make(chan struct{})
	closeOnce sync.Once

	toggleFn func()

	listening bool
	warning   bool

	deviceMu    sync.Mutex
	deviceNames []string
	deviceSel   string
	deviceCb    func(string)

	modeSel string
	modeCb  func(string)

	isBTFn func(string) bool
)

// OnToggle registers the callback for the Start/Stop Listening item.
func OnToggle(fn func()) { toggleFn = fn }

// SetListening updates the icon and menu for the current session state.
func SetListening(on bool) {
	listening = on
	warning = false
	updateListeningIcon(on)
	if on {
		disableDevices()
	} else {
		enableDevices()
	}
}

// SetWarning overlays the silence-warning badge. Ignored while idle.
func SetWarning(on bool) {
	if !listening {
		return
	}
	warning = on
	updateWarningIcon(on)
}

func SetError(msg string) {
	updateTooltip("attacca – " + msg)
	go func() {
		time.Sleep(10 * time.Second)
		updateTooltip("attacca – singing detection")
	}()
}

func Quit() {
	closeOnce.Do(func() { close(quitCh) })
}

func SetDevices(names []string, selected string, onSwitch func(name string)) {
	deviceMu.Lock()
	deviceNames = names
	deviceSel = selected
	if onSwitch != nil {
		deviceCb = onSwitch
	}
	deviceMu.Unlock()
}

// SetMode records the active detector and the callback for switching it.
func SetMode(name string, onSwitch func(string)) {
	modeSel = name
	modeCb = onSwitch
}

// SetTriggerInfo updates the status line after an activation.
func SetTriggerInfo(count int, at time.Time) {
	noun := "activations"
	if count == 1 {
		noun = "activation"
	}
	updateStatusTitle(fmt.Sprintf("%d %s, last %s", count, noun, at.Format("15:04:05")))
}

func SetUpdateAvailable(version string) {
	addUpdateMenuItem(version)
}

func SetBTCheck(fn func(string) bool) {
	isBTFn = fn
}

func deviceDisplayName(name string) string {
	if isBTFn != nil && isBTFn(name) {
		return name + " [⚠ Lower audio quality]"
	}
	return name
}

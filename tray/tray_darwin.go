//go:build darwin

package tray

import (
	"os/exec"

	"github.com/energye/systray"
	"golang.design/x/hotkey/mainthread"
)

var (
	mStatus     *systray.MenuItem
	mListen     *systray.MenuItem
	mDevices    *systray.MenuItem
	deviceItems []*systray.MenuItem
	deviceReady chan struct{}

	mSettings *systray.MenuItem
	mDetector *systray.MenuItem
	modeItems []*systray.MenuItem
	mUpdate   *systray.MenuItem
)

func Init() <-chan struct{} {
	deviceReady = make(chan struct{})
	start, _ := systray.RunWithExternalLoop(onReady, onExit)
	done := make(chan struct{})
	mainthread.Call(func() {
		start()
		close(done)
	})
	<-done
	return quitCh
}

func updateListeningIcon(on bool) {
	if on {
		systray.SetIcon(iconListenHi)
		if mListen != nil {
			mListen.SetTitle("Stop Listening")
		}
	} else {
		systray.SetTemplateIcon(iconIdleHi, iconIdle)
		if mListen != nil {
			mListen.SetTitle("Start Listening")
		}
	}
}

func disableDevices() {
	if mDevices != nil {
		mDevices.Disable()
	}
}

func enableDevices() {
	if mDevices != nil {
		mDevices.Enable()
	}
}

func updateWarningIcon(on bool) {
	if on {
		systray.SetIcon(iconWarnHi)
	} else {
		systray.SetIcon(iconListenHi)
	}
}

func updateTooltip(msg string) {
	systray.SetTooltip(msg)
}

func updateStatusTitle(title string) {
	if mStatus != nil {
		mStatus.SetTitle(title)
	}
}

func addDeviceItem(parent *systray.MenuItem, idx int, name string, checked bool) *systray.MenuItem {
	label := deviceDisplayName(name)
	item := parent.AddSubMenuItemCheckbox(label, label, checked)
	item.Click(func() {
		deviceMu.Lock()
		// Use current name from deviceNames, not the captured name
		// (RefreshDevices may have changed the title)
		currentName := ""
		if idx < len(deviceNames) {
			currentName = deviceNames[idx]
		}
		cb := deviceCb
		deviceMu.Unlock()
		if cb != nil && currentName != "" {
			cb(currentName)
		}
		deviceMu.Lock()
		for _, it := range deviceItems {
			it.Uncheck()
		}
		if idx < len(deviceItems) {
			deviceItems[idx].Check()
		}
		deviceMu.Unlock()
	})
	return item
}

func RefreshDevices(names []string, selected string) {
	if deviceReady == nil {
		return
	}
	<-deviceReady

	deviceMu.Lock()
	defer deviceMu.Unlock()

	deviceNames = names
	deviceSel = selected

	for i, item := range deviceItems {
		if i < len(names) {
			label := deviceDisplayName(names[i])
			item.SetTitle(label)
			item.SetTooltip(names[i])
			item.Show()
			if names[i] == selected {
				item.Check()
			} else {
				item.Uncheck()
			}
		} else {
			item.Hide()
			item.Uncheck()
		}
	}

	for i := len(deviceItems); i < len(names); i++ {
		item := addDeviceItem(mDevices, i, names[i], names[i] == selected)
		deviceItems = append(deviceItems, item)
	}
}

func onReady() {
	systray.SetTemplateIcon(iconIdleHi, iconIdle)
	systray.SetTooltip("attacca – singing detection")

	mStatus = systray.AddMenuItem("No activations yet", "Activation count for this session")
	mStatus.Disable()

	systray.AddSeparator()

	mListen = systray.AddMenuItem("Start Listening", "Start or stop singing detection")
	mListen.Click(func() {
		if toggleFn != nil {
			toggleFn()
		}
	})

	mSettings = systray.AddMenuItem("Settings", "Settings")

	mDevices = mSettings.AddSubMenuItem("Devices", "Select input device")

	deviceMu.Lock()
	deviceItems = make([]*systray.MenuItem, 0, len(deviceNames))
	for i, name := range deviceNames {
		item := addDeviceItem(mDevices, i, name, name == deviceSel)
		deviceItems = append(deviceItems, item)
	}
	deviceMu.Unlock()

	mDetector = mSettings.AddSubMenuItem("Detector", "Select detector backend")
	modeItems = make([]*systray.MenuItem, 0, len(Modes))
	for i, m := range Modes {
		idx := i
		item := mDetector.AddSubMenuItemCheckbox(m.Label, m.Label, m.Name == modeSel)
		item.Click(func() {
			for j, it := range modeItems {
				if j == idx {
					it.Check()
				} else {
					it.Uncheck()
				}
			}
			if modeCb != nil {
				modeCb(Modes[idx].Name)
			}
		})
		modeItems = append(modeItems, item)
	}

	systray.AddSeparator()
	mQuit := systray.AddMenuItem("Quit", "Quit attacca")
	mQuit.Click(func() { Quit() })
	systray.CreateMenu()

	close(deviceReady)
}

func addUpdateMenuItem(version string) {
	if mUpdate != nil {
		mUpdate.SetTitle("⚠ Update available: " + version)
		mUpdate.Show()
		return
	}
	if mSettings == nil {
		return
	}
	mUpdate = mSettings.AddSubMenuItem("Update available: "+version, "Open release page")
	mUpdate.Click(func() {
		url := "https://github.com/attacca-app/attacca/releases/tag/" + version
		exec.Command("open", url).Start()
	})
}

func onExit() {
	closeOnce.Do(func() { close(quitCh) })
}

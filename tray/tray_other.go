//go:build !darwin

package tray

func Init() <-chan struct{}                          { return make(chan struct{}) }
func RefreshDevices(names []string, selected string) {}
func updateListeningIcon(bool)                       {}
func updateWarningIcon(bool)                         {}
func updateTooltip(string)                           {}
func updateStatusTitle(string)                       {}
func addUpdateMenuItem(string)                       {}
func disableDevices()                                {}
func enableDevices()                                 {}

//go:build windows

package beep

// No audio playback on Windows - cues disabled.

func Init()        {}
func PlayTrigger() {}
func PlayWarn()    {}
func PlayError()   {}

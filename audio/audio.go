package audio

import (
	"errors"
	"fmt"
	"strings"
)

const WAVHeaderSize = 44

// ErrPermissionDenied marks a capture failure caused by the OS denying
// microphone access. Only backends that can recognize a denial wrap it;
// PulseAudio has no per-application microphone permission, so the linux
// backend never does.
var ErrPermissionDenied = errors.New("microphone access denied")

// wrapPermission tags err when the platform error text reports an access
// denial. miniaudio surfaces MA_ACCESS_DENIED only as message text, so this
// is the best signal the malgo backend has.
func wrapPermission(err error) error {
	if err != nil && strings.Contains(strings.ToLower(err.Error()), "access denied") {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	return err
}

var btKeywords = []string{
	"airpods", "beats", "bose", "wh-1000", "wf-1000",
	"sony wh-", "sony wf-",
	"jabra", "galaxy buds", "pixel buds", "powerbeats",
	"jbl ", "sennheiser momentum", "plantronics",
	"tozo", "anker soundcore", "skullcandy",
	"bluetooth", " bt ", " bt)", " bt]",
}

// IsBluetooth reports whether a device name looks like a Bluetooth headset.
// Bluetooth capture paths add latency and often apply their own DSP, both of
// which hurt activation accuracy, so the app warns when one is selected.
func IsBluetooth(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range btKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// DataCallback receives raw PCM s16le mono chunks from the capture device.
// It is invoked from the platform audio thread and must not block.
type DataCallback func(data []byte, frameCount uint32)

// CaptureConfig requests a capture stream. The device may negotiate a
// different sample rate; callers must read the rate back from the opened
// CaptureDevice rather than assume the requested one.
//
// Capture is opened raw: no echo cancellation, noise suppression, or
// automatic gain. Those stages alter the spectral signature of singing and
// degrade classifier accuracy.
type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error)
	Close()
}

type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
	// SampleRate returns the negotiated capture rate in Hz.
	SampleRate() uint32
	DeviceName() string
}

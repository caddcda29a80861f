package main

import (
	"fmt"
	"os"
	"time"

	"attacca/audio"
	"attacca/detect"
	"attacca/log"
)

// testModeTail keeps listening after the WAV ends so a trigger accumulating
// near the end of the file still lands.
const testModeTail = 2 * time.Second

// runTestMode replays a WAV file through the detection pipeline at wall-clock
// speed and reports every trigger. Exit status 0 means at least one trigger
// fired.
func runTestMode(wavPath string, mode detect.Mode, cfg detect.Config, factory detect.ClassifierFactory) int {
	fctx, err := audio.NewFakeContext(wavPath, captureSampleRate, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", wavPath, err)
		return 2
	}
	captureDevice, err := fctx.NewCapture(nil, audio.CaptureConfig{
		SampleRate: captureSampleRate,
		Channels:   1,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	fake := captureDevice.(*audio.FakeCapture)

	session := detect.NewSession(mode, cfg, func(m detect.Mode, c detect.Config) (detect.Detector, error) {
		switch m {
		case detect.ModeEnergyVAD:
			return detect.NewEnergyVADDetector(captureDevice, c), nil
		default:
			return detect.NewSingingDetector(captureDevice, c, factory), nil
		}
	})

	start := time.Now()
	session.OnTrigger(func(at time.Time) {
		fmt.Printf("trigger at %.2fs\n", at.Sub(start).Seconds())
	})
	session.OnSnapshot(func(snap detect.Snapshot) {
		if cfg.Debug {
			fmt.Printf("  p=%.3f smoothed=%.3f state=%s\n",
				snap.LastProbability, snap.Smoothed, snap.State)
		}
	})

	log.SessionStart(string(mode), "fake:"+wavPath, captureSampleRate)
	if err := session.StartListening(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	<-fake.AudioDone()
	time.Sleep(testModeTail)

	snap := session.Snapshot()
	session.StopListening()
	log.SessionEnd(snap.TriggerCount)
	log.Close()

	fmt.Printf("triggers: %d\n", snap.TriggerCount)
	if snap.TriggerCount == 0 {
		return 1
	}
	return 0
}

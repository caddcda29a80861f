package doctor

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strings"
	"sync"
	"time"

	"attacca/audio"
	"attacca/classifier"
	"attacca/hotkey"
)

// Run executes interactive diagnostic checks and returns an exit code
// (0=all pass, 1=any fail).
func Run(modelPath, classMapPath string) int {
	resetTerminal()
	setupInterruptHandler()

	fmt.Println("attacca doctor - interactive system diagnostics")
	fmt.Println("===============================================")

	allPass := true

	cls := checkModel(modelPath, classMapPath)
	if cls == nil {
		allPass = false
	} else {
		defer cls.Close()
	}
	if allPass && !checkHotkey() {
		allPass = false
	}
	if allPass && !checkMicAndDetection(cls) {
		allPass = false
	}

	fmt.Println()
	if allPass {
		fmt.Println("All checks passed!")
	} else {
		fmt.Println("Some checks failed. See details above.")
	}

	if allPass {
		return 0
	}
	return 1
}

// checkModel verifies the model files exist and that the classifier can
// score a synthetic tone. Returns the loaded classifier for reuse by the
// microphone check, or nil on failure.
func checkModel(modelPath, classMapPath string) *classifier.ONNX {
	fmt.Println()
	fmt.Println("[1/3] Classifier model")

	for _, p := range []string{modelPath, classMapPath} {
		if _, err := os.Stat(p); err != nil {
			fmt.Printf("  FAIL: %v\n", err)
			return nil
		}
	}

	start := time.Now()
	cls, err := classifier.NewONNX(classifier.ONNXOptions{
		ModelPath:    modelPath,
		ClassMapPath: classMapPath,
	})
	if err != nil {
		fmt.Printf("  FAIL: model load: %v\n", err)
		return nil
	}
	fmt.Printf("  Model loaded in %.1fs\n", time.Since(start).Seconds())

	// A 440Hz tone should score without error; the value itself is not
	// checked, only that inference completes.
	tone := make([]float32, 16000)
	for i := range tone {
		tone[i] = float32(0.3 * math.Sin(2*math.Pi*440*float64(i)/16000))
	}
	scores, err := cls.Classify(tone, 16000)
	if err != nil {
		fmt.Printf("  FAIL: inference: %v\n", err)
		cls.Close()
		return nil
	}
	if len(scores) == 0 {
		fmt.Println("  FAIL: model returned no scores")
		cls.Close()
		return nil
	}

	fmt.Printf("  PASS: inference OK (%d categories)\n", len(scores))
	return cls
}

func checkHotkey() bool {
	fmt.Println()
	fmt.Println("[2/3] Hotkey detection")
	fmt.Println("Press Ctrl+Shift+Space...")

	hk := hotkey.New()
	if err := hk.Register(); err != nil {
		fmt.Printf("  FAIL: could not register hotkey: %v\n", err)
		if msg, derr := hotkey.Diagnose(); derr != nil {
			fmt.Printf("  %v\n", derr)
		} else {
			fmt.Printf("  (%s)\n", msg)
		}
		return false
	}
	defer hk.Unregister()

	select {
	case <-hk.Pressed():
		fmt.Println("  PASS: hotkey detected")
		// Reset terminal after hotkey - it may leave terminal in raw mode
		resetTerminal()
		return true
	case <-time.After(10 * time.Second):
		fmt.Println("  FAIL: timeout waiting for hotkey")
		return false
	}
}

func checkMicAndDetection(cls *classifier.ONNX) bool {
	fmt.Println()
	fmt.Println("[3/3] Microphone and singing detection")

	reader := bufio.NewReader(os.Stdin)

	ctx, err := audio.NewContext()
	if err != nil {
		fmt.Printf("  FAIL: cannot connect to audio: %v\n", err)
		return false
	}
	defer ctx.Close()

	devices, err := ctx.Devices()
	if err != nil {
		fmt.Printf("  FAIL: cannot list devices: %v\n", err)
		return false
	}
	if len(devices) == 0 {
		fmt.Println("  FAIL: no capture devices found")
		return false
	}

	var device *audio.DeviceInfo
	if len(devices) == 1 {
		device = &devices[0]
		fmt.Printf("Using device: %s\n", device.Name)
	} else {
		fmt.Println()
		fmt.Println("Select input device:")
		for i, d := range devices {
			fmt.Printf("  %d. %s\n", i+1, d.Name)
		}
		fmt.Printf("Choice [1-%d]: ", len(devices))

		devChoice, _ := reader.ReadString('\n')
		devChoice = strings.TrimSpace(devChoice)
		idx := 0
		if devChoice != "" {
			fmt.Sscanf(devChoice, "%d", &idx)
			idx--
		}
		if idx < 0 || idx >= len(devices) {
			fmt.Printf("  FAIL: invalid choice\n")
			return false
		}
		device = &devices[idx]
		fmt.Printf("Selected: %s\n", device.Name)
	}

	fmt.Println()
	fmt.Print("Press Enter and sing or hum for 3 seconds...")
	reader.ReadString('\n')

	stop := make(chan struct{})
	go func() {
		time.Sleep(3 * time.Second)
		close(stop)
	}()

	samples, rate, err := recordAudio(ctx, device, stop)
	if err != nil {
		fmt.Printf("  FAIL: recording error: %v\n", err)
		return false
	}
	if len(samples) == 0 {
		fmt.Println("  FAIL: no audio captured")
		return false
	}

	peak := float32(0)
	for _, s := range samples {
		if a := float32(math.Abs(float64(s))); a > peak {
			peak = a
		}
	}
	if peak < 0.005 {
		fmt.Println("  FAIL: captured audio is silent (check input gain / device)")
		return false
	}
	fmt.Printf("  Recorded %.1fs (peak %.2f), scoring...\n",
		float64(len(samples))/float64(rate), peak)

	// Score one-second windows at half-second hops and keep the best.
	var bestSinging, bestSpeech float64
	win := rate
	for off := 0; off+win <= len(samples); off += win / 2 {
		scores, err := cls.Classify(samples[off:off+win], rate)
		if err != nil {
			fmt.Printf("  FAIL: inference: %v\n", err)
			return false
		}
		if p := classifier.MaxScore(scores, classifier.Singing); p > bestSinging {
			bestSinging = p
		}
		if p := classifier.MaxScore(scores, classifier.Speech); p > bestSpeech {
			bestSpeech = p
		}
	}

	fmt.Printf("\n  Peak singing probability: %.2f (speech %.2f)\n\n", bestSinging, bestSpeech)

	if bestSinging >= 0.4 {
		fmt.Println("  PASS: singing detected")
		return true
	}

	// Fresh reader to clear any buffered input.
	confirmReader := bufio.NewReader(os.Stdin)
	fmt.Print("Singing scored low. Were you actually singing? [y/n]: ")
	confirm, _ := confirmReader.ReadString('\n')
	confirm = strings.TrimSpace(strings.ToLower(confirm))

	if confirm == "y" || confirm == "yes" {
		fmt.Println("  FAIL: singing not recognized (try a closer mic or higher input gain)")
		return false
	}
	fmt.Println("  PASS: low score expected without singing")
	return true
}

func recordAudio(ctx audio.Context, device *audio.DeviceInfo, stop <-chan struct{}) ([]float32, int, error) {
	var buf []float32
	var bufMu sync.Mutex
	var stopped bool
	done := make(chan struct{})

	config := audio.CaptureConfig{
		SampleRate: 16000,
		Channels:   1,
	}

	captureDevice, err := ctx.NewCapture(device, config)
	if err != nil {
		return nil, 0, err
	}

	captureDevice.SetCallback(func(data []byte, frameCount uint32) {
		bufMu.Lock()
		if stopped {
			bufMu.Unlock()
			return
		}
		for i := 0; i+1 < len(data); i += 2 {
			s := int16(uint16(data[i]) | uint16(data[i+1])<<8)
			buf = append(buf, float32(s)/32768)
		}
		bufMu.Unlock()
	})

	if err := captureDevice.Start(); err != nil {
		captureDevice.Close()
		return nil, 0, err
	}
	rate := int(captureDevice.SampleRate())

	fmt.Print("  Recording")
	ticker := time.NewTicker(500 * time.Millisecond)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	}()

	<-stop
	close(done)

	captureDevice.Stop()
	fmt.Println(" done")
	captureDevice.Close()

	bufMu.Lock()
	stopped = true
	raw := buf
	bufMu.Unlock()

	return raw, rate, nil
}

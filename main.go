package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"attacca/audio"
	"attacca/beep"
	"attacca/classifier"
	"attacca/clips"
	"attacca/detect"
	"attacca/doctor"
	"attacca/hotkey"
	"attacca/log"
	"attacca/prefs"
	"attacca/shutdown"
	"attacca/tray"
	"attacca/update"
)

var version = "dev"

const captureSampleRate = 16000

var shutdownOnce sync.Once

func gracefulShutdown(session *detect.Session) {
	shutdownOnce.Do(func() {
		if session != nil {
			snap := session.Snapshot()
			if snap.TriggerCount > 0 {
				log.SessionEnd(snap.TriggerCount)
			}
			session.StopListening()
		}
		log.Close()
		tuiMu.Lock()
		p := tuiProgram
		tuiMu.Unlock()
		if p != nil {
			p.Quit()
		}
		os.Exit(0)
	})
}

func deviceLineText(dev *audio.DeviceInfo) string {
	name := "system default"
	if dev != nil {
		name = dev.Name
	}
	return "mic: " + name
}

func modeLineText(mode detect.Mode, cfg detect.Config) string {
	switch mode {
	case detect.ModeEnergyVAD:
		return "[energy_vad]"
	default:
		gate := "speech rejected"
		if !cfg.RejectSpeech {
			gate = "speech tolerated"
		}
		return fmt.Sprintf("[singing | start %.2f hold %dms | %s]", cfg.StartThreshold, cfg.HoldMs, gate)
	}
}

// resolveModelPaths picks the classifier assets: flags beat preferences beat
// files next to the executable.
func resolveModelPaths(p prefs.Preferences, modelFlag, labelsFlag string) (string, string) {
	model := p.Classifier.ModelPath
	labels := p.Classifier.ClassMapPath
	if modelFlag != "" {
		model = modelFlag
	}
	if labelsFlag != "" {
		labels = labelsFlag
	}
	if model == "" || labels == "" {
		exeDir := "."
		if exe, err := os.Executable(); err == nil {
			exeDir = filepath.Dir(exe)
		}
		if model == "" {
			model = filepath.Join(exeDir, "yamnet.onnx")
		}
		if labels == "" {
			labels = filepath.Join(exeDir, "yamnet_class_map.csv")
		}
	}
	return model, labels
}

func run() {
	if len(os.Args) > 1 && os.Args[1] == "update" {
		if version == "dev" {
			fmt.Println("Dev build — cannot check for updates.")
			os.Exit(0)
		}
		fmt.Printf("attacca %s — checking for updates...\n", version)
		rel, err := update.CheckLatest(version)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		if rel == nil {
			fmt.Println("Already up to date.")
			os.Exit(0)
		}
		fmt.Printf("Update available: %s -> %s\n", version, rel.Version)
		fmt.Print("Continue? [y/N] ")
		var answer string
		fmt.Scanln(&answer)
		if answer != "y" && answer != "Y" {
			fmt.Println("Aborted.")
			os.Exit(0)
		}
		fmt.Printf("Downloading %s...\n", rel.Version)
		if err := update.Apply(rel); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Updated to %s\n", rel.Version)
		os.Exit(0)
	}

	prefsFlag := flag.String("prefs", "", "Preference file path (default: OS config dir)")
	setupFlag := flag.Bool("setup", false, "Select microphone device (otherwise uses system default)")
	deviceFlag := flag.String("device", "", "Use named microphone device")
	modeFlag := flag.String("mode", "", "Detector mode: singing or energy_vad (default: from prefs)")
	modelFlag := flag.String("model", "", "Path to the ONNX classifier model")
	labelsFlag := flag.String("labels", "", "Path to the classifier class map CSV")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	debugFlag := flag.Bool("debug", false, "Verbose per-tick state logging")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	testFlag := flag.Bool("test", false, "Headless mode: detect against a WAV file and exit")
	doctorFlag := flag.Bool("doctor", false, "Run interactive system diagnostics and exit")
	noBeepFlag := flag.Bool("nobeep", false, "Disable audible cues")
	tuiFlag := flag.Bool("tui", true, "Run with terminal UI")
	flag.Parse()

	// Resolve log directory early
	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}

	if *versionFlag {
		fmt.Printf("attacca %s\n", version)
		os.Exit(0)
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}

	prefsPath := *prefsFlag
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}
	p, err := prefs.Load(prefsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
		log.Warnf("prefs load: %v", err)
	}
	if *modeFlag != "" {
		p.Mode = *modeFlag
	}
	if *deviceFlag == "" {
		*deviceFlag = p.Device
	}
	cfg := p.Config()
	if *debugFlag {
		cfg.Debug = true
	}
	mode := p.DetectMode()
	modelPath, labelsPath := resolveModelPaths(p, *modelFlag, *labelsFlag)

	classifierFactory := func() (classifier.Classifier, error) {
		return classifier.NewONNX(classifier.ONNXOptions{
			ModelPath:    modelPath,
			ClassMapPath: labelsPath,
		})
	}

	if *doctorFlag {
		os.Exit(doctor.Run(modelPath, labelsPath))
	}

	if *testFlag {
		args := flag.Args()
		if len(args) == 0 {
			fmt.Fprintln(os.Stderr, "Usage: attacca -test <wav-file>")
			os.Exit(1)
		}
		os.Exit(runTestMode(args[0], mode, cfg, classifierFactory))
	}

	ctx, err := audio.NewContext()
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		fmt.Printf("Error initializing audio context: %v\n", err)
		os.Exit(1)
	}
	defer ctx.Close()

	var selectedDevice *audio.DeviceInfo
	if *deviceFlag != "" {
		if devices, err := ctx.Devices(); err == nil {
			for i := range devices {
				if devices[i].Name == *deviceFlag {
					selectedDevice = &devices[i]
					break
				}
			}
		}
		if selectedDevice == nil {
			fmt.Printf("Warning: device %q not found, using default\n", *deviceFlag)
		}
	} else if *setupFlag {
		selectedDevice, err = selectDevice(ctx)
		if err != nil {
			log.Warnf("device selection failed: %v", err)
			fmt.Printf("Warning: device selection failed: %v\n", err)
			fmt.Println("Falling back to default device")
			selectedDevice = nil
		}
	}

	captureDevice, err := ctx.NewCapture(selectedDevice, audio.CaptureConfig{
		SampleRate: captureSampleRate,
		Channels:   1,
	})
	if err != nil {
		log.Errorf("capture device init error: %v", err)
		fmt.Printf("Error initializing capture device: %v\n", err)
		os.Exit(1)
	}
	// Closure so a tray device switch reassigning captureDevice still
	// closes the live one on exit.
	defer func() { captureDevice.Close() }()

	recorder := clips.NewRecorder(filepath.Join(log.Dir(), "clips"), 50)
	saveClip := func(ev detect.Event) {
		if ev.Kind != detect.EventTrigger || len(ev.Window) == 0 {
			return
		}
		go func() {
			if path, err := recorder.Save(ev.Window, ev.SampleRate); err != nil {
				log.Warnf("clip save: %v", err)
			} else {
				log.Info("clip_saved: " + path)
			}
		}()
	}

	session := detect.NewSession(mode, cfg, func(m detect.Mode, c detect.Config) (detect.Detector, error) {
		switch m {
		case detect.ModeEnergyVAD:
			return detect.NewEnergyVADDetector(captureDevice, c), nil
		default:
			d := detect.NewSingingDetector(captureDevice, c, classifierFactory)
			d.OnEvent(saveClip)
			return d, nil
		}
	})

	// Menu bar item (macOS). Callbacks are funneled through channels so
	// they run on the main select loop, never on the systray goroutine.
	deviceSwitchChan := make(chan string, 1)
	trayModeChan := make(chan string, 1)
	tray.SetBTCheck(audio.IsBluetooth)
	if devices, err := ctx.Devices(); err == nil {
		names := make([]string, len(devices))
		for i, d := range devices {
			names[i] = d.Name
		}
		selName := ""
		if selectedDevice != nil {
			selName = selectedDevice.Name
		}
		tray.SetDevices(names, selName, func(name string) {
			select {
			case deviceSwitchChan <- name:
			default:
			}
		})
	}
	tray.SetMode(string(mode), func(name string) {
		select {
		case trayModeChan <- name:
		default:
		}
	})
	tray.OnToggle(func() {
		select {
		case tuiToggleChan <- struct{}{}:
		default:
		}
	})
	trayQuit := tray.Init()

	// Start TUI
	if *tuiFlag {
		tuiMu.Lock()
		tuiProgram = NewTUIProgram()
		tuiMu.Unlock()

		go func() {
			if _, err := tuiProgram.Run(); err != nil {
				log.Errorf("TUI error: %v", err)
				os.Exit(1)
			}
			gracefulShutdown(session)
		}()
	}

	var trayListening bool
	session.OnSnapshot(func(snap detect.Snapshot) {
		tuiSend(SnapshotMsg{Snap: snap})
		if snap.Listening != trayListening {
			trayListening = snap.Listening
			tray.SetListening(snap.Listening)
		}
	})
	session.OnTrigger(func(at time.Time) {
		tuiSend(TriggerMsg{At: at})
		beep.PlayTrigger()
		tray.SetTriggerInfo(session.Snapshot().TriggerCount, at)
		if !*tuiFlag {
			fmt.Printf("trigger at %s\n", at.Format("15:04:05.000"))
		}
	})
	session.OnSilence(func(ev detect.SilenceEvent) {
		switch ev {
		case detect.SilenceWarn:
			beep.PlayWarn()
			tray.SetWarning(true)
			logToTUI("no singing detected for a while")
		case detect.SilenceWarnClear:
			tray.SetWarning(false)
		case detect.SilenceAutoPause:
			log.Info("silence_auto_pause")
			logToTUI("prolonged silence — following would pause here")
		}
	})

	publishLines := func() {
		m, c := session.Mode(), cfg
		tuiSend(ModeLineMsg{Text: modeLineText(m, c)})
		tuiSend(ThresholdMsg{Start: c.StartThreshold})
	}
	publishLines()
	tuiSend(DeviceLineMsg{Text: deviceLineText(selectedDevice)})
	tuiSend(BluetoothWarningMsg{IsBT: selectedDevice != nil && audio.IsBluetooth(selectedDevice.Name)})

	log.SessionStart(string(mode), captureDevice.DeviceName(), captureDevice.SampleRate())
	if err := session.StartListening(); err != nil {
		log.Errorf("start listening: %v", err)
		if !*tuiFlag {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		beep.PlayError()
		logToTUI("start failed: %v", err)
	}

	// Hot-reload preferences; mode changes restart the detector, tuning
	// changes apply in place.
	prefsDone := make(chan struct{})
	defer close(prefsDone)
	go func() {
		err := prefs.Watch(prefsPath, prefsDone, func(np prefs.Preferences) {
			cfg = np.Config()
			if *debugFlag {
				cfg.Debug = true
			}
			if err := session.OnModeChange(np.DetectMode(), cfg); err != nil {
				log.Errorf("prefs apply: %v", err)
				logToTUI("prefs apply failed: %v", err)
			}
			publishLines()
		})
		if err != nil {
			log.Warnf("prefs watch unavailable: %v", err)
		}
	}()

	if *noBeepFlag {
		beep.Disable()
	}
	go beep.Init()

	update.StartBackgroundCheck(version, log.Dir(), func(rel update.Release) {
		log.Info("update_available: " + rel.Version)
		logToTUI("update available: %s (run: attacca update)", rel.Version)
		tray.SetUpdateAvailable(rel.Version)
	})

	sigChan := make(chan os.Signal, 1)
	shutdown.Notify(sigChan)

	// Global gesture works even when the terminal is not focused.
	hk := hotkey.New()
	if err := hk.Register(); err != nil {
		log.Warnf("hotkey unavailable: %v", err)
		logToTUI("global hotkey unavailable: %v", err)
	} else {
		defer hk.Unregister()
	}

	toggleListening := func() {
		if session.Snapshot().Listening {
			session.StopListening()
			log.Info("listening_paused")
		} else if err := session.StartListening(); err != nil {
			log.Errorf("resume: %v", err)
			beep.PlayError()
			logToTUI("resume failed: %v", err)
		}
	}

	applyMode := func(next detect.Mode) {
		if err := session.OnModeChange(next, cfg); err != nil {
			log.Errorf("mode switch: %v", err)
			logToTUI("mode switch failed: %v", err)
		}
		publishLines()
	}

	switchDevice := func(name string) {
		devices, err := ctx.Devices()
		if err != nil {
			log.Warnf("device list: %v", err)
			return
		}
		var next *audio.DeviceInfo
		for i := range devices {
			if devices[i].Name == name {
				next = &devices[i]
				break
			}
		}
		if next == nil {
			log.Warnf("device %q disappeared", name)
			return
		}
		wasListening := session.Snapshot().Listening
		if wasListening {
			session.StopListening()
		}
		newCapture, err := ctx.NewCapture(next, audio.CaptureConfig{
			SampleRate: captureSampleRate,
			Channels:   1,
		})
		if err != nil {
			log.Errorf("device switch: %v", err)
			tray.SetError(err.Error())
			if wasListening {
				session.StartListening()
			}
			return
		}
		captureDevice.Close()
		captureDevice = newCapture
		selectedDevice = next
		log.Info("device_switched: " + name)
		tuiSend(DeviceLineMsg{Text: deviceLineText(selectedDevice)})
		tuiSend(BluetoothWarningMsg{IsBT: audio.IsBluetooth(name)})
		if wasListening {
			if err := session.StartListening(); err != nil {
				log.Errorf("restart after device switch: %v", err)
				logToTUI("restart failed: %v", err)
			}
		}
	}

	deviceRefresh := time.NewTicker(10 * time.Second)
	defer deviceRefresh.Stop()

	for {
		select {
		case <-sigChan:
			gracefulShutdown(session)
		case <-trayQuit:
			gracefulShutdown(session)
		case <-deviceRefresh.C:
			if devices, err := ctx.Devices(); err == nil {
				names := make([]string, len(devices))
				for i, d := range devices {
					names[i] = d.Name
				}
				selName := ""
				if selectedDevice != nil {
					selName = selectedDevice.Name
				}
				tray.RefreshDevices(names, selName)
			}
		case <-tuiToggleChan:
			toggleListening()
		case <-hk.Pressed():
			toggleListening()
		case <-tuiModeChan:
			next := detect.ModeSinging
			if session.Mode() == detect.ModeSinging {
				next = detect.ModeEnergyVAD
			}
			applyMode(next)
		case name := <-trayModeChan:
			applyMode(detect.Mode(name))
		case name := <-deviceSwitchChan:
			switchDevice(name)
		}
	}
}

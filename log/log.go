package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	diagLog     zerolog.Logger
	diagFile    *os.File
	triggerFile *os.File
	logMu       sync.Mutex
	logReady    bool
	pid         int
	dir         string
)

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: -logpath flag
	if flagPath != "" {
		if !filepath.IsAbs(flagPath) {
			wd, err := os.Getwd()
			if err != nil {
				return "", err
			}
			return filepath.Join(wd, flagPath), nil
		}
		return flagPath, nil
	}

	// Priority 2: ATTACCA_LOG_PATH environment variable
	envPath := os.Getenv("ATTACCA_LOG_PATH")
	if envPath != "" {
		if !filepath.IsAbs(envPath) {
			wd, err := os.Getwd()
			if err != nil {
				return "", err
			}
			return filepath.Join(wd, envPath), nil
		}
		return envPath, nil
	}

	// Priority 3: Default OS-specific location
	return getDefaultDir()
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()

	var err error

	diagPath := filepath.Join(dir, "diagnostics_log.txt")
	diagFile, err = os.OpenFile(diagPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	triggerPath := filepath.Join(dir, "trigger_log.txt")
	triggerFile, err = os.OpenFile(triggerPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		diagFile.Close()
		return err
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).With().Timestamp().Int("pid", pid).Logger()

	logReady = true
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	if triggerFile != nil {
		triggerFile.Close()
		triggerFile = nil
	}
	logReady = false
}

func Info(msg string) {
	if logReady {
		diagLog.Info().Msg(msg)
	}
}

func Error(msg string) {
	if logReady {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

// SessionStart records a listening session beginning.
func SessionStart(mode, device string, sampleRate uint32) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("mode", mode).
		Str("device", device).
		Uint32("sample_rate", sampleRate).
		Msg("session_start")
}

// SessionEnd records a listening session ending with its trigger count.
func SessionEnd(triggers int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Int("triggers", triggers).
		Msg("session_end")
}

// Trigger records a fired activation with its decision inputs, and appends a
// plain-text line to the trigger log for offline tuning.
func Trigger(mode string, smoothed, pSinging, pSpeech float64) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("mode", mode).
		Float64("smoothed", smoothed).
		Float64("p_singing", pSinging).
		Float64("p_speech", pSpeech).
		Msg("trigger")

	logMu.Lock()
	defer logMu.Unlock()
	line := fmt.Sprintf("%s\t[%d]\t%s\tsmoothed=%.3f\n", time.Now().Format("2006-01-02 15:04:05"), pid, mode, smoothed)
	triggerFile.WriteString(line)
}

// ModeChange records a detector mode switch.
func ModeChange(from, to string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("from", from).
		Str("to", to).
		Msg("mode_change")
}

// ClassifierLoad records model load timing.
func ClassifierLoad(model string, ms float64) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("model", model).
		Float64("load_ms", ms).
		Msg("classifier_load")
}

// TickStats periodically records classification cadence health.
func TickStats(ticks, errors int, avgClassifyMs float64) {
	if !logReady {
		return
	}
	diagLog.Info().
		Int("ticks", ticks).
		Int("errors", errors).
		Float64("avg_classify_ms", avgClassifyMs).
		Msg("tick_stats")
}

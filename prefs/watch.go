package prefs

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"attacca/log"
)

// debounce coalesces the burst of events editors produce on save (truncate,
// write, rename, chmod) into one reload.
const debounce = 200 * time.Millisecond

// Watch reloads the preference file on change and calls onChange with the
// new parse. The parent directory is watched rather than the file itself so
// atomic-replace saves keep working. A reload that fails to parse is logged
// and dropped; the last good preferences stay in effect.
//
// Watch blocks until done is closed.
func Watch(path string, done <-chan struct{}, onChange func(Preferences)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %q: %w", dir, err)
	}

	base := filepath.Base(path)
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-done:
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
				timerC = timer.C
			} else {
				timer.Reset(debounce)
			}
		case <-timerC:
			timer = nil
			timerC = nil
			p, err := Load(path)
			if err != nil {
				log.Warnf("prefs: reload failed, keeping previous: %v", err)
				continue
			}
			log.Info("prefs: reloaded " + path)
			onChange(p)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warnf("prefs: watcher error: %v", err)
		}
	}
}

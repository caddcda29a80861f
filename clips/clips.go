// Package clips persists the audio window that fired a trigger as a FLAC
// file, so false positives can be replayed and the thresholds tuned against
// real material.
package clips

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"

	"attacca/log"
)

const (
	bitsPerSample = 16
	blockSize     = 4096
	filePrefix    = "trigger_"
	fileSuffix    = ".flac"
)

// Recorder writes trigger clips into dir, keeping at most maxClips files.
type Recorder struct {
	dir      string
	maxClips int
}

func NewRecorder(dir string, maxClips int) *Recorder {
	if maxClips < 1 {
		maxClips = 1
	}
	return &Recorder{dir: dir, maxClips: maxClips}
}

// Save encodes one mono float32 window and writes it under a timestamped
// name. Returns the written path.
func (r *Recorder) Save(window []float32, sampleRate int) (string, error) {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating clips dir: %w", err)
	}

	now := time.Now()
	name := fmt.Sprintf("%s%s_%03d%s", filePrefix, now.Format("20060102_150405"), now.Nanosecond()/1e6, fileSuffix)
	path := filepath.Join(r.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating clip file: %w", err)
	}

	if err := encode(f, window, sampleRate); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing clip file: %w", err)
	}

	r.prune()
	return path, nil
}

func encode(f *os.File, window []float32, sampleRate int) error {
	info := &meta.StreamInfo{
		BlockSizeMin:  blockSize,
		BlockSizeMax:  blockSize,
		SampleRate:    uint32(sampleRate),
		NChannels:     1,
		BitsPerSample: bitsPerSample,
		NSamples:      uint64(len(window)),
	}
	enc, err := flac.NewEncoder(f, info)
	if err != nil {
		return fmt.Errorf("creating flac encoder: %w", err)
	}

	for start := 0; start < len(window); start += blockSize {
		end := start + blockSize
		if end > len(window) {
			end = len(window)
		}
		block := window[start:end]

		samples32 := make([]int32, len(block))
		for i, s := range block {
			v := int32(s * 32767)
			if v > 32767 {
				v = 32767
			} else if v < -32768 {
				v = -32768
			}
			samples32[i] = v
		}

		fr := &frame.Frame{
			Header: frame.Header{
				BlockSize:     uint16(len(block)),
				SampleRate:    uint32(sampleRate),
				Channels:      frame.ChannelsMono,
				BitsPerSample: bitsPerSample,
			},
			Subframes: []*frame.Subframe{{
				SubHeader: frame.SubHeader{
					Pred: frame.PredVerbatim,
				},
				Samples:  samples32,
				NSamples: len(block),
			}},
		}
		if err := enc.WriteFrame(fr); err != nil {
			return fmt.Errorf("writing flac frame: %w", err)
		}
	}
	return enc.Close()
}

// prune deletes the oldest clips beyond the retention limit. Timestamped
// names sort chronologically.
func (r *Recorder) prune() {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return
	}
	var names []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), filePrefix) && strings.HasSuffix(e.Name(), fileSuffix) {
			names = append(names, e.Name())
		}
	}
	if len(names) <= r.maxClips {
		return
	}
	sort.Strings(names)
	for _, name := range names[:len(names)-r.maxClips] {
		if err := os.Remove(filepath.Join(r.dir, name)); err != nil {
			log.Warnf("clips: pruning %s: %v", name, err)
		}
	}
}

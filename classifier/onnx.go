package classifier

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

const (
	// onnxSampleRate is the rate the model was trained at; input windows at
	// other rates are resampled.
	onnxSampleRate = 16000

	// onnxInputSamples is the fixed waveform length per inference: 0.975s at
	// 16 kHz, the YAMNet frame size. Shorter windows are zero-padded at the
	// front, longer ones keep their most recent samples.
	onnxInputSamples = 15600
)

// ortInitOnce ensures the ONNX Runtime environment is initialized exactly
// once. ortInitErr is stored at package scope so subsequent NewONNX calls
// surface the failure instead of proceeding with an uninitialized environment.
var (
	ortInitOnce sync.Once
	ortInitErr  error
)

// ONNXOptions configures an ONNX-backed classifier.
type ONNXOptions struct {
	// ModelPath is the .onnx audio event model.
	ModelPath string
	// ClassMapPath is the CSV class map (index, mid, display_name per row,
	// with a header line).
	ClassMapPath string
	// InputName and OutputName override the model tensor names.
	// Defaults: "waveform" and "scores".
	InputName  string
	OutputName string
}

// ONNX runs a multi-class audio event model via ONNX Runtime. One instance
// owns its tensors and must be used from a single goroutine.
type ONNX struct {
	session *ort.AdvancedSession

	inputTensor  *ort.Tensor[float32] // [1, onnxInputSamples]
	outputTensor *ort.Tensor[float32] // [1, len(labels)]

	labels []string
	scores []Score // reused result slice
}

// NewONNX loads the model and class map and allocates inference tensors.
// Model load is the slow path the detector serializes behind its start gate.
func NewONNX(opts ONNXOptions) (*ONNX, error) {
	labels, err := loadClassMap(opts.ClassMapPath)
	if err != nil {
		return nil, err
	}

	modelData, err := os.ReadFile(opts.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("classifier: read model: %w", err)
	}

	ortInitOnce.Do(func() {
		if lib := os.Getenv("ATTACCA_ORT_LIB"); lib != "" {
			ort.SetSharedLibraryPath(lib)
		}
		ortInitErr = ort.InitializeEnvironment()
	})
	if ortInitErr != nil {
		return nil, fmt.Errorf("classifier: onnxruntime init: %w", ortInitErr)
	}

	inputName := opts.InputName
	if inputName == "" {
		inputName = "waveform"
	}
	outputName := opts.OutputName
	if outputName == "" {
		outputName = "scores"
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, onnxInputSamples))
	if err != nil {
		return nil, fmt.Errorf("classifier: create input tensor: %w", err)
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(len(labels))))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("classifier: create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSessionWithONNXData(
		modelData,
		[]string{inputName},
		[]string{outputName},
		[]ort.Value{inputTensor},
		[]ort.Value{outputTensor},
		nil, // default session options
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("classifier: create session: %w", err)
	}

	return &ONNX{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		labels:       labels,
		scores:       make([]Score, len(labels)),
	}, nil
}

// Classify scores one window. The window is resampled to the model rate and
// fitted to the fixed input length before inference.
func (c *ONNX) Classify(window []float32, sampleRate int) ([]Score, error) {
	if c.session == nil {
		return nil, fmt.Errorf("classifier: closed")
	}

	samples := resampleLinear(window, sampleRate, onnxSampleRate)
	in := c.inputTensor.GetData()
	if len(samples) >= len(in) {
		copy(in, samples[len(samples)-len(in):])
	} else {
		pad := len(in) - len(samples)
		for i := 0; i < pad; i++ {
			in[i] = 0
		}
		copy(in[pad:], samples)
	}

	if err := c.session.Run(); err != nil {
		return nil, fmt.Errorf("classifier: inference: %w", err)
	}

	out := c.outputTensor.GetData()
	for i, label := range c.labels {
		c.scores[i] = Score{Label: label, Value: float64(out[i])}
	}
	return c.scores, nil
}

// Close releases ONNX Runtime resources. Safe to call multiple times.
func (c *ONNX) Close() error {
	if c.session != nil {
		c.session.Destroy()
		c.session = nil
	}
	if c.inputTensor != nil {
		c.inputTensor.Destroy()
		c.inputTensor = nil
	}
	if c.outputTensor != nil {
		c.outputTensor.Destroy()
		c.outputTensor = nil
	}
	return nil
}

// loadClassMap reads an AudioSet-style class map CSV: a header line followed
// by index,mid,display_name rows. Returns display names in index order.
func loadClassMap(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("classifier: open class map: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("classifier: parse class map: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("classifier: class map %s has no entries", path)
	}

	labels := make([]string, 0, len(rows)-1)
	for _, row := range rows[1:] { // skip header
		if len(row) == 0 {
			continue
		}
		name := row[len(row)-1]
		labels = append(labels, strings.TrimSpace(name))
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("classifier: class map %s has no entries", path)
	}
	return labels, nil
}

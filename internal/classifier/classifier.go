package classifier

import (
	"fmt"
	"os"
	"runtime"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"goldsignal/internal/calculator"
	"goldsignal/internal/config"
	"goldsignal/internal/models"
)

// classes maps output tensor indices to signal classes in the order the
// model was trained with.
var classes = [...]models.SignalClass{
	models.ClassNeutral,
	models.ClassBuy,
	models.ClassSell,
}

// Classifier turns a feature vector into a signal class and a confidence in
// [0, 1]. Implementations are opaque: callers assume nothing about the model
// beyond the vector size.
type Classifier interface {
	Predict(features []float32) (models.SignalClass, float64, error)
	Close()
}

var (
	ortOnce sync.Once
	ortErr  error
)

// initRuntime points onnxruntime at the shared library and initializes the
// environment. The environment is process-wide, so this runs once; a second
// call with a different library path has no effect.
func initRuntime(libraryPath string) error {
	ortOnce.Do(func() {
		if libraryPath == "" {
			libraryPath = defaultLibraryPath()
		}
		ort.SetSharedLibraryPath(libraryPath)
		ortErr = ort.InitializeEnvironment()
	})
	return ortErr
}

func defaultLibraryPath() string {
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "/usr/lib/libonnxruntime.so"
	}
}

// ONNX runs the trained gold classifier through onnxruntime. The session
// holds a fixed 1x12 input tensor and a 1x3 probability output tensor bound
// at load time; Reload swaps the session after the artifact on disk changes.
type ONNX struct {
	path string

	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

// NewONNX loads the model artifact at cfg.Path.
func NewONNX(cfg config.ModelConfig) (*ONNX, error) {
	if err := initRuntime(cfg.ORTLibrary); err != nil {
		return nil, fmt.Errorf("initialize onnxruntime: %w", err)
	}
	o := &ONNX{path: cfg.Path}
	if err := o.open(); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *ONNX) open() error {
	if _, err := os.Stat(o.path); err != nil {
		return fmt.Errorf("model artifact: %w", err)
	}

	inputTensor, err := ort.NewTensor(ort.NewShape(1, calculator.VectorSize),
		make([]float32, calculator.VectorSize))
	if err != nil {
		return fmt.Errorf("create input tensor: %w", err)
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(len(classes))))
	if err != nil {
		inputTensor.Destroy()
		return fmt.Errorf("create output tensor: %w", err)
	}
	session, err := ort.NewAdvancedSession(o.path,
		[]string{"input"}, []string{"output"},
		[]ort.Value{inputTensor}, []ort.Value{outputTensor}, nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return fmt.Errorf("create session: %w", err)
	}

	o.session = session
	o.input = inputTensor
	o.output = outputTensor
	return nil
}

// Predict runs one inference pass. The confidence is the winning class
// probability.
func (o *ONNX) Predict(features []float32) (models.SignalClass, float64, error) {
	if len(features) != calculator.VectorSize {
		return models.ClassNeutral, 0, fmt.Errorf("classifier: feature vector has %d values, want %d",
			len(features), calculator.VectorSize)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session == nil {
		return models.ClassNeutral, 0, fmt.Errorf("classifier: session closed")
	}
	copy(o.input.GetData(), features)
	if err := o.session.Run(); err != nil {
		return models.ClassNeutral, 0, fmt.Errorf("run inference: %w", err)
	}
	class, conf := decide(o.output.GetData())
	return class, conf, nil
}

// Reload drops the current session and reopens the artifact at the same
// path. Called after the file on disk has been replaced.
func (o *ONNX) Reload() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closeLocked()
	return o.open()
}

// Close destroys the session and its tensors.
func (o *ONNX) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closeLocked()
}

func (o *ONNX) closeLocked() {
	if o.session != nil {
		o.session.Destroy()
		o.session = nil
	}
	if o.input != nil {
		o.input.Destroy()
		o.input = nil
	}
	if o.output != nil {
		o.output.Destroy()
		o.output = nil
	}
}

// decide picks the winning class by probability. Ties resolve to the lower
// index, which prefers NEUTRAL over a directional call.
func decide(probs []float32) (models.SignalClass, float64) {
	best := 0
	for i := 1; i < len(probs) && i < len(classes); i++ {
		if probs[i] > probs[best] {
			best = i
		}
	}
	return classes[best], float64(probs[best])
}

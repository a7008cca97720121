// Package classifier runs a single-input, single-output ONNX image
// classification model and reports its top-K classes.
package classifier

import (
	"errors"
	"fmt"
	"image"
	"os"
	"strings"
	"sync"

	"vision-inspector/internal/errcode"

	"github.com/rs/zerolog/log"
	onnxrt "github.com/yalue/onnxruntime_go"
)

// EnvRuntimeLibrary overrides the onnxruntime shared library location.
const EnvRuntimeLibrary = "ONNXRUNTIME_LIB"

var systemLibraries = []string{
	"/usr/local/lib/libonnxruntime.so",
	"/usr/lib/libonnxruntime.so",
	"/usr/lib/x86_64-linux-gnu/libonnxruntime.so",
	"/opt/onnxruntime/cpu/lib/libonnxruntime.so",
}

var envMu sync.Mutex

// Classifier owns one inference session. The zero value is not loaded.
type Classifier struct {
	// RuntimeLibrary is the onnxruntime shared library; empty means
	// ONNXRUNTIME_LIB or a well-known system path.
	RuntimeLibrary string

	session    *onnxrt.DynamicAdvancedSession
	labels     []string
	modelPath  string
	labelsPath string
}

// New returns an unloaded classifier.
func New(runtimeLibrary string) *Classifier {
	return &Classifier{RuntimeLibrary: runtimeLibrary}
}

// Loaded reports whether a model is ready.
func (c *Classifier) Loaded() bool {
	return c.session != nil
}

// Load prepares the model and labels. Loading the same paths again is a
// no-op; different paths release the current session first.
func (c *Classifier) Load(modelPath, labelsPath string) error {
	if strings.TrimSpace(modelPath) == "" {
		return errcode.New(errcode.ModelNotFound, "empty model path")
	}
	if _, err := os.Stat(modelPath); err != nil {
		return &errcode.Error{Code: errcode.ModelNotFound, Detail: modelPath, Err: err}
	}

	if c.session != nil && c.modelPath == modelPath && c.labelsPath == labelsPath {
		return nil
	}
	c.Close()

	labels, err := LoadLabels(labelsPath)
	if err != nil {
		return err
	}

	if err := initEnvironment(c.RuntimeLibrary); err != nil {
		return errcode.Wrap(errcode.InferenceFailed, err)
	}

	inputs, outputs, err := onnxrt.GetInputOutputInfo(modelPath)
	if err != nil {
		return errcode.Wrap(errcode.InferenceFailed, fmt.Errorf("io info: %w", err))
	}
	if len(inputs) != 1 || len(outputs) != 1 {
		return errcode.Newf(errcode.InferenceFailed, "unexpected io (in:%d out:%d)", len(inputs), len(outputs))
	}

	sess, err := onnxrt.NewDynamicAdvancedSession(modelPath,
		[]string{inputs[0].Name}, []string{outputs[0].Name}, nil)
	if err != nil {
		return errcode.Wrap(errcode.InferenceFailed, fmt.Errorf("session: %w", err))
	}

	c.session = sess
	c.labels = labels
	c.modelPath = modelPath
	c.labelsPath = labelsPath

	log.Debug().Str("model", modelPath).Int("labels", len(labels)).Msg("Classifier loaded")
	return nil
}

// PredictTopK classifies img and returns the k most probable classes.
func (c *Classifier) PredictTopK(img image.Image, k int) (Result, error) {
	if c.session == nil {
		return Result{}, errcode.ModelNotLoaded
	}
	if img == nil || img.Bounds().Empty() {
		return Result{}, errcode.New(errcode.EmptyRoi, "empty image")
	}

	input, err := onnxrt.NewTensor(onnxrt.NewShape(1, 3, InputHeight, InputWidth), Tensor(img, InputWidth, InputHeight))
	if err != nil {
		return Result{}, errcode.Wrap(errcode.InferenceFailed, fmt.Errorf("tensor: %w", err))
	}
	defer input.Destroy()

	outputs := []onnxrt.Value{nil}
	if err := c.session.Run([]onnxrt.Value{input}, outputs); err != nil {
		return Result{}, errcode.Wrap(errcode.InferenceFailed, fmt.Errorf("run: %w", err))
	}
	defer func() {
		for _, o := range outputs {
			if o != nil {
				_ = o.Destroy()
			}
		}
	}()

	t, ok := outputs[0].(*onnxrt.Tensor[float32])
	if !ok {
		return Result{}, errcode.Newf(errcode.InferenceFailed, "unexpected output type %T", outputs[0])
	}

	res, err := Rank(Softmax(t.GetData()), k, c.labels)
	if err != nil {
		return Result{}, errcode.Wrap(errcode.InferenceFailed, err)
	}
	return res, nil
}

// Close releases the session. The classifier may be loaded again.
func (c *Classifier) Close() {
	if c.session != nil {
		if err := c.session.Destroy(); err != nil {
			log.Warn().Err(err).Msg("Error destroying session")
		}
	}
	c.session = nil
	c.labels = nil
	c.modelPath = ""
	c.labelsPath = ""
}

func initEnvironment(lib string) error {
	envMu.Lock()
	defer envMu.Unlock()

	if onnxrt.IsInitialized() {
		return nil
	}

	path, err := findRuntimeLibrary(lib)
	if err != nil {
		return err
	}
	onnxrt.SetSharedLibraryPath(path)

	if err := onnxrt.InitializeEnvironment(); err != nil {
		return fmt.Errorf("init onnx: %w", err)
	}
	return nil
}

func findRuntimeLibrary(configured string) (string, error) {
	candidates := []string{configured, os.Getenv(EnvRuntimeLibrary)}
	candidates = append(candidates, systemLibraries...)

	for _, p := range candidates {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", errors.New("onnxruntime library not found; set " + EnvRuntimeLibrary)
}

// Package config holds the defaults, the optional YAML settings file, and the
// immutable Request built for one inspection run.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"vision-inspector/internal/errcode"

	"gopkg.in/yaml.v3"
)

// FileName is the settings file looked up next to the executable.
const FileName = "vision.yaml"

// Settings are the tunables a Request starts from.
type Settings struct {
	// BaseDir is the executable directory; relative paths resolve against it
	// and the output directory falls back to it.
	BaseDir string `yaml:"-"`

	DebugLevel int    `yaml:"debug_level"`
	OutDir     string `yaml:"out_dir"`

	AI     AISettings     `yaml:"ai"`
	OCR    OCRSettings    `yaml:"ocr"`
	Camera CameraSettings `yaml:"camera"`
}

// AISettings configure the classifier path.
type AISettings struct {
	ModelPath  string  `yaml:"model_path"`
	LabelsPath string  `yaml:"labels_path"`
	Threshold  float64 `yaml:"threshold"`
	// RuntimeLibrary is the onnxruntime shared library. Empty means
	// ONNXRUNTIME_LIB or a well-known system location.
	RuntimeLibrary string `yaml:"runtime_library"`
}

// OCRSettings configure recognition, the gibberish filter and debouncing.
type OCRSettings struct {
	MinConf           float64 `yaml:"min_conf"`
	MinUsefulChars    int     `yaml:"min_useful_chars"`
	OtherRatioMax     float64 `yaml:"other_ratio_max"`
	MaxRun            int     `yaml:"max_run"`
	ConfirmHits       int     `yaml:"confirm_hits"`
	FallbackThreshold float64 `yaml:"fallback_threshold"`
	SingleLinePenalty float64 `yaml:"single_line_penalty"`
	Language          string  `yaml:"language"`
	TessdataPrefix    string  `yaml:"tessdata_prefix"`
}

// CameraSettings configure acquisition.
type CameraSettings struct {
	LockFile    string        `yaml:"lock_file"`
	LockTimeout time.Duration `yaml:"lock_timeout"`
	GrabTimeout time.Duration `yaml:"grab_timeout"`
}

// Defaults returns the built-in settings rooted at baseDir.
func Defaults(baseDir string) Settings {
	return Settings{
		BaseDir:    baseDir,
		DebugLevel: 1,
		OutDir:     baseDir,
		AI: AISettings{
			ModelPath:  filepath.Join(baseDir, "model.onnx"),
			LabelsPath: filepath.Join(baseDir, "labels.txt"),
			Threshold:  0.80,
		},
		OCR: OCRSettings{
			MinConf:           0.70,
			MinUsefulChars:    4,
			OtherRatioMax:     0.35,
			MaxRun:            8,
			ConfirmHits:       2,
			FallbackThreshold: 0.60,
			SingleLinePenalty: 0.80,
			Language:          "eng",
			TessdataPrefix:    localTessdata(baseDir),
		},
		Camera: CameraSettings{
			LockFile:    filepath.Join(os.TempDir(), "vision_grab.lock"),
			LockTimeout: 8 * time.Second,
			GrabTimeout: 5 * time.Second,
		},
	}
}

// BaseDir returns the directory of the running executable, or the working
// directory if that cannot be determined.
func BaseDir() string {
	exe, err := os.Executable()
	if err == nil {
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		return filepath.Dir(exe)
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

// Load returns Defaults(baseDir) overlaid with a YAML file. An empty path
// looks for FileName in baseDir and silently skips it when absent; an
// explicit path must exist.
func Load(baseDir, path string) (Settings, error) {
	s := Defaults(baseDir)

	explicit := path != ""
	if !explicit {
		path = filepath.Join(baseDir, FileName)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return s, nil
		}
		return s, errcode.Wrap(errcode.Usage, fmt.Errorf("failed to read config %s: %w", path, err))
	}

	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, errcode.Wrap(errcode.Usage, fmt.Errorf("failed to parse config %s: %w", path, err))
	}

	s.BaseDir = baseDir
	s.AI.ModelPath = resolve(baseDir, s.AI.ModelPath)
	s.AI.LabelsPath = resolve(baseDir, s.AI.LabelsPath)
	s.OutDir = resolve(baseDir, s.OutDir)
	s.OCR.TessdataPrefix = resolve(baseDir, s.OCR.TessdataPrefix)
	return s, nil
}

// localTessdata returns <baseDir>/tessdata when it exists, so a deployment
// can ship its own traineddata next to the executable.
func localTessdata(baseDir string) string {
	dir := filepath.Join(baseDir, "tessdata")
	if fi, err := os.Stat(dir); err == nil && fi.IsDir() {
		return dir
	}
	return ""
}

func resolve(baseDir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(baseDir, p)
}

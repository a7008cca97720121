package config

import (
	"os"
	"strings"
	"time"

	"vision-inspector/pkg/geometry"

	"github.com/rs/zerolog/log"
)

// Mode selects what one invocation does.
type Mode string

const (
	ModeList      Mode = "list"
	ModeGrab      Mode = "grab"
	ModeOCR       Mode = "ocr"
	ModeGrabOCR   Mode = "grab_ocr"
	ModeAI        Mode = "ai"
	ModeGrabAI    Mode = "grab_ai"
	ModeGrabAIOCR Mode = "grab_ai_ocr"
)

// Known reports whether m is one of the supported modes.
func (m Mode) Known() bool {
	switch m {
	case ModeList, ModeGrab, ModeOCR, ModeGrabOCR, ModeAI, ModeGrabAI, ModeGrabAIOCR:
		return true
	}
	return false
}

// Grabs reports whether the mode acquires a frame from the camera first.
func (m Mode) Grabs() bool {
	return m == ModeGrab || m == ModeGrabOCR || m == ModeGrabAI || m == ModeGrabAIOCR
}

// Request is the configuration for one run. It is a plain value; build it
// with a Builder.
type Request struct {
	Mode      Mode
	ImagePath string
	Serial    string

	HasUserROI bool
	ROI        geometry.Rect

	DebugLevel int
	OutDir     string

	ModelPath      string
	LabelsPath     string
	Threshold      float64
	RuntimeLibrary string

	MinConf           float64
	MinUsefulChars    int
	OtherRatioMax     float64
	MaxRun            int
	ConfirmHits       int
	FallbackThreshold float64
	SingleLinePenalty float64
	Language          string
	TessdataPrefix    string

	GrabLockFile    string
	GrabLockTimeout time.Duration
	GrabTimeout     time.Duration
}

// UserROI returns the user supplied rectangle, if any.
func (r Request) UserROI() (geometry.Rect, bool) {
	return r.ROI, r.HasUserROI
}

// Builder accumulates overrides on top of Settings.
type Builder struct {
	baseDir string
	req     Request
}

// NewBuilder starts a Request from s.
func NewBuilder(s Settings) *Builder {
	return &Builder{
		baseDir: s.BaseDir,
		req: Request{
			DebugLevel:        s.DebugLevel,
			OutDir:            s.OutDir,
			ModelPath:         s.AI.ModelPath,
			LabelsPath:        s.AI.LabelsPath,
			Threshold:         s.AI.Threshold,
			RuntimeLibrary:    s.AI.RuntimeLibrary,
			MinConf:           s.OCR.MinConf,
			MinUsefulChars:    s.OCR.MinUsefulChars,
			OtherRatioMax:     s.OCR.OtherRatioMax,
			MaxRun:            s.OCR.MaxRun,
			ConfirmHits:       s.OCR.ConfirmHits,
			FallbackThreshold: s.OCR.FallbackThreshold,
			SingleLinePenalty: s.OCR.SingleLinePenalty,
			Language:          s.OCR.Language,
			TessdataPrefix:    s.OCR.TessdataPrefix,
			GrabLockFile:      s.Camera.LockFile,
			GrabLockTimeout:   s.Camera.LockTimeout,
			GrabTimeout:       s.Camera.GrabTimeout,
		},
	}
}

// Mode sets the mode; it is lower-cased and trimmed but not validated.
func (b *Builder) Mode(m string) *Builder {
	b.req.Mode = Mode(strings.ToLower(strings.TrimSpace(m)))
	return b
}

// ImagePath sets the image to read or write.
func (b *Builder) ImagePath(p string) *Builder {
	b.req.ImagePath = strings.TrimSpace(p)
	return b
}

// Serial selects the camera.
func (b *Builder) Serial(s string) *Builder {
	b.req.Serial = strings.TrimSpace(s)
	return b
}

// ROI sets the user rectangle.
func (b *Builder) ROI(r geometry.Rect) *Builder {
	b.req.HasUserROI = true
	b.req.ROI = r
	return b
}

// DebugLevel sets the debug level.
func (b *Builder) DebugLevel(n int) *Builder {
	b.req.DebugLevel = n
	return b
}

// OutDir sets the output directory.
func (b *Builder) OutDir(dir string) *Builder {
	b.req.OutDir = dir
	return b
}

// Build clamps numeric fields, creates the output directory and returns the
// finished Request. If the output directory cannot be created the base
// directory is used instead.
func (b *Builder) Build() Request {
	r := b.req

	r.DebugLevel = clampInt(r.DebugLevel, 0, 2)
	r.Threshold = clampFloat(r.Threshold, 0, 1)
	r.MinConf = clampFloat(r.MinConf, 0, 1)
	r.OtherRatioMax = clampFloat(r.OtherRatioMax, 0, 1)
	r.ConfirmHits = max(1, r.ConfirmHits)
	if r.Language == "" {
		r.Language = "eng"
	}

	r.OutDir = EnsureOutDir(r.OutDir, b.baseDir)
	return r
}

// EnsureOutDir creates dir and returns it, or returns fallback when dir is
// empty or cannot be created.
func EnsureOutDir(dir, fallback string) string {
	if strings.TrimSpace(dir) == "" {
		return fallback
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Warn().Err(err).Str("outdir", dir).Str("fallback", fallback).Msg("Output directory unavailable, using fallback")
		return fallback
	}
	return dir
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(hi, v))
}

func clampFloat(v, lo, hi float64) float64 {
	return max(lo, min(hi, v))
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"vision-inspector/internal/errcode"
	"vision-inspector/pkg/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	s := Defaults("/opt/vision")

	assert.Equal(t, 1, s.DebugLevel)
	assert.Equal(t, "/opt/vision", s.OutDir)
	assert.Equal(t, "/opt/vision/model.onnx", s.AI.ModelPath)
	assert.Equal(t, "/opt/vision/labels.txt", s.AI.LabelsPath)
	assert.InDelta(t, 0.80, s.AI.Threshold, 1e-9)
	assert.InDelta(t, 0.70, s.OCR.MinConf, 1e-9)
	assert.Equal(t, 4, s.OCR.MinUsefulChars)
	assert.InDelta(t, 0.35, s.OCR.OtherRatioMax, 1e-9)
	assert.Equal(t, 8, s.OCR.MaxRun)
	assert.Equal(t, 2, s.OCR.ConfirmHits)
	assert.Equal(t, 8*time.Second, s.Camera.LockTimeout)
	assert.Equal(t, 5*time.Second, s.Camera.GrabTimeout)
}

func TestDefaultsFindLocalTessdata(t *testing.T) {
	dir := t.TempDir()
	assert.Empty(t, Defaults(dir).OCR.TessdataPrefix)

	require.NoError(t, os.Mkdir(filepath.Join(dir, "tessdata"), 0o755))
	assert.Equal(t, filepath.Join(dir, "tessdata"), Defaults(dir).OCR.TessdataPrefix)
}

func TestLoadWithoutFile(t *testing.T) {
	dir := t.TempDir()
	s, err := Load(dir, "")
	require.NoError(t, err)
	assert.Equal(t, Defaults(dir), s)
}

func TestLoadExplicitMissing(t *testing.T) {
	_, err := Load(t.TempDir(), "/nonexistent/vision.yaml")
	require.Error(t, err)
	assert.Equal(t, errcode.Usage, errcode.Of(err))
}

func TestLoadOverlaysYAML(t *testing.T) {
	dir := t.TempDir()
	yml := `
debug_level: 2
ai:
  model_path: models/part.onnx
  threshold: 0.9
ocr:
  confirm_hits: 3
  tessdata_prefix: /usr/share/tessdata
camera:
  lock_timeout: 2s
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(yml), 0o644))

	s, err := Load(dir, "")
	require.NoError(t, err)

	assert.Equal(t, 2, s.DebugLevel)
	assert.Equal(t, filepath.Join(dir, "models/part.onnx"), s.AI.ModelPath)
	assert.Equal(t, filepath.Join(dir, "labels.txt"), s.AI.LabelsPath)
	assert.InDelta(t, 0.9, s.AI.Threshold, 1e-9)
	assert.Equal(t, 3, s.OCR.ConfirmHits)
	assert.Equal(t, 4, s.OCR.MinUsefulChars)
	assert.Equal(t, "/usr/share/tessdata", s.OCR.TessdataPrefix)
	assert.Equal(t, 2*time.Second, s.Camera.LockTimeout)
	assert.Equal(t, 5*time.Second, s.Camera.GrabTimeout)
}

func TestLoadMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ocr: [unterminated"), 0o644))

	_, err := Load(dir, path)
	assert.Equal(t, errcode.Usage, errcode.Of(err))
}

func TestBuilderClampsAndCreatesOutDir(t *testing.T) {
	base := t.TempDir()
	out := filepath.Join(base, "runs", "today")

	s := Defaults(base)
	s.AI.Threshold = 1.5
	s.OCR.ConfirmHits = 0

	req := NewBuilder(s).
		Mode(" OCR ").
		ImagePath("frame.png").
		Serial(" 2245 ").
		ROI(geometry.XYWH(1, 2, 3, 4)).
		DebugLevel(7).
		OutDir(out).
		Build()

	assert.Equal(t, ModeOCR, req.Mode)
	assert.Equal(t, "2245", req.Serial)
	assert.Equal(t, 2, req.DebugLevel)
	assert.InDelta(t, 1.0, req.Threshold, 1e-9)
	assert.Equal(t, 1, req.ConfirmHits)
	assert.Equal(t, out, req.OutDir)
	assert.DirExists(t, out)

	roi, ok := req.UserROI()
	assert.True(t, ok)
	assert.Equal(t, geometry.XYWH(1, 2, 3, 4), roi)
}

func TestBuilderFallsBackToBaseDir(t *testing.T) {
	base := t.TempDir()
	blocker := filepath.Join(base, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	req := NewBuilder(Defaults(base)).OutDir(filepath.Join(blocker, "sub")).Build()
	assert.Equal(t, base, req.OutDir)

	req = NewBuilder(Defaults(base)).OutDir("").Build()
	assert.Equal(t, base, req.OutDir)
}

func TestModePredicates(t *testing.T) {
	assert.True(t, ModeGrabAIOCR.Known())
	assert.False(t, Mode("scan").Known())
	assert.True(t, ModeGrabOCR.Grabs())
	assert.False(t, ModeAI.Grabs())
	assert.False(t, ModeList.Grabs())
}

// Package debugsave writes diagnostic PNGs next to the inspection output.
// Every write is best effort: failures are logged and never returned.
package debugsave

import (
	"image"
	"image/color"
	"os"
	"path/filepath"

	"vision-inspector/pkg/geometry"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"
)

// Saver writes artifacts to Dir when the debug level allows it.
type Saver struct {
	Dir   string
	Level int
}

var roiColor = color.RGBA{0, 255, 0, 0}

// Enabled reports whether artifacts of minLevel are written.
func (s Saver) Enabled(minLevel int) bool {
	return s.Level >= minLevel && s.Level > 0 && s.Dir != ""
}

// Mat writes m as name when the level is at least minLevel.
func (s Saver) Mat(name string, m gocv.Mat, minLevel int) {
	if !s.Enabled(minLevel) || m.Empty() {
		return
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		log.Debug().Err(err).Str("dir", s.Dir).Msg("Debug directory unavailable")
		return
	}

	path := filepath.Join(s.Dir, name)
	if !gocv.IMWrite(path, m) {
		log.Debug().Str("path", path).Msg("Debug image not written")
	}
}

// ROI writes the crop of src as dbg_<tag>_roi.png at level 1 and, at level
// 2, src with the rectangle drawn as dbg_<tag>_roi_vis.png.
func (s Saver) ROI(src gocv.Mat, roi geometry.Rect, tag string) {
	if !s.Enabled(1) || src.Empty() {
		return
	}
	roi = roi.Clamp(image.Pt(src.Cols(), src.Rows()))
	if roi.Empty() {
		return
	}

	if s.Enabled(2) {
		vis := src.Clone()
		gocv.Rectangle(&vis, roi.ImageRect(), roiColor, 2)
		s.Mat("dbg_"+tag+"_roi_vis.png", vis, 2)
		vis.Close()
	}

	crop := src.Region(roi.ImageRect())
	s.Mat("dbg_"+tag+"_roi.png", crop, 1)
	crop.Close()
}

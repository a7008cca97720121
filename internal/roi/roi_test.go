package roi

import (
	"image"
	"image/color"
	"testing"

	"vision-inspector/pkg/geometry"

	"github.com/stretchr/testify/assert"
	"gocv.io/x/gocv"
)

func blankFrame(w, h int) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 0), h, w, gocv.MatTypeCV8UC3)
}

func textFrame(text string, at image.Point) gocv.Mat {
	m := blankFrame(400, 200)
	gocv.PutText(&m, text, at, gocv.FontHersheySimplex, 1.0, color.RGBA{0, 0, 0, 0}, 2)
	return m
}

func TestResolveAI(t *testing.T) {
	src := blankFrame(320, 240)
	defer src.Close()

	assert.Equal(t, geometry.XYWH(0, 0, 320, 240), ResolveAI(src, geometry.Rect{}, false))
	assert.Equal(t, geometry.XYWH(300, 0, 20, 10), ResolveAI(src, geometry.XYWH(300, -5, 50, 15), true))
	assert.True(t, ResolveAI(src, geometry.XYWH(400, 10, 5, 5), true).Empty())
}

func TestResolveOCRUserROI(t *testing.T) {
	src := textFrame("LOW BATTERY", image.Pt(40, 100))
	defer src.Close()

	// A user rectangle always wins over detection.
	assert.Equal(t, geometry.XYWH(0, 0, 10, 10), ResolveOCR(src, geometry.XYWH(0, 0, 10, 10), true))
	assert.True(t, ResolveOCR(src, geometry.XYWH(-50, -50, 20, 20), true).Empty())
}

func TestResolveOCRFindsTextLine(t *testing.T) {
	src := textFrame("LOW BATTERY", image.Pt(60, 110))
	defer src.Close()

	r := ResolveOCR(src, geometry.Rect{}, false)
	assert.False(t, r.Empty())

	sz := gocv.GetTextSize("LOW BATTERY", gocv.FontHersheySimplex, 1.0, 2)
	text := image.Rect(60, 110-sz.Y, 60+sz.X, 110).Inset(3)
	assert.True(t, text.In(r.ImageRect()), "roi %s should contain the text %v", r, text)
	assert.Greater(t, r.Width, 2*(r.Height-2*TextPad))
	assert.True(t, r.ImageRect().In(image.Rect(0, 0, 400, 200)))
}

func TestResolveOCRBlankImage(t *testing.T) {
	src := blankFrame(400, 200)
	defer src.Close()

	assert.True(t, ResolveOCR(src, geometry.Rect{}, false).Empty())
	assert.Equal(t, geometry.Rect{}, FindTextLike(src))
}

func TestResolveOCRGrayInput(t *testing.T) {
	bgr := textFrame("ERROR 42", image.Pt(50, 120))
	defer bgr.Close()
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(bgr, &gray, gocv.ColorBGRToGray)

	assert.False(t, ResolveOCR(gray, geometry.Rect{}, false).Empty())
}

// Package roi chooses the image rectangle each analysis stage looks at.
package roi

import (
	"image"

	"vision-inspector/pkg/geometry"

	"gocv.io/x/gocv"
)

// Text line detection parameters.
var (
	// TextKernel is wide and short so closing merges characters of one line.
	TextKernel = image.Pt(25, 5)
	// TextPad is added around a detected line.
	TextPad = 10
)

// ResolveAI returns the clamped user rectangle, or the whole image.
func ResolveAI(src gocv.Mat, user geometry.Rect, hasUser bool) geometry.Rect {
	size := image.Pt(src.Cols(), src.Rows())
	if hasUser {
		return user.Clamp(size)
	}
	return geometry.XYWH(0, 0, size.X, size.Y)
}

// ResolveOCR returns the clamped user rectangle, or the padded largest
// text-line shaped region. It is empty when nothing qualifies.
func ResolveOCR(src gocv.Mat, user geometry.Rect, hasUser bool) geometry.Rect {
	size := image.Pt(src.Cols(), src.Rows())
	if hasUser {
		return user.Clamp(size)
	}

	r := FindTextLike(src)
	if r.Empty() {
		return geometry.Rect{}
	}
	return r.Expand(TextPad).Clamp(size)
}

// FindTextLike locates dark text on a light background: black-hat,
// horizontal gradient, Otsu binarization and closing turn each text line into
// a blob. The largest blob at least twice as wide as tall wins.
func FindTextLike(src gocv.Mat) geometry.Rect {
	if src.Empty() {
		return geometry.Rect{}
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if src.Channels() == 1 {
		src.CopyTo(&gray)
	} else {
		gocv.CvtColor(src, &gray, gocv.ColorBGRToGray)
	}

	kernel := gocv.GetStructuringElement(gocv.MorphRect, TextKernel)
	defer kernel.Close()

	blackhat := gocv.NewMat()
	defer blackhat.Close()
	gocv.MorphologyEx(gray, &blackhat, gocv.MorphBlackhat, kernel)

	gradX := gocv.NewMat()
	defer gradX.Close()
	gocv.Sobel(blackhat, &gradX, gocv.MatTypeCV32F, 1, 0, 3, 1, 0, gocv.BorderDefault)

	absX := gocv.NewMat()
	defer absX.Close()
	gocv.ConvertScaleAbs(gradX, &absX, 1, 0)

	bin := gocv.NewMat()
	defer bin.Close()
	gocv.Threshold(absX, &bin, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)

	closed := gocv.NewMat()
	defer closed.Close()
	gocv.MorphologyEx(bin, &closed, gocv.MorphClose, kernel)

	contours := gocv.FindContours(closed, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var best geometry.Rect
	for i := 0; i < contours.Size(); i++ {
		r := geometry.FromImageRect(gocv.BoundingRect(contours.At(i)))
		if r.Width > 2*r.Height && r.Area() > best.Area() {
			best = r
		}
	}
	return best
}

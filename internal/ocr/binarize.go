package ocr

import (
	"image"

	"gocv.io/x/gocv"
)

// Variant is one binarization of a grayscale crop with text as white
// foreground, denoised and upscaled 2x.
type Variant struct {
	Name string
	Mat  gocv.Mat
}

// Fixed thresholds tried after Otsu.
var fixedThresholds = []struct {
	name  string
	value float32
}{
	{"t120", 120},
	{"t180", 180},
}

// Adaptive threshold parameters.
const (
	adaptiveBlock = 31
	adaptiveC     = 5
)

// Binarize returns the variants in their fixed evaluation order: otsu,
// t120, t180, adapt. The caller closes every Variant.Mat.
func Binarize(gray gocv.Mat) []Variant {
	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(2, 2))
	defer kernel.Close()

	variants := make([]Variant, 0, 2+len(fixedThresholds))

	otsu := gocv.NewMat()
	gocv.Threshold(gray, &otsu, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)
	variants = append(variants, Variant{Name: "otsu", Mat: finish(otsu, kernel)})

	for _, ft := range fixedThresholds {
		bin := gocv.NewMat()
		gocv.Threshold(gray, &bin, ft.value, 255, gocv.ThresholdBinary)
		variants = append(variants, Variant{Name: ft.name, Mat: finish(bin, kernel)})
	}

	adapt := gocv.NewMat()
	gocv.AdaptiveThreshold(gray, &adapt, 255, gocv.AdaptiveThresholdGaussian, gocv.ThresholdBinary, adaptiveBlock, adaptiveC)
	variants = append(variants, Variant{Name: "adapt", Mat: finish(adapt, kernel)})

	return variants
}

// finish inverts bin, opens then closes it, and upscales 2x with nearest
// neighbour. bin is consumed.
func finish(bin gocv.Mat, kernel gocv.Mat) gocv.Mat {
	defer bin.Close()

	inv := gocv.NewMat()
	defer inv.Close()
	gocv.BitwiseNot(bin, &inv)

	opened := gocv.NewMat()
	defer opened.Close()
	gocv.MorphologyEx(inv, &opened, gocv.MorphOpen, kernel)

	closed := gocv.NewMat()
	defer closed.Close()
	gocv.MorphologyEx(opened, &closed, gocv.MorphClose, kernel)

	up := gocv.NewMat()
	gocv.Resize(closed, &up, image.Pt(closed.Cols()*2, closed.Rows()*2), 0, 0, gocv.InterpolationNearestNeighbor)
	return up
}

// CloseVariants releases every variant matrix.
func CloseVariants(vs []Variant) {
	for _, v := range vs {
		v.Mat.Close()
	}
}

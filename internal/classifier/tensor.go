package classifier

import (
	"image"

	"github.com/disintegration/imaging"
)

// Model input size.
const (
	InputWidth  = 224
	InputHeight = 224
)

// Tensor resizes img to w×h and returns its RGB channels scaled to [0,1] in
// NCHW order for a batch of one.
func Tensor(img image.Image, w, h int) []float32 {
	resized := imaging.Resize(img, w, h, imaging.Linear)

	plane := w * h
	data := make([]float32, 3*plane)
	for y := 0; y < h; y++ {
		row := resized.Pix[y*resized.Stride:]
		for x := 0; x < w; x++ {
			px := row[x*4:]
			i := y*w + x
			data[i] = float32(px[0]) / 255
			data[plane+i] = float32(px[1]) / 255
			data[2*plane+i] = float32(px[2]) / 255
		}
	}
	return data
}

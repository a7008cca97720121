// Package frame loads inspection images and converts between Go images and
// OpenCV matrices.
package frame

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"vision-inspector/internal/errcode"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	"gocv.io/x/gocv"
)

// SupportedFormats returns the accepted image extensions.
func SupportedFormats() []string {
	return []string{".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff"}
}

// IsSupportedFormat reports whether path has a supported extension.
func IsSupportedFormat(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, f := range SupportedFormats() {
		if ext == f {
			return true
		}
	}
	return false
}

// Load reads path into a 3-channel BGR Mat. OpenCV decodes first; files it
// rejects are retried with the Go decoders. A missing or undecodable file
// fails with ImageNotFound.
func Load(path string) (gocv.Mat, error) {
	if _, err := os.Stat(path); err != nil {
		return gocv.NewMat(), &errcode.Error{Code: errcode.ImageNotFound, Detail: path, Err: err}
	}

	mat := gocv.IMRead(path, gocv.IMReadColor)
	if !mat.Empty() {
		return mat, nil
	}
	mat.Close()

	f, err := os.Open(path)
	if err != nil {
		return gocv.NewMat(), &errcode.Error{Code: errcode.ImageNotFound, Detail: path, Err: err}
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return gocv.NewMat(), &errcode.Error{Code: errcode.ImageNotFound, Detail: path, Err: fmt.Errorf("decode: %w", err)}
	}
	return FromImage(img)
}

// FromImage converts a Go image to a BGR Mat.
func FromImage(img image.Image) (gocv.Mat, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return gocv.NewMat(), fmt.Errorf("empty image")
	}

	buf := make([]byte, w*h*3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			i := (y*w + x) * 3
			// OpenCV uses BGR order
			buf[i+0] = uint8(b >> 8)
			buf[i+1] = uint8(g >> 8)
			buf[i+2] = uint8(r >> 8)
		}
	}

	wrapped, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8UC3, buf)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to create mat: %w", err)
	}
	defer wrapped.Close()

	// NewMatFromBytes shares buf; detach before buf can be collected.
	mat := wrapped.Clone()
	runtime.KeepAlive(buf)
	return mat, nil
}

// ToImage converts a 1- or 3-channel 8-bit Mat (or a region of one) to an
// RGBA image.
func ToImage(mat gocv.Mat) (*image.RGBA, error) {
	if mat.Empty() {
		return nil, fmt.Errorf("empty mat")
	}

	// Regions are not continuous; a clone is.
	c := mat.Clone()
	defer c.Close()

	w, h, ch := c.Cols(), c.Rows(), c.Channels()
	if ch != 1 && ch != 3 {
		return nil, fmt.Errorf("unsupported channel count %d", ch)
	}
	data := c.ToBytes()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			src := (y*w + x) * ch
			dst := y*img.Stride + x*4
			if ch == 1 {
				v := data[src]
				img.Pix[dst+0], img.Pix[dst+1], img.Pix[dst+2] = v, v, v
			} else {
				img.Pix[dst+0] = data[src+2]
				img.Pix[dst+1] = data[src+1]
				img.Pix[dst+2] = data[src+0]
			}
			img.Pix[dst+3] = 255
		}
	}
	return img, nil
}

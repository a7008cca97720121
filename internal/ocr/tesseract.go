// Package ocr recognizes short status text in an image region with
// Tesseract, searching several binarizations and segmentation strategies for
// the most confident reading.
package ocr

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/otiai10/gosseract/v2"
)

// StatusChars restricts recognition to the characters status screens use.
const StatusChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789 -_:/()."

// Config selects the Tesseract model.
type Config struct {
	Language string
	// TessdataPrefix is the directory holding <Language>.traineddata. Empty
	// uses the Tesseract default.
	TessdataPrefix string
	Whitelist      string
}

// DefaultConfig returns English with the status character whitelist.
func DefaultConfig() Config {
	return Config{Language: "eng", Whitelist: StatusChars}
}

// pageReader runs one recognition pass on an encoded image.
type pageReader interface {
	// Read returns the recognized text and a confidence in [0,1].
	Read(img []byte, mode gosseract.PageSegMode) (string, float64, error)
	Close() error
}

type tesseractReader struct {
	client *gosseract.Client
}

func newTesseractReader(cfg Config) (pageReader, error) {
	if cfg.TessdataPrefix != "" {
		trained := filepath.Join(cfg.TessdataPrefix, cfg.Language+".traineddata")
		if _, err := os.Stat(trained); err != nil {
			return nil, fmt.Errorf("missing %s: %w", trained, err)
		}
	}

	client := gosseract.NewClient()

	if cfg.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(cfg.TessdataPrefix); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to set tessdata prefix: %w", err)
		}
	}
	if err := client.SetLanguage(cfg.Language); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set OCR language: %w", err)
	}
	if cfg.Whitelist != "" {
		if err := client.SetWhitelist(cfg.Whitelist); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to set whitelist: %w", err)
		}
	}

	return &tesseractReader{client: client}, nil
}

func (r *tesseractReader) Read(img []byte, mode gosseract.PageSegMode) (string, float64, error) {
	if err := r.client.SetPageSegMode(mode); err != nil {
		return "", 0, fmt.Errorf("failed to set PSM: %w", err)
	}
	if err := r.client.SetImageFromBytes(img); err != nil {
		return "", 0, fmt.Errorf("failed to set image: %w", err)
	}

	text, err := r.client.Text()
	if err != nil {
		return "", 0, fmt.Errorf("OCR failed: %w", err)
	}

	// Mean word confidence, as Tesseract reports it for the page.
	boxes, err := r.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return text, 0, fmt.Errorf("failed to get boxes: %w", err)
	}
	return text, meanConfidence(boxes), nil
}

func (r *tesseractReader) Close() error {
	return r.client.Close()
}

func meanConfidence(boxes []gosseract.BoundingBox) float64 {
	if len(boxes) == 0 {
		return 0
	}
	var sum float64
	for _, b := range boxes {
		sum += b.Confidence
	}
	return clamp01(sum / float64(len(boxes)) / 100)
}

func clamp01(v float64) float64 {
	return max(0, min(1, v))
}

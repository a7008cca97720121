// Command ocrprobe runs ROI detection and the OCR variant search on one image
// or a directory of images and prints every pass with its confidence.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"vision-inspector/internal/config"
	"vision-inspector/internal/debugsave"
	"vision-inspector/internal/frame"
	"vision-inspector/internal/logging"
	"vision-inspector/internal/ocr"
	"vision-inspector/internal/roi"
	"vision-inspector/pkg/geometry"
)

func main() {
	input := flag.String("image", "", "Image file or directory of images")
	roiFlag := flag.String("roi", "", "Fixed OCR region as x,y,w,h (default: detect text line)")
	outDir := flag.String("out", "", "Directory for debug images (default: none)")
	debug := flag.Int("debug", 2, "Debug image level when -out is set (1 or 2)")
	configPath := flag.String("config", "", "Settings file (default: vision.yaml next to the executable)")
	flag.Parse()

	if *input == "" {
		fmt.Println("Usage: ocrprobe -image <file|dir> [-roi x,y,w,h] [-out dir] [-debug 1|2] [-config vision.yaml]")
		os.Exit(1)
	}

	logging.Setup(*debug)

	settings, err := config.Load(config.BaseDir(), *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load settings: %v\n", err)
		os.Exit(1)
	}

	var user geometry.Rect
	hasUser := *roiFlag != ""
	if hasUser {
		if user, err = parseRect(*roiFlag); err != nil {
			fmt.Fprintf(os.Stderr, "Invalid -roi: %v\n", err)
			os.Exit(1)
		}
	}

	paths, err := collect(*input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read input: %v\n", err)
		os.Exit(1)
	}
	if len(paths) == 0 {
		fmt.Fprintf(os.Stderr, "No images found in %s (supported: %s)\n", *input, strings.Join(frame.SupportedFormats(), ", "))
		os.Exit(1)
	}

	engine := ocr.NewEngine(ocr.Config{
		Language:       settings.OCR.Language,
		TessdataPrefix: settings.OCR.TessdataPrefix,
		Whitelist:      ocr.StatusChars,
	})
	defer engine.Close()

	opts := ocr.Options{
		Filter: ocr.FilterParams{
			MinConf:        settings.OCR.MinConf,
			MinUsefulChars: settings.OCR.MinUsefulChars,
			OtherRatioMax:  settings.OCR.OtherRatioMax,
			MaxRun:         settings.OCR.MaxRun,
		},
		FallbackThreshold: settings.OCR.FallbackThreshold,
		SingleLinePenalty: settings.OCR.SingleLinePenalty,
		OnAttempt: func(a ocr.Attempt) {
			fmt.Printf("  %-6s %-6s %6.3f  %q\n", a.Strategy, a.Variant, a.Conf, a.Text)
		},
	}

	failed := 0
	for _, path := range paths {
		if *outDir != "" {
			dir := filepath.Join(*outDir, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
			if err := os.MkdirAll(dir, 0o755); err != nil {
				fmt.Fprintf(os.Stderr, "Failed to create %s: %v\n", dir, err)
				os.Exit(1)
			}
			opts.Debug = debugsave.Saver{Dir: dir, Level: *debug}
		}
		if err := probe(engine, path, user, hasUser, opts); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed++
		}
	}

	fmt.Printf("\n%d image(s), %d failed\n", len(paths), failed)
	if failed > 0 {
		os.Exit(1)
	}
}

func probe(engine *ocr.Engine, path string, user geometry.Rect, hasUser bool, opts ocr.Options) error {
	src, err := frame.Load(path)
	if err != nil {
		return err
	}
	defer src.Close()

	r := roi.ResolveOCR(src, user, hasUser)
	fmt.Printf("\n%s (%dx%d)\n", path, src.Cols(), src.Rows())
	fmt.Printf("  ROI %s\n", r)
	if r.Empty() {
		fmt.Println("  no text-like region")
		return nil
	}

	res, err := engine.Recognize(src, r, opts)
	if err != nil {
		return err
	}

	hit := ""
	if res.Valid {
		hit = ocr.ClassifyHit(res.Text)
	}
	fmt.Printf("  => valid=%v conf=%.3f text=%q hit=%q\n", res.Valid, res.Conf, res.Text, hit)
	return nil
}

// collect returns path itself, or the supported images directly inside it.
func collect(path string) ([]string, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if !e.IsDir() && frame.IsSupportedFormat(e.Name()) {
			paths = append(paths, filepath.Join(path, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func parseRect(s string) (geometry.Rect, error) {
	var x, y, w, h int
	if _, err := fmt.Sscanf(s, "%d,%d,%d,%d", &x, &y, &w, &h); err != nil {
		return geometry.Rect{}, fmt.Errorf("want x,y,w,h: %w", err)
	}
	return geometry.XYWH(x, y, w, h), nil
}

package ocr

import (
	"image"
	"strings"
	"sync"

	"vision-inspector/internal/debugsave"
	"vision-inspector/internal/errcode"
	"vision-inspector/pkg/geometry"

	"github.com/otiai10/gosseract/v2"
	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"
)

// Defaults for the two-line fallback.
const (
	DefaultFallbackThreshold = 0.60
	DefaultSingleLinePenalty = 0.80
)

// Result is the chosen reading. Text and Conf are zero when Valid is false.
type Result struct {
	Text  string
	Conf  float64
	Valid bool
}

// Attempt describes one recognition pass.
type Attempt struct {
	Strategy string // block, line1 or line2
	Variant  string
	Text     string
	Conf     float64
}

// Options control one Recognize call.
type Options struct {
	Filter            FilterParams
	FallbackThreshold float64
	SingleLinePenalty float64
	Debug             debugsave.Saver
	// OnAttempt, if set, observes every pass in evaluation order.
	OnAttempt func(Attempt)
}

// DefaultOptions returns the production thresholds without debug output.
func DefaultOptions() Options {
	return Options{
		Filter:            FilterParams{MinConf: 0.70, MinUsefulChars: 4, OtherRatioMax: 0.35, MaxRun: 8},
		FallbackThreshold: DefaultFallbackThreshold,
		SingleLinePenalty: DefaultSingleLinePenalty,
	}
}

// Engine owns one lazily created Tesseract client and reuses it across
// calls. It is safe for sequential use only.
type Engine struct {
	cfg       Config
	newReader func(Config) (pageReader, error)

	mu     sync.Mutex
	reader pageReader
}

// NewEngine returns an engine for cfg. Tesseract is not started until the
// first non-empty Recognize.
func NewEngine(cfg Config) *Engine {
	if cfg.Language == "" {
		cfg.Language = "eng"
	}
	return &Engine{cfg: cfg, newReader: newTesseractReader}
}

// Close releases the Tesseract client.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.reader == nil {
		return nil
	}
	err := e.reader.Close()
	e.reader = nil
	return err
}

func (e *Engine) ensureReader() (pageReader, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.reader != nil {
		return e.reader, nil
	}
	r, err := e.newReader(e.cfg)
	if err != nil {
		return nil, errcode.Wrap(errcode.OcrEngineFailed, err)
	}
	e.reader = r
	return r, nil
}

// candidate is the best pass of one search, with its binarized image.
type candidate struct {
	text string
	conf float64
	bin  gocv.Mat
	name string
}

func (c *candidate) close() {
	if c.name != "" {
		c.bin.Close()
	}
}

// Recognize reads the text inside roi of src. An empty roi returns an
// invalid Result without starting Tesseract.
func (e *Engine) Recognize(src gocv.Mat, roi geometry.Rect, opts Options) (Result, error) {
	if src.Empty() {
		return Result{}, nil
	}
	roi = roi.Clamp(image.Pt(src.Cols(), src.Rows()))
	if roi.Empty() {
		return Result{}, nil
	}

	reader, err := e.ensureReader()
	if err != nil {
		return Result{}, err
	}

	opts.Debug.ROI(src, roi, "ocr")

	crop := src.Region(roi.ImageRect())
	defer crop.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	if crop.Channels() == 1 {
		crop.CopyTo(&gray)
	} else {
		gocv.CvtColor(crop, &gray, gocv.ColorBGRToGray)
	}
	opts.Debug.Mat("dbg_ocr_gray.png", gray, 2)

	best := search(reader, gray, gosseract.PSM_SINGLE_BLOCK, "block", opts)

	if best.conf < opts.FallbackThreshold {
		lines := splitLines(reader, gray, opts)
		if lines.conf > best.conf {
			best.close()
			best = lines
		} else {
			lines.close()
		}
	}
	defer best.close()

	if best.name != "" {
		if opts.Debug.Enabled(2) {
			opts.Debug.Mat("dbg_ocr_bin_best_"+best.name+".png", best.bin, 2)
		} else {
			opts.Debug.Mat("dbg_ocr_bin_best.png", best.bin, 1)
		}
	}

	if IsGibberish(best.text, best.conf, opts.Filter) {
		log.Debug().Str("text", best.text).Float64("conf", best.conf).Msg("OCR result rejected")
		return Result{}, nil
	}
	return Result{Text: best.text, Conf: best.conf, Valid: true}, nil
}

// search runs every binarization of gray through the reader and keeps the
// strictly most confident pass.
func search(reader pageReader, gray gocv.Mat, mode gosseract.PageSegMode, tag string, opts Options) candidate {
	var best candidate

	variants := Binarize(gray)
	defer CloseVariants(variants)

	for _, v := range variants {
		text, conf := readVariant(reader, v.Mat, mode)

		if opts.OnAttempt != nil {
			opts.OnAttempt(Attempt{Strategy: tag, Variant: v.Name, Text: text, Conf: conf})
		}

		if conf > best.conf {
			best.close()
			best = candidate{text: text, conf: conf, bin: v.Mat.Clone(), name: tag + "_" + v.Name}
		}

		opts.Debug.Mat("dbg_"+tag+"_"+v.Name+".png", v.Mat, 2)
	}
	return best
}

func readVariant(reader pageReader, bin gocv.Mat, mode gosseract.PageSegMode) (string, float64) {
	buf, err := gocv.IMEncode(gocv.PNGFileExt, bin)
	if err != nil {
		log.Debug().Err(err).Msg("Failed to encode variant")
		return "", 0
	}
	defer buf.Close()

	text, conf, err := reader.Read(buf.GetBytes(), mode)
	if err != nil {
		log.Debug().Err(err).Msg("Recognition pass failed")
		return "", 0
	}
	return normalizeText(text), clamp01(conf)
}

// splitLines reads the top and bottom halves of gray, overlapping by
// max(4, h/20) rows, as single lines and merges them.
func splitLines(reader pageReader, gray gocv.Mat, opts Options) candidate {
	w, h := gray.Cols(), gray.Rows()
	mid := h / 2
	overlap := max(4, h/20)

	topRect := image.Rect(0, 0, w, min(h, mid+overlap))
	bottomRect := image.Rect(0, max(0, mid-overlap), w, h)

	top := gray.Region(topRect)
	defer top.Close()
	bottom := gray.Region(bottomRect)
	defer bottom.Close()

	o1 := search(reader, top, gosseract.PSM_SINGLE_LINE, "line1", opts)
	o2 := search(reader, bottom, gosseract.PSM_SINGLE_LINE, "line2", opts)

	// The evidence image comes from the more confident half.
	var out candidate
	if o1.conf >= o2.conf {
		out.bin, out.name = o1.bin, o1.name
		o2.close()
	} else {
		out.bin, out.name = o2.bin, o2.name
		o1.close()
	}

	t1 := strings.TrimSpace(o1.text)
	t2 := strings.TrimSpace(o2.text)
	switch {
	case t1 != "" && t2 != "":
		out.text = normalizeText(t1 + "\n" + t2)
		out.conf = (o1.conf + o2.conf) / 2
	case t1 != "":
		out.text = normalizeText(t1)
		out.conf = o1.conf * opts.SingleLinePenalty
	case t2 != "":
		out.text = normalizeText(t2)
		out.conf = o2.conf * opts.SingleLinePenalty
	}
	return out
}

// normalizeText turns CR into spaces, trims and collapses double spaces.
func normalizeText(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\r", " "))
	for strings.Contains(s, "  ") {
		s = strings.ReplaceAll(s, "  ", " ")
	}
	return s
}

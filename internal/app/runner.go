// Package app runs one inspection: acquire or load a frame, resolve the
// regions of interest, classify and read the status, debounce the OCR state
// and decide the final state.
package app

import (
	"context"
	"fmt"
	"image"
	"strings"

	"vision-inspector/internal/camera"
	"vision-inspector/internal/classifier"
	"vision-inspector/internal/config"
	"vision-inspector/internal/debugsave"
	"vision-inspector/internal/errcode"
	"vision-inspector/internal/frame"
	"vision-inspector/internal/ocr"
	"vision-inspector/internal/report"
	"vision-inspector/internal/roi"
	"vision-inspector/internal/stabilizer"
	"vision-inspector/pkg/geometry"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"
)

// TopK is the number of classes reported in TOP3.
const TopK = 3

// Grabber acquires frames from a camera.
type Grabber interface {
	List(ctx context.Context) (int, error)
	GrabToFile(ctx context.Context, serial, path string) error
}

// Recognizer reads status text from a region of a frame.
type Recognizer interface {
	Recognize(src gocv.Mat, roi geometry.Rect, opts ocr.Options) (ocr.Result, error)
	Close() error
}

// Classifier predicts the state label of a region.
type Classifier interface {
	Load(modelPath, labelsPath string) error
	PredictTopK(img image.Image, k int) (classifier.Result, error)
	Close()
}

// Stabilizer debounces OCR hits across runs.
type Stabilizer interface {
	Update(outDir, serial, instant string, confirmHits int) stabilizer.State
}

// Deps are the collaborators of a Runner.
type Deps struct {
	Grabber    Grabber
	OCR        Recognizer
	Classifier Classifier
	Stabilizer Stabilizer
}

// Runner executes requests. It is meant for one invocation at a time.
type Runner struct {
	deps Deps
}

// New returns a Runner over deps.
func New(deps Deps) *Runner {
	return &Runner{deps: deps}
}

// NewDefault wires the production camera, Tesseract, ONNX Runtime and the
// file-backed stabilizer using the settings in req.
func NewDefault(req config.Request) *Runner {
	grabber := camera.NewGrabber(
		camera.V4L2{ByIDDir: camera.DefaultByIDDir},
		camera.Lock{Path: req.GrabLockFile, Timeout: req.GrabLockTimeout},
		req.GrabTimeout,
	)
	engine := ocr.NewEngine(ocr.Config{
		Language:       req.Language,
		TessdataPrefix: req.TessdataPrefix,
		Whitelist:      ocr.StatusChars,
	})
	return New(Deps{
		Grabber:    grabber,
		OCR:        engine,
		Classifier: classifier.New(req.RuntimeLibrary),
		Stabilizer: stabilizer.New(),
	})
}

// Close releases the OCR engine and the model session.
func (r *Runner) Close() {
	if r.deps.OCR != nil {
		if err := r.deps.OCR.Close(); err != nil {
			log.Warn().Err(err).Msg("OCR engine close failed")
		}
	}
	if r.deps.Classifier != nil {
		r.deps.Classifier.Close()
	}
}

// Run executes req. It never panics; every failure is reported as a FAIL
// response carrying an error code.
func (r *Runner) Run(ctx context.Context, req config.Request) (resp report.Response) {
	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic", p).Str("mode", string(req.Mode)).Msg("Run panicked")
			resp = fail(errcode.Internal, req)
		}
	}()

	if req.Mode == config.ModeList {
		if strings.TrimSpace(req.ImagePath) != "" {
			return fail(errcode.ImagePathNotRequiredInListMode, req)
		}
		return r.list(ctx, req)
	}

	if strings.TrimSpace(req.ImagePath) == "" {
		return fail(errcode.MissingImagePath, req)
	}

	switch req.Mode {
	case config.ModeGrab:
		return r.grab(ctx, req)
	case config.ModeOCR, config.ModeGrabOCR:
		return r.ocrMode(ctx, req)
	case config.ModeAI, config.ModeGrabAI, config.ModeGrabAIOCR:
		return r.aiMode(ctx, req)
	}
	return fail(errcode.UnknownMode, req)
}

func (r *Runner) list(ctx context.Context, req config.Request) report.Response {
	n, err := r.deps.Grabber.List(ctx)
	if err != nil {
		return failErr(err, req)
	}
	log.Info().Int("count", n).Msg("Cameras enumerated")

	resp := ok(req)
	resp.Hit = fmt.Sprintf("COUNT=%d", n)
	resp.DecideFinal()
	return resp
}

func (r *Runner) grab(ctx context.Context, req config.Request) report.Response {
	if err := r.deps.Grabber.GrabToFile(ctx, req.Serial, req.ImagePath); err != nil {
		return failErr(err, req)
	}
	resp := ok(req)
	resp.DecideFinal()
	return resp
}

func (r *Runner) ocrMode(ctx context.Context, req config.Request) report.Response {
	src, err := r.acquire(ctx, req)
	if err != nil {
		return failErr(err, req)
	}
	defer src.Close()

	resp := ok(req)
	if err := r.readStatus(src, req, &resp); err != nil {
		return failErr(err, req)
	}
	resp.DecideFinal()
	return resp
}

func (r *Runner) aiMode(ctx context.Context, req config.Request) report.Response {
	src, err := r.acquire(ctx, req)
	if err != nil {
		return failErr(err, req)
	}
	defer src.Close()

	aiROI := roi.ResolveAI(src, req.ROI, req.HasUserROI)
	if aiROI.Empty() {
		return failErr(errcode.Newf(errcode.EmptyRoi, "roi %s outside %dx%d image", req.ROI, src.Cols(), src.Rows()), req)
	}
	debugSaver(req).ROI(src, aiROI, "ai")

	crop := src.Region(aiROI.ImageRect())
	img, err := frame.ToImage(crop)
	crop.Close()
	if err != nil {
		return failErr(errcode.Wrap(errcode.InferenceFailed, err), req)
	}

	if err := r.deps.Classifier.Load(req.ModelPath, req.LabelsPath); err != nil {
		return failErr(err, req)
	}
	pred, err := r.deps.Classifier.PredictTopK(img, TopK)
	if err != nil {
		return failErr(err, req)
	}

	resp := ok(req)
	resp.ROI = aiROI
	resp.State = pred.TopLabel
	resp.Prob = pred.TopProb
	resp.Top3 = pred.TopKString()

	log.Debug().Str("label", pred.TopLabel).Float64("prob", pred.TopProb).Str("top", resp.Top3).Msg("Classified")

	if req.Mode == config.ModeGrabAIOCR || pred.TopProb < req.Threshold {
		if err := r.readStatus(src, req, &resp); err != nil {
			return failErr(err, req)
		}
	}

	resp.DecideFinal()
	return resp
}

// acquire grabs into req.ImagePath when the mode asks for it, then loads the
// frame from disk.
func (r *Runner) acquire(ctx context.Context, req config.Request) (gocv.Mat, error) {
	if req.Mode.Grabs() {
		if err := r.deps.Grabber.GrabToFile(ctx, req.Serial, req.ImagePath); err != nil {
			return gocv.NewMat(), err
		}
	}
	return frame.Load(req.ImagePath)
}

// readStatus runs OCR on src and fills the OCR, hit and stabilizer fields.
func (r *Runner) readStatus(src gocv.Mat, req config.Request, resp *report.Response) error {
	ocrROI := roi.ResolveOCR(src, req.ROI, req.HasUserROI)

	res, err := r.deps.OCR.Recognize(src, ocrROI, ocrOptions(req))
	if err != nil {
		return err
	}

	instant := ""
	if res.Valid {
		instant = ocr.ClassifyHit(res.Text)
	}
	st := r.deps.Stabilizer.Update(req.OutDir, req.Serial, instant, req.ConfirmHits)

	log.Debug().
		Str("roi", ocrROI.String()).
		Str("text", res.Text).
		Float64("conf", res.Conf).
		Bool("valid", res.Valid).
		Str("hit", instant).
		Str("stable", st.Stable).
		Int("hits", st.Hits).
		Msg("OCR evaluated")

	resp.OcrROI = ocrROI
	resp.OcrValid = res.Valid
	if res.Valid {
		resp.OcrText = res.Text
		resp.OcrConf = res.Conf
	}
	resp.Hit = instant
	resp.StateOcrRaw = instant
	resp.StateOcrStable = st.Stable
	resp.StateOcrHits = st.Hits
	return nil
}

func ocrOptions(req config.Request) ocr.Options {
	return ocr.Options{
		Filter: ocr.FilterParams{
			MinConf:        req.MinConf,
			MinUsefulChars: req.MinUsefulChars,
			OtherRatioMax:  req.OtherRatioMax,
			MaxRun:         req.MaxRun,
		},
		FallbackThreshold: req.FallbackThreshold,
		SingleLinePenalty: req.SingleLinePenalty,
		Debug:             debugSaver(req),
	}
}

func debugSaver(req config.Request) debugsave.Saver {
	return debugsave.Saver{Dir: req.OutDir, Level: req.DebugLevel}
}

func ok(req config.Request) report.Response {
	return report.Response{
		Status: report.StatusOK,
		Mode:   string(req.Mode),
		Image:  req.ImagePath,
		Serial: req.Serial,
		OutDir: req.OutDir,
	}
}

func fail(code errcode.Code, req config.Request) report.Response {
	return report.Fail(code, string(req.Mode), req.ImagePath, req.Serial, req.OutDir)
}

func failErr(err error, req config.Request) report.Response {
	code := errcode.Of(err)
	log.Error().Err(err).Str("code", string(code)).Str("mode", string(req.Mode)).Msg("Run failed")
	return fail(code, req)
}

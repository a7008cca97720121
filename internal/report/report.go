// Package report holds the result of one inspection and prints it as
// KEY=VALUE lines for the calling automation.
package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"vision-inspector/internal/errcode"
	"vision-inspector/pkg/geometry"
)

// Status values.
const (
	StatusOK   = "OK"
	StatusFail = "FAIL"
)

// Source names which signal decided StateFinal.
type Source string

const (
	SourceOCRStable Source = "OCR_STABLE"
	SourceOCRRaw    Source = "OCR_RAW"
	SourceAI        Source = "AI"
	SourceNone      Source = "NONE"
)

// Response is the outcome of one run.
type Response struct {
	Status string
	Error  errcode.Code

	Mode   string
	Image  string
	Serial string
	OutDir string

	// AI
	ROI   geometry.Rect
	State string
	Prob  float64
	Top3  string

	// OCR
	OcrText  string
	OcrConf  float64
	OcrValid bool
	OcrROI   geometry.Rect

	Hit            string
	StateOcrRaw    string
	StateOcrStable string
	StateOcrHits   int

	StateFinal  string
	StateSource Source
}

// OK reports whether the run succeeded.
func (r Response) OK() bool {
	return r.Status == "" || r.Status == StatusOK
}

// ExitCode is 0 for OK and 1 otherwise.
func (r Response) ExitCode() int {
	if r.OK() {
		return 0
	}
	return 1
}

// Fail builds a FAIL response echoing the request identity.
func Fail(code errcode.Code, mode, image, serial, outDir string) Response {
	return Response{
		Status: StatusFail,
		Error:  code,
		Mode:   mode,
		Image:  image,
		Serial: serial,
		OutDir: outDir,
	}
}

// DecideFinal sets StateFinal and StateSource by precedence: stabilized OCR,
// then raw OCR, then the AI label.
func (r *Response) DecideFinal() {
	switch {
	case strings.TrimSpace(r.StateOcrStable) != "":
		r.StateFinal, r.StateSource = r.StateOcrStable, SourceOCRStable
	case strings.TrimSpace(r.StateOcrRaw) != "":
		r.StateFinal, r.StateSource = r.StateOcrRaw, SourceOCRRaw
	case strings.TrimSpace(r.State) != "":
		r.StateFinal, r.StateSource = r.State, SourceAI
	default:
		r.StateFinal, r.StateSource = "", SourceNone
	}
}

// Field is one output line.
type Field struct {
	Key   string
	Value func(Response) string
}

// Schema lists the output lines in print order.
var Schema = []Field{
	{"STATUS", func(r Response) string {
		if r.Status == "" {
			return StatusOK
		}
		return r.Status
	}},
	{"ERROR", func(r Response) string { return string(r.Error) }},
	{"MODE", func(r Response) string { return r.Mode }},
	{"IMAGE", func(r Response) string { return r.Image }},
	{"SERIAL", func(r Response) string { return r.Serial }},
	{"ROI_XYWH", func(r Response) string { return r.ROI.String() }},
	{"STATE", func(r Response) string { return r.State }},
	{"PROB", func(r Response) string { return fixed3(r.Prob) }},
	{"TOP3", func(r Response) string { return r.Top3 }},
	{"OCR_TEXT", func(r Response) string {
		if !r.OcrValid {
			return ""
		}
		return escapeLine(r.OcrText)
	}},
	{"OCR_CONF", func(r Response) string {
		if !r.OcrValid {
			return fixed3(0)
		}
		return fixed3(r.OcrConf)
	}},
	{"OCR_VALID", func(r Response) string {
		if r.OcrValid {
			return "1"
		}
		return "0"
	}},
	{"OCR_ROI_XYWH", func(r Response) string { return r.OcrROI.String() }},
	{"HIT", func(r Response) string { return r.Hit }},
	{"STATE_OCR_RAW", func(r Response) string { return r.StateOcrRaw }},
	{"STATE_OCR_STABLE", func(r Response) string { return r.StateOcrStable }},
	{"STATE_OCR_HITS", func(r Response) string { return strconv.Itoa(r.StateOcrHits) }},
	{"STATE_FINAL", func(r Response) string { return r.StateFinal }},
	{"STATE_SRC", func(r Response) string {
		if r.StateSource == "" {
			return string(SourceNone)
		}
		return string(r.StateSource)
	}},
	{"OUTDIR", func(r Response) string { return r.OutDir }},
}

// Lines renders r in schema order.
func (r Response) Lines() []string {
	lines := make([]string, len(Schema))
	for i, f := range Schema {
		lines[i] = f.Key + "=" + f.Value(r)
	}
	return lines
}

// Print writes one KEY=VALUE line per schema field.
func Print(w io.Writer, r Response) error {
	for _, line := range r.Lines() {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}
	return nil
}

func fixed3(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

// escapeLine keeps multi-line readings on one output line.
func escapeLine(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	return strings.ReplaceAll(s, "\n", `\n`)
}

// Package cli parses the positional inspection command line:
//
//	<mode> [image] [--debug[=N]] [--outdir=PATH] [--serial=S] [--config=PATH] [x y w h]
//
// For list mode the image position holds an optional camera serial instead.
package cli

import (
	"fmt"
	"strconv"
	"strings"

	"vision-inspector/internal/config"
	"vision-inspector/internal/errcode"
	"vision-inspector/pkg/geometry"
)

// Args is the parsed command line.
type Args struct {
	Mode       string
	ImagePath  string
	Serial     string
	ConfigPath string
	OutDir     string

	HasDebug   bool
	DebugLevel int

	HasROI bool
	ROI    geometry.Rect
}

// Parse validates the argument list. It performs no I/O, so a malformed
// command line is rejected before any image or camera is touched.
func Parse(args []string) (Args, error) {
	var a Args
	if len(args) < 1 || trimQ(args[0]) == "" {
		return a, errcode.New(errcode.Usage, "missing mode")
	}

	a.Mode = strings.ToLower(trimQ(args[0]))
	list := config.Mode(a.Mode) == config.ModeList

	var rest []string
	if list {
		rest = args[1:]
	} else {
		if len(args) >= 2 {
			a.ImagePath = trimQ(args[1])
		}
		if len(args) > 2 {
			rest = args[2:]
		}
	}

	var positional []string
	for i := 0; i < len(rest); i++ {
		tok := rest[i]
		low := strings.ToLower(tok)

		switch {
		case strings.HasPrefix(low, "--debug="):
			a.HasDebug = true
			a.DebugLevel = clampDebug(parseIntOr(tok[len("--debug="):], 1))
		case low == "--debug":
			a.HasDebug = true
			a.DebugLevel = 1
			if i+1 < len(rest) {
				if n, err := strconv.Atoi(trimQ(rest[i+1])); err == nil {
					a.DebugLevel = clampDebug(n)
					i++
				}
			}
		case strings.HasPrefix(low, "--outdir="):
			v := trimQ(tok[len("--outdir="):])
			if v == "" {
				return a, errcode.New(errcode.Usage, "invalid output directory path")
			}
			a.OutDir = v
		case strings.HasPrefix(low, "--serial="):
			a.Serial = trimQ(tok[len("--serial="):])
		case strings.HasPrefix(low, "--config="):
			v := trimQ(tok[len("--config="):])
			if v == "" {
				return a, errcode.New(errcode.Usage, "invalid config path")
			}
			a.ConfigPath = v
		case strings.HasPrefix(tok, "--"):
			// unknown flags are ignored
		default:
			positional = append(positional, trimQ(tok))
		}
	}

	if list {
		if len(positional) > 0 && a.Serial == "" {
			a.Serial = positional[0]
		}
		return a, nil
	}

	if len(rest) == 0 {
		return a, nil
	}
	if len(positional) < 4 {
		return a, errcode.New(errcode.Usage, "missing ROI parameters, expected four integers x y w h")
	}

	var xywh [4]int
	for i := range xywh {
		n, err := strconv.Atoi(positional[i])
		if err != nil {
			return a, errcode.Newf(errcode.Usage, "invalid ROI parameter %q", positional[i])
		}
		xywh[i] = n
	}
	a.HasROI = true
	a.ROI = geometry.XYWH(xywh[0], xywh[1], xywh[2], xywh[3])
	return a, nil
}

// Apply copies the parsed overrides onto b.
func (a Args) Apply(b *config.Builder) *config.Builder {
	b.Mode(a.Mode).ImagePath(a.ImagePath)
	if a.Serial != "" {
		b.Serial(a.Serial)
	}
	if a.HasDebug {
		b.DebugLevel(a.DebugLevel)
	}
	if a.OutDir != "" {
		b.OutDir(a.OutDir)
	}
	if a.HasROI {
		b.ROI(a.ROI)
	}
	return b
}

// String renders the arguments for logging.
func (a Args) String() string {
	return fmt.Sprintf("mode=%s image=%q serial=%q roi=%v(%s) debug=%d outdir=%q",
		a.Mode, a.ImagePath, a.Serial, a.HasROI, a.ROI, a.DebugLevel, a.OutDir)
}

func trimQ(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"`)
}

func parseIntOr(s string, def int) int {
	n, err := strconv.Atoi(trimQ(s))
	if err != nil {
		return def
	}
	return n
}

func clampDebug(n int) int {
	return max(0, min(2, n))
}

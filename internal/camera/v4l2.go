package camera

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gocv.io/x/gocv"
)

// DefaultByIDDir is where udev publishes stable camera names.
const DefaultByIDDir = "/dev/v4l/by-id"

const captureSuffix = "-video-index0"

// V4L2 drives USB3 Vision / UVC cameras exposed as video4linux nodes.
// Serial numbers are taken from the udev by-id name, e.g.
// usb-Basler_acA1920-40uc_40012345-video-index0.
type V4L2 struct {
	ByIDDir string
}

// Enumerate lists capture nodes sorted by name. A missing by-id directory
// means no cameras.
func (d V4L2) Enumerate() ([]DeviceInfo, error) {
	dir := d.ByIDDir
	if dir == "" {
		dir = DefaultByIDDir
	}

	links, err := filepath.Glob(filepath.Join(dir, "*"+captureSuffix))
	if err != nil {
		return nil, err
	}
	sort.Strings(links)

	devices := make([]DeviceInfo, 0, len(links))
	for _, link := range links {
		path, err := filepath.EvalSymlinks(link)
		if err != nil {
			continue
		}
		model, serial := ParseByID(filepath.Base(link))
		devices = append(devices, DeviceInfo{
			Index:  len(devices),
			Path:   path,
			Model:  model,
			Serial: serial,
		})
	}
	return devices, nil
}

// ParseByID splits a by-id name into model and serial.
func ParseByID(name string) (model, serial string) {
	name = strings.TrimSuffix(name, captureSuffix)
	if i := strings.Index(name, "-"); i >= 0 && !strings.Contains(name[:i], "_") {
		name = name[i+1:]
	}
	i := strings.LastIndex(name, "_")
	if i < 0 {
		return name, ""
	}
	return name[:i], name[i+1:]
}

// Open opens the capture node with the V4L2 backend.
func (d V4L2) Open(info DeviceInfo) (Device, error) {
	vc, err := gocv.OpenVideoCaptureWithAPI(info.Path, gocv.VideoCaptureV4L2)
	if err != nil {
		return nil, err
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("device %s not opened", info.Path)
	}
	return &captureDevice{vc: vc}, nil
}

type readResult struct {
	mat gocv.Mat
	ok  bool
}

type captureDevice struct {
	vc *gocv.VideoCapture
	// pending receives the result of a read abandoned after a timeout.
	pending chan readResult
}

// DisableTrigger is a no-op: UVC devices are always free-running.
func (c *captureDevice) DisableTrigger() error { return nil }

func (c *captureDevice) StartSingle() error {
	// Keep only the newest frame in the driver queue.
	c.vc.Set(gocv.VideoCaptureBufferSize, 1)
	return nil
}

func (c *captureDevice) Retrieve(timeout time.Duration) (Frame, error) {
	done := make(chan readResult, 1)
	go func() {
		m := gocv.NewMat()
		ok := c.vc.Read(&m) && !m.Empty()
		done <- readResult{mat: m, ok: ok}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-done:
		if !r.ok {
			r.mat.Close()
			return nil, errNoFrame
		}
		return &matFrame{mat: r.mat}, nil
	case <-timer.C:
		c.pending = done
		return nil, fmt.Errorf("%w within %s", errNoFrame, timeout)
	}
}

func (c *captureDevice) Stop() error { return nil }

// Close waits for an abandoned read before releasing the capture; the
// backend's own select timeout bounds that wait.
func (c *captureDevice) Close() error {
	if c.pending != nil {
		r := <-c.pending
		r.mat.Close()
		c.pending = nil
	}
	return c.vc.Close()
}

type matFrame struct {
	mat gocv.Mat
}

func (f *matFrame) Save(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if !gocv.IMWrite(path, f.mat) {
		return fmt.Errorf("failed to write %s", path)
	}
	return nil
}

func (f *matFrame) Close() error {
	return f.mat.Close()
}

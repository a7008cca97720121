// Package camera acquires single frames from an industrial camera under a
// host-wide lock, so concurrent inspection processes never share a device.
package camera

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"vision-inspector/internal/errcode"

	"github.com/rs/zerolog/log"
)

// DefaultGrabTimeout bounds the wait for one frame.
const DefaultGrabTimeout = 5 * time.Second

// DeviceInfo describes an enumerated camera.
type DeviceInfo struct {
	Index  int
	Path   string
	Model  string
	Serial string
}

// Driver enumerates and opens cameras.
type Driver interface {
	Enumerate() ([]DeviceInfo, error)
	Open(info DeviceInfo) (Device, error)
}

// Device is an open camera.
type Device interface {
	// DisableTrigger switches the device to free-running acquisition.
	DisableTrigger() error
	// StartSingle arms the device for one frame.
	StartSingle() error
	// Retrieve waits up to timeout for the armed frame.
	Retrieve(timeout time.Duration) (Frame, error)
	Stop() error
	Close() error
}

// Frame is an acquired image.
type Frame interface {
	Save(path string) error
	Close() error
}

// Grabber serializes frame acquisition across processes (Lock) and within
// the process (a mutex).
type Grabber struct {
	driver      Driver
	lock        Lock
	grabTimeout time.Duration

	mu sync.Mutex
}

// NewGrabber returns a Grabber using driver. Zero timeouts select the
// defaults.
func NewGrabber(driver Driver, lock Lock, grabTimeout time.Duration) *Grabber {
	if grabTimeout <= 0 {
		grabTimeout = DefaultGrabTimeout
	}
	return &Grabber{driver: driver, lock: lock, grabTimeout: grabTimeout}
}

// List returns the number of connected cameras. Enumeration is read-only and
// takes no lock.
func (g *Grabber) List(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	devices, err := g.driver.Enumerate()
	if err != nil {
		return 0, fmt.Errorf("failed to enumerate cameras: %w", err)
	}
	return len(devices), nil
}

// GrabToFile acquires one frame from the camera with the given serial (the
// first camera when serial is empty) and writes it to path.
//
// The device is stopped and closed before either lock is released, on every
// return path.
func (g *Grabber) GrabToFile(ctx context.Context, serial, path string) error {
	release, err := g.lock.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	g.mu.Lock()
	defer g.mu.Unlock()

	info, err := g.find(serial)
	if err != nil {
		return err
	}

	dev, err := g.driver.Open(info)
	if err != nil {
		return &errcode.Error{Code: errcode.GrabFailed, Detail: "open " + info.Path, Err: err}
	}
	defer func() {
		if err := dev.Stop(); err != nil {
			log.Debug().Err(err).Msg("Camera stop failed")
		}
		if err := dev.Close(); err != nil {
			log.Warn().Err(err).Str("device", info.Path).Msg("Camera close failed")
		}
	}()

	if err := dev.DisableTrigger(); err != nil {
		log.Debug().Err(err).Msg("Trigger mode not changed")
	}
	if err := dev.StartSingle(); err != nil {
		return errcode.Wrap(errcode.GrabFailed, fmt.Errorf("start: %w", err))
	}

	start := time.Now()
	frame, err := dev.Retrieve(g.grabTimeout)
	if err != nil {
		return errcode.Wrap(errcode.GrabFailed, err)
	}
	defer frame.Close()

	if err := frame.Save(path); err != nil {
		return errcode.Wrap(errcode.GrabFailed, fmt.Errorf("save %s: %w", path, err))
	}

	log.Info().
		Str("serial", info.Serial).
		Str("device", info.Path).
		Str("path", path).
		Dur("elapsed", time.Since(start)).
		Msg("Frame grabbed")
	return nil
}

func (g *Grabber) find(serial string) (DeviceInfo, error) {
	devices, err := g.driver.Enumerate()
	if err != nil {
		return DeviceInfo{}, errcode.Wrap(errcode.NoCameraFound, err)
	}
	if len(devices) == 0 {
		return DeviceInfo{}, errcode.NoCameraFound
	}
	if serial == "" {
		return devices[0], nil
	}
	for _, d := range devices {
		if d.Serial == serial {
			return d, nil
		}
	}
	return DeviceInfo{}, errcode.New(errcode.CameraSerialNotFound, serial)
}

var errNoFrame = errors.New("no frame")

package camera

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"vision-inspector/internal/errcode"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDriver struct {
	devices []DeviceInfo
	dev     *fakeDevice
	opened  []DeviceInfo
	openErr error
}

func (d *fakeDriver) Enumerate() ([]DeviceInfo, error) { return d.devices, nil }

func (d *fakeDriver) Open(info DeviceInfo) (Device, error) {
	if d.openErr != nil {
		return nil, d.openErr
	}
	d.opened = append(d.opened, info)
	return d.dev, nil
}

type fakeDevice struct {
	retrieveErr error
	saveErr     error
	lockPath    string

	triggerOff bool
	stopped    bool
	closed     bool
	frameFreed bool
	// lockHeldAtClose records whether the grab lock was still held when the
	// device was closed.
	lockHeldAtClose bool
}

func (d *fakeDevice) DisableTrigger() error { d.triggerOff = true; return nil }
func (d *fakeDevice) StartSingle() error    { return nil }
func (d *fakeDevice) Stop() error           { d.stopped = true; return nil }

func (d *fakeDevice) Close() error {
	d.closed = true
	probe := flock.New(d.lockPath)
	ok, _ := probe.TryLock()
	if ok {
		_ = probe.Unlock()
	}
	d.lockHeldAtClose = !ok
	return nil
}

func (d *fakeDevice) Retrieve(time.Duration) (Frame, error) {
	if d.retrieveErr != nil {
		return nil, d.retrieveErr
	}
	return &fakeFrame{dev: d}, nil
}

type fakeFrame struct{ dev *fakeDevice }

func (f *fakeFrame) Save(path string) error {
	if f.dev.saveErr != nil {
		return f.dev.saveErr
	}
	return os.WriteFile(path, []byte("png"), 0o644)
}

func (f *fakeFrame) Close() error { f.dev.frameFreed = true; return nil }

func newTestGrabber(t *testing.T, dev *fakeDevice, devices ...DeviceInfo) (*Grabber, *fakeDriver, string) {
	t.Helper()
	lockPath := filepath.Join(t.TempDir(), "grab.lock")
	dev.lockPath = lockPath
	drv := &fakeDriver{devices: devices, dev: dev}
	return NewGrabber(drv, Lock{Path: lockPath, Timeout: 200 * time.Millisecond}, time.Second), drv, lockPath
}

func TestList(t *testing.T) {
	g, _, _ := newTestGrabber(t, &fakeDevice{}, DeviceInfo{Serial: "1"}, DeviceInfo{Serial: "2"})
	n, err := g.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestGrabToFile(t *testing.T) {
	dev := &fakeDevice{}
	g, drv, _ := newTestGrabber(t, dev,
		DeviceInfo{Path: "/dev/video0", Serial: "111"},
		DeviceInfo{Path: "/dev/video2", Serial: "222"})

	out := filepath.Join(t.TempDir(), "frame.png")
	require.NoError(t, g.GrabToFile(context.Background(), "222", out))

	assert.FileExists(t, out)
	require.Len(t, drv.opened, 1)
	assert.Equal(t, "/dev/video2", drv.opened[0].Path)
	assert.True(t, dev.triggerOff)
	assert.True(t, dev.stopped)
	assert.True(t, dev.closed)
	assert.True(t, dev.frameFreed)
	assert.True(t, dev.lockHeldAtClose)
}

func TestGrabToFileFirstCamera(t *testing.T) {
	g, drv, _ := newTestGrabber(t, &fakeDevice{}, DeviceInfo{Path: "/dev/video0"}, DeviceInfo{Path: "/dev/video2"})
	require.NoError(t, g.GrabToFile(context.Background(), "", filepath.Join(t.TempDir(), "f.png")))
	assert.Equal(t, "/dev/video0", drv.opened[0].Path)
}

func TestGrabToFileErrors(t *testing.T) {
	tests := []struct {
		name    string
		dev     *fakeDevice
		devices []DeviceInfo
		serial  string
		want    errcode.Code
	}{
		{"no camera", &fakeDevice{}, nil, "", errcode.NoCameraFound},
		{"serial not found", &fakeDevice{}, []DeviceInfo{{Serial: "1"}}, "9", errcode.CameraSerialNotFound},
		{"retrieve timeout", &fakeDevice{retrieveErr: errNoFrame}, []DeviceInfo{{Serial: "1"}}, "", errcode.GrabFailed},
		{"save failure", &fakeDevice{saveErr: errors.New("disk full")}, []DeviceInfo{{Serial: "1"}}, "1", errcode.GrabFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _, lockPath := newTestGrabber(t, tt.dev, tt.devices...)
			err := g.GrabToFile(context.Background(), tt.serial, filepath.Join(t.TempDir(), "f.png"))
			assert.Equal(t, tt.want, errcode.Of(err))

			if len(tt.devices) > 0 && tt.want == errcode.GrabFailed {
				assert.True(t, tt.dev.closed)
				assert.True(t, tt.dev.lockHeldAtClose)
			}

			// Both locks are free again.
			probe := flock.New(lockPath)
			ok, err := probe.TryLock()
			require.NoError(t, err)
			assert.True(t, ok)
			_ = probe.Unlock()
			assert.True(t, g.mu.TryLock())
			g.mu.Unlock()
		})
	}
}

func TestGrabToFileOpenFailure(t *testing.T) {
	g, drv, _ := newTestGrabber(t, &fakeDevice{}, DeviceInfo{Serial: "1"})
	drv.openErr = errors.New("busy")
	err := g.GrabToFile(context.Background(), "1", filepath.Join(t.TempDir(), "f.png"))
	assert.Equal(t, errcode.GrabFailed, errcode.Of(err))
}

func TestGrabMutexTimeout(t *testing.T) {
	dev := &fakeDevice{}
	g, drv, lockPath := newTestGrabber(t, dev, DeviceInfo{Serial: "1"})

	holder := flock.New(lockPath)
	require.NoError(t, holder.Lock())
	defer holder.Unlock()

	start := time.Now()
	err := g.GrabToFile(context.Background(), "1", filepath.Join(t.TempDir(), "f.png"))
	assert.Equal(t, errcode.GrabMutexTimeout, errcode.Of(err))
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Empty(t, drv.opened)
}

func TestParseByID(t *testing.T) {
	tests := []struct {
		name, model, serial string
	}{
		{"usb-Basler_acA1920-40uc_40012345-video-index0", "Basler_acA1920-40uc", "40012345"},
		{"usb-046d_HD_Pro_Webcam_C920_ABCDEF01-video-index0", "046d_HD_Pro_Webcam_C920", "ABCDEF01"},
		{"usb-Generic-video-index0", "Generic", ""},
	}
	for _, tt := range tests {
		model, serial := ParseByID(tt.name)
		assert.Equal(t, tt.model, model, tt.name)
		assert.Equal(t, tt.serial, serial, tt.name)
	}
}

func TestV4L2EnumerateMissingDir(t *testing.T) {
	devices, err := V4L2{ByIDDir: filepath.Join(t.TempDir(), "none")}.Enumerate()
	require.NoError(t, err)
	assert.Empty(t, devices)
}

func TestV4L2Enumerate(t *testing.T) {
	dir := t.TempDir()
	node := filepath.Join(dir, "video4")
	require.NoError(t, os.WriteFile(node, nil, 0o644))
	require.NoError(t, os.Symlink(node, filepath.Join(dir, "usb-Basler_acA1300_22334455-video-index0")))
	require.NoError(t, os.Symlink(node, filepath.Join(dir, "usb-Basler_acA1300_22334455-video-index1")))

	want, err := filepath.EvalSymlinks(node)
	require.NoError(t, err)

	devices, err := V4L2{ByIDDir: dir}.Enumerate()
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, DeviceInfo{Index: 0, Path: want, Model: "Basler_acA1300", Serial: "22334455"}, devices[0])
}

package errcode

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOf(t *testing.T) {
	assert.Equal(t, Code(""), Of(nil))
	assert.Equal(t, Internal, Of(io.EOF))
	assert.Equal(t, GrabFailed, Of(New(GrabFailed, "timeout")))
	assert.Equal(t, ModelNotFound, Of(fmt.Errorf("load: %w", Wrap(ModelNotFound, io.ErrUnexpectedEOF))))
	assert.Equal(t, Usage, Of(fmt.Errorf("parse: %w", Usage)))
}

func TestIsMatchesCode(t *testing.T) {
	err := fmt.Errorf("grab: %w", Newf(CameraSerialNotFound, "serial %q", "123"))
	assert.True(t, errors.Is(err, CameraSerialNotFound))
	assert.False(t, errors.Is(err, NoCameraFound))
}

func TestWrapKeepsCause(t *testing.T) {
	assert.Nil(t, Wrap(Internal, nil))

	err := Wrap(LabelsNotFound, io.EOF)
	assert.True(t, errors.Is(err, io.EOF))
	assert.Equal(t, "LabelsNotFound: EOF", err.Error())
	assert.Equal(t, "GrabFailed: no frame: EOF", (&Error{Code: GrabFailed, Detail: "no frame", Err: io.EOF}).Error())
}

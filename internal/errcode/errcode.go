// Package errcode defines the symbolic failure codes reported in the ERROR
// field of an inspection response.
package errcode

import (
	"errors"
	"fmt"
)

// Code is a symbolic failure identifier. Code implements error so that
// errors.Is(err, errcode.ModelNotFound) works on wrapped errors.
type Code string

const (
	Usage                          Code = "Usage"
	MissingImagePath               Code = "MissingImagePath"
	ImagePathNotRequiredInListMode Code = "ImagePathNotRequiredInListMode"
	UnknownMode                    Code = "UnknownMode"
	ImageNotFound                  Code = "ImageNotFound"
	LabelsNotFound                 Code = "LabelsNotFound"
	ModelNotFound                  Code = "ModelNotFound"
	ModelNotLoaded                 Code = "ModelNotLoaded"
	NoCameraFound                  Code = "NoCameraFound"
	CameraSerialNotFound           Code = "CameraSerialNotFound"
	GrabFailed                     Code = "GrabFailed"
	GrabMutexTimeout               Code = "GrabMutexTimeout"
	EmptyRoi                       Code = "EmptyRoi"
	InferenceFailed                Code = "InferenceFailed"
	OcrEngineFailed                Code = "OcrEngineFailed"
	Internal                       Code = "Internal"
)

func (c Code) Error() string { return string(c) }

// Error carries a Code together with a human readable detail and the
// underlying cause, if any.
type Error struct {
	Code   Code
	Detail string
	Err    error
}

// New returns an *Error without a cause.
func New(code Code, detail string) error {
	return &Error{Code: code, Detail: detail}
}

// Newf is New with a formatted detail.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Detail: fmt.Sprintf(format, args...)}
}

// Wrap attaches code to err. A nil err yields nil.
func Wrap(code Code, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Err: err}
}

func (e *Error) Error() string {
	switch {
	case e.Detail != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Detail, e.Err)
	case e.Detail != "":
		return fmt.Sprintf("%s: %s", e.Code, e.Detail)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches a bare Code target.
func (e *Error) Is(target error) bool {
	c, ok := target.(Code)
	return ok && c == e.Code
}

// Of extracts the code from err. Errors that carry no code map to Internal;
// a nil error yields the empty code.
func Of(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	var c Code
	if errors.As(err, &c) {
		return c
	}
	return Internal
}

package ocr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyHit(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"USB Mass Storage", HitUsbMassStorage},
		{"usb:mass-storage mode", HitUsbMassStorage},
		{"Reconnecting USB...", HitReconnectingUsb},
		{"LOW\nBATTERY", HitLowBattery},
		{"System Fault 3", HitError},
		{"ALARM", HitError},
		{"error", HitError},
		{"USB mass storage error", HitUsbMassStorage},
		{"reconnecting usb low battery", HitReconnectingUsb},
		{"Ready", ""},
		{"", ""},
		{"   ", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyHit(tt.text), "text %q", tt.text)
	}
}

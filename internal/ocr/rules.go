package ocr

import "strings"

// Hit tokens produced by ClassifyHit.
const (
	HitUsbMassStorage  = "UsbMassStorage"
	HitReconnectingUsb = "ReconnectingUsb"
	HitLowBattery      = "LowBattery"
	HitError           = "Error"
)

type hitRule struct {
	token string
	all   []string // every keyword must appear
	any   []string // at least one keyword must appear
}

// Evaluated in order; the first match wins.
var hitRules = []hitRule{
	{token: HitUsbMassStorage, all: []string{"usb", "mass", "storage"}},
	{token: HitReconnectingUsb, all: []string{"reconnecting", "usb"}},
	{token: HitLowBattery, all: []string{"low", "battery"}},
	{token: HitError, any: []string{"error", "fault", "alarm"}},
}

// ClassifyHit maps recognized text to a state token, or "" when no rule
// matches. Keywords match as substrings of the normalized text.
func ClassifyHit(text string) string {
	t := NormalizeForRules(text)
	if t == "" {
		return ""
	}

	for _, rule := range hitRules {
		if rule.matches(t) {
			return rule.token
		}
	}
	return ""
}

func (r hitRule) matches(t string) bool {
	for _, k := range r.all {
		if !strings.Contains(t, k) {
			return false
		}
	}
	if len(r.any) == 0 {
		return len(r.all) > 0
	}
	for _, k := range r.any {
		if strings.Contains(t, k) {
			return true
		}
	}
	return false
}

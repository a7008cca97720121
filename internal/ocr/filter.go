package ocr

import (
	"strings"
	"unicode"
)

// FilterParams are the thresholds of the gibberish heuristic.
type FilterParams struct {
	MinConf        float64
	MinUsefulChars int
	OtherRatioMax  float64
	MaxRun         int
}

// IsGibberish reports whether text read at confidence conf should be
// discarded as engine noise.
func IsGibberish(text string, conf float64, p FilterParams) bool {
	if conf < p.MinConf {
		return true
	}
	if strings.TrimSpace(text) == "" {
		return true
	}

	var letters, digits, other, total int
	for _, r := range text {
		if r == '\r' {
			continue
		}
		total++
		switch {
		case unicode.IsLetter(r):
			letters++
		case unicode.IsDigit(r):
			digits++
		case unicode.IsSpace(r):
		default:
			other++
		}
	}
	if total == 0 {
		return true
	}

	if letters+digits < max(1, p.MinUsefulChars) {
		return true
	}
	if float64(other)/float64(total) > p.OtherRatioMax {
		return true
	}

	return longestRun(text) >= max(2, p.MaxRun)
}

// longestRun returns the length of the longest run of one repeated rune.
func longestRun(s string) int {
	longest, run := 0, 0
	var prev rune
	for i, r := range []rune(s) {
		if i > 0 && r == prev {
			run++
		} else {
			run = 1
		}
		prev = r
		longest = max(longest, run)
	}
	return longest
}

// NormalizeForRules lower-cases s and reduces it to single-space separated
// alphanumeric tokens. Only used for keyword matching.
func NormalizeForRules(s string) string {
	s = strings.ToLower(s)
	return strings.Join(strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}), " ")
}

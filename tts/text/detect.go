package text

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Detector guesses the language of untagged text. Implementations return a
// two-letter code; the caller decides what to do when the code is not
// supported.
type Detector interface {
	Detect(text string) string
}

// PlaceholderDetector is the built-in Detector. It performs no analysis and
// always answers with a fixed code, standing in until a real identifier is
// plugged in.
type PlaceholderDetector struct {
	Language string
}

// Detect returns the fixed language code, defaulting to "es".
func (d PlaceholderDetector) Detect(string) string {
	if d.Language == "" {
		return "es"
	}
	return d.Language
}

var ratePattern = regexp.MustCompile(`^([+-]?)(\d+)%$`)

// ParseRate converts a rate expression to a speed multiplier. Percentage
// offsets ("+20%", "-50%") adjust from 1.0; bare numbers ("1.5") are used
// directly; the empty string means the neutral rate.
func ParseRate(rate string) (float64, error) {
	rate = strings.TrimSpace(rate)
	if rate == "" {
		return 1.0, nil
	}

	if m := ratePattern.FindStringSubmatch(rate); m != nil {
		value, err := strconv.Atoi(m[2])
		if err != nil {
			return 0, fmt.Errorf("invalid rate %q: %w", rate, err)
		}
		if m[1] == "-" {
			value = -value
		}
		return 1.0 + float64(value)/100, nil
	}

	speed, err := strconv.ParseFloat(rate, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid rate %q: expected a multiplier like 1.5 or a percentage like +20%%", rate)
	}
	return speed, nil
}

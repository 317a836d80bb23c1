package overlay

import (
	"fmt"
	"math"
	"strings"
)

const (
	DefaultTitleLimit = 50
	BadgeLabel        = "CAPTURED"
	ellipsis          = "..."
)

// Labels is the text stamped onto a captured frame.
type Labels struct {
	TimeLabel  string
	TitleLabel string
	BadgeLabel string
}

// LabelsFor derives the overlay text for a capture at seconds with the given
// title. Titles longer than titleLimit runes are truncated.
func LabelsFor(seconds float64, title string, titleLimit int) Labels {
	if titleLimit <= 0 {
		titleLimit = DefaultTitleLimit
	}
	return Labels{
		TimeLabel:  FormatClock(seconds),
		TitleLabel: Truncate(strings.TrimSpace(title), titleLimit),
		BadgeLabel: BadgeLabel,
	}
}

// FormatClock renders seconds as m:ss, or h:mm:ss from one hour on.
func FormatClock(seconds float64) string {
	total := int64(math.Floor(sanitize(seconds)))
	h := total / 3600
	m := (total / 60) % 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// FormatPrecise renders seconds as minutes:seconds.hundredths.
func FormatPrecise(seconds float64) string {
	hundredths := int64(math.Floor(sanitize(seconds) * 100))
	m := hundredths / 6000
	s := (hundredths / 100) % 60
	return fmt.Sprintf("%d:%02d.%02d", m, s, hundredths%100)
}

// Truncate cuts s to max runes and appends an ellipsis when it was longer.
func Truncate(s string, max int) string {
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	return strings.TrimRight(string(r[:max]), " ") + ellipsis
}

func sanitize(seconds float64) float64 {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return 0
	}
	return seconds
}

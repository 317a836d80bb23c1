package validate

import (
	"fmt"
	"math"
	"net/url"
	"strings"
)

// Request field limits shared by the API and the web client.
const (
	MaxTitleLength  = 500
	MaxSourceLength = 2048
	MaxMarkupLength = 512 * 1024
	MaxSeekSeconds  = 7 * 24 * 60 * 60
)

func checkLen(value string, max int, field string) string {
	if len(value) > max {
		return fmt.Sprintf("%s must be %d characters or fewer", field, max)
	}
	return ""
}

func Title(s string) string  { return checkLen(s, MaxTitleLength, "title") }
func Markup(s string) string { return checkLen(s, MaxMarkupLength, "container markup") }

// Source accepts an http(s) URL or a relative media path.
func Source(s string) string {
	if strings.TrimSpace(s) == "" {
		return "source is required"
	}
	if msg := checkLen(s, MaxSourceLength, "source"); msg != "" {
		return msg
	}
	u, err := url.Parse(s)
	if err != nil {
		return "source is not a valid URL or path"
	}
	switch u.Scheme {
	case "", "http", "https":
		return ""
	default:
		return fmt.Sprintf("source scheme %q is not supported", u.Scheme)
	}
}

// SeekTime rejects non-finite values. Negative values are clamped by the
// player, so only the upper bound is checked here.
func SeekTime(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return "time must be a finite number"
	}
	if seconds > MaxSeekSeconds {
		return fmt.Sprintf("time must be %d seconds or less", MaxSeekSeconds)
	}
	return ""
}

// FieldLimits returns field names mapped to max lengths for /api/limits.
func FieldLimits() map[string]int {
	return map[string]int{
		"title":  MaxTitleLength,
		"source": MaxSourceLength,
		"markup": MaxMarkupLength,
	}
}

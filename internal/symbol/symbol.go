// Package symbol validates and normalizes stock ticker symbols.
package symbol

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// tickerRegex matches 1-6 uppercase letters with an optional class suffix.
// Examples: AAPL, MSFT, BRK.B
var tickerRegex = regexp.MustCompile(`^[A-Z]{1,6}(\.[A-Z]{1,2})?$`)

// ErrInvalidTicker is returned for symbols that do not look like a listed
// equity ticker.
var ErrInvalidTicker = errors.New("symbol: invalid ticker")

// Normalize upper-cases and trims s, then validates it against the ticker
// format. It returns the canonical form or ErrInvalidTicker.
func Normalize(s string) (string, error) {
	t := strings.ToUpper(strings.TrimSpace(s))
	if !tickerRegex.MatchString(t) {
		return "", fmt.Errorf("%w: %q", ErrInvalidTicker, s)
	}
	return t, nil
}

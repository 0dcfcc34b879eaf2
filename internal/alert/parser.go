package alert

import (
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"stock-alert-telegram-bot/internal/types"
)

// ValidateTicker rejects raw ticker text containing a period, comma or
// space, and normalizes everything else to uppercase.
func ValidateTicker(text string) (string, error) {
	if strings.ContainsAny(text, "., ") {
		return "", &types.ValidationError{Category: "ticker symbol", Reason: "an illegal character"}
	}
	return strings.ToUpper(text), nil
}

// ErrNoPriceData is reported when a validated ticker symbol yields an
// empty price series from the data source.
var ErrNoPriceData = &types.ValidationError{Category: "ticker symbol", Reason: "a lack of price data"}

var errWrongPriceInput = &types.ValidationError{Category: "alert level", Reason: "a wrong price input"}

// ParseTarget converts raw alert level text into a typed target. Rules
// are tried in order:
//
//	MA<digits>  moving average window in days
//	<number>%   percent offset, resolved against referenceClose
//	<number>    absolute price level
//
// Percent offsets may be negative; the other forms are unsigned. The
// resolved absolute level is rounded to 2 decimals.
func ParseTarget(text string, referenceClose float64) (types.Target, error) {
	if rest, ok := strings.CutPrefix(text, "MA"); ok && isDigits(rest) {
		window, err := strconv.Atoi(rest)
		if err != nil {
			return types.Target{}, errors.Wrapf(err, "moving average window out of range: %s", text)
		}
		if window == 0 {
			// A zero-length moving average has no meaning.
			return types.Target{}, errWrongPriceInput
		}
		return types.Target{Kind: types.TargetMovingAverage, Window: window}, nil
	}

	if rest, ok := strings.CutSuffix(text, "%"); ok && isNumeric(strings.TrimPrefix(rest, "-")) {
		pct, err := strconv.ParseFloat(rest, 64)
		if err != nil {
			return types.Target{}, errWrongPriceInput
		}
		level := round2(referenceClose * (1 + pct/100))
		return types.Target{Kind: types.TargetAbsolute, Value: level}, nil
	}

	if isNumeric(text) {
		value, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return types.Target{}, errWrongPriceInput
		}
		return types.Target{Kind: types.TargetAbsolute, Value: round2(value)}, nil
	}

	return types.Target{}, errWrongPriceInput
}

// ParseStoredTarget re-hydrates the serialized expression on each check
// cycle. Only the moving average variant keeps its original spelling;
// percent offsets were already resolved to an absolute level at parse
// time.
func ParseStoredTarget(expression string) (types.Target, error) {
	if rest, ok := strings.CutPrefix(expression, "MA"); ok && isDigits(rest) {
		window, err := strconv.Atoi(rest)
		if err != nil || window == 0 {
			return types.Target{}, errors.Errorf("malformed stored target: %s", expression)
		}
		return types.Target{Kind: types.TargetMovingAverage, Window: window}, nil
	}

	value, err := strconv.ParseFloat(expression, 64)
	if err != nil {
		return types.Target{}, errors.Wrapf(err, "malformed stored target: %s", expression)
	}
	return types.Target{Kind: types.TargetAbsolute, Value: value}, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// isNumeric accepts unsigned decimal text with at most one point.
func isNumeric(s string) bool {
	if s == "" || s == "." {
		return false
	}
	seenDot := false
	for _, r := range s {
		if r == '.' {
			if seenDot {
				return false
			}
			seenDot = true
			continue
		}
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

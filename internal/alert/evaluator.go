package alert

import "stock-alert-telegram-bot/internal/types"

// Result of evaluating one alert against a fresh price series.
type Result struct {
	Triggered bool
	// Level is the comparison level: the stored value for absolute
	// targets, the freshly computed average for moving average targets.
	Level   float64
	Current float64
	// NewReference is the close to store when the alert did not trigger.
	NewReference float64
}

// Evaluate decides whether the target level was crossed between the
// stored reference close and the latest observed close.
//
// The crossing test is strict: a close landing exactly on the level is
// not a crossing. That keeps an alert created at the level itself from
// firing before the price actually moves through it.
//
// The second return value is false when the series holds no usable
// close, in which case the alert is left untouched for the next cycle.
func Evaluate(target types.Target, referenceClose float64, series types.PriceSeries) (Result, bool) {
	current, ok := series.LastClose()
	if !ok {
		return Result{}, false
	}

	level := target.Value
	if target.Kind == types.TargetMovingAverage {
		level, ok = movingAverage(series, target.Window)
		if !ok {
			return Result{}, false
		}
	}

	crossed := (referenceClose < level && current > level) ||
		(referenceClose > level && current < level)

	return Result{
		Triggered:    crossed,
		Level:        level,
		Current:      current,
		NewReference: current,
	}, true
}

// movingAverage computes the mean of the last window non-missing closes.
// A series shorter than the window averages whatever is available: a
// fresh listing with 40 days of history still gets a usable MA100 level
// rather than a dead alert.
func movingAverage(series types.PriceSeries, window int) (float64, bool) {
	var sum float64
	var n int
	for i := len(series.Points) - 1; i >= 0 && n < window; i-- {
		if c := series.Points[i].Close; c != nil {
			sum += *c
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

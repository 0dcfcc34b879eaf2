package types

import "fmt"

// TargetKind discriminates the parsed form of a user's alert level.
type TargetKind string

const (
	// TargetAbsolute is a fixed price level. Percent offsets are resolved
	// to an absolute level at parse time and stored as this kind.
	TargetAbsolute TargetKind = "absolute"
	// TargetMovingAverage is a daily moving average window, re-resolved
	// against fresh price data on every evaluation cycle.
	TargetMovingAverage TargetKind = "moving_average"
)

// Target is the typed form of an alert level expression.
type Target struct {
	Kind   TargetKind
	Value  float64 // absolute price level, 2-decimal precision
	Window int     // moving average window in days
}

// Expression serializes the target back to its stored textual form.
// The moving average variant keeps its original "MA<n>" spelling.
func (t Target) Expression() string {
	if t.Kind == TargetMovingAverage {
		return fmt.Sprintf("MA%d", t.Window)
	}
	return fmt.Sprintf("%.2f", t.Value)
}

// Alert is a persisted request to be notified when a ticker's price
// crosses a target level.
type Alert struct {
	ID             int64   `json:"id"`
	ChatID         int64   `json:"chat_id"`
	Ticker         string  `json:"ticker"`
	Expression     string  `json:"expression"`
	ReferenceClose float64 `json:"reference_close"`
	CreatedAt      string  `json:"created_at"`

	// DisplayRow is the 1-based position within the owner's alerts,
	// recomputed on every listing. Never persisted.
	DisplayRow int `json:"display_row,omitempty"`
}

// PricePoint is a single dated observation. Close is nil when the data
// source reported no close for that date.
type PricePoint struct {
	Date  string   `json:"date"`
	Close *float64 `json:"close"`
}

// PriceSeries is a chronologically ordered run of daily closes.
type PriceSeries struct {
	Ticker string       `json:"ticker"`
	Points []PricePoint `json:"points"`
}

// Empty reports whether the series carries no usable close at all.
func (s PriceSeries) Empty() bool {
	for _, p := range s.Points {
		if p.Close != nil {
			return false
		}
	}
	return true
}

// LastClose returns the most recent non-missing close.
func (s PriceSeries) LastClose() (float64, bool) {
	for i := len(s.Points) - 1; i >= 0; i-- {
		if s.Points[i].Close != nil {
			return *s.Points[i].Close, true
		}
	}
	return 0, false
}

// LastDate returns the date of the most recent non-missing close.
func (s PriceSeries) LastDate() (string, bool) {
	for i := len(s.Points) - 1; i >= 0; i-- {
		if s.Points[i].Close != nil {
			return s.Points[i].Date, true
		}
	}
	return "", false
}

// ValidationError describes a rejected user input. It renders exactly as
// the message shown to the chat.
type ValidationError struct {
	Category string
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("Invalid %s due to %s! Please enter a valid one.", e.Category, e.Reason)
}

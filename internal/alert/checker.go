package alert

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/davecgh/go-spew/spew"
	log "github.com/sirupsen/logrus"

	"stock-alert-telegram-bot/internal/types"
	"stock-alert-telegram-bot/lib/helpers"
)

// Store is the slice of the database the checker needs.
type Store interface {
	AllAlerts() ([]types.Alert, error)
	DeleteAlert(alertID int64) error
	UpdateReferenceClose(alertID int64, close float64) error
}

// Fetcher supplies a daily close series for one ticker.
type Fetcher interface {
	FetchDaily(ctx context.Context, ticker string) (types.PriceSeries, error)
}

// Notifier delivers a one-shot message to an owner chat.
type Notifier interface {
	Notify(chatID int64, text string) error
}

// CycleStats summarizes one check cycle.
type CycleStats struct {
	Evaluated int
	Triggered int
	Updated   int
	Skipped   int
}

// Checker runs the periodic alert evaluation against fresh price data.
type Checker struct {
	store    Store
	fetcher  Fetcher
	notifier Notifier

	mu sync.Mutex // one cycle at a time
}

func NewChecker(store Store, fetcher Fetcher, notifier Notifier) *Checker {
	return &Checker{store: store, fetcher: fetcher, notifier: notifier}
}

// RunCycle loads every alert, fetches each distinct ticker once, and
// applies the crossing test. Triggered alerts are deleted only after the
// notification was delivered; a failed delivery leaves the alert in
// place, so the worst case after a partial failure is a duplicate
// notification on the next cycle, never a silently lost one.
func (c *Checker) RunCycle(ctx context.Context) (CycleStats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var stats CycleStats

	alerts, err := c.store.AllAlerts()
	if err != nil {
		return stats, err
	}
	if len(alerts) == 0 {
		return stats, nil
	}

	byTicker := make(map[string][]types.Alert)
	for _, a := range alerts {
		byTicker[a.Ticker] = append(byTicker[a.Ticker], a)
	}

	for ticker, group := range byTicker {
		series, err := c.fetcher.FetchDaily(ctx, ticker)
		if err != nil {
			// One bad symbol must not abort the rest of the cycle.
			log.Warnf("price fetch failed for %s, skipping %d alert(s): %v", ticker, len(group), err)
			stats.Skipped += len(group)
			continue
		}
		if series.Empty() {
			log.Warnf("no price data for %s, skipping %d alert(s)", ticker, len(group))
			stats.Skipped += len(group)
			continue
		}

		log.Debugf("fetched %d point(s) for %s", len(series.Points), ticker)
		if log.IsLevelEnabled(log.TraceLevel) {
			log.Trace(spew.Sdump(series))
		}

		for _, a := range group {
			stats.Evaluated++
			c.evaluateOne(a, series, &stats)
		}
	}

	log.Infof("alert check done: %d evaluated, %d triggered, %d updated, %d skipped",
		stats.Evaluated, stats.Triggered, stats.Updated, stats.Skipped)
	return stats, nil
}

func (c *Checker) evaluateOne(a types.Alert, series types.PriceSeries, stats *CycleStats) {
	target, err := ParseStoredTarget(a.Expression)
	if err != nil {
		log.Errorf("alert %d has an unreadable expression %q: %v", a.ID, a.Expression, err)
		stats.Skipped++
		return
	}

	res, ok := Evaluate(target, a.ReferenceClose, series)
	if !ok {
		stats.Skipped++
		return
	}

	if !res.Triggered {
		if err := c.store.UpdateReferenceClose(a.ID, res.NewReference); err != nil {
			log.Errorf("failed to update reference close for alert %d: %v", a.ID, err)
			return
		}
		stats.Updated++
		return
	}

	if err := c.notifier.Notify(a.ChatID, TriggerMessage(a, target, res)); err != nil {
		// Keep the alert; it will re-trigger next cycle.
		log.Errorf("failed to notify chat %d for alert %d: %v", a.ChatID, a.ID, err)
		return
	}

	if err := c.store.DeleteAlert(a.ID); err != nil {
		// Delivered but not deleted: a duplicate notification next
		// cycle is acceptable.
		log.Errorf("failed to delete triggered alert %d: %v", a.ID, err)
		return
	}
	stats.Triggered++
}

// TriggerMessage renders the one-shot notification for a crossed level.
func TriggerMessage(a types.Alert, target types.Target, res Result) string {
	level := fmt.Sprintf("*%s*", helpers.FormatPriceUS(res.Level, true))
	if target.Kind == types.TargetMovingAverage {
		level = fmt.Sprintf("*%s* \\(currently %s\\)",
			helpers.EscapeMarkdownV2(a.Expression),
			helpers.FormatPriceUS(res.Level, true))
	}

	return fmt.Sprintf(
		"🚨 *Price Alert Triggered*\n\n*%s* has crossed the alert level of %s\nCurrent price: *%s*",
		helpers.EscapeMarkdownV2(a.Ticker),
		level,
		helpers.FormatPriceUS(res.Current, true),
	)
}

// Start launches the background check loop. The interval is the pause
// between cycles, not a fixed schedule; a slow cycle simply delays the
// next one.
func (c *Checker) Start(interval time.Duration, onCycle func(CycleStats)) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Errorf("panic recovered in alert checker: %v, restarting in 10 seconds", r)
				time.Sleep(10 * time.Second)
				c.Start(interval, onCycle)
			}
		}()

		for {
			stats, err := c.RunCycle(context.Background())
			if err != nil {
				log.Errorf("alert check cycle failed: %v", err)
			} else if onCycle != nil {
				onCycle(stats)
			}
			time.Sleep(interval)
		}
	}()
	log.Info("alert checker started")
}

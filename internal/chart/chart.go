package chart

import (
	"bytes"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/wcharczuk/go-chart/v2"

	"stock-alert-telegram-bot/internal/types"
)

// RenderCloseSeries draws the daily close series as a PNG line chart.
func RenderCloseSeries(series types.PriceSeries) ([]byte, error) {
	var xs []time.Time
	var ys []float64
	for _, p := range series.Points {
		if p.Close == nil {
			continue
		}
		t, err := time.Parse("2006-01-02", p.Date)
		if err != nil {
			continue
		}
		xs = append(xs, t)
		ys = append(ys, *p.Close)
	}

	if len(ys) < 2 {
		return nil, errors.Errorf("not enough price points to chart %s", series.Ticker)
	}

	graph := chart.Chart{
		Title:  fmt.Sprintf("%s daily close", series.Ticker),
		Width:  1200,
		Height: 400,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeDateValueFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    series.Ticker,
				XValues: xs,
				YValues: ys,
			},
		},
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, errors.Wrapf(err, "could not render chart for %s", series.Ticker)
	}
	return buf.Bytes(), nil
}

package price

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"stock-alert-telegram-bot/internal/types"
)

const defaultBaseURL = "https://query1.finance.yahoo.com"

// Client downloads daily close series from the Yahoo Finance chart API.
type Client struct {
	HTTPClient *http.Client
	BaseURL    string
	// Range is the lookback window requested per fetch, e.g. "1y".
	Range string
}

func NewClient(priceRange string) *Client {
	return &Client{
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		BaseURL:    defaultBaseURL,
		Range:      priceRange,
	}
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
				Adjclose []struct {
					Adjclose []*float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// FetchDaily downloads the daily series for one ticker. An unknown
// symbol comes back as an empty series with a nil error, so callers can
// tell "no data" apart from a transport failure. Missing closes inside
// the series are preserved as nil points.
func (c *Client) FetchDaily(ctx context.Context, ticker string) (types.PriceSeries, error) {
	series := types.PriceSeries{Ticker: ticker}

	u := fmt.Sprintf("%s/v8/finance/chart/%s?range=%s&interval=1d",
		c.BaseURL, url.PathEscape(ticker), url.QueryEscape(c.Range))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return series, errors.Wrap(err, "could not build price request")
	}
	req.Header.Set("User-Agent", "stock-alert-telegram-bot/1.0")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return series, errors.Wrapf(err, "price fetch failed for %s", ticker)
	}
	defer resp.Body.Close()

	var payload chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return series, errors.Wrapf(err, "could not decode price response for %s", ticker)
	}

	if payload.Chart.Error != nil {
		// Yahoo reports unknown symbols as a chart error, not a
		// transport failure. That is "a lack of price data".
		log.Debugf("no chart data for %s: %s", ticker, payload.Chart.Error.Description)
		return series, nil
	}
	if resp.StatusCode != http.StatusOK {
		return series, errors.Errorf("price fetch for %s returned status %d", ticker, resp.StatusCode)
	}
	if len(payload.Chart.Result) == 0 {
		return series, nil
	}

	result := payload.Chart.Result[0]

	// Prefer adjusted closes, matching what users see on charting
	// sites; fall back to raw closes when adjusted ones are absent.
	var closes []*float64
	if len(result.Indicators.Adjclose) > 0 && len(result.Indicators.Adjclose[0].Adjclose) == len(result.Timestamp) {
		closes = result.Indicators.Adjclose[0].Adjclose
	} else if len(result.Indicators.Quote) > 0 && len(result.Indicators.Quote[0].Close) == len(result.Timestamp) {
		closes = result.Indicators.Quote[0].Close
	} else {
		return series, nil
	}

	for i, ts := range result.Timestamp {
		series.Points = append(series.Points, types.PricePoint{
			Date:  time.Unix(ts, 0).UTC().Format("2006-01-02"),
			Close: closes[i],
		})
	}
	return series, nil
}

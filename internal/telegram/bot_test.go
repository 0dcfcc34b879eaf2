package telegram

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-alert-telegram-bot/internal/database"
	"stock-alert-telegram-bot/internal/types"
)

type fakeFetcher struct {
	series map[string]types.PriceSeries
}

func (f *fakeFetcher) FetchDaily(_ context.Context, ticker string) (types.PriceSeries, error) {
	return f.series[ticker], nil
}

func closePtr(v float64) *float64 { return &v }

func testBot(t *testing.T, series map[string]types.PriceSeries) *Bot {
	t.Helper()
	db, err := database.Connect(filepath.Join(t.TempDir(), "alerts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return &Bot{
		DB:      db,
		Fetcher: &fakeFetcher{series: series},
		pending: make(map[int64]*conversation),
	}
}

func aaplSeries() map[string]types.PriceSeries {
	return map[string]types.PriceSeries{
		"AAPL": {
			Ticker: "AAPL",
			Points: []types.PricePoint{
				{Date: "2024-01-02", Close: closePtr(127.80)},
				{Date: "2024-01-03", Close: closePtr(128.11)},
			},
		},
	}
}

func TestAddAlertFlow(t *testing.T) {
	b := testBot(t, aaplSeries())
	conv := &conversation{step: stepAwaitTicker}
	b.setConversation(42, conv)

	reply := b.handleTickerInput(42, conv, "aapl")
	assert.Contains(t, reply, "AAPL")
	assert.Contains(t, reply, "128\\.11")
	assert.Equal(t, stepAwaitLevel, conv.step)

	reply = b.handleLevelInput(42, conv, "10%")
	assert.Contains(t, reply, "Successfully added alert for AAPL")

	alerts, err := b.DB.AlertsByChatID(42)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "AAPL", alerts[0].Ticker)
	assert.Equal(t, "140.92", alerts[0].Expression) // 128.11 * 1.10, rounded
	assert.Equal(t, 128.11, alerts[0].ReferenceClose)

	// Flow is done; the next message is not part of a conversation.
	assert.Nil(t, b.conversation(42))
}

func TestAddAlertFlowRejectsBadTicker(t *testing.T) {
	b := testBot(t, aaplSeries())
	conv := &conversation{step: stepAwaitTicker}
	b.setConversation(42, conv)

	reply := b.handleTickerInput(42, conv, "BRK.B")
	assert.Contains(t, reply, "Invalid ticker symbol due to an illegal character")
	// The step stays pending so the next message retries.
	assert.Equal(t, stepAwaitTicker, conv.step)
}

func TestAddAlertFlowReportsMissingPriceData(t *testing.T) {
	b := testBot(t, aaplSeries())
	conv := &conversation{step: stepAwaitTicker}
	b.setConversation(42, conv)

	reply := b.handleTickerInput(42, conv, "BOGUS")
	assert.Contains(t, reply, "a lack of price data")
	assert.Equal(t, stepAwaitTicker, conv.step)
}

func TestAddAlertFlowRejectsBadLevel(t *testing.T) {
	b := testBot(t, aaplSeries())
	conv := &conversation{step: stepAwaitLevel, ticker: "AAPL", series: aaplSeries()["AAPL"]}
	b.setConversation(42, conv)

	reply := b.handleLevelInput(42, conv, "abc")
	assert.Contains(t, reply, "a wrong price input")
	assert.Equal(t, stepAwaitLevel, conv.step)

	alerts, err := b.DB.AlertsByChatID(42)
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestDeleteRowFlow(t *testing.T) {
	b := testBot(t, aaplSeries())
	_, err := b.DB.AddAlert(42, "AAPL", "130.02", 128.11)
	require.NoError(t, err)
	_, err = b.DB.AddAlert(42, "MSFT", "MA100", 300.00)
	require.NoError(t, err)

	b.setConversation(42, &conversation{step: stepAwaitDeleteRow})
	reply := b.handleDeleteRowInput(42, "1")
	assert.Contains(t, reply, "Alert has been deleted")

	alerts, err := b.DB.AlertsByChatID(42)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "MSFT", alerts[0].Ticker)
	assert.Nil(t, b.conversation(42))
}

func TestDeleteRowFlowRejectsNonNumber(t *testing.T) {
	b := testBot(t, aaplSeries())
	b.setConversation(42, &conversation{step: stepAwaitDeleteRow})

	reply := b.handleDeleteRowInput(42, "first")
	assert.Contains(t, reply, "number of the alert")
	// Still pending; the user can retry.
	require.NotNil(t, b.conversation(42))
}

func TestAlertListText(t *testing.T) {
	b := testBot(t, aaplSeries())

	assert.Contains(t, b.alertListText(42), "no active alerts")

	_, err := b.DB.AddAlert(42, "AAPL", "130.02", 128.11)
	require.NoError(t, err)
	_, err = b.DB.AddAlert(42, "MSFT", "MA100", 300.00)
	require.NoError(t, err)

	list := b.alertListText(42)
	assert.Contains(t, list, "1\\.")
	assert.Contains(t, list, "AAPL")
	assert.Contains(t, list, "2\\.")
	assert.Contains(t, list, "MA100")
}

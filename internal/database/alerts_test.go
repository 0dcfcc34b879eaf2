package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Connect(filepath.Join(t.TempDir(), "alerts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestAddAndListAlerts(t *testing.T) {
	db := testDB(t)

	id, err := db.AddAlert(42, "AAPL", "130.02", 128.11)
	require.NoError(t, err)
	assert.NotZero(t, id)

	alerts, err := db.AlertsByChatID(42)
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	a := alerts[0]
	assert.Equal(t, id, a.ID)
	assert.Equal(t, int64(42), a.ChatID)
	assert.Equal(t, "AAPL", a.Ticker)
	assert.Equal(t, "130.02", a.Expression)
	assert.Equal(t, 128.11, a.ReferenceClose)
	assert.Equal(t, 1, a.DisplayRow)
	assert.NotEmpty(t, a.CreatedAt)
}

func TestDuplicateAlertsArePermitted(t *testing.T) {
	db := testDB(t)

	_, err := db.AddAlert(42, "AAPL", "130.02", 128.11)
	require.NoError(t, err)
	_, err = db.AddAlert(42, "AAPL", "130.02", 128.11)
	require.NoError(t, err)

	alerts, err := db.AlertsByChatID(42)
	require.NoError(t, err)
	assert.Len(t, alerts, 2)
}

func TestDisplayRowsAreRecomputedPerChat(t *testing.T) {
	db := testDB(t)

	_, err := db.AddAlert(1, "AAPL", "130.02", 128.11)
	require.NoError(t, err)
	_, err = db.AddAlert(2, "MSFT", "MA100", 300.00)
	require.NoError(t, err)
	secondForOne, err := db.AddAlert(1, "TSLA", "10%", 200.00)
	require.NoError(t, err)

	alerts, err := db.AlertsByChatID(1)
	require.NoError(t, err)
	require.Len(t, alerts, 2)

	// Rows are positions within this owner's alerts, not global ids.
	assert.Equal(t, 1, alerts[0].DisplayRow)
	assert.Equal(t, "AAPL", alerts[0].Ticker)
	assert.Equal(t, 2, alerts[1].DisplayRow)
	assert.Equal(t, secondForOne, alerts[1].ID)
}

func TestDeleteAlertByRow(t *testing.T) {
	db := testDB(t)

	first, err := db.AddAlert(42, "AAPL", "130.02", 128.11)
	require.NoError(t, err)
	second, err := db.AddAlert(42, "MSFT", "MA100", 300.00)
	require.NoError(t, err)
	third, err := db.AddAlert(42, "TSLA", "10%", 200.00)
	require.NoError(t, err)

	require.NoError(t, db.DeleteAlertByRow(42, 2))

	alerts, err := db.AlertsByChatID(42)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, first, alerts[0].ID)
	assert.Equal(t, third, alerts[1].ID)

	// Remaining alerts renumber on the next listing.
	assert.Equal(t, 1, alerts[0].DisplayRow)
	assert.Equal(t, 2, alerts[1].DisplayRow)
	_ = second
}

func TestDeleteAlertByRowMissingRowIsNoOp(t *testing.T) {
	db := testDB(t)

	_, err := db.AddAlert(42, "AAPL", "130.02", 128.11)
	require.NoError(t, err)

	require.NoError(t, db.DeleteAlertByRow(42, 7))

	alerts, err := db.AlertsByChatID(42)
	require.NoError(t, err)
	assert.Len(t, alerts, 1)
}

func TestUpdateReferenceCloseIsIdempotent(t *testing.T) {
	db := testDB(t)

	id, err := db.AddAlert(42, "AAPL", "130.02", 128.11)
	require.NoError(t, err)

	require.NoError(t, db.UpdateReferenceClose(id, 129.50))
	require.NoError(t, db.UpdateReferenceClose(id, 129.50))

	alerts, err := db.AlertsByChatID(42)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, 129.50, alerts[0].ReferenceClose)
}

func TestAllAlertsAndChatIDs(t *testing.T) {
	db := testDB(t)

	_, err := db.AddAlert(1, "AAPL", "130.02", 128.11)
	require.NoError(t, err)
	_, err = db.AddAlert(2, "MSFT", "MA100", 300.00)
	require.NoError(t, err)
	_, err = db.AddAlert(1, "TSLA", "10%", 200.00)
	require.NoError(t, err)

	all, err := db.AllAlerts()
	require.NoError(t, err)
	assert.Len(t, all, 3)

	ids, err := db.ChatIDs()
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{1, 2}, ids)
}

func TestMetricsRoundTrip(t *testing.T) {
	db := testDB(t)

	require.NoError(t, db.SaveMetric("messages_handled", "", "", 12))
	require.NoError(t, db.SaveMetric("messages_handled", "", "", 15))

	value, err := db.GetMetric("messages_handled")
	require.NoError(t, err)
	assert.Equal(t, 15.0, value)

	missing, err := db.GetMetric("never_saved")
	require.NoError(t, err)
	assert.Zero(t, missing)

	require.NoError(t, db.SaveMetric("messages_per_channel", "42", "PrivateChat-42", 7))
	labeled, err := db.GetMetricsWithLabels("messages_per_channel")
	require.NoError(t, err)
	assert.Equal(t, 7.0, labeled["42"]["PrivateChat-42"])
}

package report

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stickroom/ledger/internal/domain/sales"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sale(t *testing.T, productID, agentID int64, qty int, price, cost string, at time.Time) sales.Sale {
	t.Helper()
	s, err := sales.NewSale(productID, agentID, qty, decimal.RequireFromString(price), decimal.RequireFromString(cost), "Общий", at)
	require.NoError(t, err)
	return *s
}

func TestSummarize(t *testing.T) {
	day := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	returned := sale(t, 3, 1, 1, "500", "100", day)
	require.NoError(t, returned.MarkReturned("damaged", day))

	rows := []sales.Sale{
		sale(t, 1, 1, 1, "9000", "5940", day),
		sale(t, 2, 2, 2, "1000", "500", day),
		returned,
	}

	summary := Summarize(rows, day.AddDate(0, 0, -1), day.AddDate(0, 0, 1))

	assert.Equal(t, int64(2), summary.SaleCount)
	assert.Equal(t, int64(3), summary.Units)
	assert.Equal(t, int64(1), summary.ReturnCount)
	assert.True(t, decimal.NewFromInt(11000).Equal(summary.Revenue), summary.Revenue.String())
	assert.True(t, decimal.NewFromInt(4060).Equal(summary.Margin), summary.Margin.String())
	// (34 + 50) / 2
	assert.True(t, decimal.NewFromInt(42).Equal(summary.AvgMarginPercent), summary.AvgMarginPercent.String())
	require.Len(t, summary.Agents, 2)
	assert.Equal(t, int64(1), summary.Agents[0].AgentID)
	assert.Equal(t, int64(2), summary.Agents[1].AgentID)
}

func TestSummarize_Empty(t *testing.T) {
	summary := Summarize(nil, time.Time{}, time.Time{})
	assert.Zero(t, summary.SaleCount)
	assert.True(t, summary.Revenue.IsZero())
	assert.True(t, summary.AvgMarginPercent.IsZero())
	assert.NotNil(t, summary.Agents)
}

func TestDailyTrend(t *testing.T) {
	d1 := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	d2 := time.Date(2026, 3, 11, 23, 30, 0, 0, time.UTC)
	rows := []sales.Sale{
		sale(t, 1, 1, 1, "100", "50", d2),
		sale(t, 1, 1, 2, "100", "50", d1),
		sale(t, 2, 1, 1, "300", "100", d1.Add(time.Hour)),
	}

	trend := DailyTrend(rows, time.UTC)

	require.Len(t, trend, 2)
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), trend[0].Date)
	assert.Equal(t, int64(2), trend[0].SaleCount)
	assert.Equal(t, int64(3), trend[0].Units)
	assert.True(t, decimal.NewFromInt(500).Equal(trend[0].Revenue))
	assert.Equal(t, int64(1), trend[1].SaleCount)
}

func TestRankProducts(t *testing.T) {
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	rows := []sales.Sale{
		sale(t, 1, 1, 1, "100", "50", at),
		sale(t, 2, 1, 1, "300", "100", at),
		sale(t, 3, 1, 1, "200", "100", at),
	}

	ranking := RankProducts(rows, 2)

	require.Len(t, ranking, 2)
	assert.Equal(t, int64(2), ranking[0].ProductID)
	assert.Equal(t, 1, ranking[0].Rank)
	assert.Equal(t, int64(3), ranking[1].ProductID)
}

func TestMarginShare(t *testing.T) {
	assert.True(t, decimal.NewFromInt(25).Equal(MarginShare(decimal.NewFromInt(25), decimal.NewFromInt(100))))
	assert.True(t, MarginShare(decimal.NewFromInt(25), decimal.Zero).IsZero())
}

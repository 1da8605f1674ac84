// Package report holds the read models of sales reporting and the pure
// aggregation that builds them from sale rows.
package report

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stickroom/ledger/internal/domain/pricing"
	"github.com/stickroom/ledger/internal/domain/sales"
)

var hundred = decimal.NewFromInt(100)

// SalesSummary provides aggregated sales statistics. Returns are excluded.
type SalesSummary struct {
	PeriodStart      time.Time       `json:"period_start"`
	PeriodEnd        time.Time       `json:"period_end"`
	SaleCount        int64           `json:"sale_count"`
	Units            int64           `json:"units"`
	Revenue          decimal.Decimal `json:"revenue"`
	Margin           decimal.Decimal `json:"margin"`
	AvgMarginPercent decimal.Decimal `json:"avg_margin_percent"`
	AvgSaleValue     decimal.Decimal `json:"avg_sale_value"`
	ReturnCount      int64           `json:"return_count"`
	Agents           []AgentSales    `json:"agents"`
}

// AgentSales is one agent's share of a summary
type AgentSales struct {
	AgentID   int64           `json:"agent_id"`
	Username  string          `json:"username,omitempty"`
	SaleCount int64           `json:"sale_count"`
	Units     int64           `json:"units"`
	Revenue   decimal.Decimal `json:"revenue"`
	Margin    decimal.Decimal `json:"margin"`
}

// DailySalesTrend represents one day of sales
type DailySalesTrend struct {
	Date      time.Time       `json:"date"`
	SaleCount int64           `json:"sale_count"`
	Units     int64           `json:"units"`
	Revenue   decimal.Decimal `json:"revenue"`
	Margin    decimal.Decimal `json:"margin"`
}

// ProductSalesRanking represents a product's position by revenue
type ProductSalesRanking struct {
	Rank      int             `json:"rank"`
	ProductID int64           `json:"product_id"`
	Units     int64           `json:"units"`
	Revenue   decimal.Decimal `json:"revenue"`
	Margin    decimal.Decimal `json:"margin"`
}

// PricePoint is the retail price of a product from a moment on
type PricePoint struct {
	At    time.Time       `json:"at"`
	Price decimal.Decimal `json:"price"`
}

// Summarize aggregates sale rows into a summary. Returned sales are only counted.
func Summarize(rows []sales.Sale, from, to time.Time) SalesSummary {
	summary := SalesSummary{
		PeriodStart: from,
		PeriodEnd:   to,
		Revenue:     decimal.Zero,
		Margin:      decimal.Zero,
		Agents:      []AgentSales{},
	}
	byAgent := make(map[int64]*AgentSales)
	percentSum := decimal.Zero
	for i := range rows {
		s := &rows[i]
		if s.IsReturn {
			summary.ReturnCount++
			continue
		}
		amount := s.Amount()
		summary.SaleCount++
		summary.Units += int64(s.Quantity)
		summary.Revenue = summary.Revenue.Add(amount)
		summary.Margin = summary.Margin.Add(s.Margin)
		percentSum = percentSum.Add(s.MarginPercent)

		a, ok := byAgent[s.AgentID]
		if !ok {
			a = &AgentSales{AgentID: s.AgentID, Revenue: decimal.Zero, Margin: decimal.Zero}
			byAgent[s.AgentID] = a
		}
		a.SaleCount++
		a.Units += int64(s.Quantity)
		a.Revenue = a.Revenue.Add(amount)
		a.Margin = a.Margin.Add(s.Margin)
	}
	if summary.SaleCount > 0 {
		n := decimal.NewFromInt(summary.SaleCount)
		summary.AvgMarginPercent = percentSum.Div(n).Round(pricing.Places)
		summary.AvgSaleValue = summary.Revenue.Div(n).Round(pricing.Places)
	}
	for _, a := range byAgent {
		summary.Agents = append(summary.Agents, *a)
	}
	sort.Slice(summary.Agents, func(i, j int) bool {
		if c := summary.Agents[i].Revenue.Cmp(summary.Agents[j].Revenue); c != 0 {
			return c > 0
		}
		return summary.Agents[i].AgentID < summary.Agents[j].AgentID
	})
	return summary
}

// DailyTrend buckets non-returned sales by calendar day in loc, oldest first.
// Days without sales are omitted.
func DailyTrend(rows []sales.Sale, loc *time.Location) []DailySalesTrend {
	if loc == nil {
		loc = time.UTC
	}
	byDay := make(map[time.Time]*DailySalesTrend)
	for i := range rows {
		s := &rows[i]
		if s.IsReturn {
			continue
		}
		t := s.SaleDate.In(loc)
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
		d, ok := byDay[day]
		if !ok {
			d = &DailySalesTrend{Date: day, Revenue: decimal.Zero, Margin: decimal.Zero}
			byDay[day] = d
		}
		d.SaleCount++
		d.Units += int64(s.Quantity)
		d.Revenue = d.Revenue.Add(s.Amount())
		d.Margin = d.Margin.Add(s.Margin)
	}
	out := make([]DailySalesTrend, 0, len(byDay))
	for _, d := range byDay {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// RankProducts orders products by revenue, keeping the first topN (all when topN <= 0)
func RankProducts(rows []sales.Sale, topN int) []ProductSalesRanking {
	byProduct := make(map[int64]*ProductSalesRanking)
	for i := range rows {
		s := &rows[i]
		if s.IsReturn {
			continue
		}
		p, ok := byProduct[s.ProductID]
		if !ok {
			p = &ProductSalesRanking{ProductID: s.ProductID, Revenue: decimal.Zero, Margin: decimal.Zero}
			byProduct[s.ProductID] = p
		}
		p.Units += int64(s.Quantity)
		p.Revenue = p.Revenue.Add(s.Amount())
		p.Margin = p.Margin.Add(s.Margin)
	}
	out := make([]ProductSalesRanking, 0, len(byProduct))
	for _, p := range byProduct {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Revenue.Cmp(out[j].Revenue); c != 0 {
			return c > 0
		}
		return out[i].ProductID < out[j].ProductID
	})
	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// MarginShare returns margin as a percent of revenue, zero when there is no revenue
func MarginShare(margin, revenue decimal.Decimal) decimal.Decimal {
	if !revenue.IsPositive() {
		return decimal.Zero
	}
	return margin.Div(revenue).Mul(hundred).Round(pricing.Places)
}

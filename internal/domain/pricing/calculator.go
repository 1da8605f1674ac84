// Package pricing derives landed cost and margin from a product's unit economics.
// Every function here is pure: results depend only on the arguments.
package pricing

import "github.com/shopspring/decimal"

// Places is the precision money values are rounded to
const Places = 2

var hundred = decimal.NewFromInt(100)

// Economics holds the unit-economics inputs of a product
type Economics struct {
	// Price in the source currency
	Price decimal.Decimal
	// ExchangeRate converts the source currency into local currency
	ExchangeRate decimal.Decimal
	// Coefficient is the markup applied on the converted price
	Coefficient decimal.Decimal
	// LogisticsPerKg is the freight cost per kilogram in local currency
	LogisticsPerKg decimal.Decimal
	// Weight in kilograms
	Weight decimal.Decimal
}

// CostPrice returns price * exchange_rate * coefficient + logistics_per_kg * weight
func CostPrice(e Economics) decimal.Decimal {
	converted := e.Price.Mul(e.ExchangeRate).Mul(e.Coefficient)
	logistics := e.LogisticsPerKg.Mul(e.Weight)
	return converted.Add(logistics).Round(Places)
}

// Margin returns retail - cost and that difference as a percent of retail.
// A nil retail price yields zero margin; a non-positive retail price yields zero percent.
func Margin(retail *decimal.Decimal, cost decimal.Decimal) (margin, percent decimal.Decimal) {
	if retail == nil {
		return decimal.Zero, decimal.Zero
	}
	margin = retail.Sub(cost).Round(Places)
	if !retail.IsPositive() {
		return margin, decimal.Zero
	}
	percent = margin.Div(*retail).Mul(hundred).Round(Places)
	return margin, percent
}

// MarkupPrice returns cost * (1 + pct/100)
func MarkupPrice(cost, pct decimal.Decimal) decimal.Decimal {
	return cost.Mul(decimal.NewFromInt(1).Add(pct.Div(hundred))).Round(Places)
}

// ChangePercent returns (new - old) / old * 100, or zero when old is not positive
func ChangePercent(oldPrice, newPrice decimal.Decimal) decimal.Decimal {
	if !oldPrice.IsPositive() {
		return decimal.Zero
	}
	return newPrice.Sub(oldPrice).Div(oldPrice).Mul(hundred).Round(Places)
}

// SaleSnapshot is the frozen economics of a sale line
type SaleSnapshot struct {
	UnitCost      decimal.Decimal
	Margin        decimal.Decimal // unit margin * quantity
	MarginPercent decimal.Decimal // unit margin as a percent of the sale price
	Amount        decimal.Decimal // sale price * quantity
}

// Snapshot prices a sale line at the realised sale price against the current cost
func Snapshot(unitCost, salePrice decimal.Decimal, quantity int) SaleSnapshot {
	qty := decimal.NewFromInt(int64(quantity))
	unitMargin, percent := Margin(&salePrice, unitCost)
	return SaleSnapshot{
		UnitCost:      unitCost,
		Margin:        unitMargin.Mul(qty).Round(Places),
		MarginPercent: percent,
		Amount:        salePrice.Mul(qty).Round(Places),
	}
}

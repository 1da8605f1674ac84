package catalog

import (
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"github.com/stickroom/ledger/internal/domain/pricing"
	"github.com/stickroom/ledger/internal/domain/shared"
)

const (
	maxEANLength   = 13
	maxNameLength  = 200
	maxModelLength = 100
	maxColorLength = 50
)

// Attributes are the descriptive fields of a product
type Attributes struct {
	EAN    string
	Name   string
	Model  string
	Color  string
	Size   string
	Age    string
	Fit    Fit
	Weight decimal.Decimal // kilograms
}

// UnitEconomics are the inputs the cost price is derived from
type UnitEconomics struct {
	PriceEUR       decimal.Decimal
	ExchangeRate   decimal.Decimal
	Coefficient    decimal.Decimal
	LogisticsPerKg decimal.Decimal
	RetailPrice    *decimal.Decimal
}

// Product is one SKU instance within a batch.
// Quantity is only changed through the stock ledger.
type Product struct {
	shared.BaseAggregateRoot
	BatchID        int64
	EAN            string
	Name           string
	Model          string
	Color          string
	Size           string
	Age            string
	Fit            Fit
	Weight         decimal.Decimal
	Quantity       int
	PriceEUR       decimal.Decimal
	ExchangeRate   decimal.Decimal
	Coefficient    decimal.Decimal
	LogisticsPerKg decimal.Decimal
	CostPrice      decimal.Decimal
	RetailPrice    *decimal.Decimal
}

// NewProduct validates attributes and economics and derives the cost price.
// The product starts with zero quantity; intake is credited by the stock ledger.
func NewProduct(batchID int64, attrs Attributes, econ UnitEconomics) (*Product, error) {
	if batchID <= 0 {
		return nil, shared.NewValidationError("Product must belong to a batch")
	}
	attrs.Name = NormalizeLabel(attrs.Name)
	attrs.Model = NormalizeLabel(attrs.Model)
	attrs.Color = NormalizeLabel(attrs.Color)
	if err := validateAttributes(attrs); err != nil {
		return nil, err
	}
	if err := validateEconomics(econ); err != nil {
		return nil, err
	}

	p := &Product{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		BatchID:           batchID,
		EAN:               attrs.EAN,
		Name:              attrs.Name,
		Model:             attrs.Model,
		Color:             attrs.Color,
		Size:              attrs.Size,
		Age:               attrs.Age,
		Fit:               attrs.Fit,
		Weight:            attrs.Weight,
		PriceEUR:          econ.PriceEUR,
		ExchangeRate:      econ.ExchangeRate,
		Coefficient:       econ.Coefficient,
		LogisticsPerKg:    econ.LogisticsPerKg,
		RetailPrice:       econ.RetailPrice,
	}
	p.CostPrice = pricing.CostPrice(p.Economics())
	return p, nil
}

// Economics returns the pricing inputs of the product
func (p *Product) Economics() pricing.Economics {
	return pricing.Economics{
		Price:          p.PriceEUR,
		ExchangeRate:   p.ExchangeRate,
		Coefficient:    p.Coefficient,
		LogisticsPerKg: p.LogisticsPerKg,
		Weight:         p.Weight,
	}
}

// Margin returns the current retail margin and margin percent
func (p *Product) Margin() (decimal.Decimal, decimal.Decimal) {
	return pricing.Margin(p.RetailPrice, p.CostPrice)
}

// SetRetailPrice changes the retail price and returns the previous one
func (p *Product) SetRetailPrice(price decimal.Decimal) (*decimal.Decimal, error) {
	if price.IsNegative() {
		return nil, shared.NewValidationError("Retail price cannot be negative")
	}
	price = price.Round(pricing.Places)
	old := p.RetailPrice
	if old != nil && old.Equal(price) {
		return old, nil
	}
	p.RetailPrice = &price
	p.UpdatedAt = time.Now()
	p.IncrementVersion()
	return old, nil
}

// CanDebit reports whether quantity units are available
func (p *Product) CanDebit(quantity int) bool {
	return quantity > 0 && p.Quantity >= quantity
}

// InStock reports whether at least one unit is available
func (p *Product) InStock() bool {
	return p.Quantity > 0
}

func validateAttributes(a Attributes) error {
	if a.EAN == "" {
		return shared.NewValidationError("EAN is required")
	}
	if len(a.EAN) > maxEANLength {
		return shared.NewValidationError("EAN cannot exceed 13 characters")
	}
	for _, r := range a.EAN {
		if !unicode.IsDigit(r) {
			return shared.NewValidationError("EAN must contain only digits")
		}
	}
	if a.Name == "" {
		return shared.NewValidationError("Product name is required")
	}
	if len(a.Name) > maxNameLength {
		return shared.NewValidationError("Product name cannot exceed 200 characters")
	}
	if len(a.Model) > maxModelLength {
		return shared.NewValidationError("Model cannot exceed 100 characters")
	}
	if len(a.Color) > maxColorLength {
		return shared.NewValidationError("Color cannot exceed 50 characters")
	}
	if !IsValidSize(a.Size) {
		return shared.NewValidationError("Unknown size: " + a.Size)
	}
	if !IsValidAge(a.Age) {
		return shared.NewValidationError("Unknown age category: " + a.Age)
	}
	if !a.Fit.IsValid() {
		return shared.NewValidationError("Fit must be one of regular, tapered, wide")
	}
	if !a.Weight.IsPositive() {
		return shared.NewValidationError("Weight must be greater than zero")
	}
	return nil
}

func validateEconomics(e UnitEconomics) error {
	if e.PriceEUR.IsNegative() {
		return shared.NewValidationError("Price cannot be negative")
	}
	if !e.ExchangeRate.IsPositive() {
		return shared.NewValidationError("Exchange rate must be greater than zero")
	}
	if !e.Coefficient.IsPositive() {
		return shared.NewValidationError("Coefficient must be greater than zero")
	}
	if e.LogisticsPerKg.IsNegative() {
		return shared.NewValidationError("Logistics cost cannot be negative")
	}
	if e.RetailPrice != nil && e.RetailPrice.IsNegative() {
		return shared.NewValidationError("Retail price cannot be negative")
	}
	return nil
}

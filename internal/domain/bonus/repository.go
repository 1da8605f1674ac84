package bonus

import (
	"context"

	"github.com/stickroom/ledger/internal/domain/shared"
)

// RuleRepository defines the interface for bonus rule persistence
type RuleRepository interface {
	// FindByID finds a rule by its ID
	FindByID(ctx context.Context, id int64) (*Rule, error)

	// FindAll lists rules ordered by min amount
	FindAll(ctx context.Context, activeOnly bool) ([]Rule, error)

	// Count counts all rules, active or not
	Count(ctx context.Context) (int64, error)

	// Save creates or updates a rule, checking the version on update
	Save(ctx context.Context, rule *Rule) error
}

// BonusFilter narrows bonus listings
type BonusFilter struct {
	shared.Filter
	AgentID     int64
	UnpaidOnly  bool
	IncludeVoid bool
}

// BonusRepository defines the interface for bonus persistence
type BonusRepository interface {
	// FindByID finds a bonus by its ID
	FindByID(ctx context.Context, id int64) (*Bonus, error)

	// FindLiveBySale finds the non-voided bonus of a sale
	FindLiveBySale(ctx context.Context, saleID int64) (*Bonus, error)

	// ExistsForSale reports whether any bonus row references the sale
	ExistsForSale(ctx context.Context, saleID int64) (bool, error)

	// FindAll lists bonuses newest first. PageSize 0 returns every match.
	FindAll(ctx context.Context, filter BonusFilter) ([]Bonus, error)

	// Count counts bonuses matching the filter
	Count(ctx context.Context, filter BonusFilter) (int64, error)

	// Create inserts a bonus; a second row for the same sale yields ErrAlreadyExists
	Create(ctx context.Context, bonus *Bonus) error

	// Save persists paid and void state, checking the version
	Save(ctx context.Context, bonus *Bonus) error
}

package stock

import (
	"time"

	"github.com/stickroom/ledger/internal/domain/shared"
)

// OperationType is the direction of a stock movement
type OperationType string

const (
	// OperationIn credits stock received with a batch
	OperationIn OperationType = "in"
	// OperationOut debits stock for a sale
	OperationOut OperationType = "out"
	// OperationReturn credits stock back from a returned sale
	OperationReturn OperationType = "return"
)

// String returns the string representation of OperationType
func (o OperationType) String() string {
	return string(o)
}

// IsValid returns true if the operation type is valid
func (o OperationType) IsValid() bool {
	switch o {
	case OperationIn, OperationOut, OperationReturn:
		return true
	}
	return false
}

// Sign returns +1 for credits and -1 for debits
func (o OperationType) Sign() int {
	if o == OperationOut {
		return -1
	}
	return 1
}

// ReferenceType names the record a movement is attributed to
type ReferenceType string

const (
	ReferenceBatch      ReferenceType = "batch"
	ReferenceSale       ReferenceType = "sale"
	ReferenceAdjustment ReferenceType = "adjustment"
)

// IsValid returns true if the reference type is valid
func (r ReferenceType) IsValid() bool {
	switch r {
	case ReferenceBatch, ReferenceSale, ReferenceAdjustment:
		return true
	}
	return false
}

// Log is an immutable record of one stock movement.
// Corrections are made with new rows, never by editing existing ones.
type Log struct {
	shared.BaseEntity
	ProductID     int64
	OperationType OperationType
	Quantity      int // always positive, direction comes from OperationType
	Warehouse     string
	ReferenceType ReferenceType
	ReferenceID   int64
	AgentID       *int64
}

// NewLog creates a stock movement record
func NewLog(productID int64, op OperationType, quantity int, warehouse string, refType ReferenceType, refID int64) (*Log, error) {
	if productID <= 0 {
		return nil, shared.NewValidationError("Stock movement must reference a product")
	}
	if !op.IsValid() {
		return nil, shared.NewValidationError("Invalid stock operation type")
	}
	if quantity <= 0 {
		return nil, shared.NewValidationError("Quantity must be positive")
	}
	if !refType.IsValid() {
		return nil, shared.NewValidationError("Invalid stock reference type")
	}

	return &Log{
		BaseEntity:    shared.NewBaseEntity(),
		ProductID:     productID,
		OperationType: op,
		Quantity:      quantity,
		Warehouse:     warehouse,
		ReferenceType: refType,
		ReferenceID:   refID,
	}, nil
}

// WithAgent sets the agent that caused the movement
func (l *Log) WithAgent(agentID int64) *Log {
	if agentID > 0 {
		l.AgentID = &agentID
	}
	return l
}

// WithTime overrides the creation time
func (l *Log) WithTime(at time.Time) *Log {
	l.CreatedAt = at
	l.UpdatedAt = at
	return l
}

// Delta returns the signed quantity change of the movement
func (l *Log) Delta() int {
	return l.OperationType.Sign() * l.Quantity
}

// Discrepancy is a product whose counter disagrees with its movement log
type Discrepancy struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
	LogSum    int   `json:"log_sum"`
}

// FindDiscrepancies compares counters against summed deltas.
// Products without any movement have an implicit sum of zero.
func FindDiscrepancies(quantities, sums map[int64]int) []Discrepancy {
	var out []Discrepancy
	for id, qty := range quantities {
		if sum := sums[id]; sum != qty {
			out = append(out, Discrepancy{ProductID: id, Quantity: qty, LogSum: sum})
		}
	}
	for id, sum := range sums {
		if _, ok := quantities[id]; !ok && sum != 0 {
			out = append(out, Discrepancy{ProductID: id, Quantity: 0, LogSum: sum})
		}
	}
	return out
}

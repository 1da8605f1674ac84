package catalog

import (
	"time"

	"github.com/stickroom/ledger/internal/domain/shared"
)

// BatchNumberLayout is used when a batch number is generated from the receiving time
const BatchNumberLayout = "20060102-150405"

const maxBatchNumberLength = 50

// Batch is one stock-intake event grouping products received together.
// It is immutable once created.
type Batch struct {
	shared.BaseAggregateRoot
	BatchNumber string
	ReceivedAt  time.Time
	Warehouse   string
	CreatedBy   int64
}

// GenerateBatchNumber returns BATCH-YYYYMMDD-HHMMSS for the given time
func GenerateBatchNumber(at time.Time) string {
	return "BATCH-" + at.Format(BatchNumberLayout)
}

// NewBatch creates a batch received now. An empty number is generated from the clock.
func NewBatch(number, warehouse string, createdBy int64, receivedAt time.Time) (*Batch, error) {
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}
	number = NormalizeLabel(number)
	if number == "" {
		number = GenerateBatchNumber(receivedAt)
	}
	if len(number) > maxBatchNumberLength {
		return nil, shared.NewValidationError("Batch number cannot exceed 50 characters")
	}
	warehouse = NormalizeLabel(warehouse)
	if warehouse == "" {
		return nil, shared.NewValidationError("Warehouse is required")
	}
	if createdBy <= 0 {
		return nil, shared.NewValidationError("Batch creator is required")
	}

	batch := &Batch{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		BatchNumber:       number,
		ReceivedAt:        receivedAt,
		Warehouse:         warehouse,
		CreatedBy:         createdBy,
	}
	return batch, nil
}

// RecordCreated queues the BatchCreated event once the batch has an ID
func (b *Batch) RecordCreated() {
	b.AddDomainEvent(NewBatchCreatedEvent(b))
}

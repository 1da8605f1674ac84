package models

import (
	"time"

	"github.com/stickroom/ledger/internal/domain/shared"
)

// Row is embedded by append-only tables: batches and the two logs.
type Row struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	CreatedAt time.Time `gorm:"not null"`
}

// VersionedRow is embedded by mutable aggregates. Repositories bump Version
// in the same UPDATE that checks it.
type VersionedRow struct {
	Row
	UpdatedAt time.Time `gorm:"not null"`
	Version   int       `gorm:"not null;default:1"`
}

func versionedRow(a shared.BaseAggregateRoot) VersionedRow {
	return VersionedRow{
		Row:       Row{ID: a.ID, CreatedAt: a.CreatedAt},
		UpdatedAt: a.UpdatedAt,
		Version:   a.Version,
	}
}

func (m VersionedRow) root() shared.BaseAggregateRoot {
	root := shared.BaseAggregateRoot{Version: m.Version}
	root.ID, root.CreatedAt, root.UpdatedAt = m.ID, m.CreatedAt, m.UpdatedAt
	return root
}

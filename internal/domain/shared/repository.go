package shared

import "time"

// Filter pages and orders a list query. Filters holds equality conditions
// keyed by column; repositories ignore columns they do not whitelist, and
// Search is matched however each repository sees fit.
type Filter struct {
	Page     int
	PageSize int
	OrderBy  string
	OrderDir string
	Search   string
	Filters  map[string]any
}

const defaultPageSize = 20

// DefaultFilter is page 1 of 20, newest first.
func DefaultFilter() Filter {
	return Filter{Page: 1, PageSize: defaultPageSize, OrderBy: "created_at", OrderDir: "desc", Filters: map[string]any{}}
}

// DateRange is the half-open window [From, To). A zero bound is unbounded.
type DateRange struct {
	From time.Time
	To   time.Time
}

func (r DateRange) Contains(t time.Time) bool {
	afterFrom := r.From.IsZero() || !t.Before(r.From)
	beforeTo := r.To.IsZero() || t.Before(r.To)
	return afterFrom && beforeTo
}

// LastDays covers the n days up to and including now.
func LastDays(now time.Time, n int) DateRange {
	return DateRange{From: now.AddDate(0, 0, -n), To: now.Add(time.Nanosecond)}
}

// Paginated is one page of a list plus the size of the whole result.
type Paginated[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

func NewPaginated[T any](items []T, total int64, page, pageSize int) Paginated[T] {
	p := Paginated[T]{Items: items, Total: total, Page: page, PageSize: pageSize}
	if pageSize > 0 {
		p.TotalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return p
}

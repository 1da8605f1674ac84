package catalog

import (
	"context"
	"sort"

	"github.com/stickroom/ledger/internal/domain/catalog"
	"github.com/stickroom/ledger/internal/domain/shared"
)

// GetProduct returns a product by ID
func (s *Service) GetProduct(ctx context.Context, id int64) (*ProductResponse, error) {
	product, err := s.repos.Products().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToProductResponse(product)
	return &resp, nil
}

// ListProducts returns a page of products
func (s *Service) ListProducts(ctx context.Context, q ProductQuery) (shared.Paginated[ProductResponse], error) {
	filter := catalog.ProductFilter{
		Filter:      shared.DefaultFilter(),
		BatchID:     q.BatchID,
		Warehouse:   catalog.NormalizeLabel(q.Warehouse),
		EAN:         q.EAN,
		InStockOnly: q.InStockOnly,
	}
	filter.Search = q.Search
	if q.OrderBy != "" {
		filter.OrderBy = q.OrderBy
	}
	if q.OrderDir != "" {
		filter.OrderDir = q.OrderDir
	}
	if q.Page > 0 {
		filter.Page = q.Page
	}
	if q.PageSize > 0 {
		filter.PageSize = min(q.PageSize, 100)
	}

	products, err := s.repos.Products().FindAll(ctx, filter)
	if err != nil {
		return shared.Paginated[ProductResponse]{}, err
	}
	total, err := s.repos.Products().Count(ctx, filter)
	if err != nil {
		return shared.Paginated[ProductResponse]{}, err
	}
	return shared.NewPaginated(ToProductResponses(products), total, filter.Page, filter.PageSize), nil
}

// SearchProducts matches query against EAN, name and model, in-stock products first
func (s *Service) SearchProducts(ctx context.Context, query string, limit int) ([]ProductResponse, error) {
	if limit <= 0 || limit > s.settings.SearchLimit {
		limit = s.settings.SearchLimit
	}
	products, err := s.repos.Products().Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	return ToProductResponses(products), nil
}

// GetBatch returns a batch with its product count
func (s *Service) GetBatch(ctx context.Context, id int64) (*BatchResponse, error) {
	batch, err := s.repos.Batches().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToBatchResponse(batch)
	resp.ProductCount, err = s.repos.Products().Count(ctx, catalog.ProductFilter{BatchID: batch.ID})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListBatches returns a page of batches, newest received first
func (s *Service) ListBatches(ctx context.Context, q BatchQuery) (shared.Paginated[BatchResponse], error) {
	filter := shared.DefaultFilter()
	filter.OrderBy = "received_at"
	filter.Search = q.Search
	if q.Warehouse != "" {
		filter.Filters["warehouse"] = catalog.NormalizeLabel(q.Warehouse)
	}
	if q.Page > 0 {
		filter.Page = q.Page
	}
	if q.PageSize > 0 {
		filter.PageSize = min(q.PageSize, 100)
	}
	batches, err := s.repos.Batches().FindAll(ctx, filter)
	if err != nil {
		return shared.Paginated[BatchResponse]{}, err
	}
	total, err := s.repos.Batches().Count(ctx, filter)
	if err != nil {
		return shared.Paginated[BatchResponse]{}, err
	}
	out := make([]BatchResponse, len(batches))
	for i := range batches {
		out[i] = ToBatchResponse(&batches[i])
	}
	return shared.NewPaginated(out, total, filter.Page, filter.PageSize), nil
}

// Warehouses returns the configured warehouses followed by any others seen on batches
func (s *Service) Warehouses(ctx context.Context) ([]string, error) {
	seen, err := s.repos.Batches().Warehouses(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(s.settings.DefaultWarehouses)+len(seen))
	index := make(map[string]struct{}, cap(out))
	for _, w := range s.settings.DefaultWarehouses {
		w = catalog.NormalizeLabel(w)
		if _, ok := index[w]; ok || w == "" {
			continue
		}
		index[w] = struct{}{}
		out = append(out, w)
	}
	extra := make([]string, 0, len(seen))
	for _, w := range seen {
		w = catalog.NormalizeLabel(w)
		if _, ok := index[w]; ok || w == "" {
			continue
		}
		index[w] = struct{}{}
		extra = append(extra, w)
	}
	sort.Strings(extra)
	return append(out, extra...), nil
}

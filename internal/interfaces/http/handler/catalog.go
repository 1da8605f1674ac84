package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/stickroom/ledger/internal/application/audit"
	"github.com/stickroom/ledger/internal/application/catalog"
	"github.com/stickroom/ledger/internal/application/sales"
	"github.com/stickroom/ledger/internal/interfaces/http/dto"
)

// CatalogHandler serves batches, products, prices and their history
type CatalogHandler struct {
	BaseHandler
	catalog *catalog.Service
	audit   *audit.Service
	sales   *sales.Service
}

// NewCatalogHandler creates a new CatalogHandler
func NewCatalogHandler(catalogService *catalog.Service, auditService *audit.Service, salesService *sales.Service) *CatalogHandler {
	return &CatalogHandler{catalog: catalogService, audit: auditService, sales: salesService}
}

// ListBatchesQuery holds the batch list filters
type ListBatchesQuery struct {
	dto.ListRequest
	Warehouse string `form:"warehouse"`
}

// ListProductsQuery holds the product list filters
type ListProductsQuery struct {
	dto.ListRequest
	BatchID     int64  `form:"batch_id" binding:"omitempty,min=1"`
	Warehouse   string `form:"warehouse"`
	EAN         string `form:"ean" binding:"omitempty,max=13"`
	InStockOnly bool   `form:"in_stock"`
}

// SearchQuery holds the product search parameters
type SearchQuery struct {
	Query string `form:"q" binding:"required,min=1,max=100"`
	Limit int    `form:"limit" binding:"omitempty,min=1"`
}

// CreateBatch registers a stock intake.
// POST /batches
func (h *CatalogHandler) CreateBatch(c *gin.Context) {
	var req catalog.CreateBatchRequest
	if !h.bindJSON(c, &req) {
		return
	}
	req.ActorID = actorID(c)
	batch, err := h.catalog.CreateBatch(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, batch)
}

// ListBatches returns batches newest first.
// GET /batches
func (h *CatalogHandler) ListBatches(c *gin.Context) {
	var q ListBatchesQuery
	if !h.bindQuery(c, &q) {
		return
	}
	page, err := h.catalog.ListBatches(c.Request.Context(), catalog.BatchQuery{
		Warehouse: q.Warehouse,
		Search:    q.Search,
		Page:      q.Page,
		PageSize:  q.PageSize,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	Page(c, page)
}

// GetBatch returns a batch.
// GET /batches/:id
func (h *CatalogHandler) GetBatch(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	batch, err := h.catalog.GetBatch(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, batch)
}

// AddProduct adds an EAN to a batch with its opening stock.
// POST /batches/:id/products
func (h *CatalogHandler) AddProduct(c *gin.Context) {
	batchID, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req catalog.AddProductRequest
	if !h.bindJSON(c, &req) {
		return
	}
	req.ActorID = actorID(c)
	product, err := h.catalog.AddProduct(c.Request.Context(), batchID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, product)
}

// ReceiveMore credits more units of an EAN already in the batch.
// POST /batches/:id/products/:ean/receive
func (h *CatalogHandler) ReceiveMore(c *gin.Context) {
	batchID, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req catalog.ReceiveStockRequest
	if !h.bindJSON(c, &req) {
		return
	}
	req.ActorID = actorID(c)
	product, err := h.catalog.ReceiveMore(c.Request.Context(), batchID, c.Param("ean"), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, product)
}

// ListProducts returns products.
// GET /products
func (h *CatalogHandler) ListProducts(c *gin.Context) {
	var q ListProductsQuery
	if !h.bindQuery(c, &q) {
		return
	}
	page, err := h.catalog.ListProducts(c.Request.Context(), catalog.ProductQuery{
		BatchID:     q.BatchID,
		Warehouse:   q.Warehouse,
		EAN:         q.EAN,
		Search:      q.Search,
		InStockOnly: q.InStockOnly,
		OrderBy:     q.OrderBy,
		OrderDir:    q.OrderDir,
		Page:        q.Page,
		PageSize:    q.PageSize,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	Page(c, page)
}

// SearchProducts matches EAN, name and model.
// GET /products/search?q=
func (h *CatalogHandler) SearchProducts(c *gin.Context) {
	var q SearchQuery
	if !h.bindQuery(c, &q) {
		return
	}
	products, err := h.catalog.SearchProducts(c.Request.Context(), q.Query, q.Limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, products)
}

// GetProduct returns a product with its margin.
// GET /products/:id
func (h *CatalogHandler) GetProduct(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	product, err := h.catalog.GetProduct(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, product)
}

// UpdateRetailPrice changes a retail price and records it in the price history.
// PUT /products/:id/retail-price
func (h *CatalogHandler) UpdateRetailPrice(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req catalog.UpdateRetailPriceRequest
	if !h.bindJSON(c, &req) {
		return
	}
	req.ActorID = actorID(c)
	product, err := h.catalog.UpdateRetailPrice(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, product)
}

// PreviewBulkPrices computes a bulk price update without applying it.
// POST /products/prices/preview
func (h *CatalogHandler) PreviewBulkPrices(c *gin.Context) {
	var req catalog.BulkPriceRequest
	if !h.bindJSON(c, &req) {
		return
	}
	rows, err := h.catalog.PreviewBulkPriceUpdate(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, rows)
}

// ApplyBulkPrices applies a bulk price update in one transaction.
// POST /products/prices/apply (admin)
func (h *CatalogHandler) ApplyBulkPrices(c *gin.Context) {
	var req catalog.BulkPriceRequest
	if !h.bindJSON(c, &req) {
		return
	}
	req.ActorID = actorID(c)
	result, err := h.catalog.ApplyBulkPriceUpdate(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// PriceHistory lists the retail price changes of a product.
// GET /products/:id/price-history
func (h *CatalogHandler) PriceHistory(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	history, err := h.audit.PriceHistory(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, history)
}

// StockLogs lists the stock movements of a product.
// GET /products/:id/stock-logs
func (h *CatalogHandler) StockLogs(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var q dto.ListRequest
	if !h.bindQuery(c, &q) {
		return
	}
	page, err := h.audit.StockLogs(c.Request.Context(), id, q.Page, q.PageSize)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	Page(c, page)
}

// LastSalePrice returns the latest non-returned sale price, null when never sold.
// GET /products/:id/last-sale-price
func (h *CatalogHandler) LastSalePrice(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	price, err := h.sales.LastSalePrice(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"product_id": id, "price": price})
}

// Warehouses lists the configured and used warehouses.
// GET /warehouses
func (h *CatalogHandler) Warehouses(c *gin.Context) {
	names, err := h.catalog.Warehouses(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, names)
}

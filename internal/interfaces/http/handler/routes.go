package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stickroom/ledger/internal/interfaces/http/router"
)

// APIVersion is the path segment every route is served under.
const APIVersion = "v1"

// Handlers bundles the API handlers
type Handlers struct {
	Auth    *AuthHandler
	Agents  *AgentHandler
	Catalog *CatalogHandler
	Sales   *SalesHandler
	Bonus   *BonusHandler
	Report  *ReportHandler
	Health  *HealthHandler
}

// Guards are the middleware the routes are assembled with. TokenLimit and
// Idempotency may be nil.
type Guards struct {
	Agent       gin.HandlerFunc
	Admin       gin.HandlerFunc
	ServiceKey  gin.HandlerFunc
	TokenLimit  gin.HandlerFunc
	Idempotency gin.HandlerFunc
}

// RegisterRoutes mounts the API on engine under /api/v1.
func RegisterRoutes(engine *gin.Engine, h Handlers, g Guards) *router.Router {
	r := router.New(engine, APIVersion, router.Guards{Agent: g.Agent, Admin: g.Admin})

	r.Mount(
		router.NewArea("", router.Public).
			GET("/health", h.Health.Health),

		router.NewArea("/auth", router.Public).
			POST("/token", g.TokenLimit, g.ServiceKey, h.Auth.IssueToken),
		router.NewArea("/auth", router.Agent).
			POST("/logout", h.Auth.Logout),

		router.NewArea("/agents", router.Agent).
			GET("/me", h.Agents.Me).
			Admin(http.MethodGet, "", h.Agents.List).
			Admin(http.MethodPut, "/:id/admin", h.Agents.SetAdmin).
			Admin(http.MethodPut, "/:id/active", h.Agents.SetActive).
			Admin(http.MethodPost, "/:id/bonuses/pay", h.Bonus.PayAll),

		router.NewArea("/batches", router.Agent).
			POST("", h.Catalog.CreateBatch).
			GET("", h.Catalog.ListBatches).
			GET("/:id", h.Catalog.GetBatch).
			POST("/:id/products", h.Catalog.AddProduct).
			POST("/:id/products/:ean/receive", h.Catalog.ReceiveMore),

		router.NewArea("/products", router.Agent).
			GET("", h.Catalog.ListProducts).
			GET("/search", h.Catalog.SearchProducts).
			POST("/prices/preview", h.Catalog.PreviewBulkPrices).
			Admin(http.MethodPost, "/prices/apply", h.Catalog.ApplyBulkPrices).
			GET("/:id", h.Catalog.GetProduct).
			PUT("/:id/retail-price", h.Catalog.UpdateRetailPrice).
			GET("/:id/price-history", h.Catalog.PriceHistory).
			GET("/:id/stock-logs", h.Catalog.StockLogs).
			GET("/:id/last-sale-price", h.Catalog.LastSalePrice),

		router.NewArea("/warehouses", router.Agent).
			GET("", h.Catalog.Warehouses),

		router.NewArea("/sales", router.Agent).
			POST("", g.Idempotency, h.Sales.RecordSale).
			GET("", h.Sales.ListSales).
			GET("/history", h.Sales.History).
			GET("/:id", h.Sales.GetSale).
			POST("/:id/return", g.Idempotency, h.Sales.ReturnSale),

		router.NewArea("/bonuses", router.Agent).
			GET("", h.Bonus.ListBonuses).
			GET("/unpaid", h.Bonus.ListUnpaid).
			GET("/summary", h.Bonus.Summary).
			Admin(http.MethodPost, "/evaluate-pending", h.Bonus.EvaluatePending),

		router.NewArea("/bonus-rules", router.Agent).
			GET("", h.Bonus.ListRules).
			Admin(http.MethodPost, "", h.Bonus.CreateRule).
			Admin(http.MethodPut, "/:id", h.Bonus.UpdateRule).
			Admin(http.MethodDelete, "/:id", h.Bonus.DeactivateRule).
			Admin(http.MethodPost, "/:id/activate", h.Bonus.ActivateRule),

		router.NewArea("/reports", router.Agent).
			GET("/sales", h.Report.SalesReport).
			GET("/sales/daily", h.Report.DailySales).
			GET("/prices/:id", h.Report.PriceSeries).
			Admin(http.MethodGet, "/stock-consistency", h.Report.StockConsistency),

		router.NewArea("/action-logs", router.Admin).
			GET("", h.Report.ActionLogs),
	)
	return r
}

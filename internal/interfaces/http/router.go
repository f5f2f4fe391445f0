package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/Costeo-api/internal/application/engine"
	"github.com/jhoicas/Costeo-api/internal/application/valuation"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	EngineUC    *engine.EngineUseCase
	ValuationUC *valuation.UseCase
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Todas las rutas del motor exigen organización (X-Org-ID)
	api := app.Group("/api", OrgMiddleware())

	engineHandler := NewEngineHandler(deps.EngineUC)
	api.Post("/purchases", engineHandler.PostPurchase)
	api.Post("/sales", engineHandler.PostSale)
	api.Post("/adjustments", engineHandler.PostAdjustment)
	api.Post("/openings", engineHandler.PostOpening)
	api.Put("/costing-method", engineHandler.SetCostingMethod)

	valuationHandler := NewValuationHandler(deps.ValuationUC)
	api.Get("/valuation", valuationHandler.GetReport)
	api.Get("/valuation/:item", valuationHandler.GetItem)
	api.Get("/ledger/:item", valuationHandler.GetLedger)
}

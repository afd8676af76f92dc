package api

import "github.com/gofiber/fiber/v2"

func RegisterRoutes(app *fiber.App, h *Handler) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).SendString("ok")
	})

	v1 := app.Group("/api/v1")
	v1.Post("/stocks", h.CreateStock)
	v1.Get("/stocks/:asset_id", h.GetStock)
	v1.Get("/stocks/:asset_id/balances", h.GetBalances)
	v1.Post("/stocks/:asset_id/mint", h.MintStock)
	v1.Post("/stocks/:asset_id/burn", h.BurnStock)
	v1.Post("/stocks/:asset_id/sell", h.SellStock)
	v1.Post("/stocks/:asset_id/associate", h.AssociateAccount)
	v1.Post("/stocks/:asset_id/refresh", h.RefreshStock)
	v1.Patch("/stocks/:asset_id/metadata", h.UpdateMetadata)
	v1.Get("/accounts/:account_id/stocks", h.GetAccountStocks)
}

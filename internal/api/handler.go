package api

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/agritoken/stock-adapter/internal/ledger"
	"github.com/agritoken/stock-adapter/internal/token"
	"github.com/agritoken/stock-adapter/pkg/model"
)

// StockService is the orchestrator surface the HTTP layer depends on.
// *token.Service satisfies it.
type StockService interface {
	Create(ctx context.Context, req token.CreateRequest) (*token.CreateResult, error)
	Mint(ctx context.Context, assetID string, quantityKg decimal.Decimal, requestingAccount string) (*token.MintResult, error)
	Burn(ctx context.Context, assetID string, quantityKg decimal.Decimal, requestingAccount string) (*token.BurnResult, error)
	Sell(ctx context.Context, req token.SellRequest) (*token.SellResult, error)
	Associate(ctx context.Context, assetID, account, signingKey string) (*token.AssociateResult, error)
	Refresh(ctx context.Context, assetID string) error
	View(ctx context.Context, assetID string) (*model.StockView, error)
	Balances(assetID string) (model.BalanceTable, error)
	UpdateMetadata(assetID string, attrs map[string]string) (*model.MetadataRecord, error)
	OwnedStocks(ctx context.Context, account string) ([]model.Holding, error)
}

// Handler exposes the stock operations over HTTP.
type Handler struct {
	Logger  *zap.Logger
	Service StockService
}

func NewHandler(logger *zap.Logger, svc StockService) *Handler {
	return &Handler{Logger: logger, Service: svc}
}

// errorStatus maps service errors onto HTTP status codes.
func errorStatus(err error) int {
	switch {
	case token.IsValidation(err):
		return fiber.StatusBadRequest
	case token.IsAuthorization(err):
		return fiber.StatusForbidden
	case errors.Is(err, token.ErrNotFound):
		return fiber.StatusNotFound
	default:
		var ge *ledger.GatewayError
		if errors.As(err, &ge) {
			return fiber.StatusBadGateway
		}
		return fiber.StatusInternalServerError
	}
}

func (h *Handler) fail(c *fiber.Ctx, err error) error {
	status := errorStatus(err)
	if status >= fiber.StatusInternalServerError {
		h.Logger.Error("api.request_failed",
			zap.String("path", c.Path()),
			zap.Error(err))
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func (h *Handler) CreateStock(c *fiber.Ctx) error {
	var req CreateStockRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	res, err := h.Service.Create(c.Context(), token.CreateRequest{
		ProductName:       req.ProductName,
		InitialQuantityKg: req.QuantityKg,
		OwnerAccount:      req.OwnerAccount,
		OwnerSigningKey:   req.OwnerSigningKey,
		Metadata:          req.Metadata,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}

func (h *Handler) MintStock(c *fiber.Ctx) error {
	assetID := c.Params("asset_id")
	var req MintRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	res, err := h.Service.Mint(c.Context(), assetID, req.QuantityKg, req.RequestingAccount)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(res)
}

func (h *Handler) BurnStock(c *fiber.Ctx) error {
	assetID := c.Params("asset_id")
	var req BurnRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	res, err := h.Service.Burn(c.Context(), assetID, req.QuantityKg, req.RequestingAccount)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(res)
}

func (h *Handler) SellStock(c *fiber.Ctx) error {
	assetID := c.Params("asset_id")
	var req SellRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	res, err := h.Service.Sell(c.Context(), token.SellRequest{
		AssetID:          assetID,
		QuantityKg:       req.QuantityKg,
		Seller:           req.Seller,
		SellerSigningKey: req.SellerSigningKey,
		Buyer:            req.Buyer,
		BuyerSigningKey:  req.BuyerSigningKey,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(res)
}

func (h *Handler) AssociateAccount(c *fiber.Ctx) error {
	assetID := c.Params("asset_id")
	var req AssociateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	res, err := h.Service.Associate(c.Context(), assetID, req.Account, req.SigningKey)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(res)
}

func (h *Handler) RefreshStock(c *fiber.Ctx) error {
	assetID := c.Params("asset_id")
	if err := h.Service.Refresh(c.Context(), assetID); err != nil {
		return h.fail(c, err)
	}
	balances, err := h.Service.Balances(assetID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"asset_id": assetID,
		"balances": balances,
	})
}

func (h *Handler) GetStock(c *fiber.Ctx) error {
	view, err := h.Service.View(c.Context(), c.Params("asset_id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(view)
}

func (h *Handler) GetBalances(c *fiber.Ctx) error {
	balances, err := h.Service.Balances(c.Params("asset_id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(balances)
}

func (h *Handler) UpdateMetadata(c *fiber.Ctx) error {
	assetID := c.Params("asset_id")
	var req UpdateMetadataRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	rec, err := h.Service.UpdateMetadata(assetID, req.Attributes)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(rec)
}

func (h *Handler) GetAccountStocks(c *fiber.Ctx) error {
	holdings, err := h.Service.OwnedStocks(c.Context(), c.Params("account_id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(holdings)
}

package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/Costeo-api/internal/application/dto"
	"github.com/jhoicas/Costeo-api/internal/application/engine"
	"github.com/jhoicas/Costeo-api/internal/domain/entity"
)

// EngineHandler maneja las operaciones de escritura del motor: compras,
// ventas, ajustes, saldos iniciales y configuración del método de costeo.
type EngineHandler struct {
	uc *engine.EngineUseCase
}

// NewEngineHandler construye el handler.
func NewEngineHandler(uc *engine.EngineUseCase) *EngineHandler {
	return &EngineHandler{uc: uc}
}

// PostPurchase registra una recepción de compra: capa nueva + asiento PURCHASE.
func (h *EngineHandler) PostPurchase(c *fiber.Ctx) error {
	var in dto.PostPurchaseRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	entry, err := h.uc.PostPurchase(c.Context(), engine.PurchaseInput{
		OrgID:    GetOrgID(c),
		ItemID:   in.ItemID,
		Qty:      in.Qty,
		UnitCost: in.UnitCost,
		Ref: entity.LayerRef{
			ReceiptID:  in.ReceiptID,
			SupplierID: in.SupplierID,
			Batch:      in.Batch,
			Expiry:     in.Expiry,
		},
		Date: deref(in.Date),
		Note: in.Note,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.LedgerEntryFromEntity(entry))
}

// PostSale registra una venta y devuelve asiento, COGS y partición de impuestos.
func (h *EngineHandler) PostSale(c *fiber.Ctx) error {
	var in dto.PostSaleRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	result, err := h.uc.PostSale(c.Context(), engine.SaleInput{
		OrgID:       GetOrgID(c),
		ItemID:      in.ItemID,
		Qty:         in.Qty,
		UnitPrice:   in.UnitPrice,
		DiscountPct: in.DiscountPct,
		TaxRate:     in.TaxRate,
		SellerState: in.SellerState,
		BuyerState:  in.BuyerState,
		LayerID:     in.LayerID,
		Ref:         in.Ref,
		Date:        deref(in.Date),
		Note:        in.Note,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SaleResponse{
		LedgerEntry: dto.LedgerEntryFromEntity(result.Entry),
		COGS:        dto.COGSFromDomain(result.COGS),
		Tax:         dto.TaxSplitFromDomain(result.Tax),
	})
}

// PostAdjustment registra un ajuste con signo.
func (h *EngineHandler) PostAdjustment(c *fiber.Ctx) error {
	var in dto.PostAdjustmentRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	entry, err := h.uc.PostAdjustment(c.Context(), engine.AdjustmentInput{
		OrgID:    GetOrgID(c),
		ItemID:   in.ItemID,
		Qty:      in.Qty,
		UnitCost: in.UnitCost,
		Reason:   in.Reason,
		Date:     deref(in.Date),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.LedgerEntryFromEntity(entry))
}

// PostOpening registra el saldo inicial de un ítem (solo con ledger vacío).
func (h *EngineHandler) PostOpening(c *fiber.Ctx) error {
	var in dto.PostOpeningRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	entry, err := h.uc.PostOpening(c.Context(), engine.OpeningInput{
		OrgID:    GetOrgID(c),
		ItemID:   in.ItemID,
		Qty:      in.Qty,
		UnitCost: in.UnitCost,
		Date:     deref(in.Date),
		Note:     in.Note,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.LedgerEntryFromEntity(entry))
}

// SetCostingMethod configura el método de costeo del ítem o el default de la
// organización (item_id vacío).
func (h *EngineHandler) SetCostingMethod(c *fiber.Ctx) error {
	var in dto.SetCostingMethodRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	cfg, err := h.uc.SetCostingMethod(c.Context(), GetOrgID(c), in.ItemID, in.Method, deref(in.EffectiveFrom))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"org_id":         cfg.OrgID,
		"item_id":        cfg.ItemID,
		"method":         cfg.Method,
		"effective_from": cfg.EffectiveFrom,
	})
}

func deref(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

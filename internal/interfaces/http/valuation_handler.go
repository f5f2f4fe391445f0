package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/Costeo-api/internal/application/dto"
	"github.com/jhoicas/Costeo-api/internal/application/valuation"
)

// ValuationHandler maneja las lecturas de valoración (sin efectos).
type ValuationHandler struct {
	uc *valuation.UseCase
}

// NewValuationHandler construye el handler.
func NewValuationHandler(uc *valuation.UseCase) *ValuationHandler {
	return &ValuationHandler{uc: uc}
}

// GetItem valoración puntual de un ítem.
func (h *ValuationHandler) GetItem(c *fiber.Ctx) error {
	snap, err := h.uc.Snapshot(c.Context(), GetOrgID(c), c.Params("item"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.SnapshotFromEntity(*snap))
}

// GetLedger historial de movimientos de un ítem. Acepta ?from, ?to (RFC3339),
// ?limit y ?offset.
func (h *ValuationHandler) GetLedger(c *fiber.Ctx) error {
	var from, to *time.Time
	if raw := c.Query("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "from debe ser RFC3339"})
		}
		from = &t
	}
	if raw := c.Query("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "to debe ser RFC3339"})
		}
		to = &t
	}
	entries, err := h.uc.Ledger(c.Context(), GetOrgID(c), c.Params("item"),
		from, to, c.QueryInt("limit"), c.QueryInt("offset"))
	if err != nil {
		return respondError(c, err)
	}
	out := make([]dto.LedgerEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, dto.LedgerEntryFromEntity(e))
	}
	return c.JSON(out)
}

// GetReport reporte de valoración de la organización. Acepta ?as_of=RFC3339.
func (h *ValuationHandler) GetReport(c *fiber.Ctx) error {
	var asOf *time.Time
	if raw := c.Query("as_of"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "as_of debe ser RFC3339"})
		}
		asOf = &t
	}
	report, err := h.uc.Report(c.Context(), GetOrgID(c), asOf)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.ReportFromEntity(report))
}

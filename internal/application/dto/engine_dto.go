package dto

import (
	"time"

	"github.com/jhoicas/Costeo-api/internal/domain/costing"
	"github.com/jhoicas/Costeo-api/internal/domain/entity"
	"github.com/jhoicas/Costeo-api/internal/domain/tax"
	"github.com/shopspring/decimal"
)

// PostPurchaseRequest cuerpo para registrar una recepción de compra.
type PostPurchaseRequest struct {
	ItemID     string          `json:"item_id"`
	Qty        decimal.Decimal `json:"qty"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
	ReceiptID  string          `json:"receipt_id,omitempty"`
	SupplierID string          `json:"supplier_id,omitempty"`
	Batch      string          `json:"batch,omitempty"`
	Expiry     *time.Time      `json:"expiry,omitempty"`
	Date       *time.Time      `json:"date,omitempty"`
	Note       string          `json:"note,omitempty"`
}

// PostSaleRequest cuerpo para registrar una venta. layer_id fuerza
// identificación específica sobre esa capa.
type PostSaleRequest struct {
	ItemID      string          `json:"item_id"`
	Qty         decimal.Decimal `json:"qty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	DiscountPct decimal.Decimal `json:"discount_pct"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
	SellerState string          `json:"seller_state"`
	BuyerState  string          `json:"buyer_state,omitempty"`
	LayerID     string          `json:"layer_id,omitempty"`
	Ref         string          `json:"ref,omitempty"`
	Date        *time.Time      `json:"date,omitempty"`
	Note        string          `json:"note,omitempty"`
}

// PostAdjustmentRequest cuerpo para un ajuste con signo.
type PostAdjustmentRequest struct {
	ItemID   string           `json:"item_id"`
	Qty      decimal.Decimal  `json:"qty"` // con signo, distinto de cero
	UnitCost *decimal.Decimal `json:"unit_cost,omitempty"`
	Reason   string           `json:"reason"`
	Date     *time.Time       `json:"date,omitempty"`
}

// PostOpeningRequest cuerpo para el saldo inicial de un ítem.
type PostOpeningRequest struct {
	ItemID   string          `json:"item_id"`
	Qty      decimal.Decimal `json:"qty"`
	UnitCost decimal.Decimal `json:"unit_cost"`
	Date     *time.Time      `json:"date,omitempty"`
	Note     string          `json:"note,omitempty"`
}

// SetCostingMethodRequest cuerpo para configurar el método de costeo.
// item_id vacío configura el default de la organización.
type SetCostingMethodRequest struct {
	ItemID        string     `json:"item_id,omitempty"`
	Method        string     `json:"method"`
	EffectiveFrom *time.Time `json:"effective_from,omitempty"`
}

// LedgerEntryResponse proyección JSON de una entrada del ledger.
type LedgerEntryResponse struct {
	ID             string          `json:"id"`
	ItemID         string          `json:"item_id"`
	Seq            int64           `json:"seq"`
	Date           time.Time       `json:"date"`
	Movement       string          `json:"movement"`
	QtyDelta       decimal.Decimal `json:"qty_delta"`
	UnitCost       decimal.Decimal `json:"unit_cost"`
	TotalCostDelta decimal.Decimal `json:"total_cost_delta"`
	RunningQty     decimal.Decimal `json:"running_qty"`
	RunningValue   decimal.Decimal `json:"running_value"`
	RunningAvgCost decimal.Decimal `json:"running_avg_cost"`
	Note           string          `json:"note,omitempty"`
	Ref            string          `json:"ref,omitempty"`
}

// LedgerEntryFromEntity convierte la entidad a respuesta.
func LedgerEntryFromEntity(e *entity.LedgerEntry) LedgerEntryResponse {
	return LedgerEntryResponse{
		ID:             e.ID,
		ItemID:         e.ItemID,
		Seq:            e.Seq,
		Date:           e.Date,
		Movement:       e.Movement,
		QtyDelta:       e.QtyDelta,
		UnitCost:       e.UnitCost,
		TotalCostDelta: e.TotalCostDelta,
		RunningQty:     e.RunningQty,
		RunningValue:   e.RunningValue,
		RunningAvgCost: e.RunningAvgCost,
		Note:           e.Note,
		Ref:            e.Ref,
	}
}

// ConsumptionResponse porción del desglose de COGS.
type ConsumptionResponse struct {
	LayerID  string          `json:"layer_id"`
	Qty      decimal.Decimal `json:"qty"`
	UnitCost decimal.Decimal `json:"unit_cost"`
}

// COGSResponse costo de la mercancía vendida con desglose por capa.
type COGSResponse struct {
	TotalCost       decimal.Decimal       `json:"total_cost"`
	AverageUnitCost decimal.Decimal       `json:"average_unit_cost"`
	Breakdown       []ConsumptionResponse `json:"breakdown"`
}

// COGSFromDomain convierte el COGS del dominio a respuesta.
func COGSFromDomain(c costing.COGS) COGSResponse {
	out := COGSResponse{TotalCost: c.TotalCost, AverageUnitCost: c.AverageUnitCost}
	for _, b := range c.Breakdown {
		out.Breakdown = append(out.Breakdown, ConsumptionResponse{LayerID: b.LayerID, Qty: b.Qty, UnitCost: b.UnitCost})
	}
	return out
}

// TaxSplitResponse partición de impuestos de la venta.
type TaxSplitResponse struct {
	Subtotal     decimal.Decimal `json:"subtotal"`
	Rate         decimal.Decimal `json:"rate"`
	SellerState  string          `json:"seller_state"`
	BuyerState   string          `json:"buyer_state,omitempty"`
	CGST         decimal.Decimal `json:"cgst"`
	SGST         decimal.Decimal `json:"sgst"`
	IGST         decimal.Decimal `json:"igst"`
	TotalTax     decimal.Decimal `json:"total_tax"`
	GrandTotal   decimal.Decimal `json:"grand_total"`
	RoundedTotal decimal.Decimal `json:"rounded_total"`
	RoundOff     decimal.Decimal `json:"round_off"`
}

// TaxSplitFromDomain convierte la partición del dominio a respuesta.
func TaxSplitFromDomain(s tax.Split) TaxSplitResponse {
	return TaxSplitResponse{
		Subtotal:     s.Subtotal,
		Rate:         s.Rate,
		SellerState:  s.SellerState,
		BuyerState:   s.BuyerState,
		CGST:         s.CGST,
		SGST:         s.SGST,
		IGST:         s.IGST,
		TotalTax:     s.TotalTax,
		GrandTotal:   s.GrandTotal,
		RoundedTotal: s.RoundedTotal,
		RoundOff:     s.RoundOff,
	}
}

// SaleResponse resultado completo de una venta asentada.
type SaleResponse struct {
	LedgerEntry LedgerEntryResponse `json:"ledger_entry"`
	COGS        COGSResponse        `json:"cogs"`
	Tax         TaxSplitResponse    `json:"tax"`
}

// ValuationSnapshotResponse valoración puntual de un ítem.
type ValuationSnapshotResponse struct {
	ItemID           string          `json:"item_id"`
	CurrentStock     decimal.Decimal `json:"current_stock"`
	AverageCost      decimal.Decimal `json:"average_cost"`
	TotalValue       decimal.Decimal `json:"total_value"`
	LastPurchaseCost decimal.Decimal `json:"last_purchase_cost"`
	LastPurchaseDate *time.Time      `json:"last_purchase_date,omitempty"`
}

// SnapshotFromEntity convierte la foto de valoración a respuesta.
func SnapshotFromEntity(s entity.ValuationSnapshot) ValuationSnapshotResponse {
	return ValuationSnapshotResponse{
		ItemID:           s.ItemID,
		CurrentStock:     s.CurrentStock,
		AverageCost:      s.AverageCost,
		TotalValue:       s.TotalValue,
		LastPurchaseCost: s.LastPurchaseCost,
		LastPurchaseDate: s.LastPurchaseDate,
	}
}

// ValuationReportResponse reporte agregado de la organización.
type ValuationReportResponse struct {
	AsOf          time.Time                   `json:"as_of"`
	Items         []ValuationSnapshotResponse `json:"items"`
	TotalQuantity decimal.Decimal             `json:"total_quantity"`
	TotalValue    decimal.Decimal             `json:"total_value"`
}

// ReportFromEntity convierte el reporte a respuesta.
func ReportFromEntity(r *entity.ValuationReport) ValuationReportResponse {
	out := ValuationReportResponse{
		AsOf:          r.AsOf,
		TotalQuantity: r.TotalQuantity,
		TotalValue:    r.TotalValue,
	}
	for _, s := range r.Items {
		out.Items = append(out.Items, SnapshotFromEntity(s))
	}
	return out
}

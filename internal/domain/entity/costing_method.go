package entity

import (
	"time"

	"github.com/jhoicas/Costeo-api/internal/domain"
)

// Method método de costeo para valorar consumos de stock.
type Method string

// Métodos de costeo soportados.
const (
	MethodFIFO            Method = "FIFO"
	MethodLIFO            Method = "LIFO"
	MethodWeightedAverage Method = "WEIGHTED_AVERAGE"
	MethodSpecificID      Method = "SPECIFIC_ID"
)

// ParseMethod valida un método recibido en la frontera (config o request).
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case MethodFIFO, MethodLIFO, MethodWeightedAverage, MethodSpecificID:
		return Method(s), nil
	}
	return "", domain.ErrUnknownCostingMethod
}

// CostingMethod configura el método de costeo de un ítem o el default de la
// organización (ItemID vacío = default). A lo sumo una fila default por org y
// una por (org, ítem) vigente a la vez; la escritura es upsert.
type CostingMethod struct {
	ID            string
	OrgID         string
	ItemID        string // vacío = default organizacional
	Method        Method
	EffectiveFrom time.Time
	UpdatedAt     time.Time
}

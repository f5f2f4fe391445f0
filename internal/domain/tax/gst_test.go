package tax_test

import (
	"testing"

	"github.com/jhoicas/Costeo-api/internal/domain"
	"github.com/jhoicas/Costeo-api/internal/domain/tax"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ──────────────────────────────────────────────────────────────────────────────
// Vectores de referencia GST (India):
//
//	1000.00 @ 18% intra-estado (vendedor 27, comprador 27)
//	  → CGST = SGST = 90.00, IGST = 0, total 1180.00
//	1000.00 @ 18% inter-estado (vendedor 27, comprador 29)
//	  → IGST = 180.00, CGST = SGST = 0
//
// Redondeo del total: mitad lejos de cero a la unidad entera, la diferencia
// queda visible en RoundOff para que subtotal + impuesto + RoundOff cierre
// exacto contra el total cobrado.
// ──────────────────────────────────────────────────────────────────────────────

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCompute_IntraEstado(t *testing.T) {
	split, err := tax.Compute(d("1000"), d("18"), "27", "27")
	require.NoError(t, err)

	assert.True(t, split.Intrastate(), "misma jurisdicción debe ser intra-estado")
	assert.True(t, split.CGST.Equal(d("90")), "CGST debe ser la mitad del impuesto, fue %s", split.CGST)
	assert.True(t, split.SGST.Equal(d("90")), "SGST debe ser la mitad del impuesto, fue %s", split.SGST)
	assert.True(t, split.IGST.IsZero(), "IGST debe ser cero en venta intra-estado")
	assert.True(t, split.TotalTax.Equal(d("180")))
	assert.True(t, split.GrandTotal.Equal(d("1180")))
	assert.True(t, split.RoundOff.IsZero(), "total entero no debe generar redondeo")
}

func TestCompute_InterEstado(t *testing.T) {
	split, err := tax.Compute(d("1000"), d("18"), "27", "29")
	require.NoError(t, err)

	assert.False(t, split.Intrastate())
	assert.True(t, split.IGST.Equal(d("180")), "inter-estado: todo el impuesto va a IGST, fue %s", split.IGST)
	assert.True(t, split.CGST.IsZero())
	assert.True(t, split.SGST.IsZero())
	assert.True(t, split.RoundedTotal.Equal(d("1180")))
}

// TestCompute_CompradorVacioEsIntraEstado: sin jurisdicción del comprador la
// venta tributa como local (caso mostrador).
func TestCompute_CompradorVacioEsIntraEstado(t *testing.T) {
	split, err := tax.Compute(d("500"), d("12"), "27", "")
	require.NoError(t, err)

	assert.True(t, split.Intrastate())
	assert.True(t, split.CGST.Equal(d("30")))
	assert.True(t, split.SGST.Equal(d("30")))
	assert.True(t, split.IGST.IsZero())
}

// TestCompute_MitadesNoEnterasSuman: con impuesto impar las mitades CGST/SGST
// quedan con decimales pero su suma siempre iguala el impuesto total.
func TestCompute_MitadesNoEnterasSuman(t *testing.T) {
	// 1005 @ 18% = 180.90 → mitades de 90.45
	split, err := tax.Compute(d("1005"), d("18"), "27", "27")
	require.NoError(t, err)

	assert.True(t, split.CGST.Equal(d("90.45")))
	assert.True(t, split.SGST.Equal(d("90.45")))
	assert.True(t, split.CGST.Add(split.SGST).Equal(split.TotalTax),
		"CGST + SGST debe igualar el impuesto total exacto")
}

func TestCompute_ErrorSubtotalNegativo(t *testing.T) {
	_, err := tax.Compute(d("-1"), d("18"), "27", "27")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCompute_ErrorTasaNegativa(t *testing.T) {
	_, err := tax.Compute(d("100"), d("-5"), "27", "27")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCompute_TasaCero(t *testing.T) {
	split, err := tax.Compute(d("100"), d("0"), "27", "29")
	require.NoError(t, err)
	assert.True(t, split.TotalTax.IsZero())
	assert.True(t, split.GrandTotal.Equal(d("100")))
}

// ── Redondeo del total ───────────────────────────────────────────────────────

func TestRoundTotal_HaciaAbajo(t *testing.T) {
	rounded, diff := tax.RoundTotal(d("1180.40"))
	assert.True(t, rounded.Equal(d("1180")), "1180.40 redondea a 1180, fue %s", rounded)
	assert.True(t, diff.Equal(d("-0.40")), "la diferencia debe asentarse como -0.40, fue %s", diff)
}

func TestRoundTotal_HaciaArriba(t *testing.T) {
	rounded, diff := tax.RoundTotal(d("1180.60"))
	assert.True(t, rounded.Equal(d("1181")))
	assert.True(t, diff.Equal(d("0.40")))
}

// TestRoundTotal_MitadLejosDeCero: la regla en el borde exacto .50, en ambos
// signos (las devoluciones redondean simétrico).
func TestRoundTotal_MitadLejosDeCero(t *testing.T) {
	rounded, diff := tax.RoundTotal(d("1180.50"))
	assert.True(t, rounded.Equal(d("1181")), "1180.50 redondea lejos de cero a 1181, fue %s", rounded)
	assert.True(t, diff.Equal(d("0.50")))

	rounded, diff = tax.RoundTotal(d("-1180.50"))
	assert.True(t, rounded.Equal(d("-1181")), "-1180.50 redondea lejos de cero a -1181, fue %s", rounded)
	assert.True(t, diff.Equal(d("-0.50")))
}

// TestCompute_InvarianteDeCierre: subtotal + impuesto + RoundOff debe igualar
// el total redondeado exacto, para cualquier combinación.
func TestCompute_InvarianteDeCierre(t *testing.T) {
	cases := []struct {
		subtotal, rate string
		buyer          string
	}{
		{"1000", "18", "27"},
		{"1000.34", "18", "29"},
		{"999.99", "12", ""},
		{"7", "28", "29"},
		{"0.01", "5", "27"},
	}
	for _, tc := range cases {
		split, err := tax.Compute(d(tc.subtotal), d(tc.rate), "27", tc.buyer)
		require.NoError(t, err)
		sum := split.Subtotal.Add(split.TotalTax).Add(split.RoundOff)
		assert.True(t, sum.Equal(split.RoundedTotal),
			"subtotal=%s tasa=%s: %s + %s + %s != %s",
			tc.subtotal, tc.rate, split.Subtotal, split.TotalTax, split.RoundOff, split.RoundedTotal)
	}
}

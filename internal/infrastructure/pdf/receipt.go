// Package pdf genera el tiquete de venta en PDF.
//
// Layout (A4):
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  HEADER: Nombre del negocio + NIT │ N° Tiquete + Fecha       │
//	│  CLIENTE: Nombre + NIT/CC (si la venta tiene cliente)        │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TABLA: Cant | Producto (lotes) | P.Unit | Subtotal          │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TOTALES: Total / Medio de pago / Saldo pendiente            │
//	│  FOOTER: QR con el ID de la venta + leyenda                  │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"context"
	"fmt"
	"strings"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/pos-lotes/internal/domain/entity"
)

// ── Paleta de colores ─────────────────────────────────────────────────────────

var (
	colorPrimary = &props.Color{Red: 0, Green: 70, Blue: 127}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
	colorWhite   = &props.Color{Red: 255, Green: 255, Blue: 255}
)

// Header datos del negocio que encabezan el tiquete.
type Header struct {
	Name    string
	TaxID   string
	Address string
	Phone   string
}

// ReceiptRenderer implementa sales.ReceiptRenderer usando Maroto v2.
type ReceiptRenderer struct {
	header Header
}

// NewReceiptRenderer construye el generador.
func NewReceiptRenderer(h Header) *ReceiptRenderer {
	if h.Name == "" {
		h.Name = "Punto de venta"
	}
	return &ReceiptRenderer{header: h}
}

// RenderSaleReceipt genera el PDF y devuelve sus bytes. customer puede ser nil.
func (g *ReceiptRenderer) RenderSaleReceipt(_ context.Context, sale *entity.Sale, customer *entity.Customer) ([]byte, error) {
	if sale == nil {
		return nil, fmt.Errorf("pdf: venta requerida")
	}
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle("Tiquete de venta "+sale.ID, true).
		WithAuthor(g.header.Name, true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(g.headerRow(sale))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	if customer != nil {
		m.AddRows(customerRow(customer))
	}
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))

	m.AddRows(tableHeaderRow())
	m.AddRows(itemRows(sale.Items)...)

	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
	m.AddRows(totalsRow(sale))

	m.AddRows(line.NewRow(3))
	m.AddRows(footerRow(sale))

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar documento: %w", err)
	}
	return doc.GetBytes(), nil
}

// ── Secciones ─────────────────────────────────────────────────────────────────

func (g *ReceiptRenderer) headerRow(sale *entity.Sale) core.Row {
	contact := strings.Join(nonEmptyParts(g.header.Address, g.header.Phone), "   |   ")
	left := []core.Component{
		text.New(g.header.Name, props.Text{Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1}),
	}
	if g.header.TaxID != "" {
		left = append(left, text.New("NIT: "+g.header.TaxID, props.Text{Size: 9, Top: 9, Color: colorGray}))
	}
	if contact != "" {
		left = append(left, text.New(contact, props.Text{Size: 8, Top: 14, Color: colorGray}))
	}
	return row.New(20).Add(
		col.New(7).Add(left...),
		col.New(5).Add(
			text.New("TIQUETE DE VENTA", props.Text{
				Style: fontstyle.Bold, Size: 8, Align: align.Right, Color: colorPrimary, Top: 1,
			}),
			text.New(sale.ID, props.Text{Style: fontstyle.Bold, Size: 11, Align: align.Right, Top: 7}),
			text.New("Fecha: "+sale.Timestamp.Format("02/01/2006 15:04"), props.Text{
				Size: 8, Align: align.Right, Top: 14, Color: colorGray,
			}),
		),
	)
}

func customerRow(customer *entity.Customer) core.Row {
	return row.New(12).Add(
		col.New(12).Add(
			text.New("CLIENTE", props.Text{Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1}),
			text.New(fmt.Sprintf("%s   |   NIT/CC: %s", customer.Name, nonEmpty(customer.TaxID, "-")),
				props.Text{Size: 9, Top: 6}),
		),
	)
}

func tableHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a, Color: colorWhite, Top: 2, Left: 1, Right: 1,
		}))
	}
	return row.New(8).Add(
		h("Cant.", 2, align.Center),
		h("Producto", 5, align.Left),
		h("Precio Unit.", 2, align.Right),
		h("Subtotal", 3, align.Right),
	).WithStyle(&props.Cell{BackgroundColor: colorPrimary})
}

// itemRows una fila por línea; los lotes usados van en una sub-línea gris.
func itemRows(items []entity.SaleItem) []core.Row {
	rows := make([]core.Row, 0, len(items)*2)
	for _, it := range items {
		name := nonEmpty(it.Name, it.ProductID)
		rows = append(rows, row.New(7).Add(
			col.New(2).Add(text.New(formatQty(it.Quantity), props.Text{Size: 8, Align: align.Center, Top: 1})),
			col.New(5).Add(text.New(name, props.Text{Size: 8, Top: 1, Left: 1})),
			col.New(2).Add(text.New(money(it.UnitPrice), props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1})),
			col.New(3).Add(text.New(money(it.Subtotal()), props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1})),
		))
		if lots := lotsLabel(it.Lots); lots != "" {
			rows = append(rows, row.New(4).Add(
				col.New(2),
				col.New(10).Add(text.New(lots, props.Text{Size: 6.5, Color: colorGray, Left: 2})),
			))
		}
	}
	return rows
}

func totalsRow(sale *entity.Sale) core.Row {
	label := func(s string, top float64) core.Component {
		return text.New(s, props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right, Right: 2, Top: top})
	}
	value := func(s string, top float64) core.Component {
		return text.New(s, props.Text{Size: 9, Align: align.Right, Right: 1, Top: top})
	}
	labels := []core.Component{
		text.New("TOTAL:", props.Text{Style: fontstyle.Bold, Size: 10, Align: align.Right, Color: colorPrimary, Right: 2}),
		label("Medio de pago:", 6),
	}
	values := []core.Component{
		text.New(money(sale.Total), props.Text{Style: fontstyle.Bold, Size: 10, Align: align.Right, Color: colorPrimary, Right: 1}),
		value(paymentLabel(sale.PaymentMethod), 6),
	}
	if sale.Balance.IsPositive() {
		labels = append(labels, label("Saldo pendiente:", 12))
		values = append(values, value(money(sale.Balance), 12))
	}
	return row.New(20).Add(col.New(6), col.New(3).Add(labels...), col.New(3).Add(values...))
}

func footerRow(sale *entity.Sale) core.Row {
	legend := "Gracias por su compra."
	if sale.ReservationID != "" {
		legend = "Venta generada desde el apartado " + sale.ReservationID + ". " + legend
	}
	return row.New(30).Add(
		col.New(3).Add(code.NewQr(sale.ID, props.Rect{Percent: 90, Center: true})),
		col.New(9).Add(
			text.New(legend, props.Text{Size: 8, Top: 4, Left: 3, Color: colorGray}),
			text.New("Este tiquete no es una factura electrónica.", props.Text{
				Size: 6.5, Top: 12, Left: 3, Color: colorGray,
			}),
		),
	)
}

// ── helpers ───────────────────────────────────────────────────────────────────

func paymentLabel(m entity.PaymentMethod) string {
	switch m {
	case entity.PaymentCash:
		return "Efectivo"
	case entity.PaymentCard:
		return "Tarjeta"
	case entity.PaymentTransfer:
		return "Transferencia"
	case entity.PaymentCredit:
		return "Fiado"
	}
	return string(m)
}

func lotsLabel(lots []entity.LotUsage) string {
	if len(lots) == 0 {
		return ""
	}
	parts := make([]string, 0, len(lots))
	for _, l := range lots {
		parts = append(parts, fmt.Sprintf("%s x %s", l.BatchID, formatQty(l.Quantity)))
	}
	return "Lotes: " + strings.Join(parts, ", ")
}

func formatQty(q decimal.Decimal) string {
	if q.Equal(q.Truncate(0)) {
		return q.StringFixed(0)
	}
	return q.StringFixed(2)
}

// money redondea al peso y agrega puntos de miles.
func money(v decimal.Decimal) string {
	s := v.Round(0).StringFixed(0)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	return sign + "$" + formatMoney(s)
}

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}

func nonEmptyParts(parts ...string) []string {
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// formatMoney inserta puntos de miles en un string numérico sin decimales.
// Ej: "25000" → "25.000", "1000000" → "1.000.000"
func formatMoney(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}
	buf := make([]byte, 0, n+n/3)
	for i, c := range []byte(s) {
		if i > 0 && (n-i)%3 == 0 {
			buf = append(buf, '.')
		}
		buf = append(buf, c)
	}
	return string(buf)
}

package billing

import (
	"bytes"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"

	apperrors "machtms/internal/errors"
)

// InvoiceStop is one line of the stop table on the invoice.
type InvoiceStop struct {
	Action    string
	Address   string
	Scheduled time.Time
}

// InvoiceDocument carries everything the renderer needs, with names
// and addresses already resolved.
type InvoiceDocument struct {
	InvoiceID     string
	Date          time.Time
	CompanyName   string
	CompanyStreet string
	CompanyPhone  string
	CompanyEmail  string
	RemitMessage  string
	CustomerName  string
	BillTo        string
	Reference     string
	BOLNumber     string
	Stops         []InvoiceStop
	Amount        decimal.Decimal
}

// RenderInvoicePDF produces the invoice PDF attached to the billing
// email.
func RenderInvoicePDF(doc InvoiceDocument) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 20)
	pdf.Cell(0, 12, "INVOICE")
	pdf.Ln(14)

	if doc.CompanyName != "" {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.Cell(0, 6, doc.CompanyName)
		pdf.Ln(6)
		pdf.SetFont("Helvetica", "", 10)
		for _, line := range []string{doc.CompanyStreet, doc.CompanyPhone, doc.CompanyEmail} {
			if line != "" {
				pdf.Cell(0, 6, line)
				pdf.Ln(6)
			}
		}
		pdf.Ln(4)
	}

	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(40, 6, "Invoice ID:")
	pdf.Cell(0, 6, doc.InvoiceID)
	pdf.Ln(6)
	pdf.Cell(40, 6, "Date:")
	pdf.Cell(0, 6, doc.Date.Format("January 2, 2006"))
	pdf.Ln(6)
	pdf.Cell(40, 6, "Bill To:")
	pdf.Cell(0, 6, doc.CustomerName)
	pdf.Ln(6)
	if doc.BillTo != "" {
		pdf.Cell(40, 6, "")
		pdf.Cell(0, 6, doc.BillTo)
		pdf.Ln(6)
	}
	pdf.Cell(40, 6, "Shipment Reference:")
	pdf.Cell(0, 6, doc.Reference)
	pdf.Ln(6)
	if doc.BOLNumber != "" {
		pdf.Cell(40, 6, "BOL Number:")
		pdf.Cell(0, 6, doc.BOLNumber)
		pdf.Ln(6)
	}
	pdf.Ln(6)

	if len(doc.Stops) > 0 {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(20, 7, "Stop", "B", 0, "L", false, 0, "")
		pdf.CellFormat(110, 7, "Address", "B", 0, "L", false, 0, "")
		pdf.CellFormat(50, 7, "Scheduled", "B", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		for _, stop := range doc.Stops {
			pdf.CellFormat(20, 7, stop.Action, "", 0, "L", false, 0, "")
			pdf.CellFormat(110, 7, stop.Address, "", 0, "L", false, 0, "")
			pdf.CellFormat(50, 7, stop.Scheduled.Format("2006-01-02 15:04"), "", 1, "L", false, 0, "")
		}
		pdf.Ln(8)
	}

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(40, 8, "Total Due:")
	pdf.Cell(0, 8, "$"+doc.Amount.StringFixed(2))
	pdf.Ln(8)

	if doc.RemitMessage != "" {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "I", 9)
		pdf.MultiCell(0, 5, doc.RemitMessage, "", "L", false)
	}

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeExecutorFailure, err, "render invoice pdf")
	}
	return out.Bytes(), nil
}

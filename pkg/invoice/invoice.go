// Package invoice renders the customer-facing PDF for a pickup request.
package invoice

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"quickclean/pkg/money"

	"github.com/go-pdf/fpdf"
)

// GSTRate is the flat tax printed on every invoice regardless of the live
// price list.
const GSTRate = money.Percent(1800)

// Data is everything printed on one invoice.
type Data struct {
	RequestID     string
	IssuedAt      time.Time
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	Category      string
	Status        string
	WorkerID      string
	WeightKg      float64
	Price         money.Amount
}

// Totals are derived from Price so the PDF and tests agree on the numbers.
type Totals struct {
	UnitPrice money.Amount
	Subtotal  money.Amount
	Tax       money.Amount
	Total     money.Amount
}

func Compute(d Data) Totals {
	t := Totals{Subtotal: d.Price, Tax: GSTRate.Of(d.Price)}
	t.Total = t.Subtotal + t.Tax
	if grams := int64(d.WeightKg * 1000); grams > 0 {
		t.UnitPrice = d.Price.MulFrac(1000, grams)
	}
	return t
}

// Render produces the PDF bytes.
func Render(d Data) ([]byte, error) {
	t := Compute(d)

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Invoice "+d.RequestID, false)
	pdf.AddPage()
	pageWidth, _ := pdf.GetPageSize()

	pdf.SetFillColor(79, 70, 229)
	pdf.Rect(0, 0, pageWidth, 40, "F")
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 24)
	pdf.Text(20, 25, "QUICK CLEAN")
	pdf.SetFont("Helvetica", "", 10)
	pdf.Text(20, 32, "Professional Garbage Management Solutions")

	pdf.SetTextColor(50, 50, 50)
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Text(20, 55, "INVOICE")
	pdf.SetFont("Helvetica", "", 10)
	pdf.Text(20, 62, "ID: "+strings.ToUpper(d.RequestID))
	pdf.Text(20, 67, "DATE: "+d.IssuedAt.Format("02 Jan 2006"))

	pdf.SetFont("Helvetica", "B", 10)
	pdf.Text(20, 80, "BILL TO:")
	pdf.Text(120, 80, "SERVICE DETAILS:")
	pdf.SetFont("Helvetica", "", 10)
	pdf.Text(20, 85, orDefault(d.CustomerName, "Valued Customer"))
	pdf.Text(20, 90, orDefault(d.CustomerEmail, "N/A"))
	pdf.Text(20, 95, orDefault(d.CustomerPhone, "N/A"))
	pdf.Text(120, 85, "Waste Type: "+strings.ToUpper(d.Category))
	pdf.Text(120, 90, "Status: "+strings.ToUpper(d.Status))
	pdf.Text(120, 95, "Worker ID: "+orDefault(d.WorkerID, "N/A"))

	widths := []float64{90, 30, 35, 35}
	pdf.SetXY(20, 110)
	pdf.SetFillColor(79, 70, 229)
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 10)
	for i, h := range []string{"Description", "Weight", "Unit Price", "Total"} {
		pdf.CellFormat(widths[i], 8, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetX(20)
	pdf.SetTextColor(50, 50, 50)
	pdf.SetFont("Helvetica", "", 10)
	row := []string{
		fmt.Sprintf("Garbage Collection Service (%s)", d.Category),
		fmt.Sprintf("%g kg", d.WeightKg),
		"Rs. " + t.UnitPrice.String(),
		"Rs. " + t.Subtotal.String(),
	}
	for i, cell := range row {
		pdf.CellFormat(widths[i], 8, cell, "1", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)

	y := pdf.GetY() + 10
	totalLine(pdf, y, "Subtotal:", t.Subtotal)
	totalLine(pdf, y+7, fmt.Sprintf("GST (%s%%):", strings.TrimSuffix(GSTRate.String(), ".00")), t.Tax)
	pdf.SetLineWidth(0.5)
	pdf.Line(140, y+10, 190, y+10)
	pdf.SetFont("Helvetica", "B", 14)
	totalLine(pdf, y+18, "GRAND TOTAL:", t.Total)

	pdf.SetFont("Helvetica", "I", 8)
	pdf.SetTextColor(150, 150, 150)
	pdf.SetXY(0, 275)
	pdf.CellFormat(pageWidth, 5, "Thank you for choosing QuickClean. Stay Green!", "", 0, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("invoice.Render: %w", err)
	}
	return buf.Bytes(), nil
}

// FileName is the download name offered to the browser.
func FileName(requestID string) string {
	short := requestID
	if len(short) > 8 {
		short = short[:8]
	}
	return "Invoice_" + short + ".pdf"
}

func totalLine(pdf *fpdf.Fpdf, y float64, label string, amount money.Amount) {
	pdf.Text(140, y, label)
	pdf.SetXY(150, y-4)
	pdf.CellFormat(40, 5, "Rs. "+amount.String(), "", 0, "R", false, 0, "")
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

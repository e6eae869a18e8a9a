package reports

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/farmapos/farmapos/internal/inventory"
)

// The back office runs in Brazilian drugstores; exported spreadsheets carry
// pt-BR formatted currency so they open correctly in local Excel installs.
var printer = message.NewPrinter(language.BrazilianPortuguese)

func formatBRL(v float64) string {
	return printer.Sprintf("R$ %.2f", v)
}

// WriteSummaryCSV serialises a sales summary to CSV.
func WriteSummaryCSV(w io.Writer, summary *SalesSummary) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"Metric", "Value"}); err != nil {
		return err
	}
	records := [][]string{
		{"From", summary.From.Format("2006-01-02")},
		{"To", summary.To.Format("2006-01-02")},
		{"Sales", strconv.Itoa(summary.SaleCount)},
		{"Subtotal", formatBRL(summary.Subtotal)},
		{"Discounts", formatBRL(summary.DiscountTotal)},
		{"Total", formatBRL(summary.Total)},
	}
	for method, total := range summary.ByMethod {
		records = append(records, []string{"Total " + method, formatBRL(total)})
	}
	for _, record := range records {
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteTopProductsCSV emits the best-sellers ranking as CSV.
func WriteTopProductsCSV(w io.Writer, top []TopProduct) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write([]string{"Product", "Units", "Revenue"}); err != nil {
		return err
	}
	for _, t := range top {
		if err := writer.Write([]string{t.Name, strconv.Itoa(t.Units), formatBRL(t.Revenue)}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteControlledCSV emits the controlled-substance register as CSV.
func WriteControlledCSV(w io.Writer, entries []ControlledEntry) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write([]string{"Sale", "Sold At", "Product", "Quantity", "Prescription", "Prescription Date", "Patient", "Document"}); err != nil {
		return err
	}
	for _, e := range entries {
		if err := writer.Write([]string{
			e.SaleCode,
			e.SoldAt.Format(time.RFC3339),
			e.ProductName,
			strconv.Itoa(e.Quantity),
			e.PrescriptionNumber,
			e.PrescriptionDate.Format("2006-01-02"),
			e.PatientName,
			e.PatientDocument,
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteNearExpiryCSV emits the near-expiry lot list as CSV.
func WriteNearExpiryCSV(w io.Writer, lots []inventory.Lot, now time.Time) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write([]string{"Lot", "Product ID", "Expiry", "Days Left", "Quantity"}); err != nil {
		return err
	}
	for _, lot := range lots {
		if err := writer.Write([]string{
			lot.LotNumber,
			strconv.FormatInt(lot.ProductID, 10),
			lot.ExpiryDate.Format("2006-01-02"),
			strconv.Itoa(lot.DaysToExpiry(now)),
			strconv.Itoa(lot.QuantityAvailable),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

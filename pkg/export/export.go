package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/parsaabbasian/unispot-sync/internal/models"
)

// Dataset defines tabular export content.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

var eventHeaders = []string{"ID", "Title", "Category", "Lat", "Lng", "Starts", "Ends", "Verified", "Approved"}

// EventsDataset flattens a feed snapshot into a Dataset.
func EventsDataset(events []models.Event) Dataset {
	rows := make([]map[string]string, 0, len(events))
	for _, e := range events {
		rows = append(rows, map[string]string{
			"ID":       strconv.FormatUint(uint64(e.ID), 10),
			"Title":    e.Title,
			"Category": e.Category,
			"Lat":      strconv.FormatFloat(e.Latitude, 'f', 5, 64),
			"Lng":      strconv.FormatFloat(e.Longitude, 'f', 5, 64),
			"Starts":   e.StartTime.UTC().Format(time.RFC3339),
			"Ends":     e.EndTime.UTC().Format(time.RFC3339),
			"Verified": strconv.Itoa(e.VerifiedCount),
			"Approved": strconv.FormatBool(e.IsApproved),
		})
	}
	return Dataset{Headers: eventHeaders, Rows: rows}
}

// CSVExporter renders Dataset records into CSV bytes.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render produces CSV encoded bytes for the dataset.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("csv requires at least one header")
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(data.Headers); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	for _, row := range data.Rows {
		record := make([]string, len(data.Headers))
		for i, header := range data.Headers {
			record[i] = row[header]
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// PDFExporter renders datasets into a basic tabular PDF.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Column weights tuned for event rows: titles need room, flags and counts
// barely any. Headers not listed here get an average share.
var colWeights = map[string]float64{
	"ID":       0.5,
	"Title":    2.4,
	"Category": 1.1,
	"Lat":      0.9,
	"Lng":      0.9,
	"Starts":   1.5,
	"Ends":     1.5,
	"Verified": 0.6,
	"Approved": 0.6,
}

const pageWidth = 277.0 // landscape A4 minus margins

func columnWidths(headers []string) []float64 {
	total := 0.0
	weights := make([]float64, len(headers))
	for i, h := range headers {
		w, ok := colWeights[h]
		if !ok {
			w = 1
		}
		weights[i] = w
		total += w
	}
	widths := make([]float64, len(headers))
	for i, w := range weights {
		widths[i] = pageWidth * w / total
	}
	return widths
}

// Render creates a PDF document with an optional title and table body.
func (e *PDFExporter) Render(data Dataset, title string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	if title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, strings.ToUpper(title), "", 1, "C", false, 0, "")
		pdf.Ln(5)
	}

	widths := columnWidths(data.Headers)

	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(235, 235, 235)
	for i, header := range data.Headers {
		pdf.CellFormat(widths[i], 8, header, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, row := range data.Rows {
		for i, header := range data.Headers {
			pdf.CellFormat(widths[i], 7, clip(pdf, row[header], widths[i]), "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// clip shortens a value so it stays inside its cell instead of bleeding into
// the neighbour.
func clip(pdf *gofpdf.Fpdf, s string, width float64) string {
	limit := width - 2 // cell padding
	if pdf.GetStringWidth(s) <= limit {
		return s
	}
	for len(s) > 1 && pdf.GetStringWidth(s+"...") > limit {
		s = s[:len(s)-1]
	}
	return s + "..."
}

package aggregate

import (
	"fmt"
	"io"
	"time"

	"github.com/Somchit-cmd/adminawaylog/internal/storage"
	"github.com/jung-kurt/gofpdf"
)

type PDFOptions struct {
	Location    *time.Location
	GeneratedAt time.Time
	Criteria    Criteria
}

type pdfColumn struct {
	title string
	width float64
	value func(r *storage.FieldReport, loc *time.Location) string
}

// A4 portrait with 10mm margins leaves 190mm.
var pdfColumns = []pdfColumn{
	{"Name", 30, func(r *storage.FieldReport, _ *time.Location) string { return r.UserName }},
	{"Purpose", 36, func(r *storage.FieldReport, _ *time.Location) string { return r.Purpose }},
	{"Vehicle", 24, func(r *storage.FieldReport, _ *time.Location) string { return r.Vehicle }},
	{"Start", 28, func(r *storage.FieldReport, loc *time.Location) string {
		return r.TimeOut.In(loc).Format("2006-01-02 15:04")
	}},
	{"Return", 28, func(r *storage.FieldReport, loc *time.Location) string {
		return r.TimeIn.In(loc).Format("2006-01-02 15:04")
	}},
	{"Duration", 20, func(r *storage.FieldReport, _ *time.Location) string {
		return FormatDuration(r.TimeIn.Sub(r.TimeOut).Minutes())
	}},
	{"Location", 24, func(r *storage.FieldReport, _ *time.Location) string {
		if r.Location == nil {
			return ""
		}
		return fmt.Sprintf("%.4f,%.4f", r.Location.Lat, r.Location.Lng)
	}},
}

// WritePDF renders the summary and a table of reports.
func WritePDF(w io.Writer, reports []storage.FieldReport, summary Summary, opts PDFOptions) error {
	if len(reports) == 0 {
		return ErrNothingToExport
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	generatedAt := opts.GeneratedAt
	if generatedAt.IsZero() {
		generatedAt = time.Now()
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 12)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	fontName := "Arial"

	pdf.AddPage()
	pdf.SetFont(fontName, "B", 16)
	pdf.Cell(0, 10, "Admin Away Log - Field Reports")
	pdf.Ln(9)

	pdf.SetFont(fontName, "", 10)
	pdf.Cell(0, 6, tr(fmt.Sprintf("Generated: %s (%s)", generatedAt.In(loc).Format(timeLayout), loc)))
	pdf.Ln(5)
	if !opts.Criteria.IsZero() {
		pdf.Cell(0, 6, tr(describeCriteria(opts.Criteria)))
		pdf.Ln(5)
	}
	pdf.Ln(4)

	// Summary
	pdf.SetFont(fontName, "B", 13)
	pdf.Cell(0, 8, "Summary")
	pdf.Ln(8)
	pdf.SetFont(fontName, "", 10)
	for _, line := range []string{
		fmt.Sprintf("Total reports: %d", summary.TotalCount),
		fmt.Sprintf("Most common purpose: %s", summary.MostCommonPurpose),
		fmt.Sprintf("Most active user: %s", summary.MostActiveUser),
		fmt.Sprintf("Average duration: %s", summary.AverageDuration),
	} {
		pdf.Cell(0, 6, tr(line))
		pdf.Ln(5)
	}
	if summary.InvertedCount > 0 {
		pdf.Cell(0, 6, fmt.Sprintf("Reports returning before departure: %d", summary.InvertedCount))
		pdf.Ln(5)
	}
	if len(summary.Breakdown) > 0 {
		pdf.Ln(2)
		pdf.Cell(0, 6, tr(fmt.Sprintf("By %s:", summary.BreakdownField)))
		pdf.Ln(5)
		for _, b := range summary.Breakdown {
			pdf.Cell(0, 6, tr(fmt.Sprintf("  %s: %d", b.Value, b.Count)))
			pdf.Ln(5)
		}
	}
	pdf.Ln(6)

	// Reports table
	pdf.SetFont(fontName, "B", 13)
	pdf.Cell(0, 8, "Reports")
	pdf.Ln(8)
	drawReportsTable(pdf, reports, loc, fontName, tr)

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to generate PDF: %w", err)
	}
	return nil
}

func drawReportsTable(pdf *gofpdf.Fpdf, reports []storage.FieldReport, loc *time.Location, fontName string, tr func(string) string) {
	header := func() {
		pdf.SetFont(fontName, "B", 8)
		pdf.SetFillColor(230, 230, 230)
		for _, c := range pdfColumns {
			pdf.CellFormat(c.width, 6, c.title, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont(fontName, "", 8)
	}

	header()
	_, pageHeight := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	for i := range reports {
		if pdf.GetY()+6 > pageHeight-bottom {
			pdf.AddPage()
			header()
		}
		for _, c := range pdfColumns {
			text := fitText(pdf, tr(c.value(&reports[i], loc)), c.width-2)
			pdf.CellFormat(c.width, 6, text, "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}
}

// fitText truncates s with ".." until it fits into width. s is already
// translated to the single-byte core font encoding.
func fitText(pdf *gofpdf.Fpdf, s string, width float64) string {
	if pdf.GetStringWidth(s) <= width {
		return s
	}
	for len(s) > 0 && pdf.GetStringWidth(s+"..") > width {
		s = s[:len(s)-1]
	}
	return s + ".."
}

func describeCriteria(c Criteria) string {
	switch {
	case c.Query != "" && c.Date != nil:
		return fmt.Sprintf("Filter: %q on %s", c.Query, c.Date)
	case c.Date != nil:
		return fmt.Sprintf("Filter: %s", c.Date)
	default:
		return fmt.Sprintf("Filter: %q", c.Query)
	}
}

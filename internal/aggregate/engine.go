// Package aggregate filters field reports and derives dashboard analytics and exports.
package aggregate

import (
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/Somchit-cmd/adminawaylog/internal/storage"
	"github.com/Somchit-cmd/adminawaylog/internal/throttle"
)

var (
	ErrNothingToExport   = errors.New("no reports to export")
	ErrExportCooldown    = errors.New("export requested too soon, try again later")
	ErrUnsupportedFormat = errors.New("unsupported export format")
)

// Logger is satisfied by *log.Logger.
type Logger interface {
	Printf(format string, v ...any)
}

type Format string

const (
	FormatCSV Format = "csv"
	FormatPDF Format = "pdf"
)

func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatPDF:
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

func (f Format) ContentType() string {
	if f == FormatPDF {
		return "application/pdf"
	}
	return "text/csv; charset=utf-8"
}

type Options struct {
	Location       *time.Location
	ExportLimiter  throttle.Limiter
	BreakdownField Field
	Logger         Logger
}

type Engine struct {
	loc            *time.Location
	exportLimiter  throttle.Limiter
	breakdownField Field
	logger         Logger
}

func NewEngine(opts Options) *Engine {
	e := &Engine{
		loc:            opts.Location,
		exportLimiter:  opts.ExportLimiter,
		breakdownField: opts.BreakdownField,
		logger:         opts.Logger,
	}
	if e.loc == nil {
		e.loc = time.Local
	}
	if e.exportLimiter == nil {
		e.exportLimiter = throttle.NewCooldown(throttle.DefaultCooldown)
	}
	if e.breakdownField == "" {
		e.breakdownField = FieldVehicle
	}
	if e.logger == nil {
		e.logger = log.Default()
	}
	return e
}

func (e *Engine) Location() *time.Location {
	return e.loc
}

func (e *Engine) DefaultField() Field {
	return e.breakdownField
}

// Prepare drops records the engine cannot aggregate, keeping order.
func (e *Engine) Prepare(reports []storage.FieldReport) []storage.FieldReport {
	out := make([]storage.FieldReport, 0, len(reports))
	for _, r := range reports {
		if reason := malformedReason(&r); reason != "" {
			e.logger.Printf("WARN aggregate: skipping malformed report id=%s reason=%s", r.ID, reason)
			continue
		}
		out = append(out, r)
	}
	return out
}

func malformedReason(r *storage.FieldReport) string {
	switch {
	case r.UserName == "":
		return "missing user_name"
	case r.Purpose == "":
		return "missing purpose"
	case r.Vehicle == "":
		return "missing vehicle"
	case r.TimeOut.IsZero():
		return "missing time_out"
	case r.TimeIn.IsZero():
		return "missing time_in"
	}
	return ""
}

// View is what the dashboard renders for one set of filter inputs.
type View struct {
	Reports []storage.FieldReport `json:"-"`
	Summary Summary               `json:"summary"`
	Skipped int                   `json:"skipped"`
}

func (e *Engine) View(reports []storage.FieldReport, criteria Criteria, field Field) View {
	if field == "" {
		field = e.breakdownField
	}
	valid := e.Prepare(reports)
	filtered := Filter(valid, criteria, e.loc)
	return View{
		Reports: filtered,
		Summary: Summarize(filtered, field),
		Skipped: len(reports) - len(valid),
	}
}

// Export writes the filtered reports to w. key identifies who is exporting for the cooldown.
// An empty or unsupported export is refused before the cooldown is touched.
func (e *Engine) Export(now time.Time, key string, reports []storage.FieldReport, criteria Criteria, format Format, w io.Writer) error {
	if format != FormatCSV && format != FormatPDF {
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	view := e.View(reports, criteria, e.breakdownField)
	if len(view.Reports) == 0 {
		return ErrNothingToExport
	}

	if !e.exportLimiter.TryAcquire(key, now) {
		return ErrExportCooldown
	}

	switch format {
	case FormatCSV:
		return WriteCSV(w, view.Reports, e.loc)
	case FormatPDF:
		return WritePDF(w, view.Reports, view.Summary, PDFOptions{Location: e.loc, GeneratedAt: now, Criteria: criteria})
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// ExportFilename returns reports_<UTC date>.<ext>.
func ExportFilename(now time.Time, format Format) string {
	return fmt.Sprintf("reports_%s.%s", now.UTC().Format("2006-01-02"), format)
}

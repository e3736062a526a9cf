package aggregate

import (
	"bufio"
	"io"
	"strings"
	"time"

	"github.com/Somchit-cmd/adminawaylog/internal/storage"
)

const timeLayout = "2006-01-02 15:04:05"

var csvHeader = []string{"ID", "Name", "Purpose", "Start Time", "Return Time", "Vehicle", "Notes", "Location", "Timestamp"}

// WriteCSV writes the header and one fully quoted row per report.
func WriteCSV(w io.Writer, reports []storage.FieldReport, loc *time.Location) error {
	if len(reports) == 0 {
		return ErrNothingToExport
	}
	if loc == nil {
		loc = time.Local
	}

	bw := bufio.NewWriter(w)
	bw.WriteString(strings.Join(csvHeader, ","))
	bw.WriteString("\n")
	for i := range reports {
		writeQuotedRow(bw, csvRow(&reports[i], loc))
	}
	return bw.Flush()
}

func csvRow(r *storage.FieldReport, loc *time.Location) []string {
	location := ""
	if r.Location != nil {
		location = r.Location.String()
	}
	return []string{
		r.ID.String(),
		r.UserName,
		r.Purpose,
		formatTime(r.TimeOut, loc),
		formatTime(r.TimeIn, loc),
		r.Vehicle,
		r.Notes,
		location,
		formatTime(r.CreatedAt, loc),
	}
}

// encoding/csv quotes only when it must; every field here is quoted.
func writeQuotedRow(w *bufio.Writer, fields []string) {
	for i, f := range fields {
		if i > 0 {
			w.WriteByte(',')
		}
		w.WriteByte('"')
		w.WriteString(strings.ReplaceAll(f, `"`, `""`))
		w.WriteByte('"')
	}
	w.WriteByte('\n')
}

func formatTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	return t.In(loc).Format(timeLayout)
}

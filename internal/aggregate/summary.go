package aggregate

import (
	"fmt"
	"math"

	"github.com/Somchit-cmd/adminawaylog/internal/storage"
)

// NotAvailable stands in for any statistic of an empty set.
const NotAvailable = "N/A"

type Summary struct {
	TotalCount             int      `json:"total_count"`
	MostCommonPurpose      string   `json:"most_common_purpose"`
	MostActiveUser         string   `json:"most_active_user"`
	AverageDuration        string   `json:"average_duration"`
	AverageDurationMinutes *float64 `json:"average_duration_minutes"`
	InvertedCount          int      `json:"inverted_count"`
	BreakdownField         Field    `json:"breakdown_field"`
	Breakdown              []Bucket `json:"breakdown"`
}

func Summarize(reports []storage.FieldReport, field Field) Summary {
	s := Summary{
		TotalCount:        len(reports),
		MostCommonPurpose: NotAvailable,
		MostActiveUser:    NotAvailable,
		AverageDuration:   NotAvailable,
		BreakdownField:    field,
		Breakdown:         Breakdown(reports, field),
	}
	if len(reports) == 0 {
		return s
	}

	s.MostCommonPurpose = mode(reports, func(r *storage.FieldReport) string { return r.Purpose })
	s.MostActiveUser = mode(reports, func(r *storage.FieldReport) string { return r.UserName })

	var total float64
	for i := range reports {
		d := reports[i].TimeIn.Sub(reports[i].TimeOut)
		if d < 0 {
			s.InvertedCount++
		}
		total += d.Minutes()
	}
	avg := total / float64(len(reports))
	s.AverageDurationMinutes = &avg
	s.AverageDuration = FormatDuration(avg)
	return s
}

// mode returns the most frequent value; on a tie the value seen first wins.
func mode(reports []storage.FieldReport, value func(*storage.FieldReport) string) string {
	counts := make(map[string]int)
	best, bestCount := "", 0
	for i := range reports {
		v := value(&reports[i])
		counts[v]++
		if counts[v] > bestCount {
			best, bestCount = v, counts[v]
		}
	}
	return best
}

// FormatDuration renders minutes as "H h M min": hours floored, minutes rounded.
// Negative means keep their sign.
func FormatDuration(minutes float64) string {
	if math.IsNaN(minutes) || math.IsInf(minutes, 0) {
		return NotAvailable
	}
	sign := ""
	if minutes < 0 {
		sign = "-"
		minutes = -minutes
	}
	hours := math.Floor(minutes / 60)
	mins := math.Round(minutes - hours*60)
	if mins == 60 {
		hours++
		mins = 0
	}
	return fmt.Sprintf("%s%d h %d min", sign, int(hours), int(mins))
}

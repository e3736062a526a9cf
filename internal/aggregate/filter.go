package aggregate

import (
	"fmt"
	"strings"
	"time"

	"github.com/Somchit-cmd/adminawaylog/internal/storage"
)

// Day is a calendar date with no time zone attached.
type Day struct {
	Year  int
	Month time.Month
	Day   int
}

func ParseDay(s string) (Day, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Day{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return DayOf(t, time.UTC), nil
}

// DayOf returns the calendar day of t in loc.
func DayOf(t time.Time, loc *time.Location) Day {
	y, m, d := t.In(loc).Date()
	return Day{Year: y, Month: m, Day: d}
}

func (d Day) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

type Criteria struct {
	Query string
	Date  *Day
}

func (c Criteria) IsZero() bool {
	return c.Query == "" && c.Date == nil
}

// Matches reports whether r passes both predicates.
func (c Criteria) Matches(r *storage.FieldReport, loc *time.Location) bool {
	return matchesQuery(r, c.Query) && matchesDate(r, c.Date, loc)
}

func matchesQuery(r *storage.FieldReport, query string) bool {
	// запрос не обрезается: " meeting" ищет именно с пробелом
	q := strings.ToLower(query)
	if q == "" {
		return true
	}
	for _, field := range []string{r.UserName, r.Purpose, r.Vehicle, r.Notes} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

func matchesDate(r *storage.FieldReport, day *Day, loc *time.Location) bool {
	if day == nil {
		return true
	}
	return DayOf(r.TimeOut, loc) == *day
}

// Filter keeps the reports matching c, in their original order.
func Filter(reports []storage.FieldReport, c Criteria, loc *time.Location) []storage.FieldReport {
	if loc == nil {
		loc = time.Local
	}
	out := make([]storage.FieldReport, 0, len(reports))
	for i := range reports {
		if c.Matches(&reports[i], loc) {
			out = append(out, reports[i])
		}
	}
	return out
}

package aggregate

import (
	"fmt"
	"sort"

	"github.com/Somchit-cmd/adminawaylog/internal/storage"
)

type Field string

const (
	FieldVehicle Field = "vehicle"
	FieldPurpose Field = "purpose"
	FieldUser    Field = "user"
)

func ParseField(s string) (Field, error) {
	switch Field(s) {
	case FieldVehicle, FieldPurpose, FieldUser:
		return Field(s), nil
	default:
		return "", fmt.Errorf("unknown breakdown field %q (vehicle|purpose|user)", s)
	}
}

func (f Field) value(r *storage.FieldReport) string {
	switch f {
	case FieldPurpose:
		return r.Purpose
	case FieldUser:
		return r.UserName
	default:
		return r.Vehicle
	}
}

type Bucket struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Breakdown counts reports per distinct value of field, most frequent first.
// Equal counts keep first-seen order.
func Breakdown(reports []storage.FieldReport, field Field) []Bucket {
	index := make(map[string]int)
	buckets := make([]Bucket, 0)
	for i := range reports {
		v := field.value(&reports[i])
		if pos, ok := index[v]; ok {
			buckets[pos].Count++
			continue
		}
		index[v] = len(buckets)
		buckets = append(buckets, Bucket{Value: v, Count: 1})
	}
	sort.SliceStable(buckets, func(i, j int) bool {
		return buckets[i].Count > buckets[j].Count
	})
	return buckets
}

package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Somchit-cmd/adminawaylog/internal/storage"
)

func TestListFieldReportsOmitsInlinePayload(t *testing.T) {
	ctx := context.Background()
	m := New()

	report := &storage.FieldReport{
		UserName: "Alice",
		Purpose:  "Meeting",
		Vehicle:  "Car",
		TimeOut:  time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		TimeIn:   time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		Photo:    storage.InlinePhoto{DataURI: "data:image/jpeg;base64,/9j/"},
	}
	if err := m.CreateFieldReport(ctx, report); err != nil {
		t.Fatalf("CreateFieldReport: %v", err)
	}

	list, err := m.ListFieldReports(ctx)
	if err != nil {
		t.Fatalf("ListFieldReports: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 report, got %d", len(list))
	}
	if p, ok := list[0].Photo.(storage.InlinePhoto); !ok || p.DataURI != "" {
		t.Errorf("expected inline placeholder in list, got %#v", list[0].Photo)
	}

	got, err := m.GetFieldReport(ctx, report.ID)
	if err != nil {
		t.Fatalf("GetFieldReport: %v", err)
	}
	if p, _ := got.Photo.(storage.InlinePhoto); p.DataURI != "data:image/jpeg;base64,/9j/" {
		t.Errorf("GetFieldReport lost the payload: %#v", got.Photo)
	}
}

func TestListFieldReportsKeepsRemotePhoto(t *testing.T) {
	ctx := context.Background()
	m := New()

	report := &storage.FieldReport{
		UserName: "Bob",
		Photo:    storage.RemotePhoto{URL: "https://cdn.example/p.jpg"},
	}
	if err := m.CreateFieldReport(ctx, report); err != nil {
		t.Fatalf("CreateFieldReport: %v", err)
	}
	list, _ := m.ListFieldReports(ctx)
	if p, ok := list[0].Photo.(storage.RemotePhoto); !ok || p.URL != "https://cdn.example/p.jpg" {
		t.Errorf("remote photo changed in list: %#v", list[0].Photo)
	}
}

func TestRecordCeiling(t *testing.T) {
	m := NewWithLimit(64)
	big := &storage.FieldReport{UserName: "Alice", Photo: storage.InlinePhoto{DataURI: string(make([]byte, 128))}}
	if err := m.CreateFieldReport(context.Background(), big); !errors.Is(err, storage.ErrRecordTooLarge) {
		t.Errorf("expected ErrRecordTooLarge, got %v", err)
	}
}

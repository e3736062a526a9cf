package fieldreports

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Somchit-cmd/adminawaylog/internal/aggregate"
	"github.com/Somchit-cmd/adminawaylog/internal/cache"
	"github.com/Somchit-cmd/adminawaylog/internal/photo"
	"github.com/Somchit-cmd/adminawaylog/internal/storage"
	"github.com/Somchit-cmd/adminawaylog/internal/storage/memory"
	"github.com/Somchit-cmd/adminawaylog/internal/throttle"
	"github.com/google/uuid"
	"github.com/twpayne/go-polyline"
)

type discardLogger struct{}

func (discardLogger) Printf(string, ...any) {}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

func pngUpload(t *testing.T) *Upload {
	data := pngBytes(t, 64, 48)
	return &Upload{Data: data, ContentType: "image/png", Filename: "photo.png", Size: int64(len(data))}
}

func floatPtr(v float64) *float64 { return &v }

func validRequest(user string) SubmitRequest {
	return SubmitRequest{
		UserName:  user,
		Purpose:   "Meeting",
		Vehicle:   "Car",
		TimeOut:   "2024-03-01T09:00:00Z",
		TimeIn:    "2024-03-01T10:30:00Z",
		Latitude:  floatPtr(17.9757),
		Longitude: floatPtr(102.6331),
		Notes:     "client visit",
	}
}

// fakeBlob — blob.Store в памяти
type fakeBlob struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
	deleted []string
}

func newFakeBlob() *fakeBlob {
	return &fakeBlob{objects: make(map[string][]byte)}
}

func (b *fakeBlob) PutObject(_ context.Context, key string, data []byte, _ string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.putErr != nil {
		return 0, b.putErr
	}
	b.objects[key] = data
	return int64(len(data)), nil
}

func (b *fakeBlob) GetObject(_ context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.objects[key], nil
}

func (b *fakeBlob) PresignGet(_ context.Context, key string, _ int) (string, error) {
	return "https://blob.test/" + key + "?sig=1", nil
}

func (b *fakeBlob) DeleteObject(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	b.deleted = append(b.deleted, key)
	return nil
}

func newTestService(store storage.FieldReportsStorage, opts Options) *Service {
	opts.Storage = store
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	opts.Logger = discardLogger{}
	if opts.Engine == nil {
		opts.Engine = aggregate.NewEngine(aggregate.Options{
			Location:      opts.Location,
			ExportLimiter: throttle.NewCooldown(time.Hour),
			Logger:        discardLogger{},
		})
	}
	return NewService(opts)
}

func TestSubmit(t *testing.T) {
	ctx := context.Background()

	t.Run("stores inline photo without blob", func(t *testing.T) {
		store := memory.New()
		svc := newTestService(store, Options{})

		report, err := svc.Submit(ctx, validRequest("Alice"), pngUpload(t))
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		inline, ok := report.Photo.(storage.InlinePhoto)
		if !ok {
			t.Fatalf("expected inline photo, got %T", report.Photo)
		}
		if !strings.HasPrefix(inline.DataURI, "data:image/jpeg;base64,") {
			t.Errorf("unexpected data URI prefix: %.40s", inline.DataURI)
		}
		if report.Location == nil || report.Location.Lat != 17.9757 {
			t.Errorf("location not stored: %+v", report.Location)
		}

		got, err := svc.Get(ctx, report.ID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.UserName != "Alice" {
			t.Errorf("expected Alice, got %s", got.UserName)
		}
	})

	t.Run("sanitizes text fields", func(t *testing.T) {
		svc := newTestService(memory.New(), Options{})
		req := validRequest(" <b>Bob</b> ")
		report, err := svc.Submit(ctx, req, pngUpload(t))
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		if report.UserName != "bBob/b" {
			t.Errorf("expected sanitized name, got %q", report.UserName)
		}
	})

	t.Run("uploads to blob store", func(t *testing.T) {
		b := newFakeBlob()
		svc := newTestService(memory.New(), Options{Blob: b})

		report, err := svc.Submit(ctx, validRequest("Alice"), pngUpload(t))
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		remote, ok := report.Photo.(storage.RemotePhoto)
		if !ok {
			t.Fatalf("expected remote photo, got %T", report.Photo)
		}
		if _, exists := b.objects[remote.ObjectKey]; !exists {
			t.Errorf("object %s not uploaded", remote.ObjectKey)
		}

		content, err := svc.PhotoContent(ctx, report.ID)
		if err != nil {
			t.Fatalf("PhotoContent: %v", err)
		}
		if !strings.HasPrefix(content.RedirectURL, "https://blob.test/photos/") {
			t.Errorf("unexpected redirect %s", content.RedirectURL)
		}
	})

	t.Run("falls back to inline when upload fails", func(t *testing.T) {
		b := newFakeBlob()
		b.putErr = errors.New("bucket offline")
		svc := newTestService(memory.New(), Options{Blob: b})

		report, err := svc.Submit(ctx, validRequest("Alice"), pngUpload(t))
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		if _, ok := report.Photo.(storage.InlinePhoto); !ok {
			t.Errorf("expected inline fallback, got %T", report.Photo)
		}
	})

	t.Run("deletes orphaned object when create fails", func(t *testing.T) {
		store := memory.New()
		store.FailWith(memory.ErrUnavailable)
		b := newFakeBlob()
		svc := newTestService(store, Options{Blob: b})

		_, err := svc.Submit(ctx, validRequest("Alice"), pngUpload(t))
		var rerr *RepositoryError
		if !errors.As(err, &rerr) {
			t.Fatalf("expected RepositoryError, got %v", err)
		}
		if len(b.deleted) != 1 {
			t.Errorf("expected orphan delete, got %v", b.deleted)
		}
	})

	t.Run("validation errors", func(t *testing.T) {
		svc := newTestService(memory.New(), Options{})
		req := validRequest("")
		req.Latitude = floatPtr(123)
		req.TimeIn = "yesterday"

		_, err := svc.Submit(ctx, req, nil)
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		for _, field := range []string{"user_name", "latitude", "time_in", "photo"} {
			if _, ok := verr.Fields[field]; !ok {
				t.Errorf("expected error for %s, got %v", field, verr.Fields)
			}
		}
	})

	t.Run("unsupported media", func(t *testing.T) {
		svc := newTestService(memory.New(), Options{})
		upload := &Upload{Data: []byte("%PDF-1.4"), ContentType: "application/pdf", Size: 8}

		_, err := svc.Submit(ctx, validRequest("Alice"), upload)
		var merr *MediaError
		if !errors.As(err, &merr) || !errors.Is(err, photo.ErrUnsupportedMime) {
			t.Fatalf("expected unsupported media error, got %v", err)
		}
	})

	t.Run("record too large", func(t *testing.T) {
		svc := newTestService(memory.NewWithLimit(256), Options{})

		_, err := svc.Submit(ctx, validRequest("Alice"), pngUpload(t))
		if !errors.Is(err, storage.ErrRecordTooLarge) {
			t.Fatalf("expected ErrRecordTooLarge, got %v", err)
		}
	})

	t.Run("notifies subscribers", func(t *testing.T) {
		svc := newTestService(memory.New(), Options{})
		updates, unsubscribe := svc.Subscribe()
		defer unsubscribe()

		if _, err := svc.Submit(ctx, validRequest("Alice"), pngUpload(t)); err != nil {
			t.Fatalf("Submit: %v", err)
		}
		select {
		case <-updates:
		default:
			t.Error("expected a notification")
		}
	})
}

func TestListServesCacheWhenRepositoryFails(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := newTestService(store, Options{})

	if _, err := svc.Submit(ctx, validRequest("Alice"), pngUpload(t)); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	reports, stale, err := svc.List(ctx)
	if err != nil || stale || len(reports) != 1 {
		t.Fatalf("List: %d reports stale=%v err=%v", len(reports), stale, err)
	}

	store.FailWith(memory.ErrUnavailable)
	reports, stale, err = svc.List(ctx)
	if err != nil {
		t.Fatalf("expected cached list, got %v", err)
	}
	if !stale || len(reports) != 1 {
		t.Errorf("expected 1 stale report, got %d stale=%v", len(reports), stale)
	}

	fresh := newTestService(store, Options{})
	if _, _, err := fresh.List(ctx); !errors.As(err, new(*RepositoryError)) {
		t.Errorf("expected RepositoryError without cache, got %v", err)
	}
}

func TestGetNotFound(t *testing.T) {
	svc := newTestService(memory.New(), Options{})
	_, err := svc.Get(context.Background(), uuid.New())
	if !errors.Is(err, ErrReportNotFound) {
		t.Errorf("expected ErrReportNotFound, got %v", err)
	}
}

func TestDashboardAndExport(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(memory.New(), Options{})

	reqs := []SubmitRequest{validRequest("A"), validRequest("B"), validRequest("A")}
	reqs[1].TimeOut = "2024-03-02T09:00:00Z"
	reqs[1].TimeIn = "2024-03-02T10:00:00Z"
	for _, req := range reqs {
		if _, err := svc.Submit(ctx, req, pngUpload(t)); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}

	view, stale, err := svc.Dashboard(ctx, aggregate.Criteria{}, "")
	if err != nil || stale {
		t.Fatalf("Dashboard: stale=%v err=%v", stale, err)
	}
	if view.Summary.TotalCount != 3 || view.Summary.MostActiveUser != "A" {
		t.Errorf("unexpected summary %+v", view.Summary)
	}

	day := aggregate.Day{Year: 2024, Month: 3, Day: 2}
	view, _, _ = svc.Dashboard(ctx, aggregate.Criteria{Date: &day}, "")
	if view.Summary.TotalCount != 1 {
		t.Errorf("expected 1 report on 2024-03-02, got %d", view.Summary.TotalCount)
	}

	var buf bytes.Buffer
	if _, err := svc.Export(ctx, "sub:admin", aggregate.Criteria{}, aggregate.FormatCSV, &buf); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if lines := strings.Count(buf.String(), "\n"); lines != 4 {
		t.Errorf("expected header + 3 rows, got %d lines", lines)
	}

	_, err = svc.Export(ctx, "sub:admin", aggregate.Criteria{}, aggregate.FormatCSV, &buf)
	var experr *ExportError
	if !errors.As(err, &experr) || !errors.Is(err, aggregate.ErrExportCooldown) {
		t.Errorf("expected cooldown, got %v", err)
	}

	_, err = svc.Export(ctx, "sub:other", aggregate.Criteria{Query: "nobody"}, aggregate.FormatCSV, &buf)
	if !errors.Is(err, aggregate.ErrNothingToExport) {
		t.Errorf("expected nothing to export, got %v", err)
	}

	// пустой экспорт не занимает cooldown
	buf.Reset()
	if _, err := svc.Export(ctx, "sub:other", aggregate.Criteria{}, aggregate.FormatCSV, &buf); err != nil {
		t.Errorf("export after an empty one: %v", err)
	}
}

func TestPhotoContentInline(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(memory.New(), Options{})

	report, err := svc.Submit(ctx, validRequest("Alice"), pngUpload(t))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	content, err := svc.PhotoContent(ctx, report.ID)
	if err != nil {
		t.Fatalf("PhotoContent: %v", err)
	}
	if content.ContentType != "image/jpeg" || len(content.Data) == 0 {
		t.Errorf("unexpected content %s (%d bytes)", content.ContentType, len(content.Data))
	}
}

func TestListOmitsInlinePayload(t *testing.T) {
	ctx := context.Background()
	last := cache.NewMemory(time.Hour)
	svc := newTestService(memory.New(), Options{Cache: last})

	report, err := svc.Submit(ctx, validRequest("Alice"), pngUpload(t))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	reports, _, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	inline, ok := reports[0].Photo.(storage.InlinePhoto)
	if !ok || inline.DataURI != "" {
		t.Fatalf("list must carry the inline kind without payload, got %T %.20q", reports[0].Photo, inline.DataURI)
	}

	cached, ok, _ := last.Load(ctx)
	if !ok {
		t.Fatal("list was not cached")
	}
	if p, _ := cached[0].Photo.(storage.InlinePhoto); p.DataURI != "" {
		t.Error("cached list must not carry photo bytes")
	}

	// сам снимок по-прежнему отдаётся точечным чтением
	content, err := svc.PhotoContent(ctx, report.ID)
	if err != nil || len(content.Data) == 0 {
		t.Fatalf("PhotoContent after list: %v", err)
	}
}

func TestPreview(t *testing.T) {
	svc := newTestService(memory.New(), Options{})
	res, err := svc.Preview(context.Background(), "session-1", *pngUpload(t))
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if res.Width != 64 || res.Height != 48 {
		t.Errorf("expected 64x48, got %dx%d", res.Width, res.Height)
	}

	_, err = svc.Preview(context.Background(), "session-1", Upload{Data: []byte("text"), ContentType: "text/plain", Size: 4})
	if !errors.As(err, new(*MediaError)) {
		t.Errorf("expected MediaError, got %v", err)
	}
}

func TestBuildTrail(t *testing.T) {
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	reports := []storage.FieldReport{
		{UserName: "late", TimeOut: base.Add(2 * time.Hour), Location: &storage.Location{Lat: 38.5, Lng: -120.2}},
		{UserName: "nowhere", TimeOut: base},
		{UserName: "early", TimeOut: base, Location: &storage.Location{Lat: 40.7, Lng: -120.95}},
	}

	trail := buildTrail(reports, false)
	if trail.Count != 2 {
		t.Fatalf("expected 2 points, got %d", trail.Count)
	}
	if trail.Points[0].UserName != "early" || trail.Points[1].UserName != "late" {
		t.Errorf("unexpected order: %s, %s", trail.Points[0].UserName, trail.Points[1].UserName)
	}

	coords, _, err := polyline.DecodeCoords([]byte(trail.Polyline))
	if err != nil {
		t.Fatalf("DecodeCoords: %v", err)
	}
	if len(coords) != 2 || math.Abs(coords[0][0]-40.7) > 1e-9 || math.Abs(coords[1][1]+120.2) > 1e-9 {
		t.Errorf("unexpected coords %v", coords)
	}
	if trail.Points[0].MapsURL != "https://www.google.com/maps?q=40.7,-120.95" {
		t.Errorf("unexpected maps url %s", trail.Points[0].MapsURL)
	}
}

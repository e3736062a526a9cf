package fieldreports

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/Somchit-cmd/adminawaylog/internal/aggregate"
	"github.com/Somchit-cmd/adminawaylog/internal/blob"
	"github.com/Somchit-cmd/adminawaylog/internal/cache"
	"github.com/Somchit-cmd/adminawaylog/internal/photo"
	"github.com/Somchit-cmd/adminawaylog/internal/storage"
	"github.com/google/uuid"
	"github.com/twpayne/go-polyline"
)

type Logger interface {
	Printf(format string, v ...any)
}

type Options struct {
	Storage           storage.FieldReportsStorage
	Cache             cache.ReportCache
	Blob              blob.Store // nil = photos stored inline
	PresignTTLSeconds int
	Pipeline          *photo.Pipeline
	Slots             *photo.SlotRegistry
	Engine            *aggregate.Engine
	Location          *time.Location
	Logger            Logger
	Now               func() time.Time
}

// Service — отчёты о выездах: приём, чтение, аналитика, экспорт
type Service struct {
	storage    storage.FieldReportsStorage
	cache      cache.ReportCache
	blob       blob.Store
	presignTTL int
	pipeline   *photo.Pipeline
	slots      *photo.SlotRegistry
	engine     *aggregate.Engine
	loc        *time.Location
	logger     Logger
	now        func() time.Time

	mu          sync.Mutex
	subscribers map[chan struct{}]struct{}
}

func NewService(opts Options) *Service {
	s := &Service{
		storage:     opts.Storage,
		cache:       opts.Cache,
		blob:        opts.Blob,
		presignTTL:  opts.PresignTTLSeconds,
		pipeline:    opts.Pipeline,
		slots:       opts.Slots,
		engine:      opts.Engine,
		loc:         opts.Location,
		logger:      opts.Logger,
		now:         opts.Now,
		subscribers: make(map[chan struct{}]struct{}),
	}
	if s.cache == nil {
		s.cache = cache.NewMemory(cache.DefaultTTL)
	}
	if s.presignTTL <= 0 {
		s.presignTTL = 900
	}
	if s.pipeline == nil {
		s.pipeline = photo.NewPipeline(photo.Options{})
	}
	if s.slots == nil {
		s.slots = photo.NewSlotRegistry(0)
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	if s.engine == nil {
		s.engine = aggregate.NewEngine(aggregate.Options{Location: s.loc, Logger: s.logger})
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *Service) Engine() *aggregate.Engine {
	return s.engine
}

// Submit validates, compresses and stores one report.
func (s *Service) Submit(ctx context.Context, req SubmitRequest, upload *Upload) (*storage.FieldReport, error) {
	req.sanitize()
	timeOut, timeIn, err := validateSubmit(&req, upload, s.loc)
	if err != nil {
		return nil, err
	}

	compressed, err := s.pipeline.Process(ctx, photo.Source{
		Data:        upload.Data,
		ContentType: upload.ContentType,
		Size:        upload.Size,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, &MediaError{Err: err}
	}

	report := &storage.FieldReport{
		UserName: req.UserName,
		Purpose:  req.Purpose,
		Vehicle:  req.Vehicle,
		TimeOut:  timeOut,
		TimeIn:   timeIn,
		Location: &storage.Location{Lat: *req.Latitude, Lng: *req.Longitude},
		Notes:    req.Notes,
	}
	if timeIn.Before(timeOut) {
		s.logger.Printf("WARN fieldreports: time_in precedes time_out user=%q out=%s in=%s", report.UserName, timeOut.Format(time.RFC3339), timeIn.Format(time.RFC3339))
	}

	objectKey := ""
	report.Photo, objectKey = s.storePhoto(ctx, compressed)

	if err := s.storage.CreateFieldReport(ctx, report); err != nil {
		if objectKey != "" {
			if derr := s.blob.DeleteObject(ctx, objectKey); derr != nil {
				s.logger.Printf("WARN fieldreports: orphaned photo key=%s err=%v", objectKey, derr)
			}
		}
		return nil, &RepositoryError{Op: "create", Err: err}
	}

	s.logger.Printf("INFO fieldreports: created id=%s user=%q photo=%s size=%d", report.ID, report.UserName, storage.EncodePhoto(report.Photo).Kind, len(compressed.Data))
	s.notify()
	return report, nil
}

// storePhoto uploads to blob storage when configured and falls back to inline.
func (s *Service) storePhoto(ctx context.Context, res *photo.Result) (storage.Photo, string) {
	if s.blob == nil {
		return storage.InlinePhoto{DataURI: res.PreviewDataURI}, ""
	}

	key := blob.PhotoKey(s.now(), uuid.New())
	if _, err := s.blob.PutObject(ctx, key, res.Data, res.ContentType); err != nil {
		s.logger.Printf("WARN fieldreports: photo upload failed key=%s err=%v, storing inline", key, err)
		return storage.InlinePhoto{DataURI: res.PreviewDataURI}, ""
	}

	remote := storage.RemotePhoto{ObjectKey: key}
	if pub, ok := s.blob.(blob.PublicURLer); ok {
		if url, ok := pub.PublicURL(key); ok {
			remote.URL = url
		}
	}
	return remote, key
}

// List returns all reports, newest first. When the repository fails the last
// known list is served with stale=true.
func (s *Service) List(ctx context.Context) ([]storage.FieldReport, bool, error) {
	reports, err := s.storage.ListFieldReports(ctx)
	if err == nil {
		if cerr := s.cache.Save(ctx, reports); cerr != nil {
			s.logger.Printf("WARN fieldreports: cache save failed: %v", cerr)
		}
		return reports, false, nil
	}

	cached, ok, cerr := s.cache.Load(ctx)
	if cerr != nil {
		s.logger.Printf("WARN fieldreports: cache load failed: %v", cerr)
	}
	if ok {
		s.logger.Printf("WARN fieldreports: repository unavailable, serving %d cached reports: %v", len(cached), err)
		return cached, true, nil
	}
	return nil, false, &RepositoryError{Op: "list", Err: err}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*storage.FieldReport, error) {
	report, err := s.storage.GetFieldReport(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrReportNotFound
		}
		return nil, &RepositoryError{Op: "get", Err: err}
	}
	return report, nil
}

// Dashboard returns the filtered reports and their analytics.
func (s *Service) Dashboard(ctx context.Context, criteria aggregate.Criteria, field aggregate.Field) (aggregate.View, bool, error) {
	reports, stale, err := s.List(ctx)
	if err != nil {
		return aggregate.View{}, false, err
	}
	return s.engine.View(reports, criteria, field), stale, nil
}

// Export writes the filtered reports in format to w. actor keys the cooldown.
// The returned filename carries the same date the document was stamped with.
func (s *Service) Export(ctx context.Context, actor string, criteria aggregate.Criteria, format aggregate.Format, w io.Writer) (string, error) {
	reports, _, err := s.List(ctx)
	if err != nil {
		return "", err
	}
	now := s.now()
	if err := s.engine.Export(now, actor, reports, criteria, format, w); err != nil {
		if errors.Is(err, aggregate.ErrNothingToExport) || errors.Is(err, aggregate.ErrExportCooldown) {
			return "", &ExportError{Err: err}
		}
		return "", err
	}
	s.logger.Printf("INFO fieldreports: export format=%s actor=%s", format, actor)
	return aggregate.ExportFilename(now, format), nil
}

func (s *Service) PhotoContent(ctx context.Context, id uuid.UUID) (*PhotoContent, error) {
	report, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	switch p := report.Photo.(type) {
	case storage.InlinePhoto:
		contentType, data, err := photo.ParseDataURI(p.DataURI)
		if err != nil {
			return nil, fmt.Errorf("stored photo for %s: %w", id, err)
		}
		return &PhotoContent{Data: data, ContentType: contentType}, nil
	case storage.RemotePhoto:
		if p.URL != "" {
			return &PhotoContent{RedirectURL: p.URL}, nil
		}
		if s.blob == nil {
			return nil, ErrPhotoUnavailable
		}
		url, err := s.blob.PresignGet(ctx, p.ObjectKey, s.presignTTL)
		if err != nil {
			return nil, err
		}
		return &PhotoContent{RedirectURL: url}, nil
	default:
		return nil, ErrNoPhoto
	}
}

// Preview compresses upload within the caller's upload session. Only the most
// recent preview of a session is kept.
func (s *Service) Preview(ctx context.Context, session string, upload Upload) (*photo.Result, error) {
	slot := s.slots.Get(session)
	res, err := slot.Run(ctx, s.pipeline, photo.Source{
		Data:        upload.Data,
		ContentType: upload.ContentType,
		Size:        upload.Size,
	})
	if err != nil {
		if errors.Is(err, photo.ErrSuperseded) || ctx.Err() != nil {
			return nil, err
		}
		return nil, &MediaError{Err: err}
	}
	return res, nil
}

// MapTrail returns located reports in departure order with an encoded polyline.
func (s *Service) MapTrail(ctx context.Context, criteria aggregate.Criteria) (*MapTrail, error) {
	view, stale, err := s.Dashboard(ctx, criteria, "")
	if err != nil {
		return nil, err
	}
	return buildTrail(view.Reports, stale), nil
}

func buildTrail(reports []storage.FieldReport, stale bool) *MapTrail {
	points := make([]MapPoint, 0, len(reports))
	for i := range reports {
		r := &reports[i]
		if r.Location == nil {
			continue
		}
		points = append(points, MapPoint{
			ID:       r.ID,
			UserName: r.UserName,
			Purpose:  r.Purpose,
			Vehicle:  r.Vehicle,
			TimeOut:  r.TimeOut,
			Lat:      r.Location.Lat,
			Lng:      r.Location.Lng,
			MapsURL:  MapsURL(*r.Location),
		})
	}
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].TimeOut.Before(points[j].TimeOut)
	})

	coords := make([][]float64, len(points))
	for i, p := range points {
		coords[i] = []float64{p.Lat, p.Lng}
	}
	return &MapTrail{
		Points:   points,
		Polyline: string(polyline.EncodeCoords(coords)),
		Count:    len(points),
		Stale:    stale,
	}
}

// MapsURL links a location to Google Maps.
func MapsURL(l storage.Location) string {
	return "https://www.google.com/maps?q=" + l.String()
}

// Subscribe returns a channel signalled after each new report.
func (s *Service) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()
	return ch, func() {
		s.mu.Lock()
		delete(s.subscribers, ch)
		s.mu.Unlock()
	}
}

func (s *Service) notify() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

package fieldreports

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Somchit-cmd/adminawaylog/internal/aggregate"
	"github.com/Somchit-cmd/adminawaylog/internal/photo"
	"github.com/Somchit-cmd/adminawaylog/internal/storage"
	"github.com/Somchit-cmd/adminawaylog/internal/userctx"
	"github.com/google/uuid"
)

const (
	UploadSessionHeader = "X-Upload-Session"
	formOverheadBytes   = 1 << 20
)

type HandlerOptions struct {
	MaxUploadBytes int64
	GenericErrors  bool // production: hide internal error text
	SearchDebounce time.Duration
	LiveDeadline   time.Duration
	ExportCooldown time.Duration
	AllowedOrigins []string // websocket origins; empty allows any
	Logger         Logger
}

// Handlers handles HTTP requests for field reports
type Handlers struct {
	service        *Service
	maxUploadBytes int64
	genericErrors  bool
	debounce       time.Duration
	liveDeadline   time.Duration
	retryAfter     string
	allowedOrigins []string
	logger         Logger
}

func NewHandlers(service *Service, opts HandlerOptions) *Handlers {
	h := &Handlers{
		service:        service,
		maxUploadBytes: opts.MaxUploadBytes,
		genericErrors:  opts.GenericErrors,
		debounce:       opts.SearchDebounce,
		liveDeadline:   opts.LiveDeadline,
		allowedOrigins: opts.AllowedOrigins,
		logger:         opts.Logger,
	}
	h.retryAfter = strconv.Itoa(int(math.Ceil(opts.ExportCooldown.Seconds())))
	if opts.ExportCooldown <= 0 {
		h.retryAfter = "5"
	}
	if h.liveDeadline <= 0 {
		h.liveDeadline = DefaultLiveReadDeadline
	}
	if h.maxUploadBytes <= 0 {
		h.maxUploadBytes = photo.DefaultMaxInputBytes
	}
	if h.logger == nil {
		h.logger = log.Default()
	}
	return h
}

// HandleSubmit handles POST /v1/reports (multipart form with a "photo" file)
func (h *Handlers) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	if !h.parseMultipart(w, r) {
		return
	}

	verr := &ValidationError{}
	req := SubmitRequest{
		UserName:  r.FormValue("user_name"),
		Purpose:   r.FormValue("purpose"),
		Vehicle:   r.FormValue("vehicle"),
		TimeOut:   r.FormValue("time_out"),
		TimeIn:    r.FormValue("time_in"),
		Latitude:  parseFloatField(r, "latitude", verr),
		Longitude: parseFloatField(r, "longitude", verr),
		Notes:     r.FormValue("notes"),
	}
	if len(verr.Fields) > 0 {
		h.writeServiceError(w, r, verr)
		return
	}

	upload, err := readUpload(r, "photo")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Could not read photo")
		return
	}

	report, err := h.service.Submit(r.Context(), req, upload)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toDTO(report))
}

// HandlePreview handles POST /v1/photos/preview
func (h *Handlers) HandlePreview(w http.ResponseWriter, r *http.Request) {
	if !h.parseMultipart(w, r) {
		return
	}

	upload, err := readUpload(r, "photo")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Could not read photo")
		return
	}
	if upload == nil {
		h.writeServiceError(w, r, &ValidationError{Fields: map[string]string{"photo": ErrPhotoRequired.Error()}})
		return
	}

	session := strings.TrimSpace(r.Header.Get(UploadSessionHeader))
	if session == "" {
		session = userctx.ActorKey(r.Context())
	}

	res, err := h.service.Preview(r.Context(), session, *upload)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, PreviewResponse{
		Width:          res.Width,
		Height:         res.Height,
		Quality:        res.Quality,
		SizeBytes:      len(res.Data),
		OriginalSize:   res.OriginalSize,
		PreviewDataURI: res.PreviewDataURI,
	})
}

// HandleList handles GET /v1/reports?q=&date=
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	criteria, ok := parseCriteria(w, r)
	if !ok {
		return
	}

	view, stale, err := h.service.Dashboard(r.Context(), criteria, "")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ReportsResponse{
		Reports: toDTOs(view.Reports),
		Count:   len(view.Reports),
		Stale:   stale,
	})
}

// HandleGet handles GET /v1/reports/{id}
func (h *Handlers) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	report, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toDTO(report))
}

// HandlePhoto handles GET /v1/reports/{id}/photo
func (h *Handlers) HandlePhoto(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	content, err := h.service.PhotoContent(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	if content.RedirectURL != "" {
		http.Redirect(w, r, content.RedirectURL, http.StatusFound)
		return
	}

	w.Header().Set("Content-Type", content.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(content.Data)))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	w.Write(content.Data)
}

// HandleAnalytics handles GET /v1/reports/analytics?q=&date=&breakdown=
func (h *Handlers) HandleAnalytics(w http.ResponseWriter, r *http.Request) {
	criteria, ok := parseCriteria(w, r)
	if !ok {
		return
	}

	var field aggregate.Field
	if raw := r.URL.Query().Get("breakdown"); raw != "" {
		f, err := aggregate.ParseField(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_breakdown", err.Error())
			return
		}
		field = f
	}

	view, stale, err := h.service.Dashboard(r.Context(), criteria, field)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, AnalyticsResponse{Summary: view.Summary, Skipped: view.Skipped, Stale: stale})
}

// HandleExport handles GET /v1/reports/export?format=csv|pdf&q=&date=
func (h *Handlers) HandleExport(w http.ResponseWriter, r *http.Request) {
	criteria, ok := parseCriteria(w, r)
	if !ok {
		return
	}

	format, err := aggregate.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_format", "Format must be 'csv' or 'pdf'")
		return
	}

	var buf bytes.Buffer
	filename, err := h.service.Export(r.Context(), userctx.ActorKey(r.Context()), criteria, format, &buf)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// HandleMap handles GET /v1/reports/map?q=&date=
func (h *Handlers) HandleMap(w http.ResponseWriter, r *http.Request) {
	criteria, ok := parseCriteria(w, r)
	if !ok {
		return
	}

	trail, err := h.service.MapTrail(r.Context(), criteria)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, trail)
}

func (h *Handlers) parseMultipart(w http.ResponseWriter, r *http.Request) bool {
	limit := h.maxUploadBytes + formOverheadBytes
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "input_too_large", photo.ErrInputTooLarge.Error())
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid_request", "Expected multipart/form-data")
		return false
	}
	return true
}

// readUpload returns nil when the field is absent.
func readUpload(r *http.Request, field string) (*Upload, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return &Upload{Data: data, ContentType: contentType, Filename: header.Filename, Size: header.Size}, nil
}

func parseFloatField(r *http.Request, name string, verr *ValidationError) *float64 {
	raw := strings.TrimSpace(r.FormValue(name))
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		verr.add(name, "must be a number")
		return nil
	}
	return &v
}

func parseCriteria(w http.ResponseWriter, r *http.Request) (aggregate.Criteria, bool) {
	q := r.URL.Query()
	criteria := aggregate.Criteria{Query: StripMarkup(q.Get("q"))}
	if raw := q.Get("date"); raw != "" {
		day, err := aggregate.ParseDay(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "Invalid date format, use YYYY-MM-DD")
			return criteria, false
		}
		criteria.Date = &day
	}
	return criteria, true
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "Invalid report ID")
		return uuid.Nil, false
	}
	return id, true
}

// writeServiceError maps the error taxonomy onto HTTP responses.
func (h *Handlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr   *ValidationError
		merr   *MediaError
		rerr   *RepositoryError
		experr *ExportError
	)

	switch {
	case errors.As(err, &verr):
		writeErrorBody(w, http.StatusBadRequest, errorDetail{Code: "validation_failed", Message: "Some fields are invalid", Fields: verr.Fields})
	case errors.Is(err, photo.ErrSuperseded):
		writeError(w, http.StatusConflict, "superseded", err.Error())
	case errors.As(err, &merr):
		status, code := mediaStatus(merr.Err)
		h.writeMaybeGeneric(w, r, status, code, merr.Error(), err)
	case errors.As(err, &rerr):
		if errors.Is(rerr.Err, storage.ErrRecordTooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "record_too_large", storage.ErrRecordTooLarge.Error())
			return
		}
		h.writeMaybeGeneric(w, r, http.StatusBadGateway, "repository_error", "Report storage is unavailable", err)
	case errors.As(err, &experr):
		if errors.Is(experr.Err, aggregate.ErrExportCooldown) {
			w.Header().Set("Retry-After", h.retryAfter)
			writeError(w, http.StatusTooManyRequests, "export_cooldown", experr.Err.Error())
			return
		}
		writeError(w, http.StatusUnprocessableEntity, "nothing_to_export", experr.Err.Error())
	case errors.Is(err, ErrReportNotFound):
		writeError(w, http.StatusNotFound, "report_not_found", "Report not found")
	case errors.Is(err, ErrNoPhoto):
		writeError(w, http.StatusNotFound, "photo_not_found", "Report has no photo")
	case errors.Is(err, ErrPhotoUnavailable):
		h.writeMaybeGeneric(w, r, http.StatusServiceUnavailable, "photo_unavailable", err.Error(), err)
	case errors.Is(err, aggregate.ErrUnsupportedFormat):
		writeError(w, http.StatusBadRequest, "invalid_format", err.Error())
	default:
		h.writeMaybeGeneric(w, r, http.StatusInternalServerError, "internal_error", err.Error(), err)
	}
}

func mediaStatus(err error) (int, string) {
	switch {
	case errors.Is(err, photo.ErrUnsupportedMime):
		return http.StatusUnsupportedMediaType, "unsupported_media"
	case errors.Is(err, photo.ErrInputTooLarge):
		return http.StatusRequestEntityTooLarge, "input_too_large"
	case errors.Is(err, photo.ErrDecode):
		return http.StatusUnprocessableEntity, "decode_failed"
	case errors.Is(err, photo.ErrSizeLimitExceeded):
		return http.StatusRequestEntityTooLarge, "size_limit_exceeded"
	default:
		return http.StatusInternalServerError, "encode_failed"
	}
}

// writeMaybeGeneric logs server-side failures and hides their text in production.
func (h *Handlers) writeMaybeGeneric(w http.ResponseWriter, r *http.Request, status int, code, message string, cause error) {
	if status >= http.StatusInternalServerError {
		h.logger.Printf("ERROR fieldreports: %s %s request_id=%s code=%s err=%v", r.Method, r.URL.Path, userctx.GetRequestID(r.Context()), code, cause)
		if h.genericErrors {
			message = http.StatusText(status)
		}
	}
	writeError(w, status, code, message)
}

type errorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeErrorBody(w, status, errorDetail{Code: code, Message: message})
}

func writeErrorBody(w http.ResponseWriter, status int, detail errorDetail) {
	writeJSON(w, status, map[string]errorDetail{"error": detail})
}

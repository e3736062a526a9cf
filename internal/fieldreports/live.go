package fieldreports

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/Somchit-cmd/adminawaylog/internal/aggregate"
	"github.com/Somchit-cmd/adminawaylog/internal/throttle"
	"github.com/gorilla/websocket"
)

const DefaultLiveReadDeadline = 2 * time.Minute

// liveQuery — сообщение клиента: новый фильтр или принудительное обновление
type liveQuery struct {
	Query   string `json:"query"`
	Date    string `json:"date"`
	Refresh bool   `json:"refresh"`
}

func (q liveQuery) criteria() (aggregate.Criteria, error) {
	criteria := aggregate.Criteria{Query: StripMarkup(q.Query)}
	if q.Date != "" {
		day, err := aggregate.ParseDay(q.Date)
		if err != nil {
			return criteria, err
		}
		criteria.Date = &day
	}
	return criteria, nil
}

type liveFrame struct {
	Type    string             `json:"type"`
	Reports []ReportDTO        `json:"reports,omitempty"`
	Count   int                `json:"count"`
	Summary *aggregate.Summary `json:"summary,omitempty"`
	Skipped int                `json:"skipped"`
	Stale   bool               `json:"stale"`
	Error   *errorDetail       `json:"error,omitempty"`
}

// liveConn serializes writes; gorilla connections allow one concurrent writer.
type liveConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *liveConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteJSON(v)
}

func (c *liveConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second))
}

func (h *Handlers) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(h.allowedOrigins) == 0 {
				return true
			}
			return slices.Contains(h.allowedOrigins, "*") || slices.Contains(h.allowedOrigins, origin)
		},
	}
}

// HandleLive handles GET /v1/reports/live (websocket).
// Clients send {"query","date","refresh"}; the server answers with the filtered
// view after the search debounce and again whenever a new report arrives.
func (h *Handlers) HandleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader().Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("WARN fieldreports: live upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	lc := &liveConn{conn: conn}

	var (
		stateMu sync.Mutex
		current aggregate.Criteria
	)
	snapshot := func() aggregate.Criteria {
		stateMu.Lock()
		defer stateMu.Unlock()
		return current
	}

	send := func(c aggregate.Criteria) {
		if ctx.Err() != nil {
			return
		}
		if err := lc.writeJSON(h.liveView(ctx, c)); err != nil {
			cancel()
		}
	}

	debouncer := throttle.NewDebouncer(h.debounce, send)
	defer debouncer.Stop()

	updates, unsubscribe := h.service.Subscribe()
	defer unsubscribe()

	go func() {
		ticker := time.NewTicker(h.liveDeadline / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-updates:
				send(snapshot())
			case <-ticker.C:
				if err := lc.ping(); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	send(snapshot())

	conn.SetReadDeadline(time.Now().Add(h.liveDeadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.liveDeadline))
	})

	for ctx.Err() == nil {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Printf("WARN fieldreports: live connection closed: %v", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(h.liveDeadline))

		var msg liveQuery
		if err := json.Unmarshal(data, &msg); err != nil {
			lc.writeJSON(liveFrame{Type: "error", Error: &errorDetail{Code: "invalid_request", Message: "Invalid JSON"}})
			continue
		}

		criteria, err := msg.criteria()
		if err != nil {
			lc.writeJSON(liveFrame{Type: "error", Error: &errorDetail{Code: "invalid_date", Message: "Invalid date format, use YYYY-MM-DD"}})
			continue
		}

		stateMu.Lock()
		changed := !sameCriteria(current, criteria)
		current = criteria
		stateMu.Unlock()

		if changed || msg.Refresh {
			debouncer.Push(criteria)
		}
	}
}

func (h *Handlers) liveView(ctx context.Context, c aggregate.Criteria) liveFrame {
	view, stale, err := h.service.Dashboard(ctx, c, "")
	if err != nil {
		h.logger.Printf("WARN fieldreports: live view failed: %v", err)
		return liveFrame{Type: "error", Error: &errorDetail{Code: "repository_error", Message: "Report storage is unavailable"}}
	}
	return liveFrame{
		Type:    "view",
		Reports: toDTOs(view.Reports),
		Count:   len(view.Reports),
		Summary: &view.Summary,
		Skipped: view.Skipped,
		Stale:   stale,
	}
}

func sameCriteria(a, b aggregate.Criteria) bool {
	if a.Query != b.Query {
		return false
	}
	if a.Date == nil || b.Date == nil {
		return a.Date == nil && b.Date == nil
	}
	return *a.Date == *b.Date
}

package booking

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// newBookingEngine 挂预约路由；鉴权链在 server 包单测，这里只验 handler 行为。
func newBookingEngine(t *testing.T) (*gin.Engine, *Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc := newTestService()
	h := NewHTTPServer(svc, nil)

	e := gin.New()
	api := e.Group("/api")
	h.RegisterRoutes(api, api)
	return e, svc
}

func postJSON(e *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)
	return w
}

func TestSubmitEndpoint(t *testing.T) {
	e, svc := newBookingEngine(t)

	if w := postJSON(e, "/api/bookings", "{"); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid json, got %d", w.Code)
	}

	// 缺字段：400 且逐个点名
	w := postJSON(e, "/api/bookings", `{"name":"Alex","city":"Springfield"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for incomplete submission, got %d", w.Code)
	}
	var errResp struct {
		Error         string   `json:"error"`
		MissingFields []string `json:"missing_fields"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("unmarshal error response: %v", err)
	}
	if errResp.Error != "incomplete submission" {
		t.Fatalf("unexpected error message %q", errResp.Error)
	}
	if len(errResp.MissingFields) != 9 || errResp.MissingFields[0] != "address" {
		t.Fatalf("unexpected missing fields %v", errResp.MissingFields)
	}

	in := validFields()
	payload, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	w = postJSON(e, "/api/bookings", string(payload))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", w.Code, w.Body.String())
	}
	var okResp struct {
		Booking Booking `json:"booking"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &okResp); err != nil {
		t.Fatalf("unmarshal booking response: %v", err)
	}
	if okResp.Booking.ID == "" || okResp.Booking.Name != in.Name || okResp.Booking.VINNumber != in.VINNumber {
		t.Fatalf("booking did not round-trip: %+v", okResp.Booking)
	}

	snap, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(snap) != 1 {
		t.Fatalf("expected 1 stored booking, got %d", len(snap))
	}
}

func TestListEndpoint(t *testing.T) {
	e, svc := newBookingEngine(t)

	for i := 0; i < 2; i++ {
		if _, err := svc.Submit(context.Background(), validFields()); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/bookings", nil)
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		Bookings []Booking `json:"bookings"`
		Total    int       `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal list response: %v", err)
	}
	if resp.Total != 2 || len(resp.Bookings) != 2 {
		t.Fatalf("expected 2 bookings, got total=%d len=%d", resp.Total, len(resp.Bookings))
	}
}

func TestWatchEndpointStreamsSnapshots(t *testing.T) {
	e, svc := newBookingEngine(t)

	srv := httptest.NewServer(e)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/bookings/watch"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial watch endpoint: %v", err)
	}
	defer conn.Close()

	type event struct {
		Event string `json:"event"`
		Data  struct {
			Bookings []Booking `json:"bookings"`
		} `json:"data"`
	}

	readEvent := func() event {
		t.Helper()
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var ev event
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("read snapshot event: %v", err)
		}
		return ev
	}

	// 连上先收一份当前（空）快照
	ev := readEvent()
	if ev.Event != "bookings.snapshot" {
		t.Fatalf("unexpected event %q", ev.Event)
	}
	if len(ev.Data.Bookings) != 0 {
		t.Fatalf("expected empty initial snapshot, got %d", len(ev.Data.Bookings))
	}

	in := validFields()
	b, err := svc.Submit(context.Background(), in)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	ev = readEvent()
	if ev.Event != "bookings.snapshot" {
		t.Fatalf("unexpected event %q", ev.Event)
	}
	if len(ev.Data.Bookings) != 1 {
		t.Fatalf("expected snapshot with 1 booking, got %d", len(ev.Data.Bookings))
	}
	if got := ev.Data.Bookings[0]; got.ID != b.ID || got.Name != in.Name || got.Complaint != in.Complaint {
		t.Fatalf("snapshot booking mismatch: %+v", got)
	}
}

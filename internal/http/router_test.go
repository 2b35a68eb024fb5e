package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	httpH "github.com/yungbote/contentagent/internal/http/handlers"
	httpMW "github.com/yungbote/contentagent/internal/http/middleware"
)

type recordedRequest struct {
	method, route string
	status        int
}

type fakeHTTPMetrics struct{ got []recordedRequest }

func (f *fakeHTTPMetrics) ObserveHTTP(method, route string, status int, _ time.Duration) {
	f.got = append(f.got, recordedRequest{method, route, status})
}

func TestRouterServiceEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := &fakeHTTPMetrics{}
	r := NewRouter(RouterConfig{
		HTTPMetrics:    m,
		HealthHandler:  httpH.NewHealthHandler(),
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("# metrics")) }),
	})

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	rec := get("/health")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "healthy") {
		t.Fatalf("/health = %d %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get(httpMW.HeaderRequestID) == "" || rec.Header().Get(httpMW.HeaderTraceID) == "" {
		t.Fatalf("trace headers missing: %v", rec.Header())
	}

	rec = get("/availability")
	var avail map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &avail); err != nil {
		t.Fatalf("decode availability: %v", err)
	}
	if avail["status"] != "available" {
		t.Fatalf("availability = %v", avail)
	}

	rec = get("/input_schema")
	var schema struct {
		InputData []struct {
			ID string `json:"id"`
		} `json:"input_data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &schema); err != nil {
		t.Fatalf("decode schema: %v", err)
	}
	if len(schema.InputData) == 0 || schema.InputData[0].ID != "topic" {
		t.Fatalf("schema = %+v", schema)
	}

	if rec := get("/metrics"); !strings.Contains(rec.Body.String(), "# metrics") {
		t.Fatalf("/metrics = %s", rec.Body.String())
	}

	if len(m.got) != 4 || m.got[0].route != "/health" || m.got[0].status != http.StatusOK {
		t.Fatalf("observed = %+v", m.got)
	}
}

func TestRouterKeepsIncomingRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(RouterConfig{HealthHandler: httpH.NewHealthHandler()})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(httpMW.HeaderRequestID, "req-42")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if got := rec.Header().Get(httpMW.HeaderRequestID); got != "req-42" {
		t.Fatalf("request id = %q", got)
	}
}

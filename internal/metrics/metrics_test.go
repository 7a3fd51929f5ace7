package metrics

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

func TestHandlerServesMetrics(t *testing.T) {
	Books.WithLabelValues("ok").Inc()

	srv := httptest.NewServer(Handler(zerolog.Nop()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "repertoire_books_total") {
		t.Error("books counter missing from exposition")
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("no request id assigned")
	}
}

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	Handler(zerolog.Nop()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok\n" {
		t.Errorf("healthz = %d %q", rec.Code, rec.Body.String())
	}
}

func TestRequestIDKeepsValidHeader(t *testing.T) {
	const rid = "0b5c2a7e-3f4d-4c1a-9a55-0d6e8c1b2f33"
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", rid)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if seen != rid || rec.Header().Get("X-Request-ID") != rid {
		t.Errorf("request id = %q, header %q, want %q", seen, rec.Header().Get("X-Request-ID"), rid)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "bogus")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen == "bogus" || seen == "" {
		t.Errorf("invalid request id kept: %q", seen)
	}
}

func TestAccessLogRecordsStatus(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.DebugLevel)
	h := AccessLog(log, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

	out := buf.String()
	if !strings.Contains(out, `"status":418`) || !strings.Contains(out, `"path":"/x"`) {
		t.Errorf("access log = %s", out)
	}
}

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(Selections.WithLabelValues("approved"))
	Selections.WithLabelValues("approved").Inc()
	if got := testutil.ToFloat64(Selections.WithLabelValues("approved")) - before; got != 1 {
		t.Errorf("approved delta = %v, want 1", got)
	}
}

package explorer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/freeeve/repertoire/internal/board"
)

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

const sampleBody = `{
  "white": 500, "draws": 100, "black": 400,
  "moves": [
    {"uci": "e2e4", "san": "e4", "white": 300, "draws": 50, "black": 250},
    {"uci": "d2d4", "san": "d4", "white": 150, "draws": 40, "black": 110}
  ],
  "opening": null
}`

func testClient(url string, cache Cache) *Client {
	return New(Config{
		BaseURL:           url,
		Speeds:            []string{"blitz", "rapid"},
		Ratings:           []int{1800, 2000},
		Moves:             12,
		Token:             "secret",
		Backoff:           10 * time.Millisecond,
		RequestsPerSecond: 1000,
		Cache:             cache,
		Logger:            zerolog.Nop(),
	})
}

func TestFetchParsesStats(t *testing.T) {
	var gotQuery, gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(sampleBody))
	}))
	defer srv.Close()

	stats, err := testClient(srv.URL, nil).Fetch(context.Background(), startFEN)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if gotPath != "/lichess" {
		t.Errorf("path = %q, want /lichess", gotPath)
	}
	for _, want := range []string{"speeds=blitz%2Crapid", "ratings=1800%2C2000", "moves=12", "variant=standard", "recentGames=0", "topGames=0"} {
		if !strings.Contains(gotQuery, want) {
			t.Errorf("query %q missing %q", gotQuery, want)
		}
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("Authorization = %q", gotAuth)
	}

	if stats.Total != 1000 || len(stats.Moves) != 2 {
		t.Fatalf("stats = %+v", stats)
	}
	e4 := stats.Moves[0]
	if e4.SAN != "e4" || e4.UCI != "e2e4" || e4.Total != 600 {
		t.Errorf("e4 = %+v", e4)
	}
	if e4.PlayRate != 0.6 || e4.WhiteRate != 0.5 {
		t.Errorf("e4 rates = play %v white %v", e4.PlayRate, e4.WhiteRate)
	}

	rates, err := stats.Rates(board.Black, false)
	if err != nil {
		t.Fatalf("Rates: %v", err)
	}
	if rates.Win != 0.4 || rates.Opponent != 0.5 || rates.Total != 1000 {
		t.Errorf("black rates = %+v", rates)
	}
}

func TestFetchMastersQuery(t *testing.T) {
	c := New(Config{BaseURL: "https://example.org/", Source: SourceMasters, Logger: zerolog.Nop()})
	got := c.QueryURL(startFEN)
	if !strings.HasPrefix(got, "https://example.org/masters?") {
		t.Errorf("QueryURL = %q", got)
	}
	if strings.Contains(got, "speeds=") || strings.Contains(got, "variant=") {
		t.Errorf("masters query carries lichess-only params: %q", got)
	}
}

func TestFetchRetriesThrottling(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(sampleBody))
	}))
	defer srv.Close()

	stats, err := testClient(srv.URL, nil).Fetch(context.Background(), startFEN)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
	if stats.Total != 1000 {
		t.Errorf("Total = %d", stats.Total)
	}
}

func TestFetchThrottleHonoursCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := testClient(srv.URL, nil)
	c.cfg.Backoff = time.Hour
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Fetch(ctx, startFEN)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestFetchUnavailable(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, ""},
		{"bad json", http.StatusOK, "{not json"},
		{"move exceeds position", http.StatusOK, `{"white":1,"draws":0,"black":0,"moves":[{"uci":"e2e4","san":"e4","white":5,"draws":0,"black":0}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := testClient(srv.URL, nil).Fetch(context.Background(), startFEN)
			if !errors.Is(err, ErrDataUnavailable) {
				t.Errorf("err = %v, want ErrDataUnavailable", err)
			}
		})
	}
}

func TestFetchUsesCaches(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(sampleBody))
	}))
	defer srv.Close()

	disk, err := NewDiskCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskCache: %v", err)
	}
	defer disk.Close()

	ctx := context.Background()
	c := testClient(srv.URL, disk)
	for i := 0; i < 3; i++ {
		if _, err := c.Fetch(ctx, startFEN); err != nil {
			t.Fatalf("Fetch %d: %v", i, err)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}

	// A fresh client with an empty memory cache is served from disk.
	fresh := testClient(srv.URL, disk)
	stats, err := fresh.Fetch(ctx, startFEN)
	if err != nil {
		t.Fatalf("Fetch from disk: %v", err)
	}
	if calls.Load() != 1 || stats.Total != 1000 {
		t.Errorf("calls = %d total = %d, want disk hit", calls.Load(), stats.Total)
	}
	if fresh.memory.Len() != 1 {
		t.Errorf("memory cache len = %d, want 1 after disk hit", fresh.memory.Len())
	}
}

func TestDiskCacheMiss(t *testing.T) {
	disk, err := NewDiskCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskCache: %v", err)
	}
	defer disk.Close()

	ctx := context.Background()
	if _, ok, err := disk.Get(ctx, "missing"); ok || err != nil {
		t.Errorf("Get(missing) = ok %v err %v", ok, err)
	}
	if err := disk.Put(ctx, "k", []byte("payload")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	body, ok, err := disk.Get(ctx, "k")
	if err != nil || !ok || string(body) != "payload" {
		t.Errorf("Get(k) = %q %v %v", body, ok, err)
	}
}

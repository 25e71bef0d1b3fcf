package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ehr/healthdash/internal/config"
	"github.com/ehr/healthdash/internal/platform/cache"
	"github.com/ehr/healthdash/internal/platform/middleware"
	"github.com/ehr/healthdash/internal/sample"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:           "0",
		Env:            "test",
		Seed:           sample.DefaultSeed,
		Rows:           200,
		Year:           2023,
		CacheTTL:       time.Minute,
		CORSOrigins:    []string{"http://localhost:3000"},
		RateLimitRPS:   100,
		RateLimitBurst: 100,
		RequestTimeout: 10 * time.Second,
		TableCacheSize: 4,
	}
}

func TestLogOutput_FollowsConfigEnv(t *testing.T) {
	if _, ok := logOutput(&config.Config{Env: "development"}).(zerolog.ConsoleWriter); !ok {
		t.Error("expected console output in development")
	}
	if w := logOutput(&config.Config{Env: "production"}); w != os.Stdout {
		t.Errorf("expected JSON on stdout in production, got %T", w)
	}
}

func TestRunServer_InvalidConfig(t *testing.T) {
	t.Setenv("ROWS", "0")
	err := runServer()
	if err == nil || !strings.Contains(err.Error(), "ROWS") {
		t.Fatalf("expected a config error, got %v", err)
	}
}

func testTables(t *testing.T) *sample.Tables {
	t.Helper()
	tb, err := sample.Generate(sample.NewRand(sample.DefaultSeed), sample.DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return tb
}

// ---------------------------------------------------------------------------
// generate output
// ---------------------------------------------------------------------------

func TestWriteDataset_Summary(t *testing.T) {
	var buf bytes.Buffer
	if err := writeDataset(&buf, "summary", "", sample.DefaultSeed, testTables(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var doc struct {
		Seed    int64 `json:"seed"`
		Summary struct {
			TotalAppointments int `json:"total_appointments"`
		} `json:"summary"`
		Status []struct {
			Label string `json:"label"`
			Value int    `json:"value"`
		} `json:"status"`
	}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if doc.Seed != 42 || doc.Summary.TotalAppointments != 200 {
		t.Errorf("unexpected summary: %+v", doc)
	}
	total := 0
	for _, c := range doc.Status {
		total += c.Value
	}
	if total != 200 {
		t.Errorf("expected status counts to sum to 200, got %d", total)
	}
}

func TestWriteDataset_CSV(t *testing.T) {
	var buf bytes.Buffer
	if err := writeDataset(&buf, "csv", "doctors", 42, testTables(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("invalid csv: %v", err)
	}
	if len(records) != 6 {
		t.Errorf("expected 6 records, got %d", len(records))
	}
}

func TestWriteDataset_NDJSONAndXLSX(t *testing.T) {
	tb := testTables(t)

	var nd bytes.Buffer
	if err := writeDataset(&nd, "ndjson", "appointments", 42, tb); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := strings.Count(nd.String(), "\n"); n != 200 {
		t.Errorf("expected 200 lines, got %d", n)
	}

	var xl bytes.Buffer
	if err := writeDataset(&xl, "xlsx", "", 42, tb); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(xl.String(), "PK") {
		t.Error("expected a zip container")
	}
}

func TestWriteDataset_Errors(t *testing.T) {
	tb := testTables(t)
	if err := writeDataset(&bytes.Buffer{}, "parquet", "", 42, tb); err == nil {
		t.Error("expected error for unknown format")
	}
	if err := writeDataset(&bytes.Buffer{}, "csv", "patients", 42, tb); err == nil {
		t.Error("expected error for unknown table")
	}
}

func TestGenerateCmd_Flags(t *testing.T) {
	t.Setenv("SEED", "")
	t.Setenv("ROWS", "")
	cmd := generateCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--format", "csv", "--rows", "10", "--seed", "7"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	records, err := csv.NewReader(&out).ReadAll()
	if err != nil {
		t.Fatalf("invalid csv: %v", err)
	}
	if len(records) != 11 {
		t.Errorf("expected header + 10 rows, got %d", len(records))
	}
}

func TestGenerateCmd_InvalidRows(t *testing.T) {
	cmd := generateCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--rows", "0"})
	if err := cmd.Execute(); err == nil {
		t.Error("expected error for zero rows")
	}
}

// ---------------------------------------------------------------------------
// server wiring
// ---------------------------------------------------------------------------

func TestNewServer_Routes(t *testing.T) {
	e := newServer(testConfig(), zerolog.Nop(), cache.NewMemoryStore(), sample.NewCache(time.Minute, 4), nil)

	for _, target := range []string{"/", "/health", "/metrics", "/api/v1/doctors", "/charts/status"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", target, rec.Code)
		}
		if rec.Header().Get(middleware.RequestIDHeader) == "" {
			t.Errorf("%s: expected request id header", target)
		}
		if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
			t.Errorf("%s: expected security headers", target)
		}
	}

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/db", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected /health/db to be absent without a database, got %d", rec.Code)
	}
}

func TestNewServer_RateLimitsCharts(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitRPS = 0.001
	cfg.RateLimitBurst = 1
	e := newServer(cfg, zerolog.Nop(), cache.NewMemoryStore(), sample.NewCache(time.Minute, 4), nil)

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/charts/features", nil))
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Errorf("expected 200 then 429, got %v", codes)
	}

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/model", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected api routes to be unlimited, got %d", rec.Code)
	}
}

func TestNewServer_CORS(t *testing.T) {
	e := newServer(testConfig(), zerolog.Nop(), cache.NewMemoryStore(), sample.NewCache(time.Minute, 4), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/model", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("expected allowed origin, got %q", got)
	}
}

func TestNewServer_MetricsAfterChart(t *testing.T) {
	e := newServer(testConfig(), zerolog.Nop(), cache.NewMemoryStore(), sample.NewCache(time.Minute, 4), nil)

	for i := 0; i < 2; i++ {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/charts/monthly", nil))
	}

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{
		`chart_cache_lookups_total{chart="monthly",result="miss"} 1`,
		`chart_cache_lookups_total{chart="monthly",result="hit"} 1`,
		"table_cache_entries 1",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected metrics to contain %q", want)
		}
	}
}

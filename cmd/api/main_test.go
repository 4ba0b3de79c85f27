package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rishikeshs/trashbot/engine/rag"
	"github.com/rishikeshs/trashbot/engine/report"
	"github.com/rishikeshs/trashbot/engine/semantic"
	"github.com/rishikeshs/trashbot/pkg/metrics"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- config ---

func TestLoadConfigDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "MODEL_PROVIDER", "EMBED_MODEL", "RAG_TOP_K", "RAG_STRICT_THRESHOLD"} {
		t.Setenv(k, "")
	}

	cfg := loadConfig()
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.Provider != "ollama" {
		t.Errorf("Provider = %q, want ollama", cfg.Provider)
	}
	if cfg.EmbedModel != "all-minilm" {
		t.Errorf("EmbedModel = %q", cfg.EmbedModel)
	}
	if cfg.TopK != rag.DefaultTopK {
		t.Errorf("TopK = %d, want %d", cfg.TopK, rag.DefaultTopK)
	}
	if cfg.RefusalThreshold != rag.DefaultRefusalThreshold {
		t.Errorf("RefusalThreshold = %v", cfg.RefusalThreshold)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("MODEL_PROVIDER", "openai")
	t.Setenv("RAG_TOP_K", "7")
	t.Setenv("RAG_STRICT_THRESHOLD", "0.5")

	cfg := loadConfig()
	if cfg.Port != "9999" || cfg.Provider != "openai" {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.TopK != 7 {
		t.Errorf("TopK = %d, want 7", cfg.TopK)
	}
	if cfg.RefusalThreshold != 0.5 {
		t.Errorf("RefusalThreshold = %v, want 0.5", cfg.RefusalThreshold)
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("X_STR", "v")
	t.Setenv("X_INT", "not a number")
	t.Setenv("X_FLOAT", "2.5")

	if got := envOr("X_STR", "d"); got != "v" {
		t.Errorf("envOr set = %q", got)
	}
	if got := envOr("X_UNSET", "d"); got != "d" {
		t.Errorf("envOr unset = %q", got)
	}
	if got := envInt("X_INT", 3); got != 3 {
		t.Errorf("envInt garbage = %d, want fallback", got)
	}
	if got := envFloat("X_FLOAT", 0); got != 2.5 {
		t.Errorf("envFloat = %v", got)
	}
}

// --- handlers ---

type stubEmbedder struct{ vec []float32 }

func (s stubEmbedder) Embed(context.Context, string) ([]float32, error) { return s.vec, nil }

type stubSearcher struct{ hits []semantic.Hit }

func (s stubSearcher) Search(context.Context, []float32, int) ([]semantic.Hit, error) {
	return s.hits, nil
}

type stubMeta struct{ texts map[int64]string }

func (s stubMeta) TextsBySlots(context.Context, []int64) (map[int64]string, error) {
	return s.texts, nil
}

type stubChat struct{ reply string }

func (s stubChat) Chat(context.Context, string) (string, error) { return s.reply, nil }

func answeringService(reply string) *rag.Service {
	return rag.New(
		stubEmbedder{vec: []float32{1}},
		stubSearcher{hits: []semantic.Hit{{Slot: 0, Score: 0.9}}},
		stubMeta{texts: map[int64]string{0: "context chunk"}},
		stubChat{reply: reply},
		rag.DefaultOptions(),
		discardLogger(),
	)
}

func refusingService() *rag.Service {
	return rag.New(
		stubEmbedder{vec: []float32{1}},
		stubSearcher{},
		stubMeta{},
		stubChat{},
		rag.DefaultOptions(),
		discardLogger(),
	)
}

func askHandler(svc *rag.Service, reg *metrics.Registry) (http.HandlerFunc, *metrics.Counter, *metrics.Counter) {
	queries := reg.Counter("queries_total", "")
	refusals := reg.Counter("refusals_total", "")
	dur := reg.Histogram("dur_seconds", "", nil)
	return handleAsk(svc, discardLogger(), queries, refusals, dur), queries, refusals
}

func TestHandleHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	handleHealth(rec, httptest.NewRequest("GET", "/api/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestHandleAsk_BadBody(t *testing.T) {
	h, _, _ := askHandler(refusingService(), metrics.New())
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest("POST", "/api/ask", strings.NewReader("{not json")))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleAsk_MissingQuestion(t *testing.T) {
	h, queries, _ := askHandler(refusingService(), metrics.New())
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest("POST", "/api/ask", strings.NewReader(`{"question":""}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if queries.Value() != 0 {
		t.Error("rejected request must not count as a query")
	}
}

func TestHandleAsk_Answer(t *testing.T) {
	h, queries, refusals := askHandler(answeringService("The vehicle scanned 412 houses."), metrics.New())
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest("POST", "/api/ask", strings.NewReader(`{"question":"how many houses?"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp AskResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if resp.Answer != "The vehicle scanned 412 houses." {
		t.Errorf("answer = %q", resp.Answer)
	}
	if queries.Value() != 1 || refusals.Value() != 0 {
		t.Errorf("queries = %d, refusals = %d", queries.Value(), refusals.Value())
	}
}

func TestHandleAsk_RefusalCounted(t *testing.T) {
	h, _, refusals := askHandler(refusingService(), metrics.New())
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest("POST", "/api/ask", strings.NewReader(`{"question":"who won the world cup?"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp AskResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if resp.Answer != rag.IDKMessage {
		t.Errorf("answer = %q, want the exact refusal message", resp.Answer)
	}
	if refusals.Value() != 1 {
		t.Errorf("refusals = %d, want 1", refusals.Value())
	}
}

func TestReportParamsDefaults(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/report?vehicle=mh08ap1894", nil)
	p := reportParams(r)
	if p.Vehicle != "mh08ap1894" {
		t.Errorf("vehicle = %q", p.Vehicle)
	}
	today := time.Now().Format("2006-01-02")
	weekAgo := time.Now().AddDate(0, 0, -7).Format("2006-01-02")
	if p.To != today || p.From != weekAgo {
		t.Errorf("default range = %s..%s, want %s..%s", p.From, p.To, weekAgo, today)
	}
	if p.ZoneID != 0 || p.PanelID != 0 {
		t.Errorf("zone/panel sentinels = %d/%d, want 0/0", p.ZoneID, p.PanelID)
	}
}

func TestReportParamsExplicit(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/report?vehicle=x&from=2026-08-01&to=2026-08-05&zone=3&panel=2", nil)
	p := reportParams(r)
	if p.From != "2026-08-01" || p.To != "2026-08-05" || p.ZoneID != 3 || p.PanelID != 2 {
		t.Errorf("params = %+v", p)
	}
}

func TestWriteReportError(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{report.ErrVehicleRequired, http.StatusBadRequest},
		{report.ErrInvalidDate, http.StatusBadRequest},
		{report.ErrMissingConfig, http.StatusInternalServerError},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		writeReportError(rec, discardLogger(), tc.err)
		if rec.Code != tc.want {
			t.Errorf("%v: status = %d, want %d", tc.err, rec.Code, tc.want)
		}
	}
}

func TestHandleReport_BadParams(t *testing.T) {
	reports := metrics.New().Counter("reports_total", "")
	h := handleReport(report.Config{Server: "s", Database: "d", User: "u", Password: "p"}, discardLogger(), reports)

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest("GET", "/api/report", nil)) // no vehicle
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if reports.Value() != 1 {
		t.Errorf("reports counter = %d, want 1", reports.Value())
	}
}

func TestHandleReport_Unconfigured(t *testing.T) {
	reports := metrics.New().Counter("reports_total", "")
	h := handleReport(report.Config{}, discardLogger(), reports)

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest("GET", "/api/report?vehicle=mh08ap1894", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

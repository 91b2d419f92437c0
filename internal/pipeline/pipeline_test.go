package pipeline_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonesrussell/countyscan/internal/config"
	"github.com/jonesrussell/countyscan/internal/domain"
	"github.com/jonesrussell/countyscan/internal/extractor"
	"github.com/jonesrussell/countyscan/internal/fetcher"
	"github.com/jonesrussell/countyscan/internal/logger"
	"github.com/jonesrussell/countyscan/internal/navigator"
	"github.com/jonesrussell/countyscan/internal/pipeline"
	"github.com/jonesrussell/countyscan/internal/store"
)

var testKeywords = domain.KeywordTiers{
	Department: []string{"public health"},
	Section:    []string{"maternal"},
	Program:    []string{"wic"},
}

// countySite serves a minimal homepage with one program link.
func countySite(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `<html><body><a href="/wic">WIC</a></body></html>`)
	})
	mux.HandleFunc("/wic", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><body><p>WIC enrollment: call (661) 555-0134.</p></body></html>`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv
}

// newPipeline wires a full pipeline against a temp data directory.
func newPipeline(t *testing.T, cfg config.PipelineConfig) (*pipeline.Pipeline, *store.Store) {
	t.Helper()

	if cfg.Workers == 0 {
		cfg.Workers = 3
	}

	f := fetcher.New(config.FetchConfig{
		RequestTimeout: 5 * time.Second,
		MaxBodySize:    1 << 20,
		UserAgent:      "countyscan-test/1.0",
	}, fetcher.NewGate(0, 0, true), logger.NewNoOp())

	nav := navigator.New(f, testKeywords, config.NavigationConfig{
		MinScore:    1,
		MaxPrograms: 20,
	}, logger.NewNoOp())

	ext := extractor.New(f, config.ExtractConfig{
		MaxTextChars: 20000,
		MaxPDFLinks:  20,
	}, logger.NewNoOp())

	st, err := store.New(t.TempDir())
	if err != nil {
		t.Fatalf("store.New() unexpected error: %v", err)
	}

	return pipeline.New(nav, ext, st, cfg, logger.NewNoOp()), st
}

func TestDiscover_ResultsInInputOrder(t *testing.T) {
	srv := countySite(t)

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer down.Close()

	counties := []domain.County{
		{Name: "Kern", URL: srv.URL + "/"},
		{Name: "Alpine", URL: down.URL + "/"},
		{Name: "Yuba", URL: srv.URL + "/"},
	}

	p, st := newPipeline(t, config.PipelineConfig{Workers: 3})

	file, summary, err := p.Discover(context.Background(), counties)
	if err != nil {
		t.Fatalf("Discover() unexpected error: %v", err)
	}

	// Results come back in input order regardless of worker scheduling.
	for i, want := range []string{"Kern", "Alpine", "Yuba"} {
		if file.Results[i].CountyName != want {
			t.Errorf("Results[%d] = %q, want %q", i, file.Results[i].CountyName, want)
		}
	}

	if summary.Processed != 2 || summary.Skipped != 1 {
		t.Errorf("summary processed=%d skipped=%d, want 2/1", summary.Processed, summary.Skipped)
	}

	if len(summary.Skips) != 1 || summary.Skips[0].Unit != "Alpine" {
		t.Errorf("Skips = %+v, want the Alpine county", summary.Skips)
	}

	if summary.RunID == "" {
		t.Error("RunID not set")
	}

	// The document is persisted for a later extract run.
	loaded, err := st.LoadDiscovery()
	if err != nil {
		t.Fatalf("LoadDiscovery() unexpected error: %v", err)
	}

	if loaded.RunID != file.RunID || len(loaded.Results) != 3 {
		t.Errorf("persisted document mismatch: run=%q results=%d", loaded.RunID, len(loaded.Results))
	}
}

func TestDiscover_CountyBudget(t *testing.T) {
	srv := countySite(t)

	counties := []domain.County{
		{Name: "Kern", URL: srv.URL + "/"},
		{Name: "Yuba", URL: srv.URL + "/"},
		{Name: "Inyo", URL: srv.URL + "/"},
	}

	p, _ := newPipeline(t, config.PipelineConfig{Workers: 2, MaxCounties: 2})

	file, _, err := p.Discover(context.Background(), counties)
	if err != nil {
		t.Fatalf("Discover() unexpected error: %v", err)
	}

	if len(file.Results) != 2 {
		t.Errorf("expected the county budget of 2, got %d results", len(file.Results))
	}
}

func TestDiscover_CancelledContext(t *testing.T) {
	srv := countySite(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p, st := newPipeline(t, config.PipelineConfig{Workers: 1})

	counties := []domain.County{
		{Name: "Kern", URL: srv.URL + "/"},
		{Name: "Yuba", URL: srv.URL + "/"},
	}

	file, summary, err := p.Discover(ctx, counties)
	if err == nil {
		t.Fatal("Discover() expected context error, got nil")
	}

	// The document is still written so a partial run is not lost.
	if file == nil || summary == nil {
		t.Fatal("Discover() did not return the partial document and summary")
	}

	loaded, loadErr := st.LoadDiscovery()
	if loadErr != nil {
		t.Fatalf("LoadDiscovery() unexpected error: %v", loadErr)
	}

	if len(loaded.Results) != len(counties) {
		t.Fatalf("persisted %d results, want %d", len(loaded.Results), len(counties))
	}

	// Counties the run never reached are marked, not dropped.
	for i, result := range loaded.Results {
		if result.CountyName != counties[i].Name {
			t.Errorf("Results[%d] = %q, want %q", i, result.CountyName, counties[i].Name)
		}

		if result.SkipReason != "run_cancelled" {
			t.Errorf("Results[%d].SkipReason = %q, want %q", i, result.SkipReason, "run_cancelled")
		}

		if result.Programs == nil {
			t.Errorf("Results[%d].Programs is nil, want empty slice", i)
		}
	}

	if summary.Skipped != len(counties) {
		t.Errorf("summary skipped=%d, want %d", summary.Skipped, len(counties))
	}
}

func TestExtract(t *testing.T) {
	srv := countySite(t)

	p, st := newPipeline(t, config.PipelineConfig{Workers: 2})

	disc := &store.DiscoveryFile{
		GeneratedAt: time.Now().UTC(),
		RunID:       "run-1",
		Results: []domain.DiscoveryResult{
			{
				CountyName: "Kern",
				CountyURL:  srv.URL + "/",
				Programs: []domain.ProgramCandidate{
					{URL: srv.URL + "/wic", AnchorText: "WIC"},
					{URL: srv.URL + "/missing", AnchorText: "Gone"},
				},
			},
		},
	}

	summary, err := p.Extract(context.Background(), disc)
	if err != nil {
		t.Fatalf("Extract() unexpected error: %v", err)
	}

	if summary.Processed != 1 || summary.Skipped != 1 {
		t.Fatalf("summary processed=%d skipped=%d, want 1/1", summary.Processed, summary.Skipped)
	}

	if len(summary.Skips) != 1 || summary.Skips[0].Reason != "fetch" {
		t.Errorf("Skips = %+v, want one fetch skip", summary.Skips)
	}

	pages, err := st.List("Kern")
	if err != nil {
		t.Fatalf("List() unexpected error: %v", err)
	}

	if len(pages) != 1 {
		t.Fatalf("expected 1 stored record, got %d", len(pages))
	}

	if len(pages[0].Contacts.Phones) != 1 {
		t.Errorf("stored record lost its contacts: %+v", pages[0].Contacts)
	}
}

func TestExtract_PageBudget(t *testing.T) {
	srv := countySite(t)

	candidates := make([]domain.ProgramCandidate, 5)
	for i := range candidates {
		candidates[i] = domain.ProgramCandidate{
			URL:        fmt.Sprintf("%s/wic?office=%d", srv.URL, i),
			AnchorText: fmt.Sprintf("WIC office %d", i),
		}
	}

	p, _ := newPipeline(t, config.PipelineConfig{Workers: 2, MaxPages: 3})

	disc := &store.DiscoveryFile{
		RunID:   "run-1",
		Results: []domain.DiscoveryResult{{CountyName: "Kern", Programs: candidates}},
	}

	summary, err := p.Extract(context.Background(), disc)
	if err != nil {
		t.Fatalf("Extract() unexpected error: %v", err)
	}

	if summary.Processed+summary.Skipped != 3 {
		t.Errorf("expected the page budget of 3, got %d units", summary.Processed+summary.Skipped)
	}
}

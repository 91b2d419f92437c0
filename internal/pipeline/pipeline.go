// Package pipeline runs discovery and extraction over a set of counties
// with a bounded worker pool. Workers pull independent units (counties for
// discovery, program candidates for extraction) so output order stays
// deterministic regardless of worker count: results are placed by input
// index, never by completion order.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonesrussell/countyscan/internal/config"
	"github.com/jonesrussell/countyscan/internal/domain"
	"github.com/jonesrussell/countyscan/internal/extractor"
	"github.com/jonesrussell/countyscan/internal/logger"
	"github.com/jonesrussell/countyscan/internal/navigator"
	"github.com/jonesrussell/countyscan/internal/store"
)

// reasonRunCancelled marks counties a cancelled run never attempted.
const reasonRunCancelled = "run_cancelled"

// Skip records a pipeline unit that produced no output and why.
type Skip struct {
	// Unit names the skipped county or page URL
	Unit string `json:"unit"`
	// Reason is a stable machine-readable cause
	Reason string `json:"reason"`
}

// Summary reports what a pipeline run did.
type Summary struct {
	// RunID identifies this run in logs and output files
	RunID string `json:"run_id"`
	// Processed counts units that produced output
	Processed int `json:"processed"`
	// Skipped counts units that did not
	Skipped int `json:"skipped"`
	// Skips lists each skipped unit with its reason
	Skips []Skip `json:"skips,omitempty"`
	// Duration is wall time for the run
	Duration time.Duration `json:"duration"`
}

// Pipeline coordinates discovery and extraction runs.
type Pipeline struct {
	navigator *navigator.Navigator
	extractor *extractor.Extractor
	store     *store.Store
	cfg       config.PipelineConfig
	log       logger.Interface
}

// New creates a Pipeline. The navigator may be nil when only extraction
// will run, and vice versa.
func New(
	nav *navigator.Navigator,
	ext *extractor.Extractor,
	st *store.Store,
	cfg config.PipelineConfig,
	log logger.Interface,
) *Pipeline {
	return &Pipeline{
		navigator: nav,
		extractor: ext,
		store:     st,
		cfg:       cfg,
		log:       log,
	}
}

// Discover runs discovery over the given counties and persists the result
// document. Results appear in county input order. A county budget, when
// set, bounds how many counties are attempted. On cancellation the document
// is still written: completed counties keep their results and unattempted
// ones are recorded as run_cancelled skips.
func (p *Pipeline) Discover(ctx context.Context, counties []domain.County) (*store.DiscoveryFile, *Summary, error) {
	start := time.Now()
	runID := uuid.NewString()
	log := p.log.WithRunID(runID)

	if p.cfg.MaxCounties > 0 && len(counties) > p.cfg.MaxCounties {
		log.Info("county budget reached, truncating input",
			"budget", p.cfg.MaxCounties,
			"input", len(counties))
		counties = counties[:p.cfg.MaxCounties]
	}

	log.Info("starting discovery",
		"counties", len(counties),
		"workers", p.workers())

	results := make([]domain.DiscoveryResult, len(counties))

	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < p.workers(); w++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for i := range jobs {
				results[i] = p.navigator.Discover(ctx, counties[i])
			}
		}()
	}

	runErr := p.dispatch(ctx, jobs, len(counties))
	wg.Wait()

	if runErr != nil {
		// Flush what completed before the cancel; counties never handed to
		// a worker get an explicit skip entry instead of silently vanishing.
		for i, result := range results {
			if result.CountyName != "" {
				continue
			}

			results[i] = domain.DiscoveryResult{
				CountyName:  counties[i].Name,
				CountyURL:   counties[i].URL,
				Programs:    []domain.ProgramCandidate{},
				SkipReason:  reasonRunCancelled,
				GeneratedAt: time.Now().UTC(),
			}
		}
	}

	summary := &Summary{RunID: runID}
	for _, result := range results {
		if result.SkipReason != "" {
			summary.Skipped++
			summary.Skips = append(summary.Skips, Skip{Unit: result.CountyName, Reason: result.SkipReason})

			continue
		}

		summary.Processed++
	}

	file := &store.DiscoveryFile{
		GeneratedAt: time.Now().UTC(),
		RunID:       runID,
		Results:     results,
	}

	if err := p.store.SaveDiscovery(file); err != nil {
		return nil, nil, err
	}

	summary.Duration = time.Since(start)

	if runErr != nil {
		log.Warn("discovery cancelled, partial results saved",
			"processed", summary.Processed,
			"skipped", summary.Skipped,
			"duration", summary.Duration)

		return file, summary, runErr
	}

	log.Info("discovery complete",
		"processed", summary.Processed,
		"skipped", summary.Skipped,
		"duration", summary.Duration)

	return file, summary, nil
}

// dispatch feeds job indexes [0, n) to the worker channel, stopping early
// on context cancellation. It always closes jobs.
func (p *Pipeline) dispatch(ctx context.Context, jobs chan<- int, n int) error {
	defer close(jobs)

	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case jobs <- i:
		}
	}

	return nil
}

// extractJob pairs a program candidate with its owning county.
type extractJob struct {
	county    string
	candidate domain.ProgramCandidate
}

// Extract fetches and stores page records for every program candidate in
// the discovery document. A page budget, when set, bounds the total number
// of pages fetched across all counties. Per-page failures are recorded as
// skips and never stop the run.
func (p *Pipeline) Extract(ctx context.Context, disc *store.DiscoveryFile) (*Summary, error) {
	start := time.Now()
	runID := uuid.NewString()
	log := p.log.WithRunID(runID)

	jobList := p.flatten(disc)

	log.Info("starting extraction",
		"pages", len(jobList),
		"workers", p.workers())

	skips := make([]*Skip, len(jobList))

	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < p.workers(); w++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for i := range jobs {
				skips[i] = p.extractOne(ctx, jobList[i])
			}
		}()
	}

	// Pages stored before a cancel stay on disk; Put is per-page, so a
	// cancelled run needs no flush of its own.
	runErr := p.dispatch(ctx, jobs, len(jobList))
	wg.Wait()

	if runErr != nil {
		return nil, runErr
	}

	summary := &Summary{RunID: runID}
	for _, skip := range skips {
		if skip != nil {
			summary.Skipped++
			summary.Skips = append(summary.Skips, *skip)

			continue
		}

		summary.Processed++
	}

	summary.Duration = time.Since(start)
	log.Info("extraction complete",
		"processed", summary.Processed,
		"skipped", summary.Skipped,
		"duration", summary.Duration)

	return summary, nil
}

// flatten turns a discovery document into a flat job list, applying the
// page budget across counties in document order.
func (p *Pipeline) flatten(disc *store.DiscoveryFile) []extractJob {
	var jobList []extractJob

	for _, result := range disc.Results {
		for _, candidate := range result.Programs {
			if p.cfg.MaxPages > 0 && len(jobList) >= p.cfg.MaxPages {
				return jobList
			}

			jobList = append(jobList, extractJob{county: result.CountyName, candidate: candidate})
		}
	}

	return jobList
}

// extractOne processes a single candidate. Returns nil on success or a
// Skip describing the failure.
func (p *Pipeline) extractOne(ctx context.Context, job extractJob) *Skip {
	log := p.log.WithCounty(job.county)

	page, err := p.extractor.Extract(ctx, job.county, job.candidate)
	if err != nil {
		reason := "extract_failed"
		if extractErr, ok := extractor.AsError(err); ok {
			reason = string(extractErr.Kind)
		}

		log.Warn("page skipped",
			"url", job.candidate.URL,
			"reason", reason,
			"error", err)

		return &Skip{Unit: job.candidate.URL, Reason: reason}
	}

	path, err := p.store.Put(job.county, page)
	if err != nil {
		log.Error("store failed", "url", job.candidate.URL, "error", err)

		return &Skip{Unit: job.candidate.URL, Reason: "store_failed"}
	}

	log.Debug("page stored", "url", job.candidate.URL, "path", path)

	return nil
}

// workers returns the effective worker count.
func (p *Pipeline) workers() int {
	if p.cfg.Workers < 1 {
		return 1
	}

	return p.cfg.Workers
}

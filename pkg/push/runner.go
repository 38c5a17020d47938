// Package push implements the batch pipeline that reads each active site's
// spreadsheet and posts the latest metrics to its squad's Slack channel.
package push

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/growthops/sheetpulse/pkg/observability"
	"github.com/growthops/sheetpulse/pkg/sheets"
	"github.com/growthops/sheetpulse/pkg/slack"
	"github.com/growthops/sheetpulse/pkg/storage"
)

// SheetReader fetches the raw cell grid of a spreadsheet.
type SheetReader interface {
	Values(ctx context.Context, spreadsheetID, sheetName string) ([][]string, error)
}

// Notifier delivers a text message to a webhook.
type Notifier interface {
	Post(ctx context.Context, webhookURL, text string) error
}

// SiteSource provides the site configuration and the activity log.
type SiteSource interface {
	ActiveSiteNames(ctx context.Context) ([]string, error)
	SiteConfigByName(ctx context.Context, name string) (*storage.SiteConfig, error)
	LogActivity(ctx context.Context, siteName, status, message string) error
}

// RunResult summarizes one batch run.
type RunResult struct {
	Total     int
	Succeeded int
	Skipped   int
	Failed    int
}

// Runner executes push runs with bounded per-site concurrency.
type Runner struct {
	store       SiteSource
	reader      SheetReader
	notifier    Notifier
	logger      *observability.Logger
	metrics     *observability.Metrics
	concurrency int
}

// NewRunner wires the push pipeline. metrics may be nil. A non-positive
// concurrency defaults to 4.
func NewRunner(store SiteSource, reader SheetReader, notifier Notifier, logger *observability.Logger, metrics *observability.Metrics, concurrency int) *Runner {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Runner{
		store:       store,
		reader:      reader,
		notifier:    notifier,
		logger:      logger,
		metrics:     metrics,
		concurrency: concurrency,
	}
}

// ProcessAll pushes every active site. Per-site failures are recorded and
// never abort the run.
func (r *Runner) ProcessAll(ctx context.Context) (RunResult, error) {
	start := time.Now()

	names, err := r.store.ActiveSiteNames(ctx)
	if err != nil {
		r.countRun("error")
		return RunResult{}, fmt.Errorf("failed to list active sites: %w", err)
	}

	var succeeded, skipped, failed int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for _, name := range names {
		name := name
		g.Go(func() error {
			outcome := r.processOne(gctx, name)
			switch outcome {
			case storage.LogStatusSuccess:
				atomic.AddInt64(&succeeded, 1)
			case storage.LogStatusSkipped:
				atomic.AddInt64(&skipped, 1)
			default:
				atomic.AddInt64(&failed, 1)
			}
			return nil
		})
	}
	g.Wait()

	result := RunResult{
		Total:     len(names),
		Succeeded: int(succeeded),
		Skipped:   int(skipped),
		Failed:    int(failed),
	}

	if r.metrics != nil {
		r.metrics.PushDuration.Observe(time.Since(start).Seconds())
	}
	if result.Failed > 0 {
		r.countRun("partial")
	} else {
		r.countRun("success")
	}

	r.logger.WithFields(map[string]interface{}{
		"total":       result.Total,
		"succeeded":   result.Succeeded,
		"skipped":     result.Skipped,
		"failed":      result.Failed,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("push run finished")

	return result, nil
}

// ProcessSite pushes a single site by name.
func (r *Runner) ProcessSite(ctx context.Context, name string) error {
	outcome := r.processOne(ctx, name)
	if outcome == storage.LogStatusError {
		return fmt.Errorf("push failed for site %q", name)
	}
	return nil
}

// processOne runs the pipeline for one site and records the outcome in the
// activity log. It returns the log status it recorded.
func (r *Runner) processOne(ctx context.Context, name string) string {
	log := r.logger.WithField("site", name)

	cfg, err := r.store.SiteConfigByName(ctx, name)
	if err != nil {
		return r.record(ctx, name, storage.LogStatusError, fmt.Sprintf("failed to load config: %v", err))
	}
	if cfg == nil {
		return r.record(ctx, name, storage.LogStatusError, "site not found")
	}
	if cfg.Site.Status != storage.StatusActive {
		log.Info("skipping inactive site")
		return r.record(ctx, name, storage.LogStatusSkipped, "site is inactive")
	}
	if cfg.WebhookURL == "" {
		log.Warn("skipping site without squad webhook")
		return r.record(ctx, name, storage.LogStatusSkipped, "squad has no webhook configured")
	}

	spreadsheetID, err := sheets.SpreadsheetIDFromURL(cfg.Site.SheetURL)
	if err != nil {
		return r.record(ctx, name, storage.LogStatusError, err.Error())
	}

	rows, err := r.reader.Values(ctx, spreadsheetID, "")
	r.countSheets(err)
	if err != nil {
		return r.record(ctx, name, storage.LogStatusError, fmt.Sprintf("failed to read sheet: %v", err))
	}

	latest := sheets.LatestRow(rows)
	if latest == nil {
		return r.record(ctx, name, storage.LogStatusError, "sheet has no data rows")
	}

	headerIdx := sheets.HeaderRowIndex(rows)
	values := sheets.MapMetrics(rows[headerIdx], latest, []sheets.MetricIndex{
		{Name: "ROAS", Index: cfg.Site.Columns.ROAS},
		{Name: "MC", Index: cfg.Site.Columns.Margin},
	})

	text := slack.SummaryMessage(name, values[0].Value, values[1].Value)
	err = r.notifier.Post(ctx, cfg.WebhookURL, text)
	r.countSlack(err)
	if err != nil {
		return r.record(ctx, name, storage.LogStatusError, fmt.Sprintf("failed to post to slack: %v", err))
	}

	log.Info("pushed summary to slack")
	return r.record(ctx, name, storage.LogStatusSuccess, "summary posted")
}

// record writes the activity log entry, best-effort, and bumps the per-site
// counter.
func (r *Runner) record(ctx context.Context, name, status, message string) string {
	if status == storage.LogStatusError {
		r.logger.WithFields(map[string]interface{}{
			"site":   name,
			"reason": message,
		}).Error("site push failed")
	}
	if err := r.store.LogActivity(ctx, name, status, message); err != nil {
		r.logger.WithError(err).WithField("site", name).Warn("failed to record processing log")
	}
	if r.metrics != nil {
		r.metrics.PushSitesTotal.WithLabelValues(status).Inc()
	}
	return status
}

func (r *Runner) countRun(status string) {
	if r.metrics != nil {
		r.metrics.PushRunsTotal.WithLabelValues(status).Inc()
	}
}

func (r *Runner) countSheets(err error) {
	if r.metrics == nil {
		return
	}
	if err != nil {
		r.metrics.SheetsRequestsTotal.WithLabelValues("error").Inc()
		return
	}
	r.metrics.SheetsRequestsTotal.WithLabelValues("success").Inc()
}

func (r *Runner) countSlack(err error) {
	if r.metrics == nil {
		return
	}
	if err != nil {
		r.metrics.SlackPostsTotal.WithLabelValues("error").Inc()
		return
	}
	r.metrics.SlackPostsTotal.WithLabelValues("success").Inc()
}

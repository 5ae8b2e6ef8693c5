// Package pipeline runs the extraction stages for one document: fetch and
// segment, annotate, reconcile, validate, then persist.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mkoziy/genome/extractor/internal/metrics"
	"github.com/mkoziy/genome/extractor/internal/models"
	"github.com/mkoziy/genome/extractor/internal/reconcile"
	"github.com/mkoziy/genome/extractor/internal/repositories"
	"github.com/mkoziy/genome/extractor/internal/sources/bioc"
	"github.com/mkoziy/genome/extractor/internal/stagecache"
	"github.com/mkoziy/genome/extractor/internal/validate"
)

type Fetcher interface {
	FetchDocument(ctx context.Context, pmid string) (*bioc.Collection, error)
}

type Annotator interface {
	AnnotateAll(ctx context.Context, passages []models.Passage, workers int) ([]json.RawMessage, error)
}

type Resolver interface {
	ResolveAll(ctx context.Context, mapping map[string][]string) *validate.Batch
}

type GeneSaver interface {
	SaveGenes(ctx context.Context, genes []models.CanonicalGene) repositories.SaveReport
}

type RunLog interface {
	Start(ctx context.Context, run *models.PipelineRun) error
	Finish(ctx context.Context, run *models.PipelineRun) error
}

type GraphSink interface {
	Export(ctx context.Context, pmid, runID string, genes []models.CanonicalGene) error
}

// Deps are the stage implementations. Saver, Runs, Graph and Cache are
// optional.
type Deps struct {
	Fetcher   Fetcher
	Annotator Annotator
	Resolver  Resolver
	Saver     GeneSaver
	Runs      RunLog
	Graph     GraphSink
	Cache     stagecache.Store
	Metrics   *metrics.Recorder
	Log       logrus.FieldLogger
}

// Options control a single run.
type Options struct {
	PMID              string
	UseCache          bool
	AnnotationWorkers int
	// SkipParseErrors drops malformed annotation payloads instead of
	// failing the run.
	SkipParseErrors bool
	OutputPath      string
	ConfigSnapshot  string
}

// Summary is the outcome of a successful run.
type Summary struct {
	RunID    string
	Passages int
	// Symbols counts the distinct gene surface forms left after reconciliation.
	Symbols int
	// SkippedPassages counts malformed payloads dropped under SkipParseErrors.
	SkippedPassages int
	Genes           []models.CanonicalGene
	Unresolved      []string
	Failed          map[string]error
	Persisted       *repositories.SaveReport
}

type Pipeline struct {
	deps Deps
	opts Options
}

// New validates the required dependencies.
func New(deps Deps, opts Options) (*Pipeline, error) {
	if deps.Fetcher == nil || deps.Annotator == nil || deps.Resolver == nil {
		return nil, errors.New("pipeline: fetcher, annotator and resolver are required")
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	if deps.Log == nil {
		deps.Log = logrus.New()
	}
	if opts.AnnotationWorkers <= 0 {
		opts.AnnotationWorkers = 4
	}
	return &Pipeline{deps: deps, opts: opts}, nil
}

// Run processes the configured document end to end. The run is recorded in
// the run log whatever the outcome.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	sum := &Summary{RunID: uuid.NewString(), Failed: map[string]error{}}
	log := p.deps.Log.WithFields(logrus.Fields{"pmid": p.opts.PMID, "run_id": sum.RunID})

	run := &models.PipelineRun{
		RunID:           sum.RunID,
		DocumentID:      p.opts.PMID,
		StartTime:       time.Now(),
		Status:          models.RunRunning,
		GenesUnresolved: models.StringArray{},
	}
	if p.opts.ConfigSnapshot != "" {
		run.ConfigSnapshot = &p.opts.ConfigSnapshot
	}
	if p.deps.Runs != nil {
		if serr := p.deps.Runs.Start(ctx, run); serr != nil {
			log.WithError(serr).Warn("could not record run start")
		}
	}

	log.Info("run started")
	err := p.execute(ctx, log, sum)
	p.finish(log, run, sum, err)
	if err != nil {
		return nil, err
	}
	return sum, nil
}

func (p *Pipeline) execute(ctx context.Context, log logrus.FieldLogger, sum *Summary) error {
	passages, err := p.passages(ctx, log)
	if err != nil {
		return err
	}
	sum.Passages = len(passages)
	p.deps.Metrics.AddPassages(len(passages))

	payloads, err := p.annotations(ctx, log, passages)
	if err != nil {
		return err
	}

	result, err := p.reconciliation(ctx, log, payloads, sum)
	if err != nil {
		return err
	}
	sum.Symbols = len(result.Genes())
	p.deps.Metrics.AddSymbols(sum.Symbols)

	start := time.Now()
	batch := p.deps.Resolver.ResolveAll(ctx, result.Mapping())
	p.deps.Metrics.ObserveStage("validation", time.Since(start), false)
	if err := ctx.Err(); err != nil {
		return err
	}
	sum.Genes = batch.Genes
	sum.Unresolved = batch.Unresolved
	sum.Failed = batch.Failed
	p.deps.Metrics.AddGenes("resolved", len(batch.Genes))
	p.deps.Metrics.AddGenes("unresolved", len(batch.Unresolved))
	p.deps.Metrics.AddGenes("failed", len(batch.Failed))
	log.WithFields(logrus.Fields{
		"resolved":   len(batch.Genes),
		"unresolved": len(batch.Unresolved),
		"failed":     len(batch.Failed),
	}).Info("genes validated")

	if p.opts.OutputPath != "" {
		if err := writeOutput(p.opts.OutputPath, batch.Genes); err != nil {
			return err
		}
		log.WithField("path", p.opts.OutputPath).Info("output written")
	}

	if p.deps.Saver != nil {
		report := p.deps.Saver.SaveGenes(ctx, batch.Genes)
		sum.Persisted = &report
		for _, perr := range report.Errors {
			p.deps.Metrics.IncPersistenceError(perr.Op)
		}
		log.WithFields(logrus.Fields{
			"genes":    report.Genes,
			"diseases": report.Diseases,
			"links":    report.Links,
			"errors":   len(report.Errors),
		}).Info("genes persisted")
		if len(batch.Genes) > 0 && report.Genes == 0 && len(report.Errors) > 0 {
			return fmt.Errorf("nothing persisted: %w", report.Errors[0])
		}
	}

	if p.deps.Graph != nil {
		if gerr := p.deps.Graph.Export(ctx, p.opts.PMID, sum.RunID, batch.Genes); gerr != nil {
			log.WithError(gerr).Warn("graph export failed")
		}
	}

	return nil
}

func (p *Pipeline) passages(ctx context.Context, log logrus.FieldLogger) ([]models.Passage, error) {
	var passages []models.Passage
	err := p.stage(ctx, log, stagecache.StagePassages, &passages, func() error {
		coll, err := p.deps.Fetcher.FetchDocument(ctx, p.opts.PMID)
		if err != nil {
			return fmt.Errorf("fetch document: %w", err)
		}
		passages = bioc.Segment(coll)
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.WithField("passages", len(passages)).Info("document segmented")
	return passages, nil
}

func (p *Pipeline) annotations(ctx context.Context, log logrus.FieldLogger, passages []models.Passage) ([]json.RawMessage, error) {
	var payloads []json.RawMessage
	err := p.stage(ctx, log, stagecache.StageAnnotations, &payloads, func() error {
		var err error
		payloads, err = p.deps.Annotator.AnnotateAll(ctx, passages, p.opts.AnnotationWorkers)
		if err != nil {
			return fmt.Errorf("annotate: %w", err)
		}
		return nil
	})
	return payloads, err
}

func (p *Pipeline) reconciliation(ctx context.Context, log logrus.FieldLogger, payloads []json.RawMessage, sum *Summary) (*reconcile.Result, error) {
	result := &reconcile.Result{}
	err := p.stage(ctx, log, stagecache.StageReconciliation, result, func() error {
		res, err := reconcile.Reconcile(payloads)
		if err != nil {
			failed := countJoined(err)
			p.deps.Metrics.AddParseErrors(failed)
			if !p.opts.SkipParseErrors {
				return err
			}
			sum.SkippedPassages = failed
			log.WithError(err).WithField("skipped", failed).Warn("skipping malformed annotation payloads")
		}
		*result = *res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// stage loads v from the cache when allowed, otherwise runs compute and
// stores v. Cache failures are logged and never fail the run.
func (p *Pipeline) stage(ctx context.Context, log logrus.FieldLogger, stage stagecache.Stage, v any, compute func() error) error {
	start := time.Now()
	slog := log.WithField("stage", stage)

	if p.opts.UseCache && p.deps.Cache != nil {
		ok, err := p.deps.Cache.Get(ctx, p.opts.PMID, stage, v)
		switch {
		case err != nil:
			slog.WithError(err).Warn("stage cache unreadable, recomputing")
		case ok:
			slog.Info("stage loaded from cache")
			p.deps.Metrics.ObserveStage(string(stage), time.Since(start), true)
			return nil
		}
	}

	if err := compute(); err != nil {
		return err
	}
	p.deps.Metrics.ObserveStage(string(stage), time.Since(start), false)

	if p.deps.Cache != nil {
		if err := p.deps.Cache.Put(ctx, p.opts.PMID, stage, v); err != nil {
			slog.WithError(err).Warn("stage cache write failed")
		}
	}
	return nil
}

func (p *Pipeline) finish(log logrus.FieldLogger, run *models.PipelineRun, sum *Summary, err error) {
	status := models.RunSucceeded
	if err != nil {
		status = models.RunFailed
		msg := err.Error()
		run.ErrorLog = &msg
		run.ErrorsCount = countJoined(err)
	}
	run.PassagesCount = sum.Passages
	run.SymbolsCount = sum.Symbols
	run.GenesResolved = len(sum.Genes)
	run.GenesUnresolved = append(models.StringArray{}, sum.Unresolved...)
	if err == nil {
		run.ErrorsCount = sum.SkippedPassages + len(sum.Failed)
		if sum.Persisted != nil {
			run.ErrorsCount += len(sum.Persisted.Errors)
		}
		if len(sum.Failed) > 0 {
			msg := failedSummary(sum.Failed)
			run.ErrorLog = &msg
		}
	}
	run.Finish(status)

	if p.deps.Runs != nil {
		// The run context may already be cancelled.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if ferr := p.deps.Runs.Finish(ctx, run); ferr != nil {
			log.WithError(ferr).Warn("could not record run end")
		}
	}

	entry := log.WithFields(logrus.Fields{"status": status, "duration": run.Duration().String()})
	if err != nil {
		entry.WithError(err).Error("run failed")
		return
	}
	entry.Info("run finished")
}

func countJoined(err error) int {
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		return len(j.Unwrap())
	}
	return 1
}

func failedSummary(failed map[string]error) string {
	lines := make([]string, 0, len(failed))
	for symbol, err := range failed {
		lines = append(lines, symbol+": "+err.Error())
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n")
}

func writeOutput(path string, genes []models.CanonicalGene) error {
	if genes == nil {
		genes = []models.CanonicalGene{}
	}
	data, err := json.MarshalIndent(genes, "", "    ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

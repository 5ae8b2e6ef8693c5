package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mkoziy/genome/extractor/internal/config"
	"github.com/mkoziy/genome/extractor/internal/database"
	"github.com/mkoziy/genome/extractor/internal/errs"
	"github.com/mkoziy/genome/extractor/internal/graphstore"
	"github.com/mkoziy/genome/extractor/internal/logging"
	"github.com/mkoziy/genome/extractor/internal/metrics"
	"github.com/mkoziy/genome/extractor/internal/migrations"
	"github.com/mkoziy/genome/extractor/internal/pipeline"
	"github.com/mkoziy/genome/extractor/internal/repositories"
	"github.com/mkoziy/genome/extractor/internal/sources/bern2"
	"github.com/mkoziy/genome/extractor/internal/sources/bioc"
	"github.com/mkoziy/genome/extractor/internal/sources/hgnc"
	"github.com/mkoziy/genome/extractor/internal/sources/mygene"
	"github.com/mkoziy/genome/extractor/internal/sources/transport"
	"github.com/mkoziy/genome/extractor/internal/stagecache"
	"github.com/mkoziy/genome/extractor/internal/validate"
)

type flags struct {
	output      string
	useCache    bool
	configPath  string
	pmid        string
	dsn         string
	noPersist   bool
	logLevel    string
	metricsFile string
}

func newRootCmd() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:           "extractor",
		Short:         "Extract gene and disease associations from a PubMed Central article",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), f)
		},
	}

	cmd.Flags().StringVarP(&f.output, "output", "o", "output.json", "File the resolved genes are written to")
	cmd.Flags().BoolVarP(&f.useCache, "cache", "c", false, "Reuse cached stage artifacts when available")
	cmd.Flags().StringVar(&f.configPath, "config", "config.yaml", "Configuration file (optional)")
	cmd.Flags().StringVar(&f.pmid, "pmid", "", "PubMed or PMC id of the article (default from config)")
	cmd.Flags().StringVar(&f.dsn, "db", "", "SQLite DSN overriding database.dsn")
	cmd.Flags().BoolVar(&f.noPersist, "no-persist", false, "Skip database and graph writes")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "Log level overriding log.level")
	cmd.Flags().StringVar(&f.metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile at exit")

	cmd.AddCommand(newGenesCmd())
	return cmd
}

func loadConfig(f flags) (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	if f.pmid != "" {
		cfg.PMID = f.pmid
	}
	if f.dsn != "" {
		cfg.Database.DSN = f.dsn
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if f.metricsFile != "" {
		cfg.Metrics.File = f.metricsFile
	}
	return cfg, nil
}

func run(ctx context.Context, f flags) error {
	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return &errs.ConfigError{Path: f.configPath, Err: err}
	}

	rec := metrics.New()
	defer func() {
		if cfg.Metrics.File == "" {
			return
		}
		if err := rec.WriteTextfile(cfg.Metrics.File); err != nil {
			log.WithError(err).Warn("metrics textfile not written")
		}
	}()

	deps, cleanup, err := wire(ctx, cfg, f, log, rec)
	if err != nil {
		return err
	}
	defer cleanup()

	p, err := pipeline.New(deps, pipeline.Options{
		PMID:              cfg.PMID,
		UseCache:          f.useCache,
		AnnotationWorkers: cfg.Pipeline.AnnotationWorkers,
		SkipParseErrors:   cfg.Pipeline.ParseErrorPolicy == config.PolicySkip,
		OutputPath:        f.output,
		ConfigSnapshot:    snapshot(cfg),
	})
	if err != nil {
		return err
	}

	sum, err := p.Run(ctx)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"run_id":     sum.RunID,
		"genes":      len(sum.Genes),
		"unresolved": len(sum.Unresolved),
		"failed":     len(sum.Failed),
	}).Info("done")
	return nil
}

func newTransport(cfg *config.Config, name string, src config.Source, log logrus.FieldLogger, rec *metrics.Recorder) *transport.Client {
	limiter, rl := cfg.Limiter(name)
	return transport.New(name, limiter, rl.MaxRetries, src.Timeout, log, transport.WithObserver(rec))
}

// wire builds every stage. The returned cleanup releases connections.
func wire(ctx context.Context, cfg *config.Config, f flags, log *logrus.Logger, rec *metrics.Recorder) (pipeline.Deps, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	hgncClient := hgnc.NewClient(newTransport(cfg, "hgnc", cfg.Sources.HGNC, log, rec), cfg.Sources.HGNC.BaseURL)
	mygeneClient := mygene.NewClient(newTransport(cfg, "mygene", cfg.Sources.MyGene, log, rec), cfg.Sources.MyGene.BaseURL)
	validator, err := validate.New(hgncClient, mygeneClient, validate.Options{
		Workers:     cfg.Pipeline.ValidationWorkers,
		GeneTimeout: cfg.Pipeline.GeneTimeout,
		CacheSize:   cfg.Pipeline.MemoSize,
	}, log)
	if err != nil {
		return pipeline.Deps{}, cleanup, err
	}

	deps := pipeline.Deps{
		Fetcher:   bioc.NewClient(newTransport(cfg, "bioc", cfg.Sources.BioC, log, rec), cfg.Sources.BioC.BaseURL),
		Annotator: bern2.NewClient(newTransport(cfg, "bern2", cfg.Sources.BERN2, log, rec), cfg.Sources.BERN2.BaseURL, log),
		Resolver:  validator,
		Metrics:   rec,
		Log:       log,
	}

	deps.Cache = stagecache.NewFileStore(cfg.Cache.Dir)
	if cfg.Cache.RedisURL != "" {
		store, err := stagecache.NewRedisStore(ctx, cfg.Cache.RedisURL, cfg.Cache.TTL)
		if err != nil {
			log.WithError(err).Warn("redis stage cache unavailable, using files")
		} else {
			deps.Cache = store
			closers = append(closers, func() { _ = store.Close() })
		}
	}

	if f.noPersist {
		return deps, cleanup, nil
	}

	db, err := database.NewDB(cfg.Database.DSN, cfg.Database.Debug)
	if err != nil {
		return pipeline.Deps{}, cleanup, &errs.PersistenceError{Op: "open", Key: cfg.Database.DSN, Err: err}
	}
	closers = append(closers, func() { _ = db.Close() })
	if err := migrations.RunMigrations(ctx, db, log); err != nil {
		return pipeline.Deps{}, cleanup, &errs.PersistenceError{Op: "migrate", Key: cfg.Database.DSN, Err: err}
	}
	deps.Saver = repositories.NewPersister(db, log)
	deps.Runs = repositories.NewRunLog(db)

	if cfg.Graph.URI != "" {
		sink, err := graphstore.Open(ctx, cfg.Graph.URI, cfg.Graph.User, cfg.Graph.Password, cfg.Graph.Database, log)
		if err != nil {
			log.WithError(err).Warn("graph export disabled")
		} else {
			sink.EnsureSchema(ctx)
			deps.Graph = sink
			closers = append(closers, func() { _ = sink.Close(context.Background()) })
		}
	}
	return deps, cleanup, nil
}

// snapshot renders the effective configuration without secrets.
func snapshot(cfg *config.Config) string {
	c := *cfg
	if c.Graph.Password != "" {
		c.Graph.Password = "redacted"
	}
	if c.Cache.RedisURL != "" {
		c.Cache.RedisURL = "redacted"
	}
	out, err := yaml.Marshal(&c)
	if err != nil {
		return fmt.Sprintf("pmid: %q", cfg.PMID)
	}
	return string(out)
}

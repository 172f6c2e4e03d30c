package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	ossignal "os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alexiavacaru/eur-ron-political-risk/internal/cache"
	"github.com/alexiavacaru/eur-ron-political-risk/internal/config"
	"github.com/alexiavacaru/eur-ron-political-risk/internal/dataset"
	"github.com/alexiavacaru/eur-ron-political-risk/internal/logging"
	"github.com/alexiavacaru/eur-ron-political-risk/internal/ml/models/iforest"
	"github.com/alexiavacaru/eur-ron-political-risk/internal/ml/pipeline"
	"github.com/alexiavacaru/eur-ron-political-risk/internal/ml/registry"
	"github.com/alexiavacaru/eur-ron-political-risk/internal/report"
	"github.com/alexiavacaru/eur-ron-political-risk/internal/tracing"

	"github.com/joho/godotenv"
)

var (
	loadEnvFunc        = godotenv.Load
	loadConfigFunc     = config.Load
	initTracerFunc     = tracing.InitTracer
	loadDatasetFunc    = dataset.Load
	newRedisClientFunc = cache.NewClient
	exitFunc           = os.Exit
)

type options struct {
	dataPath   string
	reportsDir string
	split      float64
	noGBT      bool
	parallel   bool
}

func main() {
	loadEnvFunc()

	ctx, stop := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "volrisk: %v\n", err)
		stop()
		exitFunc(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	cfg := loadConfigFunc()

	opts, err := parseOptions(args, cfg)
	if err != nil {
		return fmt.Errorf("parse options: %w", err)
	}

	logger, err := logging.New(logging.Config{Level: cfg.LogLevel})
	if err != nil {
		return err
	}

	tp, tracer, err := initTracerFunc(ctx, cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	if tp != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				logger.Warn().Err(err).Msg("tracer shutdown")
			}
		}()
	}

	set, err := loadDatasetFunc(opts.dataPath, dataset.Options{})
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}
	logger.Info().Str("path", opts.dataPath).Int("observations", set.Len()).Msg("dataset loaded")

	reg, err := registry.Default(registry.Options{
		LogRegMaxIter: cfg.LogRegMaxIter,
		ForestTrees:   cfg.ForestTrees,
		GBTRounds:     cfg.GBTRounds,
		Seed:          cfg.Seed,
		EnableGBT:     cfg.EnableGBT && !opts.noGBT,
	})
	if err != nil {
		return fmt.Errorf("build registry: %w", err)
	}

	svc := pipeline.NewService(tracer, logger, reg, pipeline.Config{
		SplitFraction: opts.split,
		Parallel:      opts.parallel,
		EnableShift:   cfg.EnableShift,
		IForest: iforest.TrainOptions{
			NumTrees:   cfg.IForestTrees,
			SampleSize: cfg.IForestSample,
		},
	})
	rep, err := svc.Run(ctx, set)
	if err != nil {
		return err
	}

	if err := report.Print(stdout, rep); err != nil {
		return fmt.Errorf("print report: %w", err)
	}
	paths, err := report.WriteArtifacts(opts.reportsDir, rep)
	if err != nil {
		return err
	}
	logger.Info().Strs("artifacts", paths).Msg("artifacts written")

	if cfg.RedisURL != "" {
		client, err := newRedisClientFunc(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, report not published")
			return nil
		}
		defer client.Close()
		pub := report.NewPublisher(client, cfg.RedisKeyPrefix, report.DefaultHistoryLimit)
		if err := pub.Publish(ctx, rep); err != nil {
			logger.Warn().Err(err).Msg("publish report")
			return nil
		}
		logger.Info().Str("key", pub.LatestKey()).Msg("report published")
	}
	return nil
}

// parseOptions reads CLI flags; unset flags fall back to the environment
// configuration.
func parseOptions(args []string, cfg *config.Config) (options, error) {
	fs := flag.NewFlagSet("volrisk", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	data := fs.String("data", cfg.DatasetPath, "modeling dataset (.csv or .xlsx), default from VOLRISK_DATASET")
	reports := fs.String("reports", cfg.ReportsDir, "directory for JSON/CSV artifacts, default from VOLRISK_REPORTS_DIR")
	split := fs.Float64("split", cfg.SplitFraction, "fraction of rows used for training, in (0,1)")
	noGBT := fs.Bool("no-gbt", false, "skip the gradient-boosted backend")
	parallel := fs.Bool("parallel", cfg.ParallelTrain, "train backends concurrently")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if fs.NArg() > 0 {
		return options{}, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	if strings.TrimSpace(*data) == "" {
		return options{}, fmt.Errorf("dataset path is required")
	}
	if *split <= 0 || *split >= 1 {
		return options{}, fmt.Errorf("split must be in (0,1), got %v", *split)
	}
	if strings.TrimSpace(*reports) == "" {
		return options{}, fmt.Errorf("reports directory is required")
	}

	return options{
		dataPath:   strings.TrimSpace(*data),
		reportsDir: strings.TrimSpace(*reports),
		split:      *split,
		noGBT:      *noGBT,
		parallel:   *parallel,
	}, nil
}

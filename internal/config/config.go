package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

type Config struct {
	DatasetPath string
	ReportsDir  string

	SplitFraction float64
	EnableGBT     bool
	ParallelTrain bool
	EnableShift   bool
	ForestTrees   int
	GBTRounds     int
	LogRegMaxIter int
	Seed          uint64
	IForestTrees  int
	IForestSample int

	RedisURL       string
	RedisKeyPrefix string

	OTLPEndpoint string
	LogLevel     string
}

func Load() *Config {
	cfg := &Config{
		RedisURL:     strings.TrimSpace(os.Getenv("REDIS_URL")),
		OTLPEndpoint: strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
	}

	cfg.DatasetPath = strings.TrimSpace(os.Getenv("VOLRISK_DATASET"))
	if cfg.DatasetPath == "" {
		cfg.DatasetPath = "modeling_dataset.csv"
	}

	cfg.ReportsDir = strings.TrimSpace(os.Getenv("VOLRISK_REPORTS_DIR"))
	if cfg.ReportsDir == "" {
		cfg.ReportsDir = "reports"
	}

	cfg.SplitFraction = 0.8
	if v := strings.TrimSpace(os.Getenv("ML_SPLIT_FRACTION")); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil && n > 0 && n < 1 {
			cfg.SplitFraction = n
		} else {
			log.Warn().Str("value", v).Msg("ignoring ML_SPLIT_FRACTION outside (0,1)")
		}
	}

	cfg.EnableGBT = true
	if v := strings.TrimSpace(os.Getenv("ML_ENABLE_GBT")); v != "" {
		if strings.EqualFold(v, "true") {
			cfg.EnableGBT = true
		} else if strings.EqualFold(v, "false") {
			cfg.EnableGBT = false
		}
	}

	cfg.ParallelTrain = strings.EqualFold(strings.TrimSpace(os.Getenv("ML_PARALLEL_TRAIN")), "true")

	cfg.EnableShift = true
	if v := strings.TrimSpace(os.Getenv("ML_ENABLE_SHIFT")); v != "" {
		if strings.EqualFold(v, "true") {
			cfg.EnableShift = true
		} else if strings.EqualFold(v, "false") {
			cfg.EnableShift = false
		}
	}

	cfg.ForestTrees = 400
	if v := strings.TrimSpace(os.Getenv("ML_FOREST_TREES")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ForestTrees = n
		}
	}

	cfg.GBTRounds = 400
	if v := strings.TrimSpace(os.Getenv("ML_GBT_ROUNDS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.GBTRounds = n
		}
	}

	cfg.LogRegMaxIter = 2000
	if v := strings.TrimSpace(os.Getenv("ML_LOGREG_MAX_ITER")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.LogRegMaxIter = n
		}
	}

	cfg.Seed = 42
	if v := strings.TrimSpace(os.Getenv("ML_SEED")); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Seed = n
		}
	}

	cfg.IForestTrees = 100
	if v := strings.TrimSpace(os.Getenv("ML_IFOREST_TREES")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.IForestTrees = n
		}
	}

	cfg.IForestSample = 256
	if v := strings.TrimSpace(os.Getenv("ML_IFOREST_SAMPLE_SIZE")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.IForestSample = n
		}
	}

	if cfg.RedisURL == "" {
		log.Debug().Msg("REDIS_URL not set, report publishing disabled")
	}
	cfg.RedisKeyPrefix = strings.TrimSpace(os.Getenv("REDIS_KEY_PREFIX"))
	if cfg.RedisKeyPrefix == "" {
		cfg.RedisKeyPrefix = "volrisk:report"
	}

	cfg.LogLevel = strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL")))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	return cfg
}

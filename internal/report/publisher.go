package report

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/alexiavacaru/eur-ron-political-risk/internal/ml/pipeline"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultKeyPrefix    = "volrisk:report"
	DefaultHistoryLimit = 50
)

// Publisher stores the latest report under <prefix>:latest and keeps a
// capped, newest-first list under <prefix>:history.
type Publisher struct {
	client       redis.Cmdable
	prefix       string
	historyLimit int64
}

func NewPublisher(client redis.Cmdable, prefix string, historyLimit int) *Publisher {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &Publisher{client: client, prefix: prefix, historyLimit: int64(historyLimit)}
}

func (p *Publisher) LatestKey() string {
	return p.prefix + ":latest"
}

func (p *Publisher) HistoryKey() string {
	return p.prefix + ":history"
}

// Publish writes the report atomically.
func (p *Publisher) Publish(ctx context.Context, r *pipeline.Report) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	pipe := p.client.TxPipeline()
	pipe.Set(ctx, p.LatestKey(), data, 0)
	pipe.LPush(ctx, p.HistoryKey(), data)
	pipe.LTrim(ctx, p.HistoryKey(), 0, p.historyLimit-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish report %s: %w", r.RunID, err)
	}
	return nil
}

// Latest reads back the most recently published report.
func (p *Publisher) Latest(ctx context.Context) (*pipeline.Report, error) {
	data, err := p.client.Get(ctx, p.LatestKey()).Bytes()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p.LatestKey(), err)
	}
	var r pipeline.Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &r, nil
}

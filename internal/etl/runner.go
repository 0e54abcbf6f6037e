package etl

import (
	"context"
	"log/slog"
	"sync"

	"xetra/internal/bucket"
	"xetra/internal/domain"
	"xetra/internal/meta"
	"xetra/internal/store"
)

// Outcome summarises one date of a backfill.
type Outcome struct {
	Date     string
	Rows     int
	CacheHit bool
}

// Runner starts pipelines against a fixed pair of stores. Runs are
// serialised, so callers in one process never race on the meta file.
type Runner struct {
	src  store.ObjectStore
	dst  store.ObjectStore
	cfg  Config
	log  *slog.Logger
	opts []Option

	mu sync.Mutex
}

// NewRunner returns a Runner whose default date is cfg.Source.InputDate.
func NewRunner(src, dst store.ObjectStore, cfg Config, log *slog.Logger, opts ...Option) *Runner {
	return &Runner{src: src, dst: dst, cfg: cfg, log: log, opts: opts}
}

// Config returns the runner's configuration.
func (r *Runner) Config() Config {
	return r.cfg
}

// Run processes date, or the configured input date when date is empty.
func (r *Runner) Run(ctx context.Context, date string) ([]domain.SummaryRow, error) {
	rows, _, err := r.run(ctx, date)
	return rows, err
}

func (r *Runner) run(ctx context.Context, date string) ([]domain.SummaryRow, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cfg := r.cfg
	if date != "" {
		cfg.Source.InputDate = date
	}
	p, err := New(r.src, r.dst, cfg, r.log, r.opts...)
	if err != nil {
		return nil, false, err
	}
	rows, err := p.Run(ctx)
	if err != nil {
		return nil, false, err
	}
	return rows, p.CacheHit(), nil
}

// Backfill runs the pipeline for each date in order and stops at the first
// error, returning the outcomes completed so far.
func (r *Runner) Backfill(ctx context.Context, dates []string) ([]Outcome, error) {
	out := make([]Outcome, 0, len(dates))
	for _, d := range dates {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		rows, hit, err := r.run(ctx, d)
		if err != nil {
			return out, err
		}
		out = append(out, Outcome{Date: d, Rows: len(rows), CacheHit: hit})
	}
	return out, nil
}

// RebuildMeta rewrites the meta file from the outputs present in the target
// store.
func (r *Runner) RebuildMeta(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var o options
	for _, opt := range r.opts {
		opt(&o)
	}
	target := bucket.NewTarget(r.dst, r.cfg.Target, r.log)
	return meta.New(r.dst, r.cfg.Source.DateFormat, r.log, o.metaOpts...).Rebuild(ctx, target)
}

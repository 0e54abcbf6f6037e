// Package etl runs the daily Xetra job for one business date: extract ticks
// (or a cached result), aggregate them into daily summaries, write the
// summaries and mark the date processed in the meta file.
package etl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"xetra/internal/bucket"
	"xetra/internal/domain"
	"xetra/internal/meta"
	"xetra/internal/store"
	"xetra/internal/transform"
	"xetra/internal/util"
)

// ErrStepOrder is returned when a step is called before the one it depends on.
var ErrStepOrder = errors.New("pipeline step called out of order")

// Config is the immutable configuration of a pipeline run.
type Config struct {
	Source bucket.SourceConfig
	Target bucket.TargetConfig
}

// Option customises a Pipeline.
type Option func(*options)

type options struct {
	metaOpts []meta.Option
}

// WithClock sets the clock used to stamp meta records.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.metaOpts = append(o.metaOpts, meta.WithClock(now)) }
}

// WithMetaKey overrides the meta file key in the target store.
func WithMetaKey(key string) Option {
	return func(o *options) { o.metaOpts = append(o.metaOpts, meta.WithKey(key)) }
}

// Pipeline processes Config.Source.InputDate. It is not safe for concurrent
// use, and two pipelines must not share a target store at the same time.
type Pipeline struct {
	cfg    Config
	date   time.Time
	source *bucket.Source
	target *bucket.Target
	meta   *meta.Index
	log    *slog.Logger

	state       State
	extracted   Extraction
	transformed Transformation
	loaded      []domain.SummaryRow
}

// New builds a pipeline reading ticks from src and writing summaries and the
// meta file to dst. An input date that does not match the source date format
// fails with *util.DateFormatError.
func New(src, dst store.ObjectStore, cfg Config, log *slog.Logger, opts ...Option) (*Pipeline, error) {
	date, err := util.ParseDate(cfg.Source.InputDate, cfg.Source.DateFormat)
	if err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	log = log.With("run_id", uuid.NewString(), "date", cfg.Source.InputDate)
	return &Pipeline{
		cfg:    cfg,
		date:   date,
		source: bucket.NewSource(src, cfg.Source, log),
		target: bucket.NewTarget(dst, cfg.Target, log),
		meta:   meta.New(dst, cfg.Source.DateFormat, log, o.metaOpts...),
		log:    log,
	}, nil
}

// State returns how far the pipeline has advanced.
func (p *Pipeline) State() State {
	return p.state
}

// Key returns the output key of the input date.
func (p *Pipeline) Key() string {
	return p.target.Key(p.date)
}

// CacheHit reports whether Extract took its result from the meta-indexed
// output instead of the source store.
func (p *Pipeline) CacheHit() bool {
	_, ok := p.extracted.(Cached)
	return ok
}

// Extract reads the summaries of an already processed date from the target
// store, or the ticks of the trading window from the source store.
func (p *Pipeline) Extract(ctx context.Context) (Extraction, error) {
	if p.state >= Extracted {
		return p.extracted, nil
	}

	processed, err := p.meta.DateIsProcessed(ctx, p.cfg.Source.InputDate)
	if err != nil {
		return nil, fmt.Errorf("checking meta file: %w", err)
	}

	if processed {
		key := p.Key()
		res := p.target.ReadSummaries(ctx, key)
		if res.Status != bucket.ReadOK {
			p.log.Info("cached output has no rows",
				"key", key,
				"status", res.Status.String(),
				"error", res.Err,
			)
		}
		p.log.Info("date already processed, using cached output", "key", key, "rows", len(res.Rows))
		p.extracted = Cached{Rows: res.Rows}
	} else {
		ticks, err := p.source.ReadObjects(ctx, p.cfg.Source.InputDate)
		if err != nil {
			return nil, fmt.Errorf("reading source objects: %w", err)
		}
		p.extracted = Fresh{Ticks: ticks}
	}

	p.state = Extracted
	return p.extracted, nil
}

// Transform aggregates fresh ticks. Cached and empty extractions pass
// through as Resolved.
func (p *Pipeline) Transform(ctx context.Context) (Transformation, error) {
	if p.state >= Transformed {
		return p.transformed, nil
	}
	if p.state < Extracted {
		return nil, fmt.Errorf("transform before extract: %w", ErrStepOrder)
	}

	switch ext := p.extracted.(type) {
	case Cached:
		p.transformed = Resolved{Rows: ext.Rows}
	case Fresh:
		if len(ext.Ticks) == 0 {
			p.log.Info("no source rows in trading window, nothing to aggregate")
			p.transformed = Resolved{}
			break
		}
		rows, st := transform.Aggregate(ext.Ticks, p.date, p.cfg.Source.DateFormat)
		p.log.Info("aggregated ticks",
			"ticks", st.Input,
			"incomplete", st.Incomplete,
			"bad_date", st.BadDate,
			"groups", st.Groups,
			"rows", st.Output,
		)
		p.transformed = Pending{Rows: rows}
	default:
		return nil, fmt.Errorf("unexpected extraction %T", ext)
	}

	p.state = Transformed
	return p.transformed, nil
}

// Load writes pending rows under the output key and records the date in
// the meta file. The meta file is updated even when there were no rows to
// write. Resolved rows are returned without touching the store.
func (p *Pipeline) Load(ctx context.Context) ([]domain.SummaryRow, error) {
	if p.state >= Loaded {
		return p.loaded, nil
	}
	if p.state < Transformed {
		return nil, fmt.Errorf("load before transform: %w", ErrStepOrder)
	}

	switch tr := p.transformed.(type) {
	case Resolved:
		p.loaded = tr.Rows
	case Pending:
		written, err := p.target.WriteSummaries(ctx, tr.Rows, p.Key(), p.target.Format())
		if err != nil {
			return nil, err
		}
		if !written {
			p.log.Info("no rows for date, recording it as processed anyway")
		}
		if err := p.meta.RecordProcessed(ctx, p.cfg.Source.InputDate); err != nil {
			return nil, err
		}
		p.loaded = tr.Rows
	default:
		return nil, fmt.Errorf("unexpected transformation %T", tr)
	}

	p.state = Loaded
	return p.loaded, nil
}

// Run extracts, transforms and loads in order and returns the summaries of
// the input date.
func (p *Pipeline) Run(ctx context.Context) ([]domain.SummaryRow, error) {
	if _, err := p.Extract(ctx); err != nil {
		return nil, err
	}
	if _, err := p.Transform(ctx); err != nil {
		return nil, err
	}
	rows, err := p.Load(ctx)
	if err != nil {
		return nil, err
	}
	p.log.Info("pipeline finished", "rows", len(rows), "cache_hit", p.CacheHit())
	return rows, nil
}

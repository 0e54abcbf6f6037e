package bucket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"xetra/internal/domain"
	"xetra/internal/store"
	"xetra/internal/util"
)

// Target writes and re-reads daily summary objects.
type Target struct {
	store store.ObjectStore
	cfg   TargetConfig
	log   *slog.Logger
}

// NewTarget wraps the object store receiving daily summaries.
func NewTarget(s store.ObjectStore, cfg TargetConfig, log *slog.Logger) *Target {
	return &Target{store: s, cfg: cfg, log: log}
}

// Store returns the underlying object store.
func (b *Target) Store() store.ObjectStore {
	return b.store
}

// Key returns the output key for a business date.
func (b *Target) Key(date time.Time) string {
	return b.cfg.Key(date)
}

// Format returns the configured output format.
func (b *Target) Format() store.Format {
	return b.cfg.Format
}

// ReadSummaries decodes a previously written summary object in the
// configured format. Like Source.ReadObject it fails soft.
func (b *Target) ReadSummaries(ctx context.Context, key string) Read[domain.SummaryRow] {
	b.log.Debug("reading target object", "location", b.store.Location(), "key", key)

	body, err := b.store.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return Read[domain.SummaryRow]{Status: ReadMissing}
	}
	if err != nil {
		return Read[domain.SummaryRow]{Status: ReadUnreadable, Err: err}
	}

	rows, err := decodeSummaries(body, b.cfg.Format, b.cfg)
	if err != nil {
		return Read[domain.SummaryRow]{Status: ReadMalformed, Err: err}
	}
	if len(rows) == 0 {
		return Read[domain.SummaryRow]{Status: ReadEmpty}
	}
	return Read[domain.SummaryRow]{Rows: rows, Status: ReadOK}
}

// WriteSummaries serializes rows in format and stores them under key. An
// empty row set is not written and reports false with a nil error.
func (b *Target) WriteSummaries(ctx context.Context, rows []domain.SummaryRow, key string, format store.Format) (bool, error) {
	if len(rows) == 0 {
		b.log.Info("no summary rows, nothing written", "key", key)
		return false, nil
	}

	body, err := encodeSummaries(rows, format, b.cfg)
	if err != nil {
		var ufe *store.UnsupportedFormatError
		if errors.As(err, &ufe) {
			b.log.Error("file format not supported for writing", "format", ufe.Format, "key", key)
		}
		return false, err
	}

	b.log.Info("writing file", "location", b.store.Location(), "key", key)
	if err := b.store.Put(ctx, key, body); err != nil {
		return false, fmt.Errorf("writing summaries to %s: %w", key, err)
	}
	return true, nil
}

// ListExistingDates scans the output prefix and returns the business dates
// embedded in the output keys, rendered in dateFormat, sorted and unique.
// Keys that do not follow the output key scheme are skipped.
func (b *Target) ListExistingDates(ctx context.Context, dateFormat string) ([]string, error) {
	keys, err := b.store.List(ctx, b.cfg.KeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("listing outputs under %q: %w", b.cfg.KeyPrefix, err)
	}

	seen := make(map[string]struct{}, len(keys))
	var dates []string
	for _, key := range keys {
		name := strings.TrimPrefix(key, b.cfg.KeyPrefix)
		if i := strings.LastIndexByte(name, '.'); i >= 0 {
			name = name[:i]
		}
		d, err := util.ParseDate(name, b.cfg.KeyDateFormat)
		if err != nil {
			b.log.Warn("output key does not embed a date", "key", key)
			continue
		}
		ds := util.FormatDate(d, dateFormat)
		if _, ok := seen[ds]; ok {
			continue
		}
		seen[ds] = struct{}{}
		dates = append(dates, ds)
	}
	sort.Slice(dates, func(i, j int) bool {
		di, _ := util.ParseDate(dates[i], dateFormat)
		dj, _ := util.ParseDate(dates[j], dateFormat)
		return di.Before(dj)
	})
	return dates, nil
}

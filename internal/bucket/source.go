package bucket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"xetra/internal/domain"
	"xetra/internal/store"
	"xetra/internal/util"
)

// Source reads raw tick CSV objects, keyed under a per-date prefix such as
// "2021-04-16/2021-04-16_BINS_XETR08.csv".
type Source struct {
	store store.ObjectStore
	cfg   SourceConfig
	log   *slog.Logger
}

// NewSource wraps an object store holding tick files.
func NewSource(s store.ObjectStore, cfg SourceConfig, log *slog.Logger) *Source {
	return &Source{store: s, cfg: cfg, log: log}
}

// ListKeysByDatePrefix lists every key that starts with the date prefix.
func (b *Source) ListKeysByDatePrefix(ctx context.Context, prefix string) ([]string, error) {
	keys, err := b.store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("listing source keys for %s: %w", prefix, err)
	}
	return keys, nil
}

// ReadObject decodes one tick file. It never fails: a missing, unreadable,
// malformed or header-only object yields no rows, and the returned status
// says which case applied.
func (b *Source) ReadObject(ctx context.Context, key string) Read[domain.TickRow] {
	b.log.Debug("reading source object", "location", b.store.Location(), "key", key)

	body, err := b.store.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return Read[domain.TickRow]{Status: ReadMissing}
	}
	if err != nil {
		return Read[domain.TickRow]{Status: ReadUnreadable, Err: err}
	}

	rows, err := decodeTicks(body, b.cfg)
	if err != nil {
		return Read[domain.TickRow]{Status: ReadMalformed, Err: err}
	}
	if len(rows) == 0 {
		return Read[domain.TickRow]{Status: ReadEmpty}
	}
	return Read[domain.TickRow]{Rows: rows, Status: ReadOK}
}

// ReadObjects reads every tick file in the trading window of date, that is
// the previous trading day and date itself. A date that does not match the
// source date format fails with *util.DateFormatError before any I/O.
func (b *Source) ReadObjects(ctx context.Context, date string) ([]domain.TickRow, error) {
	window, err := util.TradingWindow(date, b.cfg.DateFormat)
	if err != nil {
		return nil, err
	}

	var keys []string
	for _, d := range window {
		k, err := b.ListKeysByDatePrefix(ctx, d)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k...)
	}
	sort.Strings(keys)

	var rows []domain.TickRow
	for _, key := range keys {
		res := b.ReadObject(ctx, key)
		if res.Status != ReadOK {
			b.log.Info("skipping source object",
				"key", key,
				"status", res.Status.String(),
				"error", res.Err,
			)
			continue
		}
		rows = append(rows, res.Rows...)
	}

	b.log.Info("read source objects",
		"window", window,
		"objects", len(keys),
		"rows", len(rows),
	)
	return rows, nil
}

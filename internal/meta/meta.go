// Package meta maintains the meta file: a two-column CSV object in the
// target store listing every business date the job has fully processed and
// when. The object is rewritten whole on every update, so two concurrent
// writers can lose each other's rows; callers must run one job per target
// store at a time.
package meta

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"xetra/internal/store"
	"xetra/internal/util"
)

const (
	// DefaultKey is the object key of the meta file.
	DefaultKey = "meta.csv"

	ColDate           = "date"
	ColProcessingTime = "processing_time"

	// TimestampFormat is the strftime format of the processing_time column.
	TimestampFormat = "%Y-%m-%d %H:%M:%S"
)

// MetaSchemaError reports a meta file whose header is not exactly
// {date, processing_time}.
type MetaSchemaError struct {
	Key     string
	Columns []string
}

func (e *MetaSchemaError) Error() string {
	return fmt.Sprintf("meta file %s has columns %v, want [%s %s]", e.Key, e.Columns, ColDate, ColProcessingTime)
}

// DateLister reports the business dates that already have an output object.
type DateLister interface {
	ListExistingDates(ctx context.Context, dateFormat string) ([]string, error)
}

// Index reads and updates the meta file.
type Index struct {
	store      store.ObjectStore
	key        string
	dateFormat string
	now        func() time.Time
	log        *slog.Logger
}

// Option customises an Index.
type Option func(*Index)

// WithKey overrides the meta file key.
func WithKey(key string) Option {
	return func(ix *Index) { ix.key = key }
}

// WithClock overrides the clock used for processing timestamps.
func WithClock(now func() time.Time) Option {
	return func(ix *Index) { ix.now = now }
}

// New returns an Index over the meta file in s. dateFormat is the strftime
// format of the date column; it is only used by Rebuild.
func New(s store.ObjectStore, dateFormat string, log *slog.Logger, opts ...Option) *Index {
	ix := &Index{
		store:      s,
		key:        DefaultKey,
		dateFormat: dateFormat,
		now:        time.Now,
		log:        log,
	}
	for _, o := range opts {
		o(ix)
	}
	return ix
}

// Key returns the meta file key.
func (ix *Index) Key() string {
	return ix.key
}

// Records returns every row of the meta file in file order. A missing meta
// file yields no records and no error.
func (ix *Index) Records(ctx context.Context) ([][2]string, error) {
	ix.log.Debug("reading meta file", "location", ix.store.Location(), "key", ix.key)

	body, err := ix.store.Get(ctx, ix.key)
	if errors.Is(err, store.ErrNotFound) {
		ix.log.Info("no meta file yet", "key", ix.key)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading meta file %s: %w", ix.key, err)
	}
	return ix.parse(body)
}

// DateIsProcessed reports whether date appears in the meta file.
func (ix *Index) DateIsProcessed(ctx context.Context, date string) (bool, error) {
	recs, err := ix.Records(ctx)
	if err != nil {
		return false, err
	}
	n := 0
	for _, r := range recs {
		if r[0] == date {
			n++
		}
	}
	if n > 1 {
		ix.log.Warn("date recorded more than once in meta file", "date", date, "count", n)
	}
	return n > 0, nil
}

// RecordProcessed appends {date, now} to the meta file, creating it if
// needed. A meta file with the wrong header fails with *MetaSchemaError and
// is left untouched.
func (ix *Index) RecordProcessed(ctx context.Context, date string) error {
	recs, err := ix.Records(ctx)
	if err != nil {
		return err
	}
	recs = append(recs, [2]string{date, util.FormatDate(ix.now(), TimestampFormat)})

	if err := ix.write(ctx, recs); err != nil {
		return err
	}
	ix.log.Info("updated meta file", "key", ix.key, "date", date, "dates", len(recs))
	return nil
}

// Rebuild overwrites the meta file with one row per business date that has
// an output object, all stamped with the current time.
func (ix *Index) Rebuild(ctx context.Context, outputs DateLister) error {
	dates, err := outputs.ListExistingDates(ctx, ix.dateFormat)
	if err != nil {
		return err
	}
	ts := util.FormatDate(ix.now(), TimestampFormat)
	recs := make([][2]string, len(dates))
	for i, d := range dates {
		recs[i] = [2]string{d, ts}
	}

	if err := ix.write(ctx, recs); err != nil {
		return err
	}
	ix.log.Info("rebuilt meta file", "key", ix.key, "dates", len(recs))
	return nil
}

// parse decodes the meta CSV. Column order in the file may vary; rows are
// returned as {date, processing_time}.
func (ix *Index) parse(body []byte) ([][2]string, error) {
	r := csv.NewReader(bytes.NewReader(body))
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, &MetaSchemaError{Key: ix.key}
	}
	if err != nil {
		return nil, fmt.Errorf("reading meta file %s: %w", ix.key, err)
	}

	dateIdx, tsIdx, ok := schemaIndexes(header)
	if !ok {
		return nil, &MetaSchemaError{Key: ix.key, Columns: header}
	}

	var recs [][2]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading meta file %s: %w", ix.key, err)
		}
		recs = append(recs, [2]string{strings.TrimSpace(rec[dateIdx]), strings.TrimSpace(rec[tsIdx])})
	}
	return recs, nil
}

// schemaIndexes checks that header holds exactly the two meta columns, in
// any order.
func schemaIndexes(header []string) (dateIdx, tsIdx int, ok bool) {
	if len(header) != 2 {
		return 0, 0, false
	}
	cols := []string{strings.TrimSpace(header[0]), strings.TrimSpace(header[1])}
	sorted := append([]string(nil), cols...)
	sort.Strings(sorted)
	if sorted[0] != ColDate || sorted[1] != ColProcessingTime {
		return 0, 0, false
	}
	if cols[0] == ColDate {
		return 0, 1, true
	}
	return 1, 0, true
}

func (ix *Index) write(ctx context.Context, recs [][2]string) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Write([]string{ColDate, ColProcessingTime})
	for _, r := range recs {
		w.Write(r[:])
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("encoding meta file: %w", err)
	}

	ix.log.Info("writing file", "location", ix.store.Location(), "key", ix.key)
	if err := ix.store.Put(ctx, ix.key, buf.Bytes()); err != nil {
		return fmt.Errorf("writing meta file %s: %w", ix.key, err)
	}
	return nil
}

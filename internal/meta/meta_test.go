package meta

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"xetra/internal/store"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func fixedClock() time.Time {
	return time.Date(2021, 4, 20, 6, 30, 0, 0, time.UTC)
}

func newTestIndex(t *testing.T) (*Index, *store.FSStore) {
	t.Helper()
	s := store.NewFSStore(t.TempDir())
	return New(s, "%Y-%m-%d", discard, WithClock(fixedClock)), s
}

func TestRecordProcessedRoundTrip(t *testing.T) {
	ix, s := newTestIndex(t)
	ctx := context.Background()

	ok, err := ix.DateIsProcessed(ctx, "2021-04-19")
	if err != nil {
		t.Fatalf("DateIsProcessed on missing meta: %v", err)
	}
	if ok {
		t.Fatal("no date should be processed before the meta file exists")
	}

	if err := ix.RecordProcessed(ctx, "2021-04-19"); err != nil {
		t.Fatalf("RecordProcessed: %v", err)
	}

	ok, err = ix.DateIsProcessed(ctx, "2021-04-19")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("2021-04-19 should be processed after RecordProcessed")
	}
	ok, _ = ix.DateIsProcessed(ctx, "2021-04-20")
	if ok {
		t.Error("2021-04-20 was never recorded")
	}

	body, err := s.Get(ctx, DefaultKey)
	if err != nil {
		t.Fatal(err)
	}
	want := "date,processing_time\n2021-04-19,2021-04-20 06:30:00\n"
	if string(body) != want {
		t.Errorf("meta file =\n%s\nwant\n%s", body, want)
	}
}

func TestRecordProcessedAppends(t *testing.T) {
	ix, s := newTestIndex(t)
	ctx := context.Background()

	existing := "date,processing_time\n2021-09-13,2021-09-14 07:00:00\n"
	if err := s.Put(ctx, DefaultKey, []byte(existing)); err != nil {
		t.Fatal(err)
	}
	if err := ix.RecordProcessed(ctx, "2021-09-14"); err != nil {
		t.Fatalf("RecordProcessed: %v", err)
	}

	recs, err := ix.Records(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Fatalf("Records = %v, want 2 rows", recs)
	}
	if recs[0] != [2]string{"2021-09-13", "2021-09-14 07:00:00"} {
		t.Errorf("existing row changed: %v", recs[0])
	}
	if recs[1] != [2]string{"2021-09-14", "2021-04-20 06:30:00"} {
		t.Errorf("appended row = %v", recs[1])
	}
}

func TestRecordProcessedColumnOrder(t *testing.T) {
	ix, s := newTestIndex(t)
	ctx := context.Background()

	if err := s.Put(ctx, DefaultKey, []byte("processing_time,date\n2021-09-14 07:00:00,2021-09-13\n")); err != nil {
		t.Fatal(err)
	}
	ok, err := ix.DateIsProcessed(ctx, "2021-09-13")
	if err != nil {
		t.Fatalf("DateIsProcessed: %v", err)
	}
	if !ok {
		t.Error("swapped column order should still be readable")
	}
}

func TestRecordProcessedSchemaMismatch(t *testing.T) {
	ix, s := newTestIndex(t)
	ctx := context.Background()

	before := []byte("wrong_column,processing_time\n2021-09-13,2021-09-14 07:00:00\n")
	if err := s.Put(ctx, DefaultKey, before); err != nil {
		t.Fatal(err)
	}

	err := ix.RecordProcessed(ctx, "2021-09-14")
	var mse *MetaSchemaError
	if !errors.As(err, &mse) {
		t.Fatalf("RecordProcessed error = %v, want *MetaSchemaError", err)
	}

	after, err := s.Get(ctx, DefaultKey)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(before, after) {
		t.Errorf("meta file changed after schema error:\n%s", after)
	}
}

func TestSchemaIndexes(t *testing.T) {
	tests := []struct {
		header []string
		ok     bool
	}{
		{[]string{"date", "processing_time"}, true},
		{[]string{"processing_time", "date"}, true},
		{[]string{"date"}, false},
		{[]string{"date", "date"}, false},
		{[]string{"date", "processing_time", "extra"}, false},
		{[]string{"wrong_column", "processing_time"}, false},
	}
	for _, tt := range tests {
		_, _, ok := schemaIndexes(tt.header)
		if ok != tt.ok {
			t.Errorf("schemaIndexes(%v) ok = %v, want %v", tt.header, ok, tt.ok)
		}
	}
}

type stubLister []string

func (l stubLister) ListExistingDates(context.Context, string) ([]string, error) {
	return l, nil
}

func TestRebuild(t *testing.T) {
	ix, s := newTestIndex(t)
	ctx := context.Background()

	// Rebuild replaces whatever was there, including a corrupt file.
	if err := s.Put(ctx, DefaultKey, []byte("garbage\n")); err != nil {
		t.Fatal(err)
	}
	if err := ix.Rebuild(ctx, stubLister{"2021-04-16", "2021-04-19"}); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	recs, err := ix.Records(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Fatalf("Records after rebuild = %v", recs)
	}
	for _, r := range recs {
		if r[1] != "2021-04-20 06:30:00" {
			t.Errorf("processing_time = %q, want the rebuild time", r[1])
		}
	}
}

func TestDateIsProcessedCorruptMeta(t *testing.T) {
	ix, s := newTestIndex(t)
	ctx := context.Background()

	if err := s.Put(ctx, DefaultKey, []byte("isin,when\nX,Y\n")); err != nil {
		t.Fatal(err)
	}
	_, err := ix.DateIsProcessed(ctx, "2021-04-19")
	var mse *MetaSchemaError
	if !errors.As(err, &mse) {
		t.Errorf("DateIsProcessed error = %v, want *MetaSchemaError", err)
	}
}

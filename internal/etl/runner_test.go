package etl

import (
	"context"
	"testing"

	"xetra/internal/store"
)

func TestRunnerBackfill(t *testing.T) {
	f := newFixture(t)
	seedFriday(t, f.src)
	seedMonday(t, f.src)
	r := NewRunner(f.src, f.dst, testConfig("2021-04-19", store.FormatCSV), discard, WithClock(fixedClock))
	ctx := context.Background()

	dates := []string{"2021-04-16", "2021-04-19"}
	out, err := r.Backfill(ctx, dates)
	if err != nil {
		t.Fatalf("Backfill: %v", err)
	}
	want := []Outcome{
		{Date: "2021-04-16", Rows: 1},
		{Date: "2021-04-19", Rows: 2},
	}
	if len(out) != len(want) {
		t.Fatalf("got %d outcomes, want %d", len(out), len(want))
	}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("outcome %d = %+v, want %+v", i, out[i], want[i])
		}
	}

	out, err = r.Backfill(ctx, dates)
	if err != nil {
		t.Fatal(err)
	}
	for _, o := range out {
		if !o.CacheHit {
			t.Errorf("%s: second backfill should be a cache hit", o.Date)
		}
	}
}

func TestRunnerDefaultDate(t *testing.T) {
	f := newFixture(t)
	seedFriday(t, f.src)
	seedMonday(t, f.src)
	r := NewRunner(f.src, f.dst, testConfig("2021-04-19", store.FormatCSV), discard)

	rows, err := r.Run(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[0].Date != "2021-04-19" {
		t.Errorf("Run(\"\") = %+v, want the configured date's 2 rows", rows)
	}
}

func TestRunnerRebuildMeta(t *testing.T) {
	f := newFixture(t)
	seedFriday(t, f.src)
	seedMonday(t, f.src)
	r := NewRunner(f.src, f.dst, testConfig("2021-04-19", store.FormatParquet), discard, WithClock(fixedClock))
	ctx := context.Background()

	if _, err := r.Backfill(ctx, []string{"2021-04-16", "2021-04-19"}); err != nil {
		t.Fatal(err)
	}
	// Corrupt the meta file; a rebuild recovers it from the outputs.
	put(t, f.dst, "meta.csv", "garbage\n")
	if err := r.RebuildMeta(ctx); err != nil {
		t.Fatalf("RebuildMeta: %v", err)
	}

	body, err := f.dst.ObjectStore.Get(ctx, "meta.csv")
	if err != nil {
		t.Fatal(err)
	}
	want := "date,processing_time\n2021-04-16,2021-04-20 06:00:00\n2021-04-19,2021-04-20 06:00:00\n"
	if string(body) != want {
		t.Errorf("meta.csv =\n%s\nwant\n%s", body, want)
	}

	f.src.reset()
	if _, err := r.Run(ctx, "2021-04-19"); err != nil {
		t.Fatal(err)
	}
	if f.src.calls() != 0 {
		t.Error("run after rebuild should be served from the cache")
	}
}

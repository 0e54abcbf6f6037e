package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"xetra/internal/bucket"
	"xetra/internal/domain"
	"xetra/internal/util"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type stubRunner struct {
	dates []string
	rows  []domain.SummaryRow
	err   error
}

func (s *stubRunner) Run(_ context.Context, date string) ([]domain.SummaryRow, error) {
	s.dates = append(s.dates, date)
	return s.rows, s.err
}

func targetConfig() bucket.TargetConfig {
	return bucket.TargetConfig{
		ColISIN:            "isin",
		ColDate:            "date",
		ColOpeningPrice:    "opening_price_eur",
		ColClosingPrice:    "closing_price_eur",
		ColMinPrice:        "minimum_price_eur",
		ColMaxPrice:        "maximum_price_eur",
		ColTradedVolume:    "daily_traded_volume",
		ColChangePrevClose: "change_prev_closing_%",
	}
}

func newTestServer(r Runner) *httptest.Server {
	return httptest.NewServer(NewServer(r, targetConfig(), "%Y-%m-%d", discard).Handler())
}

func sampleRows() []domain.SummaryRow {
	return []domain.SummaryRow{
		{
			ISIN:          "DE0005190003",
			Date:          "2021-04-19",
			OpeningPrice:  decimal.RequireFromString("84.1"),
			ClosingPrice:  decimal.RequireFromString("85.02"),
			MinPrice:      decimal.RequireFromString("83.9"),
			MaxPrice:      decimal.RequireFromString("85.5"),
			TradedVolume:  12345,
			ChangePrevPct: decimal.NewNullDecimal(decimal.RequireFromString("-1.25")),
		},
		{
			ISIN:         "DE0007164600",
			Date:         "2021-04-19",
			OpeningPrice: decimal.RequireFromString("120"),
			ClosingPrice: decimal.RequireFromString("121"),
			MinPrice:     decimal.RequireFromString("119"),
			MaxPrice:     decimal.RequireFromString("122"),
			TradedVolume: 10,
		},
	}
}

func TestDailyRecords(t *testing.T) {
	runner := &stubRunner{rows: sampleRows()}
	srv := newTestServer(runner)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/daily/2021-04-19")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var got []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	first := got[0]
	if first["isin"] != "DE0005190003" || first["date"] != "2021-04-19" {
		t.Errorf("first record = %v", first)
	}
	if first["closing_price_eur"] != 85.02 {
		t.Errorf("closing_price_eur = %v, want 85.02", first["closing_price_eur"])
	}
	if first["change_prev_closing_%"] != -1.25 {
		t.Errorf("change_prev_closing_%% = %v, want -1.25", first["change_prev_closing_%"])
	}
	if v, ok := got[1]["change_prev_closing_%"]; !ok || v != nil {
		t.Errorf("second record change = %v (present %v), want null", v, ok)
	}
}

func TestDailyDateNormalisation(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/daily", ""},
		{"/daily/2021-04-19", "2021-04-19"},
		{"/daily/20210419", "2021-04-19"},
		{"/daily/19.04.2021", "2021-04-19"},
		{"/daily/not-a-date", ""},
	}
	for _, tt := range tests {
		runner := &stubRunner{}
		srv := newTestServer(runner)

		resp, err := http.Get(srv.URL + tt.path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		srv.Close()

		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s: status = %d, want 200", tt.path, resp.StatusCode)
		}
		if len(runner.dates) != 1 || runner.dates[0] != tt.want {
			t.Errorf("%s: runner dates = %q, want [%q]", tt.path, runner.dates, tt.want)
		}
	}
}

func TestDailyEmptyIsJSONList(t *testing.T) {
	srv := newTestServer(&stubRunner{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/daily")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if got := strings.TrimSpace(string(body)); got != "[]" {
		t.Errorf("body = %s, want []", got)
	}
}

func TestDailyErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"bad date", &util.DateFormatError{Value: "x", Format: "%Y-%m-%d", Err: errors.New("bad")}, http.StatusBadRequest},
		{"store failure", errors.New("bucket unreachable"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(&stubRunner{err: tt.err})
			defer srv.Close()

			resp, err := http.Get(srv.URL + "/daily")
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			var body map[string]string
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body["error"] == "" {
				t.Errorf("error body = %v, %v", body, err)
			}
		})
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(&stubRunner{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(&stubRunner{})
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/daily", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

// failingWriter is a ResponseWriter whose body writes always fail.
type failingWriter struct{ header http.Header }

func (f *failingWriter) Header() http.Header { return f.header }
func (f *failingWriter) WriteHeader(int) {}
func (f *failingWriter) Write([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestWriteJSONLogsToServerLogger(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	s := NewServer(&stubRunner{}, targetConfig(), "%Y-%m-%d", log)

	s.writeJSON(&failingWriter{header: http.Header{}}, map[string]string{"status": "ok"})

	if !strings.Contains(buf.String(), "encoding JSON response") || !strings.Contains(buf.String(), "connection reset") {
		t.Errorf("server log = %q, want the encode failure", buf.String())
	}
}

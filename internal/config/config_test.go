package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"xetra/internal/store"
)

const fullYAML = `
source:
  input_date: "2021-04-19"
  input_date_format: "%Y-%m-%d"
  columns: [ISIN, Date, Time, StartPrice, MaxPrice, MinPrice, EndPrice, TradedVolume]
  col_isin: ISIN
  col_date: Date
  col_time: Time
  col_start_price: StartPrice
  col_end_price: EndPrice
  col_min_price: MinPrice
  col_max_price: MaxPrice
  col_traded_volume: TradedVolume
target:
  col_isin: isin
  col_date: date
  col_opening_price: opening_price_eur
  col_closing_price: closing_price_eur
  col_min_price: minimum_price_eur
  col_max_price: maximum_price_eur
  col_traded_volume: daily_traded_volume
  col_change_prev_close: change_prev_closing_%
  key: "daily/"
  key_date_format: "%Y%m%d"
  format: parquet
storage:
  backend: s3
  source_bucket: deutsche-boerse-xetra-pds
  target_bucket: xetra-daily
s3:
  source_endpoint: "https://s3.eu-central-1.amazonaws.com"
  target_endpoint: "https://s3.eu-central-1.amazonaws.com"
  access_key_env: XETRA_KEY
  secret_key_env: XETRA_SECRET
  retry_delay: 2s
server:
  port: 8000
logging:
  level: debug
  format: text
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "xetra.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

// clearEnv blanks every override so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	for _, k := range []string{
		"XETRA_INPUT_DATE", "XETRA_STORAGE_BACKEND", "DATA_DIR", "SQLITE_PATH",
		"XETRA_SOURCE_BUCKET", "XETRA_TARGET_BUCKET", "S3_SOURCE_ENDPOINT",
		"S3_TARGET_ENDPOINT", "LOG_LEVEL", "PORT",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(writeConfig(t, fullYAML))
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	// -- Source --
	if cfg.Source.InputDate != "2021-04-19" {
		t.Errorf("Source.InputDate = %q, want %q", cfg.Source.InputDate, "2021-04-19")
	}
	if len(cfg.Source.Columns) != 8 {
		t.Errorf("len(Source.Columns) = %d, want 8", len(cfg.Source.Columns))
	}

	// -- Storage / S3 --
	if cfg.Storage.Backend != "s3" {
		t.Errorf("Storage.Backend = %q, want %q", cfg.Storage.Backend, "s3")
	}
	if cfg.S3.AccessKeyEnv != "XETRA_KEY" {
		t.Errorf("S3.AccessKeyEnv = %q, want %q", cfg.S3.AccessKeyEnv, "XETRA_KEY")
	}
	if cfg.S3.RetryDelay != 2*time.Second {
		t.Errorf("S3.RetryDelay = %v, want 2s", cfg.S3.RetryDelay)
	}

	// -- Defaults --
	if cfg.S3.MaxAttempts != 3 {
		t.Errorf("S3.MaxAttempts = %d, want default 3", cfg.S3.MaxAttempts)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 8000)
	}
	if cfg.Server.GRPCPort != 9090 {
		t.Errorf("Server.GRPCPort = %d, want default 9090", cfg.Server.GRPCPort)
	}

	// -- Logging --
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Errorf("Logging = %+v, want debug/text", cfg.Logging)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("XETRA_INPUT_DATE", "2021-04-20")
	t.Setenv("XETRA_STORAGE_BACKEND", "sqlite")
	t.Setenv("SQLITE_PATH", "/tmp/x.db")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("PORT", "9999")

	cfg, err := Load(writeConfig(t, fullYAML))
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Source.InputDate != "2021-04-20" {
		t.Errorf("Source.InputDate = %q, want override", cfg.Source.InputDate)
	}
	if cfg.Storage.Backend != "sqlite" || cfg.Storage.SQLitePath != "/tmp/x.db" {
		t.Errorf("Storage = %+v, want sqlite at /tmp/x.db", cfg.Storage)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want warn", cfg.Logging.Level)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want 9999", cfg.Server.Port)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		replace [2]string
		wantErr string
	}{
		{"bad date", [2]string{`input_date: "2021-04-19"`, `input_date: "19.04.2021"`}, "source.input_date"},
		{"bad format", [2]string{"format: parquet", "format: xlsx"}, "target.format"},
		{"bad backend", [2]string{"backend: s3", "backend: ftp"}, "storage.backend"},
		{"missing column", [2]string{"col_time: Time", "col_time: \"\""}, "source.col_time"},
		{"column not projected", [2]string{"columns: [ISIN, Date, Time,", "columns: [ISIN, Date,"}, "source.col_time \"Time\" is not in source.columns"},
		{"projection of one column", [2]string{"columns: [ISIN, Date, Time, StartPrice, MaxPrice, MinPrice, EndPrice, TradedVolume]", "columns: [ISIN]"}, "source.col_traded_volume"},
		{"missing endpoint", [2]string{`source_endpoint: "https://s3.eu-central-1.amazonaws.com"`, ""}, "s3.source_endpoint"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			body := strings.Replace(fullYAML, tt.replace[0], tt.replace[1], 1)
			_, err := Load(writeConfig(t, body))
			if err == nil {
				t.Fatal("Load() succeeded, want validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load() of a missing file succeeded")
	}
}

func TestPipeline(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(writeConfig(t, fullYAML))
	if err != nil {
		t.Fatal(err)
	}
	pc, err := cfg.Pipeline()
	if err != nil {
		t.Fatalf("Pipeline() returned error: %v", err)
	}
	if pc.Target.Format != store.FormatParquet {
		t.Errorf("Target.Format = %v, want parquet", pc.Target.Format)
	}
	if pc.Source.DateFormat != "%Y-%m-%d" || pc.Source.ColStartPrice != "StartPrice" {
		t.Errorf("Source = %+v", pc.Source)
	}
	if pc.Target.KeyPrefix != "daily/" || pc.Target.ColChangePrevClose != "change_prev_closing_%" {
		t.Errorf("Target = %+v", pc.Target)
	}

	// The pipeline config does not alias the loaded slices.
	pc.Source.Columns[0] = "changed"
	if cfg.Source.Columns[0] != "ISIN" {
		t.Error("Pipeline() shares Source.Columns with the Config")
	}
}

func TestOpenStoresFS(t *testing.T) {
	cfg := &Config{Storage: Storage{
		Backend:      "fs",
		DataDir:      t.TempDir(),
		SourceBucket: "src",
		TargetBucket: "trg",
	}}
	st, err := cfg.OpenStores()
	if err != nil {
		t.Fatalf("OpenStores() returned error: %v", err)
	}
	defer st.Close()

	if !strings.HasSuffix(st.Source.Location(), "src") || !strings.HasSuffix(st.Target.Location(), "trg") {
		t.Errorf("locations = %s, %s", st.Source.Location(), st.Target.Location())
	}
}

func TestOpenStoresSQLite(t *testing.T) {
	cfg := &Config{Storage: Storage{
		Backend:      "sqlite",
		SQLitePath:   filepath.Join(t.TempDir(), "db", "xetra.db"),
		SourceBucket: "src",
		TargetBucket: "trg",
	}}
	st, err := cfg.OpenStores()
	if err != nil {
		t.Fatalf("OpenStores() returned error: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Errorf("Close() returned error: %v", err)
	}
}

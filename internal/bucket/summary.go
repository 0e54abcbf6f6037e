package bucket

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"xetra/internal/domain"
	"xetra/internal/store"
)

// SummaryRecord is the Parquet schema for daily summaries. Parquet column
// names are fixed; the TargetConfig column names apply to CSV output.
type SummaryRecord struct {
	ISIN          string   `parquet:"isin"`
	Date          string   `parquet:"date"`
	OpeningPrice  float64  `parquet:"opening_price"`
	ClosingPrice  float64  `parquet:"closing_price"`
	MinPrice      float64  `parquet:"minimum_price"`
	MaxPrice      float64  `parquet:"maximum_price"`
	TradedVolume  int64    `parquet:"daily_traded_volume"`
	ChangePrevPct *float64 `parquet:"change_prev_closing_pct,optional"`
}

func toRecord(r domain.SummaryRow) SummaryRecord {
	rec := SummaryRecord{
		ISIN:         r.ISIN,
		Date:         r.Date,
		OpeningPrice: r.OpeningPrice.InexactFloat64(),
		ClosingPrice: r.ClosingPrice.InexactFloat64(),
		MinPrice:     r.MinPrice.InexactFloat64(),
		MaxPrice:     r.MaxPrice.InexactFloat64(),
		TradedVolume: r.TradedVolume,
	}
	if r.ChangePrevPct.Valid {
		v := r.ChangePrevPct.Decimal.InexactFloat64()
		rec.ChangePrevPct = &v
	}
	return rec
}

func fromRecord(rec SummaryRecord) domain.SummaryRow {
	r := domain.SummaryRow{
		ISIN:         rec.ISIN,
		Date:         rec.Date,
		OpeningPrice: decimal.NewFromFloat(rec.OpeningPrice).Round(2),
		ClosingPrice: decimal.NewFromFloat(rec.ClosingPrice).Round(2),
		MinPrice:     decimal.NewFromFloat(rec.MinPrice).Round(2),
		MaxPrice:     decimal.NewFromFloat(rec.MaxPrice).Round(2),
		TradedVolume: rec.TradedVolume,
	}
	if rec.ChangePrevPct != nil {
		r.ChangePrevPct = decimal.NewNullDecimal(decimal.NewFromFloat(*rec.ChangePrevPct).Round(2))
	}
	return r
}

func (c TargetConfig) csvHeader() []string {
	return []string{
		c.ColISIN,
		c.ColDate,
		c.ColOpeningPrice,
		c.ColClosingPrice,
		c.ColMinPrice,
		c.ColMaxPrice,
		c.ColTradedVolume,
		c.ColChangePrevClose,
	}
}

// encodeSummaries serializes rows in the given format.
func encodeSummaries(rows []domain.SummaryRow, format store.Format, cfg TargetConfig) ([]byte, error) {
	switch format {
	case store.FormatCSV:
		return encodeSummaryCSV(rows, cfg)
	case store.FormatParquet:
		records := make([]SummaryRecord, len(rows))
		for i, r := range rows {
			records[i] = toRecord(r)
		}
		return store.EncodeParquet(records)
	default:
		return nil, &store.UnsupportedFormatError{Format: format.String()}
	}
}

// decodeSummaries parses a body written by encodeSummaries.
func decodeSummaries(body []byte, format store.Format, cfg TargetConfig) ([]domain.SummaryRow, error) {
	switch format {
	case store.FormatCSV:
		return decodeSummaryCSV(body, cfg)
	case store.FormatParquet:
		records, err := store.DecodeParquet[SummaryRecord](body)
		if err != nil {
			return nil, err
		}
		rows := make([]domain.SummaryRow, len(records))
		for i, rec := range records {
			rows[i] = fromRecord(rec)
		}
		return rows, nil
	default:
		return nil, &store.UnsupportedFormatError{Format: format.String()}
	}
}

func encodeSummaryCSV(rows []domain.SummaryRow, cfg TargetConfig) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(cfg.csvHeader()); err != nil {
		return nil, err
	}
	for _, r := range rows {
		pct := ""
		if r.ChangePrevPct.Valid {
			pct = r.ChangePrevPct.Decimal.StringFixed(2)
		}
		if err := w.Write([]string{
			r.ISIN,
			r.Date,
			r.OpeningPrice.StringFixed(2),
			r.ClosingPrice.StringFixed(2),
			r.MinPrice.StringFixed(2),
			r.MaxPrice.StringFixed(2),
			strconv.FormatInt(r.TradedVolume, 10),
			pct,
		}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeSummaryCSV(body []byte, cfg TargetConfig) ([]domain.SummaryRow, error) {
	r := csv.NewReader(bytes.NewReader(body))

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	cols := make([]int, 0, 8)
	for _, name := range cfg.csvHeader() {
		i, ok := idx[name]
		if !ok {
			return nil, fmt.Errorf("column %q not in header", name)
		}
		cols = append(cols, i)
	}

	var rows []domain.SummaryRow
	for line := 2; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading line %d: %w", line, err)
		}
		row, err := parseSummaryRecord(rec, cols)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseSummaryRecord(rec []string, cols []int) (domain.SummaryRow, error) {
	get := func(n int) string { return strings.TrimSpace(rec[cols[n]]) }

	var (
		row domain.SummaryRow
		err error
	)
	row.ISIN = get(0)
	row.Date = get(1)
	prices := []*decimal.Decimal{&row.OpeningPrice, &row.ClosingPrice, &row.MinPrice, &row.MaxPrice}
	for i, p := range prices {
		if *p, err = decimal.NewFromString(get(2 + i)); err != nil {
			return row, fmt.Errorf("parsing price %q: %w", get(2+i), err)
		}
	}
	if row.TradedVolume, err = strconv.ParseInt(get(6), 10, 64); err != nil {
		return row, fmt.Errorf("parsing volume %q: %w", get(6), err)
	}
	if s := get(7); s != "" {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return row, fmt.Errorf("parsing change %q: %w", s, err)
		}
		row.ChangePrevPct = decimal.NewNullDecimal(d)
	}
	return row, nil
}

package bucket

import (
	"bytes"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"xetra/internal/domain"
)

// decodeTicks parses a source CSV body into tick rows. Only columns in the
// projection are read; a projected column absent from the header is an
// error. Empty or non-numeric cells leave the field invalid so the
// aggregation can drop the row.
func decodeTicks(body []byte, cfg SourceConfig) ([]domain.TickRow, error) {
	r := csv.NewReader(bytes.NewReader(body))
	r.ReuseRecord = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		idx[strings.TrimSpace(h)] = i
	}

	projected := make(map[string]bool, len(cfg.Columns))
	for _, c := range cfg.Columns {
		if _, ok := idx[c]; !ok {
			return nil, fmt.Errorf("column %q not in header", c)
		}
		projected[c] = true
	}

	// col returns the header index of name, or -1 when the column is not
	// read.
	col := func(name string) int {
		if name == "" {
			return -1
		}
		if len(projected) > 0 && !projected[name] {
			return -1
		}
		i, ok := idx[name]
		if !ok {
			return -1
		}
		return i
	}
	var (
		iISIN   = col(cfg.ColISIN)
		iMnem   = col(cfg.ColMnemonic)
		iDate   = col(cfg.ColDate)
		iTime   = col(cfg.ColTime)
		iStart  = col(cfg.ColStartPrice)
		iEnd    = col(cfg.ColEndPrice)
		iMin    = col(cfg.ColMinPrice)
		iMax    = col(cfg.ColMaxPrice)
		iVolume = col(cfg.ColTradedVolume)
		iCcy    = col(cfg.ColCurrency)
	)

	var rows []domain.TickRow
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row %d: %w", len(rows)+1, err)
		}
		rows = append(rows, domain.TickRow{
			ISIN:         field(rec, iISIN),
			Mnemonic:     field(rec, iMnem),
			Date:         field(rec, iDate),
			Time:         field(rec, iTime),
			StartPrice:   decimalField(rec, iStart),
			EndPrice:     decimalField(rec, iEnd),
			MinPrice:     decimalField(rec, iMin),
			MaxPrice:     decimalField(rec, iMax),
			TradedVolume: intField(rec, iVolume),
			Currency:     field(rec, iCcy),
		})
	}
	return rows, nil
}

func field(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func decimalField(rec []string, i int) decimal.NullDecimal {
	s := field(rec, i)
	if s == "" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

// intField reads a traded volume. Negative or fractional values are invalid.
func intField(rec []string, i int) sql.NullInt64 {
	s := field(rec, i)
	if s == "" {
		return sql.NullInt64{}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n < 0 {
			return sql.NullInt64{}
		}
		return sql.NullInt64{Int64: n, Valid: true}
	}
	// Volumes occasionally arrive as "1200.0".
	d, err := decimal.NewFromString(s)
	if err != nil || !d.Equal(d.Truncate(0)) || d.IsNegative() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: d.IntPart(), Valid: true}
}

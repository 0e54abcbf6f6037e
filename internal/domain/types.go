// Package domain defines the row types that flow through the daily ETL job:
// raw trade ticks read from the source store and the per-security daily
// summaries written to the target store.
package domain

import (
	"database/sql"

	"github.com/shopspring/decimal"
)

// TickRow is one trade tick from a source CSV object. Fields that were
// absent or empty in the source are left invalid; see Complete.
type TickRow struct {
	ISIN         string
	Mnemonic     string
	Date         string // business date, in the source date format
	Time         string // time of day, "HH:MM"
	StartPrice   decimal.NullDecimal
	EndPrice     decimal.NullDecimal
	MinPrice     decimal.NullDecimal
	MaxPrice     decimal.NullDecimal
	TradedVolume sql.NullInt64
	Currency     string
}

// Complete reports whether every field the aggregation reads is present.
// EndPrice, Mnemonic and Currency are not consulted.
func (r TickRow) Complete() bool {
	return r.ISIN != "" &&
		r.Date != "" &&
		r.Time != "" &&
		r.StartPrice.Valid &&
		r.MinPrice.Valid &&
		r.MaxPrice.Valid &&
		r.TradedVolume.Valid
}

// SummaryRow is the daily aggregate for one (security, business date) pair.
type SummaryRow struct {
	ISIN          string
	Date          string
	OpeningPrice  decimal.Decimal
	ClosingPrice  decimal.Decimal
	MinPrice      decimal.Decimal
	MaxPrice      decimal.Decimal
	TradedVolume  int64
	ChangePrevPct decimal.NullDecimal // null when there is no prior trading day
}

// Package bucket adapts raw object stores into the source and target
// connectors of the daily job: listing tick files by date prefix, decoding
// them into rows, and encoding daily summaries under the output key scheme.
package bucket

import (
	"time"

	"xetra/internal/store"
	"xetra/internal/util"
)

// SourceConfig names the source CSV columns and the input date.
type SourceConfig struct {
	InputDate  string   // business date to process, in DateFormat
	DateFormat string   // strftime format of InputDate, source prefixes and the Date column
	Columns    []string // projection; empty reads every column

	ColISIN         string
	ColMnemonic     string
	ColDate         string
	ColTime         string
	ColStartPrice   string
	ColEndPrice     string
	ColMinPrice     string
	ColMaxPrice     string
	ColTradedVolume string
	ColCurrency     string
}

// TargetConfig names the output columns and the output key scheme.
type TargetConfig struct {
	ColISIN            string
	ColDate            string
	ColOpeningPrice    string
	ColClosingPrice    string
	ColMinPrice        string
	ColMaxPrice        string
	ColTradedVolume    string
	ColChangePrevClose string

	KeyPrefix     string // e.g. "daily/"
	KeyDateFormat string // strftime, e.g. "%Y%m%d"
	Format        store.Format
}

// Key returns the output key for a business date:
// "{KeyPrefix}{date in KeyDateFormat}.{Format}".
func (c TargetConfig) Key(date time.Time) string {
	return c.KeyPrefix + util.FormatDate(date, c.KeyDateFormat) + "." + c.Format.String()
}

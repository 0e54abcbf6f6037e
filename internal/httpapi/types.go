// Package httpapi serves daily summaries over HTTP. Requesting a date runs
// the pipeline for it, so the first request for a date does the work and
// later ones are served from the target store.
package httpapi

import (
	"encoding/json"

	"xetra/internal/bucket"
	"xetra/internal/domain"
)

// Record is one summary row keyed by the configured output column names,
// matching the columns of the CSV output.
type Record map[string]any

// toRecords renders rows with the target column names. Prices are JSON
// numbers with two decimals; a missing percent change is null.
func toRecords(rows []domain.SummaryRow, cfg bucket.TargetConfig) []Record {
	out := make([]Record, 0, len(rows))
	for _, r := range rows {
		var pct any
		if r.ChangePrevPct.Valid {
			pct = json.Number(r.ChangePrevPct.Decimal.StringFixed(2))
		}
		out = append(out, Record{
			cfg.ColISIN:            r.ISIN,
			cfg.ColDate:            r.Date,
			cfg.ColOpeningPrice:    json.Number(r.OpeningPrice.StringFixed(2)),
			cfg.ColClosingPrice:    json.Number(r.ClosingPrice.StringFixed(2)),
			cfg.ColMinPrice:        json.Number(r.MinPrice.StringFixed(2)),
			cfg.ColMaxPrice:        json.Number(r.MaxPrice.StringFixed(2)),
			cfg.ColTradedVolume:    r.TradedVolume,
			cfg.ColChangePrevClose: pct,
		})
	}
	return out
}

// Package transform aggregates raw Xetra trade ticks into one daily
// summary row per security.
package transform

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"xetra/internal/domain"
	"xetra/internal/util"
)

var hundred = decimal.NewFromInt(100)

// Stats describes what Aggregate discarded.
type Stats struct {
	Input      int
	Incomplete int // rows with a missing field
	BadDate    int // rows whose date does not parse with the date format
	Groups     int // (security, date) groups aggregated
	Output     int
}

// Aggregate turns ticks spanning the trading window of targetDate into one
// SummaryRow per security traded on targetDate.
//
// Opening and closing prices are both the StartPrice of the chronologically
// first and last tick of the day; EndPrice is never read. The percent change
// compares the closing price with the closing price of the security's
// previous date in the input, and is null without such a date or when that
// close is zero. All decimals are rounded to two places.
func Aggregate(ticks []domain.TickRow, targetDate time.Time, dateFormat string) ([]domain.SummaryRow, Stats) {
	st := Stats{Input: len(ticks)}

	type groupKey struct {
		isin string
		date time.Time
	}
	type accum struct {
		ticks []domain.TickRow
	}

	groups := make(map[groupKey]*accum)
	for _, t := range ticks {
		if !t.Complete() {
			st.Incomplete++
			continue
		}
		d, err := util.ParseDate(t.Date, dateFormat)
		if err != nil {
			st.BadDate++
			continue
		}
		k := groupKey{t.ISIN, d}
		a := groups[k]
		if a == nil {
			a = &accum{}
			groups[k] = a
		}
		a.ticks = append(a.ticks, t)
	}
	st.Groups = len(groups)

	type daily struct {
		date time.Time
		row  domain.SummaryRow
	}
	bySecurity := make(map[string][]daily)
	for k, a := range groups {
		bySecurity[k.isin] = append(bySecurity[k.isin], daily{k.date, reduce(a.ticks)})
	}

	var out []domain.SummaryRow
	for _, days := range bySecurity {
		sort.Slice(days, func(i, j int) bool { return days[i].date.Before(days[j].date) })

		for i := range days {
			if !days[i].date.Equal(targetDate) {
				continue
			}
			row := days[i].row
			if i > 0 {
				row.ChangePrevPct = pctChange(days[i-1].row.ClosingPrice, row.ClosingPrice)
			}
			out = append(out, round(row))
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ISIN < out[j].ISIN })
	st.Output = len(out)
	return out, st
}

// reduce aggregates the ticks of one (security, date) group.
func reduce(ticks []domain.TickRow) domain.SummaryRow {
	// A stable sort keeps file order for ticks sharing a time of day.
	sort.SliceStable(ticks, func(i, j int) bool { return ticks[i].Time < ticks[j].Time })

	first, last := ticks[0], ticks[len(ticks)-1]
	row := domain.SummaryRow{
		ISIN:         first.ISIN,
		Date:         first.Date,
		OpeningPrice: first.StartPrice.Decimal,
		ClosingPrice: last.StartPrice.Decimal,
		MinPrice:     first.MinPrice.Decimal,
		MaxPrice:     first.MaxPrice.Decimal,
	}
	for _, t := range ticks {
		if t.MinPrice.Decimal.LessThan(row.MinPrice) {
			row.MinPrice = t.MinPrice.Decimal
		}
		if t.MaxPrice.Decimal.GreaterThan(row.MaxPrice) {
			row.MaxPrice = t.MaxPrice.Decimal
		}
		row.TradedVolume += t.TradedVolume.Int64
	}
	return row
}

func pctChange(prevClose, close decimal.Decimal) decimal.NullDecimal {
	if prevClose.IsZero() {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(close.Sub(prevClose).Div(prevClose).Mul(hundred))
}

func round(r domain.SummaryRow) domain.SummaryRow {
	r.OpeningPrice = r.OpeningPrice.Round(2)
	r.ClosingPrice = r.ClosingPrice.Round(2)
	r.MinPrice = r.MinPrice.Round(2)
	r.MaxPrice = r.MaxPrice.Round(2)
	if r.ChangePrevPct.Valid {
		r.ChangePrevPct.Decimal = r.ChangePrevPct.Decimal.Round(2)
	}
	return r
}

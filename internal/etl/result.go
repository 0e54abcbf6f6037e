package etl

import "xetra/internal/domain"

// Extraction is the result of Extract: either Cached summaries re-read from
// the target store or Fresh ticks read from the source store.
type Extraction interface {
	extraction()
}

// Cached holds summaries of an already processed date. They must never be
// aggregated again.
type Cached struct {
	Rows []domain.SummaryRow
}

// Fresh holds raw ticks for the trading window of an unprocessed date.
type Fresh struct {
	Ticks []domain.TickRow
}

func (Cached) extraction() {}
func (Fresh) extraction()  {}

// Transformation is the result of Transform: either Resolved rows that need
// no load, or Pending rows that still have to be written and recorded.
type Transformation interface {
	transformation()
}

// Resolved rows came from the cache or from an empty extraction.
type Resolved struct {
	Rows []domain.SummaryRow
}

// Pending rows were just aggregated. They may be empty when nothing traded
// on the target date; the date is still recorded as processed.
type Pending struct {
	Rows []domain.SummaryRow
}

func (Resolved) transformation() {}
func (Pending) transformation()  {}

// State is the position of a Pipeline in its extract, transform, load
// sequence. It only moves forward.
type State int

const (
	NotStarted State = iota
	Extracted
	Transformed
	Loaded
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Extracted:
		return "extracted"
	case Transformed:
		return "transformed"
	case Loaded:
		return "loaded"
	default:
		return "unknown"
	}
}

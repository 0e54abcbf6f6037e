package store

import (
	"fmt"
	"strings"
)

// Format is a serialization format for stored row sets.
type Format int

const (
	FormatCSV Format = iota + 1
	FormatParquet
)

// String returns the format's file extension.
func (f Format) String() string {
	switch f {
	case FormatCSV:
		return "csv"
	case FormatParquet:
		return "parquet"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// UnsupportedFormatError reports a format name or value with no codec.
type UnsupportedFormatError struct {
	Format string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("file format %q not supported", e.Format)
}

// ParseFormat maps "csv" or "parquet" (case-insensitive) to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, nil
	case "parquet":
		return FormatParquet, nil
	default:
		return 0, &UnsupportedFormatError{Format: s}
	}
}

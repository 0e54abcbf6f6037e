package store

import (
	"bytes"
	"fmt"

	"github.com/parquet-go/parquet-go"
)

// EncodeParquet serializes records into an in-memory Parquet file. The
// schema is derived from T's parquet struct tags.
func EncodeParquet[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	if err := parquet.Write(&buf, records); err != nil {
		return nil, fmt.Errorf("encoding parquet: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeParquet reads every row of an in-memory Parquet file into T.
func DecodeParquet[T any](body []byte) ([]T, error) {
	rows, err := parquet.Read[T](bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return nil, fmt.Errorf("decoding parquet: %w", err)
	}
	return rows, nil
}

package bucket

// ReadStatus says how a fail-soft object read resolved. Every status other
// than ReadOK yields an empty row set; the status only feeds the log.
type ReadStatus int

const (
	ReadOK         ReadStatus = iota
	ReadEmpty                 // object exists but has no data rows
	ReadMissing               // no object under the key
	ReadUnreadable            // the store returned an error other than not-found
	ReadMalformed             // the body could not be decoded
)

func (s ReadStatus) String() string {
	switch s {
	case ReadOK:
		return "ok"
	case ReadEmpty:
		return "empty"
	case ReadMissing:
		return "missing"
	case ReadUnreadable:
		return "unreadable"
	case ReadMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Read is the outcome of a fail-soft read: rows when Status is ReadOK, the
// underlying error for ReadUnreadable and ReadMalformed.
type Read[T any] struct {
	Rows   []T
	Status ReadStatus
	Err    error
}

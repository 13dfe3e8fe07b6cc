// Package rw bounds the bodies read from remote endpoints
package rw

import (
	"bytes"
	"errors"
	"io"
)

// ErrLimitExceeded signals that the underlying reader has more
// available bytes than the expected limit
var ErrLimitExceeded = errors.New("read limit exceeded")

// ReadLimitProps sets up the behaviour of the limited reads
type ReadLimitProps struct {
	// FailOnExceed defines whether reading fails if the underlying
	// reader has more bytes than the limit. Otherwise the excess is
	// left unread
	FailOnExceed bool

	// Limit is the maximum number of bytes that are read
	Limit int64
}

func (p ReadLimitProps) readerLimit() int64 {
	if p.FailOnExceed {
		// one more byte than allowed is the only way to know that the
		// reader has more data than the limit
		return p.Limit + 1
	}
	return p.Limit
}

// LimitReader is an io.Reader wrapper that ensures that no more than
// limit bytes are read from the reader
type LimitReader struct {
	failOnExceed bool
	count        int64
	limit        int64
	reader       io.Reader
}

// NewLimitReader returns a new LimitReader
func NewLimitReader(reader io.Reader, props ReadLimitProps) *LimitReader {
	return &LimitReader{
		failOnExceed: props.FailOnExceed,
		limit:        props.Limit,
		reader:       io.LimitReader(reader, props.readerLimit()),
	}
}

// Read is the implementation of Reader for LimitReader
func (r *LimitReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.count += int64(n)
	if r.failOnExceed && r.count > r.limit {
		return 0, ErrLimitExceeded
	}

	return n, err
}

// CopyWithLimit copies at most props.Limit bytes from r to w
func CopyWithLimit(w io.Writer, r io.Reader, props ReadLimitProps) (int64, error) {
	if r == nil {
		return 0, nil
	}

	if w == nil {
		return 0, errors.New("writer cannot be nil")
	}

	n, err := io.CopyN(w, r, props.readerLimit())
	if err != nil && err != io.EOF {
		return 0, err
	}

	if n > props.Limit {
		return 0, ErrLimitExceeded
	}

	return n, nil
}

// ReadAllWithLimit reads r until EOF. It fails with ErrLimitExceeded
// if r has more than limit bytes
func ReadAllWithLimit(r io.Reader, limit int64) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := CopyWithLimit(&buf, r, ReadLimitProps{FailOnExceed: true, Limit: limit}); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

package testsupport

import (
	"bytes"
	"io"
	"testing"
)

// PatternReader returns a reader producing size bytes of a repeating pattern.
// A size <= 0 produces a single byte.
func PatternReader(size int64) io.Reader {
	if size <= 0 {
		size = 1
	}
	return io.LimitReader(repeatReader{pattern: []byte("meetscribe")}, size)
}

type repeatReader struct {
	pattern []byte
}

func (r repeatReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = r.pattern[i%len(r.pattern)]
	}
	return len(p), nil
}

// MustReadAll drains r and fails the test on error.
func MustReadAll(t testing.TB, r io.Reader) []byte {
	t.Helper()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		t.Fatalf("read all: %v", err)
	}
	return buf.Bytes()
}

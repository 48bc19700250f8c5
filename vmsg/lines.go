package vmsg

import (
	"bufio"
	"errors"
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const maxLineBytes = 1 << 20

// ErrTruncatedCodeUnit is returned when the byte stream ends in the middle
// of a UTF-16 code unit.
var ErrTruncatedCodeUnit = errors.New("vmsg: stream ends with a truncated UTF-16 code unit")

// LineSource yields the lines of a UTF-16LE encoded stream. It is forward
// only; build a new one for every file.
type LineSource struct {
	counter *countingReader
	scanner *bufio.Scanner
	line    int
	err     error
	done    bool
}

// NewLineSource wraps r. A leading byte order mark overrides the
// little-endian default and is stripped.
func NewLineSource(r io.Reader) *LineSource {
	counter := &countingReader{r: r}
	decoder := unicode.BOMOverride(unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder())
	scanner := bufio.NewScanner(transform.NewReader(counter, decoder))
	scanner.Buffer(make([]byte, 0, 4096), maxLineBytes)
	return &LineSource{counter: counter, scanner: scanner}
}

// Next returns the next line without its terminator. The second result is
// false once the stream is exhausted or a read error occurred.
func (s *LineSource) Next() (string, bool) {
	if s.done {
		return "", false
	}
	if !s.scanner.Scan() {
		s.done = true
		s.err = s.scanner.Err()
		if s.err == nil && s.counter.n%2 != 0 {
			s.err = ErrTruncatedCodeUnit
		}
		return "", false
	}
	s.line++
	return s.scanner.Text(), true
}

// Drain discards the rest of the stream without decoding it. A truncated
// code unit after the last line the caller read is still reported.
func (s *LineSource) Drain() error {
	if s.err != nil {
		return s.err
	}
	s.done = true
	if _, err := io.Copy(io.Discard, s.counter); err != nil {
		s.err = err
		return err
	}
	if s.counter.n%2 != 0 {
		s.err = ErrTruncatedCodeUnit
	}
	return s.err
}

// Line returns the 1-based number of the line last returned by Next.
func (s *LineSource) Line() int {
	return s.line
}

// Err returns the error that stopped the sequence, nil on clean exhaustion.
func (s *LineSource) Err() error {
	return s.err
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

package serial

import "bytes"

// LineFramer splits a byte stream into delimiter-terminated lines.
// Bytes that do not yet end in a delimiter are held until a later Feed
// completes them, so the lines produced do not depend on how the stream
// was chunked.
type LineFramer struct {
	delim []byte
	buf   []byte
}

// NewLineFramer returns a framer for the given delimiter. An empty delimiter
// falls back to DefaultDelimiter.
func NewLineFramer(delim string) *LineFramer {
	if delim == "" {
		delim = DefaultDelimiter
	}
	return &LineFramer{delim: []byte(delim)}
}

// Feed appends p to the pending buffer and calls emit once per complete line,
// in arrival order, with the delimiter stripped.
func (f *LineFramer) Feed(p []byte, emit func(line string)) {
	// A delimiter can only start in the tail of the old buffer or in p.
	start := len(f.buf) - len(f.delim) + 1
	if start < 0 {
		start = 0
	}
	f.buf = append(f.buf, p...)

	consumed := 0
	for {
		idx := bytes.Index(f.buf[start:], f.delim)
		if idx < 0 {
			break
		}
		end := start + idx
		emit(string(f.buf[consumed:end]))
		consumed = end + len(f.delim)
		start = consumed
	}

	if consumed > 0 {
		f.buf = append(f.buf[:0], f.buf[consumed:]...)
	}
}

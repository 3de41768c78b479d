// Package codec moves large datasets through bounded buffers. The text side
// streams JSON token by token against a backpressured sink; the binary side
// is a whole-buffer gob pass used for the two largest raw datasets.
package codec

import (
	"bytes"
	"io"

	"github.com/rotisserie/eris"
)

// FlushWriter is a bounded output sink. Full reports that the buffer has
// reached its high-water mark; the writer must call Flush and wait for it to
// drain before producing more output. This caps peak memory at one encoded
// element plus the sink buffer, regardless of dataset size.
type FlushWriter interface {
	io.Writer
	Full() bool
	Flush() error
}

// BufferedSink is the default FlushWriter over an io.Writer.
type BufferedSink struct {
	w         io.Writer
	buf       bytes.Buffer
	highWater int
}

// DefaultHighWater is the default sink buffer size in bytes.
const DefaultHighWater = 256 * 1024

// NewBufferedSink wraps w with a bounded buffer. A highWater of zero or less
// uses DefaultHighWater.
func NewBufferedSink(w io.Writer, highWater int) *BufferedSink {
	if highWater <= 0 {
		highWater = DefaultHighWater
	}
	return &BufferedSink{w: w, highWater: highWater}
}

func (s *BufferedSink) Write(p []byte) (int, error) {
	return s.buf.Write(p)
}

// Full reports whether the buffer has reached the high-water mark.
func (s *BufferedSink) Full() bool {
	return s.buf.Len() >= s.highWater
}

// Flush drains the buffer to the underlying writer.
func (s *BufferedSink) Flush() error {
	if s.buf.Len() == 0 {
		return nil
	}
	if _, err := s.buf.WriteTo(s.w); err != nil {
		return eris.Wrap(err, "codec: flush sink")
	}
	return nil
}

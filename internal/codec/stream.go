package codec

import (
	"context"
	"encoding/json"
	"io"
	"iter"

	"github.com/rotisserie/eris"
)

// StreamEncoder writes JSON structure tokens directly to a FlushWriter,
// serializing one element at a time. After every element it checks the sink
// and flushes when the high-water mark is reached.
type StreamEncoder struct {
	sink FlushWriter
	// needComma tracks, per open container, whether the next element must be
	// preceded by a comma.
	needComma []bool
	err       error
}

// NewStreamEncoder creates an encoder over the given sink.
func NewStreamEncoder(sink FlushWriter) *StreamEncoder {
	return &StreamEncoder{sink: sink}
}

func (e *StreamEncoder) write(s string) {
	if e.err != nil {
		return
	}
	if _, err := io.WriteString(e.sink, s); err != nil {
		e.err = eris.Wrap(err, "codec: write token")
	}
}

func (e *StreamEncoder) elementSeparator() {
	if n := len(e.needComma); n > 0 {
		if e.needComma[n-1] {
			e.write(",")
		}
		e.needComma[n-1] = true
	}
}

// BeginObject opens a JSON object.
func (e *StreamEncoder) BeginObject() {
	e.elementSeparator()
	e.write("{")
	e.needComma = append(e.needComma, false)
}

// EndObject closes the current object.
func (e *StreamEncoder) EndObject() {
	e.write("}")
	e.needComma = e.needComma[:len(e.needComma)-1]
}

// BeginArray opens a JSON array.
func (e *StreamEncoder) BeginArray() {
	e.elementSeparator()
	e.write("[")
	e.needComma = append(e.needComma, false)
}

// EndArray closes the current array.
func (e *StreamEncoder) EndArray() {
	e.write("]")
	e.needComma = e.needComma[:len(e.needComma)-1]
}

// Field writes an object key. The next Value/Begin call writes its value.
func (e *StreamEncoder) Field(name string) {
	e.elementSeparator()
	key, _ := json.Marshal(name)
	e.write(string(key) + ":")
	// The value that follows must not emit another comma.
	if n := len(e.needComma); n > 0 {
		e.needComma[n-1] = false
	}
}

// Value marshals and writes one element, then flushes the sink if full.
// This is the encoder's backpressure point.
func (e *StreamEncoder) Value(v any) {
	if e.err != nil {
		return
	}
	e.elementSeparator()
	data, err := json.Marshal(v)
	if err != nil {
		e.err = eris.Wrap(err, "codec: marshal element")
		return
	}
	e.write(string(data))
	if e.sink.Full() {
		if err := e.sink.Flush(); err != nil {
			e.err = err
		}
	}
}

// Close flushes any buffered output and returns the first error seen.
func (e *StreamEncoder) Close() error {
	if e.err != nil {
		return e.err
	}
	return e.sink.Flush()
}

// EncodeArray streams a sequence of elements as a JSON array. Elements are
// serialized one at a time; the sequence may be computed incrementally and
// never needs to be fully materialized by the caller.
func EncodeArray[T any](ctx context.Context, sink FlushWriter, seq iter.Seq[T]) error {
	enc := NewStreamEncoder(sink)
	enc.BeginArray()
	for v := range seq {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "codec: encode cancelled")
		}
		enc.Value(v)
	}
	enc.EndArray()
	return enc.Close()
}

// DecodeArray incrementally decodes a JSON array, sending each element to
// the returned channel. Both channels are closed when decoding completes.
func DecodeArray[T any](ctx context.Context, r io.Reader) (<-chan T, <-chan error) {
	outCh := make(chan T, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(outCh)
		defer close(errCh)

		dec := json.NewDecoder(r)

		tok, err := dec.Token()
		if err != nil {
			if err == io.EOF {
				return
			}
			errCh <- eris.Wrap(err, "codec: read opening token")
			return
		}
		delim, ok := tok.(json.Delim)
		if !ok || delim != '[' {
			errCh <- eris.Errorf("codec: expected '[', got %v", tok)
			return
		}

		for dec.More() {
			var item T
			if err := dec.Decode(&item); err != nil {
				errCh <- eris.Wrap(err, "codec: decode element")
				return
			}
			select {
			case outCh <- item:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "codec: decode cancelled")
				return
			}
		}

		if _, err := dec.Token(); err != nil {
			errCh <- eris.Wrap(err, "codec: read closing token")
		}
	}()

	return outCh, errCh
}

// CollectArray decodes a JSON array and materializes it. The parse itself is
// incremental; the result is bounded by the decode target's size, which is
// acceptable on the read side.
func CollectArray[T any](ctx context.Context, r io.Reader) ([]T, error) {
	outCh, errCh := DecodeArray[T](ctx, r)
	var items []T
	for item := range outCh {
		items = append(items, item)
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	return items, nil
}

// DecodeValue decodes a single JSON document into v via a streamed parse.
func DecodeValue(r io.Reader, v any) error {
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return eris.Wrap(err, "codec: decode value")
	}
	return nil
}

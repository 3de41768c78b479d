package codec

import (
	"bytes"
	"context"
	"encoding/json"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Size int    `json:"size"`
}

func TestEncodeArrayRoundTrip(t *testing.T) {
	in := []record{
		{ID: 1, Name: "mitte", Size: 400},
		{ID: 2, Name: "wedding", Size: 125},
		{ID: 3, Name: "neukölln", Size: 7},
	}

	var buf bytes.Buffer
	sink := NewBufferedSink(&buf, 0)
	require.NoError(t, EncodeArray(context.Background(), sink, slices.Values(in)))

	out, err := CollectArray[record](context.Background(), &buf)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestEncodeArrayEmpty(t *testing.T) {
	var buf bytes.Buffer
	sink := NewBufferedSink(&buf, 0)
	require.NoError(t, EncodeArray(context.Background(), sink, slices.Values([]record{})))
	assert.Equal(t, "[]", buf.String())
}

// countingWriter records how many times the sink drained into it.
type countingWriter struct {
	bytes.Buffer
	flushes int
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.flushes++
	return w.Buffer.Write(p)
}

func TestEncodeArrayBackpressure(t *testing.T) {
	var under countingWriter
	sink := NewBufferedSink(&under, 64) // tiny high-water mark

	items := make([]record, 100)
	for i := range items {
		items[i] = record{ID: int64(i), Name: strings.Repeat("x", 20)}
	}
	require.NoError(t, EncodeArray(context.Background(), sink, slices.Values(items)))

	// The sink must have drained repeatedly mid-stream, not once at Close.
	assert.Greater(t, under.flushes, 10)

	out, err := CollectArray[record](context.Background(), &under.Buffer)
	require.NoError(t, err)
	assert.Equal(t, items, out)
}

func TestStreamEncoderObject(t *testing.T) {
	var buf bytes.Buffer
	enc := NewStreamEncoder(NewBufferedSink(&buf, 0))

	enc.BeginObject()
	enc.Field("name")
	enc.Value("test city")
	enc.Field("neighborhoods")
	enc.BeginArray()
	enc.Value(record{ID: 1, Name: "a"})
	enc.Value(record{ID: 2, Name: "b"})
	enc.EndArray()
	enc.Field("total")
	enc.Value(1500)
	enc.EndObject()
	require.NoError(t, enc.Close())

	var doc struct {
		Name          string   `json:"name"`
		Neighborhoods []record `json:"neighborhoods"`
		Total         int      `json:"total"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "test city", doc.Name)
	require.Len(t, doc.Neighborhoods, 2)
	assert.Equal(t, int64(2), doc.Neighborhoods[1].ID)
	assert.Equal(t, 1500, doc.Total)
}

func TestStreamEncoderNestedObjects(t *testing.T) {
	var buf bytes.Buffer
	enc := NewStreamEncoder(NewBufferedSink(&buf, 0))

	enc.BeginObject()
	enc.Field("stats")
	enc.BeginObject()
	enc.Field("population")
	enc.Value(1000)
	enc.Field("jobs")
	enc.Value(600)
	enc.EndObject()
	enc.Field("ok")
	enc.Value(true)
	enc.EndObject()
	require.NoError(t, enc.Close())

	assert.JSONEq(t, `{"stats":{"population":1000,"jobs":600},"ok":true}`, buf.String())
}

func TestDecodeArrayRejectsNonArray(t *testing.T) {
	_, errCh := DecodeArray[record](context.Background(), strings.NewReader(`{"id":1}`))
	err := <-errCh
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected '['")
}

func TestDecodeArrayTruncated(t *testing.T) {
	out, errCh := DecodeArray[record](context.Background(), strings.NewReader(`[{"id":1},{"id":`))
	var got []record
	for r := range out {
		got = append(got, r)
	}
	require.Error(t, <-errCh)
	assert.Len(t, got, 1)
}

func TestDecodeArrayEmptyInput(t *testing.T) {
	items, err := CollectArray[record](context.Background(), strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, items)
}

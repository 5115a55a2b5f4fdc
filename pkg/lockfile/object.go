package lockfile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// field is one member of a JSON object, value kept verbatim.
type field struct {
	key   string
	value json.RawMessage
}

// decodeObject reads a JSON object preserving member order. A repeated key
// keeps its first position and its last value, as encoding/json would.
func decodeObject(data []byte) ([]field, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}

	var fields []field
	index := make(map[string]int)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key, got %v", tok)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		if i, seen := index[key]; seen {
			fields[i].value = value
			continue
		}
		index[key] = len(fields)
		fields = append(fields, field{key: key, value: value})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	if tok, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("unexpected data after object: %v", tok)
	}
	return fields, nil
}

// objectWriter emits a compact JSON object member by member.
type objectWriter struct {
	buf bytes.Buffer
	n   int
}

func newObjectWriter() *objectWriter {
	w := &objectWriter{}
	w.buf.WriteByte('{')
	return w
}

func (w *objectWriter) raw(key string, value json.RawMessage) error {
	if w.n > 0 {
		w.buf.WriteByte(',')
	}
	w.n++
	if err := encode(&w.buf, key); err != nil {
		return err
	}
	w.buf.WriteByte(':')
	w.buf.Write(value)
	return nil
}

func (w *objectWriter) value(key string, v any) error {
	var b bytes.Buffer
	if err := encode(&b, v); err != nil {
		return fmt.Errorf("field %q: %w", key, err)
	}
	return w.raw(key, b.Bytes())
}

func (w *objectWriter) bytes() []byte {
	w.buf.WriteByte('}')
	return w.buf.Bytes()
}

// encode writes v as compact JSON without HTML escaping and without the
// trailing newline json.Encoder adds.
func encode(buf *bytes.Buffer, v any) error {
	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	buf.Write(bytes.TrimSuffix(b.Bytes(), []byte("\n")))
	return nil
}

package signer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
)

// ErrTrailingData is returned when a JSON document has content after its
// first value.
var ErrTrailingData = errors.New("trailing data after JSON value")

// Canonicalize serializes v as canonical JSON: object keys sorted
// recursively, arrays in order, no insignificant whitespace, and no HTML
// escaping. Two values that are equal as JSON produce identical bytes.
func Canonicalize(v any) ([]byte, error) {
	if raw, ok := v.(json.RawMessage); ok {
		return CanonicalizeJSON(raw)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return CanonicalizeJSON(raw)
}

// CanonicalizeJSON rewrites an encoded JSON document into canonical form.
// Numbers keep their literal text.
//
// Keys are ordered by their UTF-8 bytes. This matches UTF-16 code unit
// order for every key below U+E000, which covers all keys this system
// signs; peers using astral-plane or private-use keys must sort the same
// way.
func CanonicalizeJSON(raw []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, ErrTrailingData
	}

	var buf bytes.Buffer
	buf.Grow(len(raw))
	if err := writeCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch x := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if x {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case json.Number:
		buf.WriteString(x.String())
	case string:
		return writeString(buf, x)
	case []any:
		buf.WriteByte('[')
		for i, elem := range x {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, elem); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeString(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := writeCanonical(buf, x[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unsupported JSON value %T", v)
	}
	return nil
}

func writeString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	// Encode appends a newline.
	out := bytes.TrimSuffix(tmp.Bytes(), []byte{'\n'})

	// encoding/json escapes U+2028 and U+2029; JSON.stringify emits them
	// raw, so they are written back as UTF-8.
	for i := 0; i < len(out); i++ {
		if out[i] != '\\' || i+1 >= len(out) {
			buf.WriteByte(out[i])
			continue
		}
		if i+5 < len(out) && out[i+1] == 'u' {
			switch string(out[i+2 : i+6]) {
			case "2028":
				buf.WriteRune('\u2028')
				i += 5
				continue
			case "2029":
				buf.WriteRune('\u2029')
				i += 5
				continue
			}
		}
		buf.Write(out[i : i+2])
		i++
	}
	return nil
}

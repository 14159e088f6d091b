// Package canonjson serializes values as canonical JSON: object keys sorted
// lexicographically at every level, no extra whitespace. Snapshots and badge
// metadata are hashed and compared downstream, so the byte form must be
// stable for equal values.
package canonjson

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Marshal renders v as canonical JSON.
func Marshal(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonjson: %w", err)
	}
	return Canonicalize(raw)
}

// Canonicalize rewrites a JSON document with sorted object keys.
// It is a fixed point: canonicalizing canonical output is a no-op.
func Canonicalize(raw []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("canonjson: decode: %w", err)
	}
	var buf bytes.Buffer
	if err := write(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func write(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return fmt.Errorf("canonjson: key: %w", err)
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := write(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	case []any:
		buf.WriteByte('[')
		for i, e := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := write(buf, e); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case json.Number:
		buf.WriteString(val.String())
		return nil
	default:
		// string, bool, nil
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Errorf("canonjson: value: %w", err)
		}
		buf.Write(b)
		return nil
	}
}

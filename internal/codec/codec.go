// Package codec converts hook values to and from the text stored in cookies
// and key-value stores.
//
// Strings (including named string types without their own JSON encoding) are
// stored raw. Every other value is stored as JSON. Decoding into a string
// type returns the raw text unchanged; decoding into anything else tries JSON
// first and falls back to the raw text, so values written by other programs
// (or by older versions that stored plain strings) still load.
package codec

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// Encode returns the stored form of v.
func Encode(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case json.RawMessage:
		return string(s), nil
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.String {
		if _, custom := v.(json.Marshaler); !custom {
			return rv.String(), nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("codec: encode %T: %w", v, err)
	}
	return string(data), nil
}

// Decode returns the JSON value of raw, or raw itself when it is not JSON.
func Decode(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}

// DecodeAs decodes raw into a T, mirroring Encode: a string type receives raw
// unchanged, so "null" or a quoted string round-trip as written. Other types
// are JSON-decoded; an empty interface falls back to raw when raw is not
// JSON. ok is false when raw cannot be represented as a T at all.
func DecodeAs[T any](raw string) (T, bool) {
	var v T
	rv := reflect.ValueOf(&v).Elem()
	if rv.Kind() == reflect.String {
		if _, custom := any(&v).(json.Unmarshaler); !custom {
			rv.SetString(raw)
			return v, true
		}
	}
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v, true
	}

	var zero T
	rv = reflect.ValueOf(&zero).Elem()
	switch rv.Kind() {
	case reflect.String:
		rv.SetString(raw)
		return zero, true
	case reflect.Interface:
		if rv.NumMethod() == 0 {
			rv.Set(reflect.ValueOf(raw))
			return zero, true
		}
	}
	return zero, false
}

// IsNil reports whether v is nil or a nil pointer, map, slice, func, chan or
// interface. Hooks treat such values as "remove the key".
func IsNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

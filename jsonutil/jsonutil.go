// Package jsonutil provides thin wrappers around sonic for
// performance-sensitive encoding and decoding. Every JSON boundary in the
// module goes through this package so the serializer can be swapped in one
// place.
package jsonutil

import (
	"io"

	"github.com/bytedance/sonic"
)

// Marshal serialises v into a compact JSON document.
func Marshal(v any) ([]byte, error) {
	return sonic.Marshal(v)
}

// MarshalIndent serialises v with the supplied prefix and indentation.
func MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	return sonic.MarshalIndent(v, prefix, indent)
}

// Unmarshal parses the JSON document in data and stores the result in v.
func Unmarshal(data []byte, v any) error {
	return sonic.Unmarshal(data, v)
}

// Encode writes the JSON encoding of v to w.
func Encode(w io.Writer, v any) error {
	return sonic.ConfigDefault.NewEncoder(w).Encode(v)
}

// Decode reads a JSON document from r and stores the result in v.
func Decode(r io.Reader, v any) error {
	return sonic.ConfigDefault.NewDecoder(r).Decode(v)
}

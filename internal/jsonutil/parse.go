// Package jsonutil provides small helpers for inspecting untrusted JSON
// message bodies before they are decoded into typed envelopes.
package jsonutil

import (
	"encoding/json"
	"fmt"
	"sort"
	"unicode/utf8"
)

// ObjectKeys decodes data as a JSON object and returns its top-level keys in
// sorted order. Returns an error if data is not valid JSON or is not an object.
func ObjectKeys(data []byte) ([]string, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("invalid JSON object: %w (text: %s)", err, Preview(string(data), 200))
	}
	if obj == nil {
		return nil, fmt.Errorf("invalid JSON object: null")
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Preview returns the first n bytes of s for logging, appending "..." if
// truncated. The cut never splits a UTF-8 sequence.
func Preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

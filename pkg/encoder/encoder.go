// Package encoder derives compact, URL-safe cache keys from diagram source
// text.
//
// A key is produced by DEFLATE-compressing the UTF-8 bytes of the source and
// re-encoding the result with a 64-character alphabet containing only
// filename- and URL-safe characters. The mapping is deterministic (equal
// sources always yield equal keys) and reversible (Decode recovers the exact
// source from a key), so keys double as a wire format for sharing diagrams.
package encoder

import (
	"bytes"
	"compress/flate"
	"encoding/base64"
	"fmt"
	"io"
)

// alphabet is the 64-character set used for key text. It deviates from
// standard base64 so keys never contain '+', '/' or '=' and can be embedded
// in paths and query strings without escaping.
const alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz-_"

var keyEncoding = base64.NewEncoding(alphabet).WithPadding(base64.NoPadding)

// Encode turns diagram source into its cache key.
//
// Encoding never fails: any string, including the empty string, has a key.
func Encode(source string) string {
	var buf bytes.Buffer
	// Writes into a bytes.Buffer cannot fail and the compression level is
	// valid, so the error paths below are unreachable.
	w, _ := flate.NewWriter(&buf, flate.BestCompression)
	_, _ = io.WriteString(w, source)
	_ = w.Close()
	return keyEncoding.EncodeToString(buf.Bytes())
}

// Decode recovers the original diagram source from a key produced by Encode.
// It returns an error if the key contains characters outside the alphabet or
// does not inflate to a valid byte stream.
func Decode(key string) (string, error) {
	raw, err := keyEncoding.DecodeString(key)
	if err != nil {
		return "", fmt.Errorf("decode key text: %w", err)
	}
	r := flate.NewReader(bytes.NewReader(raw))
	defer r.Close()
	source, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("inflate key payload: %w", err)
	}
	return string(source), nil
}

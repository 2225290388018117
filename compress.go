// compress.go: value serialization, size estimation and compression
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package xanthos

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/klauspost/compress/gzip"
)

// entryOverheadBytes approximates the fixed per-entry bookkeeping cost
// counted against the memory budget alongside the payload.
const entryOverheadBytes = 128

// encodeValue serializes a value for sizing, compression and snapshots.
// A value that cannot be JSON-encoded is still cacheable in memory: the
// caller falls back to a coarse size estimate and marks the entry
// non-serializable.
func encodeValue(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// decodeValue reverses encodeValue. Numbers round-trip as float64 per the
// encoding/json contract.
func decodeValue(raw []byte) (interface{}, error) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// compressPayload gzips a serialized payload.
func compressPayload(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, gzip.BestSpeed)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(raw); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decompressPayload reverses compressPayload.
func decompressPayload(compressed []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()
	return io.ReadAll(r)
}

// estimateSize computes the byte footprint charged against the memory
// budget for a key and serialized payload.
func estimateSize(key string, payloadLen int) int64 {
	return int64(len(key)) + int64(payloadLen) + entryOverheadBytes
}

// errors_test.go: error construction and classification tests
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package xanthos

import (
	"errors"
	"testing"
)

func TestErrorCodes(t *testing.T) {
	cases := []struct {
		err  error
		code string
	}{
		{NewErrInvalidMaxSize(-1), "XANTHOS_INVALID_MAX_SIZE"},
		{NewErrInvalidPolicy("mru"), "XANTHOS_INVALID_POLICY"},
		{NewErrEmptyKey("Set"), "XANTHOS_EMPTY_KEY"},
		{NewErrCapacityExceeded("k", 100, 50), "XANTHOS_CAPACITY_EXCEEDED"},
		{NewErrCircuitOpen("k", "OPEN"), "XANTHOS_CIRCUIT_OPEN"},
		{NewErrFetchFailed("k", errors.New("x")), "XANTHOS_FETCH_FAILED"},
		{NewErrInvalidFetcher("k"), "XANTHOS_INVALID_FETCHER"},
		{NewErrSaveFailed("/tmp/x", errors.New("disk")), "XANTHOS_SAVE_FAILED"},
		{NewErrLoadFailed("/tmp/x", errors.New("disk")), "XANTHOS_LOAD_FAILED"},
		{NewErrCorruptedData("/tmp/x", "bad header"), "XANTHOS_CORRUPTED_DATA"},
	}

	for _, tc := range cases {
		if got := string(GetErrorCode(tc.err)); got != tc.code {
			t.Errorf("GetErrorCode(%v) = %s, want %s", tc.err, got, tc.code)
		}
	}
}

func TestErrorClassifiers(t *testing.T) {
	if !IsCircuitOpen(NewErrCircuitOpen("k", "OPEN")) {
		t.Error("IsCircuitOpen missed its own error")
	}
	if IsCircuitOpen(NewErrEmptyKey("Get")) {
		t.Error("IsCircuitOpen matched an unrelated error")
	}
	if !IsFetchFailed(NewErrFetchFailed("k", errors.New("x"))) {
		t.Error("IsFetchFailed missed its own error")
	}
	if !IsCapacityExceeded(NewErrCapacityExceeded("k", 2, 1)) {
		t.Error("IsCapacityExceeded missed its own error")
	}
	if !IsEmptyKey(NewErrEmptyKey("Set")) {
		t.Error("IsEmptyKey missed its own error")
	}
	if !IsConfigError(NewErrInvalidPolicy("mru")) || !IsConfigError(NewErrInvalidMaxSize(-1)) {
		t.Error("IsConfigError missed a configuration error")
	}
	if IsConfigError(NewErrFetchFailed("k", errors.New("x"))) {
		t.Error("IsConfigError matched a runtime error")
	}
	if !IsPersistenceError(NewErrSaveFailed("/x", errors.New("d"))) ||
		!IsPersistenceError(NewErrLoadFailed("/x", errors.New("d"))) ||
		!IsPersistenceError(NewErrCorruptedData("/x", "bad")) {
		t.Error("IsPersistenceError missed a persistence error")
	}

	if IsCircuitOpen(nil) || IsFetchFailed(nil) || IsEmptyKey(nil) {
		t.Error("classifiers must reject nil")
	}
	if IsCircuitOpen(errors.New("plain")) {
		t.Error("classifiers must reject non-coded errors")
	}
}

func TestFetchFailedUnwraps(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewErrFetchFailed("k", cause)
	if !errors.Is(err, cause) {
		t.Errorf("FetchFailed did not unwrap to its cause: %v", err)
	}
}

func TestFetchFailedRetryable(t *testing.T) {
	if !IsRetryable(NewErrFetchFailed("k", errors.New("timeout"))) {
		t.Error("fetch failures should be retryable")
	}
	if IsRetryable(NewErrInvalidPolicy("mru")) {
		t.Error("configuration errors are not retryable")
	}
	if IsRetryable(nil) {
		t.Error("nil is not retryable")
	}
}

func TestErrorContext(t *testing.T) {
	err := NewErrCapacityExceeded("big:key", 2048, 1024)
	ctx := GetErrorContext(err)
	if ctx == nil {
		t.Fatal("expected error context")
	}
	if ctx["key"] != "big:key" {
		t.Errorf("context key = %v, want big:key", ctx["key"])
	}
}

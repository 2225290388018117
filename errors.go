// errors.go: structured error handling for xanthos cache operations
//
// This file provides structured error types using the go-errors library,
// enabling rich error context, categorization, and standardized error codes
// for all cache operations.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0
package xanthos

import (
	goerrors "errors"
	"fmt"

	"github.com/agilira/go-errors"
)

// Error codes for Xanthos cache operations
const (
	// Configuration errors
	ErrCodeInvalidConfig           errors.ErrorCode = "XANTHOS_INVALID_CONFIG"
	ErrCodeInvalidMaxSize          errors.ErrorCode = "XANTHOS_INVALID_MAX_SIZE"
	ErrCodeInvalidPolicy           errors.ErrorCode = "XANTHOS_INVALID_POLICY"
	ErrCodeInvalidRefreshThreshold errors.ErrorCode = "XANTHOS_INVALID_REFRESH_THRESHOLD"
	ErrCodeInvalidLRUKValue        errors.ErrorCode = "XANTHOS_INVALID_LRUK_VALUE"

	// Operation errors
	ErrCodeEmptyKey         errors.ErrorCode = "XANTHOS_EMPTY_KEY"
	ErrCodeCapacityExceeded errors.ErrorCode = "XANTHOS_CAPACITY_EXCEEDED"
	ErrCodeSerializeFailed  errors.ErrorCode = "XANTHOS_SERIALIZE_FAILED"

	// Fetch errors
	ErrCodeCircuitOpen    errors.ErrorCode = "XANTHOS_CIRCUIT_OPEN"
	ErrCodeFetchFailed    errors.ErrorCode = "XANTHOS_FETCH_FAILED"
	ErrCodeInvalidFetcher errors.ErrorCode = "XANTHOS_INVALID_FETCHER"
	ErrCodePanicRecovered errors.ErrorCode = "XANTHOS_PANIC_RECOVERED"

	// Persistence errors
	ErrCodeSaveFailed    errors.ErrorCode = "XANTHOS_SAVE_FAILED"
	ErrCodeLoadFailed    errors.ErrorCode = "XANTHOS_LOAD_FAILED"
	ErrCodeCorruptedData errors.ErrorCode = "XANTHOS_CORRUPTED_DATA"
)

// Common error messages
const (
	msgInvalidMaxSize          = "invalid max size: must be greater than 0"
	msgInvalidPolicy           = "invalid eviction policy"
	msgInvalidRefreshThreshold = "invalid refresh threshold: must be in (0, 1)"
	msgInvalidLRUKValue        = "invalid LRU-K value: must be at least 2"
	msgLRUKValueTooLarge       = "invalid LRU-K value: K cannot exceed the access history limit"
	msgEmptyKey                = "key cannot be empty"
	msgCapacityExceeded        = "entry cannot fit within the memory budget"
	msgSerializeFailed         = "failed to serialize value"
	msgCircuitOpen             = "upstream fetch refused: circuit breaker is open"
	msgFetchFailed             = "fetch function failed"
	msgInvalidFetcher          = "fetch function cannot be nil"
	msgPanicRecovered          = "panic recovered in cache operation"
	msgSaveFailed              = "failed to save cache snapshot"
	msgLoadFailed              = "failed to load cache snapshot"
	msgCorruptedData           = "corrupted snapshot data"
)

// =============================================================================
// CONFIGURATION ERRORS
// =============================================================================

// NewErrInvalidMaxSize creates an error for a non-positive max size
func NewErrInvalidMaxSize(size int) error {
	return errors.NewWithContext(ErrCodeInvalidMaxSize, msgInvalidMaxSize, map[string]interface{}{
		"provided_size":    size,
		"minimum_required": 1,
	})
}

// NewErrInvalidPolicy creates an error for an unrecognized eviction policy
func NewErrInvalidPolicy(policy string) error {
	return errors.NewWithContext(ErrCodeInvalidPolicy, msgInvalidPolicy, map[string]interface{}{
		"provided_policy": policy,
		"valid_policies":  "lru, lfu, fifo, lru-k",
	})
}

// NewErrInvalidRefreshThreshold creates an error for an out-of-range refresh threshold
func NewErrInvalidRefreshThreshold(threshold float64) error {
	return errors.NewWithContext(ErrCodeInvalidRefreshThreshold, msgInvalidRefreshThreshold, map[string]interface{}{
		"provided_threshold": threshold,
		"valid_range":        "0.0 < threshold < 1.0",
	})
}

// NewErrInvalidLRUKValue creates an error for an invalid LRU-K value
func NewErrInvalidLRUKValue(k int) error {
	return errors.NewWithContext(ErrCodeInvalidLRUKValue, msgInvalidLRUKValue, map[string]interface{}{
		"provided_k":       k,
		"minimum_required": 2,
	})
}

// NewErrLRUKValueTooLarge creates an error for a K that exceeds the
// access history limit. With fewer retained accesses than K the K-th
// distance can never be computed and eviction degrades to insertion
// order.
func NewErrLRUKValueTooLarge(k, historyLimit int) error {
	return errors.NewWithContext(ErrCodeInvalidLRUKValue, msgLRUKValueTooLarge, map[string]interface{}{
		"provided_k":           k,
		"access_history_limit": historyLimit,
	})
}

// =============================================================================
// OPERATION ERRORS
// =============================================================================

// NewErrEmptyKey creates an error when key is empty
func NewErrEmptyKey(operation string) error {
	return errors.NewWithField(ErrCodeEmptyKey, msgEmptyKey, "operation", operation)
}

// NewErrCapacityExceeded creates an error when a single entry is larger
// than the configured memory budget. Signals misconfiguration: the caller
// should skip caching the oversized value.
func NewErrCapacityExceeded(key string, sizeBytes, budgetBytes int64) error {
	return errors.NewWithContext(ErrCodeCapacityExceeded, msgCapacityExceeded, map[string]interface{}{
		"key":          key,
		"size_bytes":   sizeBytes,
		"budget_bytes": budgetBytes,
	})
}

// NewErrSerializeFailed creates an error when a value cannot be serialized
func NewErrSerializeFailed(key string, cause error) error {
	return errors.Wrap(cause, ErrCodeSerializeFailed, msgSerializeFailed).
		WithContext("key", key)
}

// =============================================================================
// FETCH ERRORS
// =============================================================================

// NewErrCircuitOpen creates an error when the circuit breaker refuses a fetch.
// Retryable: the caller should back off until the breaker half-opens.
func NewErrCircuitOpen(key string, state string) error {
	return errors.NewWithContext(ErrCodeCircuitOpen, msgCircuitOpen, map[string]interface{}{
		"key":           key,
		"breaker_state": state,
	}).AsRetryable()
}

// NewErrFetchFailed wraps a caller-supplied fetch function's error with the
// cache key for context. Every coalesced waiter receives the same error.
func NewErrFetchFailed(key string, cause error) error {
	return errors.Wrap(cause, ErrCodeFetchFailed, msgFetchFailed).
		WithContext("key", key).
		AsRetryable()
}

// NewErrInvalidFetcher creates an error when the fetch function is nil
func NewErrInvalidFetcher(key string) error {
	return errors.NewWithField(ErrCodeInvalidFetcher, msgInvalidFetcher, "key", key)
}

// NewErrPanicRecovered creates an error when a panic is recovered
func NewErrPanicRecovered(operation string, panicValue interface{}) error {
	return errors.NewWithContext(ErrCodePanicRecovered, msgPanicRecovered, map[string]interface{}{
		"operation":   operation,
		"panic_value": fmt.Sprintf("%v", panicValue),
	}).WithSeverity("critical")
}

// =============================================================================
// PERSISTENCE ERRORS
// =============================================================================

// NewErrSaveFailed creates an error when a snapshot save fails
func NewErrSaveFailed(filepath string, cause error) error {
	return errors.Wrap(cause, ErrCodeSaveFailed, msgSaveFailed).
		WithContext("filepath", filepath).
		AsRetryable()
}

// NewErrLoadFailed creates an error when a snapshot load fails
func NewErrLoadFailed(filepath string, cause error) error {
	return errors.Wrap(cause, ErrCodeLoadFailed, msgLoadFailed).
		WithContext("filepath", filepath).
		AsRetryable()
}

// NewErrCorruptedData creates an error when snapshot data is corrupted
func NewErrCorruptedData(filepath string, details string) error {
	return errors.NewWithContext(ErrCodeCorruptedData, msgCorruptedData, map[string]interface{}{
		"filepath": filepath,
		"details":  details,
	})
}

// =============================================================================
// ERROR CHECKING HELPERS
// =============================================================================

// IsCircuitOpen checks if error is a circuit-open refusal
func IsCircuitOpen(err error) bool {
	return errors.HasCode(err, ErrCodeCircuitOpen)
}

// IsFetchFailed checks if error wraps a failed fetch function
func IsFetchFailed(err error) bool {
	return errors.HasCode(err, ErrCodeFetchFailed)
}

// IsCapacityExceeded checks if error is a capacity exceeded error
func IsCapacityExceeded(err error) bool {
	return errors.HasCode(err, ErrCodeCapacityExceeded)
}

// IsEmptyKey checks if error is an empty key error
func IsEmptyKey(err error) bool {
	return errors.HasCode(err, ErrCodeEmptyKey)
}

// IsConfigError checks if error is a configuration error
func IsConfigError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrCodeInvalidConfig || code == ErrCodeInvalidMaxSize ||
		code == ErrCodeInvalidPolicy || code == ErrCodeInvalidRefreshThreshold ||
		code == ErrCodeInvalidLRUKValue
}

// IsPersistenceError checks if error is a persistence error
func IsPersistenceError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrCodeSaveFailed || code == ErrCodeLoadFailed || code == ErrCodeCorruptedData
}

// IsRetryable checks if the error can be retried
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var retryable errors.Retryable
	if goerrors.As(err, &retryable) {
		return retryable.IsRetryable()
	}
	return false
}

// GetErrorCode extracts the error code from an error
func GetErrorCode(err error) errors.ErrorCode {
	if err == nil {
		return ""
	}
	var coder errors.ErrorCoder
	if goerrors.As(err, &coder) {
		return coder.ErrorCode()
	}
	return ""
}

// GetErrorContext extracts context from an error
func GetErrorContext(err error) map[string]interface{} {
	if err == nil {
		return nil
	}
	var xerr *errors.Error
	if goerrors.As(err, &xerr) {
		return xerr.Context
	}
	return nil
}

// persistence.go: snapshot save/load across restarts
//
// Snapshots are gzip-compressed JSON maps of serializable entries,
// written atomically (temp file + rename) so a crash mid-save never
// corrupts the previous snapshot.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package xanthos

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/hashicorp/go-multierror"
	"github.com/klauspost/compress/gzip"
)

// FileBackend persists snapshots to the local filesystem.
type FileBackend struct {
	logger Logger
}

// NewFileBackend creates a filesystem persistence backend.
func NewFileBackend(logger Logger) *FileBackend {
	if logger == nil {
		logger = &NoOpLogger{}
	}
	return &FileBackend{logger: logger}
}

// Save writes the snapshot atomically: encode to a temp file in the
// target directory, then rename over the destination.
func (fb *FileBackend) Save(path string, entries map[string]SnapshotEntry) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return NewErrSaveFailed(path, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return NewErrSaveFailed(path, err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	gz, err := gzip.NewWriterLevel(tmp, gzip.BestSpeed)
	if err != nil {
		_ = tmp.Close()
		return NewErrSaveFailed(path, err)
	}
	enc := json.NewEncoder(gz)
	if err := enc.Encode(entries); err != nil {
		_ = gz.Close()
		_ = tmp.Close()
		return NewErrSaveFailed(path, err)
	}
	if err := gz.Close(); err != nil {
		_ = tmp.Close()
		return NewErrSaveFailed(path, err)
	}
	if err := tmp.Close(); err != nil {
		return NewErrSaveFailed(path, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return NewErrSaveFailed(path, err)
	}
	fb.logger.Debug("snapshot saved", "path", path, "entries", len(entries))
	return nil
}

// Load reads a snapshot. A missing file is not an error: it returns an
// empty map so a first start comes up cold. Structurally invalid entries
// are skipped and reported together; the valid remainder is still
// returned so one bad record does not discard a warm snapshot.
func (fb *FileBackend) Load(path string) (map[string]SnapshotEntry, error) {
	f, err := os.Open(path) // #nosec G304 - path comes from operator configuration
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]SnapshotEntry{}, nil
		}
		return nil, NewErrLoadFailed(path, err)
	}
	defer func() { _ = f.Close() }()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, NewErrCorruptedData(path, err.Error())
	}
	defer func() { _ = gz.Close() }()

	var raw map[string]SnapshotEntry
	if err := json.NewDecoder(gz).Decode(&raw); err != nil {
		return nil, NewErrCorruptedData(path, err.Error())
	}

	entries := make(map[string]SnapshotEntry, len(raw))
	var issues *multierror.Error
	for key, entry := range raw {
		if key == "" || entry.Key != key {
			issues = multierror.Append(issues,
				fmt.Errorf("snapshot entry %q: key mismatch", key))
			continue
		}
		if len(entry.Value) == 0 {
			issues = multierror.Append(issues,
				fmt.Errorf("snapshot entry %q: empty payload", key))
			continue
		}
		entries[key] = entry
	}

	fb.logger.Debug("snapshot loaded", "path", path,
		"entries", len(entries), "skipped", len(raw)-len(entries))
	return entries, issues.ErrorOrNil()
}

// Ensure FileBackend implements PersistenceBackend
var _ PersistenceBackend = (*FileBackend)(nil)

// saveSnapshot exports every live serializable entry through the backend.
// Non-serializable values and expired entries are omitted.
func (c *smartCache) saveSnapshot() error {
	now := c.clock.Now()
	snapshot := make(map[string]SnapshotEntry)

	for _, seg := range c.segments {
		seg.mu.Lock()
		for key, entry := range seg.entries {
			if !entry.serializable || entry.expired(now) {
				continue
			}
			payload, err := c.snapshotPayload(entry)
			if err != nil {
				c.logger.Warn("entry skipped in snapshot", "key", key, "error", err)
				continue
			}
			history := make([]int64, len(entry.accessHistory))
			copy(history, entry.accessHistory)
			snapshot[key] = SnapshotEntry{
				Key:           key,
				Value:         payload,
				CreatedAt:     entry.createdAt,
				ExpiresAt:     entry.expiresAt,
				AccessHistory: history,
				AccessCount:   entry.accessCount,
				UpdateCount:   entry.updateCount,
			}
		}
		seg.mu.Unlock()
	}

	return c.backend.Save(c.config.PersistencePath, snapshot)
}

// snapshotPayload returns an entry's uncompressed serialized form.
func (c *smartCache) snapshotPayload(e *cacheEntry) ([]byte, error) {
	if e.compressed != nil {
		return decompressPayload(e.compressed)
	}
	return encodeValue(e.value)
}

// loadSnapshot rebuilds the entry table from the configured snapshot,
// skipping entries that expired while the process was down. Access
// history survives the restart, so adaptive TTL and LRU-K decisions
// resume from pre-restart signal instead of a cold start.
func (c *smartCache) loadSnapshot() error {
	entries, err := c.backend.Load(c.config.PersistencePath)
	if err != nil && entries == nil {
		return err
	}
	if err != nil {
		c.logger.Warn("snapshot partially loaded", "error", err)
	}

	now := c.clock.Now()
	restored := 0
	for key, snap := range entries {
		if snap.ExpiresAt > 0 && now > snap.ExpiresAt {
			continue
		}

		value, derr := decodeValue(snap.Value)
		if derr != nil {
			c.logger.Warn("snapshot entry not decodable", "key", key, "error", derr)
			continue
		}

		payloadLen := len(snap.Value)
		var compressed []byte
		if th := c.config.CompressionThreshold; th > 0 && payloadLen >= th {
			comp, cerr := compressPayload(snap.Value)
			if cerr != nil {
				c.logger.Warn("snapshot entry not compressible", "key", key, "error", cerr)
				continue
			}
			compressed = comp
			payloadLen = len(comp)
		}

		entry := &cacheEntry{
			key:           key,
			value:         value,
			compressed:    compressed,
			createdAt:     snap.CreatedAt,
			expiresAt:     snap.ExpiresAt,
			accessHistory: snap.AccessHistory,
			accessCount:   snap.AccessCount,
			updateCount:   snap.UpdateCount,
			sizeBytes:     estimateSize(key, payloadLen),
			serializable:  true,
		}
		if compressed != nil {
			entry.value = nil
		}

		seg := c.segmentFor(key)
		seg.mu.Lock()
		if _, exists := seg.entries[key]; !exists {
			seg.entries[key] = entry
			atomic.AddInt64(&c.entryCount, 1)
			atomic.AddInt64(&c.memoryBytes, entry.sizeBytes)
			restored++
		}
		seg.mu.Unlock()
		c.keys.intern(key)
	}

	c.enforceBudgets(c.segments[0], "")
	c.collector.RecordMemoryUsage(atomic.LoadInt64(&c.memoryBytes))
	c.logger.Info("cache warmed from snapshot",
		"path", c.config.PersistencePath, "entries", restored)
	return nil
}

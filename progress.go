// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package grimoire

import (
	"sync"
	"time"
)

// OnErrorPolicy governs how a batch operation reacts to a single file
// failing (permission denied, vanished between scan and read, hash
// collision, ...).
type OnErrorPolicy int

const (
	// OnErrorRaise stops the batch immediately and returns the error.
	OnErrorRaise OnErrorPolicy = iota
	// OnErrorSkip records the failure in BatchResult.FailedFiles and
	// continues with the remaining files.
	OnErrorSkip
	// OnErrorAbort stops the batch immediately, keeps whatever was
	// staged so far, and returns ErrBatchAborted rather than the
	// triggering file's error.
	OnErrorAbort
)

// FailedFile records one file's failure during a batch operation.
type FailedFile struct {
	LocalPath string
	VfsPath   string
	Err       error
}

// BatchResult summarizes the outcome of a batch staging operation.
type BatchResult struct {
	SuccessCount int
	FailedCount  int
	FailedFiles  []FailedFile
	TotalBytes   int64
	ElapsedTime  time.Duration
}

// ProgressInfo is passed to a ProgressFunc as a batch operation proceeds.
type ProgressInfo struct {
	Current     int
	Total       int
	CurrentFile string
	BytesDone   int64
	BytesTotal  int64
	ElapsedTime time.Duration
}

// Progress returns the fraction of files processed so far, in [0, 1].
func (p ProgressInfo) Progress() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Current) / float64(p.Total)
}

// Rate returns bytes processed per second so far.
func (p ProgressInfo) Rate() float64 {
	seconds := p.ElapsedTime.Seconds()
	if seconds == 0 {
		return 0
	}
	return float64(p.BytesDone) / seconds
}

// ETA estimates the remaining time to completion based on the
// observed rate. Returns 0 if the rate is 0 (nothing processed yet).
func (p ProgressInfo) ETA() time.Duration {
	rate := p.Rate()
	if rate == 0 {
		return 0
	}
	remaining := float64(p.BytesTotal - p.BytesDone)
	if remaining < 0 {
		remaining = 0
	}
	return time.Duration(remaining/rate) * time.Second
}

// ProgressFunc receives progress updates during a batch operation. It is
// rate-limited by progressTracker to roughly 10 calls/second; it must not
// block for long or it will stall the batch.
type ProgressFunc func(ProgressInfo)

// progressMinInterval is the minimum spacing between ProgressFunc calls,
// matching the pack's prototype's own default batch callback throttling.
const progressMinInterval = 100 * time.Millisecond

// progressTracker accumulates batch progress and throttles callback
// delivery so a caller hashing thousands of small files isn't flooded
// with per-file callbacks.
type progressTracker struct {
	total      int
	totalBytes int64
	callback   ProgressFunc
	start      time.Time

	mu           sync.Mutex
	current      int
	bytesDone    int64
	lastCallback time.Time
}

func newProgressTracker(total int, totalBytes int64, callback ProgressFunc) *progressTracker {
	return &progressTracker{
		total:      total,
		totalBytes: totalBytes,
		callback:   callback,
		start:      time.Now(),
	}
}

// update records one more file processed and, if enough time has passed
// since the last callback (or this is the final file), invokes callback.
func (t *progressTracker) update(currentFile string, bytesDone int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current++
	t.bytesDone += bytesDone
	if t.callback == nil {
		return
	}
	now := time.Now()
	if t.current < t.total && now.Sub(t.lastCallback) < progressMinInterval {
		return
	}
	t.lastCallback = now
	t.callback(ProgressInfo{
		Current:     t.current,
		Total:       t.total,
		CurrentFile: currentFile,
		BytesDone:   t.bytesDone,
		BytesTotal:  t.totalBytes,
		ElapsedTime: now.Sub(t.start),
	})
}

func (t *progressTracker) elapsed() time.Duration {
	return time.Since(t.start)
}

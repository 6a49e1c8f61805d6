// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package grimoire

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"go.chromium.org/luci/common/errors"
	"go.chromium.org/luci/common/logging"

	"github.com/grimoirevfs/grimoire/container"
)

// BatchItem pairs a local source file with the vfs-path it should be
// staged under.
type BatchItem struct {
	LocalPath string
	VfsPath   string
}

// AddFilesBatch stages every item, applying policy to decide what happens
// when one file fails to read or stage. progress, if non-nil, receives
// throttled updates as the batch proceeds.
func (w *Writer) AddFilesBatch(ctx context.Context, items []BatchItem, policy OnErrorPolicy, progress ProgressFunc) (BatchResult, error) {
	tracker := newProgressTracker(len(items), estimateBatchBytes(items), progress)

	result := BatchResult{}
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return result, errors.Annotate(err).Reason("batch cancelled").Err()
		}

		size, statErr := fileSize(item.LocalPath)
		err := w.AddFile(item.VfsPath, item.LocalPath)
		tracker.update(item.LocalPath, size)
		if err == nil {
			result.SuccessCount++
			result.TotalBytes += size
			continue
		}
		if statErr != nil {
			err = errors.Annotate(err).Reason("stat also failed: %(statErr)s").D("statErr", statErr.Error()).Err()
		}

		switch policy {
		case OnErrorRaise:
			result.ElapsedTime = tracker.elapsed()
			return result, err
		case OnErrorAbort:
			result.FailedCount++
			result.FailedFiles = append(result.FailedFiles, FailedFile{LocalPath: item.LocalPath, VfsPath: item.VfsPath, Err: err})
			result.ElapsedTime = tracker.elapsed()
			return result, errors.Annotate(ErrBatchAborted).Reason("failed on %(path)q: %(err)s").D("path", item.LocalPath).D("err", err.Error()).Err()
		case OnErrorSkip:
			logging.Warningf(ctx, "skipping %s: %s", item.LocalPath, err)
			result.FailedCount++
			result.FailedFiles = append(result.FailedFiles, FailedFile{LocalPath: item.LocalPath, VfsPath: item.VfsPath, Err: err})
		}
	}

	result.ElapsedTime = tracker.elapsed()
	return result, nil
}

// AddDirBatch walks localDir (recursively if recursive is true), staging
// every regular file it finds under mountPoint, skipping any whose base
// name matches one of excludePatterns (shell glob syntax, per
// filepath.Match).
func (w *Writer) AddDirBatch(ctx context.Context, localDir, mountPoint string, recursive bool, excludePatterns []string, policy OnErrorPolicy, progress ProgressFunc) (BatchResult, error) {
	items, err := scanDirectory(localDir, mountPoint, recursive, excludePatterns)
	if err != nil {
		return BatchResult{}, errors.Annotate(err).Reason("scanning %(dir)q").D("dir", localDir).Err()
	}
	return w.AddFilesBatch(ctx, items, policy, progress)
}

// scanDirectory walks localDir and returns the BatchItems a caller would
// pass to AddFilesBatch, applying excludePatterns against each file's
// base name.
func scanDirectory(localDir, mountPoint string, recursive bool, excludePatterns []string) ([]BatchItem, error) {
	mountPoint = container.NormalizePath(mountPoint)
	localDir = filepath.Clean(localDir)

	var items []BatchItem
	walkFn := func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if !recursive && path != localDir {
				return filepath.SkipDir
			}
			return nil
		}
		if matchesAny(excludePatterns, filepath.Base(path)) {
			return nil
		}
		rel, err := filepath.Rel(localDir, path)
		if err != nil {
			return err
		}
		vfsPath := mountPoint + "/" + strings.ReplaceAll(rel, string(filepath.Separator), "/")
		items = append(items, BatchItem{LocalPath: path, VfsPath: vfsPath})
		return nil
	}

	if err := filepath.Walk(localDir, walkFn); err != nil {
		return nil, err
	}
	return items, nil
}

func matchesAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, name); ok {
			return true
		}
	}
	return false
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func estimateBatchBytes(items []BatchItem) int64 {
	var total int64
	for _, item := range items {
		if size, err := fileSize(item.LocalPath); err == nil {
			total += size
		}
	}
	return total
}

// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package grimoire

import (
	"context"
	"path/filepath"
	"strings"

	"go.chromium.org/luci/common/errors"

	"github.com/grimoirevfs/grimoire/container"
)

// PathMapping resolves a vfs-path to a local filesystem path for
// ArchiveFromManifest. The first prefix match wins; if none match (or
// the list is empty), fallback joins baseDir with the vfs-path.
type PathMapping struct {
	VfsPrefix   string
	LocalPrefix string
}

func resolveLocalPath(vfsPath, baseDir string, mappings []PathMapping) string {
	for _, m := range mappings {
		if strings.HasPrefix(vfsPath, m.VfsPrefix) {
			rel := strings.TrimPrefix(strings.TrimPrefix(vfsPath, m.VfsPrefix), "/")
			return filepath.Join(m.LocalPrefix, rel)
		}
	}
	return filepath.Join(baseDir, strings.TrimPrefix(vfsPath, "/"))
}

// ManifestFromArchive reads every entry out of an open Archive Reader and
// writes a Manifest container carrying the same paths and checksums but
// no payload data, per original_source/grimoire/converter.py's
// archive_to_manifest. The output Writer uses the archive's own checksum
// hook by default; outOpts configures it further (a WithChecksum there
// replaces that hook, and the checksums are then recomputed with it;
// WithCompression is rejected since a Manifest carries no payload to
// compress).
func ManifestFromArchive(ctx context.Context, reader *Reader, outputPath string, outOpts ...WriterOption) (BatchResult, error) {
	if reader.header.Mode != container.ModeArchive {
		return BatchResult{}, errors.Annotate(container.ErrModeMismatch).Reason("ManifestFromArchive requires an Archive Reader").Err()
	}
	paths, err := reader.ListAll()
	if err != nil {
		return BatchResult{}, err
	}

	opts := []WriterOption{WithMagic(reader.header.Magic)}
	if reader.header.ChecksumAlgoID != 0 {
		hook, err := reader.registry.Checksum(reader.header.ChecksumAlgoID)
		if err != nil {
			return BatchResult{}, errors.Annotate(err).Reason("resolving archive checksum hook").Err()
		}
		opts = append(opts, WithChecksum(hook))
	}
	writer, err := NewWriter(container.ModeManifest, append(opts, outOpts...)...)
	if err != nil {
		return BatchResult{}, errors.Annotate(err).Reason("constructing manifest writer").Err()
	}

	tracker := newProgressTracker(len(paths), 0, nil)
	result := BatchResult{}
	for _, vfsPath := range paths {
		if err := ctx.Err(); err != nil {
			result.ElapsedTime = tracker.elapsed()
			return result, errors.Annotate(err).Reason("conversion cancelled").Err()
		}

		data, err := reader.ReadPath(vfsPath, true)
		if err != nil {
			result.FailedCount++
			result.FailedFiles = append(result.FailedFiles, FailedFile{VfsPath: vfsPath, Err: err})
			tracker.update(vfsPath, 0)
			continue
		}
		if err := writer.AddBytes(vfsPath, data); err != nil {
			result.FailedCount++
			result.FailedFiles = append(result.FailedFiles, FailedFile{VfsPath: vfsPath, Err: err})
			tracker.update(vfsPath, 0)
			continue
		}
		result.SuccessCount++
		result.TotalBytes += int64(len(data))
		tracker.update(vfsPath, int64(len(data)))
	}

	if err := writer.WriteTo(outputPath); err != nil {
		result.ElapsedTime = tracker.elapsed()
		return result, errors.Annotate(err).Reason("writing manifest %(path)q").D("path", outputPath).Err()
	}
	result.ElapsedTime = tracker.elapsed()
	return result, nil
}

// ArchiveFromManifest reads every catalogued path out of a Manifest
// Reader and stages the corresponding local file (resolved via
// mappings, falling back to baseDir-joined-with-vfs-path) into a new
// Archive, per original_source/grimoire/converter.py's
// manifest_to_archive. policy governs what happens when a local source
// file can't be read.
func ArchiveFromManifest(ctx context.Context, reader *Reader, outputPath, baseDir string, mappings []PathMapping, policy OnErrorPolicy, progress ProgressFunc, outOpts ...WriterOption) (BatchResult, error) {
	if reader.header.Mode != container.ModeManifest {
		return BatchResult{}, errors.Annotate(container.ErrModeMismatch).Reason("ArchiveFromManifest requires a Manifest Reader").Err()
	}
	paths, err := reader.ListAll()
	if err != nil {
		return BatchResult{}, err
	}

	writer, err := NewWriter(container.ModeArchive, append([]WriterOption{WithMagic(reader.header.Magic)}, outOpts...)...)
	if err != nil {
		return BatchResult{}, errors.Annotate(err).Reason("constructing archive writer").Err()
	}

	items := make([]BatchItem, len(paths))
	for i, vfsPath := range paths {
		items[i] = BatchItem{LocalPath: resolveLocalPath(vfsPath, baseDir, mappings), VfsPath: vfsPath}
	}

	result, err := writer.AddFilesBatch(ctx, items, policy, progress)
	if err != nil {
		return result, err
	}
	if err := writer.WriteTo(outputPath); err != nil {
		return result, errors.Annotate(err).Reason("writing archive %(path)q").D("path", outputPath).Err()
	}
	return result, nil
}

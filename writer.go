// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package grimoire

import (
	"io"
	"os"
	"sort"
	"sync"

	"go.chromium.org/luci/common/errors"

	"github.com/grimoirevfs/grimoire/container"
)

type writerOptions struct {
	magic       [4]byte
	checksum    container.ChecksumHook
	compression container.CompressionHook
	indexCrypto container.IndexCryptoHook
	pathHashID  uint16
	pathHash    container.PathHashFunc
}

// WriterOption configures a Writer at construction time, in the spirit of
// the teacher's CreateOption functional options.
type WriterOption func(*writerOptions)

// WithMagic overrides the 4-byte magic written to the FileHeader. Callers
// building a domain-specific container format on top of this package can
// use this to distinguish their files from plain GrimoireVFS containers.
func WithMagic(magic [4]byte) WriterOption {
	return func(o *writerOptions) { o.magic = magic }
}

// WithChecksum activates per-entry integrity checksums using hook. Without
// this option, entries carry no checksum (ChecksumSize 0) and only
// structural corruption (truncated buffers, bad headers) is detected.
func WithChecksum(hook container.ChecksumHook) WriterOption {
	return func(o *writerOptions) { o.checksum = hook }
}

// WithCompression activates payload compression using hook. Only valid for
// an Archive-mode Writer; a Manifest has no payload data to compress.
func WithCompression(hook container.CompressionHook) WriterOption {
	return func(o *writerOptions) { o.compression = hook }
}

// WithIndexCrypto activates encryption of the three path-string tables
// (dir, name, ext) using hook. The EntryRecord table itself is never
// encrypted, so ListHashes keeps working on an undecrypted Reader.
func WithIndexCrypto(hook container.IndexCryptoHook) WriterOption {
	return func(o *writerOptions) { o.indexCrypto = hook }
}

// WithPathHashFunc overrides the default FNV-1a64 path hash. id is stored
// in the FileHeader's PathHashAlgoID field; a Reader must be given the
// matching fn for the same id to reproduce lookups.
func WithPathHashFunc(id uint16, fn container.PathHashFunc) WriterOption {
	return func(o *writerOptions) {
		o.pathHashID = id
		o.pathHash = fn
	}
}

// Writer stages entries in memory and, on WriteTo, lays out and writes a
// complete GrimoireVFS container in one pass over the staged data. A
// Writer is single-writer-only: concurrent calls to Add*/WriteTo on the
// same Writer are not supported and must be serialized by the caller.
type Writer struct {
	mode     container.Mode
	opts     writerOptions
	pipeline container.Pipeline
	dict     *container.PathDictionary

	mu      sync.Mutex
	closed  bool
	entries []container.Entry
	// payloads[i] is the packed payload bytes for entries[i]; only
	// populated in Archive mode, where the Writer must hold the bytes
	// until WriteTo lays out the data region.
	payloads   [][]byte
	byPath     map[string]int
	byHash     map[uint64]string
	sourceFile map[string]string // normalized vfsPath -> localPath, for AddFile's no-op-on-identical-readd check
}

// NewWriter returns a Writer for the given container mode.
func NewWriter(mode container.Mode, opts ...WriterOption) (*Writer, error) {
	o := writerOptions{
		magic:      container.DefaultMagic,
		pathHashID: 0,
		pathHash:   container.DefaultPathHash,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if mode == container.ModeManifest && o.compression != nil {
		return nil, errors.Annotate(ErrWriterModeMismatch).Reason(
			"compression was configured on a Manifest writer, which stores no payload data").Err()
	}

	return &Writer{
		mode: mode,
		opts: o,
		pipeline: container.Pipeline{
			Checksum:    o.checksum,
			Compression: compressionForMode(mode, o.compression),
		},
		dict:       container.NewPathDictionary(),
		byPath:     make(map[string]int),
		byHash:     make(map[uint64]string),
		sourceFile: make(map[string]string),
	}, nil
}

// compressionForMode suppresses the pipeline's compression stage in
// Manifest mode even if a caller's WriterOption slipped one in some other
// way than WithCompression (defense for future option additions).
func compressionForMode(mode container.Mode, hook container.CompressionHook) container.CompressionHook {
	if mode == container.ModeManifest {
		return nil
	}
	return hook
}

func (w *Writer) checksumSize() int {
	if w.opts.checksum == nil {
		return 0
	}
	return int(w.opts.checksum.OutputSize())
}

func (w *Writer) checksumAlgoID() uint16 {
	if w.opts.checksum == nil {
		return 0
	}
	return w.opts.checksum.AlgoID()
}

func (w *Writer) compressionAlgoID() uint16 {
	if w.pipeline.Compression == nil {
		return 0
	}
	return w.pipeline.Compression.AlgoID()
}

func (w *Writer) indexCryptoAlgoID() uint16 {
	if w.opts.indexCrypto == nil {
		return 0
	}
	return w.opts.indexCrypto.AlgoID()
}

// DictionaryStats reports the current size of the path dictionary's three
// string tables, for introspection during a large staged build.
func (w *Writer) DictionaryStats() container.Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dict.Stats()
}

// Len returns the number of entries staged so far.
func (w *Writer) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}

// AddBytes stages vfsPath with the contents of data. Re-adding a vfsPath
// that was already staged via AddBytes or AddReader is always an error
// (ErrDuplicatePath); only AddFile treats a re-add of the identical local
// source path as a no-op.
func (w *Writer) AddBytes(vfsPath string, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	norm := container.NormalizePath(vfsPath)
	if _, ok := w.byPath[norm]; ok {
		return errors.Annotate(ErrDuplicatePath).Reason("vfs-path %(path)q already staged").D("path", norm).Err()
	}
	return w.addEntryLocked(norm, data)
}

// AddReader stages vfsPath with all of r's contents.
func (w *Writer) AddReader(vfsPath string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return errors.Annotate(err).Reason("reading source for %(path)q").D("path", vfsPath).Err()
	}
	return w.AddBytes(vfsPath, data)
}

// AddFile stages vfsPath with the contents of the local file at
// localPath. Re-adding the same vfsPath with the same localPath is a
// no-op (not an error); re-adding the same vfsPath with a different
// localPath is ErrDuplicatePath.
func (w *Writer) AddFile(vfsPath, localPath string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	norm := container.NormalizePath(vfsPath)
	if existing, ok := w.sourceFile[norm]; ok {
		if existing == localPath {
			return nil
		}
		return errors.Annotate(ErrDuplicatePath).Reason(
			"vfs-path %(path)q already staged from %(existing)q, cannot also stage from %(new)q").
			D("path", norm).D("existing", existing).D("new", localPath).Err()
	}
	if _, ok := w.byPath[norm]; ok {
		return errors.Annotate(ErrDuplicatePath).Reason("vfs-path %(path)q already staged").D("path", norm).Err()
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		return errors.Annotate(err).Reason("reading local file %(path)q").D("path", localPath).Err()
	}
	if err := w.addEntryLocked(norm, data); err != nil {
		return err
	}
	w.sourceFile[norm] = localPath
	return nil
}

// addEntryLocked must be called with w.mu held.
func (w *Writer) addEntryLocked(norm string, data []byte) error {
	hash := w.opts.pathHash(norm)
	if existingPath, ok := w.byHash[hash]; ok && existingPath != norm {
		return errors.Annotate(ErrHashCollision).Reason(
			"vfs-path %(new)q collides with already-staged %(existing)q at path_hash %(hash)#x").
			D("new", norm).D("existing", existingPath).D("hash", hash).Err()
	}

	packed, err := w.pipeline.PackEntry(data)
	if err != nil {
		return errors.Annotate(err).Reason("packing entry %(path)q").D("path", norm).Err()
	}
	checksum := packed.Checksum
	if checksum == nil {
		checksum = []byte{}
	}

	dir, name, ext := container.SplitPath(norm)
	dirID, nameID, extID := w.dict.AddPath(dir, name, ext)

	entry := container.Entry{
		VfsPath:    norm,
		PathHash:   hash,
		RawSize:    packed.RawSize,
		PackedSize: packed.PackedSize,
		AlgoID:     w.compressionAlgoID(),
		Checksum:   checksum,
		DirID:      dirID,
		NameID:     nameID,
		ExtID:      extID,
	}
	if w.mode == container.ModeManifest {
		entry.PackedSize = 0
		entry.AlgoID = 0
	}

	w.entries = append(w.entries, entry)
	w.byPath[norm] = len(w.entries) - 1
	w.byHash[hash] = norm
	if w.mode == container.ModeArchive {
		w.payloads = append(w.payloads, packed.Packed)
	}
	return nil
}

// WriteTo lays out and writes the complete container to a new file at
// path, per the two-pass process spec.md §4.5 describes: entries are
// sorted by path_hash, offsets and the whole index are computed in memory,
// and only then is anything written: the header (already carrying the
// final offsets), the index, and, for an Archive, the data region. If any
// step fails, the partially written file at path is removed.
func (w *Writer) WriteTo(path string) (err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}

	out, err := os.Create(path)
	if err != nil {
		return errors.Annotate(err).Reason("creating %(path)q").D("path", path).Err()
	}
	defer func() {
		closeErr := out.Close()
		if err != nil {
			os.Remove(path)
			return
		}
		if closeErr != nil {
			err = errors.Annotate(closeErr).Reason("closing %(path)q").D("path", path).Err()
			os.Remove(path)
		}
	}()

	if err = w.writeLocked(out); err != nil {
		err = errors.Annotate(err).Reason("writing container to %(path)q").D("path", path).Err()
		return err
	}
	return nil
}

func (w *Writer) writeLocked(out *os.File) error {
	checksumSize := w.checksumSize()

	order := make([]int, len(w.entries))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return w.entries[order[a]].PathHash < w.entries[order[b]].PathHash
	})

	var totalRaw, totalPacked uint64
	if w.mode == container.ModeArchive {
		var offset uint64
		for _, idx := range order {
			w.entries[idx].DataOffset = offset
			offset += w.entries[idx].PackedSize
			totalRaw += w.entries[idx].RawSize
			totalPacked += w.entries[idx].PackedSize
		}
	}

	dirBytes, err := w.packTable(w.dict.Dirs)
	if err != nil {
		return errors.Annotate(err).Reason("packing dir table").Err()
	}
	nameBytes, err := w.packTable(w.dict.Names)
	if err != nil {
		return errors.Annotate(err).Reason("packing name table").Err()
	}
	extBytes, err := w.packTable(w.dict.Exts)
	if err != nil {
		return errors.Annotate(err).Reason("packing ext table").Err()
	}

	entryTable := make([]byte, 0, len(order)*container.EntryRecordSize(checksumSize))
	for _, idx := range order {
		record, err := w.entries[idx].Pack(checksumSize)
		if err != nil {
			return errors.Annotate(err).Reason("packing entry record for %(path)q").D("path", w.entries[idx].VfsPath).Err()
		}
		entryTable = append(entryTable, record...)
	}

	indexHeader := container.IndexHeader{
		EntryCount:      uint32(len(w.entries)),
		ChecksumSize:    uint16(checksumSize),
		DirTableLength:  uint32(len(dirBytes)),
		NameTableLength: uint32(len(nameBytes)),
		ExtTableLength:  uint32(len(extBytes)),
		EntryRecordSize: uint16(container.EntryRecordSize(checksumSize)),
	}

	indexBytes := append([]byte{}, indexHeader.Pack()...)
	indexBytes = append(indexBytes, dirBytes...)
	indexBytes = append(indexBytes, nameBytes...)
	indexBytes = append(indexBytes, extBytes...)
	indexBytes = append(indexBytes, entryTable...)

	fileHeader := container.FileHeader{
		Magic:          w.opts.magic,
		Version:        container.Version,
		Mode:           w.mode,
		IndexCryptoID:  w.indexCryptoAlgoID(),
		ChecksumAlgoID: w.checksumAlgoID(),
		PathHashAlgoID: w.opts.pathHashID,
		IndexOffset:    container.FileHeaderSize,
		IndexLength:    uint64(len(indexBytes)),
	}
	if w.mode == container.ModeArchive {
		fileHeader.DataOffset = container.FileHeaderSize + uint64(len(indexBytes))
		fileHeader.DataLength = container.DataHeaderSize + totalPacked
	}

	if _, err := out.Write(fileHeader.Pack()); err != nil {
		return errors.Annotate(err).Reason("writing file header").Err()
	}
	if _, err := out.Write(indexBytes); err != nil {
		return errors.Annotate(err).Reason("writing index region").Err()
	}

	if w.mode == container.ModeArchive {
		dataHeader := container.DataHeader{TotalRawSize: totalRaw, TotalPackedSize: totalPacked}
		if _, err := out.Write(dataHeader.Pack()); err != nil {
			return errors.Annotate(err).Reason("writing data header").Err()
		}
		for _, idx := range order {
			if _, err := out.Write(w.payloads[idx]); err != nil {
				return errors.Annotate(err).Reason("writing payload for %(path)q").D("path", w.entries[idx].VfsPath).Err()
			}
		}
	}

	return out.Sync()
}

func (w *Writer) packTable(t *container.StringTable) ([]byte, error) {
	packed := t.Pack()
	if w.opts.indexCrypto == nil {
		return packed, nil
	}
	encrypted, err := w.opts.indexCrypto.Encrypt(packed)
	if err != nil {
		return nil, errors.Annotate(err).Reason("encrypting string table").Err()
	}
	return encrypted, nil
}

// Close marks the Writer unusable for further staging. It does not write
// anything; call WriteTo first if you want the container on disk.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

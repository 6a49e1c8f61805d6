// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package grimoire

import (
	"bytes"
	"os"
	"sort"
	"sync"

	"go.chromium.org/luci/common/errors"

	"github.com/grimoirevfs/grimoire/container"
)

// readerBacking is the storage abstraction a Reader reads header, index,
// and (for an Archive) payload bytes through. Both implementations
// (mmap-backed and plain positional reads) are safe for concurrent
// ReadAt calls; Close is not and must be externally synchronized, same
// as the rest of Reader.
type readerBacking interface {
	ReadAt(p []byte, off int64) (int, error)
	Close() error
}

type readerOptions struct {
	useMmap       bool
	expectMagic   [4]byte
	expectMode    container.Mode
	hasExpectMode bool
	pathHashID    uint16
	pathHash      container.PathHashFunc
	indexCrypto   container.IndexCryptoHook
}

// ReaderOption configures Open, in the spirit of the teacher's
// OpenOption functional options.
type ReaderOption func(*readerOptions)

// WithMmapBacking selects mmap-backed random access instead of ordinary
// positional reads. Falls back to positional reads transparently on
// platforms without a usable mmap implementation for this package.
func WithMmapBacking() ReaderOption {
	return func(o *readerOptions) { o.useMmap = true }
}

// WithExpectedMagic overrides the magic bytes Open checks the container
// against. Defaults to container.DefaultMagic.
func WithExpectedMagic(magic [4]byte) ReaderOption {
	return func(o *readerOptions) { o.expectMagic = magic }
}

// WithExpectedMode rejects Open with container.ErrModeMismatch if the
// container's Mode (Manifest or Archive) isn't mode, per spec.md §4.6
// step 2's cross-mode-open check. Unset by default: a Reader opened
// without this option accepts either mode, leaving mode-specific
// operations (ReadPath, ExtractAll, ...) to fail on their own.
func WithExpectedMode(mode container.Mode) ReaderOption {
	return func(o *readerOptions) {
		o.expectMode = mode
		o.hasExpectMode = true
	}
}

// WithReaderPathHashFunc tells Open which PathHashFunc to use for
// hash-based path lookups, matching the id a Writer recorded via
// WithPathHashFunc. Unnecessary for the default (id 0, FNV-1a64).
func WithReaderPathHashFunc(id uint16, fn container.PathHashFunc) ReaderOption {
	return func(o *readerOptions) {
		o.pathHashID = id
		o.pathHash = fn
	}
}

// WithReaderIndexCrypto supplies the IndexCryptoHook to attempt decrypting
// the path-string tables with. If the container's IndexCryptoID doesn't
// match hook.AlgoID(), or decryption fails, Open still succeeds but the
// Reader stays in the "index not decrypted" state: see
// ErrIndexNotDecrypted.
func WithReaderIndexCrypto(hook container.IndexCryptoHook) ReaderOption {
	return func(o *readerOptions) { o.indexCrypto = hook }
}

// EntryInfo is the caller-facing view of a catalogued entry. VfsPath is
// only populated when the Reader's index is decrypted.
type EntryInfo struct {
	VfsPath    string
	PathHash   uint64
	RawSize    uint64
	PackedSize uint64
	AlgoID     uint16
	Checksum   []byte
}

func entryInfo(e container.Entry) EntryInfo {
	return EntryInfo{
		VfsPath:    e.VfsPath,
		PathHash:   e.PathHash,
		RawSize:    e.RawSize,
		PackedSize: e.PackedSize,
		AlgoID:     e.AlgoID,
		Checksum:   e.Checksum,
	}
}

// Reader gives random-access, lookup-by-path (or by hash) access to a
// container built by Writer. Once Open returns, a Reader's decoded state
// is immutable and safe for concurrent use by multiple goroutines; only
// Close needs external synchronization.
type Reader struct {
	backing  readerBacking
	registry *container.Registry
	header   container.FileHeader

	entries        []container.Entry // sorted by PathHash, VfsPath populated iff indexDecrypted
	byPath         map[string]int    // nil unless indexDecrypted
	indexDecrypted bool

	pathHash   container.PathHashFunc
	dataRegion uint64 // absolute file offset of the first payload byte (Archive mode only)

	closeOnce sync.Once
}

// Open opens the container at path and decodes its index into memory.
func Open(path string, registry *container.Registry, opts ...ReaderOption) (*Reader, error) {
	o := readerOptions{
		expectMagic: container.DefaultMagic,
		pathHash:    container.DefaultPathHash,
	}
	for _, opt := range opts {
		opt(&o)
	}

	backing, err := openBacking(path, o.useMmap)
	if err != nil {
		return nil, errors.Annotate(err).Reason("opening %(path)q").D("path", path).Err()
	}

	r, err := decode(backing, registry, o)
	if err != nil {
		backing.Close()
		return nil, err
	}
	return r, nil
}

func decode(backing readerBacking, registry *container.Registry, o readerOptions) (*Reader, error) {
	headerBuf := make([]byte, container.FileHeaderSize)
	if _, err := backing.ReadAt(headerBuf, 0); err != nil {
		return nil, errors.Annotate(err).Reason("reading file header").Err()
	}
	header, err := container.UnpackFileHeader(headerBuf)
	if err != nil {
		return nil, errors.Annotate(err).Reason("unpacking file header").Err()
	}
	if err := container.CheckMagic(o.expectMagic, header.Magic); err != nil {
		return nil, err
	}
	if o.hasExpectMode && header.Mode != o.expectMode {
		return nil, errors.Annotate(container.ErrModeMismatch).Reason(
			"opened as mode %(want)d, container is mode %(got)d").D("want", o.expectMode).D("got", header.Mode).Err()
	}

	indexBuf := make([]byte, header.IndexLength)
	if _, err := backing.ReadAt(indexBuf, int64(header.IndexOffset)); err != nil {
		return nil, errors.Annotate(err).Reason("reading index region").Err()
	}
	indexHeader, err := container.UnpackIndexHeader(indexBuf[:container.IndexHeaderSize])
	if err != nil {
		return nil, errors.Annotate(err).Reason("unpacking index header").Err()
	}

	dirStart := container.IndexHeaderSize
	nameStart := dirStart + int(indexHeader.DirTableLength)
	extStart := nameStart + int(indexHeader.NameTableLength)
	entryStart := extStart + int(indexHeader.ExtTableLength)

	dirBlob := indexBuf[dirStart:nameStart]
	nameBlob := indexBuf[nameStart:extStart]
	extBlob := indexBuf[extStart:entryStart]

	entries, err := container.UnpackEntryTable(indexBuf[entryStart:], int(indexHeader.EntryCount), int(indexHeader.ChecksumSize))
	if err != nil {
		return nil, errors.Annotate(err).Reason("unpacking entry table").Err()
	}

	r := &Reader{
		backing:  backing,
		registry: registry,
		header:   header,
		entries:  entries,
		pathHash: o.pathHash,
	}
	if header.Mode == container.ModeArchive {
		r.dataRegion = header.DataOffset + container.DataHeaderSize
	}

	dict, decrypted := resolveDictionary(header, registry, o, dirBlob, nameBlob, extBlob)
	if decrypted {
		r.indexDecrypted = true
		r.byPath = make(map[string]int, len(entries))
		for i := range r.entries {
			path, err := dict.Path(r.entries[i].DirID, r.entries[i].NameID, r.entries[i].ExtID)
			if err != nil {
				return nil, errors.Annotate(err).Reason("resolving path for entry %(i)d").D("i", i).Err()
			}
			r.entries[i].VfsPath = path
			r.byPath[path] = i
		}
	}

	return r, nil
}

// resolveDictionary attempts to recover the path dictionary from the
// (possibly encrypted) table blobs. It returns decrypted=false rather
// than an error whenever the index simply can't be read right now — a
// missing or non-matching crypto hook is an expected state, not a
// failure of Open itself.
func resolveDictionary(header container.FileHeader, registry *container.Registry, o readerOptions, dirBlob, nameBlob, extBlob []byte) (*container.PathDictionary, bool) {
	if header.IndexCryptoID != 0 {
		hook := o.indexCrypto
		if hook == nil || hook.AlgoID() != header.IndexCryptoID {
			return nil, false
		}
		var err error
		if dirBlob, err = hook.Decrypt(dirBlob); err != nil {
			return nil, false
		}
		if nameBlob, err = hook.Decrypt(nameBlob); err != nil {
			return nil, false
		}
		if extBlob, err = hook.Decrypt(extBlob); err != nil {
			return nil, false
		}
	}

	dirs, err := container.UnpackStringTableBytes(dirBlob)
	if err != nil {
		return nil, false
	}
	names, err := container.UnpackStringTableBytes(nameBlob)
	if err != nil {
		return nil, false
	}
	exts, err := container.UnpackStringTableBytes(extBlob)
	if err != nil {
		return nil, false
	}
	return &container.PathDictionary{Dirs: dirs, Names: names, Exts: exts}, true
}

// ListHashes returns every entry's path_hash, in on-disk (ascending)
// order. This always works, even when the index is encrypted and
// undecrypted, since the EntryRecord table is never encrypted.
func (r *Reader) ListHashes() []uint64 {
	hashes := make([]uint64, len(r.entries))
	for i, e := range r.entries {
		hashes[i] = e.PathHash
	}
	return hashes
}

// StatHash returns info for every entry with the given path_hash (more
// than one only in the event of a hash collision). Works without a
// decrypted index.
func (r *Reader) StatHash(hash uint64) []EntryInfo {
	lo, hi := hashRange(r.entries, hash)
	infos := make([]EntryInfo, 0, hi-lo)
	for _, e := range r.entries[lo:hi] {
		infos = append(infos, entryInfo(e))
	}
	return infos
}

// ListAll returns every catalogued vfs-path. Requires a decrypted index.
func (r *Reader) ListAll() ([]string, error) {
	if !r.indexDecrypted {
		return nil, ErrIndexNotDecrypted
	}
	paths := make([]string, len(r.entries))
	for i, e := range r.entries {
		paths[i] = e.VfsPath
	}
	return paths, nil
}

// Stat looks up a single vfs-path's entry metadata. Requires a decrypted
// index.
func (r *Reader) Stat(vfsPath string) (EntryInfo, error) {
	e, err := r.lookup(vfsPath)
	if err != nil {
		return EntryInfo{}, err
	}
	return entryInfo(e), nil
}

func (r *Reader) lookup(vfsPath string) (container.Entry, error) {
	if !r.indexDecrypted {
		return container.Entry{}, ErrIndexNotDecrypted
	}
	norm := container.NormalizePath(vfsPath)
	lo, hi := hashRange(r.entries, r.pathHash(norm))
	for i := lo; i < hi; i++ {
		if r.entries[i].VfsPath == norm {
			return r.entries[i], nil
		}
	}
	return container.Entry{}, errors.Annotate(ErrNotFound).Reason("no entry for %(path)q").D("path", norm).Err()
}

// hashRange returns [lo, hi) into a PathHash-sorted entry slice covering
// every entry whose PathHash equals hash.
func hashRange(entries []container.Entry, hash uint64) (int, int) {
	lo := sort.Search(len(entries), func(i int) bool { return entries[i].PathHash >= hash })
	hi := sort.Search(len(entries), func(i int) bool { return entries[i].PathHash > hash })
	return lo, hi
}

// ReadPath reads and unpacks vfsPath's payload from an Archive container.
// Requires a decrypted index (to resolve the path) and Mode == Archive.
// If verify is true and the container was built with a checksum hook, the
// decompressed bytes are checksum-verified before being returned
// (container.ErrChecksumMismatch on failure); if false, the checksum is
// never computed, per spec.md §4.4 step 3 / §8 scenario 4.
func (r *Reader) ReadPath(vfsPath string, verify bool) ([]byte, error) {
	if r.header.Mode != container.ModeArchive {
		return nil, errors.Annotate(container.ErrModeMismatch).Reason("ReadPath requires an Archive container").Err()
	}
	entry, err := r.lookup(vfsPath)
	if err != nil {
		return nil, err
	}
	return r.readEntry(entry, verify)
}

func (r *Reader) readEntry(entry container.Entry, verify bool) ([]byte, error) {
	buf := make([]byte, entry.PackedSize)
	if entry.PackedSize > 0 {
		if _, err := r.backing.ReadAt(buf, int64(r.dataRegion+entry.DataOffset)); err != nil {
			return nil, errors.Annotate(err).Reason("reading payload for %(path)q").D("path", entry.VfsPath).Err()
		}
	}

	pipeline, err := r.pipelineFor(entry)
	if err != nil {
		return nil, err
	}
	return pipeline.UnpackEntry(buf, entry.RawSize, entry.Checksum, verify)
}

func (r *Reader) pipelineFor(entry container.Entry) (container.Pipeline, error) {
	var p container.Pipeline
	if r.header.ChecksumAlgoID != 0 {
		hook, err := r.registry.Checksum(r.header.ChecksumAlgoID)
		if err != nil {
			return p, err
		}
		p.Checksum = hook
	}
	if entry.AlgoID != 0 {
		hook, err := r.registry.Compression(entry.AlgoID)
		if err != nil {
			return p, err
		}
		p.Compression = hook
	}
	return p, nil
}

// VerifyFile compares the checksum of the local file at localPath against
// the checksum recorded for vfsPath, without reading any payload out of
// the container. Works for both Manifest and Archive containers, and
// requires a decrypted index.
func (r *Reader) VerifyFile(localPath, vfsPath string) error {
	entry, err := r.lookup(vfsPath)
	if err != nil {
		return err
	}
	if r.header.ChecksumAlgoID == 0 {
		return errors.Reason("cannot verify %(path)q: container was built without checksums").D("path", vfsPath).Err()
	}
	hook, err := r.registry.Checksum(r.header.ChecksumAlgoID)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		return errors.Annotate(err).Reason("reading %(path)q").D("path", localPath).Err()
	}
	got, err := hook.Compute(data)
	if err != nil {
		return errors.Annotate(err).Reason("computing checksum for %(path)q").D("path", localPath).Err()
	}
	if !bytes.Equal(got, entry.Checksum) {
		return errors.Annotate(container.ErrChecksumMismatch).Reason(
			"checksum mismatch for %(path)q").D("path", vfsPath).Err()
	}
	return nil
}

// Mode reports whether this container is a Manifest or an Archive.
func (r *Reader) Mode() container.Mode { return r.header.Mode }

// IndexDecrypted reports whether path-based lookups (Stat, ListAll,
// ReadPath, VerifyFile) are available.
func (r *Reader) IndexDecrypted() bool { return r.indexDecrypted }

// Close releases the Reader's backing storage. Not safe to call
// concurrently with any other Reader method.
func (r *Reader) Close() error {
	var err error
	r.closeOnce.Do(func() { err = r.backing.Close() })
	return err
}

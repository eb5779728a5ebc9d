// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package blobstore

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/zeebo/blake3"
	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/symvault/lib/secret"
)

var (
	// ErrNotFound reports that no blob with the given id exists. An id
	// that is not valid hex is treated the same as an absent blob.
	ErrNotFound = errors.New("blob not found")
	// ErrCorrupt reports that a container file exists but its content
	// cannot be trusted: bad framing, failed chunk authentication, or
	// a content digest that does not match the blob id.
	ErrCorrupt = errors.New("blob corrupt")
)

const (
	// DefaultChunkSize is the uncompressed chunk size used when
	// Options.ChunkSize is zero.
	DefaultChunkSize = 1 << 20
	// MinChunkSize is the smallest accepted chunk size.
	MinChunkSize = 4096
)

// Options configures a Store.
type Options struct {
	// Root is the store directory. Created if absent (unless ReadOnly).
	Root string
	// ReadOnly opens the store without the writer lock. Write and
	// Delete fail on a read-only store.
	ReadOnly bool
	// ChunkSize is the uncompressed bytes per chunk. Zero means
	// DefaultChunkSize.
	ChunkSize int64
	// Compression is the preferred chunk compression. Ignored when
	// AutoCompression is set. Incompressible chunks are stored raw
	// regardless.
	Compression CompressionTag
	// AutoCompression probes each blob's first chunk and picks a
	// compression for the whole blob.
	AutoCompression bool
	// Key is the 32-byte master key for at-rest encryption. Nil
	// disables encryption. The store takes ownership and closes the
	// buffer on Close.
	Key *secret.Buffer
}

// Store is a content-addressed blob store rooted at a directory. It is
// safe for concurrent use; concurrent writes of identical content race
// benignly on the final rename.
type Store struct {
	root            string
	blobsDir        string
	tmpDir          string
	readOnly        bool
	chunkSize       int64
	compression     CompressionTag
	autoCompression bool
	key             *secret.Buffer
	lockFile        *os.File
}

// WriteResult describes a completed Write.
type WriteResult struct {
	// BlobID is the hex content digest, and the id for Open.
	BlobID string
	// Size is the uncompressed content size in bytes.
	Size int64
	// StoredSize is the container file size on disk.
	StoredSize int64
	// Chunks is the number of chunk records.
	Chunks int64
	// Compression is the tag chosen for the blob. Individual
	// incompressible chunks may still carry CompressionNone.
	Compression CompressionTag
	// Existed reports that the content was already present and the
	// existing container was kept.
	Existed bool
}

// BlobInfo describes a stored blob without reading its content.
type BlobInfo struct {
	BlobID     string
	Size       int64
	StoredSize int64
	Chunks     int64
	Encrypted  bool
	CreatedAt  time.Time
}

// NewStore opens (creating if needed) a store rooted at options.Root.
// A writable store holds an exclusive flock for its lifetime, so a
// second writable open of the same root fails until Close.
func NewStore(options Options) (*Store, error) {
	if options.Root == "" {
		return nil, errors.New("blobstore: root directory is required")
	}
	chunkSize := options.ChunkSize
	if chunkSize == 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkSize < MinChunkSize || chunkSize > MaxChunkSize {
		return nil, fmt.Errorf("blobstore: chunk size %d out of range [%d, %d]", chunkSize, MinChunkSize, int64(MaxChunkSize))
	}
	if options.Key != nil && options.Key.Len() != KeySize {
		return nil, fmt.Errorf("blobstore: encryption key must be %d bytes, got %d", KeySize, options.Key.Len())
	}

	store := &Store{
		root:            options.Root,
		blobsDir:        filepath.Join(options.Root, "blobs"),
		tmpDir:          filepath.Join(options.Root, "tmp"),
		readOnly:        options.ReadOnly,
		chunkSize:       chunkSize,
		compression:     options.Compression,
		autoCompression: options.AutoCompression,
		key:             options.Key,
	}
	if options.ReadOnly {
		return store, nil
	}

	if err := os.MkdirAll(store.blobsDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating blob directory: %w", err)
	}
	if err := os.MkdirAll(store.tmpDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating temp directory: %w", err)
	}
	if err := store.acquireLock(); err != nil {
		return nil, err
	}
	// Leftovers from a crashed writer. The flock guarantees no live
	// writer owns them.
	store.sweepTemp()
	return store, nil
}

func (s *Store) acquireLock() error {
	lockPath := filepath.Join(s.root, ".lock")
	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return fmt.Errorf("opening store lock: %w", err)
	}
	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		file.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return fmt.Errorf("store %s is locked by another process", s.root)
		}
		return fmt.Errorf("locking store %s: %w", s.root, err)
	}
	s.lockFile = file
	return nil
}

func (s *Store) sweepTemp() {
	entries, err := os.ReadDir(s.tmpDir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		os.Remove(filepath.Join(s.tmpDir, entry.Name()))
	}
}

// Root returns the store root directory.
func (s *Store) Root() string {
	return s.root
}

// Encrypted reports whether the store seals new blobs.
func (s *Store) Encrypted() bool {
	return s.key != nil
}

// Close releases the writer lock and the encryption key. Open handles
// remain readable. Idempotent.
func (s *Store) Close() error {
	var firstError error
	if s.key != nil {
		firstError = s.key.Close()
		s.key = nil
	}
	if s.lockFile != nil {
		if err := s.lockFile.Close(); err != nil && firstError == nil {
			firstError = err
		}
		s.lockFile = nil
	}
	return firstError
}

func (s *Store) blobPath(digest Hash) string {
	id := digest.String()
	return filepath.Join(s.blobsDir, id[:2], id[2:4], id)
}

// Write streams content into the store and returns its blob id. The
// content is hashed and compressed chunk by chunk into a spool file,
// then published under its digest with an atomic rename. Content that
// already exists is not rewritten.
func (s *Store) Write(reader io.Reader) (*WriteResult, error) {
	if s.readOnly {
		return nil, errors.New("blobstore: store is read-only")
	}

	spool, err := os.CreateTemp(s.tmpDir, "spool-*")
	if err != nil {
		return nil, fmt.Errorf("creating spool file: %w", err)
	}
	defer func() {
		spool.Close()
		os.Remove(spool.Name())
	}()

	spoolWriter := bufio.NewWriter(spool)
	hasher := blake3.New()
	chunk := make([]byte, s.chunkSize)
	tag := s.compression
	var size, chunkCount int64

	for {
		n, readErr := io.ReadFull(reader, chunk)
		if n > 0 {
			data := chunk[:n]
			hasher.Write(data)
			if chunkCount == 0 && s.autoCompression {
				tag = SelectCompression(data)
			}
			usedTag, payload, err := compressWithFallback(tag, data)
			if err != nil {
				return nil, err
			}
			if err := writeChunkRecord(spoolWriter, usedTag, payload); err != nil {
				return nil, err
			}
			size += int64(n)
			chunkCount++
		}
		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("reading blob content: %w", readErr)
		}
	}
	if err := spoolWriter.Flush(); err != nil {
		return nil, fmt.Errorf("writing spool file: %w", err)
	}

	var digest Hash
	copy(digest[:], hasher.Sum(nil))

	finalPath := s.blobPath(digest)
	if info, err := os.Stat(finalPath); err == nil {
		return &WriteResult{
			BlobID:      digest.String(),
			Size:        size,
			StoredSize:  info.Size(),
			Chunks:      chunkCount,
			Compression: tag,
			Existed:     true,
		}, nil
	}

	if _, err := spool.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewinding spool file: %w", err)
	}

	header := &containerHeader{
		Digest:    digest[:],
		Size:      size,
		ChunkSize: s.chunkSize,
		Encrypted: s.key != nil,
		CreatedAt: time.Now().Unix(),
	}

	final, err := os.CreateTemp(s.tmpDir, "blob-*")
	if err != nil {
		return nil, fmt.Errorf("creating container file: %w", err)
	}
	published := false
	defer func() {
		if !published {
			final.Close()
			os.Remove(final.Name())
		}
	}()

	finalWriter := bufio.NewWriter(final)
	if err := writeContainerHeader(finalWriter, header); err != nil {
		return nil, err
	}
	if s.key == nil {
		if _, err := io.Copy(finalWriter, spool); err != nil {
			return nil, fmt.Errorf("copying chunks into container: %w", err)
		}
	} else {
		if err := s.sealSpool(finalWriter, spool, digest, chunkCount); err != nil {
			return nil, err
		}
	}
	if err := finalWriter.Flush(); err != nil {
		return nil, fmt.Errorf("writing container: %w", err)
	}
	if err := final.Sync(); err != nil {
		return nil, fmt.Errorf("syncing container: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(finalPath), 0o700); err != nil {
		return nil, fmt.Errorf("creating shard directory: %w", err)
	}
	if err := os.Rename(final.Name(), finalPath); err != nil {
		return nil, fmt.Errorf("publishing container: %w", err)
	}
	published = true
	final.Close()

	storedSize := int64(0)
	if info, err := os.Stat(finalPath); err == nil {
		storedSize = info.Size()
	}
	return &WriteResult{
		BlobID:      digest.String(),
		Size:        size,
		StoredSize:  storedSize,
		Chunks:      chunkCount,
		Compression: tag,
	}, nil
}

// sealSpool re-frames spooled chunk records through the per-blob AEAD.
func (s *Store) sealSpool(w io.Writer, spool io.Reader, digest Hash, chunkCount int64) error {
	blobKey, err := deriveBlobKey(s.key, digest)
	if err != nil {
		return err
	}
	defer blobKey.Close()
	aead, err := blobAEAD(blobKey)
	if err != nil {
		return err
	}

	spoolReader := bufio.NewReader(spool)
	var lengthPrefix [4]byte
	for chunkIndex := int64(0); chunkIndex < chunkCount; chunkIndex++ {
		if _, err := io.ReadFull(spoolReader, lengthPrefix[:]); err != nil {
			return fmt.Errorf("reading spooled chunk %d length: %w", chunkIndex, err)
		}
		record := make([]byte, binary.LittleEndian.Uint32(lengthPrefix[:]))
		if _, err := io.ReadFull(spoolReader, record); err != nil {
			return fmt.Errorf("reading spooled chunk %d: %w", chunkIndex, err)
		}
		sealed, err := sealChunk(aead, chunkIndex, record)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint32(lengthPrefix[:], uint32(len(sealed)))
		if _, err := w.Write(lengthPrefix[:]); err != nil {
			return fmt.Errorf("writing sealed chunk %d: %w", chunkIndex, err)
		}
		if _, err := w.Write(sealed); err != nil {
			return fmt.Errorf("writing sealed chunk %d: %w", chunkIndex, err)
		}
	}
	return nil
}

// Open returns a streaming handle for the blob. The handle verifies
// the content digest as it streams; an id that is not valid hex or has
// no container file yields ErrNotFound.
func (s *Store) Open(id string) (*Handle, error) {
	digest, err := ParseHash(id)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrNotFound)
	}
	file, err := os.Open(s.blobPath(digest))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("blob %s: %w", digest, ErrNotFound)
		}
		return nil, fmt.Errorf("opening blob %s: %w", digest, err)
	}

	header, err := readContainerHeader(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("blob %s: %w", digest, err)
	}
	if !bytes.Equal(header.Digest, digest[:]) {
		file.Close()
		return nil, fmt.Errorf("blob %s: container holds digest %x: %w", digest, header.Digest, ErrCorrupt)
	}

	handle := &Handle{
		id:     digest,
		file:   file,
		header: header,
		hasher: blake3.New(),
	}
	if header.Encrypted {
		if s.key == nil {
			file.Close()
			return nil, fmt.Errorf("blob %s is encrypted but the store has no key", digest)
		}
		blobKey, err := deriveBlobKey(s.key, digest)
		if err != nil {
			file.Close()
			return nil, err
		}
		aead, err := blobAEAD(blobKey)
		if err != nil {
			blobKey.Close()
			file.Close()
			return nil, err
		}
		handle.blobKey = blobKey
		handle.aead = aead
	}
	return handle, nil
}

// Stat reads a blob's container header without touching its chunks.
func (s *Store) Stat(id string) (*BlobInfo, error) {
	digest, err := ParseHash(id)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrNotFound)
	}
	file, err := os.Open(s.blobPath(digest))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("blob %s: %w", digest, ErrNotFound)
		}
		return nil, fmt.Errorf("opening blob %s: %w", digest, err)
	}
	defer file.Close()

	header, err := readContainerHeader(file)
	if err != nil {
		return nil, fmt.Errorf("blob %s: %w", digest, err)
	}
	if !bytes.Equal(header.Digest, digest[:]) {
		return nil, fmt.Errorf("blob %s: container holds digest %x: %w", digest, header.Digest, ErrCorrupt)
	}
	fileInfo, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat blob %s: %w", digest, err)
	}
	return &BlobInfo{
		BlobID:     digest.String(),
		Size:       header.Size,
		StoredSize: fileInfo.Size(),
		Chunks:     header.chunkCount(),
		Encrypted:  header.Encrypted,
		CreatedAt:  time.Unix(header.CreatedAt, 0).UTC(),
	}, nil
}

// Exists reports whether a container file for the id is present. It
// does not validate the container.
func (s *Store) Exists(id string) (bool, error) {
	digest, err := ParseHash(id)
	if err != nil {
		return false, nil
	}
	if _, err := os.Stat(s.blobPath(digest)); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Delete removes a blob's container file.
func (s *Store) Delete(id string) error {
	if s.readOnly {
		return errors.New("blobstore: store is read-only")
	}
	digest, err := ParseHash(id)
	if err != nil {
		return fmt.Errorf("%v: %w", err, ErrNotFound)
	}
	if err := os.Remove(s.blobPath(digest)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("blob %s: %w", digest, ErrNotFound)
		}
		return fmt.Errorf("deleting blob %s: %w", digest, err)
	}
	return nil
}

// Walk calls fn for every blob id in the store, in lexical order.
// Files that are not valid blob containers are skipped.
func (s *Store) Walk(fn func(id string) error) error {
	return filepath.WalkDir(s.blobsDir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if entry.IsDir() {
			return nil
		}
		id := entry.Name()
		if _, err := ParseHash(id); err != nil {
			return nil
		}
		return fn(id)
	})
}

// Verify reads the blob end to end, checking container framing, chunk
// seals, and the content digest.
func (s *Store) Verify(id string) error {
	handle, err := s.Open(id)
	if err != nil {
		return err
	}
	defer handle.Close()
	if _, err := io.Copy(io.Discard, handle); err != nil {
		return err
	}
	return nil
}

package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.etcd.io/bbolt"
)

var bucketPins = []byte("pins")

// FileStore implements Store using the local filesystem.
// Blobs are stored at: {baseDir}/blobs/{cid[len-2:]}/{cid}
// The last two CID characters are used as the shard directory because every
// CIDv1 raw/sha2-256 string shares the same prefix.
// Pins are recorded in {baseDir}/pins.db.
type FileStore struct {
	baseDir string
	mu      sync.RWMutex
	pins    *bbolt.DB
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a file-based content store rooted at baseDir.
// The directory is created if it does not exist.
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		return nil, ErrInvalidBaseDir
	}
	if err := os.MkdirAll(filepath.Join(baseDir, "blobs"), 0700); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}

	db, err := bbolt.Open(filepath.Join(baseDir, "pins.db"), 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("%w: open pin index: %w", ErrIOFailure, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketPins)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: create pin bucket: %w", ErrIOFailure, err)
	}

	return &FileStore{baseDir: baseDir, pins: db}, nil
}

// Close releases the pin index.
func (fs *FileStore) Close() error {
	return fs.pins.Close()
}

// BlobPath converts a CID to its filesystem path under baseDir.
func BlobPath(baseDir, cid string) string {
	shard := cid[len(cid)-2:]
	return filepath.Join(baseDir, "blobs", shard, cid)
}

// Put stores data under its computed CID. Writing existing content is a no-op.
func (fs *FileStore) Put(ctx context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyContent
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id, err := ComputeCID(data)
	if err != nil {
		return "", err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	path := BlobPath(fs.baseDir, id)
	if _, err := os.Stat(path); err == nil {
		return id, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return "", fmt.Errorf("%w: %w", ErrIOFailure, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".put-*")
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("%w: %w", ErrIOFailure, err)
	}

	return id, nil
}

// Get retrieves the blob for cid and verifies it against the CID.
func (fs *FileStore) Get(ctx context.Context, cid string) ([]byte, error) {
	id, err := ParseCID(cid)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()

	data, err := os.ReadFile(BlobPath(fs.baseDir, id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	if err := VerifyCID(id, data); err != nil {
		return nil, err
	}

	return data, nil
}

// Has checks if a blob exists for cid.
func (fs *FileStore) Has(ctx context.Context, cid string) (bool, error) {
	id, err := ParseCID(cid)
	if err != nil {
		return false, err
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()

	_, err = os.Stat(BlobPath(fs.baseDir, id))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}

	return true, nil
}

// Pin records cid in the pin index. The blob must already be present.
func (fs *FileStore) Pin(ctx context.Context, cid string) error {
	ok, err := fs.Has(ctx, cid)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, cid)
	}

	err = fs.pins.Update(func(tx *bbolt.Tx) error {
		stamp := time.Now().UTC().Format(time.RFC3339)
		return tx.Bucket(bucketPins).Put([]byte(cid), []byte(stamp))
	})
	if err != nil {
		return fmt.Errorf("%w: pin %s: %w", ErrIOFailure, cid, err)
	}
	return nil
}

// Pinned reports whether cid has been pinned.
func (fs *FileStore) Pinned(cid string) (bool, error) {
	var pinned bool
	err := fs.pins.View(func(tx *bbolt.Tx) error {
		pinned = tx.Bucket(bucketPins).Get([]byte(cid)) != nil
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return pinned, nil
}

// Size returns the size in bytes of the stored blob.
func (fs *FileStore) Size(cid string) (int64, error) {
	id, err := ParseCID(cid)
	if err != nil {
		return 0, err
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()

	info, err := os.Stat(BlobPath(fs.baseDir, id))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}

	return info.Size(), nil
}

// List returns all stored CIDs by scanning the shard directories.
func (fs *FileStore) List() ([]string, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	root := filepath.Join(fs.baseDir, "blobs")
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}

	var result []string
	for _, entry := range entries {
		if !entry.IsDir() || len(entry.Name()) != 2 {
			continue
		}
		files, err := os.ReadDir(filepath.Join(root, entry.Name()))
		if err != nil {
			continue
		}
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			if _, err := ParseCID(f.Name()); err != nil {
				continue // temp files and strays
			}
			result = append(result, f.Name())
		}
	}

	return result, nil
}

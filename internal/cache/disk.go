package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
)

const diskSuffix = ".zst"

// DiskStore is a durable Store keeping one zstd-compressed file per key.
// Writes go through a temp file and rename so readers never observe a
// partial entry.
type DiskStore struct {
	basePath string

	mu      sync.Mutex
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewDiskStore creates the base directory if needed and prepares the
// compressor.
func NewDiskStore(basePath string) (*DiskStore, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &DiskStore{basePath: basePath, encoder: encoder, decoder: decoder}, nil
}

// Get reads and decompresses the entry for key.
func (s *DiskStore) Get(key string) ([]byte, bool, error) {
	data, err := os.ReadFile(s.path(key))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache entry: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out, err := s.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decompress cache entry: %w", err)
	}
	return out, true, nil
}

// Set compresses and writes the entry atomically.
func (s *DiskStore) Set(key string, value []byte) error {
	s.mu.Lock()
	compressed := s.encoder.EncodeAll(value, nil)
	s.mu.Unlock()

	tmp, err := os.CreateTemp(s.basePath, "entry-*")
	if err != nil {
		return fmt.Errorf("failed to create temp cache file: %w", err)
	}
	if _, err := tmp.Write(compressed); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close cache entry: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to commit cache entry: %w", err)
	}
	return nil
}

// Delete removes the entry for key if it exists.
func (s *DiskStore) Delete(key string) error {
	err := os.Remove(s.path(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// Keys lists the keys currently on disk.
func (s *DiskStore) Keys() ([]string, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache directory: %w", err)
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, diskSuffix) {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, diskSuffix))
	}
	return keys, nil
}

// Close releases the compressor resources.
func (s *DiskStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.encoder.Close()
	s.decoder.Close()
	return nil
}

func (s *DiskStore) path(key string) string {
	return filepath.Join(s.basePath, key+diskSuffix)
}

var _ Lister = (*DiskStore)(nil)

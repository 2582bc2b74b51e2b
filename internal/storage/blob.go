// Package storage keeps recordings on disk and journals predictions.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNoBlobs is returned by Latest when the store holds no matching file
var ErrNoBlobs = errors.New("no files in store")

// BlobStore is a flat namespace of named files
type BlobStore interface {
	Put(name string, data []byte) (string, error)
	Get(name string) ([]byte, error)
	Latest(ext string) (BlobInfo, error)
	Prune(ext string, keep int) (int, error)
	Path(name string) string
}

// BlobInfo describes a stored file
type BlobInfo struct {
	Name    string
	ModTime time.Time
	Size    int64
}

// FSBlobStore is a BlobStore rooted at a directory
type FSBlobStore struct {
	dir string
}

// NewFSBlobStore creates dir if needed
func NewFSBlobStore(dir string) (*FSBlobStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create blob directory %s: %w", dir, err)
	}
	return &FSBlobStore{dir: dir}, nil
}

// GeneratedName returns a collision-free name for a synthesized recording
func GeneratedName(now time.Time) string {
	return fmt.Sprintf("motor_signals_%s_%s.mat", now.Format("20060102_150405"), uuid.NewString()[:8])
}

// UploadName returns a collision-free name for an uploaded file, keeping the
// client's base name for readability
func UploadName(now time.Time, clientName string) string {
	base := filepath.Base(filepath.Clean("/" + clientName))
	return fmt.Sprintf("%s_%s_%s", now.Format("20060102_150405"), uuid.NewString()[:8], base)
}

// Put writes data under name atomically and returns the full path
func (s *FSBlobStore) Put(name string, data []byte) (string, error) {
	if err := validName(name); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(s.dir, ".put-*")
	if err != nil {
		return "", fmt.Errorf("could not create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("could not write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("could not write %s: %w", name, err)
	}

	path := s.Path(name)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("could not store %s: %w", name, err)
	}
	return path, nil
}

// Get reads a stored file
func (s *FSBlobStore) Get(name string) ([]byte, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	return os.ReadFile(s.Path(name))
}

// Path returns where name lives on disk
func (s *FSBlobStore) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// list returns files with the given extension, newest first
func (s *FSBlobStore) list(ext string) ([]BlobInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	var out []BlobInfo
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || !strings.HasSuffix(e.Name(), ext) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, BlobInfo{Name: e.Name(), ModTime: fi.ModTime(), Size: fi.Size()})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].ModTime.Equal(out[j].ModTime) {
			return out[i].Name > out[j].Name
		}
		return out[i].ModTime.After(out[j].ModTime)
	})
	return out, nil
}

// Latest returns the most recently modified file with the extension
func (s *FSBlobStore) Latest(ext string) (BlobInfo, error) {
	files, err := s.list(ext)
	if err != nil {
		return BlobInfo{}, err
	}
	if len(files) == 0 {
		return BlobInfo{}, ErrNoBlobs
	}
	return files[0], nil
}

// Prune removes all but the newest keep files with the extension and
// returns how many were removed
func (s *FSBlobStore) Prune(ext string, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	files, err := s.list(ext)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, f := range files[min(keep, len(files)):] {
		if err := os.Remove(s.Path(f.Name)); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("could not remove %s: %w", f.Name, err)
		}
		removed++
	}
	return removed, nil
}

func validName(name string) error {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return fmt.Errorf("invalid file name %q", name)
	}
	return nil
}

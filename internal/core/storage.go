package core

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrFileTooLarge    = errors.New("file too large")
	ErrEmptyFile       = errors.New("empty file")
	ErrNoFile          = errors.New("no file provided")
	ErrInvalidFileName = errors.New("invalid file name")
)

const thumbnailDir = "thumbnails"

// FileStore keeps uploaded packages and their extracted previews on disk:
//
//	<root>/<uuid>.3mf
//	<root>/thumbnails/<uuid>.png
type FileStore struct {
	root    string
	maxSize int64
}

// NewFileStore creates root and its thumbnail directory if needed.
func NewFileStore(root string, maxSize int64) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Join(root, thumbnailDir), 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &FileStore{root: root, maxSize: maxSize}, nil
}

// StoredFile describes a file copied to disk.
type StoredFile struct {
	Name   string
	Path   string
	Size   int64
	SHA256 string
}

// spool copies r into a new temp file in dir, refusing more than limit bytes.
// On error nothing is left behind.
func spool(dir, pattern string, r io.Reader, limit int64) (StoredFile, error) {
	tmp, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return StoredFile{}, fmt.Errorf("create temp file: %w", err)
	}
	fail := func(err error) (StoredFile, error) {
		tmp.Close()
		os.Remove(tmp.Name())
		return StoredFile{}, err
	}

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(tmp, h), io.LimitReader(r, limit+1))
	if err != nil {
		return fail(fmt.Errorf("write upload: %w", err))
	}
	if n > limit {
		return fail(fmt.Errorf("%w: more than %d bytes", ErrFileTooLarge, limit))
	}
	if n == 0 {
		return fail(ErrEmptyFile)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return StoredFile{}, fmt.Errorf("close upload: %w", err)
	}
	return StoredFile{Path: tmp.Name(), Size: n, SHA256: hex.EncodeToString(h.Sum(nil))}, nil
}

// Save stores r under a fresh name.
func (fs *FileStore) Save(r io.Reader) (StoredFile, error) {
	sf, err := spool(fs.root, ".upload-*", r, fs.maxSize)
	if err != nil {
		return StoredFile{}, err
	}
	name := uuid.NewString() + ".3mf"
	dest := filepath.Join(fs.root, name)
	if err := os.Rename(sf.Path, dest); err != nil {
		os.Remove(sf.Path)
		return StoredFile{}, fmt.Errorf("store upload: %w", err)
	}
	if err := os.Chmod(dest, 0o644); err != nil {
		os.Remove(dest)
		return StoredFile{}, fmt.Errorf("store upload: %w", err)
	}
	sf.Name, sf.Path = name, dest
	return sf, nil
}

// Path returns where the package called name is stored.
func (fs *FileStore) Path(name string) (string, error) {
	if !validFileName(name) {
		return "", ErrInvalidFileName
	}
	return filepath.Join(fs.root, name), nil
}

// ThumbnailPath returns where the preview called name is stored.
func (fs *FileStore) ThumbnailPath(name string) (string, error) {
	if !validFileName(name) {
		return "", ErrInvalidFileName
	}
	return filepath.Join(fs.root, thumbnailDir, name), nil
}

// Remove deletes a stored package. Missing files are not an error.
func (fs *FileStore) Remove(name string) error {
	return removeIn(fs.Path, name)
}

// RemoveThumbnail deletes a stored preview. Missing files are not an error.
func (fs *FileStore) RemoveThumbnail(name string) error {
	return removeIn(fs.ThumbnailPath, name)
}

func removeIn(resolve func(string) (string, error), name string) error {
	if name == "" {
		return nil
	}
	path, err := resolve(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// thumbnailName derives the preview file name from the stored package name
// and the archive entry it was copied from.
func thumbnailName(pkgName, entry string) string {
	ext := strings.ToLower(filepath.Ext(entry))
	if ext == ".jpeg" {
		ext = ".jpg"
	}
	if ext == "" {
		ext = ".png"
	}
	return strings.TrimSuffix(pkgName, filepath.Ext(pkgName)) + ext
}

// validFileName accepts a single path element.
func validFileName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && !strings.HasPrefix(name, ".")
}

package profile

// archive.go is the only place that touches the ZIP container.
//
// A Package is opened once per extraction call and must be closed on every
// return path. Lookups by fixed name tolerate absence: nothing inside a
// package is assumed to exist.

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/m-mizutani/goerr/v2"
)

var (
	// ErrUnreadable is returned when the package path cannot be opened or stat'ed.
	ErrUnreadable = errors.New("file not found or unreadable")

	// ErrNotArchive is returned when the file is readable but is not a ZIP container.
	ErrNotArchive = errors.New("not a valid ZIP archive")
)

// Package is an opened archive container. It is read-only and not safe for
// concurrent use.
type Package struct {
	closer io.Closer
	zr     *zip.Reader
	names  []string
	index  map[string]int
	opts   options
}

// Open opens the package at path. The caller must Close it.
func Open(path string, opts ...Option) (*Package, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, goerr.Wrap(fmt.Errorf("%w: %w", ErrUnreadable, err), "open package", goerr.V("path", path))
	}

	st, err := f.Stat()
	if err != nil || !st.Mode().IsRegular() {
		f.Close()
		if err == nil {
			err = errors.New("not a regular file")
		}
		return nil, goerr.Wrap(fmt.Errorf("%w: %w", ErrUnreadable, err), "open package", goerr.V("path", path))
	}

	pkg, err := NewPackage(f, st.Size(), opts...)
	if err != nil {
		f.Close()
		return nil, goerr.Wrap(err, "open package", goerr.V("path", path))
	}
	pkg.closer = f
	return pkg, nil
}

// NewPackage reads a package from r. Close is a no-op for packages built this way.
func NewPackage(r io.ReaderAt, size int64, opts ...Option) (*Package, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotArchive, err)
	}

	p := &Package{
		zr:    zr,
		names: make([]string, len(zr.File)),
		index: make(map[string]int, len(zr.File)),
		opts:  buildOptions(opts),
	}
	for i, f := range zr.File {
		p.names[i] = f.Name
		// First occurrence wins for duplicated names.
		if _, dup := p.index[f.Name]; !dup {
			p.index[f.Name] = i
		}
	}
	return p, nil
}

// Close releases the underlying file. It is safe to call more than once.
func (p *Package) Close() error {
	if p == nil || p.closer == nil {
		return nil
	}
	err := p.closer.Close()
	p.closer = nil
	return err
}

// Entries returns entry names in archive order.
func (p *Package) Entries() []string {
	out := make([]string, len(p.names))
	copy(out, p.names)
	return out
}

// Len returns the number of entries.
func (p *Package) Len() int {
	return len(p.names)
}

// Has reports whether an entry with this exact name exists.
func (p *Package) Has(name string) bool {
	_, ok := p.index[name]
	return ok
}

// Read returns the content of the named entry. It reports false when the
// entry is missing, is a directory, exceeds the size cap or fails to decompress.
func (p *Package) Read(name string) ([]byte, bool) {
	i, ok := p.index[name]
	if !ok {
		return nil, false
	}
	data, err := p.readFile(p.zr.File[i])
	if err != nil {
		p.opts.logger.Debug("entry read failed", slog.String("entry", name), slog.Any("error", err))
		return nil, false
	}
	return data, true
}

// ReadAt returns the name and content of the entry at index i.
func (p *Package) ReadAt(i int) (string, []byte, error) {
	if i < 0 || i >= len(p.names) {
		return "", nil, fmt.Errorf("entry index %d out of range [0,%d)", i, len(p.names))
	}
	f := p.zr.File[i]
	data, err := p.readFile(f)
	if err != nil {
		return f.Name, nil, fmt.Errorf("read entry %q: %w", f.Name, err)
	}
	return f.Name, data, nil
}

func (p *Package) readFile(f *zip.File) ([]byte, error) {
	if f.FileInfo().IsDir() {
		return nil, fmt.Errorf("entry is a directory")
	}
	limit := p.opts.maxEntrySize
	if f.UncompressedSize64 > uint64(limit) {
		return nil, fmt.Errorf("entry declares %d bytes, limit is %d", f.UncompressedSize64, limit)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	// The declared size can lie, so the cap is enforced on the stream too.
	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("entry exceeds %d bytes", limit)
	}
	return data, nil
}

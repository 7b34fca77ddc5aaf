package profile

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	t.Run("lists entries in archive order", func(t *testing.T) {
		path := writePackage(t, "a.3mf", minimalEntries()...)
		pkg, err := Open(path)
		require.NoError(t, err)
		defer pkg.Close()

		assert.Equal(t, []string{"[Content_Types].xml", "3D/3dmodel.model"}, pkg.Entries())
		assert.Equal(t, 2, pkg.Len())
	})

	t.Run("missing file is unreadable", func(t *testing.T) {
		_, err := Open(filepath.Join(t.TempDir(), "nope.3mf"))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnreadable)
	})

	t.Run("directory is unreadable", func(t *testing.T) {
		_, err := Open(t.TempDir())
		assert.ErrorIs(t, err, ErrUnreadable)
	})

	t.Run("non zip is not an archive", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.3mf")
		require.NoError(t, os.WriteFile(path, []byte("solid cube\nendsolid"), 0o644))
		_, err := Open(path)
		assert.ErrorIs(t, err, ErrNotArchive)
		assert.NotErrorIs(t, err, ErrUnreadable)
	})

	t.Run("close is idempotent", func(t *testing.T) {
		pkg, err := Open(writePackage(t, "a.3mf", minimalEntries()...))
		require.NoError(t, err)
		assert.NoError(t, pkg.Close())
		assert.NoError(t, pkg.Close())
	})
}

func TestPackage_Read(t *testing.T) {
	pkg := openBytes(t, makeZip(t,
		entry{"[Content_Types].xml", contentTypesXML},
		entry{"Metadata/", ""},
		entry{"Metadata/big.config", string(bytes.Repeat([]byte("x"), 2048))},
	), WithMaxEntrySize(1024))
	require.Less(t, len(contentTypesXML), 1024)

	t.Run("by name", func(t *testing.T) {
		data, ok := pkg.Read("[Content_Types].xml")
		assert.True(t, ok)
		assert.Equal(t, contentTypesXML, string(data))
	})

	t.Run("absent name", func(t *testing.T) {
		_, ok := pkg.Read("Metadata/missing.config")
		assert.False(t, ok)
		assert.False(t, pkg.Has("Metadata/missing.config"))
	})

	t.Run("directory reads as absent", func(t *testing.T) {
		_, ok := pkg.Read("Metadata/")
		assert.False(t, ok)
	})

	t.Run("entry over the size cap reads as absent", func(t *testing.T) {
		_, ok := pkg.Read("Metadata/big.config")
		assert.False(t, ok)
	})

	t.Run("by index", func(t *testing.T) {
		name, data, err := pkg.ReadAt(0)
		require.NoError(t, err)
		assert.Equal(t, "[Content_Types].xml", name)
		assert.Equal(t, contentTypesXML, string(data))
	})

	t.Run("index out of range", func(t *testing.T) {
		_, _, err := pkg.ReadAt(3)
		assert.Error(t, err)
		_, _, err = pkg.ReadAt(-1)
		assert.Error(t, err)
	})

	t.Run("reads do not consume entries", func(t *testing.T) {
		first, ok := pkg.Read("[Content_Types].xml")
		require.True(t, ok)
		second, ok := pkg.Read("[Content_Types].xml")
		require.True(t, ok)
		assert.Equal(t, first, second)
	})
}

func TestNewPackage_NotZip(t *testing.T) {
	data := []byte("definitely not a zip")
	_, err := NewPackage(bytes.NewReader(data), int64(len(data)))
	assert.ErrorIs(t, err, ErrNotArchive)
}

package profile

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const contentTypesXML = `<?xml version="1.0" encoding="UTF-8"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
  <Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
  <Default Extension="model" ContentType="application/vnd.ms-package.3dmanufacturing-3dmodel+xml"/>
</Types>`

const modelXML = `<?xml version="1.0" encoding="UTF-8"?>
<model unit="millimeter" xmlns="http://schemas.microsoft.com/3dmanufacturing/core/2015/02">
  <metadata name="Title">Benchy</metadata>
  <metadata name="Designer">CreativeTools</metadata>
  <resources>
    <object id="1" type="model"><mesh/></object>
    <object id="2" type="model"><mesh/></object>
  </resources>
  <build><item objectid="1"/></build>
</model>`

type entry struct {
	name string
	data string
}

// minimalEntries is the smallest package that passes validation.
func minimalEntries() []entry {
	return []entry{
		{"[Content_Types].xml", contentTypesXML},
		{"3D/3dmodel.model", modelXML},
	}
}

func makeZip(t *testing.T, entries ...entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e.name)
		require.NoError(t, err)
		_, err = w.Write([]byte(e.data))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// writePackage writes a zip with the given entries to a temp file named name.
func writePackage(t *testing.T, name string, entries ...entry) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, makeZip(t, entries...), 0o644))
	return path
}

func openBytes(t *testing.T, data []byte, opts ...Option) *Package {
	t.Helper()
	pkg, err := NewPackage(bytes.NewReader(data), int64(len(data)), opts...)
	require.NoError(t, err)
	return pkg
}

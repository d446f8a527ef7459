// Package testutil builds container fixtures shared by unit and integration
// tests.
package testutil

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"
)

// fixtureTime keeps archive bytes identical between runs.
var fixtureTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// ZipEntry is one file of a zip fixture. Store disables compression.
type ZipEntry struct {
	Name  string
	Data  []byte
	Store bool
}

// WriteZip writes entries to path in order and returns path.
func WriteZip(t *testing.T, path string, entries []ZipEntry) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	var buf bytes.Buffer
	writer := zip.NewWriter(&buf)
	for _, entry := range entries {
		method := zip.Deflate
		if entry.Store {
			method = zip.Store
		}
		w, err := writer.CreateHeader(&zip.FileHeader{Name: entry.Name, Method: method, Modified: fixtureTime})
		require.NoError(t, err)
		_, err = w.Write(entry.Data)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	return path
}

// WriteUSDZ writes a zip fixture whose entries are all stored.
func WriteUSDZ(t *testing.T, path string, entries []ZipEntry) string {
	t.Helper()
	stored := make([]ZipEntry, 0, len(entries))
	for _, entry := range entries {
		entry.Store = true
		stored = append(stored, entry)
	}
	return WriteZip(t, path, stored)
}

// GLBView is one buffer view of a GLB fixture. A view with a MimeType,
// or with Image set, is referenced by an image.
type GLBView struct {
	Data     []byte
	MimeType string
	Image    bool
}

type glbBufferView struct {
	Buffer     int   `json:"buffer"`
	ByteOffset int64 `json:"byteOffset"`
	ByteLength int64 `json:"byteLength"`
}

type glbImage struct {
	BufferView int    `json:"bufferView"`
	MimeType   string `json:"mimeType,omitempty"`
}

type glbJSON struct {
	Asset       map[string]string  `json:"asset"`
	Buffers     []map[string]int64 `json:"buffers"`
	BufferViews []glbBufferView    `json:"bufferViews"`
	Images      []glbImage         `json:"images,omitempty"`
}

// BuildGLB assembles a GLB container holding views in one BIN chunk. It
// returns the container bytes and the absolute offset of every view.
func BuildGLB(t *testing.T, views []GLBView) ([]byte, []int64) {
	t.Helper()
	var bin bytes.Buffer
	document := glbJSON{Asset: map[string]string{"version": "2.0"}}
	for index, view := range views {
		document.BufferViews = append(document.BufferViews, glbBufferView{
			ByteOffset: int64(bin.Len()),
			ByteLength: int64(len(view.Data)),
		})
		if view.MimeType != "" || view.Image {
			document.Images = append(document.Images, glbImage{BufferView: index, MimeType: view.MimeType})
		}
		bin.Write(view.Data)
		for bin.Len()%4 != 0 {
			bin.WriteByte(0)
		}
	}
	document.Buffers = []map[string]int64{{"byteLength": int64(bin.Len())}}

	rawJSON, err := json.Marshal(document)
	require.NoError(t, err)
	for len(rawJSON)%4 != 0 {
		rawJSON = append(rawJSON, ' ')
	}

	binStart := int64(12 + 8 + len(rawJSON) + 8)
	offsets := make([]int64, 0, len(views))
	for _, view := range document.BufferViews {
		offsets = append(offsets, binStart+view.ByteOffset)
	}

	var out bytes.Buffer
	total := uint32(binStart) + uint32(bin.Len())
	out.WriteString("glTF")
	writeUint32(&out, 2)
	writeUint32(&out, total)
	writeUint32(&out, uint32(len(rawJSON)))
	writeUint32(&out, 0x4E4F534A)
	out.Write(rawJSON)
	writeUint32(&out, uint32(bin.Len()))
	writeUint32(&out, 0x004E4942)
	out.Write(bin.Bytes())
	return out.Bytes(), offsets
}

// WriteGLB writes a GLB fixture to path and returns the view offsets.
func WriteGLB(t *testing.T, path string, views []GLBView) []int64 {
	t.Helper()
	data, offsets := BuildGLB(t, views)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, data, 0644))
	return offsets
}

// WriteFile writes data below root, creating parent directories.
func WriteFile(t *testing.T, root string, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

// PNG is the smallest byte sequence recognised as PNG content.
var PNG = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0x0D, 'I', 'H', 'D', 'R'}

func writeUint32(buf *bytes.Buffer, value uint32) {
	var scratch [4]byte
	binary.LittleEndian.PutUint32(scratch[:], value)
	buf.Write(scratch[:])
}

package adapters

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resolvemap/internal/resolvemap"
	"resolvemap/internal/types"
	"resolvemap/tests/testutil"
)

func readURI(t *testing.T, uri types.URI) []byte {
	t.Helper()
	resource, err := NewResourceOpenerAdapter().Open(t.Context(), uri)
	require.NoError(t, err)
	defer resource.Close()
	data, err := io.ReadAll(io.NewSectionReader(resource, 0, resource.Size()))
	require.NoError(t, err)
	return data
}

func entryStrings(m *resolvemap.ResolveMap) []string {
	lines := make([]string, 0, m.Len())
	for _, entry := range m.Entries() {
		lines = append(lines, entry.Key+" -> "+entry.URI.String())
	}
	return lines
}

func TestZipProviderContainerEntryAddressing(t *testing.T) {
	path := testutil.WriteZip(t, filepath.Join(t.TempDir(), "models.zip"), []testutil.ZipEntry{
		{Name: "mesh/"},
		{Name: "mesh/door.obj", Data: []byte("v 0 0 0")},
		{Name: "tex/wood.jpg", Data: []byte{0xFF, 0xD8, 0xFF, 0xE0}, Store: true},
	})
	root := types.FileURI(path)

	m, err := NewZipProvider(NewResourceOpenerAdapter()).CreateResolveMap(t.Context(), types.ScanRequest{
		Root:         root,
		ContainerKey: "assets/models.zip",
	})
	require.NoError(t, err)

	want := []string{
		"assets/models.zip/mesh/door.obj -> zip:" + root.String() + "!/mesh/door.obj",
		"assets/models.zip/tex/wood.jpg -> zip:" + root.String() + "!/tex/wood.jpg",
	}
	if diff := cmp.Diff(want, entryStrings(m)); diff != "" {
		t.Fatalf("unexpected entries (-want +got):\n%s", diff)
	}
	assert.Equal(t, []byte("v 0 0 0"), readURI(t, m.ResolveKey("assets/models.zip/mesh/door.obj")))
	assert.Equal(t, []byte{0xFF, 0xD8, 0xFF, 0xE0}, readURI(t, m.ResolveKey("assets/models.zip/tex/wood.jpg")))
}

func TestZipProviderUsesExtensionAsScheme(t *testing.T) {
	path := testutil.WriteZip(t, filepath.Join(t.TempDir(), "City.RPK"), []testutil.ZipEntry{
		{Name: "bin/rules.cgb", Data: []byte("cgb")},
	})
	m, err := NewZipProvider(NewResourceOpenerAdapter()).CreateResolveMap(t.Context(), types.ScanRequest{Root: types.FileURI(path)})
	require.NoError(t, err)
	require.Equal(t, "rpk", m.ResolveKey("bin/rules.cgb").Scheme())
	require.Equal(t, "bin/rules.cgb", resolvemap.RuleFileEntry(m))
}

func TestZipProviderDeterministic(t *testing.T) {
	path := testutil.WriteZip(t, filepath.Join(t.TempDir(), "pack.zip"), []testutil.ZipEntry{
		{Name: "z.obj", Data: []byte("z")},
		{Name: "a.obj", Data: []byte("a")},
		{Name: "m/b.obj", Data: []byte("b")},
	})
	provider := NewZipProvider(NewResourceOpenerAdapter())
	request := types.ScanRequest{Root: types.FileURI(path), ContainerKey: "assets/pack.zip"}
	first, err := provider.CreateResolveMap(t.Context(), request)
	require.NoError(t, err)
	second, err := provider.CreateResolveMap(t.Context(), request)
	require.NoError(t, err)
	require.Equal(t, entryStrings(first), entryStrings(second))
	require.Equal(t, []string{"assets/pack.zip/z.obj", "assets/pack.zip/a.obj", "assets/pack.zip/m/b.obj"}, first.Keys())
}

func TestZipProviderRejectsNonArchives(t *testing.T) {
	path := testutil.WriteFile(t, t.TempDir(), "fake.zip", []byte("not an archive"))
	_, err := NewZipProvider(NewResourceOpenerAdapter()).CreateResolveMap(t.Context(), types.ScanRequest{Root: types.FileURI(path)})
	require.Error(t, err)
	require.Equal(t, errbuilder.CodeFailedPrecondition, errbuilder.CodeOf(err))
}

func TestZipProviderMissingResource(t *testing.T) {
	_, err := NewZipProvider(NewResourceOpenerAdapter()).CreateResolveMap(t.Context(), types.ScanRequest{
		Root: types.FileURI(filepath.Join(t.TempDir(), "missing.zip")),
	})
	require.Error(t, err)
	require.Equal(t, errbuilder.CodeNotFound, errbuilder.CodeOf(err))
}

func TestGLBProviderOffsetLengthAddressing(t *testing.T) {
	first := bytes.Repeat([]byte{1}, 100)
	second := bytes.Repeat([]byte{2}, 250)
	path := filepath.Join(t.TempDir(), "scene.glb")
	offsets := testutil.WriteGLB(t, path, []testutil.GLBView{{Data: first}, {Data: second}})
	require.Equal(t, int64(100), offsets[1]-offsets[0])
	root := types.FileURI(path)

	m, err := NewGLBProvider(NewResourceOpenerAdapter()).CreateResolveMap(t.Context(), types.ScanRequest{
		Root:         root,
		ContainerKey: "assets/scene.glb",
	})
	require.NoError(t, err)

	want := []string{
		fmt.Sprintf("assets/scene.glb/file_0.bin -> glb:%s!/%d/100/file_0.bin", root, offsets[0]),
		fmt.Sprintf("assets/scene.glb/file_1.bin -> glb:%s!/%d/250/file_1.bin", root, offsets[1]),
	}
	if diff := cmp.Diff(want, entryStrings(m)); diff != "" {
		t.Fatalf("unexpected entries (-want +got):\n%s", diff)
	}
	assert.Equal(t, first, readURI(t, m.ResolveKey("assets/scene.glb/file_0.bin")))
	assert.Equal(t, second, readURI(t, m.ResolveKey("assets/scene.glb/file_1.bin")))
}

func TestGLBProviderImageExtensions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "textured.glb")
	testutil.WriteGLB(t, path, []testutil.GLBView{
		{Data: []byte("vertices")},
		{Data: testutil.PNG, MimeType: "image/png"},
		{Data: []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0}, Image: true},
		{Data: []byte("opaque"), Image: true},
	})

	m, err := NewGLBProvider(NewResourceOpenerAdapter()).CreateResolveMap(t.Context(), types.ScanRequest{
		Root:         types.FileURI(path),
		ContainerKey: "assets/textured.glb",
	})
	require.NoError(t, err)
	want := []string{
		"assets/textured.glb/file_0.bin",
		"assets/textured.glb/file_1.png",
		"assets/textured.glb/file_2.jpg",
		"assets/textured.glb/file_3.bin",
	}
	if diff := cmp.Diff(want, m.Keys()); diff != "" {
		t.Fatalf("unexpected keys (-want +got):\n%s", diff)
	}
	require.Equal(t, testutil.PNG, readURI(t, m.ResolveKey("assets/textured.glb/file_1.png")))
}

func TestGLBProviderRejectsBadContainers(t *testing.T) {
	dir := t.TempDir()
	notGLB := testutil.WriteFile(t, dir, "fake.glb", []byte("this is not a glb container"))
	data, _ := testutil.BuildGLB(t, []testutil.GLBView{{Data: []byte("abcd")}})
	truncated := testutil.WriteFile(t, dir, "truncated.glb", data[:len(data)-2])

	for _, path := range []string{notGLB, truncated} {
		_, err := NewGLBProvider(NewResourceOpenerAdapter()).CreateResolveMap(t.Context(), types.ScanRequest{Root: types.FileURI(path)})
		require.Error(t, err, path)
		require.Equal(t, errbuilder.CodeFailedPrecondition, errbuilder.CodeOf(err), path)
	}
}

func TestUSDZProviderAddressesStoredEntries(t *testing.T) {
	path := testutil.WriteUSDZ(t, filepath.Join(t.TempDir(), "chair.usdz"), []testutil.ZipEntry{
		{Name: "chair.usdc", Data: []byte("PXR-USDC")},
		{Name: "textures/seat.png", Data: testutil.PNG},
	})
	root := types.FileURI(path)

	m, err := NewUSDZProvider(NewResourceOpenerAdapter()).CreateResolveMap(t.Context(), types.ScanRequest{
		Root:         root,
		ContainerKey: "assets/chair.usdz",
	})
	require.NoError(t, err)
	require.Equal(t, []string{"assets/chair.usdz/chair.usdc", "assets/chair.usdz/textures/seat.png"}, m.Keys())

	seat := m.ResolveKey("assets/chair.usdz/textures/seat.png")
	offset, length, name, ok := seat.Range()
	require.True(t, ok)
	require.Equal(t, int64(len(testutil.PNG)), length)
	require.Equal(t, "textures/seat.png", name)
	require.Equal(t, types.ComposeRangeURI("usdz", root, offset, length, "textures/seat.png"), seat)
	require.Equal(t, testutil.PNG, readURI(t, seat))
	require.Equal(t, []byte("PXR-USDC"), readURI(t, m.ResolveKey("assets/chair.usdz/chair.usdc")))
}

func TestUSDZProviderRejectsCompressedEntries(t *testing.T) {
	path := testutil.WriteZip(t, filepath.Join(t.TempDir(), "bad.usdz"), []testutil.ZipEntry{
		{Name: "scene.usda", Data: bytes.Repeat([]byte("def Xform {}\n"), 20)},
	})
	_, err := NewUSDZProvider(NewResourceOpenerAdapter()).CreateResolveMap(t.Context(), types.ScanRequest{Root: types.FileURI(path)})
	require.Error(t, err)
	require.Equal(t, errbuilder.CodeFailedPrecondition, errbuilder.CodeOf(err))
}

func TestFileProviderDirectory(t *testing.T) {
	root := t.TempDir()
	testutil.WriteFile(t, root, "elements/window.obj", []byte("o window"))
	testutil.WriteFile(t, root, "elements/glass.jpg", []byte{0xFF, 0xD8, 0xFF})
	testutil.WriteFile(t, root, ".git/HEAD", []byte("ref"))
	testutil.WriteFile(t, root, "rules.cgb", []byte("cgb"))

	m, err := NewFileProvider(NewResourceOpenerAdapter()).CreateResolveMap(t.Context(), types.ScanRequest{
		Root:         types.FileURI(root),
		ContainerKey: "assets",
	})
	require.NoError(t, err)
	require.Equal(t, []string{"assets/elements/glass.jpg", "assets/elements/window.obj", "assets/rules.cgb"}, m.Keys())
	require.Equal(t, filepath.ToSlash(filepath.Join(root, "elements", "window.obj")), m.ResolveKey("assets/elements/window.obj").Path())
}

func TestFileProviderSingleFile(t *testing.T) {
	path := testutil.WriteFile(t, t.TempDir(), "door.obj", []byte("o door"))
	provider := NewFileProvider(NewResourceOpenerAdapter())

	m, err := provider.CreateResolveMap(t.Context(), types.ScanRequest{Root: types.FileURI(path), ContainerKey: "assets/door.obj"})
	require.NoError(t, err)
	require.Equal(t, types.FileURI(path), m.ResolveKey("assets/door.obj"))

	m, err = provider.CreateResolveMap(t.Context(), types.ScanRequest{Root: types.FileURI(path)})
	require.NoError(t, err)
	require.Equal(t, []string{"door.obj"}, m.Keys())
}

func TestSnapshotProviderRoundTrip(t *testing.T) {
	original, err := resolvemap.FromEntries([]types.Entry{
		{Key: "assets/a.obj", URI: types.FileURI("/data/a.obj")},
		{Key: "assets/pack.zip/b.obj", URI: types.MustParseURI("zip:file:/data/pack.zip!/b.obj")},
	})
	require.NoError(t, err)
	store := NewMapStoreAdapter()
	snapshot := MapToSnapshot(original)
	snapshot.Root = "file:/data"
	path := filepath.Join(t.TempDir(), "package.rmap")
	require.NoError(t, store.Save(path, snapshot, types.StoreOptions{Format: types.SnapshotFormatCBOR, Compression: types.CompressionZstd}))

	loaded, err := NewSnapshotProvider(NewResourceOpenerAdapter(), store).CreateResolveMap(t.Context(), types.ScanRequest{Root: types.FileURI(path)})
	require.NoError(t, err)
	require.Equal(t, entryStrings(original), entryStrings(loaded))
}

func TestSnapshotToMapRejectsConflicts(t *testing.T) {
	_, err := SnapshotToMap(types.MapSnapshot{Entries: []types.SnapshotEntry{
		{Key: "a", URI: "file:/a"},
		{Key: "a", URI: "file:/b"},
	}})
	require.Equal(t, errbuilder.CodeAlreadyExists, errbuilder.CodeOf(err))

	_, err = SnapshotToMap(types.MapSnapshot{Entries: []types.SnapshotEntry{{Key: "a", URI: "file:/bad%zz"}}})
	require.Equal(t, errbuilder.CodeFailedPrecondition, errbuilder.CodeOf(err))
}

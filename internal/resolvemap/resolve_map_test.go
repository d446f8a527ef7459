package resolvemap

import (
	"sync"
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"resolvemap/internal/types"
)

func sampleMap(t *testing.T) *ResolveMap {
	t.Helper()
	archive := types.FileURI("/data/models.zip")
	scene := types.FileURI("/data/scene.glb")
	shared := types.ComposeEntryURI("zip", archive, "tex/shared.jpg")
	entries := []types.Entry{
		{Key: "assets/models.zip/mesh/door.obj", URI: types.ComposeEntryURI("zip", archive, "mesh/door.obj")},
		{Key: "assets/models.zip/tex/shared.jpg", URI: shared},
		{Key: "assets/models.zip/tex/alias.jpg", URI: shared},
		{Key: "assets/scene.glb/file_0.bin", URI: types.ComposeRangeURI("glb", scene, 40, 100, "file_0.bin")},
		{Key: "assets/scene.glb/file_1.bin", URI: types.ComposeRangeURI("glb", scene, 140, 250, "file_1.bin")},
		{Key: "/city/assets/facade.png", URI: types.FileURI("/data/city/facade.png")},
		{Key: "/city/assets/window.obj", URI: types.FileURI("/data/city/window.obj")},
		{Key: "/city/bin/rules.cgb", URI: types.FileURI("/data/city/rules.cgb")},
	}
	m, err := FromEntries(entries)
	require.NoError(t, err)
	return m
}

func TestResolveKey(t *testing.T) {
	m := sampleMap(t)
	uri := m.ResolveKey("assets/models.zip/mesh/door.obj")
	if diff := cmp.Diff("zip:file:/data/models.zip!/mesh/door.obj", uri.String()); diff != "" {
		t.Fatalf("unexpected uri (-want +got):\n%s", diff)
	}
	require.True(t, m.ResolveKey("assets/missing.obj").IsEmpty())
	require.Equal(t, "", m.GetString("assets/missing.obj"))
}

func TestResolveURIReturnsAliases(t *testing.T) {
	m := sampleMap(t)
	shared := types.MustParseURI("zip:file:/data/models.zip!/tex/shared.jpg")
	keys := m.ResolveURI(shared)
	if diff := cmp.Diff([]string{"assets/models.zip/tex/shared.jpg", "assets/models.zip/tex/alias.jpg"}, keys); diff != "" {
		t.Fatalf("unexpected keys (-want +got):\n%s", diff)
	}
	require.Empty(t, m.ResolveURI(types.MustParseURI("file:/nowhere")))
	require.Empty(t, m.ResolveURI(types.EmptyURI))
}

func TestBidirectionalConsistency(t *testing.T) {
	m := sampleMap(t)
	for _, key := range m.Keys() {
		require.Contains(t, m.ResolveURI(m.ResolveKey(key)), key)
	}
}

func TestResolveURIResultIsACopy(t *testing.T) {
	m := sampleMap(t)
	shared := types.MustParseURI("zip:file:/data/models.zip!/tex/shared.jpg")
	keys := m.ResolveURI(shared)
	keys[0] = "mutated"
	require.Equal(t, "assets/models.zip/tex/shared.jpg", m.ResolveURI(shared)[0])
}

func TestBuilderRejectsConflicts(t *testing.T) {
	builder := NewBuilder()
	first := types.FileURI("/a.obj")
	require.NoError(t, builder.Add("a.obj", first))
	require.NoError(t, builder.Add("a.obj", first))

	err := builder.Add("a.obj", types.FileURI("/b.obj"))
	require.Error(t, err)
	require.Equal(t, errbuilder.CodeAlreadyExists, errbuilder.CodeOf(err))

	m := builder.Build()
	require.Equal(t, 1, m.Len())
	require.Equal(t, first, m.ResolveKey("a.obj"))
	require.Equal(t, []string{"a.obj"}, m.ResolveURI(first))
}

func TestBuilderRejectsEmptyInput(t *testing.T) {
	builder := NewBuilder()
	require.Equal(t, errbuilder.CodeInvalidArgument, errbuilder.CodeOf(builder.Add("", types.FileURI("/a"))))
	require.Equal(t, errbuilder.CodeInvalidArgument, errbuilder.CodeOf(builder.Add("a", types.EmptyURI)))
}

func TestBuildPublishesIndependentMap(t *testing.T) {
	builder := NewBuilder()
	require.NoError(t, builder.Add("a.obj", types.FileURI("/a.obj")))
	published := builder.Build()
	require.NoError(t, builder.Add("b.obj", types.FileURI("/b.obj")))
	require.Equal(t, 1, published.Len())
	require.False(t, published.Contains("b.obj"))
}

func TestBuilderMergeKeepsOrder(t *testing.T) {
	builder := NewBuilder()
	require.NoError(t, builder.Add("first", types.FileURI("/first")))
	require.NoError(t, builder.Merge(sampleMap(t)))
	m := builder.Build()
	require.Equal(t, "first", m.Keys()[0])
	require.Equal(t, "assets/models.zip/mesh/door.obj", m.Keys()[1])
}

func TestResolveKeyWithURIFallback(t *testing.T) {
	m := sampleMap(t)

	registered := ResolveKeyWithURIFallback(m, "assets/models.zip/mesh/door.obj")
	require.Equal(t, "zip:file:/data/models.zip!/mesh/door.obj", registered.String())

	fallback := ResolveKeyWithURIFallback(m, "unregistered%20key")
	require.Equal(t, "unregistered%20key", fallback.String())
	require.Equal(t, "unregistered key", fallback.Name())

	literal := ResolveKeyWithURIFallback(m, "file:/tmp/x%20y.obj")
	require.Equal(t, "/tmp/x y.obj", literal.Path())

	require.True(t, ResolveKeyWithURIFallback(m, "bad%zz").IsEmpty())
	require.Equal(t, "file:/a", ResolveKeyWithURIFallback(nil, "file:/a").String())
}

func TestRuleFileEntry(t *testing.T) {
	require.Equal(t, "/city/bin/rules.cgb", RuleFileEntry(sampleMap(t)))
	require.Equal(t, "", RuleFileEntry(Empty()))
}

func TestConcurrentReads(t *testing.T) {
	m := sampleMap(t)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				for _, key := range m.Keys() {
					uri := m.ResolveKey(key)
					if len(m.ResolveURI(uri)) == 0 {
						t.Errorf("reverse lookup lost %s", key)
						return
					}
				}
				if _, err := m.SearchKey("/city", "*.obj"); err != nil {
					t.Errorf("search failed: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestNilMapIsEmpty(t *testing.T) {
	var m *ResolveMap
	require.True(t, m.ResolveKey("a").IsEmpty())
	require.Empty(t, m.ResolveURI(types.FileURI("/a")))
	require.Empty(t, m.Keys())
	require.Equal(t, 0, m.Len())
}

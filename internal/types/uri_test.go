package types

import (
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestComposeURIs(t *testing.T) {
	archive := FileURI("/data/models.zip")
	require.Equal(t, "file:/data/models.zip", archive.String())

	entry := ComposeEntryURI("zip", archive, "mesh/door.obj")
	if diff := cmp.Diff("zip:file:/data/models.zip!/mesh/door.obj", entry.String()); diff != "" {
		t.Fatalf("unexpected entry uri (-want +got):\n%s", diff)
	}

	scene := FileURI("/data/scene.glb")
	buffer := ComposeRangeURI("glb", scene, 40, 100, "file_0.bin")
	if diff := cmp.Diff("glb:file:/data/scene.glb!/40/100/file_0.bin", buffer.String()); diff != "" {
		t.Fatalf("unexpected range uri (-want +got):\n%s", diff)
	}
}

func TestURIAccessors(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		scheme    string
		composite bool
		outer     string
		entryPath string
		uriName   string
		rangeOK   bool
		offset    int64
		length    int64
		filePath  string
	}{
		{
			name:     "plain file",
			raw:      "file:/data/my%20models.zip",
			scheme:   "file",
			uriName:  "my models.zip",
			filePath: "/data/my models.zip",
		},
		{
			name:     "file with authority",
			raw:      "file:///data/models.zip",
			scheme:   "file",
			uriName:  "models.zip",
			filePath: "/data/models.zip",
		},
		{
			name:      "archive entry",
			raw:       "zip:file:/data/models.zip!/mesh/door.obj",
			scheme:    "zip",
			composite: true,
			outer:     "file:/data/models.zip",
			entryPath: "mesh/door.obj",
			uriName:   "door.obj",
		},
		{
			name:      "byte range",
			raw:       "glb:file:/data/scene.glb!/140/250/file_1.bin",
			scheme:    "glb",
			composite: true,
			outer:     "file:/data/scene.glb",
			entryPath: "140/250/file_1.bin",
			uriName:   "file_1.bin",
			rangeOK:   true,
			offset:    140,
			length:    250,
		},
		{
			name:      "nested",
			raw:       "glb:zip:file:/p/a.rpk!/m/s.glb!/12/8/file_0.png",
			scheme:    "glb",
			composite: true,
			outer:     "zip:file:/p/a.rpk!/m/s.glb",
			entryPath: "12/8/file_0.png",
			uriName:   "file_0.png",
			rangeOK:   true,
			offset:    12,
			length:    8,
		},
		{
			name:    "scheme-less reference",
			raw:     "unregistered%20key",
			uriName: "unregistered key",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			uri, err := ParseURI(tt.raw)
			require.NoError(t, err)
			require.Equal(t, tt.raw, uri.String())
			require.Equal(t, tt.scheme, uri.Scheme())
			require.Equal(t, tt.composite, uri.IsComposite())
			outer, ok := uri.Outer()
			require.Equal(t, tt.composite, ok)
			require.Equal(t, tt.outer, outer.String())
			require.Equal(t, tt.entryPath, uri.EntryPath())
			require.Equal(t, tt.uriName, uri.Name())
			require.Equal(t, tt.filePath, uri.Path())
			offset, length, _, rangeOK := uri.Range()
			require.Equal(t, tt.rangeOK, rangeOK)
			require.Equal(t, tt.offset, offset)
			require.Equal(t, tt.length, length)
		})
	}
}

func TestParseURIRejectsBadEscapes(t *testing.T) {
	for _, raw := range []string{"", "file:/a%2", "a%zzb"} {
		_, err := ParseURI(raw)
		require.Error(t, err)
		require.Equal(t, errbuilder.CodeInvalidArgument, errbuilder.CodeOf(err))
	}
}

func TestURIEqualityIsCanonicalString(t *testing.T) {
	a := MustParseURI("zip:file:/data/models.zip!/mesh/door.obj")
	b := ComposeEntryURI("zip", FileURI("/data/models.zip"), "mesh/door.obj")
	require.True(t, a.Equal(b))
	require.Equal(t, a, b)
	require.True(t, EmptyURI.IsEmpty())
	require.False(t, a.Equal(EmptyURI))
}

func TestEscapePathProtectsSelectorSeparator(t *testing.T) {
	uri := ComposeEntryURI("zip", FileURI("/data/a!b.zip"), "x!/y z.obj")
	require.Equal(t, "zip:file:/data/a%21b.zip!/x%21/y%20z.obj", uri.String())
	outer, ok := uri.Outer()
	require.True(t, ok)
	require.Equal(t, "/data/a!b.zip", outer.Path())
	require.Equal(t, "x!/y z.obj", uri.EntryPath())
}

func TestURITextRoundTrip(t *testing.T) {
	uri := MustParseURI("usdz:file:/d/s.usdz!/64/10/tex/a.png")
	text, err := uri.MarshalText()
	require.NoError(t, err)
	var decoded URI
	require.NoError(t, decoded.UnmarshalText(text))
	require.Equal(t, uri, decoded)
}

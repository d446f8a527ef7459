package app

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"resolvemap/internal/types"
)

func fixedClock() time.Time {
	return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
}

func TestExportAndInspect(t *testing.T) {
	dir := t.TempDir()
	path := writeRulePackage(t, dir)
	service := NewService(DefaultConfig())
	service.Clock = fixedClock

	tests := []struct {
		name            string
		format          string
		compression     string
		wantFormat      types.SnapshotFormat
		wantCompression types.Compression
	}{
		{name: "defaults", wantFormat: types.SnapshotFormatCBOR, wantCompression: types.CompressionZstd},
		{name: "cbor lz4", format: "cbor", compression: "lz4", wantFormat: types.SnapshotFormatCBOR, wantCompression: types.CompressionLZ4},
		{name: "yaml", format: "YAML", compression: "zstd", wantFormat: types.SnapshotFormatYAML, wantCompression: types.CompressionNone},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			output := filepath.Join(dir, tt.name+".rmap")
			exported, err := service.Export(t.Context(), ExportRequest{
				Root:        path,
				Output:      output,
				Format:      tt.format,
				Compression: tt.compression,
			})
			require.NoError(t, err)
			require.Equal(t, 5, exported.Keys)
			require.Equal(t, tt.wantFormat, exported.Format)
			require.Equal(t, tt.wantCompression, exported.Compression)

			inspected, err := service.Inspect(InspectRequest{Path: output})
			require.NoError(t, err)
			require.Equal(t, types.FileURI(path).String(), inspected.Root)
			require.Equal(t, exported.Digest, inspected.Digest)
			require.Equal(t, types.ProviderZip, inspected.Provider)
			require.Equal(t, "2025-03-01T12:00:00Z", inspected.CreatedAt)
			require.Equal(t, 5, inspected.Entries)
			require.Equal(t, "assets/city.rpk/bin/rules.cgb", inspected.RuleFile)
		})
	}
}

func TestExportedSnapshotLoadsAsPackage(t *testing.T) {
	dir := t.TempDir()
	path := writeRulePackage(t, dir)
	service := NewService(DefaultConfig())
	output := filepath.Join(dir, "city.rmap")

	_, err := service.Export(t.Context(), ExportRequest{Root: path, Output: output})
	require.NoError(t, err)

	original, err := service.LoadResolveMap(t.Context(), path)
	require.NoError(t, err)
	restored, err := service.LoadResolveMap(t.Context(), output)
	require.NoError(t, err)
	if diff := cmp.Diff(original.Keys(), restored.Keys()); diff != "" {
		t.Fatalf("snapshot keys differ (-want +got):\n%s", diff)
	}
	for _, key := range original.Keys() {
		require.True(t, original.ResolveKey(key).Equal(restored.ResolveKey(key)), key)
	}
}

func TestExportRejectsBadOptions(t *testing.T) {
	path := writeRulePackage(t, t.TempDir())
	service := NewService(DefaultConfig())

	tests := []struct {
		name string
		req  ExportRequest
	}{
		{name: "missing output", req: ExportRequest{Root: path}},
		{name: "unknown format", req: ExportRequest{Root: path, Output: "out.rmap", Format: "json"}},
		{name: "unknown compression", req: ExportRequest{Root: path, Output: "out.rmap", Compression: "brotli"}},
		{name: "missing root", req: ExportRequest{Output: "out.rmap"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Export(t.Context(), tt.req)
			require.Equal(t, errbuilder.CodeInvalidArgument, errbuilder.CodeOf(err))
		})
	}
}

func TestInspectMissingSnapshot(t *testing.T) {
	service := NewService(DefaultConfig())
	_, err := service.Inspect(InspectRequest{})
	require.Equal(t, errbuilder.CodeInvalidArgument, errbuilder.CodeOf(err))
	_, err = service.Inspect(InspectRequest{Path: filepath.Join(t.TempDir(), "missing.rmap")})
	require.Equal(t, errbuilder.CodeNotFound, errbuilder.CodeOf(err))
}

package types

type ProviderName string

const (
	ProviderZip      ProviderName = "zip"
	ProviderGLB      ProviderName = "glb"
	ProviderUSDZ     ProviderName = "usdz"
	ProviderFile     ProviderName = "file"
	ProviderSnapshot ProviderName = "snapshot"
)

type SnapshotFormat string

const (
	SnapshotFormatCBOR SnapshotFormat = "cbor"
	SnapshotFormatYAML SnapshotFormat = "yaml"
)

// Compression identifies the payload compression of a binary snapshot.
// The numeric values are stored in snapshot headers.
type Compression uint8

const (
	CompressionNone Compression = 0
	CompressionLZ4  Compression = 1
	CompressionZstd Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return "unknown"
	}
}

// ParseCompression maps a configuration value to a Compression.
func ParseCompression(value string) (Compression, bool) {
	switch value {
	case "", "none":
		return CompressionNone, true
	case "lz4":
		return CompressionLZ4, true
	case "zstd":
		return CompressionZstd, true
	default:
		return CompressionNone, false
	}
}

// ResourceKind is what the resource opener found at a URI.
type ResourceKind string

const (
	ResourceKindFile      ResourceKind = "file"
	ResourceKindDirectory ResourceKind = "directory"
	ResourceKindEmbedded  ResourceKind = "embedded"
)

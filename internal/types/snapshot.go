package types

// SnapshotEntry is the serialized form of an Entry.
type SnapshotEntry struct {
	Key string `yaml:"key" cbor:"1,keyasint"`
	URI string `yaml:"uri" cbor:"2,keyasint"`
}

// MapSnapshot is a persisted resolve map. Entries keep the map's
// canonical order.
type MapSnapshot struct {
	Root      string          `yaml:"root" cbor:"1,keyasint"`
	Digest    string          `yaml:"digest,omitempty" cbor:"2,keyasint,omitempty"`
	Provider  ProviderName    `yaml:"provider,omitempty" cbor:"3,keyasint,omitempty"`
	CreatedAt string          `yaml:"created_at,omitempty" cbor:"4,keyasint,omitempty"`
	Entries   []SnapshotEntry `yaml:"entries" cbor:"5,keyasint"`
}

// StoreOptions selects the on-disk encoding of a snapshot. Compression
// applies to the CBOR format only.
type StoreOptions struct {
	Format      SnapshotFormat
	Compression Compression
}

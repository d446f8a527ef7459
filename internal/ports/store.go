package ports

import "resolvemap/internal/types"

// MapStorePort persists resolve map snapshots.
type MapStorePort interface {
	Encode(snapshot types.MapSnapshot, options types.StoreOptions) ([]byte, error)
	Decode(data []byte) (types.MapSnapshot, error)
	Save(path string, snapshot types.MapSnapshot, options types.StoreOptions) error
	Load(path string) (types.MapSnapshot, error)
}

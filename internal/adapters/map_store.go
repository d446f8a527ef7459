package adapters

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"gopkg.in/yaml.v3"

	"resolvemap/internal/ports"
	"resolvemap/internal/types"
)

// Binary snapshot layout:
//
//	"RMAP" | version (1 byte) | compression (1 byte) | uvarint raw size | payload
//
// The payload is the deterministic CBOR encoding of types.MapSnapshot,
// compressed as the compression byte says. Anything else is read as YAML.
const (
	snapshotMagic   = "RMAP"
	snapshotVersion = 1
	// maxSnapshotSize caps the decoded payload a header may announce.
	maxSnapshotSize = 1 << 30
	// lz4MaxRatio bounds how far one lz4 block can expand.
	lz4MaxRatio = 255
)

var (
	snapshotEncMode cbor.EncMode
	snapshotDecMode cbor.DecMode
	zstdEncoder     *zstd.Encoder
	zstdDecoder     *zstd.Decoder
)

func init() {
	var err error
	snapshotEncMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("snapshot: CBOR encoder initialization failed: " + err.Error())
	}
	snapshotDecMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("snapshot: CBOR decoder initialization failed: " + err.Error())
	}
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("snapshot: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxSnapshotSize))
	if err != nil {
		panic("snapshot: zstd decoder initialization failed: " + err.Error())
	}
}

type MapStoreAdapter struct{}

func NewMapStoreAdapter() MapStoreAdapter {
	return MapStoreAdapter{}
}

func (a MapStoreAdapter) Encode(snapshot types.MapSnapshot, options types.StoreOptions) ([]byte, error) {
	if options.Format == types.SnapshotFormatYAML {
		data, err := yaml.Marshal(snapshot)
		if err != nil {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("failed to encode yaml snapshot").
				WithCause(err)
		}
		return data, nil
	}
	if options.Format != "" && options.Format != types.SnapshotFormatCBOR {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("unknown snapshot format %q", options.Format))
	}
	raw, err := snapshotEncMode.Marshal(snapshot)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to encode cbor snapshot").
			WithCause(err)
	}
	compression, payload, err := compressSnapshot(raw, options.Compression)
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	out.WriteString(snapshotMagic)
	out.WriteByte(snapshotVersion)
	out.WriteByte(byte(compression))
	out.Write(binary.AppendUvarint(nil, uint64(len(raw))))
	out.Write(payload)
	return out.Bytes(), nil
}

func (a MapStoreAdapter) Decode(data []byte) (types.MapSnapshot, error) {
	var snapshot types.MapSnapshot
	if !bytes.HasPrefix(data, []byte(snapshotMagic)) {
		if err := yaml.Unmarshal(data, &snapshot); err != nil {
			return types.MapSnapshot{}, invalidSnapshot(err)
		}
		snapshot.CreatedAt = normalizeCreatedAt(snapshot.CreatedAt)
		return snapshot, nil
	}
	rest := data[len(snapshotMagic):]
	if len(rest) < 2 {
		return types.MapSnapshot{}, invalidSnapshot(fmt.Errorf("truncated header"))
	}
	if rest[0] != snapshotVersion {
		return types.MapSnapshot{}, invalidSnapshot(fmt.Errorf("unsupported version %d", rest[0]))
	}
	compression := types.Compression(rest[1])
	size, n := binary.Uvarint(rest[2:])
	if n <= 0 {
		return types.MapSnapshot{}, invalidSnapshot(fmt.Errorf("bad size field"))
	}
	if size > maxSnapshotSize {
		return types.MapSnapshot{}, invalidSnapshot(fmt.Errorf("announced size %d exceeds %d", size, maxSnapshotSize))
	}
	raw, err := decompressSnapshot(rest[2+n:], compression, int(size))
	if err != nil {
		return types.MapSnapshot{}, invalidSnapshot(err)
	}
	if err := snapshotDecMode.Unmarshal(raw, &snapshot); err != nil {
		return types.MapSnapshot{}, invalidSnapshot(err)
	}
	snapshot.CreatedAt = normalizeCreatedAt(snapshot.CreatedAt)
	return snapshot, nil
}

func (a MapStoreAdapter) Save(path string, snapshot types.MapSnapshot, options types.StoreOptions) error {
	data, err := a.Encode(snapshot, options)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("failed to create snapshot directory").
				WithCause(err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to write snapshot").
			WithCause(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to write snapshot").
			WithCause(err)
	}
	return nil
}

func (a MapStoreAdapter) Load(path string) (types.MapSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.MapSnapshot{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("failed to read snapshot " + path).
			WithCause(err)
	}
	return a.Decode(data)
}

// compressSnapshot falls back to CompressionNone when the payload does not
// shrink.
func compressSnapshot(raw []byte, compression types.Compression) (types.Compression, []byte, error) {
	switch compression {
	case types.CompressionNone:
		return types.CompressionNone, raw, nil
	case types.CompressionLZ4:
		destination := make([]byte, lz4.CompressBlockBound(len(raw)))
		written, err := lz4.CompressBlock(raw, destination, nil)
		if err != nil {
			return 0, nil, errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("lz4 compression failed").
				WithCause(err)
		}
		if written == 0 || written >= len(raw) {
			return types.CompressionNone, raw, nil
		}
		return types.CompressionLZ4, destination[:written], nil
	case types.CompressionZstd:
		compressed := zstdEncoder.EncodeAll(raw, nil)
		if len(compressed) >= len(raw) {
			return types.CompressionNone, raw, nil
		}
		return types.CompressionZstd, compressed, nil
	default:
		return 0, nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("unsupported compression %d", compression))
	}
}

func decompressSnapshot(payload []byte, compression types.Compression, size int) ([]byte, error) {
	switch compression {
	case types.CompressionNone:
		if len(payload) != size {
			return nil, fmt.Errorf("payload size %d does not match %d", len(payload), size)
		}
		return payload, nil
	case types.CompressionLZ4:
		if size > len(payload)*lz4MaxRatio {
			return nil, fmt.Errorf("lz4 decompress: announced size %d is impossible for %d bytes", size, len(payload))
		}
		destination := make([]byte, size)
		read, err := lz4.UncompressBlock(payload, destination)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if read != size {
			return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", read, size)
		}
		return destination, nil
	case types.CompressionZstd:
		raw, err := zstdDecoder.DecodeAll(payload, make([]byte, 0, size))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if len(raw) != size {
			return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(raw), size)
		}
		return raw, nil
	default:
		return nil, fmt.Errorf("unsupported compression %s", compression)
	}
}

func invalidSnapshot(cause error) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeFailedPrecondition).
		WithMsg("invalid resolve map snapshot").
		WithCause(cause)
}

var _ ports.MapStorePort = MapStoreAdapter{}

package adapters

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"resolvemap/internal/keypath"
	"resolvemap/internal/ports"
	"resolvemap/internal/resolvemap"
	"resolvemap/internal/shared"
	"resolvemap/internal/types"
)

const (
	glbHeaderLength      = 12
	glbChunkHeaderLength = 8
	glbChunkJSON         = 0x4E4F534A
	glbChunkBIN          = 0x004E4942
)

// GLBProvider registers the buffer views of a binary glTF container. View
// i becomes <container key>/file_<i>.<ext> addressed by its absolute byte
// range in the container. The extension comes from the mimeType of an
// image using the view, from the view's content signature, or is "bin".
type GLBProvider struct {
	opener ports.ResourceOpenerPort
}

func NewGLBProvider(opener ports.ResourceOpenerPort) GLBProvider {
	return GLBProvider{opener: opener}
}

func (p GLBProvider) Name() types.ProviderName {
	return types.ProviderGLB
}

type glbDocument struct {
	Buffers []struct {
		URI        string `json:"uri"`
		ByteLength int64  `json:"byteLength"`
	} `json:"buffers"`
	BufferViews []struct {
		Buffer     int   `json:"buffer"`
		ByteOffset int64 `json:"byteOffset"`
		ByteLength int64 `json:"byteLength"`
	} `json:"bufferViews"`
	Images []struct {
		BufferView *int   `json:"bufferView"`
		MimeType   string `json:"mimeType"`
	} `json:"images"`
}

type glbChunk struct {
	offset int64
	length int64
}

func (p GLBProvider) CreateResolveMap(ctx context.Context, request types.ScanRequest) (*resolvemap.ResolveMap, error) {
	resource, err := p.opener.Open(ctx, request.Root)
	if err != nil {
		return nil, err
	}
	defer resource.Close()

	document, bin, err := readGLB(resource)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("resource is not a valid glb container: " + request.Root.String()).
			WithCause(err)
	}

	imageTypes := map[int]string{}
	for _, image := range document.Images {
		if image.BufferView == nil {
			continue
		}
		if _, seen := imageTypes[*image.BufferView]; !seen {
			imageTypes[*image.BufferView] = image.MimeType
		}
	}

	builder := resolvemap.NewBuilder()
	for index, view := range document.BufferViews {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// Views into external buffers have no bytes inside this container.
		if view.Buffer != 0 || bin == nil {
			continue
		}
		if view.ByteOffset < 0 || view.ByteLength < 0 || view.ByteOffset+view.ByteLength > bin.length {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg(fmt.Sprintf("buffer view %d exceeds the binary chunk of %s", index, request.Root))
		}
		offset := bin.offset + view.ByteOffset
		ext := "bin"
		if mimeType, isImage := imageTypes[index]; isImage {
			ext = imageExtension(mimeType)
			if ext == "" {
				head, err := readHead(resource, offset, view.ByteLength)
				if err != nil {
					return nil, err
				}
				ext = sniffExtension(head)
			}
			if ext == "" {
				ext = "bin"
			}
		}
		name := fmt.Sprintf("file_%d.%s", index, ext)
		key := keypath.AnchorEmbeddedKey(request.ContainerKey, name)
		uri := types.ComposeRangeURI(string(types.ProviderGLB), request.Root, offset, view.ByteLength, name)
		if err := builder.Add(key, uri); err != nil {
			return nil, err
		}
	}
	log.Ctx(ctx).Debug().
		Str("root", request.Root.String()).
		Int("keys", builder.Len()).
		Msg("scanned glb container")
	return builder.Build(), nil
}

// readGLB parses the container header, the JSON chunk and locates the
// optional BIN chunk.
func readGLB(resource ports.Resource) (glbDocument, *glbChunk, error) {
	header := make([]byte, glbHeaderLength)
	if _, err := resource.ReadAt(header, 0); err != nil {
		return glbDocument{}, nil, fmt.Errorf("read header: %w", err)
	}
	if string(header[:4]) != glbMagic {
		return glbDocument{}, nil, fmt.Errorf("bad magic %q", header[:4])
	}
	if version := binary.LittleEndian.Uint32(header[4:8]); version != 2 {
		return glbDocument{}, nil, fmt.Errorf("unsupported glb version %d", version)
	}
	total := int64(binary.LittleEndian.Uint32(header[8:12]))
	if total > resource.Size() {
		return glbDocument{}, nil, fmt.Errorf("declared length %d exceeds %d bytes", total, resource.Size())
	}

	var document glbDocument
	var bin *glbChunk
	position := int64(glbHeaderLength)
	for chunkIndex := 0; position+glbChunkHeaderLength <= total; chunkIndex++ {
		chunkHeader := make([]byte, glbChunkHeaderLength)
		if _, err := resource.ReadAt(chunkHeader, position); err != nil {
			return glbDocument{}, nil, fmt.Errorf("read chunk header: %w", err)
		}
		length := int64(binary.LittleEndian.Uint32(chunkHeader[0:4]))
		kind := binary.LittleEndian.Uint32(chunkHeader[4:8])
		data := position + glbChunkHeaderLength
		if data+length > total {
			return glbDocument{}, nil, fmt.Errorf("chunk %d overruns the container", chunkIndex)
		}
		switch {
		case chunkIndex == 0 && kind != glbChunkJSON:
			return glbDocument{}, nil, fmt.Errorf("first chunk is not JSON")
		case kind == glbChunkJSON:
			raw := make([]byte, length)
			if _, err := resource.ReadAt(raw, data); err != nil {
				return glbDocument{}, nil, fmt.Errorf("read json chunk: %w", err)
			}
			if err := json.Unmarshal([]byte(strings.TrimRight(string(raw), " \x00")), &document); err != nil {
				return glbDocument{}, nil, fmt.Errorf("decode json chunk: %w", err)
			}
		case kind == glbChunkBIN && bin == nil:
			bin = &glbChunk{offset: data, length: length}
		}
		position = data + length
	}
	if len(document.Buffers) > 0 && document.Buffers[0].URI != "" {
		bin = nil
	}
	return document, bin, nil
}

func imageExtension(mimeType string) string {
	switch shared.NormalizeMIME(mimeType) {
	case "image/png":
		return "png"
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/ktx2":
		return "ktx2"
	case "image/webp":
		return "webp"
	default:
		return ""
	}
}

var _ ports.ResolveMapProviderPort = GLBProvider{}

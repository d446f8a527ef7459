package adapters

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/h2non/filetype"

	"resolvemap/internal/ports"
)

// sniffLength covers every signature filetype knows about.
const sniffLength = 262

const glbMagic = "glTF"

var registerMatchers sync.Once

func registerContentMatchers() {
	registerMatchers.Do(func() {
		filetype.AddMatcher(filetype.NewType("glb", "model/gltf-binary"), func(buf []byte) bool {
			return len(buf) >= len(glbMagic) && string(buf[:len(glbMagic)]) == glbMagic
		})
	})
}

type ContentSnifferAdapter struct{}

func NewContentSnifferAdapter() ContentSnifferAdapter {
	registerContentMatchers()
	return ContentSnifferAdapter{}
}

func (a ContentSnifferAdapter) Sniff(resource ports.Resource) (string, error) {
	head, err := readHead(resource, 0, resource.Size())
	if err != nil {
		return "", err
	}
	kind, err := filetype.Match(head)
	if err != nil || kind == filetype.Unknown {
		return "", nil
	}
	return kind.MIME.Value, nil
}

// sniffExtension returns the extension (without dot) of content whose
// signature is known, or "".
func sniffExtension(head []byte) string {
	registerContentMatchers()
	kind, err := filetype.Match(head)
	if err != nil || kind == filetype.Unknown {
		return ""
	}
	return kind.Extension
}

func readHead(reader io.ReaderAt, offset int64, size int64) ([]byte, error) {
	if size > sniffLength {
		size = sniffLength
	}
	if size <= 0 {
		return nil, nil
	}
	head := make([]byte, size)
	n, err := reader.ReadAt(head, offset)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to read %d bytes at offset %d", size, offset)).
			WithCause(err)
	}
	return head[:n], nil
}

var _ ports.ContentSnifferPort = ContentSnifferAdapter{}

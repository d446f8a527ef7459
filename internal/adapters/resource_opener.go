package adapters

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/klauspost/compress/zip"

	"resolvemap/internal/ports"
	"resolvemap/internal/types"
)

type ResourceOpenerAdapter struct{}

func NewResourceOpenerAdapter() ResourceOpenerAdapter {
	return ResourceOpenerAdapter{}
}

func (a ResourceOpenerAdapter) Open(ctx context.Context, uri types.URI) (ports.Resource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if uri.IsEmpty() {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("resource uri is empty")
	}
	if uri.IsComposite() {
		return a.openComposite(ctx, uri)
	}
	if uri.Scheme() != "file" {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("unsupported uri scheme %q in %s", uri.Scheme(), uri))
	}
	path := uri.Path()
	file, err := os.Open(path)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("failed to open %s", path)).
			WithCause(err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("failed to stat %s", path)).
			WithCause(err)
	}
	if info.IsDir() {
		_ = file.Close()
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("%s is a directory", path))
	}
	return fileResource{File: file, size: info.Size()}, nil
}

func (a ResourceOpenerAdapter) Stat(ctx context.Context, uri types.URI) (types.ResourceInfo, error) {
	if uri.Scheme() == "file" && !uri.IsComposite() {
		path := uri.Path()
		info, err := os.Stat(path)
		if err != nil {
			return types.ResourceInfo{}, errbuilder.New().
				WithCode(errbuilder.CodeNotFound).
				WithMsg(fmt.Sprintf("failed to stat %s", path)).
				WithCause(err)
		}
		kind := types.ResourceKindFile
		if info.IsDir() {
			kind = types.ResourceKindDirectory
		}
		return types.ResourceInfo{URI: uri, Kind: kind, Size: info.Size(), Path: path}, nil
	}
	resource, err := a.Open(ctx, uri)
	if err != nil {
		return types.ResourceInfo{}, err
	}
	defer resource.Close()
	return types.ResourceInfo{URI: uri, Kind: types.ResourceKindEmbedded, Size: resource.Size()}, nil
}

func (a ResourceOpenerAdapter) openComposite(ctx context.Context, uri types.URI) (ports.Resource, error) {
	outer, _ := uri.Outer()
	parent, err := a.Open(ctx, outer)
	if err != nil {
		return nil, err
	}
	if types.IsRangeScheme(uri.Scheme()) {
		offset, length, _, ok := uri.Range()
		size := parent.Size()
		if !ok || offset > size || length > size-offset {
			_ = parent.Close()
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg(fmt.Sprintf("byte range %s outside container of %d bytes", uri.Selector(), size))
		}
		return sectionResource{SectionReader: io.NewSectionReader(parent, offset, length), parent: parent}, nil
	}
	return openArchiveEntry(parent, uri.EntryPath())
}

// openArchiveEntry takes ownership of parent. Stored entries are served
// straight from the parent; compressed entries are inflated into memory.
func openArchiveEntry(parent ports.Resource, name string) (ports.Resource, error) {
	reader, err := zip.NewReader(parent, parent.Size())
	if err != nil {
		_ = parent.Close()
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("container is not a zip archive").
			WithCause(err)
	}
	for _, file := range reader.File {
		if file.Name != name {
			continue
		}
		if file.Method == zip.Store {
			if offset, err := file.DataOffset(); err == nil {
				section := io.NewSectionReader(parent, offset, int64(file.CompressedSize64))
				return sectionResource{SectionReader: section, parent: parent}, nil
			}
		}
		data, err := readArchiveFile(file)
		_ = parent.Close()
		if err != nil {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg(fmt.Sprintf("failed to read archive entry %s", name)).
				WithCause(err)
		}
		return memoryResource{Reader: bytes.NewReader(data)}, nil
	}
	_ = parent.Close()
	return nil, errbuilder.New().
		WithCode(errbuilder.CodeNotFound).
		WithMsg(fmt.Sprintf("archive entry %s not found", name))
}

func readArchiveFile(file *zip.File) ([]byte, error) {
	rc, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// readAll loads a whole resource into memory.
func readAll(resource ports.Resource) ([]byte, error) {
	return io.ReadAll(io.NewSectionReader(resource, 0, resource.Size()))
}

type fileResource struct {
	*os.File
	size int64
}

func (r fileResource) Size() int64 {
	return r.size
}

type sectionResource struct {
	*io.SectionReader
	parent ports.Resource
}

func (r sectionResource) Close() error {
	return r.parent.Close()
}

type memoryResource struct {
	*bytes.Reader
}

func (memoryResource) Close() error {
	return nil
}

var _ ports.ResourceOpenerPort = ResourceOpenerAdapter{}

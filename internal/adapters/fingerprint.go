package adapters

import (
	"context"
	"encoding/hex"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/zeebo/blake3"

	"resolvemap/internal/ports"
	"resolvemap/internal/types"
)

const fingerprintPrefix = "blake3:"

// FingerprintAdapter digests resource content with BLAKE3. Directories
// digest every regular file below them, path first, in lexical order.
type FingerprintAdapter struct {
	opener ports.ResourceOpenerPort
}

func NewFingerprintAdapter(opener ports.ResourceOpenerPort) FingerprintAdapter {
	return FingerprintAdapter{opener: opener}
}

func (a FingerprintAdapter) Fingerprint(ctx context.Context, uri types.URI) (string, error) {
	info, err := a.opener.Stat(ctx, uri)
	if err != nil {
		return "", err
	}
	hasher := blake3.New()
	if info.Kind == types.ResourceKindDirectory {
		err = hashDirectory(ctx, hasher, info.Path)
	} else {
		err = a.hashResource(ctx, hasher, uri)
	}
	if err != nil {
		if isCoded(err) || ctx.Err() != nil {
			return "", err
		}
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to fingerprint " + uri.String()).
			WithCause(err)
	}
	return fingerprintPrefix + hex.EncodeToString(hasher.Sum(nil)), nil
}

func (a FingerprintAdapter) hashResource(ctx context.Context, hasher io.Writer, uri types.URI) error {
	resource, err := a.opener.Open(ctx, uri)
	if err != nil {
		return err
	}
	defer resource.Close()
	_, err = io.Copy(hasher, io.NewSectionReader(resource, 0, resource.Size()))
	return err
}

func hashDirectory(ctx context.Context, hasher io.Writer, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && shouldSkipPackageDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		relative, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if _, err := io.WriteString(hasher, filepath.ToSlash(relative)+"\x00"); err != nil {
			return err
		}
		file, err := os.Open(path)
		if err != nil {
			return err
		}
		defer file.Close()
		_, err = io.Copy(hasher, file)
		return err
	})
}

func isCoded(err error) bool {
	var builder *errbuilder.ErrBuilder
	return errors.As(err, &builder)
}

var _ ports.FingerprintPort = FingerprintAdapter{}

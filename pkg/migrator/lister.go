package migrator

import (
	"context"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/pkg/errors"
)

const (
	// FilesystemPrefix is the optional scheme for directory locations, as used
	// by Flyway (filesystem:db/migration).
	FilesystemPrefix = "filesystem:"

	// DefaultLocation is searched when no location is configured.
	DefaultLocation = FilesystemPrefix + "db/migration"
)

type (
	// Resource is a named script returned by a Lister.
	Resource struct {
		// Name is the path relative to the listed location.
		Name string

		// Content is the raw file content.
		Content []byte
	}

	// Lister enumerates the resources available in a location.
	Lister interface {
		List(ctx context.Context, location string) ([]Resource, error)
	}

	// FSLister lists resources from a file system, such as an embed.FS. The
	// location is a directory within FS.
	FSLister struct {
		FS fs.FS
	}

	// DirLister lists resources from a directory on the local disk. The
	// location is a directory path, optionally prefixed with "filesystem:".
	DirLister struct{}
)

// List walks location in lexical order and returns every regular file.
func (l FSLister) List(ctx context.Context, location string) ([]Resource, error) {
	root := strings.Trim(strings.TrimPrefix(location, FilesystemPrefix), "/")
	if root == "" {
		root = "."
	}

	var resources []Resource
	err := fs.WalkDir(l.FS, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		content, err := fs.ReadFile(l.FS, p)
		if err != nil {
			return errors.Wrapf(err, "failed to read: %s", p)
		}

		name := p
		if root != "." {
			name = strings.TrimPrefix(p, root+"/")
		}

		resources = append(resources, Resource{Name: path.Clean(name), Content: content})
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list location: %s", location)
	}

	return resources, nil
}

// List reads every file below the directory named by location.
func (DirLister) List(ctx context.Context, location string) ([]Resource, error) {
	dir := strings.TrimPrefix(location, FilesystemPrefix)
	if dir == "" {
		dir = "."
	}

	return FSLister{FS: os.DirFS(dir)}.List(ctx, ".")
}

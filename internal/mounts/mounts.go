// Package mounts provides file mounts used as fs.FS filesystems by the web server.
// A mount is served either from an embedded filesystem or, when a directory path is
// given, from disk. Both are mounted at the same level so that the templates and
// static files of the binary can be exported, edited and served from disk.
package mounts

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileMount is a named fs.FS backed by an embedded filesystem or a directory.
type FileMount struct {
	MountName string
	fs.FS
}

// String lists the files and directories of the mount, indented by level.
func (fm FileMount) String() string {
	s, _ := PrintFS(fm.FS)
	return fmt.Sprintf("mount %q:\n%s", fm.MountName, s)
}

// ErrInvalidPath reports a mount name that is not a valid fs.ValidPath path.
type ErrInvalidPath struct {
	mountName string
}

func (e ErrInvalidPath) Error() string {
	return fmt.Sprintf("mount name %q is not a valid path (see https://pkg.go.dev/io/fs#ValidPath)", e.mountName)
}

// NewFileMount mounts dirPath or, if dirPath is "", the mountName subdirectory of
// embeddedFS. Given
//
//	//go:embed templates
//	var templatesFS embed.FS
//
// the call NewFileMount("templates", templatesFS, "") serves "base.html" rather than
// "templates/base.html", the same as NewFileMount("templates", templatesFS,
// "./templates") does from disk.
func NewFileMount(mountName string, embeddedFS fs.FS, dirPath string) (*FileMount, error) {

	if mountName == "" {
		return nil, errors.New("no mount name provided for new file mount")
	}
	if !fs.ValidPath(mountName) {
		return nil, ErrInvalidPath{mountName}
	}

	if dirPath == "" {
		subFS, err := fs.Sub(embeddedFS, mountName)
		if err != nil {
			return nil, fmt.Errorf("could not sub-mount embedded fs at %q: %w", mountName, err)
		}
		return &FileMount{MountName: mountName, FS: subFS}, nil
	}

	s, err := os.Stat(dirPath)
	if err != nil {
		return nil, fmt.Errorf("new mount at %q error: %w", dirPath, err)
	}
	if !s.IsDir() {
		return nil, fmt.Errorf("new mount at %q is not a directory", dirPath)
	}
	return &FileMount{MountName: mountName, FS: os.DirFS(dirPath)}, nil
}

// Materialize writes the mount to disk at root/MountName. Root must be an existing
// directory and root/MountName must not exist.
func (fm *FileMount) Materialize(root string) error {

	s, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("materialize root %q invalid: %w", root, err)
	}
	if !s.IsDir() {
		return fmt.Errorf("materialize root %q is not a directory", root)
	}

	mountRoot := filepath.Join(root, fm.MountName)
	if _, err := os.Stat(mountRoot); !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("materialization path %q already exists", mountRoot)
	}
	if err := os.MkdirAll(mountRoot, 0755); err != nil {
		return fmt.Errorf("could not create mount root %q: %w", mountRoot, err)
	}

	return fs.WalkDir(fm.FS, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		fullPath := filepath.Join(mountRoot, path)

		switch {
		case d.IsDir():
			if err := os.MkdirAll(fullPath, 0755); err != nil {
				return fmt.Errorf("could not make dir %q: %w", fullPath, err)
			}
			return nil
		case !d.Type().IsRegular():
			return nil
		}

		data, err := fs.ReadFile(fm.FS, path)
		if err != nil {
			return fmt.Errorf("could not read %q from mount %s: %w", path, fm.MountName, err)
		}
		if err := os.WriteFile(fullPath, data, 0644); err != nil {
			return fmt.Errorf("could not write %q: %w", fullPath, err)
		}
		return nil
	})
}

// PrintFS lists an fs.FS, one entry per line, as "[d] name/ (path)" for directories
// and "[f] name  (path)" for files.
func PrintFS(thisFS fs.FS) (string, error) {
	var b strings.Builder
	tpl := "%s[%s] %s%s (%s)\n"

	err := fs.WalkDir(thisFS, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == "." {
			fmt.Fprintf(&b, tpl, "\n", "d", ".", "/", ".")
			return nil
		}
		indent := strings.Repeat("  ", strings.Count(path, "/"))
		typer, slash := "f", " "
		if d.IsDir() {
			typer, slash = "d", "/"
		}
		fmt.Fprintf(&b, tpl, indent, typer, d.Name(), slash, path)
		return nil
	})
	return b.String(), err
}

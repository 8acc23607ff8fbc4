package runner

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// FileSystem is the file access used by regex_scan steps
type FileSystem interface {
	Stat(name string) (fs.FileInfo, error)
	ReadFile(name string) ([]byte, error)
	WalkDir(root string, fn fs.WalkDirFunc) error
	Glob(pattern string) ([]string, error)
}

// OSFileSystem is the FileSystem backed by the host operating system
type OSFileSystem struct{}

// Stat implements FileSystem
func (OSFileSystem) Stat(name string) (fs.FileInfo, error) { return os.Stat(name) }

// ReadFile implements FileSystem
func (OSFileSystem) ReadFile(name string) ([]byte, error) { return os.ReadFile(name) }

// WalkDir implements FileSystem
func (OSFileSystem) WalkDir(root string, fn fs.WalkDirFunc) error {
	return filepath.WalkDir(root, fn)
}

// Glob implements FileSystem with doublestar semantics, so ** matches
// any number of directories
func (OSFileSystem) Glob(pattern string) ([]string, error) {
	return doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
}

package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the docuflow home directory.
	DefaultDirName = ".docuflow"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"
)

// Dir represents the docuflow home directory structure. Originals and
// rendered page images live under documents/<docID>/.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.docuflow).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	if err := os.MkdirAll(d.DocumentsDir(), 0o755); err != nil {
		return fmt.Errorf("failed to create documents directory: %w", err)
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}

// DocumentsDir returns the root directory for stored documents.
func (d *Dir) DocumentsDir() string {
	return filepath.Join(d.path, "documents")
}

// DocumentDir returns the directory holding one document's files.
func (d *Dir) DocumentDir(docID string) string {
	return filepath.Join(d.DocumentsDir(), docID)
}

// OriginalPath returns the path to a document's uploaded original.
// ext includes the leading dot, e.g. ".pdf".
func (d *Dir) OriginalPath(docID, ext string) string {
	return filepath.Join(d.DocumentDir(docID), "original"+ext)
}

// PagePath returns the path to a rendered page image.
// Page numbers are 1-indexed.
func (d *Dir) PagePath(docID string, pageNum int) string {
	return filepath.Join(d.DocumentDir(docID), fmt.Sprintf("page_%04d.png", pageNum))
}

// PagePaths returns paths for all pages of a document.
func (d *Dir) PagePaths(docID string, pageCount int) []string {
	paths := make([]string, pageCount)
	for i := 1; i <= pageCount; i++ {
		paths[i-1] = d.PagePath(docID, i)
	}
	return paths
}

// EnsureDocumentDir creates the directory for a document's files.
func (d *Dir) EnsureDocumentDir(docID string) error {
	return os.MkdirAll(d.DocumentDir(docID), 0o755)
}

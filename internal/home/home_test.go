package home

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNew(t *testing.T) {
	t.Run("with explicit path", func(t *testing.T) {
		dir, err := New("/tmp/test-docuflow")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if dir.Path() != "/tmp/test-docuflow" {
			t.Errorf("expected path /tmp/test-docuflow, got %s", dir.Path())
		}
	})

	t.Run("with empty path uses default", func(t *testing.T) {
		dir, err := New("")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		home, _ := os.UserHomeDir()
		expected := filepath.Join(home, DefaultDirName)
		if dir.Path() != expected {
			t.Errorf("expected path %s, got %s", expected, dir.Path())
		}
	})
}

func TestDir_Paths(t *testing.T) {
	dir, _ := New("/tmp/test-docuflow")

	t.Run("ConfigPath", func(t *testing.T) {
		expected := "/tmp/test-docuflow/config.yaml"
		if dir.ConfigPath() != expected {
			t.Errorf("expected %s, got %s", expected, dir.ConfigPath())
		}
	})

	t.Run("OriginalPath", func(t *testing.T) {
		expected := "/tmp/test-docuflow/documents/doc-1/original.pdf"
		if got := dir.OriginalPath("doc-1", ".pdf"); got != expected {
			t.Errorf("expected %s, got %s", expected, got)
		}
	})

	t.Run("PagePath", func(t *testing.T) {
		expected := "/tmp/test-docuflow/documents/doc-1/page_0003.png"
		if got := dir.PagePath("doc-1", 3); got != expected {
			t.Errorf("expected %s, got %s", expected, got)
		}
	})

	t.Run("PagePaths", func(t *testing.T) {
		paths := dir.PagePaths("doc-1", 2)
		if len(paths) != 2 {
			t.Fatalf("expected 2 paths, got %d", len(paths))
		}
		if paths[0] != dir.PagePath("doc-1", 1) || paths[1] != dir.PagePath("doc-1", 2) {
			t.Errorf("unexpected paths: %v", paths)
		}
	})
}

func TestDir_EnsureExists(t *testing.T) {
	// Use a temp directory
	tmpDir := t.TempDir()
	homeDir := filepath.Join(tmpDir, "docuflow-test")

	dir, err := New(homeDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Directory shouldn't exist yet
	if dir.Exists() {
		t.Error("directory should not exist before EnsureExists")
	}

	// Create it
	if err := dir.EnsureExists(); err != nil {
		t.Fatalf("EnsureExists failed: %v", err)
	}

	// Now it should exist
	if !dir.Exists() {
		t.Error("directory should exist after EnsureExists")
	}

	// Documents directory should also exist
	if _, err := os.Stat(dir.DocumentsDir()); os.IsNotExist(err) {
		t.Error("documents directory should exist after EnsureExists")
	}
}

func TestDir_ConfigExists(t *testing.T) {
	tmpDir := t.TempDir()
	dir, _ := New(tmpDir)

	// Config doesn't exist
	if dir.ConfigExists() {
		t.Error("config should not exist initially")
	}

	// Create a config file
	configPath := dir.ConfigPath()
	if err := os.WriteFile(configPath, []byte("test: true\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}

	// Now it should exist
	if !dir.ConfigExists() {
		t.Error("config should exist after creation")
	}
}

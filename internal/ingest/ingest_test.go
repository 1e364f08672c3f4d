package ingest

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"testing"

	"github.com/Dweliw01/DocuFlow-sub000/internal/home"
	"github.com/Dweliw01/DocuFlow-sub000/internal/types"
)

type fakeStore struct {
	created types.Document
	updated map[string]any
	nextID  string
}

func (s *fakeStore) CreateDocument(_ context.Context, doc types.Document) (string, error) {
	s.created = doc
	return s.nextID, nil
}

func (s *fakeStore) UpdateDocument(_ context.Context, _ string, input map[string]any) error {
	s.updated = input
	return nil
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 50, 50))
	for y := 0; y < 50; y++ {
		for x := 0; x < 50; x++ {
			v := uint8(255)
			if x%2 == 0 {
				v = 0
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestDetectContentType(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		content  []byte
		want     string
	}{
		{"pdf extension", "invoice.pdf", []byte("%PDF-1.4"), "application/pdf"},
		{"png extension", "scan.png", nil, "image/png"},
		{"jpeg extension", "scan.JPG", nil, "image/jpeg"},
		{"tiff extension", "scan.tiff", nil, "image/tiff"},
		{"sniffed pdf", "upload", []byte("%PDF-1.4 more content here"), "application/pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detectContentType(tt.fileName, tt.content); got != tt.want {
				t.Errorf("detectContentType(%q) = %q, want %q", tt.fileName, got, tt.want)
			}
		})
	}
}

func TestIngestImage(t *testing.T) {
	dir, err := home.New(t.TempDir())
	if err != nil {
		t.Fatalf("home: %v", err)
	}
	if err := dir.EnsureExists(); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	store := &fakeStore{nextID: "doc-abc"}

	result, err := Ingest(context.Background(), store, dir, Request{
		TenantID: "t1",
		BatchID:  "batch-1",
		FileName: "scan.png",
		Content:  pngBytes(t),
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}

	if result.DocumentID != "doc-abc" {
		t.Errorf("document id = %q, want doc-abc", result.DocumentID)
	}
	if result.PageCount != 1 {
		t.Errorf("page count = %d, want 1", result.PageCount)
	}
	if result.SourcePath != dir.PagePath("doc-abc", 1) {
		t.Errorf("source path = %q, want %q", result.SourcePath, dir.PagePath("doc-abc", 1))
	}

	// Original and the rendered page both live under the final docID dir.
	if _, err := os.Stat(dir.OriginalPath("doc-abc", ".png")); err != nil {
		t.Errorf("original not stored: %v", err)
	}
	if _, err := os.Stat(dir.PagePath("doc-abc", 1)); err != nil {
		t.Errorf("page image not rendered: %v", err)
	}

	if store.created.Status != types.StatusUploaded {
		t.Errorf("status = %q, want uploaded", store.created.Status)
	}
	if store.created.TenantID != "t1" || store.created.BatchID != "batch-1" {
		t.Errorf("tenant/batch = %q/%q", store.created.TenantID, store.created.BatchID)
	}
	if store.created.ContentType != "image/png" {
		t.Errorf("content type = %q, want image/png", store.created.ContentType)
	}
	if store.created.PageCount != 1 {
		t.Errorf("created page count = %d, want 1", store.created.PageCount)
	}
	if store.updated["source_path"] != result.SourcePath {
		t.Errorf("updated source_path = %v, want %q", store.updated["source_path"], result.SourcePath)
	}
}

func TestIngestEmptyUpload(t *testing.T) {
	dir, _ := home.New(t.TempDir())
	if _, err := Ingest(context.Background(), &fakeStore{}, dir, Request{
		TenantID: "t1",
		FileName: "empty.png",
	}); err == nil {
		t.Fatal("expected error for empty upload")
	}
}

func TestIngestUnsupportedType(t *testing.T) {
	dir, _ := home.New(t.TempDir())
	if err := dir.EnsureExists(); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	_, err := Ingest(context.Background(), &fakeStore{}, dir, Request{
		TenantID: "t1",
		FileName: "notes.txt",
		Content:  []byte("plain text, not a scan"),
	})
	if err == nil {
		t.Fatal("expected error for unsupported content type")
	}
}

func TestIngestGarbageImage(t *testing.T) {
	dir, _ := home.New(t.TempDir())
	if err := dir.EnsureExists(); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	_, err := Ingest(context.Background(), &fakeStore{}, dir, Request{
		TenantID: "t1",
		FileName: "broken.png",
		Content:  []byte("not actually a png"),
	})
	if err == nil {
		t.Fatal("expected error for undecodable image")
	}
}

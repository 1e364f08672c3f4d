// Package ingest handles document intake: storing the uploaded original
// and rendering page images the pipeline can analyze.
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/Dweliw01/DocuFlow-sub000/internal/home"
	"github.com/Dweliw01/DocuFlow-sub000/internal/types"
)

// Store is the persistence surface intake needs.
type Store interface {
	CreateDocument(ctx context.Context, doc types.Document) (string, error)
	UpdateDocument(ctx context.Context, docID string, input map[string]any) error
}

// Request contains the parameters for ingesting one uploaded file.
type Request struct {
	TenantID    string
	BatchID     string
	SubmittedBy string
	FileName    string
	Content     []byte
	Logger      *slog.Logger // Optional logger for progress updates
}

// Result contains the result of a successful intake.
type Result struct {
	DocumentID string
	PageCount  int
	SourcePath string
}

// Ingest stores the original file, renders page images, and creates the
// document record in the uploaded state.
func Ingest(ctx context.Context, store Store, homeDir *home.Dir, req Request) (*Result, error) {
	log := req.Logger
	if log == nil {
		log = slog.Default()
	}

	if len(req.Content) == 0 {
		return nil, fmt.Errorf("empty upload: %s", req.FileName)
	}

	contentType := detectContentType(req.FileName, req.Content)
	log.Info("starting intake", "file", req.FileName, "content_type", contentType, "bytes", len(req.Content))

	// Stage files under a temporary id first; the directory is renamed
	// to the store-assigned document id once the record exists.
	stagingID := uuid.New().String()
	if err := homeDir.EnsureDocumentDir(stagingID); err != nil {
		return nil, fmt.Errorf("failed to create document directory: %w", err)
	}
	stagingDir := homeDir.DocumentDir(stagingID)

	ext := strings.ToLower(filepath.Ext(req.FileName))
	if ext == "" {
		ext = extensionFor(contentType)
	}
	if err := os.WriteFile(homeDir.OriginalPath(stagingID, ext), req.Content, 0o644); err != nil {
		os.RemoveAll(stagingDir)
		return nil, fmt.Errorf("failed to store original: %w", err)
	}

	var pageCount int
	var err error
	switch {
	case contentType == "application/pdf":
		pageCount, err = renderPDFPages(ctx, homeDir.OriginalPath(stagingID, ext), stagingDir)
	case strings.HasPrefix(contentType, "image/"):
		pageCount, err = normalizeImage(req.Content, homeDir.PagePath(stagingID, 1))
	default:
		err = fmt.Errorf("unsupported content type: %s", contentType)
	}
	if err != nil {
		os.RemoveAll(stagingDir)
		return nil, err
	}
	if pageCount == 0 {
		os.RemoveAll(stagingDir)
		return nil, fmt.Errorf("no pages rendered from %s", req.FileName)
	}

	docID, err := store.CreateDocument(ctx, types.Document{
		TenantID:    req.TenantID,
		BatchID:     req.BatchID,
		FileName:    req.FileName,
		ContentType: contentType,
		PageCount:   pageCount,
		Status:      types.StatusUploaded,
	})
	if err != nil {
		os.RemoveAll(stagingDir)
		return nil, fmt.Errorf("failed to create document record: %w", err)
	}

	// Rename directory from staging UUID to docID.
	finalDir := homeDir.DocumentDir(docID)
	if err := os.Rename(stagingDir, finalDir); err != nil {
		return nil, fmt.Errorf("failed to rename document directory: %w", err)
	}

	sourcePath := homeDir.PagePath(docID, 1)
	if err := store.UpdateDocument(ctx, docID, map[string]any{
		"source_path": sourcePath,
	}); err != nil {
		return nil, fmt.Errorf("failed to record source path: %w", err)
	}

	log.Info("intake complete", "document", docID, "pages", pageCount)

	return &Result{
		DocumentID: docID,
		PageCount:  pageCount,
		SourcePath: sourcePath,
	}, nil
}

// detectContentType resolves the upload's media type from its extension,
// falling back to content sniffing.
func detectContentType(fileName string, content []byte) string {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf":
		return "application/pdf"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".tif", ".tiff":
		return "image/tiff"
	}
	return http.DetectContentType(content)
}

func extensionFor(contentType string) string {
	switch contentType {
	case "application/pdf":
		return ".pdf"
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/tiff":
		return ".tif"
	}
	return ".bin"
}

// normalizeImage re-encodes a single uploaded image as the document's
// first page, honoring EXIF orientation.
func normalizeImage(content []byte, pagePath string) (int, error) {
	img, err := imaging.Decode(bytes.NewReader(content), imaging.AutoOrientation(true))
	if err != nil {
		return 0, fmt.Errorf("failed to decode image: %w", err)
	}
	if err := imaging.Save(img, pagePath); err != nil {
		return 0, fmt.Errorf("failed to write page image: %w", err)
	}
	return 1, nil
}

// renderPDFPages renders every page of a PDF to sequential PNGs.
// Returns the number of pages rendered.
func renderPDFPages(ctx context.Context, pdfPath, outDir string) (int, error) {
	f, err := os.Open(pdfPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	pageCount, err := api.PageCount(f, nil)
	f.Close()
	if err != nil {
		return 0, fmt.Errorf("failed to get page count: %w", err)
	}

	// Render pages concurrently
	maxWorkers := runtime.NumCPU()

	type result struct {
		pageNum int
		err     error
	}

	results := make(chan result, pageCount)
	sem := make(chan struct{}, maxWorkers)

	for page := 1; page <= pageCount; page++ {
		sem <- struct{}{} // acquire
		go func(pageNum int) {
			defer func() { <-sem }() // release
			err := renderPage(ctx, pdfPath, outDir, pageNum)
			results <- result{pageNum: pageNum, err: err}
		}(page)
	}

	for i := 0; i < pageCount; i++ {
		r := <-results
		if r.err != nil {
			return 0, fmt.Errorf("failed to render page %d: %w", r.pageNum, r.err)
		}
	}

	return pageCount, nil
}

// renderPage renders a single PDF page using pdftoppm (poppler-utils),
// which renders the page correctly, unlike extracting embedded image
// objects whose internal numbering may not match page order.
func renderPage(ctx context.Context, pdfPath, outDir string, pageNum int) error {
	tmpDir, err := os.MkdirTemp("", "docuflow-page-*")
	if err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	outputPrefix := filepath.Join(tmpDir, "page")

	// -png: output PNG format
	// -f N / -l N: first and last page to render
	// -r 300: resolution in DPI
	// -singlefile: don't add page number suffix
	pageStr := fmt.Sprintf("%d", pageNum)
	cmd := exec.CommandContext(ctx, "pdftoppm",
		"-png",
		"-f", pageStr,
		"-l", pageStr,
		"-r", "300",
		"-singlefile",
		pdfPath,
		outputPrefix,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("pdftoppm failed: %w (output: %s)", err, string(output))
	}

	srcPath := outputPrefix + ".png"
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return fmt.Errorf("pdftoppm did not create expected output: %w", err)
	}

	dstPath := filepath.Join(outDir, fmt.Sprintf("page_%04d.png", pageNum))
	if err := os.WriteFile(dstPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write page image: %w", err)
	}

	return nil
}

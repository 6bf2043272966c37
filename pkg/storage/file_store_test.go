package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestFileStorePutGetStat(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	ctx := context.Background()
	body := "# Resume\n"
	if err := store.Put(ctx, "wzhenkai_resume.md", strings.NewReader(body), int64(len(body)), ""); err != nil {
		t.Fatalf("put: %v", err)
	}

	rc, info, err := store.Get(ctx, "wzhenkai_resume.md")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if string(got) != body {
		t.Fatalf("unexpected content %q", got)
	}
	if info.Size != int64(len(body)) {
		t.Fatalf("unexpected size %d", info.Size)
	}
	if info.ContentType != "text/markdown; charset=utf-8" {
		t.Fatalf("unexpected content type %q", info.ContentType)
	}
}

func TestFileStoreMissingAndTraversal(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	if _, err := store.Stat(context.Background(), "missing.pdf"); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
	if got := safeFilename("../../etc/passwd"); got != "passwd" {
		t.Fatalf("unexpected sanitized name %q", got)
	}
	if got := safeFilename(".."); got != "asset" {
		t.Fatalf("unexpected sanitized name %q", got)
	}
}

func TestInspectSkipsPageCountForMarkdown(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	ctx := context.Background()
	_ = store.Put(ctx, "cv.md", strings.NewReader("hello"), 5, "")
	meta, err := Inspect(ctx, store, "cv.md")
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if meta.Size != 5 || meta.Pages != 0 {
		t.Fatalf("unexpected meta %+v", meta)
	}
}

func TestPDFPageCountRejectsGarbage(t *testing.T) {
	if _, err := PDFPageCount([]byte("not a pdf")); err == nil {
		t.Fatalf("expected parse error")
	}
}

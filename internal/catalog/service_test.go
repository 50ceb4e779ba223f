package catalog

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"pyqportal/internal/models"
	"pyqportal/internal/storage"
)

func newTestService(t *testing.T) (*Service, *Repository, string) {
	t.Helper()
	root := t.TempDir()
	blobs, err := storage.NewLocalStore(root)
	if err != nil {
		t.Fatalf("local store: %v", err)
	}
	repo := NewRepository(openTestDB(t))
	return NewService(repo, blobs, nil, time.Minute, nil), repo, root
}

func writeBlob(t *testing.T, root, key, body string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write blob: %v", err)
	}
}

func TestServiceCachesUntilRecord(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	page, err := svc.List(ctx, Query{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 0 {
		t.Fatalf("expected empty catalog, got %d", page.Total)
	}

	// bypass the service so the cache is not told
	if err := repo.Insert(ctx, newFile("2023", "Sem3", "DSA", "a.pdf", time.Now())); err != nil {
		t.Fatalf("insert: %v", err)
	}
	page, err = svc.List(ctx, Query{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 0 {
		t.Fatalf("expected cached result, got %d", page.Total)
	}

	if err := svc.Record(ctx, newFile("2023", "Sem3", "DSA", "b.pdf", time.Now().Add(time.Second))); err != nil {
		t.Fatalf("record: %v", err)
	}
	page, err = svc.List(ctx, Query{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 2 {
		t.Fatalf("expected invalidated listing with 2 files, got %d", page.Total)
	}

	opts, err := svc.Facets(ctx)
	if err != nil {
		t.Fatalf("facets: %v", err)
	}
	if len(opts.Subjects) != 1 || opts.Subjects[0] != "DSA" {
		t.Fatalf("unexpected facets %+v", opts)
	}
}

func TestServiceSearch(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	if err := svc.Record(ctx, newFile("2023", "Sem3", "Operating Systems", "os.pdf", time.Now())); err != nil {
		t.Fatalf("record: %v", err)
	}
	page, err := svc.Search(ctx, "operating", Query{Year: "2023"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if page.Total != 1 {
		t.Fatalf("expected one match, got %d", page.Total)
	}
}

func TestServiceOpen(t *testing.T) {
	svc, _, root := newTestService(t)
	ctx := context.Background()
	f := newFile("2023", "Sem3", "DSA", "a.pdf", time.Now())
	writeBlob(t, root, f.Key, "%PDF-1.7 body")
	if err := svc.Record(ctx, f); err != nil {
		t.Fatalf("record: %v", err)
	}

	got, rc, err := svc.Open(ctx, f.ID)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	if string(body) != "%PDF-1.7 body" || got.Key != f.Key {
		t.Fatalf("unexpected content %q for %s", body, got.Key)
	}

	missing := newFile("2023", "Sem3", "DSA", "gone.pdf", time.Now().Add(time.Minute))
	if err := svc.Record(ctx, missing); err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, _, err := svc.Open(ctx, missing.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing blob, got %v", err)
	}
	if _, _, err := svc.Open(ctx, 12345); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown id, got %v", err)
	}
}

func TestReindexAddsUnknownFiles(t *testing.T) {
	svc, _, root := newTestService(t)
	ctx := context.Background()

	writeBlob(t, root, "2023-2024/Semester3/DSA/pdf-1700000000000-7.pdf", "a")
	writeBlob(t, root, "2023-2024/Semester3/DSA/manual.PDF", "bb")
	writeBlob(t, root, "2023-2024/Semester3/notes.txt", "skip")
	writeBlob(t, root, "2023-2024/Semester3/DSA/readme.txt", "skip")

	res, err := svc.Reindex(ctx)
	if err != nil {
		t.Fatalf("reindex: %v", err)
	}
	if res.Scanned != 4 || res.Added != 2 || res.Skipped != 2 {
		t.Fatalf("unexpected result %+v", res)
	}

	page, err := svc.List(ctx, Query{Subject: "DSA", SortBy: SortRecent})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 2 {
		t.Fatalf("expected 2 indexed files, got %d", page.Total)
	}
	var generated *models.StoredFile
	for _, f := range page.Items {
		if f.Filename == "pdf-1700000000000-7.pdf" {
			generated = f
		}
	}
	if generated == nil || !generated.CreatedAt.Equal(time.UnixMilli(1700000000000)) {
		t.Fatalf("expected upload time parsed from name, got %+v", generated)
	}

	res, err = svc.Reindex(ctx)
	if err != nil {
		t.Fatalf("second reindex: %v", err)
	}
	if res.Added != 0 {
		t.Fatalf("second pass should add nothing, added %d", res.Added)
	}
}

func TestReindexSingleFlight(t *testing.T) {
	svc, _, _ := newTestService(t)
	svc.reindexing.Store(true)

	if _, err := svc.Reindex(context.Background()); !errors.Is(err, ErrReindexRunning) {
		t.Fatalf("expected ErrReindexRunning, got %v", err)
	}
	if err := svc.ReindexAsync(context.Background()); !errors.Is(err, ErrReindexRunning) {
		t.Fatalf("expected ErrReindexRunning from async, got %v", err)
	}

	svc.reindexing.Store(false)
	if err := svc.ReindexAsync(context.Background()); err != nil {
		t.Fatalf("async reindex: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for svc.reindexing.Load() {
		if time.Now().After(deadline) {
			t.Fatalf("async reindex did not finish")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestFileFromKey(t *testing.T) {
	now := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	if _, ok := fileFromKey("2023/Sem3/a.pdf", 1, now); ok {
		t.Fatalf("three segments must be rejected")
	}
	f, ok := fileFromKey("2023/Sem3/DSA/scan.pdf", 10, now)
	if !ok {
		t.Fatalf("expected key to parse")
	}
	if f.Year != "2023" || f.Semester != "Sem3" || f.Subject != "DSA" || f.Size != 10 || !f.CreatedAt.Equal(now) {
		t.Fatalf("unexpected file %+v", f)
	}
}

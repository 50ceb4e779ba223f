package intake

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"pyqportal/internal/models"
	"pyqportal/internal/storage"
)

type recordingIndexer struct {
	mu    sync.Mutex
	files []*models.StoredFile
	err   error
}

func (r *recordingIndexer) Record(_ context.Context, f *models.StoredFile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files = append(r.files, f)
	return r.err
}

func newTestService(t *testing.T, maxBytes int64) (*Service, string, *recordingIndexer) {
	t.Helper()
	root := t.TempDir()
	store, err := storage.NewLocalStore(root)
	if err != nil {
		t.Fatalf("local store: %v", err)
	}
	idx := &recordingIndexer{}
	return NewService(store, idx, maxBytes, nil), root, idx
}

func pdfAttachment(data []byte) *Attachment {
	return &Attachment{
		FieldName:   "pdf",
		Filename:    "paper.pdf",
		ContentType: PDFContentType,
		Size:        int64(len(data)),
		Content:     bytes.NewReader(data),
	}
}

func validFields() Fields {
	return Fields{FieldYear: "2023", FieldSemester: "Sem3", FieldSubject: "DSA"}
}

func assertKind(t *testing.T, err error, want Kind) *Error {
	t.Helper()
	var ie *Error
	if !errors.As(err, &ie) {
		t.Fatalf("expected *intake.Error of kind %s, got %v", want, err)
	}
	if ie.Kind != want {
		t.Fatalf("expected kind %s, got %s (%v)", want, ie.Kind, err)
	}
	return ie
}

func assertEmptyDir(t *testing.T, root string) {
	t.Helper()
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("read root: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no side effects under %s, found %d entries", root, len(entries))
	}
}

func TestSubmitStoresBytesUnderNamespace(t *testing.T) {
	svc, root, idx := newTestService(t, 0)
	data := make([]byte, 1024)
	if _, err := rand.Read(data); err != nil {
		t.Fatalf("random data: %v", err)
	}

	stored, err := svc.Submit(context.Background(), validFields(), pdfAttachment(data))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !strings.HasPrefix(stored.Key, "2023/Sem3/DSA/") {
		t.Fatalf("unexpected key %s", stored.Key)
	}
	if ok, _ := regexp.MatchString(`^pdf-\d+-\d+\.pdf$`, stored.Filename); !ok {
		t.Fatalf("unexpected filename %s", stored.Filename)
	}
	got, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(stored.Key)))
	if err != nil {
		t.Fatalf("read stored file: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("stored bytes differ from upload")
	}
	if stored.Size != 1024 || stored.OriginalName != "paper.pdf" {
		t.Fatalf("unexpected metadata %+v", stored)
	}
	if len(idx.files) != 1 || idx.files[0].Key != stored.Key {
		t.Fatalf("expected upload to be indexed, got %+v", idx.files)
	}
}

func TestSubmitFilenameUsesClockAndSuffix(t *testing.T) {
	svc, _, _ := newTestService(t, 0)
	svc.now = func() time.Time { return time.UnixMilli(1700000000123) }
	svc.suffix = func() int64 { return 42 }

	stored, err := svc.Submit(context.Background(), validFields(), &Attachment{
		FieldName:   "pdf",
		Filename:    `C:\Users\me\Notes.v2.PDF`,
		ContentType: PDFContentType,
		Size:        3,
		Content:     strings.NewReader("abc"),
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if stored.Filename != "pdf-1700000000123-42.PDF" {
		t.Fatalf("unexpected filename %s", stored.Filename)
	}
}

func TestSubmitValidationOrder(t *testing.T) {
	docx := &Attachment{
		Filename:    "notes.docx",
		ContentType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		Size:        3,
		Content:     strings.NewReader("abc"),
	}

	cases := []struct {
		name   string
		fields Fields
		file   *Attachment
		want   Kind
	}{
		{"wrong type beats missing fields", Fields{}, docx, KindInvalidFileType},
		{"wrong type with valid fields", validFields(), docx, KindInvalidFileType},
		{"missing fields beats missing file", Fields{FieldYear: "2023"}, nil, KindMissingRequiredField},
		{"no file", validFields(), nil, KindNoFileProvided},
		{"traversal in subject", Fields{FieldYear: "2023", FieldSemester: "Sem3", FieldSubject: "../etc"}, pdfAttachment([]byte("x")), KindInvalidField},
		{"dot segment", Fields{FieldYear: "..", FieldSemester: "Sem3", FieldSubject: "DSA"}, pdfAttachment([]byte("x")), KindInvalidField},
		{"unknown exam type", Fields{FieldYear: "2023", FieldSemester: "Sem3", FieldSubject: "DSA", FieldExamType: "Viva"}, pdfAttachment([]byte("x")), KindInvalidField},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, root, idx := newTestService(t, 0)
			_, err := svc.Submit(context.Background(), tc.fields, tc.file)
			assertKind(t, err, tc.want)
			assertEmptyDir(t, root)
			if len(idx.files) != 0 {
				t.Fatalf("rejected upload must not be indexed")
			}
		})
	}
}

func TestSubmitMissingFieldsNamed(t *testing.T) {
	svc, root, _ := newTestService(t, 0)

	_, err := svc.Submit(context.Background(), Fields{FieldYear: "2023", FieldSubject: "DSA"}, pdfAttachment([]byte("x")))
	ie := assertKind(t, err, KindMissingRequiredField)
	if !slices.Equal(ie.Missing, []string{FieldSemester}) {
		t.Fatalf("expected semester to be named, got %v", ie.Missing)
	}
	if ie.Message != msgMissingFields {
		t.Fatalf("unexpected message %q", ie.Message)
	}

	_, err = svc.Submit(context.Background(), Fields{FieldSemester: "  "}, nil)
	ie = assertKind(t, err, KindMissingRequiredField)
	if !slices.Equal(ie.Missing, requiredFields) {
		t.Fatalf("expected all fields in order, got %v", ie.Missing)
	}
	assertEmptyDir(t, root)
}

func TestSubmitFileTooLarge(t *testing.T) {
	svc, root, _ := newTestService(t, 16)
	_, err := svc.Submit(context.Background(), validFields(), pdfAttachment(make([]byte, 17)))
	ie := assertKind(t, err, KindFileTooLarge)
	if ie.StatusCode() != 413 {
		t.Fatalf("expected 413, got %d", ie.StatusCode())
	}
	assertEmptyDir(t, root)
}

func TestSubmitSameContentTwiceKeepsBoth(t *testing.T) {
	svc, root, _ := newTestService(t, 0)
	data := []byte("%PDF-1.4 same bytes")

	first, err := svc.Submit(context.Background(), validFields(), pdfAttachment(data))
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	second, err := svc.Submit(context.Background(), validFields(), pdfAttachment(data))
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if first.Key == second.Key {
		t.Fatalf("expected distinct keys, both were %s", first.Key)
	}
	entries, err := os.ReadDir(filepath.Join(root, "2023", "Sem3", "DSA"))
	if err != nil {
		t.Fatalf("read namespace: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 files, got %d", len(entries))
	}
}

func TestSubmitConcurrentIntoFreshNamespace(t *testing.T) {
	svc, root, _ := newTestService(t, 0)
	const n = 8

	var g errgroup.Group
	for i := range n {
		g.Go(func() error {
			data := []byte(fmt.Sprintf("%%PDF upload %d", i))
			_, err := svc.Submit(context.Background(), Fields{
				FieldYear: "2024-2025", FieldSemester: "Semester1", FieldSubject: "Physics",
			}, pdfAttachment(data))
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent submit: %v", err)
	}
	entries, err := os.ReadDir(filepath.Join(root, "2024-2025", "Semester1", "Physics"))
	if err != nil {
		t.Fatalf("read namespace: %v", err)
	}
	if len(entries) != n {
		t.Fatalf("expected %d files, got %d", n, len(entries))
	}
}

func TestSubmitIndexFailureIsNotFatal(t *testing.T) {
	svc, root, idx := newTestService(t, 0)
	idx.err = errors.New("database is locked")

	stored, err := svc.Submit(context.Background(), validFields(), pdfAttachment([]byte("x")))
	if err != nil {
		t.Fatalf("submit should succeed when indexing fails: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, filepath.FromSlash(stored.Key))); err != nil {
		t.Fatalf("stored file missing: %v", err)
	}
}

func TestSubmitStorageFailure(t *testing.T) {
	root := t.TempDir()
	store, err := storage.NewLocalStore(root)
	if err != nil {
		t.Fatalf("local store: %v", err)
	}
	// a file where the year directory should be makes MkdirAll fail
	if err := os.WriteFile(filepath.Join(root, "2023"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}
	svc := NewService(store, nil, 0, nil)

	_, err = svc.Submit(context.Background(), validFields(), pdfAttachment([]byte("x")))
	ie := assertKind(t, err, KindStorageFailure)
	if ie.StatusCode() != 500 || ie.Cause == nil {
		t.Fatalf("expected 500 with cause, got %d %v", ie.StatusCode(), ie.Cause)
	}
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", noFile())
	kind, ok := KindOf(wrapped)
	if !ok || kind != KindNoFileProvided {
		t.Fatalf("expected NoFileProvided through wrapping, got %s %v", kind, ok)
	}
	if _, ok := KindOf(errors.New("plain")); ok {
		t.Fatalf("plain error should not have a kind")
	}
}

package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pyqportal/internal/models"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCMD.SetOut(&out)
	rootCMD.SetErr(&errOut)
	rootCMD.SetArgs(args)
	err := rootCMD.Execute()
	return out.String(), errOut.String(), err
}

func TestParseID(t *testing.T) {
	if id, err := parseID("42"); err != nil || id != 42 {
		t.Fatalf("expected 42, got %d (%v)", id, err)
	}
	for _, bad := range []string{"", "0", "-3", "abc"} {
		if _, err := parseID(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestPrintPage(t *testing.T) {
	var buf bytes.Buffer
	if err := printPage(&buf, &models.CatalogPage{}); err != nil {
		t.Fatalf("print empty: %v", err)
	}
	if !strings.Contains(buf.String(), "No papers found") {
		t.Fatalf("unexpected output %q", buf.String())
	}

	buf.Reset()
	page := &models.CatalogPage{
		Items: []*models.StoredFile{{
			ID: 7, Year: "2023-2024", Semester: "Semester3", Subject: "DSA",
			OriginalName: "dsa.pdf", Size: 2048, CreatedAt: time.Now(),
		}},
		Total: 3,
	}
	if err := printPage(&buf, page); err != nil {
		t.Fatalf("print page: %v", err)
	}
	got := buf.String()
	for _, want := range []string{"DSA", "dsa.pdf", "2.0 kB", "1 of 3"} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in output:\n%s", want, got)
		}
	}
}

func TestBrowseCommandFilters(t *testing.T) {
	out, _, err := execute(t, "browse", "--search", "DOLOR", "--year", "2022-2023")
	if err != nil {
		t.Fatalf("browse: %v", err)
	}
	for _, want := range []string{"Lorem Ipsum Dolor Sit Amet", "Duis Aute Irure Dolor", "2.4 MB"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Sed Do Eiusmod") {
		t.Fatalf("non matching paper listed:\n%s", out)
	}

	out, _, err = execute(t, "browse", "--search", "nothing matches this", "--year", "")
	if err != nil {
		t.Fatalf("browse: %v", err)
	}
	if !strings.Contains(out, "No papers found") {
		t.Fatalf("expected empty message, got:\n%s", out)
	}
}

func TestCatalogListAgainstServer(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pyqs" {
			http.NotFound(w, r)
			return
		}
		gotQuery = r.URL.RawQuery
		json.NewEncoder(w).Encode(models.CatalogPage{
			Items: []*models.StoredFile{{ID: 1, Year: "2024", Semester: "Semester1", Subject: "OS", OriginalName: "os.pdf", Size: 10}},
			Total: 1,
		})
	}))
	defer srv.Close()

	out, _, err := execute(t, "--upload-url", srv.URL, "catalog", "list", "--subject", "OS")
	if err != nil {
		t.Fatalf("catalog list: %v", err)
	}
	if !strings.Contains(gotQuery, "subject=OS") {
		t.Fatalf("subject filter not sent: %q", gotQuery)
	}
	if !strings.Contains(out, "os.pdf") || !strings.Contains(out, "1 of 1") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestUploadCommandRejectsNonPDF(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("plain text"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	_, _, err := execute(t, "upload", "--year", "2024", "--semester", "Semester1", "--subject", "OS", path)
	if err == nil {
		t.Fatalf("expected error for non-pdf file")
	}
	if !strings.Contains(err.Error(), "notes.txt") {
		t.Fatalf("error should name the file: %v", err)
	}
}

func TestTokenCommand(t *testing.T) {
	out, _, err := execute(t, "token")
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if len(strings.TrimSpace(out)) < 32 {
		t.Fatalf("token too short: %q", out)
	}
}

package client

import (
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"

	"pyqportal/internal/models"
)

// UploadForm carries the metadata fields sent with a paper.
type UploadForm struct {
	Year       string
	Semester   string
	Subject    string
	ExamType   string
	CourseCode string
}

func (f UploadForm) fields() [][2]string {
	out := [][2]string{{"year", f.Year}, {"semester", f.Semester}, {"subject", f.Subject}}
	if f.ExamType != "" {
		out = append(out, [2]string{"examType", f.ExamType})
	}
	if f.CourseCode != "" {
		out = append(out, [2]string{"courseCode", f.CourseCode})
	}
	return out
}

// ProgressFunc receives the number of file bytes sent so far and the file size.
type ProgressFunc func(sent, total int64)

// UploadPYQ streams the file at path to POST /upload.
func (c *Client) UploadPYQ(ctx context.Context, form UploadForm, path string, progress ProgressFunc) (*models.UploadResponse, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	return c.UploadPYQReader(ctx, form, filepath.Base(path), contentTypeFor(path), f, info.Size(), progress)
}

// UploadPYQReader streams size bytes from r as the pdf part of a multipart request.
// The body is produced while it is sent, so memory use does not depend on the file size.
func (c *Client) UploadPYQReader(ctx context.Context, form UploadForm, filename, contentType string, r io.Reader, size int64, progress ProgressFunc) (*models.UploadResponse, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	done := make(chan struct{})
	go func() {
		defer close(done)
		pw.CloseWithError(writeUploadBody(mw, form, filename, contentType, &countingReader{r: r, total: size, progress: progress}))
	}()
	// closing the read side unblocks the writer if the server answered early;
	// waiting for it means progress is never reported after return
	defer func() {
		pr.Close()
		<-done
	}()

	req, err := c.newRequest(ctx, uploadService, http.MethodPost, "/upload", nil, pr)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.do(uploadService, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out models.UploadResponse
	if err := decodeBody(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func writeUploadBody(mw *multipart.Writer, form UploadForm, filename, contentType string, content io.Reader) error {
	for _, kv := range form.fields() {
		if err := mw.WriteField(kv[0], kv[1]); err != nil {
			return err
		}
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="pdf"; filename="%s"`, escapeQuotes(filename)))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, content); err != nil {
		return err
	}
	return mw.Close()
}

type countingReader struct {
	r        io.Reader
	sent     int64
	total    int64
	progress ProgressFunc
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.sent += int64(n)
		if c.progress != nil {
			c.progress(c.sent, c.total)
		}
	}
	return n, err
}

// contentTypeFor advertises a type from the file extension, as browsers do.
func contentTypeFor(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == ".pdf" {
		return "application/pdf"
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

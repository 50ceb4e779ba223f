package intake

import (
	"context"
	"io"
	"math/rand/v2"
	"path"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"pyqportal/internal/models"
	"pyqportal/internal/storage"
)

const (
	PDFContentType   = "application/pdf"
	DefaultFieldName = "pdf"

	FieldYear       = "year"
	FieldSemester   = "semester"
	FieldSubject    = "subject"
	FieldExamType   = "examType"
	FieldCourseCode = "courseCode"

	maxRandomSuffix = 1_000_000_000
)

var requiredFields = []string{FieldYear, FieldSemester, FieldSubject}

// Fields are the form values submitted alongside the attachment.
type Fields map[string]string

func (f Fields) get(key string) string {
	return strings.TrimSpace(f[key])
}

// Attachment is the uploaded file as advertised by the client.
type Attachment struct {
	// FieldName is the multipart field the file arrived in; it prefixes the stored filename.
	FieldName   string
	Filename    string
	ContentType string
	Size        int64
	Content     io.Reader
}

// Indexer records stored files in a queryable catalog.
type Indexer interface {
	Record(ctx context.Context, file *models.StoredFile) error
}

// Service validates uploads and persists them under <year>/<semester>/<subject>/.
type Service struct {
	blobs    storage.BlobStore
	index    Indexer
	log      *zap.Logger
	maxBytes int64
	now      func() time.Time
	suffix   func() int64
}

// NewService builds the intake pipeline. index may be nil; maxBytes <= 0 disables the size check.
func NewService(blobs storage.BlobStore, index Indexer, maxBytes int64, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		blobs:    blobs,
		index:    index,
		log:      log,
		maxBytes: maxBytes,
		now:      time.Now,
		suffix:   func() int64 { return rand.Int64N(maxRandomSuffix + 1) },
	}
}

// Submit validates the submission and writes the attachment exactly once.
// Nothing touches the store until every check has passed.
func (s *Service) Submit(ctx context.Context, fields Fields, file *Attachment) (*models.StoredFile, error) {
	if err := s.validate(fields, file); err != nil {
		return nil, err
	}

	year, semester, subject := fields.get(FieldYear), fields.get(FieldSemester), fields.get(FieldSubject)
	filename := s.filename(file)
	key := path.Join(year, semester, subject, filename)

	written, err := s.blobs.Put(ctx, key, file.Content, file.Size, file.ContentType)
	if err != nil {
		s.log.Error("store upload", zap.String("key", key), zap.Error(err))
		return nil, storageFailure(err)
	}

	stored := &models.StoredFile{
		Key:          key,
		Filename:     filename,
		OriginalName: file.Filename,
		MimeType:     file.ContentType,
		Size:         written,
		Year:         year,
		Semester:     semester,
		Subject:      subject,
		ExamType:     fields.get(FieldExamType),
		CourseCode:   fields.get(FieldCourseCode),
		CreatedAt:    s.now().UTC(),
	}
	if s.index != nil {
		// the file on disk is authoritative; a reindex picks up anything missed here
		if err := s.index.Record(ctx, stored); err != nil {
			s.log.Warn("index upload", zap.String("key", key), zap.Error(err))
		}
	}
	s.log.Info("upload stored",
		zap.String("key", key),
		zap.String("original_name", file.Filename),
		zap.Int64("size", written),
	)
	return stored, nil
}

func (s *Service) validate(fields Fields, file *Attachment) error {
	if file != nil && file.ContentType != PDFContentType {
		return invalidFileType(file.ContentType)
	}

	var missing []string
	for _, key := range requiredFields {
		if fields.get(key) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return missingFields(missing)
	}

	if file == nil {
		return noFile()
	}

	for _, key := range requiredFields {
		if !isSafeSegment(fields.get(key)) {
			return invalidField(key, "must not contain path separators")
		}
	}
	if examType := fields.get(FieldExamType); examType != "" && !slices.Contains(models.ExamTypes, examType) {
		return invalidField(FieldExamType, "must be one of "+strings.Join(models.ExamTypes, ", "))
	}
	if s.maxBytes > 0 && file.Size > s.maxBytes {
		return fileTooLarge(file.Size, s.maxBytes)
	}
	return nil
}

// filename derives <field>-<epochMillis>-<random>.<ext>. Uniqueness comes from the
// timestamp and random suffix, not from the content.
func (s *Service) filename(file *Attachment) string {
	field := file.FieldName
	if field == "" {
		field = DefaultFieldName
	}
	var b strings.Builder
	b.WriteString(field)
	b.WriteByte('-')
	b.WriteString(strconv.FormatInt(s.now().UnixMilli(), 10))
	b.WriteByte('-')
	b.WriteString(strconv.FormatInt(s.suffix(), 10))
	b.WriteString(extension(file.Filename))
	return b.String()
}

func extension(name string) string {
	// browsers on Windows may send the full client path
	name = name[strings.LastIndexAny(name, `/\`)+1:]
	ext := filepath.Ext(name)
	if len(ext) < 2 {
		return ""
	}
	for _, r := range ext[1:] {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return ""
		}
	}
	return ext
}

func isSafeSegment(v string) bool {
	return v != "." && v != ".." && !strings.ContainsAny(v, "/\\\x00")
}

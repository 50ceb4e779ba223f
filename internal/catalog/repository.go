package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"pyqportal/internal/models"
)

var ErrNotFound = errors.New("stored file not found")

const (
	SortRecent  = "recent"
	SortYear    = "year"
	SortSubject = "subject"

	DefaultLimit = 20
	MaxLimit     = 100
)

// Query filters and pages catalog listings. Empty fields do not filter.
type Query struct {
	// Search is a case-insensitive substring matched against subject, course code and original filename.
	Search     string `form:"q"`
	Year       string `form:"year"`
	Semester   string `form:"semester"`
	Subject    string `form:"subject"`
	ExamType   string `form:"examType"`
	CourseCode string `form:"courseCode"`
	SortBy     string `form:"sortBy"`
	Limit      int    `form:"limit"`
	Offset     int    `form:"offset"`
}

func (q Query) normalized() Query {
	q.Search = strings.TrimSpace(q.Search)
	switch q.SortBy {
	case SortYear, SortSubject:
	default:
		q.SortBy = SortRecent
	}
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q
}

func (q Query) cacheKey() string {
	return fmt.Sprintf("list:%q:%q:%q:%q:%q:%q:%s:%d:%d",
		strings.ToLower(q.Search), q.Year, q.Semester, q.Subject, q.ExamType, q.CourseCode, q.SortBy, q.Limit, q.Offset)
}

const fileColumns = `id, storage_key, filename, original_name, mime_type, size, year, semester, subject, exam_type, course_code, created_at`

// Repository persists catalog rows in the stored_files table.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Insert adds f and sets its ID.
func (r *Repository) Insert(ctx context.Context, f *models.StoredFile) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO stored_files (storage_key, filename, original_name, mime_type, size, year, semester, subject, exam_type, course_code, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.Key, f.Filename, f.OriginalName, f.MimeType, f.Size,
		f.Year, f.Semester, f.Subject, f.ExamType, f.CourseCode, f.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert stored file: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("stored file id: %w", err)
	}
	f.ID = id
	return nil
}

// UpdateByKey overwrites the metadata of the row stored under f.Key and sets f.ID.
func (r *Repository) UpdateByKey(ctx context.Context, f *models.StoredFile) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE stored_files
		SET filename = ?, original_name = ?, mime_type = ?, size = ?, year = ?, semester = ?, subject = ?,
			exam_type = ?, course_code = ?, created_at = ?
		WHERE storage_key = ?`,
		f.Filename, f.OriginalName, f.MimeType, f.Size, f.Year, f.Semester, f.Subject,
		f.ExamType, f.CourseCode, f.CreatedAt.UTC(), f.Key,
	)
	if err != nil {
		return fmt.Errorf("update stored file: %w", err)
	}
	if err := r.db.QueryRowContext(ctx, `SELECT id FROM stored_files WHERE storage_key = ?`, f.Key).Scan(&f.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("lookup stored file key: %w", err)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id int64) (*models.StoredFile, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM stored_files WHERE id = ?`, id)
	f, err := scanFile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get stored file: %w", err)
	}
	return f, nil
}

func (r *Repository) ExistsKey(ctx context.Context, key string) (bool, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM stored_files WHERE storage_key = ?`, key).Scan(&n); err != nil {
		return false, fmt.Errorf("lookup stored file key: %w", err)
	}
	return n > 0, nil
}

// List returns one page of matching files plus the total match count.
func (r *Repository) List(ctx context.Context, q Query) (*models.CatalogPage, error) {
	q = q.normalized()
	where, args := buildWhere(q)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM stored_files`+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count stored files: %w", err)
	}

	stmt := `SELECT ` + fileColumns + ` FROM stored_files` + where + ` ORDER BY ` + orderBy(q.SortBy) + ` LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, stmt, append(args, q.Limit, q.Offset)...)
	if err != nil {
		return nil, fmt.Errorf("list stored files: %w", err)
	}
	defer rows.Close()

	page := &models.CatalogPage{Items: []*models.StoredFile{}, Total: total}
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stored file: %w", err)
		}
		page.Items = append(page.Items, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stored files: %w", err)
	}
	return page, nil
}

// Facets returns the distinct values present in the catalog.
func (r *Repository) Facets(ctx context.Context) (*models.FilterOptions, error) {
	var (
		opts models.FilterOptions
		err  error
	)
	if opts.Years, err = r.distinct(ctx, "year", "year DESC"); err != nil {
		return nil, err
	}
	if opts.Semesters, err = r.distinct(ctx, "semester", "semester"); err != nil {
		return nil, err
	}
	if opts.Subjects, err = r.distinct(ctx, "subject", "subject"); err != nil {
		return nil, err
	}
	if opts.ExamTypes, err = r.distinct(ctx, "exam_type", "exam_type"); err != nil {
		return nil, err
	}
	return &opts, nil
}

// distinct only ever receives column names from Facets.
func (r *Repository) distinct(ctx context.Context, column, order string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT DISTINCT %s FROM stored_files WHERE %s <> '' ORDER BY %s`, column, column, order))
	if err != nil {
		return nil, fmt.Errorf("distinct %s: %w", column, err)
	}
	defer rows.Close()
	values := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan %s: %w", column, err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", column, err)
	}
	return values, nil
}

func buildWhere(q Query) (string, []any) {
	var (
		conds []string
		args  []any
	)
	eq := func(column, value string) {
		if value != "" {
			conds = append(conds, column+" = ?")
			args = append(args, value)
		}
	}
	eq("year", q.Year)
	eq("semester", q.Semester)
	eq("subject", q.Subject)
	eq("exam_type", q.ExamType)
	eq("course_code", q.CourseCode)
	if q.Search != "" {
		pattern := "%" + escapeLike(strings.ToLower(q.Search)) + "%"
		conds = append(conds, `(LOWER(subject) LIKE ? ESCAPE '!' OR LOWER(course_code) LIKE ? ESCAPE '!' OR LOWER(original_name) LIKE ? ESCAPE '!')`)
		args = append(args, pattern, pattern, pattern)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func orderBy(sortBy string) string {
	switch sortBy {
	case SortYear:
		return "year DESC, semester, subject, id DESC"
	case SortSubject:
		return "subject, year DESC, id DESC"
	default:
		return "created_at DESC, id DESC"
	}
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFile(s scanner) (*models.StoredFile, error) {
	var f models.StoredFile
	if err := s.Scan(&f.ID, &f.Key, &f.Filename, &f.OriginalName, &f.MimeType, &f.Size,
		&f.Year, &f.Semester, &f.Subject, &f.ExamType, &f.CourseCode, &f.CreatedAt); err != nil {
		return nil, err
	}
	return &f, nil
}

package models

import "time"

// StoredFile is a PYQ paper persisted under uploads/<year>/<semester>/<subject>/.
type StoredFile struct {
	ID           int64     `json:"id"`
	Key          string    `json:"key"`
	Filename     string    `json:"filename"`
	OriginalName string    `json:"original_name"`
	MimeType     string    `json:"mime_type"`
	Size         int64     `json:"size"`
	Year         string    `json:"year"`
	Semester     string    `json:"semester"`
	Subject      string    `json:"subject"`
	ExamType     string    `json:"exam_type,omitempty"`
	CourseCode   string    `json:"course_code,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Exam types accepted on upload.
const (
	ExamMidTerm       = "MidTerm"
	ExamEndTerm       = "EndTerm"
	ExamQuiz          = "Quiz"
	ExamAssignment    = "Assignment"
	ExamSupplementary = "Supplementary"
)

var ExamTypes = []string{ExamMidTerm, ExamEndTerm, ExamQuiz, ExamAssignment, ExamSupplementary}

// Semesters lists the tokens offered by the upload form.
var Semesters = []string{
	"Semester1", "Semester2", "Semester3", "Semester4",
	"Semester5", "Semester6", "Semester7", "Semester8", "Summer",
}

// FilterOptions are the distinct catalog values used to populate browse filters.
type FilterOptions struct {
	Years     []string `json:"years"`
	Semesters []string `json:"semesters"`
	Subjects  []string `json:"subjects"`
	ExamTypes []string `json:"exam_types"`
}

// UploadResponse is the success body of POST /upload.
type UploadResponse struct {
	Msg  string      `json:"msg"`
	File *StoredFile `json:"file,omitempty"`
}

// ErrorResponse is the single error envelope returned by the upload service.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Kind    string   `json:"kind,omitempty"`
	Missing []string `json:"missing,omitempty"`
}

// CatalogPage is a page of catalog results.
type CatalogPage struct {
	Items []*StoredFile `json:"items"`
	Total int           `json:"total"`
}

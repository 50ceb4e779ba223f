package portal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"pyqportal/internal/client"
	"pyqportal/internal/models"
)

const (
	MaxFileBytes      = 10 << 20
	DefaultResetDelay = 2 * time.Second

	msgNoFile        = "Please select a PDF file to upload"
	msgUploaded      = "PYQ uploaded successfully!"
	msgUploadFailed  = "Failed to upload PYQ. Please try again."
	msgUnsupported   = "File type not supported. Please upload .pdf files only."
	msgFileTooLarge  = "File is too large. Maximum size is 10MB."
	msgMissingPrefix = "Please fill in all required fields: "
)

var (
	ErrUnsupportedFile = errors.New(msgUnsupported)
	ErrFileTooLarge    = errors.New(msgFileTooLarge)
	ErrUploadRunning   = errors.New("upload already in progress")
)

// Uploader sends a paper to the upload service.
type Uploader interface {
	UploadPYQ(ctx context.Context, form client.UploadForm, path string, progress client.ProgressFunc) (*models.UploadResponse, error)
}

// UploadState is a snapshot of the upload form.
type UploadState struct {
	Form      client.UploadForm
	File      string
	Progress  int
	Uploading bool
	Succeeded bool
}

// UploadFlow validates the upload form locally, submits it with progress
// reporting and clears it a short while after a successful upload.
// The server stays authoritative; these checks only save a round trip.
type UploadFlow struct {
	uploader   Uploader
	notes      *Notifier
	resetDelay time.Duration

	mu         sync.Mutex
	state      UploadState
	resetTimer *time.Timer
}

func NewUploadFlow(uploader Uploader, notes *Notifier) *UploadFlow {
	return &UploadFlow{uploader: uploader, notes: notes, resetDelay: DefaultResetDelay}
}

func (u *UploadFlow) SetForm(form client.UploadForm) {
	u.mu.Lock()
	u.state.Form = form
	u.mu.Unlock()
}

// ChooseFile selects path if it looks like a PDF of at most 10 MiB.
// A rejected file clears any previous selection.
func (u *UploadFlow) ChooseFile(path string) error {
	err := checkFile(path)
	u.mu.Lock()
	defer u.mu.Unlock()
	if err != nil {
		u.state.File = ""
		return err
	}
	u.state.File = path
	return nil
}

func checkFile(path string) error {
	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		return ErrUnsupportedFile
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() > MaxFileBytes {
		return ErrFileTooLarge
	}
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return fmt.Errorf("detect type of %s: %w", path, err)
	}
	if !mtype.Is("application/pdf") {
		return ErrUnsupportedFile
	}
	return nil
}

func (u *UploadFlow) State() UploadState {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.state
}

// Submit uploads the chosen file. Failures are reported as notifications and
// leave the form as it was so the user can resubmit.
func (u *UploadFlow) Submit(ctx context.Context) (*models.UploadResponse, error) {
	u.mu.Lock()
	if u.state.Uploading {
		u.mu.Unlock()
		return nil, ErrUploadRunning
	}
	form, file := u.state.Form, u.state.File
	if file == "" {
		u.mu.Unlock()
		u.notes.Add(KindError, msgNoFile)
		return nil, errors.New(msgNoFile)
	}
	if missing := missingFields(form); len(missing) > 0 {
		u.mu.Unlock()
		msg := msgMissingPrefix + strings.Join(missing, ", ")
		u.notes.Add(KindError, msg)
		return nil, errors.New(msg)
	}
	if u.resetTimer != nil {
		u.resetTimer.Stop()
		u.resetTimer = nil
	}
	u.state.Uploading = true
	u.state.Succeeded = false
	u.state.Progress = 0
	u.mu.Unlock()

	resp, err := u.uploader.UploadPYQ(ctx, form, file, u.onProgress)

	u.mu.Lock()
	u.state.Uploading = false
	if err != nil {
		u.mu.Unlock()
		u.notes.Add(KindError, uploadFailureMessage(err))
		return nil, err
	}
	u.state.Succeeded = true
	u.state.Progress = 100
	u.resetTimer = time.AfterFunc(u.resetDelay, u.reset)
	u.mu.Unlock()

	u.notes.Add(KindSuccess, msgUploaded)
	return resp, nil
}

func (u *UploadFlow) onProgress(sent, total int64) {
	if total <= 0 {
		return
	}
	pct := int((sent*100 + total/2) / total)
	u.mu.Lock()
	u.state.Progress = pct
	u.mu.Unlock()
}

func (u *UploadFlow) reset() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.state = UploadState{}
	u.resetTimer = nil
}

// Close cancels a pending reset.
func (u *UploadFlow) Close() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.resetTimer != nil {
		u.resetTimer.Stop()
		u.resetTimer = nil
	}
}

func missingFields(form client.UploadForm) []string {
	var missing []string
	if strings.TrimSpace(form.Year) == "" {
		missing = append(missing, "year")
	}
	if strings.TrimSpace(form.Semester) == "" {
		missing = append(missing, "semester")
	}
	if strings.TrimSpace(form.Subject) == "" {
		missing = append(missing, "subject")
	}
	return missing
}

func uploadFailureMessage(err error) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return msgUploadFailed
}

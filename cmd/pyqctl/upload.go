package main

import (
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"pyqportal/internal/client"
	"pyqportal/internal/portal"
)

var uploadCMD = &cobra.Command{
	Use:   "upload FILE...",
	Short: "Upload one or more PDF papers",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runUpload,
}

func init() {
	flags := uploadCMD.Flags()
	flags.String("year", "", "academic year, e.g. 2023-2024 (required)")
	flags.String("semester", "", "semester, e.g. Semester3 (required)")
	flags.String("subject", "", "subject (required)")
	flags.String("exam-type", "", "MidTerm, EndTerm, Quiz, Assignment or Supplementary")
	flags.String("course-code", "", "course code")
	flags.IntP("parallel", "p", 3, "files uploaded at the same time")
	rootCMD.AddCommand(uploadCMD)
}

func runUpload(cmd *cobra.Command, args []string) error {
	c, err := newClient(cmd)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	form := client.UploadForm{}
	for name, dst := range map[string]*string{
		"year": &form.Year, "semester": &form.Semester, "subject": &form.Subject,
		"exam-type": &form.ExamType, "course-code": &form.CourseCode,
	} {
		if *dst, err = flags.GetString(name); err != nil {
			return err
		}
	}
	parallel, err := flags.GetInt("parallel")
	if err != nil {
		return err
	}
	if parallel < 1 {
		parallel = 1
	}

	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
	var mu sync.Mutex
	printf := func(w io.Writer, format string, a ...any) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(w, format, a...)
	}

	notes := newNotifier(lockedWriter{mu: &mu, w: errOut})
	defer notes.Close()

	// one failed file does not cancel the others
	var g errgroup.Group
	g.SetLimit(parallel)
	ctx := cmd.Context()
	for _, path := range args {
		g.Go(func() error {
			flow := portal.NewUploadFlow(c, notes)
			defer flow.Close()
			if err := flow.ChooseFile(path); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			flow.SetForm(form)
			resp, err := flow.Submit(ctx)
			if err != nil {
				return fmt.Errorf("%s: %w", filepath.Base(path), err)
			}
			if resp.File != nil {
				printf(out, "%s -> %s (%s)\n", filepath.Base(path), resp.File.Key, humanize.Bytes(uint64(resp.File.Size)))
			} else {
				printf(out, "%s -> %s\n", filepath.Base(path), resp.Msg)
			}
			return nil
		})
	}
	return g.Wait()
}

type lockedWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (l lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"pyqportal/internal/client"
	"pyqportal/internal/models"
)

var catalogCMD = &cobra.Command{
	Use:   "catalog",
	Short: "Query papers stored by the upload service",
}

var catalogListCMD = &cobra.Command{
	Use:   "list",
	Short: "List stored papers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		var f client.Filters
		f.Year, _ = flags.GetString("year")
		f.Semester, _ = flags.GetString("semester")
		f.Subject, _ = flags.GetString("subject")
		f.ExamType, _ = flags.GetString("exam-type")
		f.CourseCode, _ = flags.GetString("course-code")
		f.SortBy, _ = flags.GetString("sort")
		f.Limit, _ = flags.GetInt("limit")
		f.Offset, _ = flags.GetInt("offset")

		page, err := c.ListPYQs(cmd.Context(), f)
		if err != nil {
			return err
		}
		return printPage(cmd.OutOrStdout(), page)
	},
}

var catalogSearchCMD = &cobra.Command{
	Use:   "search QUERY",
	Short: "Search subjects, course codes and file names",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		page, err := c.SearchPYQs(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printPage(cmd.OutOrStdout(), page)
	},
}

var catalogGetCMD = &cobra.Command{
	Use:   "get ID",
	Short: "Show one stored paper",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		f, err := c.GetPYQ(cmd.Context(), id)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "id:        %d\nfile:      %s\noriginal:  %s\nyear:      %s\nsemester:  %s\nsubject:   %s\n",
			f.ID, f.Key, f.OriginalName, f.Year, f.Semester, f.Subject)
		if f.ExamType != "" {
			fmt.Fprintf(out, "exam type: %s\n", f.ExamType)
		}
		if f.CourseCode != "" {
			fmt.Fprintf(out, "course:    %s\n", f.CourseCode)
		}
		fmt.Fprintf(out, "size:      %s\nuploaded:  %s\n", humanize.Bytes(uint64(f.Size)), humanize.Time(f.CreatedAt))
		return nil
	},
}

var catalogDownloadCMD = &cobra.Command{
	Use:   "download ID",
	Short: "Download a stored paper",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		output, _ := cmd.Flags().GetString("output")
		if output == "" {
			output = fmt.Sprintf("pyq-%d.pdf", id)
		}
		var w io.Writer = cmd.OutOrStdout()
		if output != "-" {
			f, err := os.OpenFile(output, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}
		n, err := c.DownloadPYQ(cmd.Context(), id, w)
		if err != nil {
			if output != "-" {
				os.Remove(output)
			}
			return err
		}
		if output != "-" {
			fmt.Fprintf(cmd.ErrOrStderr(), "saved %s (%s)\n", output, humanize.Bytes(uint64(n)))
		}
		return nil
	},
}

var catalogFiltersCMD = &cobra.Command{
	Use:   "filters",
	Short: "Show the years, semesters, subjects and exam types on file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		opts, err := c.GetFilterOptions(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "years:      %v\nsemesters:  %v\nsubjects:   %v\nexam types: %v\n",
			opts.Years, opts.Semesters, opts.Subjects, opts.ExamTypes)
		return nil
	},
}

var catalogReindexCMD = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the catalog from stored files (needs --token)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		if err := c.Reindex(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "reindex started")
		return nil
	},
}

func init() {
	flags := catalogListCMD.Flags()
	flags.String("year", "", "academic year")
	flags.String("semester", "", "semester")
	flags.String("subject", "", "subject")
	flags.String("exam-type", "", "exam type")
	flags.String("course-code", "", "course code")
	flags.String("sort", "recent", "recent, year or subject")
	flags.Int("limit", 20, "page size")
	flags.Int("offset", 0, "results to skip")

	catalogDownloadCMD.Flags().StringP("output", "o", "", "destination file, - for stdout")

	catalogCMD.AddCommand(catalogListCMD, catalogSearchCMD, catalogGetCMD, catalogDownloadCMD, catalogFiltersCMD, catalogReindexCMD)
	rootCMD.AddCommand(catalogCMD)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func printPage(w io.Writer, page *models.CatalogPage) error {
	if len(page.Items) == 0 {
		fmt.Fprintln(w, "No papers found")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tYEAR\tSEMESTER\tSUBJECT\tEXAM\tFILE\tSIZE\tUPLOADED")
	for _, f := range page.Items {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			f.ID, f.Year, f.Semester, f.Subject, f.ExamType, f.OriginalName,
			humanize.Bytes(uint64(f.Size)), humanize.Time(f.CreatedAt))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "%d of %d\n", len(page.Items), page.Total)
	return nil
}

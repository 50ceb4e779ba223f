package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"pyqportal/internal/portal"
)

var browseCMD = &cobra.Command{
	Use:   "browse",
	Short: "Filter the example paper list offline",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		flags := cmd.Flags()
		search, _ := flags.GetString("search")
		year, _ := flags.GetString("year")
		semester, _ := flags.GetString("semester")
		options, _ := flags.GetBool("options")

		b := portal.NewBrowse(nil)
		out := cmd.OutOrStdout()
		if options {
			fmt.Fprintf(out, "years:     %v\nsemesters: %v\n", b.Years(), b.Semesters())
			return nil
		}
		papers := b.Filter(portal.BrowseFilter{Search: search, Year: year, Semester: semester})
		if len(papers) == 0 {
			fmt.Fprintln(out, "No papers found")
			return nil
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tTITLE\tSUBJECT\tYEAR\tSEMESTER\tUPLOADED\tSIZE\tDOWNLOADS")
		for _, p := range papers {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%d\n",
				p.ID, p.Title, p.Subject, p.Year, p.Semester,
				p.UploadDate.Format("2006-01-02"), humanize.Bytes(p.SizeBytes), p.Downloads)
		}
		return tw.Flush()
	},
}

func init() {
	browseCMD.Flags().StringP("search", "s", "", "case-insensitive match on title or subject")
	browseCMD.Flags().String("year", "", "exact academic year")
	browseCMD.Flags().String("semester", "", "exact semester")
	browseCMD.Flags().Bool("options", false, "list the available years and semesters")
	rootCMD.AddCommand(browseCMD)
}

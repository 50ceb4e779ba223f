package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"pyqportal/internal/models"
	"pyqportal/internal/portal"
)

var chatCMD = &cobra.Command{
	Use:   "chat",
	Short: "Ask questions about previous year papers",
	Long:  "Starts an interactive session. Type /status, /scan or /quit at the prompt.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		notes := newNotifier(cmd.ErrOrStderr())
		defer notes.Close()
		conv := portal.NewConversation(c, notes)
		defer conv.Close()

		printMessage(out, conv.Transcript()[0])
		scanner := bufio.NewScanner(cmd.InOrStdin())
		for {
			fmt.Fprint(out, "> ")
			if !scanner.Scan() {
				return scanner.Err()
			}
			line := strings.TrimSpace(scanner.Text())
			switch line {
			case "/quit", "/exit":
				return nil
			case "/status":
				if status, err := conv.RefreshStatus(cmd.Context()); err == nil {
					printStatus(out, status)
				}
				continue
			case "/scan":
				_ = conv.Scan(cmd.Context())
				continue
			}
			answer, err := conv.Send(cmd.Context(), line)
			if errors.Is(err, portal.ErrEmptyQuery) {
				continue
			}
			printMessage(out, answer)
		}
	},
}

var statusCMD = &cobra.Command{
	Use:   "status",
	Short: "Show the chat service indexing status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		status, err := c.GetSystemStatus(cmd.Context())
		if err != nil {
			return err
		}
		printStatus(cmd.OutOrStdout(), status)
		return nil
	},
}

var scanCMD = &cobra.Command{
	Use:   "scan",
	Short: "Ask the chat service to rescan its PDFs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		reply, err := c.TriggerScan(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), reply.Message)
		return nil
	},
}

func init() {
	rootCMD.AddCommand(chatCMD, statusCMD, scanCMD)
}

func printMessage(w io.Writer, m models.Message) {
	fmt.Fprintf(w, "[%s] %s\n", m.Timestamp.Format("15:04"), m.Content)
	if len(m.Sources) > 0 {
		fmt.Fprintf(w, "  sources: %s\n", strings.Join(m.Sources, ", "))
	}
}

func printStatus(w io.Writer, s *models.SystemStatus) {
	fmt.Fprintf(w, "vectorstore initialized: %t\n", s.VectorstoreInitialized)
	if s.ChainInitialized != nil {
		fmt.Fprintf(w, "chain initialized:       %t\n", *s.ChainInitialized)
	}
	fmt.Fprintf(w, "indexed pdfs:            %d\n", s.IndexedPDFs)
	if t, ok := s.LastScan(); ok {
		fmt.Fprintf(w, "last scan:               %s\n", humanize.Time(t))
	} else {
		fmt.Fprintln(w, "last scan:               never")
	}
}

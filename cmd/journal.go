package cmd

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"attendance-kiosk/internal/config"
	"attendance-kiosk/internal/journal"

	"github.com/spf13/cobra"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Show recent enrollment and attendance attempts",
	RunE:  runJournal,
}

func init() {
	rootCmd.AddCommand(journalCmd)

	journalCmd.Flags().Int("limit", 20, "Number of attempts to show")
}

func runJournal(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Journal.Path == "" {
		return errors.New("journal is disabled (KIOSK_JOURNAL_PATH is empty)")
	}

	j, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer j.Close()

	attempts, err := j.Recent(mustGetInt(cmd, "limit"))
	if err != nil {
		return fmt.Errorf("failed to read journal: %w", err)
	}
	if len(attempts) == 0 {
		fmt.Println("No attempts recorded yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tWORKFLOW\tOUTCOME\tIDENT\tREASON\tTOOK")
	for _, a := range attempts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			a.StartedAt.Local().Format(time.DateTime), a.Workflow, a.Outcome, a.Ident, a.Reason,
			a.Duration.Round(time.Millisecond))
	}
	return w.Flush()
}

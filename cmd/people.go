package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"attendance-kiosk/internal/api"
	"attendance-kiosk/internal/config"
	"attendance-kiosk/internal/roster"

	"github.com/spf13/cobra"
)

var peopleCmd = &cobra.Command{
	Use:   "people",
	Short: "Manage enrolled people",
}

var peopleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled people, newest update first",
	RunE:  runPeopleList,
}

var peopleDeleteCmd = &cobra.Command{
	Use:   "delete <ident>",
	Short: "Delete an enrolled person",
	Args:  cobra.ExactArgs(1),
	RunE:  runPeopleDelete,
}

func init() {
	rootCmd.AddCommand(peopleCmd)
	peopleCmd.AddCommand(peopleListCmd)
	peopleCmd.AddCommand(peopleDeleteCmd)

	peopleListCmd.Flags().String("filter", "", "Case-insensitive ident substring")
}

func newBackend() (*api.Backend, *roster.Roster, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	client := api.NewAPIClient(cfg.API.BaseURL, cfg.API.Timeout)
	client.SetSecretKey(cfg.API.SecretKey)
	backend := api.NewBackend(client)
	return backend, roster.New(backend, roster.MustLocation(cfg.Kiosk.DisplayTimeZone)), nil
}

func runPeopleList(cmd *cobra.Command, args []string) error {
	_, people, err := newBackend()
	if err != nil {
		return err
	}
	if err := people.Refresh(cmd.Context()); err != nil {
		return fmt.Errorf("failed to load people: %w", err)
	}

	view := people.View(mustGetString(cmd, "filter"))
	if view.Message != "" {
		fmt.Println(view.Message)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "IDENT\tTIME ZONE\tDATE\tTIME")
	for _, r := range view.Rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Ident, r.TimeZone, r.Date, r.Time)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Println(view.Label)
	return nil
}

func runPeopleDelete(cmd *cobra.Command, args []string) error {
	backend, _, err := newBackend()
	if err != nil {
		return err
	}
	if err := backend.DeletePerson(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to delete %q: %w", args[0], err)
	}
	fmt.Printf("Deleted: %s\n", args[0])
	return nil
}

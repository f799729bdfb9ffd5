package cmd

import (
	"errors"
	"fmt"
	"strings"

	"attendance-kiosk/internal/api"
	"attendance-kiosk/internal/config"
	"attendance-kiosk/internal/roster"

	"github.com/spf13/cobra"
)

var punchCmd = &cobra.Command{
	Use:   "punch",
	Short: "Record a manual attendance punch",
	Long: `Record attendance without a face image. Extra fields are forwarded to
the backend as-is, e.g. --field note=forgot-badge.`,
	RunE: runPunch,
}

func init() {
	rootCmd.AddCommand(punchCmd)

	punchCmd.Flags().String("ident", "", "Ident to punch (required)")
	punchCmd.Flags().StringArray("field", nil, "Extra form field as key=value (repeatable)")
	_ = punchCmd.MarkFlagRequired("ident")
}

func runPunch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	fields, err := parseFields(mustGetStringArray(cmd, "field"))
	if err != nil {
		return err
	}
	ident := strings.TrimSpace(mustGetString(cmd, "ident"))
	if ident == "" {
		return errors.New("--ident cannot be blank")
	}
	fields["ident"] = ident

	client := api.NewAPIClient(cfg.API.BaseURL, cfg.API.Timeout)
	client.SetSecretKey(cfg.API.SecretKey)

	res, err := api.NewBackend(client).ManualPunch(cmd.Context(), fields)
	if err != nil {
		var se *api.StatusError
		if errors.As(err, &se) {
			return fmt.Errorf("punch rejected (%d): %s", se.Code, strings.TrimSpace(se.Body))
		}
		return fmt.Errorf("punch failed: %w", err)
	}

	who := res.Ident
	if who == "" {
		who = ident
	}
	loc := roster.MustLocation(cfg.Kiosk.DisplayTimeZone)
	fmt.Printf("Punched: %s\n", who)
	fmt.Printf("Time:    %s\n", roster.FormatDateTime(res.PunchTime, loc))
	return nil
}

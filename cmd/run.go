package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"attendance-kiosk/internal/audio"
	"attendance-kiosk/internal/camera/gocvcam"
	"attendance-kiosk/internal/config"
	"attendance-kiosk/internal/kiosk"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the kiosk",
	Long: `Start the kiosk: open the enrollment camera, load the roster and serve
the local kiosk surface (HTTP + WebSocket) until interrupted.`,
	RunE: runKiosk,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("listen", "", "Address for the kiosk surface (overrides KIOSK_LISTEN)")
}

func runKiosk(cmd *cobra.Command, args []string) error {
	fmt.Println("╔════════════════════════════════════════════════════╗")
	fmt.Println("║  Attendance Kiosk                                  ║")
	fmt.Println("╚════════════════════════════════════════════════════╝")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if listen := mustGetString(cmd, "listen"); listen != "" {
		cfg.Kiosk.Listen = listen
	}
	if cfg.ConfigRef != "" {
		log.Printf("📋 Config overlay: %s", cfg.ConfigRef)
	}
	log.Printf("📋 Backend: %s", cfg.API.BaseURL)

	k, err := kiosk.New(cfg, gocvcam.New(), audio.Detect(cfg.Voice))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Println("✅ Kiosk running. Press Ctrl+C to exit.")
	return k.Run(ctx)
}

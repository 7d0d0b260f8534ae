package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/campusclub/gamify/internal/daemon"
	"github.com/campusclub/gamify/internal/logging"
)

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to listen on (overrides config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gamify API server",
	Long: `Start the HTTP API together with the leaderboard schedule, the
achievement expiry sweep, the event dispatcher and the health checker.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Override config from flags
	if serveHost != "" {
		cfg.API.Host = serveHost
	}
	if servePort > 0 {
		cfg.API.Port = servePort
	}

	log, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	d, err := daemon.NewWithConfig(cfg, log)
	if err != nil {
		return err
	}
	defer d.Close()

	return d.Serve(context.Background())
}

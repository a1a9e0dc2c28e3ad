package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/Warpcall/internal/config"
	"github.com/BioHazard786/Warpcall/internal/logging"
	"github.com/BioHazard786/Warpcall/internal/server"
	"github.com/BioHazard786/Warpcall/internal/ui"
)

var (
	flagPort    int
	flagTLSCert string
	flagTLSKey  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the signaling server",
	Long: `Run the websocket signaling server that pairs hosts and guests.

Examples:
  warpcall serve
  warpcall serve --port 9000
  warpcall serve --tls-cert cert.pem --tls-key key.pem`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logging.Init(slog.LevelInfo)

		cfg, err := loadConfig(config.Options{
			Port:    flagPort,
			TLSCert: flagTLSCert,
			TLSKey:  flagTLSKey,
		})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		opts := server.Options{
			Addr:     cfg.ListenAddr(),
			CertFile: cfg.TLSCert,
			KeyFile:  cfg.TLSKey,
		}
		scheme := "ws"
		if opts.TLS() {
			scheme = "wss"
		}
		ui.PrintSuccessf("%s Signaling server on %s://localhost%s/ws (Ctrl+C to stop)", ui.IconServer, scheme, opts.Addr)

		err = server.ListenAndServe(ctx, opts, slog.Default())
		if err != nil {
			return fmt.Errorf("signaling server: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVarP(&flagPort, "port", "p", 0, "Listen port (default 8080, 8443 with TLS)")
	serveCmd.Flags().StringVar(&flagTLSCert, "tls-cert", "", "TLS certificate file")
	serveCmd.Flags().StringVar(&flagTLSKey, "tls-key", "", "TLS private key file")
}

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/Warpcall/internal/config"
	"github.com/BioHazard786/Warpcall/internal/ui"
	"github.com/BioHazard786/Warpcall/internal/version"
)

var (
	flagConfig   string
	flagServer   string
	flagDomain   string
	flagSTUN     string
	flagTURN     string
	flagTURNUser string
	flagTURNPass string
	flagRelay    bool
	flagTimeout  time.Duration
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "warpcall",
	Short: "Peer-to-peer audio calls over WebRTC from the terminal",
	Long: `Warpcall places direct audio calls between two peers using WebRTC.
One side hosts a room, the other joins it; a small signaling server relays
the negotiation and the audio flows peer to peer.`,
	Version: version.Version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}

// loadConfig merges the persistent flags with extra into a Config.
func loadConfig(extra config.Options) (*config.Config, error) {
	extra.ConfigFile = flagConfig
	extra.ServerURL = flagServer
	extra.Domain = flagDomain
	extra.STUNServer = flagSTUN
	extra.TURNServer = flagTURN
	extra.TURNUser = flagTURNUser
	extra.TURNPass = flagTURNPass
	extra.ForceRelay = flagRelay
	extra.ConnectTimeout = flagTimeout

	cfg, err := config.Load(extra)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if cfg.ForceRelay && cfg.GetTURNServers() == nil {
		return nil, fmt.Errorf("cannot force relay mode without TURN server configured")
	}
	return cfg, nil
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flagConfig, "config", "c", "", "Path to a YAML config file (env "+config.ConfigEnv+")")
	pf.StringVar(&flagServer, "server", "", "Signaling websocket URL, e.g. ws://localhost:8080/ws")
	pf.StringVar(&flagDomain, "domain", "", "Signaling server domain")
	pf.StringVarP(&flagSTUN, "stun", "s", "", "Custom STUN server")
	pf.StringVarP(&flagTURN, "turn", "t", "", "Custom TURN server")
	pf.StringVar(&flagTURNUser, "turn-user", "", "TURN username")
	pf.StringVar(&flagTURNPass, "turn-pass", "", "TURN password")
	pf.BoolVarP(&flagRelay, "relay", "r", false, "Force relay mode")
	pf.DurationVar(&flagTimeout, "timeout", 0, "Signaling connect timeout (default 5s)")
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/Warpcall/internal/call"
	"github.com/BioHazard786/Warpcall/internal/config"
	"github.com/BioHazard786/Warpcall/internal/logging"
	"github.com/BioHazard786/Warpcall/internal/protocol"
	"github.com/BioHazard786/Warpcall/internal/roomid"
	"github.com/BioHazard786/Warpcall/internal/ui"
)

// maxRoomAttempts bounds retries when a generated room id is taken.
const maxRoomAttempts = 3

var (
	flagAudio         string
	flagRecord        string
	flagAllowInsecure bool
)

var hostCmd = &cobra.Command{
	Use:     "host [room-id]",
	Aliases: []string{"h"},
	Short:   "Create a room and wait for someone to join the call",
	Long: `Create a call room and wait for a guest. A memorable room id is
generated unless one is given.

Examples:
  warpcall host
  warpcall host team-standup
  warpcall host --audio greeting.ogg --record peer.ogg`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var room string
		if len(args) == 1 {
			id, err := roomid.Parse(args[0])
			if err != nil {
				return err
			}
			room = id
		}
		return hostCall(cmd.Context(), room)
	},
}

var joinCmd = &cobra.Command{
	Use:     "join <room-id|url>",
	Aliases: []string{"j"},
	Short:   "Join a call room",
	Long: `Join a room created by a host.

Examples:
  warpcall join calm-otter-harbor
  warpcall join https://warpcall.qzz.io/r/calm-otter-harbor`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		room, err := roomid.Parse(args[0])
		if err != nil {
			return err
		}
		return joinCall(cmd.Context(), room)
	},
}

func callConfig() (*config.Config, error) {
	logging.Init(slog.LevelError)
	return loadConfig(config.Options{
		AudioFile:     flagAudio,
		RecordPath:    flagRecord,
		AllowInsecure: flagAllowInsecure,
	})
}

func hostCall(ctx context.Context, room string) error {
	cfg, err := callConfig()
	if err != nil {
		return err
	}

	generated := room == ""
	for attempt := 1; ; attempt++ {
		if generated {
			if room, err = roomid.Generate(); err != nil {
				return err
			}
		}

		fmt.Println()
		ui.RenderRoomInfo(room, cfg.GetRoomLink(room))

		err = runCall(ctx, cfg, true, room)
		if generated && errors.Is(err, protocol.ErrRoomExists) && attempt < maxRoomAttempts {
			ui.PrintWarning("Room id already taken, picking another one")
			continue
		}
		return err
	}
}

func joinCall(ctx context.Context, room string) error {
	cfg, err := callConfig()
	if err != nil {
		return err
	}
	ui.PrintInfof("Joining room %s", room)
	return runCall(ctx, cfg, false, room)
}

// runCall runs one call attempt behind the call screen and prints the
// summary once it ends.
func runCall(parent context.Context, cfg *config.Config, host bool, room string) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	session := call.New(call.OptionsFromConfig(cfg, slog.Default()))
	screen := ui.NewCallScreen(session)
	screen.Start()

	summary, err := session.Run(ctx, host, room)
	screen.Wait(ui.NoticeTTL + time.Second)

	ui.RenderCallSummary(summary)
	if err != nil {
		return err
	}
	if summary.RecordPath != "" && summary.RecordedPackets > 0 {
		ui.PrintSuccessf("Remote audio saved to %s", summary.RecordPath)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(hostCmd, joinCmd)

	for _, c := range []*cobra.Command{hostCmd, joinCmd} {
		c.Flags().StringVarP(&flagAudio, "audio", "a", "", "Ogg/Opus file to send as the microphone (default silence)")
		c.Flags().StringVarP(&flagRecord, "record", "o", "", "Save the remote audio to this Ogg file")
		c.Flags().BoolVar(&flagAllowInsecure, "allow-insecure", false, "Allow audio over an unencrypted signaling connection")
	}
}

// Command clicontrol finds an Arduino on a serial port and relays lines
// between it and the terminal. Type quit to exit.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	serial "github.com/luhtfiimanal/arduino-clicontrol"
	"github.com/luhtfiimanal/arduino-clicontrol/internal/logger"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clicontrol",
		Short: "Control an Arduino from the command line",
		Long: `clicontrol scans the serial ports for a board whose USB manufacturer
contains "Arduino", opens it at 115200 baud and relays lines both ways:
every line typed is sent to the board, every line the board sends is
printed. Type quit to exit.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, err := logger.New(logger.DefaultConfig())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a := &app{
				lister: serial.NewSysfsLister(),
				open:   openSerial,
				in:     cmd.InOrStdin(),
				out:    cmd.OutOrStdout(),
				log:    log,
			}
			return a.run(ctx)
		},
	}
}

func openSerial(cfg serial.Config) (channel, error) {
	ch, err := serial.Open(cfg)
	if err != nil {
		return nil, err
	}
	return ch, nil
}

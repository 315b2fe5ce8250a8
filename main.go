package main

import (
	"log/slog"
	"os"

	"github.com/danielgtaylor/huma/v2/humacli"

	"github.com/smazurov/mjpegnode/cmd"
	"github.com/smazurov/mjpegnode/internal/config"
	"github.com/smazurov/mjpegnode/internal/logging"
)

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Load configuration automatically
		if err := config.LoadConfig(opts, cli.Root()); err != nil {
			slog.Warn("Failed to load config", "error", err)
		}

		logging.Initialize(opts.loggingConfig())
		logger := logging.GetLogger("main")

		// Built in OnStart so subcommands never validate daemon settings.
		var n *node
		hooks.OnStart(func() {
			var err error
			if n, err = newNode(opts); err != nil {
				logger.Error("Invalid configuration", "error", err)
				os.Exit(1)
			}
			if err := n.run(); err != nil {
				logger.Error("Failed to start", "error", err)
				n.shutdown()
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			if n != nil {
				n.shutdown()
			}
		})
	})

	cli.Root().Use = "mjpegnode"
	cli.Root().Short = "Remotely controllable MJPEG camera daemon"
	cli.Root().AddCommand(
		cmd.CreateStateCmd(),
		cmd.CreateSnapshotCmd(),
		cmd.CreateDevicesCmd(),
		cmd.CreateVersionCmd(),
	)

	cli.Run()
}

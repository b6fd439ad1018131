package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tonelab/supertonic/internal/server"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the synthesis HTTP API",
	Long: paragraph(fmt.Sprintf(
		"\nServe synthesis over HTTP. Requests are validated up front and run %s so the loaded model graphs never execute concurrently.",
		keyword("one at a time"),
	)),
	Example: paragraph("supertonic serve\nsupertonic serve --port 9000\ncurl -X POST localhost:8000/synthesize -d '{\"text\":\"Hello.\"}'"),
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("host") {
			cfg.Server.Host = serveHost
		}
		if cmd.Flags().Changed("port") {
			cfg.Server.Port = servePort
		}
		if err := cfg.Server.Validate(); err != nil {
			return err
		}
		logger := setupLog(cfg.Debug)

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		synth, err := newSynthesizer(cfg, logger.WithPrefix("tts"))
		if err != nil {
			return err
		}
		defer synth.Close() //nolint:errcheck

		// Warm the engine in the background; /health reports "initializing"
		// until the graphs are loaded.
		go func() {
			if err := synth.Init(ctx); err != nil && ctx.Err() == nil {
				logger.Error("engine initialization failed", "err", err)
			}
		}()

		defaults := cfg.Options()
		defaults.Language = cfg.Language
		srv := server.New(server.Config{
			HTTP:      cfg.Server,
			OutputDir: cfg.Output.Dir,
			Defaults:  defaults,
			Logger:    logger.WithPrefix("http"),
		}, synth)
		return srv.ListenAndServe(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "listen address")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port")
}

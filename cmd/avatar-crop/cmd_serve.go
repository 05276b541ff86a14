package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/menta2k/avatar-cropper/pkg/server"
)

var serveListen string

// serveCmd runs the crop HTTP service
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the crop HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveListen, "listen", "l", "", "Listen address (default: server.listen)")
}

func runServe(cmd *cobra.Command, args []string) error {
	opts, err := cfg.WidgetOptions(logger)
	if err != nil {
		return err
	}
	srvCfg := cfg.ServerConfig()
	if serveListen != "" {
		srvCfg.Listen = serveListen
	}

	s, err := server.New(srvCfg, opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return s.Run(ctx)
}

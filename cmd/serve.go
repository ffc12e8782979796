package main

import (
	"github.com/mohammad-safakhou/gamescout/config"
	srv "github.com/mohammad-safakhou/gamescout/internal/server"
	"github.com/spf13/cobra"
)

func serveCMD() *cobra.Command {
	var cfgPath string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server with the alert scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)

			return srv.Run(cfg)
		},
	}
	serve.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return serve
}

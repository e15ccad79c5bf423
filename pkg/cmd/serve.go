package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kubedeck/kubedeck/pkg/server"
)

func NewServeCommand() *cobra.Command {
	var listenAddress string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the loopback bridge the desktop UI talks to",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			b, err := buildBroker(rt)
			if err != nil {
				return err
			}
			cfg := *rt.cfg
			if listenAddress != "" {
				cfg.Server.ListenAddress = listenAddress
			}
			return server.New(rt.log, cfg, b).Run()
		},
	}

	cmd.Flags().StringVar(&listenAddress, "listen", "", "Listen address override")
	return cmd
}

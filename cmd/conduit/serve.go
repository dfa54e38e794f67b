package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conduit-run/conduit/internal/httpapi"
	"github.com/conduit-run/conduit/internal/registry"
)

func newServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP driver (POST /run, GET /schema, GET /health)",
		RunE: func(cmd *cobra.Command, args []string) error {
			srv := &httpapi.Server{Registry: registry.Default}
			addr := fmt.Sprintf("%s:%d", host, port)
			return srv.Router().Run(addr)
		},
	}

	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "bind host")
	cmd.Flags().IntVar(&port, "port", 8080, "bind port")
	return cmd
}

package main

import (
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/ticketport/ticketport/internal/api"
	"github.com/ticketport/ticketport/internal/config"
	"github.com/ticketport/ticketport/internal/debug"
	"github.com/ticketport/ticketport/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the import API over HTTP",
	Long: `Serve the import API:

  POST /api/import/tickets?format=json|jsonl
  POST /api/import/users
  POST /api/import/fields
  POST /api/import/sequence/reset
  GET  /healthz

Requests authenticate with a bearer token listed under server.admin-tokens.
Binding to a non-loopback address requires --allow-remote.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if cmd.Flags().Changed("addr") {
			addr, _ := cmd.Flags().GetString("addr")
			config.Set("server.addr", addr)
		}
		if cmd.Flags().Changed("allow-remote") {
			allow, _ := cmd.Flags().GetBool("allow-remote")
			config.Set("server.allow-remote", allow)
		}
		log := debug.Logger()

		tokens := config.GetStringMapString("server.admin-tokens")
		if len(tokens) == 0 {
			log.Warn("server.admin-tokens is empty; every import request will be rejected")
		}

		s := openStore()
		apiHandler, err := api.NewHandler(api.Config{
			Importer:       newImporter(s),
			Store:          s,
			AdminTokens:    tokens,
			MaxUploadBytes: config.GetInt64("import.max-upload-bytes"),
			Logger:         log,
		})
		if err != nil {
			FatalError("%v", err)
		}
		handler, err := server.NewHandler(apiHandler)
		if err != nil {
			FatalError("%v", err)
		}

		config.WatchConfig(func(e fsnotify.Event) {
			log.Warn("config file changed; restart to apply", "file", e.Name, "op", e.Op.String())
		})

		err = server.Serve(rootCtx, server.Config{
			Addr:          config.GetString("server.addr"),
			AllowRemote:   config.GetBool("server.allow-remote"),
			ReadTimeout:   config.GetDuration("server.read-timeout"),
			ImportTimeout: config.GetDuration("server.import-timeout"),
			Logger:        log,
		}, handler)
		if err != nil {
			FatalError("%v", err)
		}
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (default: server.addr, 127.0.0.1:8484)")
	serveCmd.Flags().Bool("allow-remote", false, "Allow binding to a non-loopback address")
	rootCmd.AddCommand(serveCmd)
}

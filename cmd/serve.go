package cmd

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/pushclaw/internal/channels/telegram"
	"github.com/nextlevelbuilder/pushclaw/internal/config"
	"github.com/nextlevelbuilder/pushclaw/internal/dispatch"
	"github.com/nextlevelbuilder/pushclaw/internal/push"
	"github.com/nextlevelbuilder/pushclaw/internal/registry"
	"github.com/nextlevelbuilder/pushclaw/internal/relay"
	"github.com/nextlevelbuilder/pushclaw/internal/store"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook relay server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if err := cfg.Relay.Validate(); err != nil {
				return err
			}

			kv, err := store.Open(cfg.Relay.Store)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}

			creds, err := push.LoadCredentials(cfg.Relay.CredentialsFile)
			if err != nil {
				return err
			}

			channel, err := telegram.New(cfg.Relay.BotToken)
			if err != nil {
				return err
			}

			dir := registry.New(kv)
			dispatcher := dispatch.New(dir, push.NewClient(creds), channel)
			server := relay.NewServer(cfg.Relay.BotToken, channel, dir, dispatcher, cfg.Relay.RatePerMinute)

			slog.Info("relay listening", "addr", cfg.Relay.Listen, "store", cfg.Relay.Store.Backend)
			return http.ListenAndServe(cfg.Relay.Listen, server.Handler())
		},
	}
}

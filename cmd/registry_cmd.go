package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/pushclaw/internal/config"
	"github.com/nextlevelbuilder/pushclaw/internal/registry"
	"github.com/nextlevelbuilder/pushclaw/internal/store"
)

func registryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Inspect and maintain device registrations",
	}

	cmd.AddCommand(registryPendingCmd())
	cmd.AddCommand(registryTokensCmd())
	cmd.AddCommand(registryEvictCmd())

	return cmd
}

func openDirectory() (*registry.Directory, string, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, "", err
	}
	if cfg.Relay.BotToken == "" {
		return nil, "", fmt.Errorf("bot_token is required")
	}
	kv, err := store.Open(cfg.Relay.Store)
	if err != nil {
		return nil, "", fmt.Errorf("open store: %w", err)
	}
	return registry.New(kv), cfg.Relay.BotToken, nil
}

func registryPendingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List nicknames with pending registrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, scope, err := openDirectory()
			if err != nil {
				return err
			}
			nicks, err := dir.PendingNicknames(cmd.Context(), scope)
			if err != nil {
				return err
			}
			if len(nicks) == 0 {
				fmt.Println("No pending registrations.")
				return nil
			}
			for _, n := range nicks {
				fmt.Println(n)
			}
			return nil
		},
	}
}

func registryTokensCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tokens <chat-id>",
		Short: "Show the endpoint tokens registered for a chat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, scope, err := openDirectory()
			if err != nil {
				return err
			}
			tokens := dir.TokensFor(cmd.Context(), scope, args[0])
			if len(tokens) == 0 {
				fmt.Println("No tokens registered.")
				return nil
			}
			for _, t := range tokens {
				fmt.Println(t)
			}
			return nil
		},
	}
}

func registryEvictCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "evict <chat-id> <token>",
		Short: "Remove an endpoint token from a chat's registration",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, scope, err := openDirectory()
			if err != nil {
				return err
			}
			if err := dir.EvictToken(cmd.Context(), scope, args[0], args[1]); err != nil {
				return err
			}
			fmt.Println("Evicted.")
			return nil
		},
	}
}

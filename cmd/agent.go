package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/pushclaw/internal/agent"
	"github.com/nextlevelbuilder/pushclaw/internal/channels/telegram"
	"github.com/nextlevelbuilder/pushclaw/internal/command"
	"github.com/nextlevelbuilder/pushclaw/internal/config"
	"github.com/nextlevelbuilder/pushclaw/internal/store"
)

func agentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Run and inspect the device-side agent",
	}

	cmd.AddCommand(agentRunCmd())
	cmd.AddCommand(agentHistoryCmd())
	cmd.AddCommand(agentAppsCmd())

	return cmd
}

// hostCapturer stands in for the platform capture layer on hosts without
// one. Actions are acknowledged in the log and nothing else.
type hostCapturer struct{}

func (hostCapturer) Capture(_ context.Context, cmd *command.Command) error {
	slog.Info("capture action received", "type", cmd.Kind, "chat_id", cmd.ChatID)
	return nil
}

func agentRunCmd() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the agent with a local payload endpoint",
		Long: `Run the agent core against the local store. Push payloads are
accepted as JSON string maps on POST /payload, the shape the platform
push receiver hands over.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cfg.Agent.BotToken == "" {
				return fmt.Errorf("agent: bot_token is required")
			}

			kv, err := store.Open(cfg.Agent.Store)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}

			channel, err := telegram.New(cfg.Agent.BotToken)
			if err != nil {
				return err
			}

			ag := agent.New(kv, channel, hostCapturer{}, nil, nil, nil)
			ag.OnListenerConnected(cmd.Context())

			mux := http.NewServeMux()
			mux.HandleFunc("/payload", func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
					return
				}
				var payload map[string]string
				if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&payload); err != nil {
					http.Error(w, "Invalid JSON", http.StatusBadRequest)
					return
				}
				ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
				defer cancel()
				if err := ag.HandlePayload(ctx, payload); err != nil {
					slog.Error("payload handling failed", "error", err)
				}
				w.Write([]byte("OK"))
			})

			slog.Info("agent listening", "addr", listen, "store", cfg.Agent.Store.Backend)
			return http.ListenAndServe(listen, mux)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "127.0.0.1:8081", "payload endpoint bind address")
	return cmd
}

func agentHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <package>",
		Short: "Show stored notifications for an app",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kv, err := openAgentStore()
			if err != nil {
				return err
			}
			ag := agent.New(kv, nil, nil, nil, nil, nil)
			notis := ag.Notifications(cmd.Context(), args[0])
			if len(notis) == 0 {
				fmt.Println("No notifications stored.")
				return nil
			}
			for i, n := range notis {
				fmt.Printf("%d. %s\n   %s\n   %s\n", i+1, n.Title, n.Text,
					time.UnixMilli(n.Time).Format(time.RFC3339))
			}
			return nil
		},
	}
}

func agentAppsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apps",
		Short: "List apps allowed for notification relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			kv, err := openAgentStore()
			if err != nil {
				return err
			}
			ag := agent.New(kv, nil, nil, nil, nil, nil)
			apps := ag.AllowedApps(cmd.Context())
			if len(apps) == 0 {
				fmt.Println("No apps allowed.")
				return nil
			}
			for _, pkg := range apps {
				fmt.Println(pkg)
			}
			return nil
		},
	}
}

func openAgentStore() (store.KV, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	kv, err := store.Open(cfg.Agent.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return kv, nil
}

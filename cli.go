package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/Chative-core-poc-v1/orchestrator/internal/agent/model"
	logx "github.com/Chative-core-poc-v1/orchestrator/pkg/logger"
)

const appName = "orchestrator"

func newRootCommand() *cobra.Command {
	var metricsAddr string

	root := &cobra.Command{
		Use:   appName,
		Short: "Resilient conversational orchestration core",
		Long: strings.TrimSpace(`orchestrator routes chat messages through the conversation graph
(intent classification, history trimming, response stages) with retries,
backoff and circuit breaking around every model, tool and media call.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if metricsAddr == "" {
				return nil
			}
			startMetricsServer(cmd.Context(), metricsAddr)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Help()
			return fmt.Errorf("a subcommand is required")
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")

	root.AddCommand(newTurnCommand())
	root.AddCommand(newChatCommand())
	return root
}

func startMetricsServer(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Error().Err(err).Str("addr", addr).Msg("Metrics server stopped")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	logx.Info().Str("addr", addr).Msg("Serving metrics")
}

func newTurnCommand() *cobra.Command {
	var (
		conversationID string
		author         string
		asJSON         bool
	)

	cmd := &cobra.Command{
		Use:   "turn [message]",
		Short: "Send one message and print the reply",
		Example: strings.Join([]string{
			`  orchestrator turn "what's the date in Tokyo?"`,
			`  orchestrator turn --conversation demo --json "draw a red fox"`,
		}, "\n"),
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			resp := a.orchestrator.HandleTurn(ctx, conversationID, author, strings.Join(args, " "))
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}
			printResponse(cmd.OutOrStdout(), resp)
			return nil
		},
	}

	cmd.Flags().StringVarP(&conversationID, "conversation", "c", "cli:default", "Conversation id for continuity")
	cmd.Flags().StringVarP(&author, "author", "a", "user", "Author label of the message")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full response as JSON")
	return cmd
}

func newChatCommand() *cobra.Command {
	var (
		conversationID string
		author         string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Long:  "Chat with the orchestrator. Type /reset to clear the conversation, /new for a fresh one, exit to quit.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if conversationID == "" {
				conversationID = "cli:" + uuid.NewString()
			}
			return interactive(ctx, a, conversationID, author, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&conversationID, "conversation", "c", "", "Conversation id (random when empty)")
	cmd.Flags().StringVarP(&author, "author", "a", "user", "Author label of your messages")
	return cmd
}

func interactive(ctx context.Context, a *app, conversationID, author string, out io.Writer) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "You: ",
		HistoryFile:     filepath.Join(os.TempDir(), ".orchestrator_history"),
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("initialise readline: %w", err)
	}
	defer rl.Close()

	fmt.Fprintf(out, "Conversation %s (Ctrl+C to exit)\n\n", conversationID)
	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				fmt.Fprintln(out, "\nGoodbye!")
				return nil
			}
			return err
		}

		input := strings.TrimSpace(line)
		switch input {
		case "":
			continue
		case "exit", "quit":
			fmt.Fprintln(out, "Goodbye!")
			return nil
		case "/reset":
			if err := a.orchestrator.Reset(ctx, conversationID); err != nil {
				fmt.Fprintf(out, "Could not reset conversation: %v\n\n", err)
				continue
			}
			if err := a.media.End(ctx, author); err != nil {
				logx.Warn().Err(err).Str("author", author).Msg("Failed to end media session")
			}
			fmt.Fprintln(out, "Conversation cleared.")
			fmt.Fprintln(out)
			continue
		case "/new":
			conversationID = "cli:" + uuid.NewString()
			fmt.Fprintf(out, "Started conversation %s\n\n", conversationID)
			continue
		}

		resp := a.orchestrator.HandleTurn(ctx, conversationID, author, input)
		fmt.Fprintln(out)
		printResponse(out, resp)
		fmt.Fprintln(out)
		if ctx.Err() != nil {
			return nil
		}
	}
}

func printResponse(w io.Writer, resp model.TurnResponse) {
	fmt.Fprintf(w, "%s: %s\n", appName, resp.Content)
	if resp.Latex != "" {
		fmt.Fprintf(w, "\n[latex]\n%s\n", resp.Latex)
	}
	for _, img := range resp.Images {
		url := img.URL
		if strings.HasPrefix(url, "data:") {
			url = "(inline image data)"
		}
		fmt.Fprintf(w, "[image] %s %s\n", img.Title, url)
	}
	if resp.CostUSD > 0 {
		fmt.Fprintf(w, "(%s turn, ~$%.6f)\n", resp.ResponseType, resp.CostUSD)
	}
}

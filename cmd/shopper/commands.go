package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/shopper/internal/api"
	"github.com/kalambet/shopper/internal/config"
	"github.com/kalambet/shopper/internal/metrics"
	"github.com/kalambet/shopper/internal/shopping"
)

// --- search ---

var searchCmd = &cobra.Command{
	Use:   "search <query...>",
	Short: "Search for a product and print the offers found",
	Long: `Search for a product through the running shopper server.

Examples:
  shopper search wireless mouse
  shopper search "Sony WH-1000XM5" --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query, err := shopping.NormalizeQuery(strings.Join(args, " "))
		if err != nil {
			return err
		}
		asJSON, _ := cmd.Flags().GetBool("json")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		if !asJSON {
			printStep("Searching across e-commerce sites...")
		}
		result, err := client.search(cmd.Context(), query)
		if err != nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}
		printResult(cmd.OutOrStdout(), result)
		return nil
	},
}

func init() {
	searchCmd.Flags().Bool("json", false, "print the raw result as JSON")
}

// --- chat ---

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive shopping conversation",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return runChat(cmd.Context(), client, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func runChat(ctx context.Context, client *apiClient, in io.Reader, out io.Writer) error {
	snap, err := client.createSession(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, colorize(colorBold, "Find the Best Deals Online"))
	fmt.Fprintln(out, "Search for any product and I'll compare prices, ratings, and features across multiple e-commerce sites.")
	fmt.Fprintln(out, colorize(colorGray, "Type a product to search. Ctrl-D quits."))

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, colorize(colorCyan, "> "))
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		result, err := chatTurn(ctx, client, snap.ID, text)
		var se *statusError
		switch {
		case err == nil:
			fmt.Fprintln(out)
			printResult(out, result)
			fmt.Fprintln(out)
		case errors.As(err, &se) && se.Code == http.StatusConflict:
			printWarning("still searching, please wait")
		default:
			return err
		}
	}
}

// chatTurn submits text to the session and blocks until the reply to it
// arrives. The server bounds each wait, so it polls until the session is idle
// and reads only turns appended after the submission.
func chatTurn(ctx context.Context, client *apiClient, sessionID, text string) (shopping.SearchResult, error) {
	sent, err := client.sendMessage(ctx, sessionID, text)
	if err != nil {
		return shopping.SearchResult{}, err
	}
	printStep("Searching across e-commerce sites...")

	for {
		snap, err := client.waitSession(ctx, sessionID)
		if err != nil {
			return shopping.SearchResult{}, err
		}
		if snap.State == sessionIdle {
			result, ok := snap.resultAfter(len(sent.Turns))
			if !ok {
				return shopping.SearchResult{}, fmt.Errorf("session %s has no reply", sessionID)
			}
			return result, nil
		}
		if err := ctx.Err(); err != nil {
			return shopping.SearchResult{}, err
		}
	}
}

// --- mcp ---

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the product search tool over MCP (stdio)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		setupLogging(cfg)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		store := openImageCache(cfg)
		if store != nil {
			defer store.Close()
		}

		searcher := newSearcher(cfg, store, metrics.New())
		mcpSrv := api.NewMCPServer(searcher, version)

		stdioSrv := server.NewStdioServer(mcpSrv)
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("MCP stdio server: %w", err)
		}
		return nil
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s %s\n", colorize(colorBold, k.Key), k.Value, colorize(colorGray, "("+k.EnvVar+")"))
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value. Valid keys: " + strings.Join(config.ValidKeys(), ", "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

// Vendora is a conversational commerce assistant for Telegram.
//
// It bridges Telegram chats to a tool-calling chat model that drives a
// vendor commerce backend: vendors authenticate, create stores and
// products, and manage their storefront entirely through chat.
// Configuration is loaded from a single YAML file discovered
// automatically (see [config.DefaultSearchPaths]).
//
// Usage:
//
//	vendora serve            Start the bot and status server
//	vendora ask <question>   Ask a single question (for testing)
//	vendora version          Print version and build information
//	vendora -o json version  Output version information as JSON
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/vendora-ai/vendora/internal/agent"
	"github.com/vendora-ai/vendora/internal/buildinfo"
	"github.com/vendora-ai/vendora/internal/config"
	"github.com/vendora-ai/vendora/internal/imagegen"
	"github.com/vendora-ai/vendora/internal/llm"
	"github.com/vendora-ai/vendora/internal/prompts"
	"github.com/vendora-ai/vendora/internal/status"
	"github.com/vendora-ai/vendora/internal/store"
	"github.com/vendora-ai/vendora/internal/telegram"
	"github.com/vendora-ai/vendora/internal/tools"
	"github.com/vendora-ai/vendora/internal/vendorapi"
)

// main is intentionally minimal. It constructs the OS-level environment
// (context, stdio, argv) and delegates immediately to [run]. This keeps
// os.Exit, os.Stdout, and os.Args out of the application logic so that
// the full startup-to-shutdown lifecycle can be driven from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point for the vendora command. All OS-level
// dependencies are injected as parameters so tests can drive the full
// lifecycle. Arguments are parsed by hand; the flag package relies on
// package-level globals that interfere with parallel tests.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	var configPath string
	var outputFmt string // "text" (default) or "json"
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			outputFmt = strings.TrimPrefix(args[i], "-o=")
		case strings.HasPrefix(args[i], "--output="):
			outputFmt = strings.TrimPrefix(args[i], "--output=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	if outputFmt == "" {
		outputFmt = "text"
	}
	if outputFmt != "text" && outputFmt != "json" {
		return fmt.Errorf("unknown output format: %q (expected text or json)", outputFmt)
	}

	switch command {
	case "serve":
		return runServe(ctx, stdout, configPath)
	case "ask":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: vendora ask <question>")
		}
		return runAsk(ctx, stdout, configPath, cmdArgs)
	case "version":
		return runVersion(stdout, outputFmt)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// runVersion prints build metadata in the requested output format.
func runVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.Info()
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintln(w, buildinfo.String())
	for _, k := range []string{"version", "git_commit", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

// printUsage writes the top-level help text to w.
func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "Vendora - Conversational Commerce Assistant")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: vendora [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve        Start the Telegram bot and status server")
	fmt.Fprintln(w, "  ask          Ask a single question (for testing)")
	fmt.Fprintln(w, "  version      Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format: text (default) or json")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config search order:")
	fmt.Fprintln(w, "  ./config.yaml, ~/.config/vendora/config.yaml, /etc/vendora/config.yaml")
	return nil
}

// runAsk handles the "vendora ask <question>" subcommand. It boots a
// minimal agent (in-memory SQLite store, no Telegram, no image
// polling) and processes a single question, printing the response to
// stdout. Useful for smoke tests without starting the bot.
func runAsk(ctx context.Context, stdout io.Writer, configPath string, args []string) error {
	logger := newLogger(stdout, slog.LevelWarn, "text")

	question := strings.Join(args, " ")

	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	prompt, err := prompts.System(cfg.Agent.PromptFile)
	if err != nil {
		return fmt.Errorf("load system prompt: %w", err)
	}

	st, err := store.Open("file::memory:?cache=shared")
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	backend := vendorapi.NewClient(cfg.VendorAPI.BaseURL, cfg.VendorAPI.StorefrontHost, logger)
	registry := tools.NewRegistry(backend, nil, logger)
	llmClient := llm.NewOpenRouterClient(cfg.OpenRouter.BaseURL, cfg.OpenRouter.APIKey, logger)

	loop := agent.NewLoop(agent.LoopConfig{
		Store:        st,
		Client:       llmClient,
		Registry:     registry,
		Logger:       logger,
		Model:        cfg.OpenRouter.Model,
		SystemPrompt: prompt,
		MaxRounds:    cfg.Agent.MaxToolRounds,
	})

	response, err := loop.Run(ctx, "cli-test", question)
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}

	fmt.Fprintln(stdout, response)
	return nil
}

// runServe handles the "vendora serve" subcommand. It is the primary
// operating mode: loads config, opens the conversation store, wires
// the commerce backend and tool registry into the agent loop, starts
// the Telegram bridge and the status server, and blocks until a
// shutdown signal arrives.
//
// The shutdown sequence is:
//  1. SIGINT or SIGTERM cancels the context
//  2. The Telegram poll loop and bridge drain and stop
//  3. The image poll manager cancels its watchers
//  4. The status server drains in-flight requests
//  5. The store is closed via defer
func runServe(ctx context.Context, stdout io.Writer, configPath string) error {
	logger := newLogger(stdout, slog.LevelInfo, "text")
	logger.Info("starting Vendora",
		"version", buildinfo.Version,
		"commit", buildinfo.GitCommit,
		"built", buildinfo.BuildTime,
	)

	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	// Reconfigure the logger now that the desired level and format are
	// known. Everything before this point logs at Info in text format.
	{
		level := slog.LevelInfo
		if cfg.LogLevel != "" {
			// Already validated by config.Validate.
			level, _ = config.ParseLogLevel(cfg.LogLevel)
		}
		logger = newLogger(stdout, level, cfg.LogFormat)
	}

	logger.Info("config loaded",
		"path", cfgPath,
		"port", cfg.Listen.Port,
		"model", cfg.OpenRouter.Model,
		"storage", cfg.Storage.DSN,
	)

	prompt, err := prompts.System(cfg.Agent.PromptFile)
	if err != nil {
		return fmt.Errorf("load system prompt: %w", err)
	}

	st, err := store.Open(cfg.Storage.DSN)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	// NotifyContext wraps the parent context so that SIGINT/SIGTERM
	// trigger graceful shutdown everywhere.
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	backend := vendorapi.NewClient(cfg.VendorAPI.BaseURL, cfg.VendorAPI.StorefrontHost, logger)
	llmClient := llm.NewOpenRouterClient(cfg.OpenRouter.BaseURL, cfg.OpenRouter.APIKey, logger)

	tgClient := telegram.NewClient(
		cfg.Telegram.APIBase,
		cfg.Telegram.BotToken,
		time.Duration(cfg.Telegram.PollTimeoutSec)*time.Second,
		logger,
	)
	notifier := telegram.NewNotifier(tgClient)

	images := imagegen.NewManager(backend, notifier, logger)
	defer images.Close()

	registry := tools.NewRegistry(backend, images, logger)
	logger.Info("tool registry ready", "tools", len(registry.Names()))

	var filter *agent.ReplyFilter
	if len(cfg.Agent.ReplyDenyPrefixes) > 0 {
		filter = agent.NewReplyFilter(cfg.Agent.ReplyDenyPrefixes)
	}

	loop := agent.NewLoop(agent.LoopConfig{
		Store:        st,
		Client:       llmClient,
		Registry:     registry,
		Logger:       logger,
		Model:        cfg.OpenRouter.Model,
		SystemPrompt: prompt,
		MaxRounds:    cfg.Agent.MaxToolRounds,
		Filter:       filter,
		Notifier:     notifier,
	})

	bridge := telegram.NewBridge(telegram.BridgeConfig{
		Client:    tgClient,
		Runner:    loop,
		Logger:    logger,
		RateLimit: cfg.Telegram.RateLimit,
	})

	statusSrv := status.NewServer(
		fmt.Sprintf("%s:%d", cfg.Listen.Address, cfg.Listen.Port),
		st,
		cfg.OpenRouter.Model,
		logger,
	)
	serverErr := make(chan error, 1)
	statusSrv.Start(serverErr)

	tgClient.Start(ctx)

	bridgeDone := make(chan struct{})
	go func() {
		defer close(bridgeDone)
		bridge.Start(ctx)
	}()

	logger.Info("Vendora running", "model", cfg.OpenRouter.Model)

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		cancel()
		<-bridgeDone
		return fmt.Errorf("status server: %w", err)
	}

	<-bridgeDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := statusSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("status server shutdown failed", "error", err)
	}

	logger.Info("Vendora stopped")
	return nil
}

// newLogger builds a structured logger writing to w.
func newLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// loadConfig locates and parses the YAML configuration file. If
// explicit is non-empty, that exact path is used (and must exist).
// Otherwise [config.FindConfig] searches the default locations.
func loadConfig(explicit string) (*config.Config, string, error) {
	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		return nil, "", err
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	return cfg, cfgPath, nil
}

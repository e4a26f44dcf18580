package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/foodrescue-nyc/coordinator/internal/api"
	"github.com/foodrescue-nyc/coordinator/internal/assistant"
	"github.com/foodrescue-nyc/coordinator/internal/config"
	"github.com/foodrescue-nyc/coordinator/internal/genai"
	"github.com/foodrescue-nyc/coordinator/internal/mcpserver"
	"github.com/foodrescue-nyc/coordinator/internal/notify"
	"github.com/foodrescue-nyc/coordinator/internal/scheduling"
	"github.com/foodrescue-nyc/coordinator/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the coordinator server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		mcp, _ := cmd.Flags().GetBool("mcp")
		return runServer(mcp)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running coordinator server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show coordinator status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().Bool("mcp", false, "also serve MCP tools on stdio")
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "coordinator.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func runServer(withMCP bool) error {
	fmt.Fprintf(os.Stderr, "coordinator version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	})))

	// Refuse to start a second instance. The health probe catches a live
	// server even when the PID file went missing.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/healthz", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("coordinator is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("coordinator is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open storage.
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	// Email goes out only when SMTP is configured; otherwise sends are logged.
	var sender notify.Sender = notify.LogSender{}
	if cfg.SMTP.Host != "" {
		sender = &notify.SMTPSender{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			From:     cfg.SMTP.From,
			Password: cfg.SMTP.Password,
		}
		slog.Info("email notifications enabled", "smtp_host", cfg.SMTP.Host, "from", cfg.SMTP.From)
	} else {
		slog.Info("email notifications disabled (no SMTP host configured)")
	}

	engine := scheduling.NewEngine(store, sender)
	reporter := scheduling.NewReporter(store)

	// The chat assistant needs a Gemini API key; everything else works without it.
	var chat *assistant.Assistant
	if cfg.GenAI.APIKey != "" {
		chat = assistant.New(genai.NewClient(cfg.GenAI.APIKey, cfg.GenAI.Model), store, engine, reporter)
		slog.Info("chat assistant enabled", "model", cfg.GenAI.Model)
	} else {
		slog.Info("chat assistant disabled (no Gemini API key configured)")
	}

	handler := api.NewHandler(api.Deps{
		Store:    store,
		Engine:   engine,
		Reporter: reporter,
		Chat:     chat,
		Notifier: sender,
		Token:    cfg.Server.APIToken,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	// Optionally expose the scheduling tools over MCP (stdio transport).
	if withMCP {
		mcpSrv := mcpserver.NewServer(mcpserver.Deps{
			Store:    store,
			Engine:   engine,
			Reporter: reporter,
		})
		stdioSrv := server.NewStdioServer(mcpSrv)
		go func() {
			if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
		}()
		slog.Info("MCP server started (stdio transport)")
	}

	// Start server in a goroutine.
	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "coordinator listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for signal or server error.
	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Graceful shutdown with timeout.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("coordinator is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop coordinator (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to coordinator (PID %d)", pid)
	return nil
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		// Still show partial status even if config fails.
		printError("config error: %v", err)
		return nil
	}

	healthURL := fmt.Sprintf("http://127.0.0.1:%d/healthz", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	running := false
	resp, err := client.Get(healthURL)
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == 200 {
			running = true
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	if cfg.GenAI.APIKey != "" {
		printStatus("Chat assistant", "enabled (%s)", cfg.GenAI.Model)
	} else {
		printStatus("Chat assistant", "disabled (no API key)")
	}
	if cfg.SMTP.Host != "" {
		printStatus("Email", "enabled via %s", cfg.SMTP.Host)
	} else {
		printStatus("Email", "disabled")
	}

	// Show record counts if the server is up.
	if running {
		c, err := newAPIClient()
		if err == nil {
			if resp, err := c.get(ctx, "/api/db-state"); err == nil {
				var state struct {
					Volunteers    []struct{} `json:"volunteers"`
					Deliveries    []struct{} `json:"deliveries"`
					Routes        []struct{} `json:"routes"`
					Organizations []struct{} `json:"organizations"`
				}
				if _, err := decodeAPI(resp, &state); err == nil {
					printStatus("Volunteers", "%d", len(state.Volunteers))
					printStatus("Deliveries", "%d", len(state.Deliveries))
					printStatus("Routes", "%d", len(state.Routes))
					printStatus("Organizations", "%d", len(state.Organizations))
				}
			}
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

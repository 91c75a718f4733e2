// ABOUTME: Entry point for the hivemind server and operator CLI
// ABOUTME: Subcommands: serve, init, invite, health

package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/hivemind-ai/hivemind/internal/api"
	"github.com/hivemind-ai/hivemind/internal/auth"
	"github.com/hivemind-ai/hivemind/internal/config"
	"github.com/hivemind-ai/hivemind/internal/dedupe"
	"github.com/hivemind-ai/hivemind/internal/store"
	"github.com/hivemind-ai/hivemind/internal/token"
)

// version is overridden via -ldflags at build time.
var version = "dev"

const banner = `
 _     _                     _           _
| |__ (_)_   _____ _ __ ___ (_)_ __   __| |
| '_ \| \ \ / / _ \ '_ ' _ \| | '_ \ / _' |
| | | | |\ V /  __/ | | | | | | | | | (_| |
|_| |_|_| \_/ \___|_| |_| |_|_|_| |_|\__,_|
`

// getConfigPath returns the path to the hivemind config file.
// Priority: HIVEMIND_CONFIG env var > XDG_CONFIG_HOME/hivemind/hivemind.yaml > ~/.config/hivemind/hivemind.yaml
func getConfigPath() string {
	if envPath := os.Getenv("HIVEMIND_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "hivemind.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "hivemind", "hivemind.yaml")
}

// getDataPath returns the path to the hivemind data directory.
// Priority: XDG_DATA_HOME/hivemind > ~/.local/share/hivemind
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "hivemind")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: hivemind <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve             Start the hivemind server")
		fmt.Println("  init              Create a new config file interactively")
		fmt.Println("  invite [--code X] Mint a single-use operator invite code")
		fmt.Println("  health            Check server health")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "invite":
		err = runInvite(ctx)
	case "health":
		err = runHealth(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads the config file, falling back to defaults when none
// exists yet so a bare "hivemind serve" works out of the box.
func loadConfig() (*config.Config, string, error) {
	configPath := getConfigPath()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := config.Default()
		cfg.Database.Path = filepath.Join(getDataPath(), "hivemind.db")
		return cfg, "(defaults)", nil
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, "", fmt.Errorf("loading config: %w", err)
	}
	return cfg, configPath, nil
}

func runServe(ctx context.Context) error {
	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, configPath, err := loadConfig()
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:   %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:     %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Base URL: %s\n", cfg.Server.BaseURL)
	green.Print("    ▶ ")
	fmt.Printf("Database: %s\n", cfg.Database.Path)
	fmt.Println()

	logger.Info("starting hivemind",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"base_url", cfg.Server.BaseURL,
	)

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer s.Close()

	sessions := auth.NewSessions(s, cfg.Auth.SessionTTL)
	links := auth.NewMagicLinks(s, sessions, cfg.Server.BaseURL, cfg.Auth.LoginTokenTTL)
	keys := auth.NewAgentKeys(s)
	ledger := dedupe.NewLedger(s, cfg.Auth.IdempotencyTTL)

	go runSweeper(ctx, s, logger)

	server := api.NewServer(cfg, s, sessions, links, keys, ledger)
	return server.Run(ctx)
}

// runSweeper periodically clears expired sessions and login tokens.
// Expired rows are already invisible to reads; this just keeps the
// tables from growing without bound.
func runSweeper(ctx context.Context, s *store.SQLiteStore, logger *slog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		if err := s.DeleteExpiredSessions(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("sweeping expired sessions failed", "error", err)
		}
		if err := s.DeleteExpiredLoginTokens(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("sweeping expired login tokens failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// runInvite mints a single-use invite code directly against the database.
// Invites are the only way new operators get in, and only someone with
// shell access to the server can create one.
func runInvite(ctx context.Context) error {
	var code string
	args := os.Args[2:]
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--code" || arg == "-c":
			if i+1 >= len(args) {
				return fmt.Errorf("--code requires a value")
			}
			code = args[i+1]
			i++
		case strings.HasPrefix(arg, "--code="):
			code = strings.TrimPrefix(arg, "--code=")
		case strings.HasPrefix(arg, "-"):
			return fmt.Errorf("unknown flag: %s", arg)
		default:
			return fmt.Errorf("unexpected argument: %s", arg)
		}
	}

	if code == "" {
		raw, err := token.Generate(8)
		if err != nil {
			return fmt.Errorf("generating invite code: %w", err)
		}
		code = "HIVE-" + strings.ToUpper(raw)
	}
	if len(code) < 6 || len(code) > 64 {
		return fmt.Errorf("invite code must be 6-64 characters, got %d", len(code))
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer s.Close()

	invite := &store.InviteCode{
		ID:        uuid.NewString(),
		Code:      code,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.CreateInviteCode(ctx, invite); err != nil {
		return fmt.Errorf("creating invite: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Println("  Invite created")
	fmt.Printf("  Code: %s\n", code)
	fmt.Println()
	fmt.Println("  Hand this to the new operator; it works exactly once.")
	return nil
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	buf.WriteString(r.Message)

	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}

func runHealth(ctx context.Context) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	addr := cfg.Server.HTTPAddr
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	url := fmt.Sprintf("http://%s/health", addr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("hivemind configuration setup")
	fmt.Println("============================")
	fmt.Println()

	defaultConfigPath := getConfigPath()
	defaultDataPath := getDataPath()
	defaultDbPath := filepath.Join(defaultDataPath, "hivemind.db")

	outputFile := prompt(reader, "Config file path", defaultConfigPath)

	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if strings.ToLower(overwrite) != "yes" && strings.ToLower(overwrite) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	fmt.Println("\n--- Server Configuration ---")
	httpAddr := prompt(reader, "HTTP address", ":8080")
	baseURL := prompt(reader, "External base URL", "http://localhost:8080")

	fmt.Println("\n--- Database Configuration ---")
	dbPath := prompt(reader, "SQLite database path", defaultDbPath)

	fmt.Println("\n--- Logging Configuration ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	var cfg strings.Builder
	cfg.WriteString("# hivemind configuration\n")
	cfg.WriteString("# Generated by hivemind init\n\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  http_addr: \"%s\"\n", httpAddr))
	cfg.WriteString(fmt.Sprintf("  base_url: \"%s\"\n", baseURL))
	cfg.WriteString("\n")

	cfg.WriteString("database:\n")
	cfg.WriteString(fmt.Sprintf("  path: \"%s\"\n", dbPath))
	cfg.WriteString("\n")

	cfg.WriteString("auth:\n")
	cfg.WriteString("  login_token_ttl: \"15m\"\n")
	cfg.WriteString("  session_ttl: \"336h\"\n")
	cfg.WriteString("  idempotency_ttl: \"24h\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("feed:\n")
	cfg.WriteString("  default_limit: 20\n")
	cfg.WriteString("  max_limit: 50\n")
	cfg.WriteString("  preview_comments: 3\n")
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: \"%s\"\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: \"%s\"\n", logFormat))

	configDir := filepath.Dir(outputFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	dataDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Printf("Data directory: %s\n", dataDir)
	fmt.Println("\nNext steps:")
	fmt.Println("  hivemind serve             # start the server")
	fmt.Println("  hivemind invite            # mint the first invite code")

	return nil
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}

package main

import (
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/esnunes/codewizard/internal/config"
	"github.com/esnunes/codewizard/internal/db"
	"github.com/esnunes/codewizard/internal/llm"
	"github.com/esnunes/codewizard/internal/server"
	"github.com/esnunes/codewizard/internal/session"
	"github.com/esnunes/codewizard/internal/wizard"
)

var (
	// Global flags
	configPath string
	verbose    bool
	addr       string
	noBrowser  bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "codewizard",
	Short: "Code Wizard - a chat assistant that explains source code",
	Long: `Code Wizard serves a local web page where you paste a snippet of code,
get an explanation from a language model, and keep asking questions about it.

Run without arguments to start the server and open the browser.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	RunE:  runServe,
}

var (
	eventsSession string
	eventsLimit   int
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Print recorded session events, oldest first",
	RunE:  runEvents,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the default settings",
	RunE:  runConfigInit,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (default: <config dir>/codewizard/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	for _, cmd := range []*cobra.Command{rootCmd, serveCmd} {
		cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
		cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "do not open the browser on start")
	}

	eventsCmd.Flags().StringVar(&eventsSession, "session", "", "only show events of this session")
	eventsCmd.Flags().IntVar(&eventsLimit, "limit", 50, "maximum number of events (0 for all)")

	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(serveCmd, eventsCmd, configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := checkBackend(cfg); err != nil {
		return err
	}

	dbPath, err := cfg.DatabasePath()
	if err != nil {
		return err
	}
	database, err := db.Open(dbPath)
	if err != nil {
		return err
	}
	defer database.Close()

	completer, err := llm.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating llm client: %w", err)
	}
	timeout, err := cfg.LLMTimeout()
	if err != nil {
		return err
	}
	idle, err := cfg.SessionIdleTimeout()
	if err != nil {
		return err
	}

	w := wizard.New(
		wizard.NewPipeline(completer, timeout, logger),
		db.NewQueries(database),
		cfg.Pipeline.ContextWindow,
		logger,
	)
	store := session.NewStore(logger)

	srv, err := server.New(w, store, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	listenAddr := cfg.Server.Addr
	if addr != "" {
		listenAddr = addr
	}
	if err := srv.Listen(listenAddr); err != nil {
		return err
	}

	if cfg.Server.OpenBrowser && !noBrowser {
		openBrowser("http://" + srv.Addr())
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(gctx)
	})
	g.Go(func() error {
		return store.RunSweeper(gctx, sweepInterval(idle), idle, w.Expire)
	})
	return g.Wait()
}

// checkBackend fails fast when the cli provider's executable is missing. A
// missing API key is only logged: the page reports it on first use.
func checkBackend(cfg *config.Config) error {
	if cfg.LLM.Provider == config.ProviderCLI {
		if _, err := exec.LookPath(cfg.LLM.Command); err != nil {
			return fmt.Errorf("%s CLI not found. Install it or pick another llm.provider", cfg.LLM.Command)
		}
		return nil
	}
	if cfg.LLM.APIKey == "" {
		logger.Warn("no API key configured", zap.String("provider", cfg.LLM.Provider))
	}
	return nil
}

// sweepInterval checks for idle sessions a few times per timeout window.
func sweepInterval(idle time.Duration) time.Duration {
	interval := idle / 4
	if interval < time.Second {
		interval = time.Second
	}
	if interval > 5*time.Minute {
		interval = 5 * time.Minute
	}
	return interval
}

func runEvents(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dbPath, err := cfg.DatabasePath()
	if err != nil {
		return err
	}
	database, err := db.Open(dbPath)
	if err != nil {
		return err
	}
	defer database.Close()

	events, err := db.NewQueries(database).ListEvents(eventsSession, eventsLimit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, e := range events {
		fmt.Fprintf(out, "%s  %-8.8s  %-20s  %-18s  %s\n",
			e.CreatedAt.Format(time.RFC3339), e.SessionID, e.Actor, e.Action, truncate(e.Payload, 60))
	}
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	if err := config.Write(path, config.DefaultConfig()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return
	}
	if err := cmd.Start(); err != nil {
		logger.Debug("opening browser", zap.Error(err))
	}
}


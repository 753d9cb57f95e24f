package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/palontologist/price-oracles/pkg/client"
	"github.com/palontologist/price-oracles/pkg/config"
	"github.com/palontologist/price-oracles/pkg/logging"
	"github.com/palontologist/price-oracles/pkg/metrics"
	"github.com/palontologist/price-oracles/pkg/server/api"
	"github.com/palontologist/price-oracles/pkg/server/chain"
	"github.com/palontologist/price-oracles/pkg/store"
	"github.com/palontologist/price-oracles/pkg/version"

	// Import sources to register them
	_ "github.com/palontologist/price-oracles/pkg/server/sources/fin"
	_ "github.com/palontologist/price-oracles/pkg/server/sources/scrape"
	_ "github.com/palontologist/price-oracles/pkg/server/sources/static"
	_ "github.com/palontologist/price-oracles/pkg/server/sources/stats"
)

var (
	configFile  = flag.String("config", "config/config.yaml", "Path to configuration file")
	showVer     = flag.Bool("version", false, "Show version and exit")
	serverURL   = flag.String("server", "", "Fetch from a running quote server instead of running the chain locally (fetch mode)")
	commodities = flag.String("commodities", "", "Comma-separated commodity names for fetch mode (default WHEAT,MAIZE)")
	withFlour   = flag.Bool("flour", false, "Include flour commodities in fetch mode")
	mockNames   = flag.String("mock", "", "Comma-separated source names that should serve offline data (fetch mode)")
)

func main() {
	flag.Parse()

	if *showVer {
		fmt.Printf("price-oracles version %s\n", version.Version)
		os.Exit(0)
	}

	mode := flag.Arg(0)
	if mode == "" {
		mode = "server"
	}

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Validate configuration
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Fetch mode prints quote JSON on stdout; keep logs out of the way.
	if mode == "fetch" && (cfg.Logging.Output == "" || cfg.Logging.Output == "stdout") {
		cfg.Logging.Output = "stderr"
	}

	// Initialize logging
	logger, err := logging.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetGlobal(logger)

	switch mode {
	case "server":
		runServerMode(cfg, logger)
	case "fetch":
		if err := runFetch(cfg, logger); err != nil {
			logger.Error("Fetch failed", "error", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown mode %q (expected \"server\" or \"fetch\")\n", mode)
		os.Exit(1)
	}
}

func runServerMode(cfg *config.Config, logger *logging.Logger) {
	logger.Info("Starting price-oracles", "version", version.Version, "mode", "server")

	// Initialize metrics
	if cfg.Metrics.Enabled {
		metrics.Init()
		go func() {
			logger.Info("Starting metrics server", "addr", cfg.Metrics.Addr)
			if err := metrics.ServeHTTP(cfg.Metrics.Addr); err != nil {
				logger.Error("Metrics server failed", "error", err)
			}
		}()
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- runServer(ctx, cfg, logger)
	}()

	// Wait for shutdown signal or error
	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", "signal", sig.String())
		cancel()
		select {
		case <-errChan:
		case <-time.After(10 * time.Second):
			logger.Warn("Shutdown timed out")
		}
	case err := <-errChan:
		if err != nil {
			logger.Error("Server failed", "error", err)
		}
	}

	logger.Info("Shutdown complete")
}

func runServer(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	ch, err := chain.Build(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to build source chain: %w", err)
	}

	var st *store.Store
	if cfg.Store.Enabled {
		st, err = store.Open(cfg.Store.Path, logger)
		if err != nil {
			return fmt.Errorf("failed to open quote store: %w", err)
		}
		logger.Info("Opened quote store", "path", cfg.Store.Path)
	}

	// Start HTTP server
	server := api.NewServer(cfg.Server.HTTP.Addr, ch, st, logger)
	server.SetRefreshInterval(cfg.Server.RefreshInterval.ToDuration())

	// Start WebSocket server if enabled
	var wsServer *api.WebSocketServer
	if cfg.Server.WebSocket.Enabled {
		wsServer = api.NewWebSocketServer(cfg.Server.WebSocket.Addr, logger)
		server.SetWebSocketServer(wsServer)

		go func() {
			if err := wsServer.Start(ctx); err != nil {
				logger.Error("WebSocket server error", "error", err)
			}
		}()
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		// Stop servers
		_ = server.Stop(shutdownCtx)
		if wsServer != nil {
			wsServer.Stop()
		}

		// Close the store last; in-flight handlers may still write to it
		if st != nil {
			_ = st.Close()
		}
	}()

	return server.Start()
}

// runFetch runs one chain pass (or one remote request with -server) and
// prints the quotes as JSON on stdout.
func runFetch(cfg *config.Config, logger *logging.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if *serverURL != "" {
		return fetchRemote(ctx, *serverURL)
	}

	ch, err := chain.Build(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to build source chain: %w", err)
	}

	req := chain.Request{
		Commodities:  splitFlag(*commodities),
		IncludeFlour: *withFlour,
	}
	if mocks := splitFlag(*mockNames); len(mocks) > 0 {
		req.Mock = make(map[string]bool, len(mocks))
		for _, name := range mocks {
			req.Mock[strings.ToLower(name)] = true
		}
	}

	quotes, err := ch.FetchPrices(ctx, req)
	if err != nil {
		return err
	}
	return printJSON(quotes)
}

func fetchRemote(ctx context.Context, baseURL string) error {
	c, err := client.NewHTTPClient(baseURL, 30*time.Second)
	if err != nil {
		return err
	}

	result, err := c.GetQuotes(ctx, client.QuotesOptions{
		Commodities:  splitFlag(*commodities),
		IncludeFlour: *withFlour,
		Mock:         splitFlag(*mockNames),
	})
	if err != nil {
		return err
	}
	return printJSON(result.Quotes)
}

func splitFlag(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

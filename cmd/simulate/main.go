// Command simulate runs a single historical-replay simulation from a
// RunParams config file and a market-data JSON file, printing the summary
// report to stdout.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/KlmnCapital/simulation-engine/internal/config"
	"github.com/KlmnCapital/simulation-engine/internal/core"
	"github.com/KlmnCapital/simulation-engine/internal/engine"
	"github.com/KlmnCapital/simulation-engine/internal/live"
	"github.com/KlmnCapital/simulation-engine/internal/logging"
	"github.com/KlmnCapital/simulation-engine/internal/marketdata"
	"github.com/KlmnCapital/simulation-engine/internal/persistence"
	"github.com/KlmnCapital/simulation-engine/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to RunParams YAML config")
	dataPath := flag.String("data", "", "path to a JSON array of core.MarketState snapshots")
	flag.Parse()

	if err := run(*configPath, *dataPath); err != nil {
		fmt.Fprintln(os.Stderr, "simulate:", err)
		os.Exit(1)
	}
}

func run(configPath, dataPath string) error {
	params, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := logging.New(params.LogLevel)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer logger.Sync()

	tel, err := telemetry.Setup("simulate")
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	defer tel.Shutdown(context.Background())

	states, err := loadMarketData(dataPath)
	if err != nil {
		return fmt.Errorf("loading market data: %w", err)
	}
	source, err := marketdata.NewSliceSource(states)
	if err != nil {
		return fmt.Errorf("building market data source: %w", err)
	}

	eng, err := engine.New(params, source, logger)
	if err != nil {
		return fmt.Errorf("constructing engine: %w", err)
	}

	if params.PersistenceDBPath != "" {
		store, err := persistence.NewSQLiteStore(params.PersistenceDBPath)
		if err != nil {
			return fmt.Errorf("opening persistence store: %w", err)
		}
		defer store.Close()
		eng.SetResultSink(store)
	}

	if params.LiveMonitorAddr != "" {
		hub := live.NewHub(logger)
		go hub.Run(ctx)
		srv := live.NewServer(hub, logger, []string{"*"})
		go func() {
			if err := srv.Start(ctx, params.LiveMonitorAddr); err != nil {
				logger.Error("live monitor server exited", "error", err)
			}
		}()
		eng.SetObserver(hub)
	}

	result, err := eng.Run(ctx, defaultStrategy())
	if err != nil {
		return fmt.Errorf("running simulation: %w", err)
	}

	fmt.Println(result.Report)
	if params.OutputFile != "" {
		if err := os.WriteFile(params.OutputFile, []byte(result.Report), 0o644); err != nil {
			return fmt.Errorf("writing output file: %w", err)
		}
	}
	return nil
}

func loadMarketData(path string) ([]core.MarketState, error) {
	if path == "" {
		return nil, fmt.Errorf("no --data file provided")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var states []core.MarketState
	if err := json.Unmarshal(data, &states); err != nil {
		return nil, fmt.Errorf("parsing market data: %w", err)
	}
	return states, nil
}

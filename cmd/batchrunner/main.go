// Command batchrunner executes many independent simulation runs
// concurrently, one Engine per (config, data) pair, using a bounded worker
// pool coordinated by errgroup, per spec.md's batch-runner extension.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/KlmnCapital/simulation-engine/internal/config"
	"github.com/KlmnCapital/simulation-engine/internal/core"
	"github.com/KlmnCapital/simulation-engine/internal/engine"
	"github.com/KlmnCapital/simulation-engine/internal/logging"
	"github.com/KlmnCapital/simulation-engine/internal/marketdata"
	"github.com/KlmnCapital/simulation-engine/internal/persistence"
	pkgconcurrency "github.com/KlmnCapital/simulation-engine/pkg/concurrency"
)

// job is one (config, data) pair to run as an isolated Engine.
type job struct {
	ConfigPath string `json:"config"`
	DataPath   string `json:"data"`
}

func main() {
	manifestPath := flag.String("manifest", "", "path to a JSON array of {config,data} job entries")
	maxWorkers := flag.Int("workers", 8, "maximum concurrent simulation runs")
	flag.Parse()

	if err := run(*manifestPath, *maxWorkers); err != nil {
		fmt.Fprintln(os.Stderr, "batchrunner:", err)
		os.Exit(1)
	}
}

func run(manifestPath string, maxWorkers int) error {
	jobs, err := loadManifest(manifestPath)
	if err != nil {
		return fmt.Errorf("loading manifest: %w", err)
	}

	logger, err := logging.New("INFO")
	if err != nil {
		return err
	}
	defer logger.Sync()

	pool := pkgconcurrency.NewWorkerPool(pkgconcurrency.PoolConfig{
		Name:        "batchrunner",
		MaxWorkers:  maxWorkers,
		MaxCapacity: len(jobs),
	}, logger)
	defer pool.Stop()

	g, ctx := errgroup.WithContext(context.Background())
	results := make([]string, len(jobs))

	// Each job gets its own errgroup goroutine, but the actual run only
	// executes once pool.SubmitAndWait acquires one of the pool's bounded
	// worker slots — that's what caps real concurrency at maxWorkers while
	// still letting errgroup aggregate the first error and cancel ctx.
	for i, j := range jobs {
		i, j := i, j
		g.Go(func() error {
			var runErr error
			pool.SubmitAndWait(func() {
				report, err := runOne(ctx, j, logger)
				if err != nil {
					runErr = fmt.Errorf("job %d (%s): %w", i, j.ConfigPath, err)
					return
				}
				results[i] = report
			})
			return runErr
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	fmt.Println(strings.Join(results, "\n\n"))
	return nil
}

func runOne(ctx context.Context, j job, logger logging.Logger) (string, error) {
	params, err := config.Load(j.ConfigPath)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(j.DataPath)
	if err != nil {
		return "", err
	}
	var states []core.MarketState
	if err := json.Unmarshal(data, &states); err != nil {
		return "", err
	}

	source, err := marketdata.NewSliceSource(states)
	if err != nil {
		return "", err
	}

	eng, err := engine.New(params, source, logger)
	if err != nil {
		return "", err
	}

	if params.PersistenceDBPath != "" {
		store, err := persistence.NewSQLiteStore(params.PersistenceDBPath)
		if err != nil {
			return "", err
		}
		defer store.Close()
		eng.SetResultSink(store)
	}

	result, err := eng.Run(ctx, noopStrategy{})
	if err != nil {
		return "", err
	}
	return result.Report, nil
}

// noopStrategy places no orders. Every batch job runs with it, so each run
// is a baseline (no-trade) replay of its config and data, e.g. for warming a
// persistence backend.
type noopStrategy struct{}

func (noopStrategy) OnMarketData(*engine.Handle, core.MarketState) {}
func (noopStrategy) OnFill(*engine.Handle, core.Fill)              {}
func (noopStrategy) OnEnd(*engine.Handle)                          {}

func loadManifest(path string) ([]job, error) {
	if path == "" {
		return nil, fmt.Errorf("no --manifest file provided")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var jobs []job
	if err := json.Unmarshal(data, &jobs); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	return jobs, nil
}

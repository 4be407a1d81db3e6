package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wonny/valuescreen/internal/cache"
	"github.com/wonny/valuescreen/internal/contracts"
	"github.com/wonny/valuescreen/internal/datasource"
	"github.com/wonny/valuescreen/internal/factors"
	"github.com/wonny/valuescreen/internal/gates"
	"github.com/wonny/valuescreen/internal/normalize"
	"github.com/wonny/valuescreen/internal/pipeline"
	"github.com/wonny/valuescreen/internal/scoring"
	"github.com/wonny/valuescreen/internal/strategy"
	"github.com/wonny/valuescreen/pkg/config"
	"github.com/wonny/valuescreen/pkg/httputil"
	"github.com/wonny/valuescreen/pkg/logger"
)

const httpCacheTTL = 12 * time.Hour

// app holds everything a command needs after wiring: process config, logger,
// loaded strategy and the selected data source. close releases pools and
// connections; always safe to call.
type app struct {
	cfg    *config.Config
	log    *logger.Logger
	strat  *strategy.Strategy
	source contracts.DataSource
	close  func()
}

func initApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logger.New(cfg)

	strat := strategy.Default()
	if strategyFile != "" {
		if strat, err = strategy.Load(strategyFile); err != nil {
			return nil, fmt.Errorf("load strategy: %w", err)
		}
		log.WithFields(map[string]interface{}{
			"strategy": strat.Name,
			"hash":     strat.Hash()[:12],
		}).Info("strategy loaded")
	}

	a := &app{cfg: cfg, log: log, strat: strat, close: func() {}}

	registry := datasource.NewRegistry()
	if err := a.registerSources(ctx, registry); err != nil {
		return nil, err
	}
	if a.source, err = registry.Get(sourceName); err != nil {
		return nil, err
	}
	return a, nil
}

// registerSources wires only the backend the run asked for. The csv source
// needs no environment and is always available.
func (a *app) registerSources(ctx context.Context, registry *datasource.Registry) error {
	if err := registry.Register("csv", datasource.NewCSVSource(csvFile, pricesDir, a.log)); err != nil {
		return err
	}

	switch sourceName {
	case "http":
		if a.cfg.MarketData.BaseURL == "" {
			return fmt.Errorf("http source needs MARKET_DATA_BASE_URL")
		}
		client := httputil.New(a.log, a.cfg.MarketData.Timeout, a.cfg.MarketData.RequestsPerSec)

		var store cache.Store = cache.NewMemoryStore()
		if a.cfg.Redis.Enabled {
			rdb := redis.NewClient(&redis.Options{
				Addr:     a.cfg.Redis.Addr,
				Password: a.cfg.Redis.Password,
				DB:       a.cfg.Redis.DB,
			})
			rstore := cache.NewRedisStore(rdb, "screener")
			if err := rstore.Ping(ctx); err != nil {
				return fmt.Errorf("redis ping: %w", err)
			}
			store = rstore
			prev := a.close
			a.close = func() { _ = rdb.Close(); prev() }
		}

		src := datasource.NewHTTPSource(client, cache.New(store, httpCacheTTL, a.log),
			a.cfg.MarketData.BaseURL, a.cfg.MarketData.APIKey, a.log)
		return registry.Register("http", src)

	case "postgres":
		if a.cfg.Database.URL == "" {
			return fmt.Errorf("postgres source needs DATABASE_URL")
		}
		pool, err := datasource.NewPool(ctx, a.cfg.Database.URL,
			int32(a.cfg.Database.MaxConns), int32(a.cfg.Database.MinConns),
			a.cfg.Database.MaxConnLifetime, a.cfg.Database.MaxConnIdleTime)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		prev := a.close
		a.close = func() { pool.Close(); prev() }
		return registry.Register("postgres", datasource.NewPostgresSource(pool, a.log))
	}
	return nil
}

// buildRunner assembles the screening pipeline from the loaded strategy.
func (a *app) buildRunner(tickers []string) (*pipeline.Runner, error) {
	normalizer, err := normalize.New(a.strat.NormalizeConfig(), a.log)
	if err != nil {
		return nil, err
	}
	evaluator, err := gates.NewEvaluator(a.strat.GatesEvaluatorConfig(), a.log)
	if err != nil {
		return nil, err
	}
	scorer, err := scoring.New(a.strat.ScoringConfig(), a.log)
	if err != nil {
		return nil, err
	}

	pcfg := pipeline.Config{
		Tickers:      tickers,
		LagDays:      a.strat.Backtest.ReportLagDays,
		Workers:      a.cfg.Workers,
		MinMarketCap: a.strat.Universe.MinMarketCap,
		Countries:    a.strat.Universe.CountryWhitelist,
	}
	return pipeline.New(pcfg, a.source, factors.New(a.log), normalizer, evaluator, scorer, a.log)
}

// resolveTickers reads the universe from --universe-file (one ticker per
// line, # starts a comment) or --tickers.
func resolveTickers() ([]string, error) {
	if universeFile != "" {
		f, err := os.Open(universeFile)
		if err != nil {
			return nil, fmt.Errorf("open universe file: %w", err)
		}
		defer f.Close()

		var tickers []string
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			tickers = append(tickers, line)
		}
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("read universe file: %w", err)
		}
		if len(tickers) == 0 {
			return nil, fmt.Errorf("universe file %s holds no tickers", universeFile)
		}
		return tickers, nil
	}
	if len(tickerList) > 0 {
		return tickerList, nil
	}
	return nil, fmt.Errorf("provide --tickers or --universe-file")
}

// openOutput returns the report destination: --output or stdout.
func openOutput() (io.WriteCloser, error) {
	if outputPath == "" {
		return nopWriteCloser{os.Stdout}, nil
	}
	f, err := os.Create(outputPath)
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}
	return f, nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

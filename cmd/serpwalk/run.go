package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/FranksOps/serpwalk/internal/auth"
	"github.com/FranksOps/serpwalk/internal/browser"
	"github.com/FranksOps/serpwalk/internal/challenge"
	"github.com/FranksOps/serpwalk/internal/config"
	"github.com/FranksOps/serpwalk/internal/fingerprint"
	applog "github.com/FranksOps/serpwalk/internal/log"
	"github.com/FranksOps/serpwalk/internal/metrics"
	"github.com/FranksOps/serpwalk/internal/pipeline"
	"github.com/FranksOps/serpwalk/internal/profile"
	"github.com/FranksOps/serpwalk/internal/provision"
	"github.com/FranksOps/serpwalk/internal/report"
	"github.com/FranksOps/serpwalk/internal/serp"
	"github.com/FranksOps/serpwalk/internal/storage"
	"github.com/FranksOps/serpwalk/internal/storage/csvbackend"
	"github.com/FranksOps/serpwalk/internal/storage/jsonbackend"
	"github.com/FranksOps/serpwalk/internal/storage/postgres"
	"github.com/FranksOps/serpwalk/internal/storage/sqlite"
	"github.com/FranksOps/serpwalk/internal/typing"
	"github.com/FranksOps/serpwalk/pkg/httpclient"
	"github.com/FranksOps/serpwalk/pkg/proxy"
	"github.com/FranksOps/serpwalk/pkg/ratelimit"
)

func runRootCmd(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load("")
	if err != nil {
		return err
	}
	logger, err := applog.New(applog.Options{
		Dir:      cfg.Log.Dir,
		File:     cfg.Log.File,
		Timezone: cfg.Log.Timezone,
		Level:    cfg.Log.Level,
	})
	if err != nil {
		return err
	}
	defer logger.Close()
	slog.SetDefault(logger.Logger)

	queries := queriesFrom(args)
	if len(queries) == 0 {
		logger.Error("no query has been passed, it is not possible to proceed")
		return errNoQueries
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "err", err)
		return fmt.Errorf("configuration error: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return run(ctx, cfg, queries, cmd.OutOrStdout(), logger.Logger)
}

// run wires the services from cfg, searches every query and prints the run
// summary to out.
func run(ctx context.Context, cfg *config.Config, queries []string, out io.Writer, logger *slog.Logger) error {
	if len(queries) == 0 {
		return errNoQueries
	}
	if logger == nil {
		logger = slog.Default()
	}

	hc, limiter, err := newHTTPClient(cfg.HTTP)
	if err != nil {
		return err
	}
	defer limiter.Stop()

	sess, err := auth.New(cfg.MLXBase, hc, logger).Resolve(ctx, auth.Credentials{
		Email:    cfg.Email,
		Password: cfg.Password,
		Token:    cfg.Token,
	})
	if err != nil {
		return err
	}

	loc, err := time.LoadLocation(cfg.Log.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone: %w", err)
	}
	store, err := openStore(ctx, cfg.Output, loc)
	if err != nil {
		return err
	}
	defer store.Close()

	deps, err := newDeps(cfg, hc, sess, store, logger)
	if err != nil {
		return err
	}
	p, err := pipeline.New(pipeline.Config{
		MaxAttempts: cfg.Search.MaxAttempts,
		StepDelay:   cfg.Search.StepDelay,
	}, deps, logger)
	if err != nil {
		return err
	}

	var srv *metrics.Server
	if cfg.Metrics.Port > 0 {
		srv = metrics.Start(cfg.Metrics.Port, logger)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var entries []report.Entry
	var runErr error
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		entries, runErr = p.Run(gctx, queries)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return srv.Stop(context.WithoutCancel(gctx))
	})
	if err := g.Wait(); err != nil {
		logger.Warn("metrics server shutdown", "err", err)
	}

	summary := report.GenerateSummary(entries)
	if err := report.WriteText(out, summary); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	if cfg.Report.Path != "" {
		if err := writeReport(cfg.Report.Path, summary); err != nil {
			logger.Error("write report", "path", cfg.Report.Path, "err", err)
		}
	}
	return runErr
}

func newHTTPClient(cfg config.HTTPConfig) (*httpclient.Client, *ratelimit.Limiter, error) {
	tlsProfile, err := fingerprint.ParseProfile(cfg.TLSProfile)
	if err != nil {
		return nil, nil, err
	}
	transport, err := fingerprint.Transport(tlsProfile, fingerprint.TransportOptions{})
	if err != nil {
		return nil, nil, fmt.Errorf("build transport: %w", err)
	}

	var limiter *ratelimit.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = ratelimit.NewLimiter(cfg.RequestsPerSecond, 0.2)
	}
	hc, err := httpclient.New(httpclient.Config{
		Timeout:   cfg.Timeout,
		Transport: transport,
		Limiter:   limiter,
	})
	if err != nil {
		limiter.Stop()
		return nil, nil, err
	}
	return hc, limiter, nil
}

func newDeps(cfg *config.Config, hc *httpclient.Client, sess httpclient.Session, store storage.Backend, logger *slog.Logger) (pipeline.Deps, error) {
	var opts []provision.Option
	if cfg.Proxy.StaticFile != "" {
		pool := proxy.NewPool(proxy.Config{Protocol: cfg.Proxy.Protocol})
		if err := pool.LoadFile(cfg.Proxy.StaticFile); err != nil {
			return pipeline.Deps{}, fmt.Errorf("load static proxies: %w", err)
		}
		logger.Info("using static proxy pool", "file", cfg.Proxy.StaticFile, "proxies", pool.Len())
		opts = append(opts, provision.WithPool(pool))
	}
	provisioner := provision.New(provision.Config{
		ProxyURL:    cfg.MLXProxy,
		LauncherURL: cfg.MLXLauncher,
		Country:     cfg.Proxy.Country,
		Region:      cfg.Proxy.Region,
		City:        cfg.Proxy.City,
		Protocol:    cfg.Proxy.Protocol,
		SessionType: cfg.Proxy.SessionType,
		MaxAttempts: cfg.Proxy.MaxAttempts,
	}, hc, sess, logger, opts...)

	flags, err := fingerprint.DefaultFlags().WithOverrides(cfg.Browser.Flags)
	if err != nil {
		return pipeline.Deps{}, err
	}
	launcher := profile.New(profile.Config{
		LauncherURL: cfg.MLXLauncher,
		ControlHost: cfg.LocalHost,
		BrowserType: cfg.BrowserType,
		OSType:      cfg.OSType,
		Headless:    cfg.Browser.Headless,
		Automation:  cfg.Browser.Automation,
		StartURLs:   cfg.Browser.StartURLs,
		Flags:       flags,
	}, hc, sess, browser.NewCDP(logger), logger)

	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	return pipeline.Deps{
		Proxies:    provisioner,
		Profiles:   launcher,
		Engine:     serp.NewGoogle(serp.GoogleConfig{StepDelay: cfg.Search.StepDelay}, ratelimit.Real, logger),
		Typist:     typing.New(typing.Config{}, rnd, ratelimit.Real),
		Challenges: challenge.New(challenge.Config{}, ratelimit.Real, logger),
		Store:      store,
	}, nil
}

// openStore opens the configured results backend.
func openStore(ctx context.Context, cfg config.OutputConfig, loc *time.Location) (storage.Backend, error) {
	switch cfg.Backend {
	case config.BackendCSV:
		return csvbackend.New(cfg.FilePath(), csvbackend.WithLocation(loc))
	case config.BackendNDJSON:
		return jsonbackend.New(cfg.FilePath())
	case config.BackendSQLite:
		return sqlite.New(cfg.FilePath())
	case config.BackendPostgres:
		return postgres.New(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrBackend, cfg.Backend)
	}
}

func writeReport(path string, summary report.Summary) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()
	return report.WriteJSON(f, summary)
}

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ericvolp12/issues-etl/pkg/api"
	"github.com/ericvolp12/issues-etl/pkg/schedule"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	slogecho "github.com/samber/slog-echo"
	echopprof "github.com/sevenNt/echo-pprof"
	"github.com/urfave/cli/v2"
)

var serveCommand = &cli.Command{
	Name:  "serve",
	Usage: "run the pipeline on a schedule and serve the warehouse read api",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "run-on-start",
			Usage: "run the pipeline once immediately on startup",
		},
	},
	Action: Serve,
}

// Serve runs the scheduler and the http server until a signal arrives.
func Serve(cctx *cli.Context) error {
	ctx, cancel := context.WithCancel(cctx.Context)
	defer cancel()

	e, err := setup(cctx, needs{github: true, database: true})
	if err != nil {
		return err
	}
	defer e.Close()

	logger := e.logger
	logger.Info("starting up")

	sched := schedule.New(e.pipeline, logger,
		schedule.WithRetries(e.cfg.Retries),
		schedule.WithRetryInterval(e.cfg.RetryInterval),
	)
	if _, err := sched.Schedule(ctx, e.cfg.Schedule); err != nil {
		return err
	}
	sched.Start()

	var startupRun sync.WaitGroup
	if cctx.Bool("run-on-start") {
		startupRun.Add(1)
		go func() {
			defer startupRun.Done()
			if err := sched.RunOnce(ctx); err != nil {
				logger.Error("startup run failed", "err", err)
			}
		}()
	}

	echoServer := echo.New()
	echoServer.HideBanner = true
	echoServer.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	echoServer.Use(slogecho.New(logger))
	echoServer.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace: "issues_etl",
		HistogramOptsFunc: func(opts prometheus.HistogramOpts) prometheus.HistogramOpts {
			opts.Buckets = prometheus.ExponentialBuckets(0.00001, 2, 20)
			return opts
		},
	}))
	echoServer.Use(middleware.Recover())

	echoServer.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	api.NewAPI(e.store, e.pipeline.Name()).Register(echoServer)
	echoServer.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, "issues-etl")
	})
	echopprof.Wrap(echoServer)

	httpServer := &http.Server{
		Addr:    e.cfg.ListenAddr,
		Handler: echoServer,
	}

	// Startup HTTP server
	httpServerKill := make(chan struct{})
	go func() {
		logger := logger.With("source", "http_server")
		logger.Info("http server listening", "addr", e.cfg.ListenAddr, "next_run", sched.Next())

		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("failed to start http server", "err", err)
			close(httpServerKill)
		}
	}()

	// Trap SIGINT to trigger a shutdown.
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-signals:
		logger.Info("received signal, shutting down")
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	case <-httpServerKill:
		logger.Info("shutting down due to http server error")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shut down http server", "err", err)
	}

	// Abort an in-flight run; its watermark stays where it was.
	cancel()
	sched.Stop()
	startupRun.Wait()

	logger.Info("shutdown complete")
	return nil
}

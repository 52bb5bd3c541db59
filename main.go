package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/batchingest/batchingest/coordinator"
	"github.com/batchingest/batchingest/ingestion/store/memory"
	"github.com/batchingest/batchingest/scheduler"
	"github.com/batchingest/batchingest/service"
	"github.com/batchingest/batchingest/service/api"
	"github.com/batchingest/batchingest/tracing"
	"github.com/batchingest/batchingest/worker"
	"github.com/joho/godotenv"
	"github.com/juju/clock"
	"github.com/opentracing/opentracing-go"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

var (
	appName = "batchingest"
	appSha  = "populated-at-link-time"
	logger  *logrus.Entry
)

func main() {
	host, _ := os.Hostname()
	rootLogger := logrus.New()
	rootLogger.SetFormatter(new(logrus.JSONFormatter))
	logger = rootLogger.WithFields(logrus.Fields{
		"app":  appName,
		"sha":  appSha,
		"host": host,
	})

	// Settings from an optional .env file are exposed as environment
	// variables so that the flag definitions below can pick them up.
	_ = godotenv.Load(".env")

	if err := makeApp().Run(os.Args); err != nil {
		logger.WithField("err", err).Error("shutting down due to error")
		_ = os.Stderr.Sync()
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func makeApp() *cli.App {
	app := cli.NewApp()
	app.Name = appName
	app.Version = appSha
	app.Usage = "Accept bulk ingestion requests and process them in prioritized, rate-spaced batches"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "listen-addr",
			Value:  ":5000",
			EnvVar: "LISTEN_ADDR",
			Usage:  "The address to listen for incoming API requests",
		},
		cli.IntFlag{
			Name:   "batch-size",
			Value:  3,
			EnvVar: "BATCH_SIZE",
			Usage:  "The maximum number of ids in each batch",
		},
		cli.DurationFlag{
			Name:   "spacing",
			Value:  5 * time.Second,
			EnvVar: "BATCH_SPACING",
			Usage:  "The delay between the eligibility times of consecutive batches of the same request",
		},
		cli.IntFlag{
			Name:   "concurrency",
			Value:  runtime.NumCPU(),
			EnvVar: "WORKER_CONCURRENCY",
			Usage:  "The number of batches to process concurrently (defaults to number of CPUs)",
		},
		cli.DurationFlag{
			Name:   "simulated-duration",
			Value:  5 * time.Second,
			EnvVar: "SIMULATED_DURATION",
			Usage:  "The time it takes the simulated ingester to process a batch",
		},
		cli.Float64Flag{
			Name:   "rate-limit-rps",
			Value:  0,
			EnvVar: "RATE_LIMIT_RPS",
			Usage:  "The number of ingestion requests per second each client may submit (0 disables rate limiting)",
		},
		cli.IntFlag{
			Name:   "rate-limit-burst",
			Value:  10,
			EnvVar: "RATE_LIMIT_BURST",
			Usage:  "The maximum burst of ingestion requests per client",
		},
		cli.IntFlag{
			Name:   "pprof-port",
			Value:  6060,
			EnvVar: "PPROF_PORT",
			Usage:  "The port for exposing pprof endpoints (0 disables pprof)",
		},
		cli.BoolFlag{
			Name:   "tracing",
			EnvVar: "TRACING_ENABLED",
			Usage:  "Report spans to Jaeger (configured via the JAEGER_* env vars)",
		},
	}
	app.Action = runMain
	return app
}

func runMain(appCtx *cli.Context) error {
	defer func() { _ = tracing.Closers.Close() }()

	svcGroup, err := setupServices(appCtx)
	if err != nil {
		return err
	}

	ctx, cancelFn := context.WithCancel(context.Background())
	defer cancelFn()

	// Start signal watcher
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
		select {
		case s := <-sigCh:
			logger.WithField("signal", s.String()).Infof("shutting down due to signal")
			cancelFn()
		case <-ctx.Done():
		}
	}()

	return svcGroup.Run(ctx)
}

func setupServices(appCtx *cli.Context) (*service.Group, error) {
	var tracer opentracing.Tracer = opentracing.NoopTracer{}
	if appCtx.Bool("tracing") {
		var err error
		if tracer, err = tracing.NewTracer(appName); err != nil {
			return nil, err
		}
		logger.Info("reporting spans to jaeger")
	}

	store := memory.NewInMemoryStore(clock.WallClock)

	sched, err := scheduler.New(scheduler.Config{
		Spacing: appCtx.Duration("spacing"),
		Clock:   clock.WallClock,
		Logger:  logger.WithField("service", "scheduler"),
	})
	if err != nil {
		return nil, err
	}

	coord, err := coordinator.New(coordinator.Config{
		Store:     store,
		Scheduler: sched,
		BatchSize: appCtx.Int("batch-size"),
		Tracer:    tracer,
		Logger:    logger.WithField("service", "coordinator"),
	})
	if err != nil {
		return nil, err
	}

	apiSvc, err := api.NewService(api.Config{
		IngestionAPI:   coord,
		ListenAddr:     appCtx.String("listen-addr"),
		RateLimitRPS:   appCtx.Float64("rate-limit-rps"),
		RateLimitBurst: appCtx.Int("rate-limit-burst"),
		Logger:         logger.WithField("service", "api"),
	})
	if err != nil {
		return nil, err
	}

	pool, err := worker.NewPool(worker.Config{
		Dispatcher: sched,
		Store:      store,
		Ingester: worker.Simulated{
			Clock:    clock.WallClock,
			Duration: appCtx.Duration("simulated-duration"),
		},
		Workers: appCtx.Int("concurrency"),
		Clock:   clock.WallClock,
		Tracer:  tracer,
		Logger:  logger.WithField("service", "worker-pool"),
	})
	if err != nil {
		return nil, err
	}

	services := []service.Service{apiSvc, pool}
	if port := appCtx.Int("pprof-port"); port > 0 {
		services = append(services, pprofService{port: port})
	}
	return service.NewGroup(logger, services...), nil
}

// pprofService exposes the net/http/pprof endpoints registered on the
// default mux.
type pprofService struct {
	port int
}

func (s pprofService) Name() string { return "pprof" }

func (s pprofService) Run(ctx context.Context) error {
	l, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return err
	}
	defer func() { _ = l.Close() }()

	srv := new(http.Server)
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	logger.WithField("port", s.port).Info("listening for pprof requests")
	if err = srv.Serve(l); err == http.ErrServerClosed {
		err = nil
	}
	return err
}

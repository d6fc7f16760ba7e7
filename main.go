package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/robfig/cron/v3"

	"emlak-ingest/api"
	"emlak-ingest/config"
	"emlak-ingest/metrics"
	"emlak-ingest/notify"
	"emlak-ingest/photo"
	"emlak-ingest/queue"
	"emlak-ingest/scraper"
	"emlak-ingest/scraper/browser"
	"emlak-ingest/scraper/emlakjet"
	"emlak-ingest/scraper/hepsiemlak"
	"emlak-ingest/scraper/sahibinden"
	"emlak-ingest/services"
	"emlak-ingest/storage"
	"emlak-ingest/tracing"
	"emlak-ingest/utils"
)

// app holds every constructed dependency. Optional backends fall back to
// in-memory implementations when their address is not configured.
type app struct {
	cfg     *config.Config
	logger  *utils.Logger
	metrics *metrics.Metrics

	browsers *browser.Manager
	scraper  *scraper.Service

	mem    *storage.MemoryStore
	docs   storage.DocumentStore
	tasks  storage.TaskStore
	photos storage.PhotoStore

	nc       *nats.Conn
	sink     notify.Sink
	jobs     *queue.JetStream
	local    *queue.Local
	importer *services.Importer

	closers []func()
}

func main() {
	mode := flag.String("mode", "serve", "serve | monitor | import")
	importURL := flag.String("url", "", "listing URL for -mode import")
	userID := flag.String("user", "", "user ID for -mode import")
	photos := flag.Bool("photos", true, "download photos for -mode import")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := utils.NewLoggerWith(cfg.Log.Level, cfg.Log.Format)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("=== Emlak ingest starting (mode: %s) ===", *mode)

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing.Endpoint, cfg.Tracing.ServiceName)
	if err != nil {
		logger.Warn("[tracing] disabled: %v", err)
	} else {
		defer shutdownTracing(context.Background())
	}

	a, err := build(ctx, cfg, logger)
	if err != nil {
		logger.Error("Startup failed: %v", err)
		os.Exit(1)
	}
	defer a.close()

	switch *mode {
	case "serve":
		err = a.serve(ctx)
	case "monitor":
		err = a.monitorOnce(ctx)
	case "import":
		err = a.importOne(ctx, *importURL, *userID, *photos)
	default:
		err = fmt.Errorf("unknown mode %q", *mode)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("%v", err)
		os.Exit(1)
	}
	logger.Info("=== Emlak ingest stopped ===")
}

func build(ctx context.Context, cfg *config.Config, logger *utils.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, metrics: metrics.New(), mem: storage.NewMemoryStore()}

	bcfg := browser.DefaultConfig()
	bcfg.ChromeBin = cfg.Browser.ChromeBin
	bcfg.Headless = cfg.Browser.Headless
	a.browsers = browser.NewManager(bcfg, logger.Named("browser"))
	a.closers = append(a.closers, a.browsers.Close)

	exec := utils.NewExecutor(utils.DefaultRetryPolicy(), logger, utils.WithObserver(a.metrics))
	a.scraper = scraper.NewService(a.browsers, exec, logger.Named("scraper"),
		sahibinden.New(logger), hepsiemlak.New(logger), emlakjet.New(logger),
	).WithMinFields(cfg.Import.MinDetailFields)

	if err := a.buildStores(ctx); err != nil {
		a.close()
		return nil, err
	}
	if err := a.buildMessaging(ctx); err != nil {
		a.close()
		return nil, err
	}

	dl := photo.NewHTTPDownloader(cfg.Import.PhotoTimeout, bcfg.UserAgent)
	var dispatcher queue.Dispatcher
	if a.jobs != nil {
		dispatcher = a.jobs
	} else {
		a.local = queue.NewLocal(logger.Named("queue"))
		dispatcher = a.local
	}

	a.importer = services.NewImporter(a.scraper, a.docs, a.tasks, a.photos,
		photo.NewFetcher(dl, logger), dispatcher, a.sink, logger.Named("import"),
	).WithMetrics(a.metrics)
	if cfg.Import.ResizePhotos {
		a.importer.WithResizer(photo.NewResizer(dl, logger))
	}
	if a.local != nil {
		a.local.SetHandler(a.importer.Handle)
	}
	return a, nil
}

func (a *app) buildStores(ctx context.Context) error {
	cfg := a.cfg
	a.docs, a.tasks, a.photos = a.mem, a.mem, a.mem

	if cfg.Mongo.URI != "" {
		mongoStore, err := storage.NewMongoStore(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return fmt.Errorf("mongo: %w", err)
		}
		a.docs = mongoStore
		a.closers = append(a.closers, func() { _ = mongoStore.Close(context.Background()) })
		a.logger.Info("[storage] MongoDB document store: %s", cfg.Mongo.Database)
	} else {
		a.logger.Warn("[storage] MONGO_URI not set, using in-memory document store")
	}

	if cfg.Redis.Addr != "" {
		redisTasks, err := storage.NewRedisTaskStore(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		a.tasks = redisTasks
		a.closers = append(a.closers, func() { _ = redisTasks.Close() })
	}

	if cfg.MinIO.Endpoint != "" {
		minioPhotos, err := storage.NewMinioPhotoStore(ctx, cfg.MinIO.Endpoint, cfg.MinIO.AccessKey,
			cfg.MinIO.SecretKey, cfg.MinIO.Bucket, cfg.MinIO.UseSSL, a.logger.Named("photos"))
		if err != nil {
			return fmt.Errorf("minio: %w", err)
		}
		a.photos = minioPhotos
	}
	return nil
}

func (a *app) buildMessaging(ctx context.Context) error {
	cfg := a.cfg
	sinks := notify.Multi{notify.LogSink{Logger: a.logger.Named("notify")}}

	if cfg.NATS.URL != "" {
		nc, err := nats.Connect(cfg.NATS.URL, nats.Name("emlak-ingest"))
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		a.nc = nc
		a.closers = append(a.closers, nc.Close)
		sinks = append(sinks, notify.NewNATSSink(nc, cfg.NATS.NotifyPrefix, a.logger.Named("notify")))

		jobs, err := queue.NewJetStream(ctx, nc, cfg.NATS.Stream, cfg.NATS.Subject, a.logger.Named("queue"))
		if err != nil {
			return fmt.Errorf("jetstream: %w", err)
		}
		a.jobs = jobs
	}

	if cfg.SMTP.Host != "" {
		sinks = append(sinks, notify.NewEmailSink(cfg.SMTP.Host, cfg.SMTP.Port,
			cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From, a.logger.Named("notify")))
	}
	if len(sinks) == 1 {
		a.logger.Warn("[notify] neither NATS_URL nor SMTP_HOST set, notifications are only logged and count as undelivered")
	}
	a.sink = sinks
	return nil
}

func (a *app) close() {
	if a.local != nil {
		a.local.Wait()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *app) newMonitor() (*services.Monitor, storage.RunLogWriter, func()) {
	cfg := services.DefaultMonitorConfig()
	cfg.MaxResults = a.cfg.Monitor.MaxResults
	m := services.NewMonitor(cfg, a.docs, a.scraper, a.sink, a.logger.Named("monitor")).WithMetrics(a.metrics)

	var cleanup []func()
	if csvWriter, err := storage.NewCSVWriter(a.cfg.Monitor.CSVPath); err != nil {
		a.logger.Warn("[monitor] CSV output disabled: %v", err)
	} else {
		m.WithDiscoveryWriter(csvWriter)
		cleanup = append(cleanup, func() { _ = csvWriter.Close() })
	}

	var runLog storage.RunLogWriter
	if a.cfg.Postgres.Host != "" {
		pg, err := storage.NewPostgresRunLog(a.cfg.DSN())
		if err != nil {
			a.logger.Warn("[monitor] run log disabled: %v", err)
		} else {
			m.WithRunLog(pg)
			runLog = pg
			cleanup = append(cleanup, func() { _ = pg.Close() })
		}
	}

	return m, runLog, func() {
		for _, fn := range cleanup {
			fn()
		}
	}
}

func (a *app) runMonitor(ctx context.Context, m *services.Monitor) error {
	res, err := m.Run(ctx)
	if res != nil {
		insights := services.NewInsightService(a.logger)
		insights.Print(os.Stdout, insights.Generate(res.Runs, res.Discoveries))
	}
	return err
}

func (a *app) monitorOnce(ctx context.Context) error {
	m, _, cleanup := a.newMonitor()
	defer cleanup()
	return a.runMonitor(ctx, m)
}

func (a *app) importOne(ctx context.Context, url, userID string, photos bool) error {
	preview, err := a.importer.Preview(ctx, services.PreviewRequest{URL: url, UserID: userID})
	if err != nil {
		return fmt.Errorf("preview: %w", err)
	}
	a.logger.Info("[import] %q (%s): %d similar in inventory",
		preview.Scraped.Title, preview.Scraped.SourcePortal, len(preview.Similar))
	for _, s := range preview.Similar {
		a.logger.Info("[import]   benzer: %s | %s, %s", s.Title, s.Location.District, s.Location.City)
	}

	if a.jobs != nil {
		consumeCtx, stop := context.WithCancel(ctx)
		stopped := make(chan struct{})
		defer func() {
			stop()
			<-stopped
		}()
		go func() {
			defer close(stopped)
			if err := a.jobs.Consume(consumeCtx, a.importer.Handle); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error("[queue] consumer stopped: %v", err)
			}
		}()
	}

	task, err := a.importer.Confirm(ctx, services.ConfirmRequest{
		TaskID:        preview.TaskID,
		UserID:        userID,
		PhotoDownload: photos,
	})
	if err != nil {
		return fmt.Errorf("confirm: %w", err)
	}
	if a.local != nil {
		a.local.Wait()
	}

	waitCtx, cancel := context.WithTimeout(ctx, queue.RetryWindow)
	defer cancel()
	final, err := a.importer.AwaitTask(waitCtx, task.ID, 2*time.Second)
	if errors.Is(err, context.DeadlineExceeded) && final != nil {
		a.logger.Warn("[import] task %s still %s, it completes asynchronously on the queue", task.ID, final.State)
		return nil
	}
	if err != nil {
		return err
	}
	a.logger.Info("[import] task %s: %s (property %s, photos %d/%d)",
		final.ID, final.State, final.PropertyID, final.PhotosStored, final.PhotosRequested)
	return nil
}

func (a *app) serve(ctx context.Context) error {
	m, runLog, cleanup := a.newMonitor()
	defer cleanup()

	c := cron.New(
		cron.WithLocation(a.cfg.Location()),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := c.AddFunc(a.cfg.Monitor.Cron, func() {
		if err := a.runMonitor(ctx, m); err != nil {
			a.logger.Error("[monitor] pass failed: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("monitor schedule %q: %w", a.cfg.Monitor.Cron, err)
	}
	c.Start()
	defer func() { <-c.Stop().Done() }()
	a.logger.Info("[monitor] Scheduled %q (%s)", a.cfg.Monitor.Cron, a.cfg.Monitor.TZ)

	if a.jobs != nil {
		go func() {
			if err := a.jobs.Consume(ctx, a.importer.Handle); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error("[queue] consumer stopped: %v", err)
			}
		}()
	}

	handler := api.NewImportHandler(a.importer, a.logger.Named("api"))
	var runs *api.RunsHandler
	if runLog != nil {
		runs = api.NewRunsHandler(runLog, a.logger.Named("api"))
	}
	srv := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           api.NewRouter(handler, runs, a.metrics.Handler(), a.logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("[api] Listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// machtmsd is the TMS backend daemon: the REST API, the background
// task processor, and the metrics listener in one process.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"machtms/internal/agent"
	"machtms/internal/api"
	"machtms/internal/auth"
	"machtms/internal/billing"
	"machtms/internal/cache"
	"machtms/internal/config"
	"machtms/internal/documents"
	"machtms/internal/llm/openai"
	"machtms/internal/observability/alerting"
	"machtms/internal/observability/metrics"
	"machtms/internal/search"
	"machtms/internal/storage/mysql"
	"machtms/internal/task"
	"machtms/internal/tms"
	"machtms/pkg/logger"

	"github.com/redis/go-redis/v9"
)

func main() {
	configPath := flag.String("config", "", "path to the JSON config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := logger.Init(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: cfg.Logging.OutputPaths,
		Audit: logger.AuditConfig{
			Enabled:    cfg.Logging.Audit.Enabled,
			Path:       cfg.Logging.Audit.Path,
			MaxSizeMB:  cfg.Logging.Audit.MaxSizeMB,
			MaxBackups: cfg.Logging.Audit.MaxBackups,
			MaxAgeDays: cfg.Logging.Audit.MaxAgeDays,
		},
	}); err != nil {
		fmt.Fprintln(os.Stderr, "initialize logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg); err != nil {
		logger.L().Error("daemon exited", slog.Any("error", err))
		os.Exit(1)
	}
}

// stores bundles the persistence backends selected by the storage
// driver.
type stores struct {
	auth    auth.Store
	domain  tms.Store
	tasks   task.Store
	docs    documents.Store
	billing billing.Store
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.L()

	backends, db, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	queue, err := openQueue(cfg)
	if err != nil {
		return err
	}
	defer queue.Close()

	tasks := task.NewService(backends.tasks, queue, 3)
	notifier := task.NewNotifier(tasks)
	domain := tms.NewService(backends.domain, notifier)

	authSvc, err := auth.NewService(ctx, auth.Config{
		Secret:    cfg.Auth.TokenSecret,
		Issuer:    "machtms",
		AccessTTL: time.Duration(cfg.Auth.TokenTTLMinutes) * time.Minute,
		Seeds:     authSeeds(cfg),
	}, backends.auth)
	if err != nil {
		return fmt.Errorf("initialize auth: %w", err)
	}

	objects, err := documents.NewS3ObjectStore(ctx, cfg.AWS.Region)
	if err != nil {
		return fmt.Errorf("initialize object storage: %w", err)
	}
	docs := documents.NewService(backends.docs, objects, domain, tasks, documents.Config{
		UploadBucket:       cfg.AWS.UploadBucket,
		PostShipmentBucket: cfg.AWS.PostShipmentBucket,
	})

	var gmailSender *billing.GmailSender
	if cfg.Gmail.ClientID != "" {
		gmailSender = billing.NewGmailSender(cfg.Gmail.ClientID, cfg.Gmail.ClientSecret, cfg.Gmail.RedirectURL)
	} else {
		log.Warn("gmail oauth is not configured, invoice delivery is disabled")
	}
	billingSvc := billing.NewService(backends.billing, domain, docs, objects, gmailSender, tasks, billing.Config{
		PostShipmentBucket: cfg.AWS.PostShipmentBucket,
		DebugRecipient:     cfg.Gmail.DebugRecipient,
	})

	var searchSvc *search.Service
	if cfg.Search.Enabled {
		searchSvc = search.NewService(search.Config{
			Host:        cfg.Search.Host,
			APIKey:      cfg.Search.APIKey,
			IndexPrefix: cfg.Search.IndexPrefix,
		}, domain)
	}

	var responseCache *cache.Cache
	if cfg.Cache.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.Redis.Address,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect to cache redis: %w", err)
		}
		defer client.Close()
		responseCache = cache.New(client, time.Duration(cfg.Cache.TTLSeconds)*time.Second)
	}

	chatAgent, err := buildAgent(cfg, domain)
	if err != nil {
		return err
	}

	processor := task.NewProcessor(backends.tasks, queue, queue,
		task.WithWorkerCount(cfg.TaskQueue.Workers),
		task.WithProcessorLogger(logger.Named("task.processor")),
		task.WithAlertDispatcher(alerting.NewFanout(alerting.LogNotifier{})),
	)
	registerHandlers(processor, domain, docs, billingSvc, searchSvc, responseCache)

	deps := api.Deps{
		Auth:      authSvc,
		TMS:       domain,
		Documents: docs,
		Billing:   billingSvc,
		Gmail:     gmailSender,
		Search:    searchSvc,
		Agent:     chatAgent,
		Tasks:     tasks,
	}
	// The handlers check Cache == nil, so a nil *cache.Cache must not
	// become a non-nil interface.
	if responseCache != nil {
		deps.Cache = responseCache
	}
	server := api.NewServer(deps)

	httpServer := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      server.Handler(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSec) * time.Second,
	}

	errCh := make(chan error, 3)
	go func() {
		log.Info("api server listening", slog.String("addr", cfg.Server.Address))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()
	go func() {
		if err := metrics.StartServer(ctx, cfg.Server.MetricsAddress); err != nil {
			errCh <- fmt.Errorf("metrics server: %w", err)
		}
	}()
	go func() {
		log.Info("task processor started", slog.Int("workers", cfg.TaskQueue.Workers))
		if err := processor.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("task processor: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		stop()
		log.Error("component failed, shutting down", slog.Any("error", err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown api server: %w", err)
	}
	return nil
}

func openStores(ctx context.Context, cfg *config.Config) (stores, *sql.DB, error) {
	switch cfg.Storage.Driver {
	case "mysql":
		db, err := mysql.Open(ctx, mysql.Config{
			DSN:         cfg.Storage.DSN,
			AutoMigrate: cfg.Storage.AutoMigrate,
		})
		if err != nil {
			return stores{}, nil, fmt.Errorf("open mysql: %w", err)
		}
		taskStore, err := task.NewMySQLStore(db)
		if err != nil {
			db.Close()
			return stores{}, nil, fmt.Errorf("initialize task store: %w", err)
		}
		return stores{
			auth:    mysql.NewAuthStore(db),
			domain:  mysql.NewStore(db),
			tasks:   taskStore,
			docs:    mysql.NewDocumentStore(db),
			billing: mysql.NewBillingStore(db),
		}, db, nil
	default:
		authStore, err := auth.NewMemoryStore(nil)
		if err != nil {
			return stores{}, nil, err
		}
		logger.L().Warn("using in-memory storage, data is lost on restart")
		return stores{
			auth:    authStore,
			domain:  tms.NewMemoryStore(),
			tasks:   task.NewMemoryStore(),
			docs:    documents.NewMemoryStore(),
			billing: billing.NewMemoryStore(),
		}, nil, nil
	}
}

func openQueue(cfg *config.Config) (task.Queue, error) {
	switch cfg.TaskQueue.Driver {
	case "redis":
		return task.NewRedisQueue(task.RedisQueueConfig{
			Address:  cfg.TaskQueue.Redis.Address,
			Password: cfg.TaskQueue.Redis.Password,
			DB:       cfg.TaskQueue.Redis.DB,
			Queue:    cfg.TaskQueue.Redis.Key,
		})
	case "rabbitmq":
		return task.NewRabbitMQQueue(task.RabbitMQQueueConfig{
			URL:     cfg.TaskQueue.RabbitMQ.URL,
			Queue:   cfg.TaskQueue.RabbitMQ.Queue,
			Durable: true,
		})
	default:
		return task.NewMemoryQueue(256), nil
	}
}

func authSeeds(cfg *config.Config) []auth.Seed {
	seeds := make([]auth.Seed, 0, len(cfg.Auth.Seeds))
	for _, seed := range cfg.Auth.Seeds {
		seeds = append(seeds, auth.Seed{
			OrgID:       seed.OrgID,
			Email:       seed.Email,
			Password:    seed.Password,
			Roles:       seed.Roles,
			Permissions: seed.Permissions,
		})
	}
	return seeds
}

func buildAgent(cfg *config.Config, domain *tms.Service) (agent.Runner, error) {
	if cfg.LLM.OpenAI.APIKey == "" {
		logger.L().Warn("llm api key is not configured, agent chat is disabled")
		return nil, nil
	}
	client, err := openai.NewClient(openai.Config{
		APIKey:  cfg.LLM.OpenAI.APIKey,
		BaseURL: cfg.LLM.OpenAI.BaseURL,
		Model:   cfg.LLM.OpenAI.Model,
		Timeout: time.Duration(cfg.LLM.OpenAI.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize llm client: %w", err)
	}
	overrides, err := agent.LoadOverrides(cfg.Agents.InstructionsPath)
	if err != nil {
		return nil, err
	}
	return agent.NewLeadTeam(agent.Dependencies{
		TMS:       domain,
		Client:    client,
		MaxTurns:  cfg.Agents.MaxTurns,
		Overrides: overrides,
	}), nil
}

// registerHandlers binds every task kind the services enqueue. Search
// kinds get a no-op handler when search is disabled so queued index
// work drains instead of alerting.
func registerHandlers(processor *task.Processor, domain *tms.Service, docs *documents.Service,
	billingSvc *billing.Service, searchSvc *search.Service, responseCache *cache.Cache) {

	processor.Register(task.KindDocumentMerge, observed("document.merge", docs.HandleMergeTask))
	processor.Register(task.KindInvoiceEmail, observed("billing.invoice_email", billingSvc.HandleInvoiceEmailTask))

	// Load pages are cached until the index task for the load lands, so
	// the invalidation runs whether or not search is enabled.
	invalidateLoadPages := func(ctx context.Context, t *task.Task) {
		if responseCache == nil {
			return
		}
		var payload task.SearchIndexPayload
		if err := t.DecodePayload(&payload); err != nil || payload.Entity != "load" {
			return
		}
		if _, err := responseCache.Invalidate(ctx, t.OrgID, "loads", payload.ID); err != nil {
			logger.Named("cache").Warn("load cache invalidation failed", slog.Any("error", err))
		}
	}

	if searchSvc != nil {
		indexLoads := func(ctx context.Context, t *task.Task) (string, error) {
			result, err := searchSvc.HandleIndexTask(ctx, t)
			if err == nil {
				invalidateLoadPages(ctx, t)
			}
			return result, err
		}
		processor.Register(task.KindSearchIndex, observed("search.index", indexLoads))
		processor.Register(task.KindSearchDelete, observed("search.delete", searchSvc.HandleDeleteTask))
	} else {
		drain := func(ctx context.Context, t *task.Task) (string, error) {
			invalidateLoadPages(ctx, t)
			return "search indexing is disabled", nil
		}
		processor.Register(task.KindSearchIndex, drain)
		processor.Register(task.KindSearchDelete, drain)
	}

	usage := func(ctx context.Context, t *task.Task) (string, error) {
		var payload task.AddressUsagePayload
		if err := t.DecodePayload(&payload); err != nil {
			return "", err
		}
		if err := domain.RecordAddressUsage(ctx, t.OrgID, payload.StopID, payload.AddressID); err != nil {
			return "", err
		}
		return "recorded usage of address " + payload.AddressID, nil
	}
	processor.Register(task.KindAddressUsage, observed("address.usage", usage))
}

// observed wraps a handler with the task outcome counter.
func observed(kind string, handler task.KindHandler) task.KindHandler {
	return func(ctx context.Context, t *task.Task) (string, error) {
		result, err := handler(ctx, t)
		if err != nil {
			metrics.ObserveTask(kind, "error")
			return result, err
		}
		metrics.ObserveTask(kind, "success")
		return result, nil
	}
}

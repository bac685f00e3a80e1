// Package bootstrap assembles the assistant from configuration. Both the HTTP
// server and the Lambda entrypoint build through it.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/pharmesol-assistant/internal/api/router"
	appconfig "github.com/wolfman30/pharmesol-assistant/internal/config"
	"github.com/wolfman30/pharmesol-assistant/internal/conversation"
	"github.com/wolfman30/pharmesol-assistant/internal/leads"
	"github.com/wolfman30/pharmesol-assistant/internal/observability/metrics"
	"github.com/wolfman30/pharmesol-assistant/internal/pharmacy"
	"github.com/wolfman30/pharmesol-assistant/pkg/logging"
)

// App is a fully wired assistant.
type App struct {
	Handler      http.Handler
	Orchestrator *conversation.Orchestrator
	Cache        *pharmacy.Cache
	Registry     *prometheus.Registry

	cfg     *appconfig.Config
	logger  *logging.Logger
	closers []func()
}

// Build wires storage, the pharmacy directory, the LLM, notifications, locks
// and the HTTP router.
func Build(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if strings.TrimSpace(cfg.PharmacyAPIURL) == "" {
		return nil, fmt.Errorf("bootstrap: PHARMACY_API_URL is required")
	}

	app := &App{cfg: cfg, logger: logger}
	ok := false
	defer func() {
		if !ok {
			app.Close()
		}
	}()

	app.Registry = prometheus.NewRegistry()
	app.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	chatMetrics := metrics.NewChatbotMetrics(app.Registry)

	storage, err := BuildStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, storage.Close)

	llm, err := BuildLLM(ctx, cfg, awsCfg, logger)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, llm.Close)

	gateway, err := BuildNotificationGateway(cfg, awsCfg, logger)
	if err != nil {
		return nil, err
	}

	redisClient := BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		app.closers = append(app.closers, func() { _ = redisClient.Close() })
	}
	locker := BuildLocker(redisClient, cfg, logger)

	app.Cache = pharmacy.NewCache(cfg.PharmacyCacheTTL, cfg.PharmacyCacheMaxEntries)
	directory := pharmacy.NewCachedDirectory(
		pharmacy.NewHTTPDirectory(cfg.PharmacyAPIURL, cfg.PharmacyAPITimeout, logger),
		app.Cache,
		chatMetrics,
		logger,
	)

	assistant := conversation.NewLLMAssistant(llm.Client, llm.Model, logger,
		conversation.WithTimeout(cfg.LLMTimeout),
		conversation.WithMaxTokens(int32(cfg.LLMMaxTokens)),
		conversation.WithTemperature(float32(cfg.LLMTemperature)),
		conversation.WithLatencyRecorder(chatMetrics),
	)
	dispatcher := conversation.NewDispatcher(storage.Leads, storage.Conversations, gateway, chatMetrics, logger)
	app.Orchestrator = conversation.NewOrchestrator(conversation.OrchestratorDeps{
		Store:      storage.Conversations,
		Directory:  directory,
		Leads:      storage.Leads,
		Assistant:  assistant,
		Dispatcher: dispatcher,
		Locker:     locker,
		Metrics:    chatMetrics,
	}, logger)

	checks := map[string]router.HealthCheck{}
	if storage.DB != nil {
		checks["database"] = storage.Ping
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	app.Handler = router.New(&router.Config{
		Logger:              logger,
		ConversationHandler: conversation.NewHandler(app.Orchestrator, logger),
		PharmacyHandler:     pharmacy.NewHandler(directory, logger),
		LeadsHandler:        leads.NewHandler(storage.Leads, logger),
		MetricsHandler:      promhttp.HandlerFor(app.Registry, promhttp.HandlerOpts{}),
		HealthChecks:        checks,
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		RateLimitRPS:        cfg.RateLimitRPS,
		RateLimitBurst:      cfg.RateLimitBurst,
		RequestTimeout:      cfg.HTTPRequestTimeout,
	})

	ok = true
	return app, nil
}

// StartBackground runs the directory cache janitor until ctx is done.
func (a *App) StartBackground(ctx context.Context) {
	go a.Cache.RunJanitor(ctx, a.cfg.PharmacyCacheSweepInterval, a.logger)
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

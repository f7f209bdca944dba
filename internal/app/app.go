// Package app assembles the katabatic components from a loaded Config. The
// API server, the scheduled Lambda and the job-runner tool share this
// wiring so that they read and write the same prediction history.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"katabatic/internal/analyzer"
	"katabatic/internal/config"
	"katabatic/internal/external"
	"katabatic/internal/forecasts"
	"katabatic/internal/metrics"
	"katabatic/internal/notify"
	"katabatic/internal/scheduler"
	"katabatic/internal/store"
	"katabatic/internal/tracker"
	"katabatic/internal/types"
)

// App holds the long-lived components built from one Config.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Store     store.KV
	Tracker   *tracker.Tracker
	Analyzer  *analyzer.Analyzer
	Forecasts *forecasts.Service
	Location  *time.Location
}

// New builds the store, tracker, analyzer and forecast service. The caller
// owns the returned App and must Close it.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	kv, err := store.Open(ctx, store.Options{
		Backend:     cfg.Store.Backend,
		Path:        cfg.Store.Path,
		DatabaseURL: cfg.Store.DatabaseURL.Unmask(),
		MaxConns:    cfg.Store.MaxConns,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", cfg.Store.Backend, err)
	}

	threshold := cfg.Tracker.UpdateThreshold
	if threshold == 0 {
		threshold = config.DefaultUpdateThreshold(cfg.Environment)
	}
	tr, err := tracker.New(tracker.Config{
		Store:           kv,
		UpdateThreshold: threshold,
		MaxEntries:      cfg.Tracker.MaxEntries,
		StorageKey:      cfg.Tracker.StorageKey,
		Location:        loc,
		Compress:        cfg.Tracker.Compress,
		Logger:          logger,
	})
	if err != nil {
		_ = kv.Close()
		return nil, fmt.Errorf("creating tracker: %w", err)
	}

	criteria := types.DefaultCriteria().Merge(cfg.Criteria.Overrides)
	an, err := analyzer.New(analyzer.Config{Criteria: &criteria, Location: loc, Logger: logger})
	if err != nil {
		_ = kv.Close()
		return nil, fmt.Errorf("creating analyzer: %w", err)
	}

	retry := external.DefaultRetryPolicy()
	retry.MaxRetries = cfg.Weather.MaxRetries
	httpClient := external.NewBaseClient(
		&http.Client{Timeout: cfg.Weather.Timeout},
		external.BreakerSettings{Name: forecasts.SourceOpenMeteo},
		retry,
		fmt.Sprintf("%s/%s", cfg.Service, cfg.Build.Version),
		external.WithLogger(logger),
	)
	source := forecasts.NewOpenMeteoClient(httpClient, cfg.Weather.BaseURL, logger)
	svc := forecasts.NewService(source, cfg.ValleySite(), cfg.MountainSite(), loc, logger)

	return &App{
		Config:    cfg,
		Logger:    logger,
		Store:     kv,
		Tracker:   tr,
		Analyzer:  an,
		Forecasts: svc,
		Location:  loc,
	}, nil
}

// Close releases the store.
func (a *App) Close() error {
	return a.Store.Close()
}

// AWSClients are the optional AWS integrations. Nil fields are disabled.
type AWSClients struct {
	Notifier *notify.Scheduler
	Metrics  *metrics.Publisher
}

// LoadAWS builds the SQS alert scheduler when a queue is configured and the
// CloudWatch publisher when metrics are enabled. With neither, no AWS
// configuration is loaded.
func (a *App) LoadAWS(ctx context.Context) (AWSClients, error) {
	cfg := a.Config.AWS
	var clients AWSClients
	if cfg.NotificationQueue == "" && !cfg.EnableMetrics {
		return clients, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return clients, fmt.Errorf("loading AWS config: %w", err)
	}
	if cfg.EndpointURL != "" {
		awsCfg.BaseEndpoint = aws.String(cfg.EndpointURL)
	}

	if cfg.NotificationQueue != "" {
		clients.Notifier = notify.NewScheduler(sqs.NewFromConfig(awsCfg), cfg.NotificationQueue, a.Logger)
	}
	if cfg.EnableMetrics {
		clients.Metrics = metrics.NewPublisher(cloudwatch.NewFromConfig(awsCfg), cfg.MetricNamespace, a.Config.Sites.ValleyName, a.Logger)
	}
	return clients, nil
}

// Runner wires the scheduled jobs. A nil notifier disables alerts and nil
// metrics disables publishing.
func (a *App) Runner(clients AWSClients) (*scheduler.Runner, error) {
	var rec scheduler.MetricsRecorder
	if clients.Metrics != nil {
		rec = clients.Metrics
	}
	var notifier scheduler.NotificationScheduler
	if clients.Notifier != nil {
		notifier = clients.Notifier
	}

	dawn, err := scheduler.NewDawnAnalysis(scheduler.DawnAnalysisConfig{
		Fetcher:  a.Forecasts,
		Analyzer: a.Analyzer,
		Tracker:  a.Tracker,
		Notifier: notifier,
		LeadTime: a.Config.AWS.NotificationLead,
		Metrics:  rec,
		Logger:   a.Logger,
	})
	if err != nil {
		return nil, err
	}

	verify, err := scheduler.NewOutcomeVerification(scheduler.OutcomeVerificationConfig{
		Observer: a.Forecasts,
		Tracker:  a.Tracker,
		Window:   a.Analyzer.Criteria().PredictionWindow,
		Location: a.Location,
		Source:   forecasts.SourceOpenMeteo,
		Metrics:  rec,
		Logger:   a.Logger,
	})
	if err != nil {
		return nil, err
	}

	return &scheduler.Runner{
		Dawn:   dawn,
		Verify: verify,
		Dedup:  a.Tracker,
		Logger: a.Logger,
	}, nil
}

// NewLogger creates the JSON process logger at the configured level.
func NewLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

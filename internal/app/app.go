// Package app assembles the engine and its optional sinks from configuration.
// Every entry point (HTTP server, Lambdas, CLI) builds one App.
package app

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"mihac/internal/config"
	"mihac/internal/services/auditlog"
	"mihac/internal/services/database"
	"mihac/internal/services/engine"
	"mihac/internal/services/metrics"
	"mihac/internal/services/recorder"
	"mihac/internal/services/rules"
	s3service "mihac/internal/services/s3"
	"mihac/internal/services/ses"
	"mihac/internal/utils"
)

// App holds the engine and whichever sinks are configured. Nil fields are
// disabled sinks.
type App struct {
	Config   *config.Config
	Rules    *rules.RuleConfig
	Engine   *engine.Engine
	Metrics  *metrics.Metrics
	Store    database.EvaluationStore
	Reports  *s3service.Service
	Notifier *ses.Service
	Audit    *auditlog.Log
	Recorder *recorder.Recorder
}

// LoadRules returns the embedded default rules, or the file at path when set.
func LoadRules(path string) (*rules.RuleConfig, error) {
	if path == "" {
		return rules.Default()
	}
	return rules.Load(path)
}

// New builds an App. A bad rule configuration is fatal; sinks that fail to
// initialize are logged and left disabled.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := utils.GetLogger()

	ruleCfg, err := LoadRules(cfg.RulesPath)
	if err != nil {
		return nil, err
	}

	eng, err := engine.New(ruleCfg,
		engine.WithStrictWarnings(cfg.StrictWarnings),
		engine.WithWorkers(cfg.BatchWorkers),
	)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:  cfg,
		Rules:   ruleCfg,
		Engine:  eng,
		Metrics: metrics.New(),
	}
	opts := []recorder.Option{recorder.WithMetrics(a.Metrics)}

	store, err := database.OpenStore(ctx, cfg)
	if err != nil {
		logger.Warn("Evaluation store unavailable, results will not be persisted",
			zap.String("driver", cfg.StoreDriver), zap.Error(err))
	} else if store != nil {
		a.Store = store
		opts = append(opts, recorder.WithStore(store))
	}

	if cfg.AuditLogPath != "" {
		audit, err := auditlog.Open(cfg.AuditLogPath)
		if err != nil {
			logger.Warn("Audit log unavailable", zap.Error(err))
		} else {
			a.Audit = audit
			opts = append(opts, recorder.WithAudit(audit))
		}
	}

	if cfg.ReportsEnabled() {
		reports, err := s3service.NewService(ctx, cfg)
		if err != nil {
			logger.Warn("Report archive unavailable", zap.Error(err))
		} else {
			a.Reports = reports
			opts = append(opts, recorder.WithReports(reports))
		}
	}

	if cfg.NotificationsEnabled() {
		notifier, err := ses.NewService(ctx, cfg)
		if err != nil {
			logger.Warn("Review notifications unavailable", zap.Error(err))
		} else {
			a.Notifier = notifier
			opts = append(opts, recorder.WithNotifier(notifier))
		}
	}

	a.Recorder = recorder.New(opts...)

	logger.Info("Application initialized",
		zap.String("stage", cfg.Stage),
		zap.Bool("store", a.Store != nil),
		zap.Bool("audit", a.Audit != nil),
		zap.Bool("reports", a.Reports != nil),
		zap.Bool("notifications", a.Notifier != nil),
	)
	return a, nil
}

// Close releases the store and audit log.
func (a *App) Close() error {
	var errs []error
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	if a.Audit != nil {
		errs = append(errs, a.Audit.Close())
	}
	return errors.Join(errs...)
}

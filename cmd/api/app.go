package main

import (
	"database/sql"
	"time"

	"dialer-platform/internal/audit"
	"dialer-platform/internal/auth"
	"dialer-platform/internal/calls"
	"dialer-platform/internal/config"
	"dialer-platform/internal/credits"
	"dialer-platform/internal/dispatch"
	"dialer-platform/internal/dispositions"
	"dialer-platform/internal/httpapi"
	"dialer-platform/internal/metrics"
	"dialer-platform/internal/reporting"
	"dialer-platform/internal/telephony"
	"dialer-platform/internal/workflow"
	"dialer-platform/pkg/utils"

	"github.com/redis/go-redis/v9"
)

const leadLockPrefix = "lead-lock:"

// app holds the wired services. Built once in main; no globals.
type app struct {
	processor *dispositions.Processor
	webhook   telephony.VoiceAIWebhookHandler
	handlers  httpapi.Handlers
}

func newApp(cfg config.Config, db *sql.DB, rdb *redis.Client, m *metrics.DispositionMetrics) (*app, error) {
	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		return nil, err
	}
	creditSvc := credits.NewService(db, cfg.Pipeline.CreditsPerMinute)

	deps := dispositions.Deps{
		Calls:    calls.NewPostgresRepository(db),
		UoW:      dispositions.NewPostgresUnitOfWork(db),
		Advancer: workflow.NewAdvancer(cfg.WorkflowLocation()),
		Locker:   utils.NewKeyLocker(rdb, leadLockPrefix, cfg.Pipeline.LeadLockTTL, cfg.Pipeline.LeadLockWait),
		Charger:  creditSvc,
		Metrics:  m,
	}
	if cfg.Functions.BaseURL != "" {
		client, err := dispatch.NewClient(dispatch.Config{
			BaseURL:       cfg.Functions.BaseURL,
			ServiceKey:    cfg.Functions.ServiceKey,
			Timeout:       cfg.Functions.Timeout,
			RetryAttempts: uint(cfg.Functions.RetryAttempts),
		}, m)
		if err != nil {
			return nil, err
		}
		deps.Invoker = client
		deps.DispatchTimeout = cfg.Functions.Timeout * time.Duration(cfg.Functions.RetryAttempts+1)
	}
	processor := dispositions.NewProcessor(deps)

	return &app{
		processor: processor,
		webhook: telephony.VoiceAIWebhookHandler{
			Processor: processor,
			Secret:    cfg.VoiceAI.WebhookSecret,
			Metrics:   m,
		},
		handlers: httpapi.Handlers{
			Auth:    authManager,
			Credits: creditSvc,
			Reports: reporting.NewService(reporting.NewPostgresRepository(db)),
			Audit:   audit.NewService(audit.NewPostgresRepository(db)),
		},
	}, nil
}

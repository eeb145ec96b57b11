// Command duplicate-check cross-references unprocessed leads against the CRM
// and the property record store and writes the verdicts back to the lead
// datastore. It is meant to run from cron and reports its outcome through the
// exit code: 0 full success, 1 partial, 2 nothing processed.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leadcheck_backend/internal/airtable"
	"leadcheck_backend/internal/domainrules"
	"leadcheck_backend/internal/dupcheck"
	"leadcheck_backend/internal/hubspot"
	"leadcheck_backend/internal/leadstore"
	"leadcheck_backend/platform/apperr"
	"leadcheck_backend/platform/config"
	"leadcheck_backend/platform/logger"
	"leadcheck_backend/platform/throttle"
)

const (
	crmWindow    = 10 * time.Second
	searchWindow = time.Second
	storeLimit   = 10
	storeWindow  = time.Second
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "configuration error:", err)
		return apperr.ExitFatal
	}

	log := logger.New(cfg.Env)
	log.Info("domain_rules_loaded", "rules", domainrules.RuleCount())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	crmCaller := throttle.NewCaller(
		throttle.NewWindowLimiter("crm", cfg.GetCRMAPILimit(), crmWindow),
		cfg.GetMaxRetries(), cfg.GetRateLimitPause(), log,
	)
	searchCaller := throttle.NewCaller(
		throttle.NewWindowLimiter("crm_search", cfg.GetSearchAPILimit(), searchWindow),
		cfg.GetMaxRetries(), cfg.GetRateLimitPause(), log,
	)
	recordCaller := throttle.NewCaller(
		throttle.NewWindowLimiter("record_store", cfg.GetSearchAPILimit(), searchWindow),
		cfg.GetMaxRetries(), cfg.GetRateLimitPause(), log,
	)
	storeCaller := throttle.NewCaller(
		throttle.NewWindowLimiter("lead_store", storeLimit, storeWindow),
		cfg.GetMaxRetries(), cfg.GetRateLimitPause(), log,
	)

	crm := hubspot.NewClient(cfg, crmCaller, searchCaller, log)
	store := leadstore.NewClient(cfg, cfg.GetMaxRetries(), storeCaller, log)

	var records dupcheck.PropertyFinder
	if cfg.IsAirtableEnabled() {
		records = airtable.NewClient(cfg, recordCaller, log)
	} else {
		log.Warn("record store not configured, fallback check disabled")
	}

	checker := dupcheck.NewChecker(crm, crm, records, log)
	runner := dupcheck.NewRunner(store, checker, store,
		cfg.GetBatchSize(), cfg.GetMaxBatches(), cfg.GetLogEvery(), log)

	summary, err := runner.Run(ctx)
	if err != nil {
		log.Error("run aborted", "error", err)
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			return appErr.ExitCode()
		}
		return apperr.ExitFatal
	}

	return summary.ExitCode()
}

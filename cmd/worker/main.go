package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"hostforge/internal/engine"
	"hostforge/internal/infra"
	"hostforge/internal/providers/github"
	"hostforge/internal/providers/namecheap"
	"hostforge/internal/providers/vercel"
	"hostforge/internal/queue"
	"hostforge/internal/store"
)

const (
	staleSweepInterval = time.Minute
	renewalWindow      = 30 * 24 * time.Hour
)

type worker struct {
	engine *engine.Engine
	store  *store.Store
	logger infra.Logger
}

func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "worker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	st := store.New(pool, logger)

	source, err := github.NewClient(github.Options{
		Org:           cfg.GitHubOrg,
		AppID:         cfg.GitHubAppID,
		PrivateKeyPEM: cfg.GitHubAppPrivateKey,
		BaseURL:       cfg.GitHubBaseURL,
		Logger:        &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure github client")
	}

	hosting, err := vercel.NewClient(vercel.Options{
		APIToken: cfg.VercelAPIToken,
		TeamID:   cfg.VercelTeamID,
		BaseURL:  cfg.VercelBaseURL,
		Logger:   &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure vercel client")
	}

	registrar, err := namecheap.NewClient(namecheap.Options{
		APIUser:  cfg.NamecheapAPIUser,
		APIKey:   cfg.NamecheapAPIKey,
		ClientIP: cfg.NamecheapClientIP,
		BaseURL:  cfg.NamecheapBaseURL,
		Logger:   &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure namecheap client")
	}

	eng := engine.New(engine.Options{
		Store:     st,
		Source:    source,
		Hosting:   hosting,
		Registrar: registrar,
		Lock: func(ctx context.Context, projectID string) (func(context.Context) error, error) {
			lock, err := st.AcquireProjectLock(ctx, projectID)
			if err != nil {
				return nil, err
			}
			return lock.Release, nil
		},
		Logger:         logger,
		PlatformDomain: cfg.PlatformDomain,
	})

	w := &worker{engine: eng, store: st, logger: logger}

	go w.sweepStaleJobs(ctx, cfg.StaleJobAfter)
	go w.renewDomains(ctx, registrar)

	router := chi.NewRouter()
	router.Use(chimw.Recoverer)
	router.Get("/health", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
		rw.Write([]byte(`{"status":"ok"}`))
	})
	router.Post("/jobs/dispatch", w.handleDispatch)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadTimeout:       cfg.HTTPReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
	}

	go func() {
		logger.Info().Msgf("worker listening on :%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("worker: http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("worker: failed to shutdown server")
	}
	logger.Info().Msg("worker: stopped")
}

// handleDispatch acks the job immediately and runs it in the background.
// Delivery is at-least-once; steps are idempotent, so a duplicate dispatch
// either finds the lock held or re-runs already-satisfied steps.
func (w *worker) handleDispatch(rw http.ResponseWriter, r *http.Request) {
	var dispatch queue.Dispatch
	if err := json.NewDecoder(r.Body).Decode(&dispatch); err != nil {
		http.Error(rw, "invalid payload", http.StatusBadRequest)
		return
	}
	if dispatch.JobID == "" || dispatch.ProjectID == "" {
		http.Error(rw, "job_id and project_id are required", http.StatusBadRequest)
		return
	}

	rw.WriteHeader(http.StatusAccepted)
	rw.Write([]byte(`{"status":"accepted"}`))

	go func() {
		if err := w.engine.RunJob(context.Background(), dispatch.JobID, dispatch.Type, dispatch.ProjectID); err != nil {
			w.logger.Error().Err(err).
				Str("job_id", dispatch.JobID).
				Str("job_type", string(dispatch.Type)).
				Msg("worker: job failed")
		}
	}()
}

// sweepStaleJobs periodically fails jobs stuck in running, so a crashed
// worker's jobs surface as failed instead of running forever.
func (w *worker) sweepStaleJobs(ctx context.Context, olderThan time.Duration) {
	ticker := time.NewTicker(staleSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			swept, err := w.store.FailStaleJobs(ctx, olderThan)
			if err != nil {
				w.logger.Error().Err(err).Msg("worker: stale job sweep failed")
				continue
			}
			for _, jobID := range swept {
				w.logger.Warn().Str("job_id", jobID).Msg("worker: stale job marked failed")
			}
		}
	}
}

// renewDomains runs a daily 02:00 UTC pass renewing active domains that
// expire within the renewal window.
func (w *worker) renewDomains(ctx context.Context, registrar *namecheap.Client) {
	for {
		timer := time.NewTimer(untilNextDailyRun(time.Now().UTC()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		records, err := w.store.DomainsDueForRenewal(ctx, renewalWindow)
		if err != nil {
			w.logger.Error().Err(err).Msg("worker: renewal query failed")
			continue
		}
		for _, record := range records {
			status, err := registrar.Status(ctx, record.DomainName)
			if err != nil {
				w.logger.Warn().Err(err).Str("domain", record.DomainName).Msg("worker: registrar status lookup failed, skipping renewal")
				continue
			}
			if !strings.EqualFold(status, "ok") && !strings.EqualFold(status, "active") {
				w.logger.Warn().Str("domain", record.DomainName).Str("status", status).Msg("worker: domain not renewable at registrar")
				continue
			}
			if err := registrar.Renew(ctx, record.DomainName); err != nil {
				w.logger.Error().Err(err).Str("domain", record.DomainName).Msg("worker: renewal failed")
				continue
			}
			if err := w.store.AdvanceDomainRenewal(ctx, record.DomainName); err != nil {
				w.logger.Error().Err(err).Str("domain", record.DomainName).Msg("worker: renewal date update failed")
				continue
			}
			w.logger.Info().Str("domain", record.DomainName).Msg("worker: domain renewed")
		}
	}
}

// untilNextDailyRun returns the duration until the next 02:00 UTC.
func untilNextDailyRun(now time.Time) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), 2, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}

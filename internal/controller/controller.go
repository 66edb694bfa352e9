package controller

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"peregrine/internal/config"
	"peregrine/internal/issues"
	"peregrine/internal/jobs"
	"peregrine/internal/logger"
	"peregrine/internal/metrics"
	"peregrine/internal/model"
	"peregrine/internal/oracle"
	"peregrine/internal/orchestrator"
	"peregrine/internal/store"
)

const staleJobMessage = "Worker restarted: job recovered after crash"
const shutdownMessage = "Worker shutdown during crawl"

// JobStore is the slice of the store the controller drives the lifecycle
// through.
type JobStore interface {
	OldestPendingJob(ctx context.Context) (store.Job, error)
	MarkJobProcessing(ctx context.Context, id uuid.UUID) (bool, error)
	MarkJobTerminal(ctx context.Context, id uuid.UUID, status string, errMsg *string) error
	RecoverStaleJobs(ctx context.Context, olderThan time.Duration, message string) (int64, error)
	ResumeCandidates(ctx context.Context, window time.Duration, minPages, limit int) ([]store.Job, error)
	CrawledURLs(ctx context.Context, crawlID uuid.UUID) ([]string, error)
	CreateJob(ctx context.Context, projectID uuid.UUID, settings any, resumedFrom uuid.NullUUID) (uuid.UUID, error)
	LoadIssueDefinitions(ctx context.Context) ([]issues.Definition, error)
}

// ListenerFactory builds a job event stream. The controller reconnects
// through it when the stream dies.
type ListenerFactory func(ctx context.Context) (<-chan store.JobEvent, func(), error)

// Controller owns the crawl job lifecycle on one worker: startup
// reconciliation, LISTEN-driven dispatch with poll backstops, single-flight
// execution, cooperative cancel, and shutdown handling.
type Controller struct {
	cfg      *config.Config
	st       JobStore
	pages    orchestrator.Storage
	oracle   *oracle.Client
	validate *validator.Validate
	log      logger.Logger

	newListener ListenerFactory
	newFetcher  orchestrator.FetcherFactory

	mu           sync.Mutex
	active       *activeJob
	shuttingDown bool
}

type activeJob struct {
	id   uuid.UUID
	orch *orchestrator.Orchestrator
	done chan struct{}
}

// Config wires a Controller.
type Config struct {
	Cfg         *config.Config
	Store       JobStore
	Pages       orchestrator.Storage
	Oracle      *oracle.Client
	NewListener ListenerFactory
	NewFetcher  orchestrator.FetcherFactory
	Log         logger.Logger
}

func New(cfg Config) *Controller {
	return &Controller{
		cfg:         cfg.Cfg,
		st:          cfg.Store,
		pages:       cfg.Pages,
		oracle:      cfg.Oracle,
		validate:    validator.New(),
		newListener: cfg.NewListener,
		newFetcher:  cfg.NewFetcher,
		log:         cfg.Log,
	}
}

// Run blocks until ctx is cancelled. On exit the in-flight job, if any, is
// cancelled and marked failed for later recovery.
func (c *Controller) Run(ctx context.Context) {
	c.reconcile(ctx)
	c.dispatchNext(ctx)

	events := c.listen(ctx)

	pollTick := time.NewTicker(time.Duration(c.cfg.Worker.PollIntervalSeconds) * time.Second)
	defer pollTick.Stop()
	resumeTick := time.NewTicker(time.Duration(c.cfg.Worker.ResumeRetryMinutes) * time.Minute)
	defer resumeTick.Stop()

	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return

		case event, ok := <-events:
			if !ok {
				events = c.listen(ctx)
				continue
			}
			c.handleEvent(ctx, event)

		case <-pollTick.C:
			c.dispatchNext(ctx)

		case <-resumeTick.C:
			c.autoResume(ctx)
			c.dispatchNext(ctx)
		}
	}
}

// listen connects the notification stream, retrying with a flat backoff. A
// nil channel is returned only when ctx dies; selecting on it blocks forever,
// which is what a closed controller wants.
func (c *Controller) listen(ctx context.Context) <-chan store.JobEvent {
	for {
		if ctx.Err() != nil {
			return nil
		}
		events, cleanup, err := c.newListener(ctx)
		if err == nil {
			go func() {
				<-ctx.Done()
				cleanup()
			}()
			return events
		}
		c.log.Warn("job event listener connect failed", logger.Err(err))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(5 * time.Second):
		}
	}
}

// reconcile runs the startup sequence: recover orphaned processing jobs,
// then schedule resumes for recent failures.
func (c *Controller) reconcile(ctx context.Context) {
	stale := time.Duration(c.cfg.Worker.StaleJobMinutes) * time.Minute
	if n, err := c.st.RecoverStaleJobs(ctx, stale, staleJobMessage); err != nil {
		c.log.Error("stale job recovery failed", logger.Err(err))
	} else if n > 0 {
		c.log.Info("recovered stale processing jobs", logger.Int64("count", n))
	}

	c.autoResume(ctx)
}

// autoResume creates follow-up jobs for recently failed crawls that got far
// enough to be worth finishing. A resume never chains: candidates that are
// themselves resumes are excluded by the store query.
func (c *Controller) autoResume(ctx context.Context) {
	window := time.Duration(c.cfg.Worker.ResumeWindowMinutes) * time.Minute
	candidates, err := c.st.ResumeCandidates(ctx, window, c.cfg.Worker.ResumeMinPagesCrawled, c.cfg.Worker.ResumeMaxJobs)
	if err != nil {
		c.log.Error("resume candidate query failed", logger.Err(err))
		return
	}

	for _, job := range candidates {
		skipURLs, err := c.st.CrawledURLs(ctx, job.ID)
		if err != nil {
			c.log.Warn("resume skip-list load failed",
				logger.String("job_id", job.ID.String()),
				logger.Err(err))
			continue
		}

		settings := c.decodeSettings(job)
		settings.ResumeInfo = &model.ResumeInfo{
			ResumedFrom:             job.ID.String(),
			SkipURLs:                skipURLs,
			OriginalPagesCrawled:    job.PagesCrawled,
			OriginalPagesFailed:     job.PagesFailed,
			OriginalPagesDiscovered: job.PagesDiscovered,
		}

		newID, err := c.st.CreateJob(ctx, job.ProjectID,
			settings, uuid.NullUUID{UUID: job.ID, Valid: true})
		if err != nil {
			c.log.Error("resume job create failed",
				logger.String("failed_job_id", job.ID.String()),
				logger.Err(err))
			continue
		}
		c.log.Info("scheduled resume job",
			logger.String("job_id", newID.String()),
			logger.String("resumed_from", job.ID.String()),
			logger.Int("skip_urls", len(skipURLs)))
	}
}

// handleEvent routes one notification: new pending work starts a dispatch,
// a status flip on the active job cancels it cooperatively.
func (c *Controller) handleEvent(ctx context.Context, event store.JobEvent) {
	c.mu.Lock()
	active := c.active
	c.mu.Unlock()

	if active != nil && event.JobID == active.id && jobs.Status(event.Status).Terminal() {
		c.log.Info("active job flipped externally, cancelling",
			logger.String("job_id", event.JobID.String()),
			logger.String("status", event.Status))
		active.orch.Cancel()
		return
	}

	if event.Status == string(jobs.StatusPending) {
		c.dispatchNext(ctx)
	}
}

// dispatchNext picks up the oldest pending job unless one is already
// running. The lock is held across claim and start so concurrent dispatch
// calls (poll tick vs. job-finished callback) stay single-flight.
func (c *Controller) dispatchNext(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil || c.shuttingDown {
		return
	}

	job, err := c.st.OldestPendingJob(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return
	}
	if err != nil {
		c.log.Error("pending job query failed", logger.Err(err))
		return
	}

	claimed, err := c.st.MarkJobProcessing(ctx, job.ID)
	if err != nil {
		c.log.Error("job claim failed", logger.String("job_id", job.ID.String()), logger.Err(err))
		return
	}
	if !claimed {
		return
	}

	c.runJob(ctx, job)
}

// runJob executes one claimed job in a goroutine and dispatches the next
// pending job when it finishes. The caller holds c.mu.
func (c *Controller) runJob(ctx context.Context, job store.Job) {
	settings := c.decodeSettings(job)
	if err := c.validate.Struct(settings); err != nil {
		msg := fmt.Sprintf("JOB_SETTINGS_INVALID: %v", err)
		_ = c.st.MarkJobTerminal(ctx, job.ID, string(jobs.StatusFailed), &msg)
		metrics.RecordJobFinished(string(jobs.StatusFailed))
		return
	}

	defs, err := c.st.LoadIssueDefinitions(ctx)
	if err != nil {
		msg := fmt.Sprintf("CATALOGUE_LOAD: %v", err)
		_ = c.st.MarkJobTerminal(ctx, job.ID, string(jobs.StatusFailed), &msg)
		metrics.RecordJobFinished(string(jobs.StatusFailed))
		return
	}

	orch := orchestrator.New(orchestrator.Config{
		JobID:      job.ID,
		Domain:     job.Domain,
		Settings:   settings,
		Store:      c.pages,
		Detector:   issues.NewDetector(defs, c.log),
		Oracle:     c.oracle,
		UserAgent:  c.cfg.Crawler.UserAgent,
		NewFetcher: c.newFetcher,
		Log:        c.log,
	})

	active := &activeJob{id: job.ID, orch: orch, done: make(chan struct{})}
	c.active = active

	c.log.Info("starting crawl job",
		logger.String("job_id", job.ID.String()),
		logger.String("domain", job.Domain),
		logger.Bool("resume", settings.ResumeInfo != nil))

	go func() {
		defer close(active.done)

		err := orch.Run(ctx)
		status := c.finishStatus(orch, err)

		var msg *string
		switch {
		case err != nil:
			text := err.Error()
			msg = &text
		case status == string(jobs.StatusFailed):
			text := shutdownMessage
			msg = &text
		}

		if terr := c.st.MarkJobTerminal(context.WithoutCancel(ctx), job.ID, status, msg); terr != nil {
			c.log.Error("terminal status write failed",
				logger.String("job_id", job.ID.String()),
				logger.Err(terr))
		}
		metrics.RecordJobFinished(status)

		crawled, failed, discovered := orch.Counters()
		c.log.Info("crawl job finished",
			logger.String("job_id", job.ID.String()),
			logger.String("status", status),
			logger.Int("pages_crawled", crawled),
			logger.Int("pages_failed", failed),
			logger.Int("pages_discovered", discovered))

		c.mu.Lock()
		c.active = nil
		done := c.shuttingDown
		c.mu.Unlock()

		if !done {
			c.dispatchNext(ctx)
		}
	}()
}

// finishStatus maps a finished run to its terminal status. An externally
// flipped status wins regardless: the terminal write is guarded on
// status = 'processing' and simply no-ops then.
func (c *Controller) finishStatus(orch *orchestrator.Orchestrator, err error) string {
	if err != nil {
		return string(jobs.StatusFailed)
	}
	if orch.Cancelled() {
		c.mu.Lock()
		down := c.shuttingDown
		c.mu.Unlock()
		if down {
			return string(jobs.StatusFailed)
		}
		return string(jobs.StatusCancelled)
	}
	return string(jobs.StatusCompleted)
}

// shutdown cancels the in-flight job and waits for its terminal write.
func (c *Controller) shutdown() {
	c.mu.Lock()
	c.shuttingDown = true
	active := c.active
	c.mu.Unlock()

	if active == nil {
		return
	}

	c.log.Info("shutting down, cancelling active job",
		logger.String("job_id", active.id.String()))
	active.orch.Cancel()

	select {
	case <-active.done:
	case <-time.After(45 * time.Second):
		c.log.Warn("active job did not stop before shutdown deadline",
			logger.String("job_id", active.id.String()))
	}
}

// decodeSettings reads the job's settings snapshot, layering worker defaults
// under it.
func (c *Controller) decodeSettings(job store.Job) model.CrawlSettings {
	settings := model.CrawlSettings{
		MaxPages:         c.cfg.Crawler.MaxPagesDefault,
		MaxDepth:         c.cfg.Crawler.MaxDepthDefault,
		CrawlDelayMs:     c.cfg.Crawler.CrawlDelayMs,
		RespectRobotsTxt: c.cfg.Crawler.RespectRobotsTxt,
		FollowSubdomains: c.cfg.Crawler.FollowSubdomains,
		RenderJavascript: c.cfg.Crawler.RenderJavascript,
	}
	if job.SettingsSnapshot.Valid {
		if err := json.Unmarshal(job.SettingsSnapshot.RawMessage, &settings); err != nil {
			c.log.Warn("settings snapshot decode failed, using defaults",
				logger.String("job_id", job.ID.String()),
				logger.Err(err))
		}
	}
	return settings
}

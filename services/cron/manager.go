package cron

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/sahilchouksey/uniportal-api/model"
	"github.com/sahilchouksey/uniportal-api/utils"
)

// Job status values stored in cron_job_logs
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// VideoPoller advances video upload jobs whose next check is due.
type VideoPoller interface {
	PollDue(ctx context.Context, limit int) (int, error)
}

// TokenCleaner removes blacklist entries of tokens that can no longer be used.
type TokenCleaner interface {
	CleanupExpiredTokens(ctx context.Context) (int64, error)
}

// Locker is a distributed set-if-absent, satisfied by *cache.RedisCache. With
// several API replicas only the one winning the lock runs a given tick.
type Locker interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
}

// Options wires the collaborators of the scheduled jobs. Nil members disable
// the jobs that need them.
type Options struct {
	Videos VideoPoller
	Tokens TokenCleaner
	Lock   Locker
	Log    *utils.Logger
}

// CronManager manages all scheduled cron jobs
type CronManager struct {
	cron   *cron.Cron
	db     *gorm.DB
	videos VideoPoller
	tokens TokenCleaner
	lock   Locker
	log    *utils.Logger
	owner  string
	now    func() time.Time
}

// NewCronManager creates a new cron manager
func NewCronManager(db *gorm.DB, opts Options) *CronManager {
	if opts.Log == nil {
		opts.Log = utils.NewNopLogger()
	}
	owner, _ := os.Hostname()
	return &CronManager{
		// seconds precision, same spec format as the job table below
		cron:   cron.New(cron.WithSeconds()),
		db:     db,
		videos: opts.Videos,
		tokens: opts.Tokens,
		lock:   opts.Lock,
		log:    opts.Log,
		owner:  fmt.Sprintf("%s:%d", owner, os.Getpid()),
		now:    time.Now,
	}
}

// Start registers the jobs and starts the scheduler.
func (m *CronManager) Start() error {
	m.log.Info("starting cron jobs")
	if err := m.registerJobs(); err != nil {
		return err
	}
	m.cron.Start()
	m.log.Info("cron jobs started", "jobs", len(m.cron.Entries()))
	return nil
}

// Stop waits for running jobs to finish.
func (m *CronManager) Stop() {
	m.log.Info("stopping cron jobs")
	ctx := m.cron.Stop()
	<-ctx.Done()
	m.log.Info("cron jobs stopped")
}

type job struct {
	name     string
	spec     string
	timeout  time.Duration
	run      func(ctx context.Context) (string, error)
	requires bool
}

func (m *CronManager) jobs() []job {
	return []job{
		// every minute: advance video processing on the host
		{name: "poll_video_uploads", spec: "0 * * * * *", timeout: 50 * time.Second, run: m.PollVideoUploads, requires: m.videos != nil},
		// every 10 minutes: switch off advertisements whose window closed
		{name: "expire_advertisements", spec: "0 */10 * * * *", timeout: time.Minute, run: m.ExpireAdvertisements, requires: true},
		// daily at 3 AM: drop blacklist rows of expired tokens
		{name: "cleanup_expired_tokens", spec: "0 0 3 * * *", timeout: 5 * time.Minute, run: m.CleanupExpiredTokens, requires: m.tokens != nil},
		// daily at 3:30 AM: keep 90 days of job history
		{name: "cleanup_cron_logs", spec: "0 30 3 * * *", timeout: 5 * time.Minute, run: m.CleanupOldLogs, requires: true},
	}
}

// registerJobs registers all cron jobs with their schedules
func (m *CronManager) registerJobs() error {
	for _, j := range m.jobs() {
		if !j.requires {
			m.log.Warn("cron job disabled, collaborator not configured", "job", j.name)
			continue
		}
		j := j
		if _, err := m.cron.AddFunc(j.spec, func() { m.runJob(j) }); err != nil {
			return fmt.Errorf("register %s: %w", j.name, err)
		}
	}
	return nil
}

// runJob executes one tick of a job and records it in cron_job_logs.
func (m *CronManager) runJob(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	if !m.acquire(ctx, j) {
		m.log.Debug("cron job held by another instance", "job", j.name)
		return
	}

	entry := m.logJobStart(j.name)
	message, err := j.run(ctx)
	if err != nil {
		m.logJobError(entry, err)
		return
	}
	m.logJobComplete(entry, message)
}

func (m *CronManager) acquire(ctx context.Context, j job) bool {
	if m.lock == nil {
		return true
	}
	ok, err := m.lock.SetNX(ctx, "cron:lock:"+j.name, m.owner, j.timeout)
	if err != nil {
		// redis trouble must not stop single-instance deployments
		m.log.Warn("cron lock unavailable, running anyway", "job", j.name, "error", err)
		return true
	}
	return ok
}

// logJobStart logs the start of a cron job
func (m *CronManager) logJobStart(jobName string) *model.CronJobLog {
	m.log.Debug("cron job started", "job", jobName)
	entry := &model.CronJobLog{
		JobName:   jobName,
		Status:    StatusRunning,
		StartedAt: m.now(),
	}
	if err := m.db.Create(entry).Error; err != nil {
		m.log.Warn("failed to record cron job start", "job", jobName, "error", err)
	}
	return entry
}

// logJobComplete logs successful completion of a cron job
func (m *CronManager) logJobComplete(entry *model.CronJobLog, message string) {
	m.log.Info("cron job completed", "job", entry.JobName, "message", message)
	m.finish(entry, map[string]interface{}{
		"status":  StatusCompleted,
		"message": message,
	})
}

// logJobError logs a cron job error
func (m *CronManager) logJobError(entry *model.CronJobLog, err error) {
	m.log.Error("cron job failed", "job", entry.JobName, "error", err)
	m.finish(entry, map[string]interface{}{
		"status":    StatusFailed,
		"error_msg": err.Error(),
	})
}

func (m *CronManager) finish(entry *model.CronJobLog, updates map[string]interface{}) {
	if entry.ID == 0 {
		return
	}
	completed := m.now()
	updates["completed_at"] = completed
	updates["duration"] = int(completed.Sub(entry.StartedAt).Milliseconds())
	if err := m.db.Model(entry).Updates(updates).Error; err != nil {
		m.log.Warn("failed to record cron job result", "job", entry.JobName, "error", err)
	}
}

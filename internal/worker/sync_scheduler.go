package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/invenops/ticketing/internal/session"
)

// SyncScheduler re-fetches every active viewer session on a fixed cadence:
// the ticket list unconditionally, plus the open thread where one exists.
// Pure polling, no push channel. A tick that fires while the previous refresh
// is still in flight is skipped, never stacked. Manual refreshes go straight
// to Session.Refresh and do not touch this schedule's timer.
type SyncScheduler struct {
	sessions *session.Manager
	logger   *zap.Logger
	interval time.Duration
	timeout  time.Duration
	cron     *cron.Cron
}

// NewSyncScheduler builds the scheduler; Start begins polling. cron's @every
// rounds intervals below one second up to a full second, so the effective
// minimum interval is 1s.
func NewSyncScheduler(sessions *session.Manager, logger *zap.Logger, interval, timeout time.Duration) *SyncScheduler {
	cronLog := zapCronLogger{logger: logger}
	return &SyncScheduler{
		sessions: sessions,
		logger:   logger,
		interval: interval,
		timeout:  timeout,
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLog))),
	}
}

// Start registers the poll job and starts the schedule.
func (s *SyncScheduler) Start() error {
	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.interval), s.refreshAll); err != nil {
		return fmt.Errorf("register sync job: %w", err)
	}
	s.cron.Start()
	s.logger.Info("sync scheduler started", zap.Duration("interval", s.interval))
	return nil
}

// Stop cancels the schedule and waits for an in-flight refresh to finish.
func (s *SyncScheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("sync scheduler stopped")
}

// refreshAll runs one poll tick. A failing session logs and waits for the
// next tick; it never tight-loops or aborts the other sessions.
func (s *SyncScheduler) refreshAll() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	for _, sess := range s.sessions.Active() {
		if err := sess.Refresh(ctx); err != nil {
			s.logger.Warn("session refresh failed",
				zap.Int64("user_id", sess.Requester().UserID),
				zap.Error(err))
		}
	}
}

// zapCronLogger adapts zap to the cron logger interface.
type zapCronLogger struct {
	logger *zap.Logger
}

func (l zapCronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l zapCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}

package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/college-portal-api/pkg/jobs"
)

const noticeSweepJobType = "notice_sweep"

// NoticeSweeper periodically enqueues expiry sweeps for the notice board.
// The sweep itself runs on the job queue workers so a slow delete never
// blocks the ticker.
type NoticeSweeper struct {
	notices  *NoticeService
	queue    *jobs.Queue
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	started bool
}

// NewNoticeSweeper constructs the sweeper and its backing queue.
func NewNoticeSweeper(notices *NoticeService, interval time.Duration, logger *zap.Logger) *NoticeSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	s := &NoticeSweeper{notices: notices, interval: interval, logger: logger}
	s.queue = jobs.NewQueue(noticeSweepJobType, s.handle, jobs.QueueConfig{
		Workers: 1,
		Logger:  logger,
	})
	return s
}

// Start launches the queue workers and the ticker loop.
func (s *NoticeSweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.queue.Start(ctx)
	go s.loop(ctx)
	s.started = true
}

// Stop halts the ticker and drains the queue workers.
func (s *NoticeSweeper) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.started = false
	s.mu.Unlock()
	s.queue.Stop()
}

func (s *NoticeSweeper) loop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: noticeSweepJobType}); err != nil {
				s.logger.Warn("failed to enqueue notice sweep", zap.Error(err))
			}
		}
	}
}

func (s *NoticeSweeper) handle(ctx context.Context, _ jobs.Job) error {
	_, err := s.notices.SweepExpired(ctx)
	return err
}

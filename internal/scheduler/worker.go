package scheduler

import (
	"context"
	"fmt"

	"smartfinder_backend/platform/config"
	"smartfinder_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// LeadNotificationHandler delivers a queued sales notification.
type LeadNotificationHandler interface {
	DeliverLeadNotification(ctx context.Context, payload LeadNotificationPayload) error
}

type Worker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	notifier LeadNotificationHandler
	log      *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, notifier LeadNotificationHandler, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	w := &Worker{
		server:   server,
		notifier: notifier,
		log:      log,
	}
	w.mux = w.routes()
	return w, nil
}

func (w *Worker) routes() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskLeadNotification, w.handleLeadNotification)
	return mux
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleLeadNotification(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseLeadNotificationPayload(task)
	if err != nil {
		// A payload that cannot be decoded never will be.
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	if payload.Email == "" {
		return fmt.Errorf("%w: lead notification without email", asynq.SkipRetry)
	}

	if err := w.notifier.DeliverLeadNotification(ctx, payload); err != nil {
		w.log.Warn("lead notification failed", "lead_id", payload.LeadID, "error", err)
		return err
	}
	w.log.Info("lead notification sent", "lead_id", payload.LeadID)
	return nil
}

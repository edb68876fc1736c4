package scheduler

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"smartfinder_backend/platform/config"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

const leadNotificationRetries = 5

type Client struct {
	client *asynq.Client
	queue  string
}

type LeadNotificationScheduler interface {
	ScheduleLeadNotification(ctx context.Context, payload LeadNotificationPayload) error
}

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	return newClient(asynq.NewClient(opt), cfg.GetAsynqQueueName()), nil
}

func newClient(client *asynq.Client, queue string) *Client {
	if queue == "" {
		queue = "default"
	}
	return &Client{client: client, queue: queue}
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// ScheduleLeadNotification enqueues the sales notification for a lead. The
// task id is derived from the lead id, so a lead is announced at most once
// while its task is retained.
func (c *Client) ScheduleLeadNotification(ctx context.Context, payload LeadNotificationPayload) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewLeadNotificationTask(payload)
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task,
		asynq.Queue(c.queue),
		asynq.TaskID("lead-notify:"+payload.LeadID),
		asynq.MaxRetry(leadNotificationRetries),
		asynq.Retention(24*time.Hour),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}

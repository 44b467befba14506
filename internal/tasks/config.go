package tasks

import (
	"time"

	"github.com/mikestefanello/backlite"
)

// Config holds configuration for the task queue.
type Config struct {
	Workers           int           // concurrent workers
	MaxRetries        int           // attempts for retryable queues
	RetryDelay        time.Duration // backoff between attempts
	TaskTimeout       time.Duration // per-task execution limit
	ReleaseAfter      time.Duration // stuck tasks are released after this
	CleanupInterval   time.Duration // how often finished tasks are purged
	RetentionDuration time.Duration // how long finished tasks are kept
}

func DefaultConfig() Config {
	return Config{
		Workers:           2,
		MaxRetries:        3,
		RetryDelay:        30 * time.Second,
		TaskTimeout:       10 * time.Minute,
		ReleaseAfter:      15 * time.Minute,
		CleanupInterval:   time.Hour,
		RetentionDuration: 24 * time.Hour,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = d.RetryDelay
	}
	if c.TaskTimeout <= 0 {
		c.TaskTimeout = d.TaskTimeout
	}
	if c.ReleaseAfter <= 0 {
		c.ReleaseAfter = d.ReleaseAfter
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = d.CleanupInterval
	}
	if c.RetentionDuration <= 0 {
		c.RetentionDuration = d.RetentionDuration
	}
	return c
}

// configuredQueue serves queue settings from the client's Config. backlite
// only reads a task's own Config for the queue name when enqueueing; the
// registered queue's Config governs attempts, backoff, timeout and retention.
type configuredQueue struct {
	backlite.Queue
	config backlite.QueueConfig
}

func (q *configuredQueue) Config() *backlite.QueueConfig { return &q.config }

func configure(q backlite.Queue, config backlite.QueueConfig) backlite.Queue {
	return &configuredQueue{Queue: q, config: config}
}

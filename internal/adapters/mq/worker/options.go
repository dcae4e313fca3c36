package worker

import (
	"time"

	"github.com/okian/kata/pkg/logger"
)

// Option applies a configuration option to a Worker or Pool.
type Option func(*config)

type config struct {
	name       string
	log        logger.Logger
	releaser   Releaser
	jobTimeout time.Duration
}

func defaultConfig() config {
	return config{
		name:       "worker",
		log:        logger.Nop(),
		jobTimeout: defaultJobTimeout,
	}
}

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(c *config) {
		if name != "" {
			c.name = name
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.log = l
		}
	}
}

// WithReleaser is told when a username's job has finished.
func WithReleaser(r Releaser) Option {
	return func(c *config) {
		c.releaser = r
	}
}

// WithJobTimeout bounds a single sync. Non-positive values are ignored.
func WithJobTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.jobTimeout = d
		}
	}
}

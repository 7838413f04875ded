// Package monitoring reports errors to Sentry.
package monitoring

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	coremon "github.com/kilianp07/parcelmas/core/monitoring"
)

// Config configures the Sentry client. An empty DSN disables reporting.
type Config struct {
	DSN              string  `json:"dsn"`
	Environment      string  `json:"environment"`
	Release          string  `json:"release"`
	TracesSampleRate float64 `json:"traces_sample_rate"`
}

// Validate checks the sample rate.
func (c Config) Validate() error {
	if c.TracesSampleRate < 0 || c.TracesSampleRate > 1 {
		return fmt.Errorf("monitoring traces_sample_rate must be within [0, 1], got %v", c.TracesSampleRate)
	}
	return nil
}

// NewSentryReporter initializes Sentry and returns a Reporter sending to it.
func NewSentryReporter(cfg Config) (coremon.Reporter, error) {
	if cfg.DSN == "" {
		return coremon.NopReporter{}, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		TracesSampleRate: cfg.TracesSampleRate,
		Release:          cfg.Release,
	})
	if err != nil {
		return nil, fmt.Errorf("sentry init: %w", err)
	}
	return sentryReporter{}, nil
}

type sentryReporter struct{}

func (sentryReporter) Report(err error, tags map[string]string) {
	if len(tags) == 0 {
		sentry.CaptureException(err)
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		sentry.CaptureException(err)
	})
}

func (sentryReporter) Flush(timeout time.Duration) bool { return sentry.Flush(timeout) }

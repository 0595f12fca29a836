// Package updatecheck decides whether a package update is pending, fetches
// an impact report for it from the theme check API, and caches successful
// reports by fingerprint.
package updatecheck

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/obfx/themecheck/internal/logging"
	"github.com/obfx/themecheck/internal/metrics"
	"github.com/obfx/themecheck/internal/store"
	"github.com/obfx/themecheck/pkg/api"
)

var log = logging.L("updatecheck")

// CheckAPI is the remote theme check service.
type CheckAPI interface {
	Check(ctx context.Context, req api.CheckRequest) (*api.CheckResponse, error)
}

// Config holds checker dependencies.
type Config struct {
	API   CheckAPI
	Store store.Store
	// Secret keys the fingerprint HMAC. Required.
	Secret string
	// Concurrency bounds parallel evaluations in OnUpdateCheck. Values
	// below 1 mean sequential.
	Concurrency int
	Metrics     *metrics.Metrics
	// Logger is used when the call context carries no logger.
	Logger *slog.Logger
}

// Checker evaluates update candidates.
type Checker struct {
	api         CheckAPI
	cache       *Cache
	secret      []byte
	concurrency int
	metrics     *metrics.Metrics
	log         *slog.Logger
	flight      singleflight.Group
}

// New creates a Checker.
func New(cfg Config) (*Checker, error) {
	if cfg.API == nil {
		return nil, errors.New("updatecheck: API is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("updatecheck: store is required")
	}
	if cfg.Secret == "" {
		return nil, errors.New("updatecheck: secret is required")
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = log
	}
	return &Checker{
		api:         cfg.API,
		cache:       NewCache(cfg.Store),
		secret:      []byte(cfg.Secret),
		concurrency: cfg.Concurrency,
		metrics:     cfg.Metrics,
		log:         cfg.Logger,
	}, nil
}

// Cache exposes the checker's cache for inspection.
func (c *Checker) Cache() *Cache {
	return c.cache
}

// Fingerprint returns the cache key for candidate.
func (c *Checker) Fingerprint(candidate UpdateCandidate) Fingerprint {
	return ComputeFingerprint(c.secret, candidate)
}

// Evaluate returns the impact report for a pending update.
//
// It returns nil, nil when no update is pending and ErrInvalidVersion when
// a version cannot be parsed; neither makes a network call. Check failures
// are not errors: they come back as a report with StatusCode "error" (or the
// upstream's declared status) and a Failure kind, and are never cached.
//
// Concurrent calls for the same fingerprint share one fetch. A caller whose
// ctx ends first gets a network failure report; the fetch continues for the
// others and its result is still cached.
func (c *Checker) Evaluate(ctx context.Context, candidate UpdateCandidate) (*ImpactReport, error) {
	pending, err := candidate.Pending()
	if err != nil {
		return nil, err
	}
	if !pending {
		return nil, nil
	}

	fp := c.Fingerprint(candidate)
	// The shared fetch must outlive any one caller; the client timeout bounds it.
	shared := context.WithoutCancel(ctx)
	ch := c.flight.DoChan(string(fp), func() (any, error) {
		return c.evaluate(shared, candidate, fp), nil
	})
	select {
	case res := <-ch:
		return res.Val.(*ImpactReport).Clone(), nil
	case <-ctx.Done():
		c.logger(ctx).Debug("caller gave up waiting for theme check",
			logging.KeyPackage, candidate.PackageID,
			logging.KeyError, ctx.Err(),
		)
		return failedReport(FailureNetwork), nil
	}
}

// logger returns the logger carried by ctx, or the checker's own.
func (c *Checker) logger(ctx context.Context) *slog.Logger {
	return logging.FromContextOr(ctx, c.log)
}

func (c *Checker) evaluate(ctx context.Context, candidate UpdateCandidate, fp Fingerprint) *ImpactReport {
	logger := logging.WithPackage(c.logger(ctx), candidate.PackageID, string(fp))

	cached, ok, err := c.cache.Lookup(ctx, fp)
	switch {
	case err != nil:
		c.metrics.Lookup(metrics.LookupError)
		logger.Warn("check cache lookup failed, fetching", logging.KeyError, err)
	case ok:
		c.metrics.Lookup(metrics.LookupHit)
		logger.Debug("check cache hit")
		return cached
	default:
		c.metrics.Lookup(metrics.LookupMiss)
	}

	start := time.Now()
	resp, err := c.api.Check(ctx, api.CheckRequest{
		Package:        candidate.PackageID,
		CurrentVersion: candidate.InstalledVersion,
		NextVersion:    candidate.AvailableVersion,
	})
	durationMs := time.Since(start).Milliseconds()

	if err != nil {
		kind := classify(err)
		c.metrics.Fetch(string(kind))
		logger.Warn("theme check failed",
			"kind", string(kind),
			logging.KeyDurationMs, durationMs,
			logging.KeyError, err,
		)
		return failedReport(kind)
	}

	report := reportFromResponse(resp)
	if !report.OK() {
		c.metrics.Fetch(string(FailureUpstream))
		logger.Warn("theme check reported failure",
			"statusCode", report.StatusCode,
			"httpStatus", resp.HTTPStatus,
			logging.KeyDurationMs, durationMs,
		)
		return report
	}

	c.metrics.Fetch(metrics.FetchSuccess)
	logger.Info("theme check fetched", logging.KeyDurationMs, durationMs)

	if err := c.cache.Put(ctx, fp, report); err != nil {
		c.metrics.Write(false)
		logger.Warn("failed to cache impact report", logging.KeyError, err)
	} else {
		c.metrics.Write(true)
	}
	return report
}

func classify(err error) FailureKind {
	var malformed *api.MalformedResponseError
	if errors.As(err, &malformed) {
		return FailureMalformed
	}
	return FailureNetwork
}

package redis

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker/v2"

	"github.com/utafrali/servicehub/internal/domain"
	"github.com/utafrali/servicehub/internal/repository"
)

// BreakerConfig controls when the cache breaker opens.
type BreakerConfig struct {
	Name string
	// Timeout is how long the breaker stays open before letting a probe through.
	Timeout time.Duration
	// Interval clears the failure counts while closed. 0 never clears them.
	Interval time.Duration
	// The breaker trips once MinRequests calls were seen and at least
	// FailureRatio of them failed.
	FailureRatio float64
	MinRequests  uint32
}

// DefaultBreakerConfig returns the settings used for the category cache.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:         name,
		Timeout:      30 * time.Second,
		Interval:     time.Minute,
		FailureRatio: 0.5,
		MinRequests:  5,
	}
}

var cacheBreakerState = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "cache_circuit_breaker_state",
		Help: "Current state of a cache circuit breaker (0=closed, 1=half-open, 2=open)",
	},
	[]string{"name"},
)

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// BreakerCache guards a CategoryCache with a circuit breaker. While the
// breaker is open every call fails at once with gobreaker.ErrOpenState
// instead of waiting on an unhealthy Redis. Misses count as successes.
type BreakerCache struct {
	next    repository.CategoryCache
	breaker *gobreaker.CircuitBreaker[[]domain.Category]
}

// NewBreakerCache wraps next.
func NewBreakerCache(next repository.CategoryCache, cfg BreakerConfig, logger *slog.Logger) *BreakerCache {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("cache circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			cacheBreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	}
	cacheBreakerState.WithLabelValues(cfg.Name).Set(0)

	return &BreakerCache{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker[[]domain.Category](settings),
	}
}

var _ repository.CategoryCache = (*BreakerCache)(nil)

// GetCategories reads through the breaker.
func (c *BreakerCache) GetCategories(ctx context.Context) ([]domain.Category, bool, error) {
	var hit bool
	categories, err := c.breaker.Execute(func() ([]domain.Category, error) {
		categories, ok, err := c.next.GetCategories(ctx)
		hit = ok
		return categories, err
	})
	if err != nil {
		return nil, false, err
	}
	return categories, hit, nil
}

// SetCategories writes through the breaker.
func (c *BreakerCache) SetCategories(ctx context.Context, categories []domain.Category) error {
	_, err := c.breaker.Execute(func() ([]domain.Category, error) {
		return nil, c.next.SetCategories(ctx, categories)
	})
	return err
}

// State reports the breaker state.
func (c *BreakerCache) State() gobreaker.State {
	return c.breaker.State()
}

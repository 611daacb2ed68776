// Package google wraps the Google Workspace APIs ProjectFlow calls on a
// user's behalf. Every call runs under a per-service circuit breaker and a
// timeout, and failures surface as apperr.ErrUpstream.
package google

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hugh/projectflow/internal/apperr"
	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	ServiceDrive    = "drive"
	ServiceGmail    = "gmail"
	ServiceCalendar = "calendar"
	ServiceTasks    = "tasks"
	ServicePeople   = "people"
)

const defaultTimeout = 15 * time.Second

// Factory builds per-request API clients from a user's OAuth token.
type Factory struct {
	breakers  map[string]*gobreaker.CircuitBreaker
	overrides []option.ClientOption
	timeout   time.Duration
	logger    *slog.Logger
}

type FactoryConfig struct {
	Timeout time.Duration
	// ClientOptions replace the token-based options when set. Tests point
	// them at a local server.
	ClientOptions []option.ClientOption
}

func NewFactory(cfg FactoryConfig, logger *slog.Logger) *Factory {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	f := &Factory{
		breakers:  make(map[string]*gobreaker.CircuitBreaker),
		overrides: cfg.ClientOptions,
		timeout:   cfg.Timeout,
		logger:    logger,
	}
	for _, name := range []string{ServiceDrive, ServiceGmail, ServiceCalendar, ServiceTasks, ServicePeople} {
		f.breakers[name] = f.newBreaker(name)
	}
	return f
}

func (f *Factory) newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "google-" + name,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 3
		},
		// Client errors mean the request was wrong, not that Google is down.
		IsSuccessful: func(err error) bool {
			var gerr *googleapi.Error
			if errors.As(err, &gerr) {
				return gerr.Code < 500 && gerr.Code != 429
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			f.logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
}

// BreakerState exposes a service breaker's state for health reporting.
func (f *Factory) BreakerState(service string) gobreaker.State {
	return f.breakers[service].State()
}

func (f *Factory) clientOptions(tok *oauth2.Token) []option.ClientOption {
	if len(f.overrides) > 0 {
		return f.overrides
	}
	return []option.ClientOption{option.WithTokenSource(oauth2.StaticTokenSource(tok))}
}

// call runs fn under the service's breaker with the factory timeout.
func call[T any](ctx context.Context, f *Factory, service string, fn func(ctx context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	out, err := f.breakers[service].Execute(func() (interface{}, error) {
		return fn(ctx)
	})
	if err != nil {
		var zero T
		return zero, apperr.Upstream(service, err)
	}
	return out.(T), nil
}

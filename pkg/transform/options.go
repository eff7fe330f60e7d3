package transform

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/cachekit/pkg/logger"
)

// DefaultTimeout bounds a single round trip to the helper.
const DefaultTimeout = 5 * time.Second

// Option configures a Gateway.
type Option func(*gatewayOptions)

type gatewayOptions struct {
	logger  *slog.Logger
	timeout time.Duration
}

func defaultGatewayOptions() *gatewayOptions {
	return &gatewayOptions{
		logger:  logger.NewNope(),
		timeout: DefaultTimeout,
	}
}

// WithTimeout bounds each request, from handing it to the helper until its
// response arrives. Past it the payload is returned unchanged.
// Default: 5 seconds.
func WithTimeout(d time.Duration) Option {
	return func(o *gatewayOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithLogger sets the logger for fallbacks and late responses.
// Default: no-op logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *gatewayOptions) {
		if l != nil {
			o.logger = l
		}
	}
}
